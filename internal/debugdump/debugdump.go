// Package debugdump writes timestamped debug artifacts under the proctor state dir.
package debugdump

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rbright/proctor/internal/logging"
)

// Dir returns the debug artifact directory, creating it when missing.
func Dir() (string, error) {
	stateDir, err := logging.StateDir()
	if err != nil {
		return "", fmt.Errorf("resolve state dir: %w", err)
	}
	debugDir := filepath.Join(stateDir, "debug")
	if err := os.MkdirAll(debugDir, 0o700); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}
	return debugDir, nil
}

// Create opens a new prefix-<timestamp>.extension artifact for writing.
func Create(prefix string, extension string) (*os.File, error) {
	debugDir, err := Dir()
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(debugDir, fmt.Sprintf("%s-%s.%s", prefix, timestamp, extension))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open debug file %q: %w", path, err)
	}
	return file, nil
}

// WriteFile stores data as a new artifact and returns its path.
func WriteFile(prefix string, extension string, data []byte) (string, error) {
	file, err := Create(prefix, extension)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return "", fmt.Errorf("write debug file %q: %w", file.Name(), err)
	}
	return file.Name(), nil
}

// WriteWAV stores little-endian s16 PCM behind a minimal WAV header.
func WriteWAV(prefix string, pcm []byte, sampleRate int, channels int) (string, error) {
	file, err := Create(prefix, "wav")
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := EncodeWAV(file, pcm, sampleRate, channels); err != nil {
		return "", fmt.Errorf("write debug wav %q: %w", file.Name(), err)
	}
	return file.Name(), nil
}

// EncodeWAV writes pcm to w as a 16-bit PCM WAV stream.
func EncodeWAV(w io.Writer, pcm []byte, sampleRate int, channels int) error {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}
