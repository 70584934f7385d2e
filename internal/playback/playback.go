// Package playback plays mono PCM through the Pulse server.
package playback

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
)

// Player plays s16 mono samples and blocks until playback ends or ctx is done.
type Player interface {
	Play(ctx context.Context, samples []int16, sampleRate int) error
}

// Pulse plays samples on the default sink.
type Pulse struct {
	MediaName string
}

// Play streams samples to Pulse. Cancelling ctx ends the stream at the next
// buffer request and returns ctx.Err().
func (p Pulse) Play(ctx context.Context, samples []int16, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("proctor"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	reader := newSampleReader(ctx, samples)
	mediaName := p.MediaName
	if mediaName == "" {
		mediaName = "proctor playback"
	}

	stream, err := client.NewPlayback(
		pulse.Int16Reader(reader.read),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(mediaName),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play stream: %w", err)
	}
	return nil
}

// sampleReader feeds samples to Pulse and ends the stream early once ctx is done.
type sampleReader struct {
	ctx     context.Context
	mu      sync.Mutex
	samples []int16
	cursor  int
}

func newSampleReader(ctx context.Context, samples []int16) *sampleReader {
	return &sampleReader{ctx: ctx, samples: samples}
}

func (r *sampleReader) read(buf []int16) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil || r.cursor >= len(r.samples) {
		return 0, pulse.EndOfData
	}

	n := copy(buf, r.samples[r.cursor:])
	r.cursor += n
	if r.cursor >= len(r.samples) {
		return n, pulse.EndOfData
	}
	return n, nil
}

// DecodeS16LE converts little-endian s16 bytes into samples; a trailing odd byte is dropped.
func DecodeS16LE(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}
