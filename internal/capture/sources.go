package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Source describes one Pulse input source.
type Source struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved microphone plus optional fallback warning context.
type Selection struct {
	Source   Source
	Warning  string
	Fallback bool
}

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("proctor"),
		pulse.ClientApplicationIconName("camera-video"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListSources returns Pulse input sources with default/availability metadata.
func ListSources(_ context.Context) ([]Source, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	sources := make([]Source, 0, len(infos))
	for _, info := range infos {
		if info == nil || strings.HasSuffix(info.SourceName, ".monitor") {
			continue
		}
		sources = append(sources, Source{
			ID:          info.SourceName,
			Description: info.Device,
			State:       sourceStateString(info.State),
			Available:   sourceAvailable(info),
			Muted:       info.Mute,
			Default:     info.SourceName == defaultID,
		})
	}
	return sources, nil
}

// SelectSource resolves the configured microphone preferences against live sources.
func SelectSource(ctx context.Context, input string, fallback string) (Selection, error) {
	sources, err := ListSources(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectSourceFromList(sources, input, fallback)
}

// ListVideoDevices returns the V4L2 device nodes present on this host.
func ListVideoDevices() ([]string, error) {
	return listVideoDevices("/dev")
}

func listVideoDevices(root string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "video*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// pulseHold keeps a Pulse connection open for the life of an acquired device.
type pulseHold struct {
	client *pulse.Client
}

func (h pulseHold) Close() error {
	h.client.Close()
	return nil
}

func holdPulseSource(_ context.Context, source Source) (io.Closer, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	if _, err := client.SourceByID(source.ID); err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", source.ID, err)
	}
	return pulseHold{client: client}, nil
}

// selectSourceFromList applies the input/fallback policy to a fetched source list.
func selectSourceFromList(sources []Source, input string, fallback string) (Selection, error) {
	if len(sources) == 0 {
		return Selection{}, errors.New("no audio input sources found")
	}

	var (
		defaultSource *Source
		byInput       *Source
		byFallback    *Source
	)

	input = strings.TrimSpace(strings.ToLower(input))
	fallback = strings.TrimSpace(strings.ToLower(fallback))

	for i := range sources {
		src := &sources[i]
		if src.Default {
			defaultSource = src
		}
		if byInput == nil && input != "" && input != "default" && sourceMatches(*src, input) {
			byInput = src
		}
		if byFallback == nil && fallback != "" && fallback != "default" && sourceMatches(*src, fallback) {
			byFallback = src
		}
	}

	chooseDefault := func() (*Source, error) {
		if defaultSource == nil {
			return nil, errors.New("default audio source is unavailable")
		}
		return defaultSource, nil
	}

	selectPrimary := func() (*Source, error) {
		if input == "" || input == "default" {
			return chooseDefault()
		}
		if byInput != nil {
			return byInput, nil
		}
		return nil, fmt.Errorf("capture.audio_input %q did not match any source", input)
	}

	primary, err := selectPrimary()
	if err != nil {
		return Selection{}, err
	}
	if primary.Available && !primary.Muted {
		return Selection{Source: *primary}, nil
	}

	primaryReason := "unavailable"
	if primary.Muted {
		primaryReason = "muted"
	}

	fallbackSource := primary
	if fallback != "" && fallback != "default" {
		if byFallback == nil {
			return Selection{}, fmt.Errorf("primary input %q is %s and fallback %q not found", primary.ID, primaryReason, fallback)
		}
		fallbackSource = byFallback
	} else {
		d, derr := chooseDefault()
		if derr != nil {
			return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback: %w", primary.ID, primaryReason, derr)
		}
		fallbackSource = d
	}

	if !fallbackSource.Available {
		return Selection{}, fmt.Errorf("audio fallback source %q is not available", fallbackSource.ID)
	}
	if fallbackSource.Muted {
		return Selection{}, fmt.Errorf("audio fallback source %q is muted", fallbackSource.ID)
	}

	return Selection{
		Source:   *fallbackSource,
		Warning:  fmt.Sprintf("capture.audio_input %q is %s; falling back to %q", primary.ID, primaryReason, fallbackSource.ID),
		Fallback: primary.ID != fallbackSource.ID,
	}, nil
}

func sourceMatches(source Source, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(source.ID), term) ||
		strings.Contains(strings.ToLower(source.Description), term)
}

// sourceStateString maps Pulse source state constants to human-readable values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
