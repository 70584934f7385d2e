package cue

import (
	"math"
	"time"
)

const sampleRate = 16000

type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

var (
	startPCM = synthesizeCue([]toneSpec{
		{frequencyHz: 660, duration: 80 * time.Millisecond, volume: 0.2},
		{frequencyHz: 990, duration: 110 * time.Millisecond, volume: 0.2},
	})
	stopPCM = synthesizeCue([]toneSpec{
		{frequencyHz: 990, duration: 80 * time.Millisecond, volume: 0.2},
		{frequencyHz: 660, duration: 110 * time.Millisecond, volume: 0.2},
	})
	completePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 523, duration: 90 * time.Millisecond, volume: 0.18},
		{frequencyHz: 659, duration: 90 * time.Millisecond, volume: 0.18},
		{frequencyHz: 784, duration: 160 * time.Millisecond, volume: 0.18},
	})
)

func samplesFor(k kind) []int16 {
	switch k {
	case kindStart:
		return startPCM
	case kindStop:
		return stopPCM
	case kindComplete:
		return completePCM
	default:
		return nil
	}
}

// synthesizeCue renders parts back to back with a short silence between them.
func synthesizeCue(parts []toneSpec) []int16 {
	gap := make([]int16, samplesForDuration(25*time.Millisecond))

	var pcm []int16
	for i, part := range parts {
		if i > 0 {
			pcm = append(pcm, gap...)
		}
		pcm = append(pcm, synthesizeTone(part)...)
	}
	return pcm
}

func synthesizeTone(spec toneSpec) []int16 {
	n := samplesForDuration(spec.duration)
	if n <= 0 || spec.frequencyHz <= 0 || spec.volume <= 0 {
		return nil
	}

	ramp := max(1, min(n/10, sampleRate/200))
	pcm := make([]int16, n)
	for i := range pcm {
		t := float64(i) / sampleRate
		sample := math.Sin(2*math.Pi*spec.frequencyHz*t) * spec.volume * envelope(i, n, ramp)
		pcm[i] = int16(math.Round(sample * math.MaxInt16))
	}
	return pcm
}

// envelope fades the first and last ramp samples to avoid clicks.
func envelope(i, n, ramp int) float64 {
	edge := min(i, n-i-1)
	if edge >= ramp {
		return 1
	}
	return float64(edge) / float64(ramp)
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * sampleRate))
}
