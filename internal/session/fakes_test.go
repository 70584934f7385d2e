package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/proctor/internal/domain"
	"github.com/rbright/proctor/internal/ports"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	f     func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, timer)
	return timer
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (c *fakeClock) next() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var earliest *fakeTimer
	for _, timer := range c.timers {
		if timer.done {
			continue
		}
		if earliest == nil || timer.at.Before(earliest.at) {
			earliest = timer
		}
	}
	return earliest
}

func (c *fakeClock) hasPending() bool {
	return c.next() != nil
}

// fire runs the earliest pending timer, waiting for the controller to arm one.
func (c *fakeClock) fire(t *testing.T) {
	t.Helper()
	require.Eventually(t, c.hasPending, 2*time.Second, time.Millisecond, "no timer armed")

	timer := c.next()
	c.mu.Lock()
	timer.done = true
	if timer.at.After(c.now) {
		c.now = timer.at
	}
	c.mu.Unlock()
	timer.f()
}

type fakeQuestions struct {
	questions []string
	err       error
	gate      chan struct{}
}

func (f *fakeQuestions) FetchQuestions(ctx context.Context, _ string) ([]string, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.questions, f.err
}

type fakeCapture struct {
	mu       sync.Mutex
	err      error
	gate     chan struct{}
	startErr error
	devices  []*fakeDevice
}

func (f *fakeCapture) Acquire(ctx context.Context) (ports.CaptureDevice, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	device := &fakeDevice{name: fmt.Sprintf("cam-%d", len(f.devices)), startErr: f.startErr}
	f.devices = append(f.devices, device)
	return device, nil
}

func (f *fakeCapture) acquired() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.devices)
}

func (f *fakeCapture) device(i int) *fakeDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices[i]
}

type fakeDevice struct {
	name     string
	startErr error

	mu         sync.Mutex
	recordings int
	releases   int
}

func (d *fakeDevice) Name() string { return d.name }

func (d *fakeDevice) StartRecording(context.Context) (ports.Recording, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return nil, d.startErr
	}
	d.recordings++
	return fakeRecording{media: []byte(fmt.Sprintf("%s-take-%d", d.name, d.recordings))}, nil
}

func (d *fakeDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releases++
	return nil
}

func (d *fakeDevice) counts() (recordings int, releases int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recordings, d.releases
}

type fakeRecording struct {
	media []byte
}

func (r fakeRecording) Stop(context.Context) ([]byte, error) {
	return r.media, nil
}

// fakeNarrator records spoken text. With hold set, Speak blocks until its
// context is cancelled.
type fakeNarrator struct {
	unavailable bool
	err         error
	hold        bool

	mu        sync.Mutex
	spoken    []string
	cancelled int
}

func (n *fakeNarrator) Available() bool { return !n.unavailable }

func (n *fakeNarrator) Speak(ctx context.Context, text string) error {
	n.mu.Lock()
	n.spoken = append(n.spoken, text)
	n.mu.Unlock()

	if n.err != nil {
		return n.err
	}
	if !n.hold {
		return nil
	}
	<-ctx.Done()
	n.mu.Lock()
	n.cancelled++
	n.mu.Unlock()
	return ctx.Err()
}

func (n *fakeNarrator) texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.spoken...)
}

func (n *fakeNarrator) cancellations() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cancelled
}

// fakePlayer records played answers. With hold set, Play blocks until its
// context is cancelled.
type fakePlayer struct {
	err  error
	hold bool

	mu        sync.Mutex
	played    []int
	cancelled int
}

func (p *fakePlayer) Play(ctx context.Context, clip domain.Clip) error {
	p.mu.Lock()
	p.played = append(p.played, clip.QuestionIndex)
	p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	if !p.hold {
		return nil
	}
	<-ctx.Done()
	p.mu.Lock()
	p.cancelled++
	p.mu.Unlock()
	return ctx.Err()
}

func (p *fakePlayer) plays() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.played...)
}

func (p *fakePlayer) cancellations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

type fakeUploader struct {
	err   error
	gate  chan struct{}
	block bool

	mu    sync.Mutex
	clips []domain.Clip
	ids   []string
}

func (u *fakeUploader) Upload(ctx context.Context, interviewID string, clip domain.Clip) error {
	if u.block {
		<-ctx.Done()
		return fmt.Errorf("upload answer %d: %w", clip.QuestionIndex, ctx.Err())
	}
	if u.gate != nil {
		select {
		case <-u.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	u.mu.Lock()
	u.clips = append(u.clips, clip)
	u.ids = append(u.ids, interviewID)
	u.mu.Unlock()
	return u.err
}

func (u *fakeUploader) uploaded() []domain.Clip {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]domain.Clip(nil), u.clips...)
}

type fakeIndicator struct {
	mu       sync.Mutex
	started  int
	stopped  int
	complete int
}

func (f *fakeIndicator) RecordingStarted(context.Context) { f.mu.Lock(); f.started++; f.mu.Unlock() }
func (f *fakeIndicator) RecordingStopped(context.Context) { f.mu.Lock(); f.stopped++; f.mu.Unlock() }
func (f *fakeIndicator) SessionComplete(context.Context)  { f.mu.Lock(); f.complete++; f.mu.Unlock() }

func (f *fakeIndicator) counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.stopped, f.complete
}

var errCameraBusy = errors.New("camera busy")

type harness struct {
	t      *testing.T
	clock  *fakeClock
	ctrl   *Controller
	cancel context.CancelFunc
	result chan Result

	mu    sync.Mutex
	snaps []Snapshot
}

func startHarness(t *testing.T, deps Deps, tune func(*Options)) *harness {
	t.Helper()

	h := &harness{t: t, clock: newFakeClock(), result: make(chan Result, 1)}
	opts := Options{
		Params:           domain.Params{JobID: "job-7", InterviewID: "iv-42"},
		AutoStartSeconds: 3,
		AnswerSeconds:    5,
		Settle:           time.Second,
		UploadDrain:      time.Second,
		Clock:            h.clock,
		OnSnapshot: func(s Snapshot) {
			h.mu.Lock()
			h.snaps = append(h.snaps, s)
			h.mu.Unlock()
		},
	}
	if tune != nil {
		tune(&opts)
	}

	h.ctrl = NewController(opts, deps)
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.result <- h.ctrl.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-h.ctrl.Done()
	})
	return h
}

func (h *harness) stop() Result {
	h.cancel()
	select {
	case result := <-h.result:
		return result
	case <-time.After(3 * time.Second):
		h.t.Fatal("controller did not stop")
		return Result{}
	}
}

func (h *harness) waitFor(desc string, cond func(Snapshot) bool) Snapshot {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return cond(h.ctrl.Snapshot()) }, 2*time.Second, time.Millisecond, desc)
	return h.ctrl.Snapshot()
}

func (h *harness) ticks(n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		h.clock.fire(h.t)
	}
}

// runToCompletion fires timers until the session completes.
func (h *harness) runToCompletion() {
	h.t.Helper()
	for {
		select {
		case <-h.ctrl.Completed():
			return
		default:
		}
		require.Eventually(h.t, func() bool {
			select {
			case <-h.ctrl.Completed():
				return true
			default:
				return h.clock.hasPending()
			}
		}, 2*time.Second, time.Millisecond, "session stalled")
		if h.clock.hasPending() {
			h.clock.fire(h.t)
		}
	}
}

func (h *harness) history() []Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Snapshot(nil), h.snaps...)
}
