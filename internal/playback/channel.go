// Package playback owns the single active narration handle and reports its
// lifecycle to subscribers.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/logger"
)

// DefaultStallTimeout is how long Play waits for the engine to confirm
// playback before nudging it.
const DefaultStallTimeout = 1500 * time.Millisecond

// EventKind identifies a playback transition.
type EventKind int

const (
	EventStarted EventKind = iota
	EventPaused
	EventResumed
	EventEnded
	EventError
	EventStopped
)

// String returns a human-readable event kind.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is one playback transition. State is the channel state right after
// the transition.
type Event struct {
	Kind  EventKind
	Ref   string
	Err   error
	State domain.PlaybackState
}

// Prefetcher is implemented by audio engines that can warm narration ahead
// of playback.
type Prefetcher interface {
	Prefetch(ctx context.Context, ref domain.AudioRef)
}

// Option configures a Channel.
type Option func(*Channel)

// WithStallTimeout sets the watchdog window. Zero disables the watchdog.
func WithStallTimeout(d time.Duration) Option {
	return func(c *Channel) { c.stallTimeout = d }
}

type playOptions struct {
	force bool
}

// PlayOption configures a single Play call.
type PlayOption func(*playOptions)

// WithForceRestart restarts playback even when ref is already loaded.
func WithForceRestart() PlayOption {
	return func(o *playOptions) { o.force = true }
}

// Channel plays one narration at a time.
type Channel struct {
	engine       domain.AudioEngine
	log          *logger.Logger
	stallTimeout time.Duration

	// opMu serializes Play so two loads never race for the slot.
	opMu sync.Mutex

	mu        sync.Mutex
	state     domain.PlaybackState
	handle    domain.AudioHandle
	gen       uint64
	confirmed bool
	watchdog  *time.Timer
	subs      map[int]func(Event)
	nextSub   int
	closed    bool
}

// New creates a playback channel over engine.
func New(engine domain.AudioEngine, log *logger.Logger, opts ...Option) *Channel {
	c := &Channel{
		engine:       engine,
		log:          log.Named("playback"),
		stallTimeout: DefaultStallTimeout,
		subs:         make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ── Control ─────────────────────────────────────────────────────

// Play loads ref and starts it. Playing the ref that is already playing or
// paused is a no-op unless WithForceRestart is given. On failure the
// channel returns to idle and the error is returned.
func (c *Channel) Play(ctx context.Context, ref domain.AudioRef, opts ...PlayOption) error {
	if ref.ID == "" {
		return domain.ErrEmptyRef
	}
	if !c.engine.Supported() {
		return fmt.Errorf("playback: %w", domain.ErrUnsupported)
	}
	var o playOptions
	for _, opt := range opts {
		opt(&o)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrDisposed
	}
	if !o.force && c.state.CurrentRef == ref.ID &&
		(c.state.Status == domain.PlaybackPlaying || c.state.Status == domain.PlaybackPaused) {
		c.mu.Unlock()
		c.log.Debug("%s already loaded, ignoring", ref.ID)
		return nil
	}
	old := c.handle
	oldRef := c.state.CurrentRef
	replaced := c.state.Status == domain.PlaybackPlaying || c.state.Status == domain.PlaybackPaused
	c.handle = nil
	c.gen++
	gen := c.gen
	c.stopWatchdogLocked()
	if replaced {
		c.state = domain.PlaybackState{Status: domain.PlaybackIdle}
	}
	idle := c.state
	c.mu.Unlock()

	if old != nil {
		old.SetListener(nil)
		old.Close()
	}
	// The old ref is not audible while the new one loads.
	if replaced {
		c.emit(Event{Kind: EventStopped, Ref: oldRef, State: idle})
	}

	h, err := c.engine.Load(ctx, ref)
	if err != nil {
		c.fail(gen, ref.ID, err)
		return fmt.Errorf("playback: load %s: %w", ref.ID, err)
	}

	c.mu.Lock()
	if gen != c.gen || c.closed {
		// Stopped while loading.
		c.mu.Unlock()
		h.Close()
		return nil
	}
	c.handle = h
	c.confirmed = false
	c.state = domain.PlaybackState{Status: domain.PlaybackPlaying, CurrentRef: ref.ID}
	st := c.state
	c.mu.Unlock()

	h.SetListener(&handleListener{c: c, gen: gen})
	c.emit(Event{Kind: EventStarted, Ref: ref.ID, State: st})

	if err := h.Play(); err != nil {
		c.fail(gen, ref.ID, err)
		return fmt.Errorf("playback: play %s: %w", ref.ID, err)
	}

	c.mu.Lock()
	if gen == c.gen && !c.confirmed && c.stallTimeout > 0 {
		c.watchdog = time.AfterFunc(c.stallTimeout, func() { c.nudge(gen) })
	}
	c.mu.Unlock()

	c.log.Debug("playing %s", ref.ID)
	return nil
}

// Pause pauses the active narration. No-op when nothing is playing.
func (c *Channel) Pause() {
	c.mu.Lock()
	if c.handle == nil || c.state.Status != domain.PlaybackPlaying {
		c.mu.Unlock()
		return
	}
	h := c.handle
	c.state.Status = domain.PlaybackPaused
	c.stopWatchdogLocked()
	st := c.state
	c.mu.Unlock()

	h.Pause()
	c.emit(Event{Kind: EventPaused, Ref: st.CurrentRef, State: st})
}

// Resume continues paused narration. No-op when nothing is paused.
func (c *Channel) Resume() {
	c.mu.Lock()
	if c.handle == nil || c.state.Status != domain.PlaybackPaused {
		c.mu.Unlock()
		return
	}
	h := c.handle
	gen := c.gen
	c.state.Status = domain.PlaybackPlaying
	st := c.state
	c.mu.Unlock()

	c.emit(Event{Kind: EventResumed, Ref: st.CurrentRef, State: st})
	if err := h.Play(); err != nil {
		c.fail(gen, st.CurrentRef, err)
	}
}

// Stop tears down the current narration and returns to idle. Safe to call
// at any time.
func (c *Channel) Stop() {
	c.mu.Lock()
	h := c.handle
	had := h != nil || c.state.Status != domain.PlaybackIdle
	ref := c.state.CurrentRef
	c.handle = nil
	c.gen++
	c.stopWatchdogLocked()
	c.state = domain.PlaybackState{Status: domain.PlaybackIdle}
	st := c.state
	c.mu.Unlock()

	if h != nil {
		h.SetListener(nil)
		h.Close()
	}
	if had {
		c.log.Debug("stopped %s", ref)
		c.emit(Event{Kind: EventStopped, Ref: ref, State: st})
	}
}

// Close stops playback and drops all subscribers. Later Play calls fail
// with domain.ErrDisposed.
func (c *Channel) Close() {
	c.Stop()
	c.mu.Lock()
	c.closed = true
	c.subs = make(map[int]func(Event))
	c.mu.Unlock()
}

// Prefetch warms ref in the engine if it supports prefetching.
func (c *Channel) Prefetch(ctx context.Context, ref domain.AudioRef) {
	if p, ok := c.engine.(Prefetcher); ok && ref.ID != "" {
		p.Prefetch(ctx, ref)
	}
}

// State returns the current playback state.
func (c *Channel) State() domain.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for every transition and returns a function that
// removes it. fn runs with no channel lock held.
func (c *Channel) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// ── Handle events ───────────────────────────────────────────────

type handleListener struct {
	c   *Channel
	gen uint64
}

var _ domain.AudioListener = (*handleListener)(nil)

func (l *handleListener) OnPlaying()        { l.c.confirm(l.gen) }
func (l *handleListener) OnEnded()          { l.c.finish(l.gen) }
func (l *handleListener) OnError(err error) { l.c.failCurrent(l.gen, err) }

func (c *Channel) confirm(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.confirmed = true
	c.stopWatchdogLocked()
}

// finish handles a natural end.
func (c *Channel) finish(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	h := c.handle
	ref := c.state.CurrentRef
	c.handle = nil
	c.gen++
	c.stopWatchdogLocked()
	c.state = domain.PlaybackState{Status: domain.PlaybackStopped}
	st := c.state
	c.mu.Unlock()

	if h != nil {
		h.Close()
	}
	c.log.Debug("%s ended", ref)
	c.emit(Event{Kind: EventEnded, Ref: ref, State: st})
}

func (c *Channel) failCurrent(gen uint64, err error) {
	c.mu.Lock()
	ref := c.state.CurrentRef
	c.mu.Unlock()
	c.fail(gen, ref, err)
}

// fail resets the channel to idle after an engine error.
func (c *Channel) fail(gen uint64, ref string, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	h := c.handle
	c.handle = nil
	c.gen++
	c.stopWatchdogLocked()
	c.state = domain.PlaybackState{Status: domain.PlaybackIdle}
	st := c.state
	c.mu.Unlock()

	if h != nil {
		h.SetListener(nil)
		h.Close()
	}
	c.log.Error("%s: %v", ref, err)
	c.emit(Event{Kind: EventError, Ref: ref, Err: err, State: st})
}

// nudge pauses and resumes a handle that never confirmed playback. It runs
// at most once per Play.
func (c *Channel) nudge(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.confirmed || c.state.Status != domain.PlaybackPlaying || c.handle == nil {
		c.mu.Unlock()
		return
	}
	h := c.handle
	ref := c.state.CurrentRef
	c.watchdog = nil
	c.mu.Unlock()

	c.log.Warn("%s not confirmed after %s, nudging engine", ref, c.stallTimeout)
	h.Pause()
	if err := h.Play(); err != nil {
		c.fail(gen, ref, err)
	}
}

func (c *Channel) stopWatchdogLocked() {
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
}

func (c *Channel) emit(ev Event) {
	c.mu.Lock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
