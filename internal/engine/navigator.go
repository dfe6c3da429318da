// Package engine implements the step cursor and the navigator that drives
// it from recognized speech while keeping the microphone quiet during
// narration.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/hammamikhairi/ottonav/internal/command"
	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/logger"
	"github.com/hammamikhairi/ottonav/internal/playback"
	"github.com/hammamikhairi/ottonav/internal/recognition"
)

// Recognizer is the recognition session the navigator listens through.
type Recognizer interface {
	Start(h recognition.Handlers) error
	Stop()
	State() domain.RecognitionState
	AppendTrigger(e domain.TriggerEntry)
	Suspend()
	Resume()
}

// Player is the playback channel narration goes through.
type Player interface {
	Play(ctx context.Context, ref domain.AudioRef, opts ...playback.PlayOption) error
	Stop()
	State() domain.PlaybackState
	Subscribe(fn func(playback.Event)) (unsubscribe func())
	Prefetch(ctx context.Context, ref domain.AudioRef)
}

// Classifier turns a final transcript into keyword matches.
type Classifier interface {
	Match(text string) command.Match
}

var (
	_ Recognizer = (*recognition.Session)(nil)
	_ Player     = (*playback.Channel)(nil)
	_ Classifier = (*command.Classifier)(nil)
)

// State is a snapshot of everything the presentation layer shows.
type State struct {
	ID           string
	Showing      bool
	Index        int
	Total        int
	Complete     bool
	Step         domain.Step
	Steps        []domain.Step
	Recognition  domain.RecognitionState
	Playback     domain.PlaybackState
	MicSuspended bool
	LastError    error
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithClassifier replaces the default keyword classifier.
func WithClassifier(c Classifier) Option {
	return func(n *Navigator) { n.classifier = c }
}

// WithNarrationTimeout bounds how long loading one narration may take.
func WithNarrationTimeout(d time.Duration) Option {
	return func(n *Navigator) { n.narrationTimeout = d }
}

// WithClock sets the time source for trigger log entries.
func WithClock(now func() time.Time) Option {
	return func(n *Navigator) { n.now = now }
}

// Navigator moves a cursor over a step sequence in response to voice and
// manual commands and narrates the step under the cursor.
type Navigator struct {
	id               string
	rec              Recognizer
	player           Player
	classifier       Classifier
	log              *logger.Logger
	narrationTimeout time.Duration
	now              func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	seq      domain.StepSequence
	cursor   *Cursor
	showing  bool
	lastErr  error
	disposed bool
	subs     map[int]func(State)
	nextSub  int
	depth    int
	dirty    bool

	// narrateMu serializes Play calls; narrateSeq lets a newer request
	// supersede older ones still waiting.
	narrateMu  sync.Mutex
	narrateSeq uint64

	// micMu makes reading playback state and applying it to recognition
	// one step, so concurrent playback events cannot apply stale state.
	micMu sync.Mutex

	unsubPlayer func()
}

// NewNavigator wires a navigator to its recognition session and playback
// channel.
func NewNavigator(rec Recognizer, player Player, log *logger.Logger, opts ...Option) *Navigator {
	n := &Navigator{
		id:               newID(),
		rec:              rec,
		player:           player,
		log:              log.Named("navigator"),
		narrationTimeout: 15 * time.Second,
		now:              time.Now,
		cursor:           NewCursor(0),
		subs:             make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.classifier == nil {
		n.classifier = command.MustNew()
	}
	n.ctx, n.cancel = context.WithCancel(context.Background())
	n.unsubPlayer = player.Subscribe(n.handlePlayback)
	n.log.Debug("created %s", n.id)
	return n
}

// ── Listening ───────────────────────────────────────────────────

// Start begins listening for voice commands.
func (n *Navigator) Start() error {
	if n.isDisposed() {
		return domain.ErrDisposed
	}
	err := n.rec.Start(recognition.Handlers{
		OnFinal:  n.handleFinal,
		OnError:  func(e *domain.RecognitionError) { n.recordError(e) },
		OnChange: func(domain.RecognitionState) { n.changed() },
	})
	if err != nil {
		n.log.Warn("start listening: %v", err)
		n.recordError(err)
		return err
	}
	n.syncMic()
	return nil
}

// Stop stops listening. Playback is unaffected.
func (n *Navigator) Stop() {
	n.rec.Stop()
	n.changed()
}

// ── Sequence ────────────────────────────────────────────────────

// SelectSequence installs steps, resets the cursor and narrates the first
// step. An empty sequence leaves the navigator out of step mode.
func (n *Navigator) SelectSequence(seq domain.StepSequence) error {
	var first domain.Step
	var narrate bool
	err := n.batch(func() error {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.disposed {
			return domain.ErrDisposed
		}
		n.seq = seq
		n.cursor = NewCursor(seq.Len())
		n.showing = seq.Len() > 0
		n.lastErr = nil
		n.dirty = true
		first, narrate = seq.At(0)
		return nil
	})
	if err != nil {
		return err
	}
	n.log.Info("sequence selected (%d steps)", seq.Len())
	if narrate {
		n.narrate(first, false)
	}
	return nil
}

// ClearSequence leaves step mode and stops narration.
func (n *Navigator) ClearSequence() {
	n.batch(func() error {
		n.mu.Lock()
		n.seq = domain.StepSequence{}
		n.cursor = NewCursor(0)
		n.showing = false
		n.dirty = true
		n.mu.Unlock()
		return nil
	})
	n.bumpNarration()
	n.narrateMu.Lock()
	n.player.Stop()
	n.narrateMu.Unlock()
}

// ── Manual commands ─────────────────────────────────────────────

// Next advances one step and narrates it.
func (n *Navigator) Next() error { return n.manual(domain.IntentNext) }

// Previous goes back one step and narrates it.
func (n *Navigator) Previous() error { return n.manual(domain.IntentPrevious) }

// Repeat narrates the current step again from the start.
func (n *Navigator) Repeat() error { return n.manual(domain.IntentRepeat) }

// GoTo jumps to step i (clamped) and narrates it.
func (n *Navigator) GoTo(i int) error {
	var step domain.Step
	var moved bool
	err := n.batch(func() error {
		n.mu.Lock()
		defer n.mu.Unlock()
		if err := n.readyLocked(); err != nil {
			return err
		}
		moved = n.cursor.SetIndex(i)
		step, _ = n.seq.At(n.cursor.Index())
		n.dirty = n.dirty || moved
		return nil
	})
	if err == nil && moved {
		n.narrate(step, false)
	}
	return err
}

// Manual commands are not gated by playback: pressing next while a step is
// narrated cuts it off.
func (n *Navigator) manual(intent domain.Intent) error {
	var step domain.Step
	var narrate, force bool
	err := n.batch(func() error {
		n.mu.Lock()
		defer n.mu.Unlock()
		if err := n.readyLocked(); err != nil {
			return err
		}
		narrate, force = n.applyLocked(intent)
		step, _ = n.seq.At(n.cursor.Index())
		return nil
	})
	if err == nil && narrate {
		n.narrate(step, force)
	}
	return err
}

func (n *Navigator) readyLocked() error {
	if n.disposed {
		return domain.ErrDisposed
	}
	if !n.showing {
		return domain.ErrNoSequence
	}
	return nil
}

// applyLocked mutates the cursor for intent and reports whether narration
// should follow.
func (n *Navigator) applyLocked(intent domain.Intent) (narrate, force bool) {
	switch intent {
	case domain.IntentNext:
		narrate = n.cursor.Advance()
	case domain.IntentPrevious:
		narrate = n.cursor.Retreat()
	case domain.IntentRepeat:
		narrate, force = true, true
	}
	if narrate {
		n.dirty = true
	}
	return narrate, force
}

// ── Voice commands ──────────────────────────────────────────────

func (n *Navigator) handleFinal(text string) {
	m := n.classifier.Match(text)
	intent := m.Intent()

	var step domain.Step
	var narrate, force bool
	var entry domain.TriggerEntry

	n.batch(func() error {
		n.mu.Lock()
		if n.disposed {
			n.mu.Unlock()
			return nil
		}

		// Checked here, at the mutation point, not when the transcript
		// arrived: narration may have started in between.
		muted := n.player.State().MicSuspended()

		var msg string
		switch {
		case m.Ambiguous():
			msg = "ambiguous, ignored"
		case intent == domain.IntentNone:
			msg = "no command"
		case !n.showing:
			msg = intent.String() + " detected, no steps"
		case muted:
			msg = intent.String() + " ignored: narrating"
		default:
			msg = intent.String() + " detected"
			narrate, force = n.applyLocked(intent)
			step, _ = n.seq.At(n.cursor.Index())
		}
		n.mu.Unlock()

		entry = domain.TriggerEntry{
			ID:      newID(),
			At:      n.now(),
			Text:    text,
			Intent:  intent,
			Message: msg,
		}
		n.rec.AppendTrigger(entry)
		return nil
	})

	if entry.Message != "" {
		n.log.Debug("%s", entry)
	}
	if narrate {
		n.narrate(step, force)
	}
}

// ── Narration ───────────────────────────────────────────────────

func (n *Navigator) bumpNarration() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.narrateSeq++
	return n.narrateSeq
}

// narrate plays step in the background. Only the most recent request is
// played; a failure is recorded and never moves the cursor.
func (n *Navigator) narrate(step domain.Step, force bool) {
	seq := n.bumpNarration()
	go func() {
		n.narrateMu.Lock()
		defer n.narrateMu.Unlock()

		n.mu.Lock()
		stale := n.disposed || seq != n.narrateSeq
		n.mu.Unlock()
		if stale {
			return
		}

		ctx, cancel := context.WithTimeout(n.ctx, n.narrationTimeout)
		defer cancel()

		var opts []playback.PlayOption
		if force {
			opts = append(opts, playback.WithForceRestart())
		}
		if err := n.player.Play(ctx, step.Narration(), opts...); err != nil {
			n.log.Warn("narrate %s: %v", step.ID, err)
			n.recordError(err)
			return
		}
		n.prefetchAfter(step)
	}()
}

// prefetchAfter warms narration for the step following step. The warm-up
// runs in the background past the narration that triggered it, so it is
// bound to the navigator's lifetime rather than to that narration.
func (n *Navigator) prefetchAfter(step domain.Step) {
	n.mu.Lock()
	next, ok := n.seq.At(n.cursor.Index() + 1)
	current, _ := n.seq.At(n.cursor.Index())
	n.mu.Unlock()
	if !ok || current.ID != step.ID {
		return
	}
	n.player.Prefetch(n.ctx, next.Narration())
}

// ── Playback coupling ───────────────────────────────────────────

func (n *Navigator) handlePlayback(ev playback.Event) {
	n.syncMic()
	if ev.Kind == playback.EventError && ev.Err != nil {
		n.recordError(ev.Err)
		return
	}
	n.changed()
}

// syncMic suspends recognition while narration is audible and resumes it
// on any other playback state, whether playback ended, stopped or failed.
func (n *Navigator) syncMic() {
	n.micMu.Lock()
	defer n.micMu.Unlock()
	if n.player.State().MicSuspended() {
		n.rec.Suspend()
	} else {
		n.rec.Resume()
	}
}

// ── State ───────────────────────────────────────────────────────

// State returns a snapshot of the navigator and its components.
func (n *Navigator) State() State {
	n.mu.Lock()
	st := State{
		ID:        n.id,
		Showing:   n.showing,
		Index:     n.cursor.Index(),
		Total:     n.cursor.Total(),
		Complete:  n.cursor.IsComplete(),
		Steps:     n.seq.Steps(),
		LastError: n.lastErr,
	}
	st.Step, _ = n.seq.At(n.cursor.Index())
	n.mu.Unlock()

	st.Recognition = n.rec.State()
	st.Playback = n.player.State()
	st.MicSuspended = st.Playback.MicSuspended()
	return st
}

// Subscribe registers fn to receive a snapshot after each observable change
// and returns a function that removes it.
func (n *Navigator) Subscribe(fn func(State)) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// batch runs fn with notifications deferred, then publishes once if
// anything changed. Batches nest.
func (n *Navigator) batch(fn func() error) error {
	n.mu.Lock()
	n.depth++
	n.mu.Unlock()

	err := fn()

	n.mu.Lock()
	n.depth--
	fire := n.depth == 0 && n.dirty && !n.disposed
	if fire {
		n.dirty = false
	}
	n.mu.Unlock()

	if fire {
		n.publish()
	}
	return err
}

// changed marks state dirty and publishes unless a batch is open.
func (n *Navigator) changed() {
	n.batch(func() error {
		n.mu.Lock()
		n.dirty = true
		n.mu.Unlock()
		return nil
	})
}

func (n *Navigator) publish() {
	st := n.State()
	n.mu.Lock()
	fns := make([]func(State), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

func (n *Navigator) recordError(err error) {
	n.batch(func() error {
		n.mu.Lock()
		n.lastErr = err
		n.dirty = true
		n.mu.Unlock()
		return nil
	})
}

func (n *Navigator) isDisposed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.disposed
}

// ── Teardown ────────────────────────────────────────────────────

// Dispose stops recognition, stops playback and detaches from both, in that
// order. No callback mutates the navigator afterwards. Safe to call twice.
func (n *Navigator) Dispose() {
	n.mu.Lock()
	if n.disposed {
		n.mu.Unlock()
		return
	}
	n.disposed = true
	n.mu.Unlock()

	n.rec.Stop()

	n.cancel()
	n.narrateMu.Lock()
	n.player.Stop()
	n.narrateMu.Unlock()

	n.unsubPlayer()
	n.mu.Lock()
	n.subs = make(map[int]func(State))
	n.mu.Unlock()

	n.log.Debug("disposed %s", n.id)
}
