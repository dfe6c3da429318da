// Package recognition wraps a continuous speech recognition engine in a
// session that restarts itself when the engine ends on its own.
//
// A Session owns three pieces of mutable state: the observable
// RecognitionState, the restart timer and the success-window timer. Every
// engine callback is tagged with the generation it was registered under, so
// callbacks and timers from a stopped session are ignored.
package recognition

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/logger"
)

// Defaults.
const (
	DefaultRestartDelay   = 100 * time.Millisecond
	DefaultSuccessWindow  = 500 * time.Millisecond
	DefaultTriggerLogSize = 50
	DefaultLocale         = "ja-JP"
)

// Option configures a Session.
type Option func(*Session)

// WithLocale sets the recognition locale. It is fixed for the session.
func WithLocale(locale string) Option {
	return func(s *Session) { s.locale = locale }
}

// WithInterimResults toggles partial transcripts.
func WithInterimResults(on bool) Option {
	return func(s *Session) { s.interim = on }
}

// WithRestartDelay sets the debounce between a spontaneous end and the
// restart attempt.
func WithRestartDelay(d time.Duration) Option {
	return func(s *Session) { s.restartDelay = d }
}

// WithSuccessWindow sets how long the success status is shown before the
// session reverts to listening.
func WithSuccessWindow(d time.Duration) Option {
	return func(s *Session) { s.successWindow = d }
}

// WithRecoverable replaces the set of error kinds that are absorbed instead
// of ending the session.
func WithRecoverable(kinds ...domain.ErrorKind) Option {
	return func(s *Session) {
		s.recoverable = make(map[domain.ErrorKind]bool, len(kinds))
		for _, k := range kinds {
			s.recoverable[k] = true
		}
	}
}

// WithTriggerLogSize sets how many trigger entries are retained for display.
func WithTriggerLogSize(n int) Option {
	return func(s *Session) { s.logSize = n }
}

// Handlers receive session events. Any field may be nil. Handlers run on
// the engine's or a timer's goroutine with no session lock held, but must
// not call Start or Stop synchronously.
type Handlers struct {
	OnPartial func(text string)
	OnFinal   func(text string)
	OnError   func(err *domain.RecognitionError)
	OnEnded   func()
	OnChange  func(state domain.RecognitionState)
}

// Session manages one auto-restarting listening session.
type Session struct {
	engine domain.RecognitionEngine
	log    *logger.Logger

	locale        string
	interim       bool
	restartDelay  time.Duration
	successWindow time.Duration
	recoverable   map[domain.ErrorKind]bool
	logSize       int

	// opMu serializes engine Start/Stop so a restart firing concurrently
	// with Stop cannot leave the engine running.
	opMu sync.Mutex

	mu           sync.Mutex
	state        domain.RecognitionState
	handlers     Handlers
	gen          uint64
	active       bool
	autoRestart  bool
	suspended    bool
	restartTimer *time.Timer
	successTimer *time.Timer
	finals       uint64
}

// New creates a session around engine. The session is idle until Start.
func New(engine domain.RecognitionEngine, log *logger.Logger, opts ...Option) *Session {
	s := &Session{
		engine:        engine,
		log:           log.Named("recognition"),
		locale:        DefaultLocale,
		interim:       true,
		restartDelay:  DefaultRestartDelay,
		successWindow: DefaultSuccessWindow,
		recoverable:   map[domain.ErrorKind]bool{domain.ErrorNoSpeech: true},
		logSize:       DefaultTriggerLogSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logSize <= 0 {
		s.logSize = DefaultTriggerLogSize
	}
	s.state.StatusMessage = "idle"
	return s
}

func (s *Session) config() domain.RecognitionConfig {
	return domain.RecognitionConfig{
		Locale:         s.locale,
		Continuous:     true,
		InterimResults: s.interim,
	}
}

// ── Lifecycle ───────────────────────────────────────────────────

// Start begins listening. It fails with domain.ErrUnsupported when the
// engine is unavailable and domain.ErrAlreadyActive when already started.
func (s *Session) Start(h Handlers) error {
	if !s.engine.Supported() {
		err := &domain.RecognitionError{Kind: domain.ErrorUnsupported, Err: domain.ErrUnsupported}
		s.mu.Lock()
		s.state.Status = domain.RecognitionFailed
		s.state.StatusMessage = "speech recognition is not supported"
		s.state.LastError = err
		st := s.snapshotLocked()
		s.mu.Unlock()
		emit(h, st)
		return fmt.Errorf("recognition: %w", domain.ErrUnsupported)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return domain.ErrAlreadyActive
	}
	s.gen++
	gen := s.gen
	s.active = true
	s.autoRestart = true
	s.handlers = h
	s.state.LastError = nil
	s.state.InterimTranscript = ""
	suspended := s.suspended
	s.mu.Unlock()

	s.engine.SetListener(&listener{s: s, gen: gen})
	if err := s.engine.Start(s.config()); err != nil {
		s.engine.SetListener(nil)
		rerr := &domain.RecognitionError{Kind: domain.ErrorEngine, Err: err}
		s.fail(gen, rerr)
		return fmt.Errorf("recognition: start: %w", err)
	}
	if suspended {
		s.pauseEngine()
	}

	s.mu.Lock()
	if s.gen == gen && s.state.Status != domain.RecognitionFailed {
		s.state.Status = domain.RecognitionListening
		s.state.StatusMessage = "listening"
	}
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info("started (locale=%s)", s.locale)
	emit(h, st)
	return nil
}

// Stop ends the session and disables auto-restart. Pending timers are
// cancelled before Stop returns. Safe to call at any time.
func (s *Session) Stop() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	wasActive := s.active
	s.gen++
	s.active = false
	s.autoRestart = false
	s.cancelTimersLocked()
	h := s.handlers
	s.handlers = Handlers{}
	s.state.Status = domain.RecognitionIdle
	s.state.StatusMessage = "stopped"
	s.state.InterimTranscript = ""
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.engine.SetListener(nil)
	s.engine.Stop()

	if wasActive {
		s.log.Info("stopped")
	}
	emit(h, st)
}

// Active reports whether the session is started and not fatally failed.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// State returns a copy of the current recognition state.
func (s *Session) State() domain.RecognitionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ── Suspension ──────────────────────────────────────────────────

// Suspend mutes the engine while narration plays, if the engine supports
// pausing. The session stays active and the restart policy is unaffected.
func (s *Session) Suspend() {
	s.mu.Lock()
	if s.suspended {
		s.mu.Unlock()
		return
	}
	s.suspended = true
	active := s.active
	s.mu.Unlock()

	if active {
		s.log.Debug("suspended")
		s.pauseEngine()
	}
}

// Resume undoes Suspend.
func (s *Session) Resume() {
	s.mu.Lock()
	if !s.suspended {
		s.mu.Unlock()
		return
	}
	s.suspended = false
	active := s.active
	s.mu.Unlock()

	if active {
		s.log.Debug("resumed")
		if p, ok := s.engine.(domain.PausableEngine); ok {
			p.Resume()
		}
	}
}

// Suspended reports whether Suspend is in effect.
func (s *Session) Suspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}

func (s *Session) pauseEngine() {
	if p, ok := s.engine.(domain.PausableEngine); ok {
		p.Pause()
	}
}

// ── Trigger log ─────────────────────────────────────────────────

// AppendTrigger records a classified transcript. Only the most recent
// entries are retained; TriggerCount keeps the full count.
func (s *Session) AppendTrigger(e domain.TriggerEntry) {
	s.mu.Lock()
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.state.TriggerLog = append(s.state.TriggerLog, e)
	if over := len(s.state.TriggerLog) - s.logSize; over > 0 {
		s.state.TriggerLog = append([]domain.TriggerEntry(nil), s.state.TriggerLog[over:]...)
	}
	s.state.TriggerCount++
	h := s.handlers
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Debug("trigger %s", e)
	emit(h, st)
}

// ── Engine events ───────────────────────────────────────────────

// listener adapts engine callbacks to one session generation.
type listener struct {
	s   *Session
	gen uint64
}

var _ domain.RecognitionListener = (*listener)(nil)

func (l *listener) OnStart()                               { l.s.handleStart(l.gen) }
func (l *listener) OnResult(text string, final bool)       { l.s.handleResult(l.gen, text, final) }
func (l *listener) OnError(kind domain.ErrorKind, e error) { l.s.handleError(l.gen, kind, e) }
func (l *listener) OnEnd()                                 { l.s.handleEnd(l.gen) }

func (s *Session) handleStart(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.active {
		s.mu.Unlock()
		return
	}
	s.state.Status = domain.RecognitionListening
	s.state.StatusMessage = "listening"
	s.state.InterimTranscript = ""
	h := s.handlers
	st := s.snapshotLocked()
	s.mu.Unlock()

	emit(h, st)
}

func (s *Session) handleResult(gen uint64, text string, final bool) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if gen != s.gen || !s.active {
		s.mu.Unlock()
		return
	}
	h := s.handlers

	if !final {
		if text == "" {
			s.mu.Unlock()
			return
		}
		s.state.Status = domain.RecognitionProcessing
		s.state.StatusMessage = "hearing..."
		s.state.InterimTranscript = text
		st := s.snapshotLocked()
		s.mu.Unlock()

		if h.OnPartial != nil {
			h.OnPartial(text)
		}
		emit(h, st)
		return
	}

	s.state.InterimTranscript = ""
	if text == "" {
		s.state.Status = domain.RecognitionListening
		s.state.StatusMessage = "listening"
		st := s.snapshotLocked()
		s.mu.Unlock()
		emit(h, st)
		return
	}

	s.state.Status = domain.RecognitionSuccess
	s.state.StatusMessage = "heard"
	s.state.FinalTranscript = text
	s.finals++
	seq := s.finals
	if s.successTimer != nil {
		s.successTimer.Stop()
	}
	s.successTimer = time.AfterFunc(s.successWindow, func() { s.endSuccessWindow(gen, seq) })
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Debug("final %q", text)
	if h.OnFinal != nil {
		h.OnFinal(text)
	}
	emit(h, st)
}

func (s *Session) endSuccessWindow(gen, seq uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.active || seq != s.finals || s.state.Status != domain.RecognitionSuccess {
		s.mu.Unlock()
		return
	}
	s.successTimer = nil
	s.state.Status = domain.RecognitionListening
	s.state.StatusMessage = "listening"
	h := s.handlers
	st := s.snapshotLocked()
	s.mu.Unlock()

	emit(h, st)
}

func (s *Session) handleError(gen uint64, kind domain.ErrorKind, err error) {
	rerr := &domain.RecognitionError{Kind: kind, Err: err}

	s.mu.Lock()
	if gen != s.gen || !s.active {
		s.mu.Unlock()
		return
	}
	if s.recoverable[kind] {
		s.state.StatusMessage = recoverableMessage(kind)
		h := s.handlers
		st := s.snapshotLocked()
		s.mu.Unlock()

		s.log.Debug("recoverable error: %v", rerr)
		emit(h, st)
		return
	}
	s.mu.Unlock()

	s.fail(gen, rerr)
}

func (s *Session) handleEnd(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	h := s.handlers
	if s.active && s.autoRestart {
		s.state.StatusMessage = "restarting"
		if s.restartTimer != nil {
			s.restartTimer.Stop()
		}
		s.restartTimer = time.AfterFunc(s.restartDelay, func() { s.restart(gen) })
		s.log.Debug("engine ended, restarting in %s", s.restartDelay)
	} else {
		s.active = false
		if s.state.Status != domain.RecognitionFailed {
			s.state.Status = domain.RecognitionIdle
			s.state.StatusMessage = "ended"
		}
		s.state.InterimTranscript = ""
	}
	st := s.snapshotLocked()
	s.mu.Unlock()

	if h.OnEnded != nil {
		h.OnEnded()
	}
	emit(h, st)
}

// restart re-runs the engine for gen. The flags checked at schedule time
// are checked again here because Stop or a fatal error may have happened
// while the timer was pending.
func (s *Session) restart(gen uint64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if gen != s.gen || !s.active || !s.autoRestart {
		s.mu.Unlock()
		return
	}
	s.restartTimer = nil
	suspended := s.suspended
	s.mu.Unlock()

	if err := s.engine.Start(s.config()); err != nil {
		s.fail(gen, &domain.RecognitionError{Kind: domain.ErrorRestartFailed, Err: err})
		return
	}
	if suspended {
		s.pauseEngine()
	}

	s.mu.Lock()
	if gen == s.gen && s.state.Status != domain.RecognitionFailed {
		s.state.Status = domain.RecognitionListening
		s.state.StatusMessage = "listening"
	}
	h := s.handlers
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Debug("restarted")
	emit(h, st)
}

// fail moves the session to the error state and disables auto-restart.
// The caller recovers by calling Start again.
func (s *Session) fail(gen uint64, rerr *domain.RecognitionError) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.autoRestart = false
	s.cancelTimersLocked()
	s.state.Status = domain.RecognitionFailed
	s.state.StatusMessage = rerr.Error()
	s.state.InterimTranscript = ""
	s.state.LastError = rerr
	h := s.handlers
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Error("%v", rerr)
	if h.OnError != nil {
		h.OnError(rerr)
	}
	emit(h, st)

	// fail can run on the engine's own callback goroutine, and engine Stop
	// waits for that goroutine to return.
	go s.releaseEngine(gen)
}

// releaseEngine stops an engine left running by a fatal error, unless the
// caller has started or stopped the session since.
func (s *Session) releaseEngine(gen uint64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	current := gen == s.gen && !s.active
	s.mu.Unlock()
	if !current {
		return
	}
	s.engine.Stop()
	s.log.Debug("engine released after fatal error")
}

// ── Helpers ─────────────────────────────────────────────────────

func (s *Session) cancelTimersLocked() {
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
	if s.successTimer != nil {
		s.successTimer.Stop()
		s.successTimer = nil
	}
}

func (s *Session) snapshotLocked() domain.RecognitionState {
	st := s.state
	st.TriggerLog = append([]domain.TriggerEntry(nil), s.state.TriggerLog...)
	return st
}

func emit(h Handlers, st domain.RecognitionState) {
	if h.OnChange != nil {
		h.OnChange(st)
	}
}

func recoverableMessage(kind domain.ErrorKind) string {
	switch kind {
	case domain.ErrorNoSpeech:
		return "no speech detected"
	default:
		return string(kind)
	}
}
