package recognition

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/logger"
)

// ── Fakes ───────────────────────────────────────────────────────

type fakeEngine struct {
	mu          sync.Mutex
	unsupported bool
	listener    domain.RecognitionListener
	starts      int
	stops       int
	startErr    error
	lastCfg     domain.RecognitionConfig
}

func (f *fakeEngine) Supported() bool { return !f.unsupported }

func (f *fakeEngine) SetListener(l domain.RecognitionListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = l
}

func (f *fakeEngine) Start(cfg domain.RecognitionConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.lastCfg = cfg
	return f.startErr
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeEngine) current() domain.RecognitionListener {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listener
}

func (f *fakeEngine) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *fakeEngine) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *fakeEngine) failStarts(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErr = err
}

func (f *fakeEngine) result(text string, final bool) {
	if l := f.current(); l != nil {
		l.OnResult(text, final)
	}
}

func (f *fakeEngine) fail(kind domain.ErrorKind) {
	if l := f.current(); l != nil {
		l.OnError(kind, fmt.Errorf("fake %s", kind))
	}
}

func (f *fakeEngine) end() {
	if l := f.current(); l != nil {
		l.OnEnd()
	}
}

type pausableEngine struct {
	fakeEngine
	pauses  int
	resumes int
}

func (p *pausableEngine) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses++
}

func (p *pausableEngine) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resumes++
}

func newSession(t *testing.T, eng domain.RecognitionEngine, opts ...Option) *Session {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	opts = append([]Option{
		WithRestartDelay(10 * time.Millisecond),
		WithSuccessWindow(20 * time.Millisecond),
	}, opts...)
	s := New(eng, log, opts...)
	t.Cleanup(s.Stop)
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ── Start / Stop ────────────────────────────────────────────────

func TestStartUnsupported(t *testing.T) {
	eng := &fakeEngine{unsupported: true}
	s := newSession(t, eng)

	err := s.Start(Handlers{})
	if !errors.Is(err, domain.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if eng.startCount() != 0 {
		t.Fatal("engine must not be started when unsupported")
	}
	if got := s.State().Status; got != domain.RecognitionFailed {
		t.Fatalf("status = %s, want error", got)
	}
}

func TestStartTwiceIsRejected(t *testing.T) {
	eng := &fakeEngine{}
	s := newSession(t, eng)

	if err := s.Start(Handlers{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(Handlers{}); !errors.Is(err, domain.ErrAlreadyActive) {
		t.Fatalf("second start: got %v, want ErrAlreadyActive", err)
	}
	if eng.startCount() != 1 {
		t.Fatalf("engine starts = %d, want 1", eng.startCount())
	}
	if got := s.State().Status; got != domain.RecognitionListening {
		t.Fatalf("status = %s, want listening", got)
	}
	if !eng.lastCfg.Continuous || !eng.lastCfg.InterimResults || eng.lastCfg.Locale != DefaultLocale {
		t.Fatalf("unexpected engine config %+v", eng.lastCfg)
	}
}

func TestStopWhenIdleIsSafe(t *testing.T) {
	s := newSession(t, &fakeEngine{})
	s.Stop()
	s.Stop()
	if got := s.State().Status; got != domain.RecognitionIdle {
		t.Fatalf("status = %s, want idle", got)
	}
}

// ── Auto-restart ────────────────────────────────────────────────

func TestRestartAfterSpontaneousEnd(t *testing.T) {
	eng := &fakeEngine{}
	s := newSession(t, eng)

	var ended int
	var mu sync.Mutex
	if err := s.Start(Handlers{OnEnded: func() { mu.Lock(); ended++; mu.Unlock() }}); err != nil {
		t.Fatalf("start: %v", err)
	}

	eng.end()
	waitFor(t, "restart", func() bool { return eng.startCount() == 2 })
	waitFor(t, "listening", func() bool { return s.State().Status == domain.RecognitionListening })

	mu.Lock()
	defer mu.Unlock()
	if ended != 1 {
		t.Fatalf("OnEnded calls = %d, want 1", ended)
	}
}

func TestStopSuppressesPendingRestart(t *testing.T) {
	eng := &fakeEngine{}
	s := newSession(t, eng, WithRestartDelay(50*time.Millisecond))

	if err := s.Start(Handlers{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	eng.end()
	s.Stop()

	time.Sleep(120 * time.Millisecond)
	if eng.startCount() != 1 {
		t.Fatalf("engine restarted after stop: starts = %d", eng.startCount())
	}
	if got := s.State().Status; got != domain.RecognitionIdle {
		t.Fatalf("status = %s, want idle", got)
	}
}

func TestFatalErrorDisablesRestart(t *testing.T) {
	eng := &fakeEngine{}
	s := newSession(t, eng)

	var gotErr *domain.RecognitionError
	if err := s.Start(Handlers{OnError: func(e *domain.RecognitionError) { gotErr = e }}); err != nil {
		t.Fatalf("start: %v", err)
	}

	eng.fail(domain.ErrorAudioCapture)
	st := s.State()
	if st.Status != domain.RecognitionFailed {
		t.Fatalf("status = %s, want error", st.Status)
	}
	if gotErr == nil || gotErr.Kind != domain.ErrorAudioCapture {
		t.Fatalf("OnError got %v", gotErr)
	}
	var rerr *domain.RecognitionError
	if !errors.As(st.LastError, &rerr) || rerr.Kind != domain.ErrorAudioCapture {
		t.Fatalf("LastError = %v", st.LastError)
	}

	eng.end()
	time.Sleep(50 * time.Millisecond)
	if eng.startCount() != 1 {
		t.Fatalf("restarted after fatal error: starts = %d", eng.startCount())
	}
	if got := s.State().Status; got != domain.RecognitionFailed {
		t.Fatalf("status after end = %s, want error", got)
	}

	// Caller owns recovery.
	if err := s.Start(Handlers{}); err != nil {
		t.Fatalf("restart by caller: %v", err)
	}
	if eng.startCount() != 2 {
		t.Fatalf("starts = %d, want 2", eng.startCount())
	}
}

func TestFatalErrorReleasesEngine(t *testing.T) {
	eng := &fakeEngine{}
	s := newSession(t, eng)

	if err := s.Start(Handlers{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	eng.fail(domain.ErrorAudioCapture)

	waitFor(t, "engine stop", func() bool { return eng.stopCount() == 1 })
	if got := s.State().Status; got != domain.RecognitionFailed {
		t.Fatalf("status = %s, want error", got)
	}
	if eng.startCount() != 1 {
		t.Fatalf("starts = %d, want 1", eng.startCount())
	}
}

func TestRecoverableErrorIsAbsorbed(t *testing.T) {
	eng := &fakeEngine{}
	s := newSession(t, eng)

	called := false
	if err := s.Start(Handlers{OnError: func(*domain.RecognitionError) { called = true }}); err != nil {
		t.Fatalf("start: %v", err)
	}

	eng.fail(domain.ErrorNoSpeech)
	st := s.State()
	if st.Status != domain.RecognitionListening {
		t.Fatalf("status = %s, want listening", st.Status)
	}
	if st.StatusMessage != "no speech detected" {
		t.Fatalf("status message = %q", st.StatusMessage)
	}
	if called {
		t.Fatal("recoverable error must not reach OnError")
	}

	eng.end()
	waitFor(t, "restart", func() bool { return eng.startCount() == 2 })
}

func TestRestartFailureIsFatal(t *testing.T) {
	eng := &fakeEngine{}
	s := newSession(t, eng)

	if err := s.Start(Handlers{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	eng.failStarts(errors.New("device busy"))
	eng.end()

	waitFor(t, "error state", func() bool { return s.State().Status == domain.RecognitionFailed })
	var rerr *domain.RecognitionError
	if !errors.As(s.State().LastError, &rerr) || rerr.Kind != domain.ErrorRestartFailed {
		t.Fatalf("LastError = %v, want restart-failed", s.State().LastError)
	}
	if s.Active() {
		t.Fatal("session should be inactive after a failed restart")
	}
}

// ── Results ─────────────────────────────────────────────────────

func TestPartialThenFinal(t *testing.T) {
	eng := &fakeEngine{}
	s := newSession(t, eng)

	var finals []string
	var mu sync.Mutex
	h := Handlers{OnFinal: func(text string) {
		mu.Lock()
		finals = append(finals, text)
		mu.Unlock()
	}}
	if err := s.Start(h); err != nil {
		t.Fatalf("start: %v", err)
	}

	eng.result("つぎ", false)
	st := s.State()
	if st.Status != domain.RecognitionProcessing || st.InterimTranscript != "つぎ" {
		t.Fatalf("after partial: %s %q", st.Status, st.InterimTranscript)
	}

	eng.result(" 次に進んで ", true)
	st = s.State()
	if st.Status != domain.RecognitionSuccess {
		t.Fatalf("after final: status = %s, want success", st.Status)
	}
	if st.FinalTranscript != "次に進んで" || st.InterimTranscript != "" {
		t.Fatalf("transcripts: final %q interim %q", st.FinalTranscript, st.InterimTranscript)
	}

	waitFor(t, "success window", func() bool { return s.State().Status == domain.RecognitionListening })

	mu.Lock()
	defer mu.Unlock()
	if len(finals) != 1 || finals[0] != "次に進んで" {
		t.Fatalf("finals = %v", finals)
	}
}

func TestStaleCallbacksIgnored(t *testing.T) {
	eng := &fakeEngine{}
	s := newSession(t, eng)

	got := 0
	if err := s.Start(Handlers{OnFinal: func(string) { got++ }}); err != nil {
		t.Fatalf("start: %v", err)
	}
	old := eng.current()
	s.Stop()

	old.OnResult("next", true)
	old.OnEnd()
	time.Sleep(40 * time.Millisecond)

	if got != 0 {
		t.Fatal("callback from a stopped session reached the handler")
	}
	if eng.startCount() != 1 {
		t.Fatalf("stale end triggered a restart: starts = %d", eng.startCount())
	}
}

// ── Trigger log ─────────────────────────────────────────────────

func TestTriggerLogRetention(t *testing.T) {
	s := newSession(t, &fakeEngine{}, WithTriggerLogSize(3))

	for i := 0; i < 5; i++ {
		s.AppendTrigger(domain.TriggerEntry{Text: fmt.Sprintf("t%d", i), Message: "no command"})
	}

	st := s.State()
	if st.TriggerCount != 5 {
		t.Fatalf("count = %d, want 5", st.TriggerCount)
	}
	if len(st.TriggerLog) != 3 {
		t.Fatalf("retained = %d, want 3", len(st.TriggerLog))
	}
	if st.TriggerLog[0].Text != "t2" || st.TriggerLog[2].Text != "t4" {
		t.Fatalf("unexpected retention: %v", st.TriggerLog)
	}
	if st.TriggerLog[0].At.IsZero() {
		t.Fatal("entry timestamp not filled")
	}

	// State returns a copy.
	st.TriggerLog[0].Text = "mutated"
	if s.State().TriggerLog[0].Text != "t2" {
		t.Fatal("State leaked internal slice")
	}
}

// ── Suspension ──────────────────────────────────────────────────

func TestSuspendPausesEngine(t *testing.T) {
	eng := &pausableEngine{}
	s := newSession(t, eng)

	if err := s.Start(Handlers{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	s.Suspend()
	s.Suspend()
	if !s.Suspended() {
		t.Fatal("expected suspended")
	}
	s.Resume()

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.pauses != 1 || eng.resumes != 1 {
		t.Fatalf("pauses=%d resumes=%d, want 1/1", eng.pauses, eng.resumes)
	}
}

func TestRestartWhileSuspendedStaysPaused(t *testing.T) {
	eng := &pausableEngine{}
	s := newSession(t, eng)

	if err := s.Start(Handlers{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Suspend()
	eng.end()
	waitFor(t, "pause after restart", func() bool {
		eng.mu.Lock()
		defer eng.mu.Unlock()
		return eng.starts == 2 && eng.pauses == 2
	})
}
