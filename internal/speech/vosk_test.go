package speech

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/logger"
)

type silentSource struct {
	mu     sync.Mutex
	reads  int
	err    error
	closed bool
}

func (s *silentSource) Read(buf []int16) error {
	time.Sleep(time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.err
}

func (s *silentSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// scriptedDecoder completes one utterance per scripted entry, one per
// Accept call, then stays silent.
type scriptedDecoder struct {
	mu      sync.Mutex
	script  []string
	current string
	resets  int
	freed   bool
}

func (d *scriptedDecoder) Accept([]byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.script) == 0 {
		return false
	}
	d.current, d.script = d.script[0], d.script[1:]
	return true
}

func (d *scriptedDecoder) Result() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return `{"text": "` + d.current + `"}`
}

func (d *scriptedDecoder) Partial() string { return `{"partial": ""}` }
func (d *scriptedDecoder) Final() string   { return `{"text": ""}` }

func (d *scriptedDecoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
}

func (d *scriptedDecoder) Free() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.freed = true
}

type recordingListener struct {
	mu      sync.Mutex
	starts  int
	finals  []string
	errs    []domain.ErrorKind
	ends    int
	endedCh chan struct{}
}

func newRecordingListener() *recordingListener {
	return &recordingListener{endedCh: make(chan struct{}, 4)}
}

func (r *recordingListener) OnStart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
}

func (r *recordingListener) OnResult(text string, final bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if final {
		r.finals = append(r.finals, text)
	}
}

func (r *recordingListener) OnError(kind domain.ErrorKind, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, kind)
}

func (r *recordingListener) OnEnd() {
	r.mu.Lock()
	r.ends++
	r.mu.Unlock()
	r.endedCh <- struct{}{}
}

func (r *recordingListener) waitEnd(t *testing.T) {
	t.Helper()
	select {
	case <-r.endedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not end")
	}
}

func newTestVosk(src *silentSource, dec *scriptedDecoder, silence time.Duration) *VoskRecognizer {
	return newVosk(
		func() (sampleSource, error) { return src, nil },
		func() (decoder, error) { return dec, nil },
		logger.New(logger.LevelOff, nil),
		WithSilenceTimeout(silence),
	)
}

func TestVoskFinalsThenSilenceEnds(t *testing.T) {
	src := &silentSource{}
	dec := &scriptedDecoder{script: []string{"next", "[BLANK_AUDIO]", "previous"}}
	v := newTestVosk(src, dec, 30*time.Millisecond)
	l := newRecordingListener()
	v.SetListener(l)

	if err := v.Start(domain.RecognitionConfig{Continuous: true, InterimResults: true}); err != nil {
		t.Fatalf("start: %v", err)
	}
	l.waitEnd(t)
	v.Stop()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.starts != 1 {
		t.Fatalf("starts = %d", l.starts)
	}
	if len(l.finals) != 2 || l.finals[0] != "next" || l.finals[1] != "previous" {
		t.Fatalf("finals = %v", l.finals)
	}
	if len(l.errs) != 0 {
		t.Fatalf("unexpected errors %v after speech", l.errs)
	}
	if !dec.freed || !src.closed {
		t.Fatal("run did not release its resources")
	}
}

func TestVoskSilentRunReportsNoSpeech(t *testing.T) {
	v := newTestVosk(&silentSource{}, &scriptedDecoder{}, 20*time.Millisecond)
	l := newRecordingListener()
	v.SetListener(l)

	_ = v.Start(domain.RecognitionConfig{})
	l.waitEnd(t)

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errs) != 1 || l.errs[0] != domain.ErrorNoSpeech {
		t.Fatalf("errors = %v, want [no-speech]", l.errs)
	}
}

func TestVoskCaptureErrorIsReported(t *testing.T) {
	v := newTestVosk(&silentSource{err: errors.New("unplugged")}, &scriptedDecoder{}, time.Second)
	l := newRecordingListener()
	v.SetListener(l)

	_ = v.Start(domain.RecognitionConfig{})
	l.waitEnd(t)

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errs) != 1 || l.errs[0] != domain.ErrorAudioCapture {
		t.Fatalf("errors = %v, want [audio-capture]", l.errs)
	}
}

func TestVoskPauseDropsAudio(t *testing.T) {
	dec := &scriptedDecoder{script: []string{"next"}}
	v := newTestVosk(&silentSource{}, dec, time.Second)
	l := newRecordingListener()
	v.SetListener(l)
	v.Pause()

	_ = v.Start(domain.RecognitionConfig{})
	time.Sleep(30 * time.Millisecond)
	v.Stop()

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.finals) != 0 {
		t.Fatalf("paused engine produced %v", l.finals)
	}
	if l.ends != 0 {
		t.Fatal("stopped run must not report OnEnd")
	}
	dec.mu.Lock()
	defer dec.mu.Unlock()
	if dec.resets != 1 {
		t.Fatalf("decoder resets = %d, want 1", dec.resets)
	}
}
