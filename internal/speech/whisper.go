package speech

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/logger"
)

// WhisperOption configures a WhisperRecognizer.
type WhisperOption func(*WhisperRecognizer)

// WithRecordDuration sets the length of each recorded chunk.
func WithRecordDuration(d time.Duration) WhisperOption {
	return func(w *WhisperRecognizer) { w.recordDuration = d }
}

// WithSilenceGap sets the pause between chunks.
func WithSilenceGap(d time.Duration) WhisperOption {
	return func(w *WhisperRecognizer) { w.silenceGap = d }
}

// WithMaxFailures sets how many consecutive transcription failures end the
// run with an engine error.
func WithMaxFailures(n int) WhisperOption {
	return func(w *WhisperRecognizer) { w.maxFailures = n }
}

// WhisperRecognizer is the degraded record-then-transcribe path for
// machines without a streaming model. It records fixed chunks, transcribes
// each one and reports only final results.
type WhisperRecognizer struct {
	transcriber    domain.Transcriber
	log            *logger.Logger
	recordDuration time.Duration
	silenceGap     time.Duration
	maxFailures    int

	mu       sync.Mutex
	listener domain.RecognitionListener
	muted    bool
	cancel   context.CancelFunc
	done     chan struct{}
}

var (
	_ domain.RecognitionEngine = (*WhisperRecognizer)(nil)
	_ domain.PausableEngine    = (*WhisperRecognizer)(nil)
)

// NewWhisperRecognizer creates a fallback recognizer over transcriber.
func NewWhisperRecognizer(transcriber domain.Transcriber, log *logger.Logger, opts ...WhisperOption) *WhisperRecognizer {
	w := &WhisperRecognizer{
		transcriber:    transcriber,
		log:            log.Named("whisper"),
		recordDuration: 3 * time.Second,
		silenceGap:     200 * time.Millisecond,
		maxFailures:    3,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Supported reports whether a transcriber is configured.
func (w *WhisperRecognizer) Supported() bool {
	if s, ok := w.transcriber.(interface{ Available() bool }); ok {
		return s.Available()
	}
	return w.transcriber != nil
}

// SetListener sets the callback target. nil detaches.
func (w *WhisperRecognizer) SetListener(l domain.RecognitionListener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listener = l
}

// Start begins the record loop. Interim results are never produced.
func (w *WhisperRecognizer) Start(domain.RecognitionConfig) error {
	w.wait()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w.mu.Lock()
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	go w.run(ctx, done)
	return nil
}

// Stop ends the loop and waits for the current chunk to be abandoned.
func (w *WhisperRecognizer) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	w.wait()
}

// Pause stops recording until Resume (e.g. during narration).
func (w *WhisperRecognizer) Pause() {
	w.mu.Lock()
	w.muted = true
	w.mu.Unlock()
	w.log.Debug("muted")
}

// Resume re-enables recording.
func (w *WhisperRecognizer) Resume() {
	w.mu.Lock()
	w.muted = false
	w.mu.Unlock()
	w.log.Debug("unmuted")
}

func (w *WhisperRecognizer) wait() {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (w *WhisperRecognizer) state() (domain.RecognitionListener, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.listener, w.muted
}

func (w *WhisperRecognizer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	w.log.Info("started (chunk=%s)", w.recordDuration)
	if l, _ := w.state(); l != nil {
		l.OnStart()
	}

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, muted := w.state(); muted {
			sleepCtx(ctx, 100*time.Millisecond)
			continue
		}

		text, err := w.transcriber.Transcribe(ctx, w.recordDuration)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			w.log.Warn("transcription failed (%d/%d): %v", failures, w.maxFailures, err)
			if failures >= w.maxFailures {
				if l, _ := w.state(); l != nil {
					l.OnError(domain.ErrorEngine, err)
					l.OnEnd()
				}
				return
			}
			sleepCtx(ctx, time.Second)
			continue
		}
		failures = 0

		// Audio recorded while narration started is contaminated.
		l, muted := w.state()
		if muted {
			w.log.Debug("discarding chunk recorded during narration")
			continue
		}

		if text = cleanTranscript(text); text != "" && l != nil {
			w.log.Debug("heard %q", text)
			l.OnResult(text, true)
		}
		sleepCtx(ctx, w.silenceGap)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// ── whisper-cli transcriber ─────────────────────────────────────

// WhisperCLI records from the default microphone and transcribes each
// chunk with a local whisper-cli binary and GGML model.
type WhisperCLI struct {
	bin     string
	model   string
	tempDir string
	log     *logger.Logger
}

var _ domain.Transcriber = (*WhisperCLI)(nil)

// NewWhisperCLI creates a transcriber. tempDir holds the intermediate WAV
// files.
func NewWhisperCLI(bin, model, tempDir string, log *logger.Logger) *WhisperCLI {
	return &WhisperCLI{bin: bin, model: model, tempDir: tempDir, log: log.Named("whisper-cli")}
}

// Available reports whether the whisper binary is on PATH.
func (c *WhisperCLI) Available() bool {
	if _, err := exec.LookPath(c.bin); err != nil {
		c.log.Error("binary %q not found: %v", c.bin, err)
		return false
	}
	return true
}

// Transcribe records for d and returns the transcript.
func (c *WhisperCLI) Transcribe(ctx context.Context, d time.Duration) (string, error) {
	result := make(chan string, 1)
	verbose := c.log.GetLevel() >= logger.LevelVerbose

	t, err := audiotranscriber.NewTranscriber(c.bin, c.model, c.tempDir, "wav",
		func(text string) { result <- text }, verbose)
	if err != nil {
		return "", fmt.Errorf("transcriber init: %w", err)
	}
	if err := t.Start(); err != nil {
		return "", fmt.Errorf("recording: %w", err)
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
	t.Stop()

	select {
	case text := <-result:
		return text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
