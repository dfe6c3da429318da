package speech

import (
	"context"
	"sync"

	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/logger"
)

// Compile-time interface checks.
var (
	_ domain.RecognitionEngine = (*NoOpRecognizer)(nil)
	_ domain.AudioEngine       = (*NoOpAudio)(nil)
)

// NoOpRecognizer is used when voice input is disabled. It reports itself
// unsupported, so a recognition session started on it fails cleanly.
type NoOpRecognizer struct{}

func (NoOpRecognizer) Supported() bool                      { return false }
func (NoOpRecognizer) SetListener(domain.RecognitionListener) {}
func (NoOpRecognizer) Start(domain.RecognitionConfig) error { return domain.ErrUnsupported }
func (NoOpRecognizer) Stop()                                {}

// NoOpAudio is used when narration audio is disabled. Every handle plays
// instantly and ends right away, so navigation behaves as if the narration
// were very short.
type NoOpAudio struct {
	log *logger.Logger
}

// NewNoOpAudio creates a silent audio engine.
func NewNoOpAudio(log *logger.Logger) *NoOpAudio {
	return &NoOpAudio{log: log.Named("noop-audio")}
}

func (a *NoOpAudio) Supported() bool { return true }

func (a *NoOpAudio) Load(ctx context.Context, ref domain.AudioRef) (domain.AudioHandle, error) {
	a.log.Debug("would narrate %s: %q", ref.ID, ref.Text)
	return &silentHandle{}, nil
}

type silentHandle struct {
	mu       sync.Mutex
	listener domain.AudioListener
	closed   bool
}

func (h *silentHandle) SetListener(l domain.AudioListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listener = l
}

// Play reports playing, then ends asynchronously like a real device would.
func (h *silentHandle) Play() error {
	h.mu.Lock()
	l := h.listener
	h.mu.Unlock()
	if l == nil {
		return nil
	}
	l.OnPlaying()
	go func() {
		h.mu.Lock()
		closed := h.closed
		h.mu.Unlock()
		if !closed {
			l.OnEnded()
		}
	}()
	return nil
}

func (h *silentHandle) Pause() {}

func (h *silentHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}
