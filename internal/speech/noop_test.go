package speech

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/logger"
)

func TestNoOpRecognizerIsUnsupported(t *testing.T) {
	var r NoOpRecognizer
	if r.Supported() {
		t.Fatal("noop recognizer must be unsupported")
	}
	if err := r.Start(domain.RecognitionConfig{}); !errors.Is(err, domain.ErrUnsupported) {
		t.Fatalf("Start = %v", err)
	}
}

func TestNoOpAudioEndsImmediately(t *testing.T) {
	a := NewNoOpAudio(logger.New(logger.LevelOff, nil))
	h, err := a.Load(context.Background(), domain.AudioRef{ID: "step:1", Text: "boil"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ev := newAudioEvents()
	h.SetListener(ev)
	if err := h.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}

	select {
	case <-ev.ended:
	case <-time.After(2 * time.Second):
		t.Fatal("silent handle never ended")
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.playing != 1 {
		t.Fatalf("OnPlaying calls = %d", ev.playing)
	}
}
