package domain

import (
	"context"
	"time"
)

// RecipeSource provides recipes. Implementations can be in-memory (hardcoded),
// file-based, or API-backed.
type RecipeSource interface {
	List(ctx context.Context) ([]RecipeSummary, error)
	Get(ctx context.Context, id string) (*Recipe, error)
}

// RecognitionConfig is fixed for the lifetime of a recognition session.
type RecognitionConfig struct {
	Locale         string
	Continuous     bool
	InterimResults bool
}

// RecognitionListener receives callbacks from a RecognitionEngine. Calls may
// arrive on any goroutine.
type RecognitionListener interface {
	OnStart()
	OnResult(text string, final bool)
	OnError(kind ErrorKind, err error)
	OnEnd()
}

// RecognitionEngine is a continuous speech recognizer. Start begins one
// listening session; the engine may end it on its own (silence timeout,
// platform policy), reporting OnEnd.
type RecognitionEngine interface {
	Supported() bool
	SetListener(l RecognitionListener) // nil detaches
	Start(cfg RecognitionConfig) error
	Stop()
}

// PausableEngine is implemented by recognition engines that can mute the
// microphone without ending the session.
type PausableEngine interface {
	Pause()
	Resume()
}

// AudioListener receives lifecycle callbacks for one audio handle.
type AudioListener interface {
	OnPlaying()
	OnEnded()
	OnError(err error)
}

// AudioHandle is one loaded piece of audio. Play starts or resumes playback
// asynchronously; completion is reported through the listener.
type AudioHandle interface {
	SetListener(l AudioListener)
	Play() error
	Pause()
	Close()
}

// AudioEngine loads narration audio for playback.
type AudioEngine interface {
	Supported() bool
	Load(ctx context.Context, ref AudioRef) (AudioHandle, error)
}

// Synthesizer converts text to WAV audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber records for a fixed duration and returns the transcript.
// It backs the record-then-transcribe fallback path.
type Transcriber interface {
	Transcribe(ctx context.Context, d time.Duration) (string, error)
}
