package domain

import (
	"fmt"
	"time"
)

// RecognitionStatus is the lifecycle state of a recognition session.
type RecognitionStatus int

const (
	RecognitionIdle RecognitionStatus = iota
	RecognitionListening
	RecognitionProcessing
	RecognitionSuccess
	RecognitionFailed
)

// String returns a human-readable recognition status.
func (s RecognitionStatus) String() string {
	switch s {
	case RecognitionIdle:
		return "idle"
	case RecognitionListening:
		return "listening"
	case RecognitionProcessing:
		return "processing"
	case RecognitionSuccess:
		return "success"
	case RecognitionFailed:
		return "error"
	default:
		return "unknown"
	}
}

// TriggerEntry is one line of the trigger log: a final transcript and what
// the classifier made of it.
type TriggerEntry struct {
	ID      string
	At      time.Time
	Text    string
	Intent  Intent
	Message string // e.g. "next detected", "ignored: narrating"
}

// String renders the entry as a single display line.
func (e TriggerEntry) String() string {
	return fmt.Sprintf("[%s] %s: %q", e.At.Format("15:04:05"), e.Message, e.Text)
}

// RecognitionState is the observable state of a recognition session.
type RecognitionState struct {
	Status            RecognitionStatus
	StatusMessage     string
	FinalTranscript   string
	InterimTranscript string
	TriggerLog        []TriggerEntry // most recent entries, oldest first
	TriggerCount      int            // entries ever appended
	LastError         error
}

// PlaybackStatus is the lifecycle state of the playback channel.
type PlaybackStatus int

const (
	PlaybackIdle PlaybackStatus = iota
	PlaybackPlaying
	PlaybackPaused
	PlaybackStopped
)

// String returns a human-readable playback status.
func (s PlaybackStatus) String() string {
	switch s {
	case PlaybackIdle:
		return "idle"
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	case PlaybackStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PlaybackState is the observable state of the playback channel.
// CurrentRef is non-empty whenever Status is playing or paused.
type PlaybackState struct {
	Status     PlaybackStatus
	CurrentRef string
}

// MicSuspended reports whether recognition output must be ignored because
// narration is audible.
func (s PlaybackState) MicSuspended() bool {
	return s.Status == PlaybackPlaying
}

// AudioRef identifies a piece of narration audio. Two refs with the same ID
// are the same audio. Path, when set, points at a pre-recorded file; Text is
// synthesized otherwise.
type AudioRef struct {
	ID   string
	Path string
	Text string
}
