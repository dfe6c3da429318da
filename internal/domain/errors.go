package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnsupported   = errors.New("not supported on this platform")
	ErrAlreadyActive = errors.New("already active")
	ErrNoSequence    = errors.New("no step sequence selected")
	ErrDisposed      = errors.New("navigator disposed")
	ErrEmptyRef      = errors.New("empty audio reference")
)

// ErrorKind names a recognition engine failure.
type ErrorKind string

// Error kinds reported by recognition engines.
const (
	ErrorNoSpeech      ErrorKind = "no-speech"
	ErrorAborted       ErrorKind = "aborted"
	ErrorAudioCapture  ErrorKind = "audio-capture"
	ErrorNetwork       ErrorKind = "network"
	ErrorNotAllowed    ErrorKind = "not-allowed"
	ErrorUnsupported   ErrorKind = "unsupported"
	ErrorRestartFailed ErrorKind = "restart-failed"
	ErrorEngine        ErrorKind = "engine"
)

// RecognitionError is a recognition failure with its kind and optional
// underlying cause.
type RecognitionError struct {
	Kind ErrorKind
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recognition %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("recognition %s", e.Kind)
}

func (e *RecognitionError) Unwrap() error { return e.Err }
