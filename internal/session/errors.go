package session

import "errors"

var (
	// ErrEmptyRecording indicates the session stopped before any audio arrived.
	ErrEmptyRecording = errors.New("no audio captured; stopped before any input arrived")
	// ErrSessionBusy indicates a start while another session still holds the device.
	ErrSessionBusy = errors.New("capture session already active")
	// ErrCancelled indicates the utterance was discarded without transcription.
	ErrCancelled = errors.New("capture cancelled")
	// ErrNoActiveSession indicates stop/cancel with nothing recording.
	ErrNoActiveSession = errors.New("no active capture session")

	errNoHandoff = errors.New("no transcriber configured")
)
