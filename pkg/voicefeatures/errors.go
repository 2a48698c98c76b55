package voicefeatures

import "fmt"

// AudioReadError indicates the audio file could not be read or decoded
type AudioReadError struct {
	Path  string
	Cause error
}

func (e *AudioReadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to read audio %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("failed to read audio %s", e.Path)
}

func (e *AudioReadError) Unwrap() error {
	return e.Cause
}

// InsufficientAudioError indicates the clip is too short or effectively
// silent for feature analysis
type InsufficientAudioError struct {
	Reason   string
	Duration float64
}

func (e *InsufficientAudioError) Error() string {
	return fmt.Sprintf("insufficient audio: %s (%.2fs)", e.Reason, e.Duration)
}
