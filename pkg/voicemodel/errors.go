package voicemodel

import (
	"errors"
	"fmt"
)

// ErrModelNotFound indicates no usable model exists for a speaker. Callers
// must treat this as "no acoustic opinion", not as a negative match.
var ErrModelNotFound = errors.New("no voice model for speaker")

// ErrDegenerateCovariance indicates training collapsed onto a degenerate
// distribution and no model was produced
var ErrDegenerateCovariance = errors.New("training produced degenerate covariance")

// InsufficientSamplesError indicates too few feature vectors were supplied
// to train a speaker model
type InsufficientSamplesError struct {
	SpeakerID string
	Got       int
	Min       int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("insufficient training samples for %s: got %d, need %d", e.SpeakerID, e.Got, e.Min)
}
