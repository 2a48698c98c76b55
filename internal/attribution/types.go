package attribution

import (
	"fmt"
	"time"

	"github.com/hearingdesk/speaker-attribution/pkg/textpattern"
)

// UnknownSpeaker is the assignment when no signal resolves a segment
const UnknownSpeaker = "Unknown"

// Method labels how a segment's speaker assignment was reached
type Method string

const (
	MethodVoice         Method = "voice"
	MethodText          Method = "text"
	MethodCombined      Method = "combined"
	MethodLowConfidence Method = "low_confidence"
	MethodUnresolved    Method = "unresolved"
)

// ThresholdSet is the versioned set of cutoffs governing the fusion decision
// ladder. All matching code reads thresholds from here; nothing hardcodes a
// cutoff inline.
type ThresholdSet struct {
	Version int       `msgpack:"version" json:"version" yaml:"version"`
	SavedAt time.Time `msgpack:"saved_at" json:"saved_at" yaml:"saved_at"`

	// HighConfidenceOverride: at or above this voice similarity, voice wins
	// outright regardless of text
	HighConfidenceOverride float64 `msgpack:"high_confidence_override" json:"high_confidence_override" yaml:"high_confidence_override"`

	// MediumConfidenceBoost: at or above this voice similarity, voice leads
	// and agreeing text boosts the combined confidence
	MediumConfidenceBoost float64 `msgpack:"medium_confidence_boost" json:"medium_confidence_boost" yaml:"medium_confidence_boost"`

	// MinimumUsable: below this voice similarity, the acoustic signal is
	// discarded entirely
	MinimumUsable float64 `msgpack:"minimum_usable" json:"minimum_usable" yaml:"minimum_usable"`

	// VoiceWeight and TextWeight blend agreeing signals in the combined case
	VoiceWeight float64 `msgpack:"voice_weight" json:"voice_weight" yaml:"voice_weight"`
	TextWeight  float64 `msgpack:"text_weight" json:"text_weight" yaml:"text_weight"`

	// LowConfidenceCeiling caps confidence when only a weak signal remains
	LowConfidenceCeiling float64 `msgpack:"low_confidence_ceiling" json:"low_confidence_ceiling" yaml:"low_confidence_ceiling"`
}

// DefaultThresholdSet returns the starting cutoffs. The numbers are
// empirical defaults; the optimization loop retunes them against correction
// history, so only the ordering constraints in Validate are load-bearing.
func DefaultThresholdSet() *ThresholdSet {
	return &ThresholdSet{
		Version:                1,
		SavedAt:                time.Now().UTC(),
		HighConfidenceOverride: 0.85,
		MediumConfidenceBoost:  0.60,
		MinimumUsable:          0.40,
		VoiceWeight:            0.60,
		TextWeight:             0.40,
		LowConfidenceCeiling:   0.45,
	}
}

// Validate enforces the ordering the decision ladder depends on
func (t *ThresholdSet) Validate() error {
	for name, v := range map[string]float64{
		"high_confidence_override": t.HighConfidenceOverride,
		"medium_confidence_boost":  t.MediumConfidenceBoost,
		"minimum_usable":           t.MinimumUsable,
		"voice_weight":             t.VoiceWeight,
		"text_weight":              t.TextWeight,
		"low_confidence_ceiling":   t.LowConfidenceCeiling,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, v)
		}
	}

	if t.MinimumUsable >= t.MediumConfidenceBoost {
		return fmt.Errorf("minimum_usable (%.2f) must be below medium_confidence_boost (%.2f)",
			t.MinimumUsable, t.MediumConfidenceBoost)
	}
	if t.MediumConfidenceBoost >= t.HighConfidenceOverride {
		return fmt.Errorf("medium_confidence_boost (%.2f) must be below high_confidence_override (%.2f)",
			t.MediumConfidenceBoost, t.HighConfidenceOverride)
	}
	if sum := t.VoiceWeight + t.TextWeight; sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("voice_weight and text_weight must sum to 1, got %f", sum)
	}

	return nil
}

// Evidence records what each signal contributed to one assignment, kept for
// review and for threshold optimization replay
type Evidence struct {
	VoiceScores     map[string]float64  `msgpack:"voice_scores" json:"voice_scores,omitempty"`
	VoiceCandidate  string              `msgpack:"voice_candidate" json:"voice_candidate,omitempty"`
	VoiceConfidence float64             `msgpack:"voice_confidence" json:"voice_confidence"`
	TextMatches     []textpattern.Match `msgpack:"text_matches" json:"text_matches,omitempty"`
	TextCandidate   string              `msgpack:"text_candidate" json:"text_candidate,omitempty"`
	TextConfidence  float64             `msgpack:"text_confidence" json:"text_confidence"`

	ThresholdsVersion int `msgpack:"thresholds_version" json:"thresholds_version"`
}

// Result is the attribution outcome for one transcript segment
type Result struct {
	SegmentID  string   `json:"segment_id"`
	Speaker    string   `json:"speaker"`
	Confidence float64  `json:"confidence"`
	Method     Method   `json:"method"`
	Evidence   Evidence `json:"evidence"`

	// Segment timing, carried through for correction analytics
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration_s"`

	// Error records a per-segment processing failure. A failed segment is
	// reported as unresolved; it never aborts the rest of the hearing.
	Error error `json:"-"`
}

// SpeakerCoverage summarizes attribution volume for one roster entry
type SpeakerCoverage struct {
	Speaker       string  `json:"speaker"`
	SegmentCount  int     `json:"segment_count"`
	TotalDuration float64 `json:"total_duration_s"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// HearingAttribution is the full output for one hearing
type HearingAttribution struct {
	HearingID    string    `json:"hearing_id"`
	TranscriptID string    `json:"transcript_id"`
	Results      []Result  `json:"results"`
	Summary      Summary   `json:"summary"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// Summary aggregates hearing-level attribution statistics
type Summary struct {
	TotalSegments    int               `json:"total_segments"`
	ByMethod         map[Method]int    `json:"by_method"`
	UnresolvedCount  int               `json:"unresolved_count"`
	FailedCount      int               `json:"failed_count"`
	AvgConfidence    float64           `json:"avg_confidence"`
	Coverage         []SpeakerCoverage `json:"coverage"`
	ZeroCoverage     []string          `json:"zero_coverage,omitempty"`
	ThresholdVersion int               `json:"threshold_version"`
}
