package hearing

import (
	"fmt"
	"time"
)

// RosterRole identifies a speaker's role in a hearing
type RosterRole string

const (
	RoleChair   RosterRole = "chair"
	RoleRanking RosterRole = "ranking"
	RoleMember  RosterRole = "member"
	RoleWitness RosterRole = "witness"
)

// RosterEntry represents one candidate speaker for a hearing
type RosterEntry struct {
	Name    string     `json:"name" yaml:"name"`
	Role    RosterRole `json:"role" yaml:"role"`
	State   string     `json:"state,omitempty" yaml:"state,omitempty"`
	Aliases []string   `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// Validate checks that the entry has the required fields
func (e *RosterEntry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("roster entry name is required")
	}

	switch e.Role {
	case RoleChair, RoleRanking, RoleMember, RoleWitness:
	default:
		return fmt.Errorf("invalid roster role: %s (must be chair, ranking, member, or witness)", e.Role)
	}

	return nil
}

// CandidateRoster is the closed set of candidate speakers for one hearing
type CandidateRoster struct {
	HearingID string        `json:"hearing_id" yaml:"hearing_id"`
	Committee string        `json:"committee,omitempty" yaml:"committee,omitempty"`
	Entries   []RosterEntry `json:"entries" yaml:"entries"`
}

// Validate validates the roster. An empty roster is tolerated: attribution
// degrades to "Unknown" rather than failing.
func (r *CandidateRoster) Validate() error {
	for i := range r.Entries {
		if err := r.Entries[i].Validate(); err != nil {
			return fmt.Errorf("invalid roster entry %d: %w", i, err)
		}
	}
	return nil
}

// FindByRole returns the first enabled entry holding the given role
func (r *CandidateRoster) FindByRole(role RosterRole) *RosterEntry {
	for i := range r.Entries {
		if r.Entries[i].Role == role {
			return &r.Entries[i]
		}
	}
	return nil
}

// FindByName returns the entry with the given display name
func (r *CandidateRoster) FindByName(name string) *RosterEntry {
	for i := range r.Entries {
		if r.Entries[i].Name == name {
			return &r.Entries[i]
		}
	}
	return nil
}

// TranscriptSegment is one contiguous span of speech from the transcription
// engine. The provisional speaker tag is untrusted input, not ground truth.
type TranscriptSegment struct {
	ID                 string  `json:"id"`
	StartTime          float64 `json:"start_time"`
	EndTime            float64 `json:"end_time"`
	Text               string  `json:"text"`
	ProvisionalSpeaker string  `json:"provisional_speaker,omitempty"`
}

// Duration returns the segment length in seconds
func (s *TranscriptSegment) Duration() float64 {
	return s.EndTime - s.StartTime
}

// Validate checks segment timing
func (s *TranscriptSegment) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("segment id is required")
	}
	if s.EndTime < s.StartTime {
		return fmt.Errorf("segment %s: end time %.2f before start time %.2f", s.ID, s.EndTime, s.StartTime)
	}
	return nil
}

// Correction is a human-verified speaker assignment for one segment.
// Owned by the external review store; this core only reads it.
type Correction struct {
	TranscriptID string    `json:"transcript_id"`
	SegmentID    string    `json:"segment_id"`
	Speaker      string    `json:"speaker"`
	Confidence   float64   `json:"confidence"`
	Reviewer     string    `json:"reviewer"`
	CorrectedAt  time.Time `json:"corrected_at"`
}

// VoiceSample is a short audio clip attributed to one candidate speaker by
// external source metadata. Immutable after creation.
type VoiceSample struct {
	ID             string        `json:"id"`
	SpeakerID      string        `json:"speaker_id"`
	Source         string        `json:"source"`
	SourceURL      string        `json:"source_url"`
	FilePath       string        `json:"file_path"`
	Duration       time.Duration `json:"duration"`
	QualityScore   float64       `json:"quality_score"`
	RelevanceScore float64       `json:"relevance_score"`
	CollectedAt    time.Time     `json:"collected_at"`
}
