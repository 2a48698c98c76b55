package hearing

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRoster reads a candidate roster from a YAML file
func LoadRoster(path string) (*CandidateRoster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}

	roster := &CandidateRoster{}
	if err := yaml.Unmarshal(data, roster); err != nil {
		return nil, fmt.Errorf("failed to parse roster file: %w", err)
	}

	if err := roster.Validate(); err != nil {
		return nil, fmt.Errorf("invalid roster: %w", err)
	}

	return roster, nil
}

// LoadSegments reads an ordered transcript segment list from a JSON file
func LoadSegments(path string) ([]TranscriptSegment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read segments file: %w", err)
	}

	var segments []TranscriptSegment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("failed to parse segments file: %w", err)
	}

	for i := range segments {
		if err := segments[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid segment %d: %w", i, err)
		}
	}

	return segments, nil
}
