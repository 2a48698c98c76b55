package feedback

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
)

// CorrectionSource reads human-verified corrections from the external
// review store. The feedback loop only ever reads corrections.
type CorrectionSource interface {
	Corrections() ([]hearing.Correction, error)
}

// JSONLCorrections reads corrections from a JSON-lines export file, one
// correction object per line
type JSONLCorrections struct {
	Path string
}

// Corrections implements CorrectionSource
func (j *JSONLCorrections) Corrections() ([]hearing.Correction, error) {
	file, err := os.Open(j.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corrections file: %w", err)
	}
	defer file.Close()

	var corrections []hearing.Correction

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var c hearing.Correction
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("corrections line %d: %w", line, err)
		}
		if c.SegmentID == "" || c.Speaker == "" {
			return nil, fmt.Errorf("corrections line %d: segment_id and speaker are required", line)
		}
		corrections = append(corrections, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corrections file: %w", err)
	}

	return corrections, nil
}
