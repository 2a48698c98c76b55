package attribution

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearingdesk/speaker-attribution/pkg/output"
)

var _ output.TableWriter = (*HearingAttribution)(nil)

func TestHearingAttributionWriteTable(t *testing.T) {
	h := &HearingAttribution{
		HearingID:    "sjud-2026-03-14",
		TranscriptID: "t-001",
		Summary: Summary{
			TotalSegments:   10,
			ByMethod:        map[Method]int{MethodVoice: 6, MethodCombined: 3, MethodUnresolved: 1},
			UnresolvedCount: 1,
			AvgConfidence:   0.78,
			Coverage: []SpeakerCoverage{
				{Speaker: "Ted Cruz", SegmentCount: 6, TotalDuration: 420, AvgConfidence: 0.82},
				{Speaker: "Dick Durbin", SegmentCount: 3, TotalDuration: 180, AvgConfidence: 0.71},
			},
			ZeroCoverage:     []string{"Amy Klobuchar"},
			ThresholdVersion: 2,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, h.WriteTable(&buf))

	out := buf.String()
	assert.Contains(t, out, "sjud-2026-03-14")
	assert.Contains(t, out, "Thresholds: v2")
	assert.Contains(t, out, "METHOD")
	assert.Contains(t, out, "voice")
	assert.Contains(t, out, "SPEAKER")
	assert.Contains(t, out, "Ted Cruz")
	assert.Contains(t, out, "Amy Klobuchar")
}

func TestHearingAttributionTableIsDefaultRendering(t *testing.T) {
	h := &HearingAttribution{
		HearingID: "sjud-2026-03-14",
		Summary:   Summary{TotalSegments: 1, ByMethod: map[Method]int{MethodVoice: 1}},
	}

	var buf bytes.Buffer
	require.NoError(t, output.Write(&buf, output.FormatTable, h))
	assert.Contains(t, buf.String(), "METHOD")
}
