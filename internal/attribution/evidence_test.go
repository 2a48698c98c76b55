package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvidenceLogAppendAndList(t *testing.T) {
	log := NewEvidenceLog(testDB(t), nil)

	require.NoError(t, log.Append("t-001", &Result{
		SegmentID:  "seg-001",
		Speaker:    "Ted Cruz",
		Confidence: 0.91,
		Method:     MethodVoice,
		StartTime:  120.0,
		Duration:   14.5,
		Evidence: Evidence{
			VoiceCandidate:    "Ted Cruz",
			VoiceConfidence:   0.91,
			VoiceScores:       map[string]float64{"Ted Cruz": 0.91, "Amy Klobuchar": 0.22},
			ThresholdsVersion: 1,
		},
	}))
	require.NoError(t, log.Append("t-001", &Result{
		SegmentID: "seg-002",
		Speaker:   UnknownSpeaker,
		Method:    MethodUnresolved,
	}))
	require.NoError(t, log.Append("t-002", &Result{
		SegmentID: "seg-001",
		Speaker:   "Amy Klobuchar",
		Method:    MethodText,
	}))

	records, err := log.List("t-001")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "seg-001", records[0].SegmentID)
	assert.Equal(t, "Ted Cruz", records[0].Speaker)
	assert.Equal(t, MethodVoice, records[0].Method)
	assert.Equal(t, 120.0, records[0].StartTime)
	assert.Equal(t, 14.5, records[0].Duration)
	assert.Equal(t, 0.91, records[0].Evidence.VoiceScores["Ted Cruz"])
	assert.False(t, records[0].RecordedAt.IsZero())

	all, err := log.All()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestEvidenceLogReplaceSameSegment(t *testing.T) {
	log := NewEvidenceLog(testDB(t), nil)

	require.NoError(t, log.Append("t-001", &Result{SegmentID: "seg-001", Speaker: "Ted Cruz", Method: MethodVoice}))
	require.NoError(t, log.Append("t-001", &Result{SegmentID: "seg-001", Speaker: "Amy Klobuchar", Method: MethodText}))

	records, err := log.List("t-001")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Amy Klobuchar", records[0].Speaker)
}

func TestEvidenceLogEmptyTranscript(t *testing.T) {
	log := NewEvidenceLog(testDB(t), nil)

	records, err := log.List("missing")
	require.NoError(t, err)
	assert.Empty(t, records)
}
