package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
)

func TestCorrectionLedgerRoundTrip(t *testing.T) {
	ledger := NewCorrectionLedger(testDB(t))

	seen, err := ledger.Seen("t-001", "seg-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, ledger.Mark([]hearing.Correction{
		{TranscriptID: "t-001", SegmentID: "seg-1", Speaker: "Ted Cruz"},
		{TranscriptID: "t-001", SegmentID: "seg-2", Speaker: "Ted Cruz"},
	}))

	seen, err = ledger.Seen("t-001", "seg-1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = ledger.Seen("t-001", "seg-2")
	require.NoError(t, err)
	assert.True(t, seen)

	// Same segment in another transcript is a different correction
	seen, err = ledger.Seen("t-002", "seg-1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestCorrectionLedgerMarkIsIdempotent(t *testing.T) {
	ledger := NewCorrectionLedger(testDB(t))
	c := hearing.Correction{TranscriptID: "t-001", SegmentID: "seg-1", Speaker: "Ted Cruz"}

	require.NoError(t, ledger.Mark([]hearing.Correction{c}))
	require.NoError(t, ledger.Mark([]hearing.Correction{c}))

	seen, err := ledger.Seen("t-001", "seg-1")
	require.NoError(t, err)
	assert.True(t, seen)
}
