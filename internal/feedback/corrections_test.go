package feedback

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestJSONLCorrectionsReads(t *testing.T) {
	path := writeTempFile(t, "corrections.jsonl",
		`{"transcript_id":"t-001","segment_id":"seg-001","speaker":"Ted Cruz","reviewer":"editor-1"}

{"transcript_id":"t-001","segment_id":"seg-002","speaker":"Amy Klobuchar","confidence":0.95}
`)

	source := &JSONLCorrections{Path: path}
	corrections, err := source.Corrections()
	require.NoError(t, err)

	require.Len(t, corrections, 2)
	assert.Equal(t, "Ted Cruz", corrections[0].Speaker)
	assert.Equal(t, "editor-1", corrections[0].Reviewer)
	assert.Equal(t, "seg-002", corrections[1].SegmentID)
	assert.Equal(t, 0.95, corrections[1].Confidence)
}

func TestJSONLCorrectionsRejectsMalformedLine(t *testing.T) {
	path := writeTempFile(t, "corrections.jsonl",
		`{"transcript_id":"t-001","segment_id":"seg-001","speaker":"Ted Cruz"}
not json
`)

	_, err := (&JSONLCorrections{Path: path}).Corrections()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestJSONLCorrectionsRequiresSegmentAndSpeaker(t *testing.T) {
	path := writeTempFile(t, "corrections.jsonl",
		`{"transcript_id":"t-001","segment_id":"seg-001"}
`)

	_, err := (&JSONLCorrections{Path: path}).Corrections()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "speaker")
}

func TestJSONLCorrectionsMissingFile(t *testing.T) {
	_, err := (&JSONLCorrections{Path: "/nonexistent/corrections.jsonl"}).Corrections()
	assert.Error(t, err)
}
