package hearing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadRoster(t *testing.T) {
	path := writeFile(t, "roster.yaml", `hearing_id: sjud-2026-03-14
committee: Senate Judiciary
entries:
  - name: Dick Durbin
    role: chair
    state: Illinois
  - name: Ted Cruz
    role: ranking
    state: Texas
    aliases: ["Rafael Edward Cruz"]
`)

	roster, err := LoadRoster(path)
	require.NoError(t, err)

	assert.Equal(t, "sjud-2026-03-14", roster.HearingID)
	require.Len(t, roster.Entries, 2)
	assert.Equal(t, RoleChair, roster.Entries[0].Role)
	assert.Equal(t, []string{"Rafael Edward Cruz"}, roster.Entries[1].Aliases)
}

func TestLoadRosterRejectsInvalidRole(t *testing.T) {
	path := writeFile(t, "roster.yaml", `entries:
  - name: Ted Cruz
    role: intern
`)

	_, err := LoadRoster(path)
	assert.Error(t, err)
}

func TestLoadSegments(t *testing.T) {
	path := writeFile(t, "segments.json",
		`[{"id":"seg-1","start_time":0,"end_time":12.5,"text":"the committee will come to order"},
		  {"id":"seg-2","start_time":12.5,"end_time":30,"provisional_speaker":"SPEAKER_02"}]`)

	segments, err := LoadSegments(path)
	require.NoError(t, err)

	require.Len(t, segments, 2)
	assert.Equal(t, 12.5, segments[0].EndTime)
	assert.Equal(t, "SPEAKER_02", segments[1].ProvisionalSpeaker)
}

func TestLoadSegmentsRejectsBadTiming(t *testing.T) {
	path := writeFile(t, "segments.json",
		`[{"id":"seg-1","start_time":20,"end_time":10}]`)

	_, err := LoadSegments(path)
	assert.Error(t, err)
}

func TestLoadMissingFiles(t *testing.T) {
	_, err := LoadRoster("/nonexistent/roster.yaml")
	assert.Error(t, err)

	_, err = LoadSegments("/nonexistent/segments.json")
	assert.Error(t, err)
}
