package feedback

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestManifest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	segmentsPath := filepath.Join(dir, "t-001.segments.json")
	require.NoError(t, os.WriteFile(segmentsPath, []byte(
		`[{"id":"seg-1","start_time":0,"end_time":10,"text":"the committee will come to order"}]`,
	), 0644))

	manifestPath := filepath.Join(dir, "manifest.yaml")
	manifest := fmt.Sprintf(`t-001:
  audio_path: %s
  segments_path: %s
`, filepath.Join(dir, "t-001.wav"), segmentsPath)
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest), 0644))

	return manifestPath
}

func TestManifestResolve(t *testing.T) {
	manifest, err := LoadManifest(writeTestManifest(t))
	require.NoError(t, err)

	assets, err := manifest.Resolve("t-001")
	require.NoError(t, err)
	assert.NotEmpty(t, assets.AudioPath)
	require.Len(t, assets.Segments, 1)
	assert.Equal(t, "seg-1", assets.Segments[0].ID)

	// Second resolve serves the cached segment list
	again, err := manifest.Resolve("t-001")
	require.NoError(t, err)
	assert.Same(t, assets, again)
}

func TestManifestResolveUnknownTranscript(t *testing.T) {
	manifest, err := LoadManifest(writeTestManifest(t))
	require.NoError(t, err)

	_, err = manifest.Resolve("t-999")
	assert.Error(t, err)
}

func TestLoadManifestRequiresPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("t-001:\n  audio_path: only.wav\n"), 0644))

	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segments_path")
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest("/nonexistent/manifest.yaml")
	assert.Error(t, err)
}
