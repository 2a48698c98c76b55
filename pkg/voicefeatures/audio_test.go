package voicefeatures

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAudioMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-clip.wav")

	audio, err := LoadAudio(missing)
	require.Nil(t, audio)

	var readErr *AudioReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, missing, readErr.Path)
}

func TestLoadAudioTrimsFileScheme(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-clip.wav")

	_, err := LoadAudio("file://" + missing)

	var readErr *AudioReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, missing, readErr.Path)
}

func TestAudioDuration(t *testing.T) {
	a := &Audio{PCM: make([]float64, 32000), SampleRate: 16000}
	assert.InDelta(t, 2.0, a.Duration(), 1e-9)

	assert.Zero(t, (&Audio{PCM: make([]float64, 100)}).Duration())
}
