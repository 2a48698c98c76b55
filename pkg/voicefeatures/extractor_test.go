package voicefeatures

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.MinDuration = 1 * time.Second
	return cfg
}

func tonePCM(seconds float64, sampleRate int) []float64 {
	pcm := make([]float64, int(seconds*float64(sampleRate)))
	for i := range pcm {
		pcm[i] = 0.3 * math.Sin(2*math.Pi*220*float64(i)/float64(sampleRate))
	}
	return pcm
}

func TestExtractPCMRejectsShortClip(t *testing.T) {
	e := NewExtractor(testConfig(), nil)

	_, err := e.ExtractPCM(tonePCM(0.5, 16000), 16000)

	var insufficient *InsufficientAudioError
	require.ErrorAs(t, err, &insufficient)
	assert.Contains(t, insufficient.Reason, "minimum analysis window")
	assert.InDelta(t, 0.5, insufficient.Duration, 1e-6)
}

func TestExtractPCMRejectsSilentClip(t *testing.T) {
	e := NewExtractor(testConfig(), nil)

	_, err := e.ExtractPCM(make([]float64, 2*16000), 16000)

	var insufficient *InsufficientAudioError
	require.ErrorAs(t, err, &insufficient)
	assert.Contains(t, insufficient.Reason, "silent")
}

func TestExtractPCMRejectsBadSampleRate(t *testing.T) {
	e := NewExtractor(testConfig(), nil)

	_, err := e.ExtractPCM(tonePCM(2, 16000), 0)
	assert.Error(t, err)

	_, err = e.ExtractPCM(tonePCM(2, 16000), -1)
	assert.Error(t, err)
}

func TestSlicePCMClamps(t *testing.T) {
	pcm := make([]float64, 100)
	for i := range pcm {
		pcm[i] = float64(i)
	}

	got := slicePCM(pcm, 10, &TimeWindow{Start: 1, End: 3})
	require.Len(t, got, 20)
	assert.Equal(t, 10.0, got[0])

	// Clamped to the clip bounds
	got = slicePCM(pcm, 10, &TimeWindow{Start: -5, End: 2})
	assert.Len(t, got, 20)

	got = slicePCM(pcm, 10, &TimeWindow{Start: 8, End: 50})
	assert.Len(t, got, 20)

	// Degenerate windows produce nothing
	assert.Nil(t, slicePCM(pcm, 10, &TimeWindow{Start: 50, End: 60}))
	assert.Nil(t, slicePCM(pcm, 10, &TimeWindow{Start: 5, End: 5}))
	assert.Nil(t, slicePCM(pcm, 10, &TimeWindow{Start: 7, End: 3}))
}

func TestAudioDurationAndSlice(t *testing.T) {
	audio := &Audio{PCM: make([]float64, 320), SampleRate: 16}
	assert.Equal(t, 20.0, audio.Duration())
	assert.Len(t, audio.Slice(TimeWindow{Start: 0, End: 10}), 160)

	empty := &Audio{PCM: nil, SampleRate: 0}
	assert.Equal(t, 0.0, empty.Duration())
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, rms(nil))
	assert.Equal(t, 0.0, rms(make([]float64, 10)))
	assert.InDelta(t, 0.5, rms([]float64{0.5, -0.5, 0.5, -0.5}), 1e-9)
}
