package voicefeatures

import (
	"strings"

	"github.com/RyanBlaney/sonido-sonar/transcode"
)

// Audio is decoded mono PCM ready for feature extraction. Hearings are
// decoded once and sliced per segment rather than re-decoded per window.
type Audio struct {
	PCM        []float64
	SampleRate int
}

// Duration returns the clip length in seconds
func (a *Audio) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.PCM)) / float64(a.SampleRate)
}

// Slice returns the PCM span covered by the window, clamped to the clip
func (a *Audio) Slice(window TimeWindow) []float64 {
	return slicePCM(a.PCM, a.SampleRate, &window)
}

// LoadAudio decodes an audio file into normalized mono PCM
func LoadAudio(path string) (*Audio, error) {
	cleanPath := strings.TrimPrefix(path, "file://")

	decoder := transcode.NewNormalizingDecoder("news")
	audioData, err := decoder.DecodeFile(cleanPath)
	if err != nil {
		return nil, &AudioReadError{Path: cleanPath, Cause: err}
	}

	return &Audio{
		PCM:        audioData.PCM,
		SampleRate: audioData.SampleRate,
	}, nil
}
