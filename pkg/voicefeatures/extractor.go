package voicefeatures

import (
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/sonido-sonar/fingerprint/analyzers"
	"github.com/RyanBlaney/sonido-sonar/fingerprint/config"
	"github.com/RyanBlaney/sonido-sonar/fingerprint/extractors"

	"github.com/hearingdesk/speaker-attribution/pkg/logging"
)

// Config contains feature extraction settings
type Config struct {
	WindowSize       int           `json:"window_size" yaml:"window_size"`
	HopSize          int           `json:"hop_size" yaml:"hop_size"`
	MFCCCoefficients int           `json:"mfcc_coefficients" yaml:"mfcc_coefficients"`
	MinDuration      time.Duration `json:"min_duration" yaml:"min_duration"`
	SilenceRMSFloor  float64       `json:"silence_rms_floor" yaml:"silence_rms_floor"`
}

// DefaultConfig returns extraction settings tuned for hearing-room speech
func DefaultConfig() *Config {
	return &Config{
		WindowSize:       1024,
		HopSize:          256,
		MFCCCoefficients: NumMFCC,
		MinDuration:      3 * time.Second,
		SilenceRMSFloor:  1e-4,
	}
}

// TimeWindow selects a sub-span of an audio file, in seconds
type TimeWindow struct {
	Start float64
	End   float64
}

// Extractor converts audio clips into fixed-length voice feature vectors.
// Extraction is a pure function of the audio: same input, same vector.
type Extractor struct {
	cfg    *Config
	logger logging.Logger
}

// NewExtractor creates a voice feature extractor
func NewExtractor(cfg *Config, logger logging.Logger) *Extractor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Extractor{
		cfg: cfg,
		logger: logger.WithFields(logging.Fields{
			"component": "voice_feature_extractor",
		}),
	}
}

// ExtractFile decodes an audio file (optionally a start/end window of it) and
// extracts a feature vector
func (e *Extractor) ExtractFile(path string, window *TimeWindow) (FeatureVector, error) {
	audio, err := LoadAudio(path)
	if err != nil {
		return nil, err
	}

	pcm := audio.PCM
	if window != nil {
		pcm = slicePCM(pcm, audio.SampleRate, window)
	}

	return e.ExtractPCM(pcm, audio.SampleRate)
}

// ExtractPCM extracts a feature vector from mono PCM samples
func (e *Extractor) ExtractPCM(pcm []float64, sampleRate int) (FeatureVector, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	duration := float64(len(pcm)) / float64(sampleRate)
	if duration < e.cfg.MinDuration.Seconds() {
		return nil, &InsufficientAudioError{
			Reason:   fmt.Sprintf("clip shorter than minimum analysis window (%.1fs)", e.cfg.MinDuration.Seconds()),
			Duration: duration,
		}
	}

	if rms(pcm) < e.cfg.SilenceRMSFloor {
		return nil, &InsufficientAudioError{
			Reason:   "clip is effectively silent",
			Duration: duration,
		}
	}

	analyzer := analyzers.NewSpectralAnalyzer(sampleRate)
	spectrogram, err := analyzer.ComputeSTFTWithWindow(pcm, e.cfg.WindowSize, e.cfg.HopSize, analyzers.WindowHann)
	if err != nil {
		return nil, fmt.Errorf("spectrogram computation failed: %w", err)
	}

	speechExtractor := extractors.NewSpeechFeatureExtractor(e.featureConfig(sampleRate), true)
	features, err := speechExtractor.ExtractFeatures(spectrogram, pcm, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("speech feature extraction failed: %w", err)
	}

	vector := summarize(features, pcm, sampleRate, e.cfg)

	e.logger.Debug("Feature vector extracted", logging.Fields{
		"duration_s":  duration,
		"sample_rate": sampleRate,
		"frames":      spectrogram.TimeFrames,
		"quality":     vector.Quality(),
	})

	return vector, nil
}

// featureConfig creates the sonido-sonar feature configuration for speech
func (e *Extractor) featureConfig(sampleRate int) *config.FeatureConfig {
	return &config.FeatureConfig{
		WindowSize: e.cfg.WindowSize,
		HopSize:    e.cfg.HopSize,
		SampleRate: sampleRate,
		FreqRange:  [2]float64{80.0, 8000.0},

		EnableMFCC:             true,
		EnableSpeechFeatures:   true,
		EnableTemporalFeatures: true,
		EnableChroma:           false,
		EnableSpectralContrast: false,
		EnableHarmonicFeatures: true,

		MFCCCoefficients: e.cfg.MFCCCoefficients,
	}
}

func slicePCM(pcm []float64, sampleRate int, window *TimeWindow) []float64 {
	start := int(window.Start * float64(sampleRate))
	end := int(window.End * float64(sampleRate))

	start = max(start, 0)
	end = min(end, len(pcm))
	if start >= end {
		return nil
	}

	return pcm[start:end]
}

func rms(pcm []float64) float64 {
	if len(pcm) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range pcm {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(pcm)))
}
