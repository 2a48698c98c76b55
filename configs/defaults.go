package configs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// SetDefaults sets default configuration values for all components
func SetDefaults(v *viper.Viper) {
	// Application defaults
	if !v.IsSet("verbose") {
		v.Set("verbose", false)
	}
	if !v.IsSet("log_level") {
		v.Set("log_level", "info")
	}
	if !v.IsSet("output_format") {
		v.Set("output_format", "table")
	}

	// Audio feature extraction defaults
	if !v.IsSet("audio.window_size") {
		v.Set("audio.window_size", 1024)
	}
	if !v.IsSet("audio.hop_size") {
		v.Set("audio.hop_size", 256)
	}
	if !v.IsSet("audio.mfcc_coefficients") {
		v.Set("audio.mfcc_coefficients", 13)
	}
	if !v.IsSet("audio.min_segment_duration") {
		v.Set("audio.min_segment_duration", 3*time.Second)
	}
	if !v.IsSet("audio.silence_rms_floor") {
		v.Set("audio.silence_rms_floor", 1e-4)
	}

	// Voice model training defaults
	if !v.IsSet("training.min_training_samples") {
		v.Set("training.min_training_samples", 5)
	}
	if !v.IsSet("training.mixture_components") {
		v.Set("training.mixture_components", 3)
	}
	if !v.IsSet("training.seed") {
		v.Set("training.seed", 1)
	}

	// Text pattern defaults
	if !v.IsSet("text.identity_base_confidence") {
		v.Set("text.identity_base_confidence", 0.65)
	}
	if !v.IsSet("text.role_base_confidence") {
		v.Set("text.role_base_confidence", 0.35)
	}
	if !v.IsSet("text.repeat_mention_boost") {
		v.Set("text.repeat_mention_boost", 0.10)
	}
	if !v.IsSet("text.max_confidence") {
		v.Set("text.max_confidence", 0.90)
	}

	// Attribution defaults
	if !v.IsSet("attribution.max_concurrent_segments") {
		v.Set("attribution.max_concurrent_segments", 4)
	}
	if !v.IsSet("attribution.segment_timeout") {
		v.Set("attribution.segment_timeout", 30*time.Second)
	}

	// Sample collection defaults
	if !v.IsSet("collector.max_samples_per_speaker") {
		v.Set("collector.max_samples_per_speaker", 10)
	}
	if !v.IsSet("collector.search_limit") {
		v.Set("collector.search_limit", 25)
	}
	if !v.IsSet("collector.min_relevance") {
		v.Set("collector.min_relevance", 0.5)
	}
	if !v.IsSet("collector.min_quality") {
		v.Set("collector.min_quality", 0.4)
	}
	if !v.IsSet("collector.min_clip_duration") {
		v.Set("collector.min_clip_duration", 5*time.Second)
	}
	if !v.IsSet("collector.max_clip_duration") {
		v.Set("collector.max_clip_duration", 10*time.Minute)
	}
	if !v.IsSet("collector.max_concurrent_speakers") {
		v.Set("collector.max_concurrent_speakers", 4)
	}
	if !v.IsSet("collector.retry_attempts") {
		v.Set("collector.retry_attempts", 3)
	}
	if !v.IsSet("collector.retry_delay") {
		v.Set("collector.retry_delay", 500*time.Millisecond)
	}

	// Feedback defaults
	if !v.IsSet("feedback.min_corrections_per_speaker") {
		v.Set("feedback.min_corrections_per_speaker", 3)
	}
	if !v.IsSet("feedback.regression_margin") {
		v.Set("feedback.regression_margin", 0.5)
	}
	if !v.IsSet("feedback.optimize_mode") {
		v.Set("feedback.optimize_mode", "balanced")
	}
	if !v.IsSet("feedback.holdout_fraction") {
		v.Set("feedback.holdout_fraction", 0.3)
	}
	if !v.IsSet("feedback.min_optimize_cases") {
		v.Set("feedback.min_optimize_cases", 10)
	}
}

// GetDefaultConfig returns a Config struct with all default values set
func GetDefaultConfig() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		Verbose:      false,
		LogLevel:     "info",
		OutputFormat: "table",
		ConfigDir:    filepath.Join(home, ".config", "speaker-attribution"),
		DataDir:      filepath.Join(home, ".local", "share", "speaker-attribution"),
		SampleDir:    filepath.Join(home, ".local", "share", "speaker-attribution", "samples"),

		Audio:       GetDefaultAudioConfig(),
		Training:    GetDefaultTrainingConfig(),
		Text:        GetDefaultTextConfig(),
		Attribution: GetDefaultAttributionConfig(),
		Collector:   GetDefaultCollectorConfig(),
		Feedback:    GetDefaultFeedbackConfig(),
	}
}

// GetDefaultAudioConfig returns default feature extraction settings
func GetDefaultAudioConfig() AudioConfig {
	return AudioConfig{
		WindowSize:         1024,
		HopSize:            256,
		MFCCCoefficients:   13,
		MinSegmentDuration: 3 * time.Second,
		SilenceRMSFloor:    1e-4,
	}
}

// GetDefaultTrainingConfig returns default model training settings
func GetDefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		MinTrainingSamples: 5,
		MixtureComponents:  3,
		Seed:               1,
	}
}

// GetDefaultTextConfig returns default text pattern settings
func GetDefaultTextConfig() TextConfig {
	return TextConfig{
		IdentityBaseConfidence: 0.65,
		RoleBaseConfidence:     0.35,
		RepeatMentionBoost:     0.10,
		MaxConfidence:          0.90,
	}
}

// GetDefaultAttributionConfig returns default fusion matcher settings
func GetDefaultAttributionConfig() AttributionConfig {
	return AttributionConfig{
		MaxConcurrentSegments: 4,
		SegmentTimeout:        30 * time.Second,
	}
}

// GetDefaultCollectorConfig returns default sample collection settings
func GetDefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		MaxSamplesPerSpeaker:  10,
		SearchLimit:           25,
		MinRelevance:          0.5,
		MinQuality:            0.4,
		MinClipDuration:       5 * time.Second,
		MaxClipDuration:       10 * time.Minute,
		MaxConcurrentSpeakers: 4,
		RetryAttempts:         3,
		RetryDelay:            500 * time.Millisecond,
	}
}

// GetDefaultFeedbackConfig returns default feedback loop settings
func GetDefaultFeedbackConfig() FeedbackConfig {
	return FeedbackConfig{
		MinCorrectionsPerSpeaker: 3,
		RegressionMargin:         0.5,
		OptimizeMode:             "balanced",
		HoldoutFraction:          0.3,
		MinOptimizeCases:         10,
	}
}
