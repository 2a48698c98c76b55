package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose"`
	LogLevel     string `mapstructure:"log_level"`
	OutputFormat string `mapstructure:"output_format"`
	ConfigDir    string `mapstructure:"config_dir"`
	DataDir      string `mapstructure:"data_dir"`
	SampleDir    string `mapstructure:"sample_dir"`

	// Audio feature extraction configuration
	Audio AudioConfig `mapstructure:"audio"`

	// Voice model training configuration
	Training TrainingConfig `mapstructure:"training"`

	// Text pattern analysis configuration
	Text TextConfig `mapstructure:"text"`

	// Fusion attribution configuration
	Attribution AttributionConfig `mapstructure:"attribution"`

	// Sample collection configuration
	Collector CollectorConfig `mapstructure:"collector"`

	// Correction feedback configuration
	Feedback FeedbackConfig `mapstructure:"feedback"`
}

// AudioConfig contains feature extraction settings
type AudioConfig struct {
	WindowSize         int           `mapstructure:"window_size"`
	HopSize            int           `mapstructure:"hop_size"`
	MFCCCoefficients   int           `mapstructure:"mfcc_coefficients"`
	MinSegmentDuration time.Duration `mapstructure:"min_segment_duration"`
	SilenceRMSFloor    float64       `mapstructure:"silence_rms_floor"`
}

// TrainingConfig contains voice model training settings
type TrainingConfig struct {
	MinTrainingSamples int   `mapstructure:"min_training_samples"`
	MixtureComponents  int   `mapstructure:"mixture_components"`
	Seed               int64 `mapstructure:"seed"`
}

// TextConfig contains text pattern analysis settings
type TextConfig struct {
	IdentityBaseConfidence float64 `mapstructure:"identity_base_confidence"`
	RoleBaseConfidence     float64 `mapstructure:"role_base_confidence"`
	RepeatMentionBoost     float64 `mapstructure:"repeat_mention_boost"`
	MaxConfidence          float64 `mapstructure:"max_confidence"`
}

// AttributionConfig contains fusion matcher settings
type AttributionConfig struct {
	MaxConcurrentSegments int           `mapstructure:"max_concurrent_segments"`
	SegmentTimeout        time.Duration `mapstructure:"segment_timeout"`
}

// SourceConfig describes one external content source
type SourceConfig struct {
	Name      string        `mapstructure:"name"`
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// CollectorConfig contains voice sample collection settings
type CollectorConfig struct {
	MaxSamplesPerSpeaker  int            `mapstructure:"max_samples_per_speaker"`
	SearchLimit           int            `mapstructure:"search_limit"`
	MinRelevance          float64        `mapstructure:"min_relevance"`
	MinQuality            float64        `mapstructure:"min_quality"`
	MinClipDuration       time.Duration  `mapstructure:"min_clip_duration"`
	MaxClipDuration       time.Duration  `mapstructure:"max_clip_duration"`
	MaxConcurrentSpeakers int            `mapstructure:"max_concurrent_speakers"`
	RetryAttempts         int            `mapstructure:"retry_attempts"`
	RetryDelay            time.Duration  `mapstructure:"retry_delay"`
	Sources               []SourceConfig `mapstructure:"sources"`
}

// FeedbackConfig contains correction feedback loop settings
type FeedbackConfig struct {
	MinCorrectionsPerSpeaker int     `mapstructure:"min_corrections_per_speaker"`
	RegressionMargin         float64 `mapstructure:"regression_margin"`
	OptimizeMode             string  `mapstructure:"optimize_mode"`
	HoldoutFraction          float64 `mapstructure:"holdout_fraction"`
	MinOptimizeCases         int     `mapstructure:"min_optimize_cases"`
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	config := &Config{}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if config.Audio.WindowSize <= 0 {
		return fmt.Errorf("audio window size must be positive")
	}

	if config.Audio.HopSize <= 0 || config.Audio.HopSize > config.Audio.WindowSize {
		return fmt.Errorf("audio hop size must be positive and at most the window size")
	}

	if config.Audio.MinSegmentDuration <= 0 {
		return fmt.Errorf("minimum segment duration must be positive")
	}

	if config.Training.MinTrainingSamples < 2 {
		return fmt.Errorf("minimum training samples must be at least 2")
	}

	if config.Training.MixtureComponents <= 0 {
		return fmt.Errorf("mixture components must be positive")
	}

	if config.Text.IdentityBaseConfidence <= config.Text.RoleBaseConfidence {
		return fmt.Errorf("identity base confidence must exceed role base confidence")
	}

	if config.Attribution.MaxConcurrentSegments <= 0 {
		return fmt.Errorf("max concurrent segments must be positive")
	}

	if config.Collector.MaxSamplesPerSpeaker <= 0 {
		return fmt.Errorf("max samples per speaker must be positive")
	}

	if config.Collector.MinRelevance < 0 || config.Collector.MinRelevance > 1 {
		return fmt.Errorf("minimum relevance must be between 0 and 1")
	}

	if config.Collector.MinQuality < 0 || config.Collector.MinQuality > 1 {
		return fmt.Errorf("minimum quality must be between 0 and 1")
	}

	if config.Feedback.HoldoutFraction <= 0 || config.Feedback.HoldoutFraction >= 1 {
		return fmt.Errorf("holdout fraction must be between 0 and 1 exclusive")
	}

	return nil
}
