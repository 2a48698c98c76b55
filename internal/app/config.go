package app

import (
	"fmt"

	"github.com/hearingdesk/speaker-attribution/configs"
)

// loadAndMergeConfig loads the file/environment configuration and applies
// CLI flag overrides on top. Flags win over config values; unset fields fall
// back to built-in defaults.
func loadAndMergeConfig(ctx *Context) (*configs.Config, error) {
	config, err := configs.LoadConfig()
	if err != nil {
		return nil, err
	}

	applyOverrides(config, ctx)

	if err := configs.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func applyOverrides(config *configs.Config, ctx *Context) {
	defaults := configs.GetDefaultConfig()

	if ctx.Verbose {
		config.Verbose = true
	}
	if ctx.LogLevel != "" {
		config.LogLevel = ctx.LogLevel
	}
	if ctx.OutputFormat != "" {
		config.OutputFormat = ctx.OutputFormat
	}
	if ctx.DataDir != "" {
		config.DataDir = ctx.DataDir
	}
	if ctx.SampleDir != "" {
		config.SampleDir = ctx.SampleDir
	}
	if ctx.MaxConcurrent > 0 {
		config.Attribution.MaxConcurrentSegments = ctx.MaxConcurrent
	}
	if ctx.Timeout > 0 {
		config.Attribution.SegmentTimeout = ctx.Timeout
	}

	if config.DataDir == "" {
		config.DataDir = defaults.DataDir
	}
	if config.SampleDir == "" {
		config.SampleDir = defaults.SampleDir
	}
	if config.ConfigDir == "" {
		config.ConfigDir = defaults.ConfigDir
	}
	if config.OutputFormat == "" {
		config.OutputFormat = defaults.OutputFormat
	}

	// Keep the mirrored flag/format fields coherent for components that read
	// either one
	ctx.OutputFormat = config.OutputFormat
}
