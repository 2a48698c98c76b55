package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/hearingdesk/speaker-attribution/configs"
	"github.com/hearingdesk/speaker-attribution/internal/attribution"
	"github.com/hearingdesk/speaker-attribution/internal/collector"
	"github.com/hearingdesk/speaker-attribution/internal/feedback"
	"github.com/hearingdesk/speaker-attribution/pkg/logging"
	"github.com/hearingdesk/speaker-attribution/pkg/output"
	"github.com/hearingdesk/speaker-attribution/pkg/textpattern"
	"github.com/hearingdesk/speaker-attribution/pkg/voicefeatures"
	"github.com/hearingdesk/speaker-attribution/pkg/voicemodel"
)

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	ConfigFile    string
	DataDir       string
	SampleDir     string
	OutputFile    string
	OutputFormat  string
	Timeout       time.Duration
	MaxConcurrent int
	Verbose       bool
	LogLevel      string

	// Runtime context
	Logger logging.Logger
	Config *configs.Config
}

// App owns the shared stores and component wiring for one CLI invocation.
// All state lives here; no component reaches for globals.
type App struct {
	ctx    *Context
	config *configs.Config
	logger logging.Logger

	db *badger.DB

	extractor  *voicefeatures.Extractor
	models     *voicemodel.Store
	text       *textpattern.Analyzer
	thresholds *attribution.ThresholdStore
	evidence   *attribution.EvidenceLog
	samples    *collector.SampleIndex
}

// NewApp creates the application, opening the shared data store
func NewApp(ctx *Context) (*App, error) {
	logger := logging.NewLogger(ctx.LogLevel)
	ctx.Logger = logger

	config, err := loadAndMergeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx.Config = config

	dbPath := filepath.Join(config.DataDir, "db")
	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	opts := badger.DefaultOptions(dbPath).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open data store: %w", err)
	}

	logger.Debug("Application initialized", logging.Fields{
		"config_file": ctx.ConfigFile,
		"data_dir":    config.DataDir,
		"sample_dir":  config.SampleDir,
	})

	app := &App{
		ctx:    ctx,
		config: config,
		logger: logger,
		db:     db,
	}

	app.extractor = voicefeatures.NewExtractor(&voicefeatures.Config{
		WindowSize:       config.Audio.WindowSize,
		HopSize:          config.Audio.HopSize,
		MFCCCoefficients: config.Audio.MFCCCoefficients,
		MinDuration:      config.Audio.MinSegmentDuration,
		SilenceRMSFloor:  config.Audio.SilenceRMSFloor,
	}, logger)

	app.models = voicemodel.NewStore(db, &voicemodel.TrainConfig{
		MinTrainingSamples: config.Training.MinTrainingSamples,
		MixtureComponents:  config.Training.MixtureComponents,
		Seed:               config.Training.Seed,
	}, logger)

	app.text = textpattern.NewAnalyzer(&textpattern.Config{
		IdentityBaseConfidence: config.Text.IdentityBaseConfidence,
		RoleBaseConfidence:     config.Text.RoleBaseConfidence,
		RepeatMentionBoost:     config.Text.RepeatMentionBoost,
		MaxConfidence:          config.Text.MaxConfidence,
	}, logger)

	app.thresholds = attribution.NewThresholdStore(db, logger)
	app.evidence = attribution.NewEvidenceLog(db, logger)
	app.samples = collector.NewSampleIndex(db)

	return app, nil
}

// Close releases the shared data store
func (app *App) Close() error {
	return app.db.Close()
}

// Config returns the merged configuration
func (app *App) Config() *configs.Config {
	return app.config
}

// Logger returns the application logger
func (app *App) Logger() logging.Logger {
	return app.logger
}

// Extractor returns the voice feature extractor
func (app *App) Extractor() *voicefeatures.Extractor {
	return app.extractor
}

// Models returns the voice model store
func (app *App) Models() *voicemodel.Store {
	return app.models
}

// Thresholds returns the decision threshold store
func (app *App) Thresholds() *attribution.ThresholdStore {
	return app.thresholds
}

// Evidence returns the attribution evidence log
func (app *App) Evidence() *attribution.EvidenceLog {
	return app.evidence
}

// Samples returns the collected voice sample index
func (app *App) Samples() *collector.SampleIndex {
	return app.samples
}

// NewEngine builds the fusion engine over the shared stores
func (app *App) NewEngine() (*attribution.Engine, error) {
	return attribution.NewEngine(&attribution.EngineConfig{
		Extractor:             app.extractor,
		Models:                app.models,
		Text:                  app.text,
		Thresholds:            app.thresholds,
		Evidence:              app.evidence,
		MaxConcurrentSegments: app.config.Attribution.MaxConcurrentSegments,
		SegmentTimeout:        app.config.Attribution.SegmentTimeout,
		Logger:                app.logger,
	})
}

// NewCollector builds the sample collector from the configured sources
func (app *App) NewCollector() (*collector.Collector, error) {
	if len(app.config.Collector.Sources) == 0 {
		return nil, fmt.Errorf("no content sources configured (collector.sources)")
	}

	sources := make([]collector.Source, 0, len(app.config.Collector.Sources))
	for _, sc := range app.config.Collector.Sources {
		source, err := collector.NewArchiveSource(&collector.ArchiveSourceConfig{
			Name:      sc.Name,
			BaseURL:   sc.BaseURL,
			UserAgent: sc.UserAgent,
			Timeout:   sc.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		sources = append(sources, source)
	}

	cc := app.config.Collector
	return collector.NewCollector(&collector.Config{
		SampleDir:             app.config.SampleDir,
		MaxSamplesPerSpeaker:  cc.MaxSamplesPerSpeaker,
		SearchLimit:           cc.SearchLimit,
		MinRelevance:          cc.MinRelevance,
		MinQuality:            cc.MinQuality,
		MinClipDuration:       cc.MinClipDuration,
		MaxClipDuration:       cc.MaxClipDuration,
		MaxConcurrentSpeakers: cc.MaxConcurrentSpeakers,
		Retry: &collector.RetryPolicy{
			MaxAttempts:  cc.RetryAttempts,
			InitialDelay: cc.RetryDelay,
			Multiplier:   2.0,
			MaxDelay:     10 * time.Second,
		},
	}, sources, app.extractor, app.samples, app.logger)
}

// NewLoop builds the correction feedback loop over a transcript manifest
func (app *App) NewLoop(resolver feedback.AssetResolver) (*feedback.Loop, error) {
	return feedback.NewLoop(&feedback.LoopConfig{
		Config: &feedback.Config{
			MinCorrectionsPerSpeaker: app.config.Feedback.MinCorrectionsPerSpeaker,
			RegressionMargin:         app.config.Feedback.RegressionMargin,
		},
		Models:    app.models,
		Extractor: app.extractor,
		Resolver:  resolver,
		Ledger:    feedback.NewCorrectionLedger(app.db),
		Logger:    app.logger,
	})
}

// NewOptimizer builds the threshold optimizer
func (app *App) NewOptimizer() (*feedback.Optimizer, error) {
	return feedback.NewOptimizer(&feedback.OptimizeConfig{
		Mode:            feedback.OptimizeMode(app.config.Feedback.OptimizeMode),
		HoldoutFraction: app.config.Feedback.HoldoutFraction,
		MinCases:        app.config.Feedback.MinOptimizeCases,
		MaxRounds:       3,
	}, app.thresholds, app.evidence, app.logger)
}

// NewPatternAnalyzer builds the correction pattern analyzer
func (app *App) NewPatternAnalyzer() *feedback.PatternAnalyzer {
	return feedback.NewPatternAnalyzer(app.logger)
}

// WriteOutput renders a result to the output file or stdout in the
// configured format
func (app *App) WriteOutput(v any) error {
	format, err := output.ParseFormat(app.ctx.OutputFormat)
	if err != nil {
		return err
	}

	if app.ctx.OutputFile != "" {
		dir := filepath.Dir(app.ctx.OutputFile)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		file, err := os.Create(app.ctx.OutputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()

		if err := output.Write(file, format, v); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}

		app.logger.Debug("Results written to file", logging.Fields{
			"output_file": app.ctx.OutputFile,
		})
		return nil
	}

	return output.Write(os.Stdout, format, v)
}
