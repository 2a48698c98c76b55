package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
	"github.com/hearingdesk/speaker-attribution/pkg/logging"
	"github.com/hearingdesk/speaker-attribution/pkg/voicefeatures"
	"github.com/hearingdesk/speaker-attribution/pkg/voicemodel"
)

// ModelStore is the slice of the voice model store the feedback loop needs
type ModelStore interface {
	Get(speakerID string) (*voicemodel.SpeakerModel, error)
	Put(model *voicemodel.SpeakerModel) error
	Pool(speakerID string) ([]voicefeatures.FeatureVector, error)
	AppendPool(speakerID string, vectors []voicefeatures.FeatureVector) error
	TrainConfigured() *voicemodel.TrainConfig
}

// FeatureExtractor produces a voice feature vector from mono PCM
type FeatureExtractor interface {
	ExtractPCM(pcm []float64, sampleRate int) (voicefeatures.FeatureVector, error)
}

// Config contains feedback loop settings
type Config struct {
	// MinCorrectionsPerSpeaker gates retraining; a speaker with fewer
	// verified corrections is left alone this round
	MinCorrectionsPerSpeaker int `json:"min_corrections_per_speaker" yaml:"min_corrections_per_speaker"`

	// RegressionMargin is how much average fit may drop before a retrain
	// is rejected
	RegressionMargin float64 `json:"regression_margin" yaml:"regression_margin"`
}

// DefaultConfig returns feedback loop defaults
func DefaultConfig() *Config {
	return &Config{
		MinCorrectionsPerSpeaker: 3,
		RegressionMargin:         0.5,
	}
}

// SpeakerRetrain reports the retraining outcome for one speaker
type SpeakerRetrain struct {
	SpeakerID       string `json:"speaker_id"`
	CorrectionsUsed int    `json:"corrections_used"`
	VectorsAdded    int    `json:"vectors_added"`
	Retrained       bool   `json:"retrained"`
	Rejected        bool   `json:"rejected"`
	Reason          string `json:"reason,omitempty"`

	// Error records a per-speaker failure; it never aborts other speakers
	Error error `json:"-"`
}

// IngestSummary aggregates one correction ingestion run
type IngestSummary struct {
	TotalCorrections int              `json:"total_corrections"`
	AlreadyProcessed int              `json:"already_processed"`
	Speakers         []SpeakerRetrain `json:"speakers"`
	ModelsRetrained  int              `json:"models_retrained"`
	ModelsRejected   int              `json:"models_rejected"`
	Duration         time.Duration    `json:"duration"`
}

// Loop turns human-verified corrections into model updates. Retrains carry
// a regression guard: a refit that degrades average fit quality beyond the
// configured margin is rejected and the prior model kept.
type Loop struct {
	cfg       *Config
	models    ModelStore
	extractor FeatureExtractor
	resolver  AssetResolver
	ledger    ProcessedLedger
	loadAudio func(path string) (*voicefeatures.Audio, error)
	logger    logging.Logger
}

// LoopConfig wires the feedback loop's dependencies
type LoopConfig struct {
	Config    *Config
	Models    ModelStore
	Extractor FeatureExtractor
	Resolver  AssetResolver
	Ledger    ProcessedLedger

	// LoadAudio is overridable for tests; defaults to decoding from disk
	LoadAudio func(path string) (*voicefeatures.Audio, error)

	Logger logging.Logger
}

// NewLoop creates a correction feedback loop
func NewLoop(config *LoopConfig) (*Loop, error) {
	if config.Models == nil || config.Extractor == nil || config.Resolver == nil || config.Ledger == nil {
		return nil, fmt.Errorf("feedback loop requires models, extractor, resolver, and ledger")
	}

	cfg := config.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	loadAudio := config.LoadAudio
	if loadAudio == nil {
		loadAudio = voicefeatures.LoadAudio
	}

	return &Loop{
		cfg:       cfg,
		models:    config.Models,
		extractor: config.Extractor,
		resolver:  config.Resolver,
		ledger:    config.Ledger,
		loadAudio: loadAudio,
		logger: logger.WithFields(logging.Fields{
			"component": "feedback_loop",
		}),
	}, nil
}

// Ingest folds verified corrections into the voice models. Corrections
// already recorded in the processed ledger are skipped, so re-running the
// same export is a no-op. The rest are grouped by corrected speaker; each
// speaker with enough of them gets its segments re-extracted, its training
// pool extended, and its model refit under the regression guard.
func (l *Loop) Ingest(ctx context.Context, corrections []hearing.Correction) (*IngestSummary, error) {
	start := time.Now()

	summary := &IngestSummary{TotalCorrections: len(corrections)}

	bySpeaker := make(map[string][]hearing.Correction)
	var order []string
	for _, c := range corrections {
		processed, err := l.ledger.Seen(c.TranscriptID, c.SegmentID)
		if err != nil {
			return nil, err
		}
		if processed {
			summary.AlreadyProcessed++
			continue
		}
		if _, seen := bySpeaker[c.Speaker]; !seen {
			order = append(order, c.Speaker)
		}
		bySpeaker[c.Speaker] = append(bySpeaker[c.Speaker], c)
	}

	audioCache := make(map[string]*voicefeatures.Audio)

	for _, speaker := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		speakerCorrections := bySpeaker[speaker]
		retrain := SpeakerRetrain{
			SpeakerID:       speaker,
			CorrectionsUsed: len(speakerCorrections),
		}

		if len(speakerCorrections) < l.cfg.MinCorrectionsPerSpeaker {
			retrain.Reason = fmt.Sprintf("only %d corrections, need %d",
				len(speakerCorrections), l.cfg.MinCorrectionsPerSpeaker)
			summary.Speakers = append(summary.Speakers, retrain)
			continue
		}

		vectors := l.extractCorrected(speakerCorrections, audioCache, &retrain)
		retrain.VectorsAdded = len(vectors)

		if len(vectors) == 0 {
			if retrain.Reason == "" {
				retrain.Reason = "no usable audio for corrected segments"
			}
			summary.Speakers = append(summary.Speakers, retrain)
			continue
		}

		poolExtended := l.retrainSpeaker(speaker, vectors, &retrain)
		if retrain.Retrained {
			summary.ModelsRetrained++
		}
		if retrain.Rejected {
			summary.ModelsRejected++
		}

		// Corrections are marked processed once their vectors reach the
		// training pool, including guard-rejected refits; gated or
		// unextracted speakers keep their corrections eligible for a
		// later run
		if poolExtended {
			if err := l.ledger.Mark(speakerCorrections); err != nil {
				retrain.Error = err
				retrain.Reason = "failed to record processed corrections"
			}
		}
		summary.Speakers = append(summary.Speakers, retrain)
	}

	summary.Duration = time.Since(start)

	l.logger.Info("Correction ingestion completed", logging.Fields{
		"corrections":       summary.TotalCorrections,
		"already_processed": summary.AlreadyProcessed,
		"speakers":          len(summary.Speakers),
		"retrained":         summary.ModelsRetrained,
		"rejected":          summary.ModelsRejected,
		"duration_ms":       summary.Duration.Milliseconds(),
	})

	return summary, nil
}

// extractCorrected re-extracts feature vectors for a speaker's corrected
// segments. Individual extraction failures are skipped, not fatal.
func (l *Loop) extractCorrected(corrections []hearing.Correction, audioCache map[string]*voicefeatures.Audio, retrain *SpeakerRetrain) []voicefeatures.FeatureVector {
	var vectors []voicefeatures.FeatureVector

	for _, c := range corrections {
		assets, err := l.resolver.Resolve(c.TranscriptID)
		if err != nil {
			retrain.Reason = err.Error()
			continue
		}

		audio, ok := audioCache[c.TranscriptID]
		if !ok {
			audio, err = l.loadAudio(assets.AudioPath)
			if err != nil {
				retrain.Reason = err.Error()
				continue
			}
			audioCache[c.TranscriptID] = audio
		}

		segment := findSegment(assets.Segments, c.SegmentID)
		if segment == nil {
			l.logger.Warn("Corrected segment missing from transcript", logging.Fields{
				"transcript_id": c.TranscriptID,
				"segment_id":    c.SegmentID,
			})
			continue
		}

		pcm := audio.Slice(voicefeatures.TimeWindow{Start: segment.StartTime, End: segment.EndTime})
		vec, err := l.extractor.ExtractPCM(pcm, audio.SampleRate)
		if err != nil {
			var insufficient *voicefeatures.InsufficientAudioError
			if !errors.As(err, &insufficient) {
				l.logger.Warn("Extraction failed for corrected segment", logging.Fields{
					"segment_id": c.SegmentID,
					"error":      err.Error(),
				})
			}
			continue
		}

		vectors = append(vectors, vec)
	}

	return vectors
}

// retrainSpeaker extends the training pool and refits under the regression
// guard. The pool is extended regardless of the guard outcome so a later
// run with more data can still improve. Returns whether the pool was
// actually extended, which decides if the corrections count as processed.
func (l *Loop) retrainSpeaker(speaker string, vectors []voicefeatures.FeatureVector, retrain *SpeakerRetrain) bool {
	if err := l.models.AppendPool(speaker, vectors); err != nil {
		retrain.Error = err
		retrain.Reason = "failed to extend training pool"
		return false
	}

	pool, err := l.models.Pool(speaker)
	if err != nil {
		retrain.Error = err
		retrain.Reason = "failed to load training pool"
		return true
	}

	candidate, err := voicemodel.Fit(speaker, pool, l.models.TrainConfigured())
	if err != nil {
		var insufficient *voicemodel.InsufficientSamplesError
		if errors.As(err, &insufficient) {
			retrain.Reason = insufficient.Error()
			return true
		}
		retrain.Error = err
		retrain.Reason = "refit failed"
		return true
	}

	existing, err := l.models.Get(speaker)
	if err != nil && !errors.Is(err, voicemodel.ErrModelNotFound) {
		retrain.Error = err
		retrain.Reason = "failed to load existing model"
		return true
	}

	if existing != nil && candidate.AvgLogLikelihood < existing.AvgLogLikelihood-l.cfg.RegressionMargin {
		retrain.Rejected = true
		retrain.Reason = fmt.Sprintf("refit degrades fit: %.2f -> %.2f",
			existing.AvgLogLikelihood, candidate.AvgLogLikelihood)
		l.logger.Warn("Retrain rejected by regression guard", logging.Fields{
			"speaker": speaker,
			"old_ll":  existing.AvgLogLikelihood,
			"new_ll":  candidate.AvgLogLikelihood,
		})
		return true
	}

	if existing != nil {
		candidate.CreatedAt = existing.CreatedAt
	}

	if err := l.models.Put(candidate); err != nil {
		retrain.Error = err
		retrain.Reason = "failed to store refit model"
		return true
	}

	retrain.Retrained = true
	return true
}

func findSegment(segments []hearing.TranscriptSegment, id string) *hearing.TranscriptSegment {
	for i := range segments {
		if segments[i].ID == id {
			return &segments[i]
		}
	}
	return nil
}
