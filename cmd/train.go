package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
	"github.com/hearingdesk/speaker-attribution/pkg/logging"
	"github.com/hearingdesk/speaker-attribution/pkg/voicefeatures"
	"github.com/hearingdesk/speaker-attribution/pkg/voicemodel"
)

var (
	trainRoster   string
	trainSpeakers []string
)

// SpeakerTraining reports the training outcome for one speaker
type SpeakerTraining struct {
	SpeakerID        string  `json:"speaker_id"`
	SamplesIndexed   int     `json:"samples_indexed"`
	VectorsExtracted int     `json:"vectors_extracted"`
	Trained          bool    `json:"trained"`
	Reason           string  `json:"reason,omitempty"`
	AvgLogLikelihood float64 `json:"avg_log_likelihood,omitempty"`
}

// TrainingSummary aggregates one training run
type TrainingSummary struct {
	Speakers      []SpeakerTraining `json:"speakers"`
	ModelsTrained int               `json:"models_trained"`
}

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train voice models from collected samples",
	Long: `Train a voice model for every roster speaker from their collected
voice samples.

Each sample is re-extracted into a feature vector; the vectors seed the
speaker's training pool and a Gaussian mixture model is fit over the pool.
Training is deterministic: the same pool always yields the same model.
Speakers without enough usable samples are skipped, not failed.

Examples:
  # Train models for a full roster
  speaker-attribution train --roster roster.yaml

  # Retrain one speaker
  speaker-attribution train --roster roster.yaml --speaker "Ted Cruz"`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringVar(&trainRoster, "roster", "",
		"candidate roster YAML file (required)")
	trainCmd.Flags().StringArrayVar(&trainSpeakers, "speaker", nil,
		"restrict training to named speakers (repeatable)")

	trainCmd.MarkFlagRequired("roster")
}

func runTrain(cmd *cobra.Command, args []string) error {
	a, err := appFromContext(newAppContext())
	if err != nil {
		return err
	}
	defer a.Close()

	roster, err := hearing.LoadRoster(trainRoster)
	if err != nil {
		return err
	}

	if len(trainSpeakers) > 0 {
		roster, err = filterRoster(roster, trainSpeakers)
		if err != nil {
			return err
		}
	}

	summary := &TrainingSummary{}
	for i := range roster.Entries {
		outcome := trainSpeaker(a.Samples(), a.Extractor(), a.Models(), a.Logger(), roster.Entries[i].Name)
		if outcome.Trained {
			summary.ModelsTrained++
		}
		summary.Speakers = append(summary.Speakers, outcome)
	}

	return a.WriteOutput(summary)
}

// trainSpeaker extracts vectors from a speaker's indexed samples and fits
// their model. Per-sample extraction failures are skipped.
func trainSpeaker(samples sampleLister, extractor fileExtractor, models *voicemodel.Store, logger logging.Logger, speaker string) SpeakerTraining {
	outcome := SpeakerTraining{SpeakerID: speaker}

	indexed, err := samples.List(speaker)
	if err != nil {
		outcome.Reason = err.Error()
		return outcome
	}
	outcome.SamplesIndexed = len(indexed)

	var vectors []voicefeatures.FeatureVector
	for i := range indexed {
		vec, err := extractor.ExtractFile(indexed[i].FilePath, nil)
		if err != nil {
			logger.Warn("Sample extraction failed", logging.Fields{
				"speaker": speaker,
				"path":    indexed[i].FilePath,
				"error":   err.Error(),
			})
			continue
		}
		vectors = append(vectors, vec)
	}
	outcome.VectorsExtracted = len(vectors)

	if len(vectors) == 0 {
		outcome.Reason = "no usable samples"
		return outcome
	}

	// The sample set is canonical here; reset the pool rather than append so
	// re-running train does not duplicate vectors
	if err := models.ReplacePool(speaker, vectors); err != nil {
		outcome.Reason = err.Error()
		return outcome
	}

	model, err := models.Train(speaker, vectors)
	if err != nil {
		var insufficient *voicemodel.InsufficientSamplesError
		if errors.As(err, &insufficient) {
			outcome.Reason = insufficient.Error()
		} else {
			outcome.Reason = fmt.Sprintf("training failed: %v", err)
		}
		return outcome
	}

	outcome.Trained = true
	outcome.AvgLogLikelihood = model.AvgLogLikelihood
	return outcome
}

type sampleLister interface {
	List(speakerID string) ([]hearing.VoiceSample, error)
}

type fileExtractor interface {
	ExtractFile(path string, window *voicefeatures.TimeWindow) (voicefeatures.FeatureVector, error)
}
