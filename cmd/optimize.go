package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hearingdesk/speaker-attribution/internal/feedback"
	"github.com/hearingdesk/speaker-attribution/pkg/logging"
)

var (
	feedbackCorrections string
	feedbackManifest    string
	feedbackSkipRetrain bool
	feedbackSkipTuning  bool
)

// FeedbackOutcome reports one feedback run: model retraining and threshold
// optimization together
type FeedbackOutcome struct {
	Ingest   *feedback.IngestSummary  `json:"ingest,omitempty"`
	Optimize *feedback.OptimizeResult `json:"optimize,omitempty"`
}

// feedbackCmd represents the feedback command
var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Fold verified corrections back into models and thresholds",
	Long: `Ingest human-verified speaker corrections and use them to improve the
system: corrected segments extend the affected speakers' voice models
(guarded against fit regressions), and the decision thresholds are retuned
against the correction history, activating a new threshold version only when
it scores strictly better on held-out corrections.

Corrections are read from a JSON-lines export of the review store. The
manifest maps each transcript ID to its audio and segment timing files so
corrected segments can be re-extracted.

Examples:
  # Full feedback pass: retrain models, then retune thresholds
  speaker-attribution feedback --corrections corrections.jsonl --manifest manifest.yaml

  # Threshold tuning only
  speaker-attribution feedback --corrections corrections.jsonl --skip-retrain

  # Model retraining only
  speaker-attribution feedback --corrections corrections.jsonl --manifest manifest.yaml --skip-tuning`,
	RunE: runFeedback,
}

func init() {
	rootCmd.AddCommand(feedbackCmd)

	feedbackCmd.Flags().StringVar(&feedbackCorrections, "corrections", "",
		"corrections JSON-lines file (required)")
	feedbackCmd.Flags().StringVar(&feedbackManifest, "manifest", "",
		"transcript asset manifest YAML (required unless --skip-retrain)")
	feedbackCmd.Flags().BoolVar(&feedbackSkipRetrain, "skip-retrain", false,
		"skip voice model retraining")
	feedbackCmd.Flags().BoolVar(&feedbackSkipTuning, "skip-tuning", false,
		"skip threshold optimization")

	feedbackCmd.MarkFlagRequired("corrections")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	a, err := appFromContext(newAppContext())
	if err != nil {
		return err
	}
	defer a.Close()

	source := &feedback.JSONLCorrections{Path: feedbackCorrections}
	corrections, err := source.Corrections()
	if err != nil {
		return err
	}
	if len(corrections) == 0 {
		return fmt.Errorf("no corrections in %s", feedbackCorrections)
	}

	outcome := &FeedbackOutcome{}

	if !feedbackSkipRetrain {
		if feedbackManifest == "" {
			return fmt.Errorf("--manifest is required for model retraining (or pass --skip-retrain)")
		}

		manifest, err := feedback.LoadManifest(feedbackManifest)
		if err != nil {
			return err
		}

		loop, err := a.NewLoop(manifest)
		if err != nil {
			return err
		}

		outcome.Ingest, err = loop.Ingest(context.Background(), corrections)
		if err != nil {
			return fmt.Errorf("correction ingestion failed: %w", err)
		}
	}

	if !feedbackSkipTuning {
		optimizer, err := a.NewOptimizer()
		if err != nil {
			return err
		}

		result, err := optimizer.Optimize(corrections)
		switch {
		case errors.Is(err, feedback.ErrNoImprovement):
			// Current thresholds already at a local optimum; not a failure
			outcome.Optimize = result
		case errors.Is(err, feedback.ErrNoEvaluationData):
			a.Logger().Warn("Skipping threshold tuning", logging.Fields{
				"reason": err.Error(),
			})
		case err != nil:
			return fmt.Errorf("threshold optimization failed: %w", err)
		default:
			outcome.Optimize = result
		}
	}

	return a.WriteOutput(outcome)
}
