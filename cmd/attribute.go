package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hearingdesk/speaker-attribution/internal/attribution"
	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
)

var (
	attributeAudio        string
	attributeSegments     string
	attributeRoster       string
	attributeHearingID    string
	attributeTranscriptID string
	attributeConcurrency  int
	attributeTimeout      time.Duration
)

// attributeCmd represents the attribute command
var attributeCmd = &cobra.Command{
	Use:   "attribute",
	Short: "Attribute transcript segments to roster speakers",
	Long: `Attribute every segment of a hearing transcript to a speaker on the
hearing's candidate roster.

Each segment is scored acoustically against all trained voice models and
analyzed for textual cues (direct address, procedural role phrases). The two
signals are fused through a confidence threshold ladder; segments neither
signal can resolve are reported as Unknown rather than guessed.

Examples:
  # Attribute a hearing
  speaker-attribution attribute --audio hearing.wav --segments segments.json --roster roster.yaml

  # Identify the run for later correction feedback
  speaker-attribution attribute --audio hearing.wav --segments segments.json \
    --roster roster.yaml --hearing-id sjud-2026-03-14 --transcript-id t-0147

  # JSON results to a file
  speaker-attribution attribute --audio hearing.wav --segments segments.json \
    --roster roster.yaml -o json --output-file results.json`,
	RunE: runAttribute,
}

func init() {
	rootCmd.AddCommand(attributeCmd)

	attributeCmd.Flags().StringVar(&attributeAudio, "audio", "",
		"hearing audio file (required)")
	attributeCmd.Flags().StringVar(&attributeSegments, "segments", "",
		"transcript segments JSON file (required)")
	attributeCmd.Flags().StringVar(&attributeRoster, "roster", "",
		"candidate roster YAML file (required)")
	attributeCmd.Flags().StringVar(&attributeHearingID, "hearing-id", "",
		"hearing identifier (defaults to the roster's hearing_id)")
	attributeCmd.Flags().StringVar(&attributeTranscriptID, "transcript-id", "",
		"transcript identifier for evidence records (defaults to hearing-id)")
	attributeCmd.Flags().IntVar(&attributeConcurrency, "concurrency", 0,
		"max segments attributed concurrently (0 = configured default)")
	attributeCmd.Flags().DurationVar(&attributeTimeout, "segment-timeout", 0,
		"per-segment processing timeout (0 = configured default)")

	attributeCmd.MarkFlagRequired("audio")
	attributeCmd.MarkFlagRequired("segments")
	attributeCmd.MarkFlagRequired("roster")
}

func runAttribute(cmd *cobra.Command, args []string) error {
	ctx := newAppContext()
	ctx.MaxConcurrent = attributeConcurrency
	ctx.Timeout = attributeTimeout

	a, err := appFromContext(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	roster, err := hearing.LoadRoster(attributeRoster)
	if err != nil {
		return err
	}

	segments, err := hearing.LoadSegments(attributeSegments)
	if err != nil {
		return err
	}

	hearingID := attributeHearingID
	if hearingID == "" {
		hearingID = roster.HearingID
	}
	transcriptID := attributeTranscriptID
	if transcriptID == "" {
		transcriptID = hearingID
	}
	if transcriptID == "" {
		return fmt.Errorf("no transcript identifier: set --transcript-id, --hearing-id, or hearing_id in the roster")
	}

	engine, err := a.NewEngine()
	if err != nil {
		return err
	}

	result, err := engine.AttributeHearing(context.Background(), &attribution.AttributionRequest{
		HearingID:    hearingID,
		TranscriptID: transcriptID,
		AudioPath:    attributeAudio,
		Segments:     segments,
		Roster:       roster,
	})
	if err != nil {
		return fmt.Errorf("attribution failed: %w", err)
	}

	return a.WriteOutput(result)
}
