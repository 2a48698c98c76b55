package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hearingdesk/speaker-attribution/internal/feedback"
)

var analyzeCorrections string

// diagnosticsCmd groups inspection subcommands
var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Inspect models, thresholds, and correction patterns",
}

// modelsCmd lists trained voice models
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List trained voice models",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(newAppContext())
		if err != nil {
			return err
		}
		defer a.Close()

		summaries, err := a.Models().ListModels()
		if err != nil {
			return err
		}
		return a.WriteOutput(summaries)
	},
}

// thresholdsCmd shows the active threshold set and its history
var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Show active decision thresholds and version history",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(newAppContext())
		if err != nil {
			return err
		}
		defer a.Close()

		current, err := a.Thresholds().Current()
		if err != nil {
			return err
		}
		history, err := a.Thresholds().History()
		if err != nil {
			return err
		}

		return a.WriteOutput(struct {
			Current any `json:"current" yaml:"current"`
			History any `json:"history" yaml:"history"`
		}{current, history})
	},
}

// rollbackCmd re-activates a prior threshold version
var rollbackCmd = &cobra.Command{
	Use:   "rollback <version>",
	Short: "Re-activate a prior threshold version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}

		a, err := appFromContext(newAppContext())
		if err != nil {
			return err
		}
		defer a.Close()

		activated, err := a.Thresholds().Rollback(version)
		if err != nil {
			return err
		}
		return a.WriteOutput(activated)
	},
}

// patternsCmd mines correction history for systematic error patterns
var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Analyze correction history for systematic error patterns",
	Long: `Join recorded attribution evidence with verified corrections and
report where the system goes wrong: speaker pairs that are frequently
confused, and whether errors cluster by session phase or segment length.
Recommendations are ranked and advisory; nothing acts on them automatically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFromContext(newAppContext())
		if err != nil {
			return err
		}
		defer a.Close()

		source := &feedback.JSONLCorrections{Path: analyzeCorrections}
		corrections, err := source.Corrections()
		if err != nil {
			return err
		}

		records, err := a.Evidence().All()
		if err != nil {
			return err
		}

		report := a.NewPatternAnalyzer().Analyze(records, corrections)
		return a.WriteOutput(report)
	},
}

func init() {
	rootCmd.AddCommand(diagnosticsCmd)
	diagnosticsCmd.AddCommand(modelsCmd)
	diagnosticsCmd.AddCommand(thresholdsCmd)
	diagnosticsCmd.AddCommand(rollbackCmd)
	diagnosticsCmd.AddCommand(patternsCmd)

	patternsCmd.Flags().StringVar(&analyzeCorrections, "corrections", "",
		"corrections JSON-lines file (required)")
	patternsCmd.MarkFlagRequired("corrections")
}
