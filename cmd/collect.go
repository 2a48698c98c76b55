package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
)

var (
	collectRoster   string
	collectSpeakers []string
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect voice samples for roster speakers",
	Long: `Collect candidate voice clips for every speaker on a roster from the
configured external content sources.

Each candidate clip is gated on metadata relevance to the speaker, duration,
and measured audio quality before it is kept. Already-collected clips are
skipped, so repeated runs only add new material. A speaker ending up with
zero samples is reported, not treated as a failure.

Examples:
  # Collect samples for a full roster
  speaker-attribution collect --roster roster.yaml

  # Only specific speakers
  speaker-attribution collect --roster roster.yaml --speaker "Ted Cruz" --speaker "Amy Klobuchar"`,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().StringVar(&collectRoster, "roster", "",
		"candidate roster YAML file (required)")
	collectCmd.Flags().StringArrayVar(&collectSpeakers, "speaker", nil,
		"restrict collection to named speakers (repeatable)")

	collectCmd.MarkFlagRequired("roster")
}

func runCollect(cmd *cobra.Command, args []string) error {
	a, err := appFromContext(newAppContext())
	if err != nil {
		return err
	}
	defer a.Close()

	roster, err := hearing.LoadRoster(collectRoster)
	if err != nil {
		return err
	}

	if len(collectSpeakers) > 0 {
		roster, err = filterRoster(roster, collectSpeakers)
		if err != nil {
			return err
		}
	}

	c, err := a.NewCollector()
	if err != nil {
		return err
	}

	summary, err := c.Collect(context.Background(), roster)
	if err != nil {
		return fmt.Errorf("collection failed: %w", err)
	}

	return a.WriteOutput(summary)
}

// filterRoster narrows a roster to the named speakers
func filterRoster(roster *hearing.CandidateRoster, names []string) (*hearing.CandidateRoster, error) {
	filtered := &hearing.CandidateRoster{
		HearingID: roster.HearingID,
		Committee: roster.Committee,
	}

	for _, name := range names {
		entry := roster.FindByName(name)
		if entry == nil {
			return nil, fmt.Errorf("speaker %q not on roster", name)
		}
		filtered.Entries = append(filtered.Entries, *entry)
	}

	return filtered, nil
}
