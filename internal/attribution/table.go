package attribution

import (
	"fmt"
	"io"

	"github.com/hearingdesk/speaker-attribution/pkg/output"
)

// WriteTable renders the hearing outcome as an aligned table: run totals,
// per-method counts, then per-speaker coverage
func (h *HearingAttribution) WriteTable(w io.Writer) error {
	fmt.Fprintf(w, "Hearing %s (transcript %s)\n", h.HearingID, h.TranscriptID)
	fmt.Fprintf(w, "Segments: %d  Unresolved: %d  Failed: %d  Avg confidence: %.2f  Thresholds: v%d\n\n",
		h.Summary.TotalSegments, h.Summary.UnresolvedCount, h.Summary.FailedCount,
		h.Summary.AvgConfidence, h.Summary.ThresholdVersion)

	tw := output.NewTable(w)
	fmt.Fprintln(tw, "METHOD\tSEGMENTS")
	for _, method := range []Method{MethodVoice, MethodCombined, MethodText, MethodLowConfidence, MethodUnresolved} {
		if n := h.Summary.ByMethod[method]; n > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", method, n)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(h.Summary.Coverage) == 0 && len(h.Summary.ZeroCoverage) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw = output.NewTable(w)
	fmt.Fprintln(tw, "SPEAKER\tSEGMENTS\tDURATION_S\tAVG_CONF")
	for _, c := range h.Summary.Coverage {
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.2f\n",
			c.Speaker, c.SegmentCount, c.TotalDuration, c.AvgConfidence)
	}
	for _, name := range h.Summary.ZeroCoverage {
		fmt.Fprintf(tw, "%s\t0\t0.0\t-\n", name)
	}
	return tw.Flush()
}
