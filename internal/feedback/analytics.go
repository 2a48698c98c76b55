package feedback

import (
	"fmt"
	"sort"

	"github.com/hearingdesk/speaker-attribution/internal/attribution"
	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
	"github.com/hearingdesk/speaker-attribution/pkg/logging"
)

// ConfusionPair counts how often one speaker was predicted when another
// actually spoke
type ConfusionPair struct {
	Predicted string `json:"predicted"`
	Actual    string `json:"actual"`
	Count     int    `json:"count"`
}

// BucketStats measures error rate within one slice of the corrections
type BucketStats struct {
	Bucket    string  `json:"bucket"`
	Total     int     `json:"total"`
	Errors    int     `json:"errors"`
	ErrorRate float64 `json:"error_rate"`
}

// MethodStats measures accuracy per attribution method
type MethodStats struct {
	Method   attribution.Method `json:"method"`
	Total    int                `json:"total"`
	Correct  int                `json:"correct"`
	Accuracy float64            `json:"accuracy"`
}

// AccuracyStats summarizes prediction accuracy against correction history
type AccuracyStats struct {
	LabeledSegments int           `json:"labeled_segments"`
	Correct         int           `json:"correct"`
	Accuracy        float64       `json:"accuracy"`
	ByMethod        []MethodStats `json:"by_method"`
}

// Insight is one ranked, human-readable tuning recommendation. Insights are
// advisory; nothing acts on them automatically.
type Insight struct {
	Rank     int    `json:"rank"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Count    int    `json:"count"`
}

// AnalyticsReport is the full pattern analysis over correction history
type AnalyticsReport struct {
	Stats          AccuracyStats   `json:"stats"`
	ConfusionPairs []ConfusionPair `json:"confusion_pairs"`
	SessionPhase   []BucketStats   `json:"session_phase"`
	SegmentLength  []BucketStats   `json:"segment_length"`
	Insights       []Insight       `json:"insights"`
}

// PatternAnalyzer mines correction history for systematic error patterns
type PatternAnalyzer struct {
	logger logging.Logger
}

// NewPatternAnalyzer creates a pattern analyzer
func NewPatternAnalyzer(logger logging.Logger) *PatternAnalyzer {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &PatternAnalyzer{
		logger: logger.WithFields(logging.Fields{
			"component": "pattern_analyzer",
		}),
	}
}

// labeled is one prediction joined with its verified correction
type labeled struct {
	record  *attribution.EvidenceRecord
	truth   string
	correct bool
}

// Analyze joins evidence with corrections and aggregates error patterns
// into ranked recommendations
func (a *PatternAnalyzer) Analyze(records []attribution.EvidenceRecord, corrections []hearing.Correction) *AnalyticsReport {
	cases := joinLabeled(records, corrections)

	report := &AnalyticsReport{
		Stats:          accuracyStats(cases),
		ConfusionPairs: confusionPairs(cases),
		SessionPhase:   bucketize(cases, phaseBucket),
		SegmentLength:  bucketize(cases, lengthBucket),
	}
	report.Insights = a.insights(report)

	a.logger.Info("Pattern analysis completed", logging.Fields{
		"labeled":  report.Stats.LabeledSegments,
		"accuracy": report.Stats.Accuracy,
		"insights": len(report.Insights),
	})

	return report
}

func joinLabeled(records []attribution.EvidenceRecord, corrections []hearing.Correction) []labeled {
	truth := make(map[string]string, len(corrections))
	for _, c := range corrections {
		truth[c.TranscriptID+"/"+c.SegmentID] = c.Speaker
	}

	var cases []labeled
	for i := range records {
		speaker, ok := truth[records[i].TranscriptID+"/"+records[i].SegmentID]
		if !ok {
			continue
		}
		cases = append(cases, labeled{
			record:  &records[i],
			truth:   speaker,
			correct: records[i].Speaker == speaker,
		})
	}
	return cases
}

func accuracyStats(cases []labeled) AccuracyStats {
	stats := AccuracyStats{LabeledSegments: len(cases)}

	byMethod := make(map[attribution.Method]*MethodStats)
	for _, c := range cases {
		m := byMethod[c.record.Method]
		if m == nil {
			m = &MethodStats{Method: c.record.Method}
			byMethod[c.record.Method] = m
		}
		m.Total++
		if c.correct {
			m.Correct++
			stats.Correct++
		}
	}

	if stats.LabeledSegments > 0 {
		stats.Accuracy = float64(stats.Correct) / float64(stats.LabeledSegments)
	}

	for _, m := range byMethod {
		if m.Total > 0 {
			m.Accuracy = float64(m.Correct) / float64(m.Total)
		}
		stats.ByMethod = append(stats.ByMethod, *m)
	}
	sort.Slice(stats.ByMethod, func(i, j int) bool {
		return stats.ByMethod[i].Total > stats.ByMethod[j].Total
	})

	return stats
}

func confusionPairs(cases []labeled) []ConfusionPair {
	counts := make(map[[2]string]int)
	for _, c := range cases {
		if c.correct || c.record.Speaker == attribution.UnknownSpeaker {
			continue
		}
		counts[[2]string{c.record.Speaker, c.truth}]++
	}

	pairs := make([]ConfusionPair, 0, len(counts))
	for pair, count := range counts {
		pairs = append(pairs, ConfusionPair{
			Predicted: pair[0],
			Actual:    pair[1],
			Count:     count,
		})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}
		return pairs[i].Predicted < pairs[j].Predicted
	})

	return pairs
}

// phaseBucket places a segment in the hearing's opening, middle, or late
// phase by its start offset
func phaseBucket(r *attribution.EvidenceRecord) string {
	switch {
	case r.StartTime < 30*60:
		return "first 30 min"
	case r.StartTime < 90*60:
		return "30-90 min"
	default:
		return "after 90 min"
	}
}

func lengthBucket(r *attribution.EvidenceRecord) string {
	switch {
	case r.Duration < 5:
		return "under 5s"
	case r.Duration < 15:
		return "5-15s"
	default:
		return "over 15s"
	}
}

func bucketize(cases []labeled, bucket func(*attribution.EvidenceRecord) string) []BucketStats {
	byBucket := make(map[string]*BucketStats)
	var order []string

	for _, c := range cases {
		name := bucket(c.record)
		b := byBucket[name]
		if b == nil {
			b = &BucketStats{Bucket: name}
			byBucket[name] = b
			order = append(order, name)
		}
		b.Total++
		if !c.correct {
			b.Errors++
		}
	}

	stats := make([]BucketStats, 0, len(order))
	sort.Strings(order)
	for _, name := range order {
		b := byBucket[name]
		if b.Total > 0 {
			b.ErrorRate = float64(b.Errors) / float64(b.Total)
		}
		stats = append(stats, *b)
	}
	return stats
}

// insights turns aggregated patterns into ranked recommendations
func (a *PatternAnalyzer) insights(report *AnalyticsReport) []Insight {
	var insights []Insight

	for _, pair := range report.ConfusionPairs {
		if pair.Count < 3 {
			break
		}
		insights = append(insights, Insight{
			Category: "speaker_confusion",
			Count:    pair.Count,
			Message: fmt.Sprintf("%s and %s are frequently confused (%d corrections) - consider collecting more voice samples for both",
				pair.Predicted, pair.Actual, pair.Count),
		})
	}

	overall := 1.0 - report.Stats.Accuracy
	for _, b := range report.SegmentLength {
		if b.Total >= 5 && b.ErrorRate > overall+0.15 {
			insights = append(insights, Insight{
				Category: "segment_length",
				Count:    b.Errors,
				Message: fmt.Sprintf("segments %s are corrected at %.0f%% vs %.0f%% overall - short or atypical segments may need a longer minimum analysis window",
					b.Bucket, b.ErrorRate*100, overall*100),
			})
		}
	}

	for _, b := range report.SessionPhase {
		if b.Total >= 5 && b.ErrorRate > overall+0.15 {
			insights = append(insights, Insight{
				Category: "session_phase",
				Count:    b.Errors,
				Message: fmt.Sprintf("segments in the %s of hearings are corrected at %.0f%% vs %.0f%% overall - review audio conditions for that phase",
					b.Bucket, b.ErrorRate*100, overall*100),
			})
		}
	}

	sort.SliceStable(insights, func(i, j int) bool {
		return insights[i].Count > insights[j].Count
	})
	for i := range insights {
		insights[i].Rank = i + 1
	}

	return insights
}
