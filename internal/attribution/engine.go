package attribution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
	"github.com/hearingdesk/speaker-attribution/pkg/logging"
	"github.com/hearingdesk/speaker-attribution/pkg/textpattern"
	"github.com/hearingdesk/speaker-attribution/pkg/voicefeatures"
	"github.com/hearingdesk/speaker-attribution/pkg/voicemodel"
)

// FeatureExtractor produces a voice feature vector from mono PCM
type FeatureExtractor interface {
	ExtractPCM(pcm []float64, sampleRate int) (voicefeatures.FeatureVector, error)
}

// ModelScorer scores a feature vector against one speaker's voice model
type ModelScorer interface {
	Score(speakerID string, vec voicefeatures.FeatureVector) (float64, error)
}

// TextAnalyzer resolves textual cues against a roster
type TextAnalyzer interface {
	Analyze(text string, roster *hearing.CandidateRoster) []textpattern.Match
}

// ThresholdProvider supplies the current decision threshold set
type ThresholdProvider interface {
	Current() (*ThresholdSet, error)
}

// EvidenceAppender records per-segment evidence for later replay
type EvidenceAppender interface {
	Append(transcriptID string, result *Result) error
}

// EngineConfig contains configuration for the fusion engine
type EngineConfig struct {
	Extractor  FeatureExtractor
	Models     ModelScorer
	Text       TextAnalyzer
	Thresholds ThresholdProvider
	Evidence   EvidenceAppender

	MaxConcurrentSegments int
	SegmentTimeout        time.Duration

	// LoadAudio is overridable for tests; defaults to decoding from disk
	LoadAudio func(path string) (*voicefeatures.Audio, error)

	Logger logging.Logger
}

// Engine runs the fusion matcher over a hearing: acoustic scoring against
// every roster model, textual cue analysis, and the threshold decision
// ladder, per segment
type Engine struct {
	extractor  FeatureExtractor
	models     ModelScorer
	text       TextAnalyzer
	thresholds ThresholdProvider
	evidence   EvidenceAppender

	maxConcurrent  int
	segmentTimeout time.Duration
	loadAudio      func(path string) (*voicefeatures.Audio, error)

	logger logging.Logger
}

// AttributionRequest identifies one hearing to attribute
type AttributionRequest struct {
	HearingID    string
	TranscriptID string
	AudioPath    string
	Segments     []hearing.TranscriptSegment
	Roster       *hearing.CandidateRoster
}

// NewEngine creates a fusion engine
func NewEngine(config *EngineConfig) (*Engine, error) {
	if config.Extractor == nil || config.Models == nil || config.Text == nil || config.Thresholds == nil {
		return nil, fmt.Errorf("engine requires extractor, models, text analyzer, and thresholds")
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	maxConcurrent := config.MaxConcurrentSegments
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	segmentTimeout := config.SegmentTimeout
	if segmentTimeout <= 0 {
		segmentTimeout = 30 * time.Second
	}

	loadAudio := config.LoadAudio
	if loadAudio == nil {
		loadAudio = voicefeatures.LoadAudio
	}

	return &Engine{
		extractor:      config.Extractor,
		models:         config.Models,
		text:           config.Text,
		thresholds:     config.Thresholds,
		evidence:       config.Evidence,
		maxConcurrent:  maxConcurrent,
		segmentTimeout: segmentTimeout,
		loadAudio:      loadAudio,
		logger: logger.WithFields(logging.Fields{
			"component": "fusion_engine",
		}),
	}, nil
}

// AttributeHearing attributes every segment of a hearing. Thresholds are
// snapshotted once up front so all segments of one run are judged by the
// same version. Per-segment failures are recorded on the result and never
// abort sibling segments.
func (e *Engine) AttributeHearing(ctx context.Context, req *AttributionRequest) (*HearingAttribution, error) {
	if err := req.Roster.Validate(); err != nil {
		return nil, fmt.Errorf("invalid roster: %w", err)
	}
	for i := range req.Segments {
		if err := req.Segments[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid segment %d: %w", i, err)
		}
	}

	thresholds, err := e.thresholds.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to load thresholds: %w", err)
	}

	e.logger.Info("Starting hearing attribution", logging.Fields{
		"hearing_id":        req.HearingID,
		"transcript_id":     req.TranscriptID,
		"segments":          len(req.Segments),
		"roster_size":       len(req.Roster.Entries),
		"threshold_version": thresholds.Version,
	})

	audio, err := e.loadAudio(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load hearing audio: %w", err)
	}

	results := make([]Result, len(req.Segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)

	for i := range req.Segments {
		g.Go(func() error {
			segCtx, cancel := context.WithTimeout(gctx, e.segmentTimeout)
			defer cancel()

			results[i] = e.attributeSegment(segCtx, audio, &req.Segments[i], req.Roster, thresholds)
			return nil
		})
	}

	// Worker funcs never return errors; per-segment failures live on the
	// results. Wait only propagates context cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if e.evidence != nil {
		for i := range results {
			if err := e.evidence.Append(req.TranscriptID, &results[i]); err != nil {
				e.logger.Error(err, "Failed to record evidence", logging.Fields{
					"segment_id": results[i].SegmentID,
				})
			}
		}
	}

	att := &HearingAttribution{
		HearingID:    req.HearingID,
		TranscriptID: req.TranscriptID,
		Results:      results,
		Summary:      summarizeResults(results, req.Segments, req.Roster, thresholds.Version),
		ProcessedAt:  time.Now().UTC(),
	}

	e.logger.Info("Hearing attribution completed", logging.Fields{
		"hearing_id":     req.HearingID,
		"segments":       att.Summary.TotalSegments,
		"unresolved":     att.Summary.UnresolvedCount,
		"failed":         att.Summary.FailedCount,
		"avg_confidence": att.Summary.AvgConfidence,
	})

	return att, nil
}

// attributeSegment resolves one segment through both signal paths and the
// decision ladder
func (e *Engine) attributeSegment(ctx context.Context, audio *voicefeatures.Audio, seg *hearing.TranscriptSegment, roster *hearing.CandidateRoster, thresholds *ThresholdSet) Result {
	result := Result{
		SegmentID: seg.ID,
		StartTime: seg.StartTime,
		Duration:  seg.Duration(),
		Evidence: Evidence{
			ThresholdsVersion: thresholds.Version,
		},
	}

	if err := ctx.Err(); err != nil {
		result.Error = err
		result.Speaker = UnknownSpeaker
		result.Method = MethodUnresolved
		return result
	}

	voice := e.voiceSignal(audio, seg, roster, &result.Evidence)

	matches := e.text.Analyze(seg.Text, roster)
	text := bestTextSignal(matches)
	result.Evidence.TextMatches = matches
	result.Evidence.TextCandidate = text.candidate
	result.Evidence.TextConfidence = text.confidence

	result.Speaker, result.Confidence, result.Method = decide(voice, text, thresholds)
	return result
}

// voiceSignal extracts the segment's feature vector and scores it against
// every roster model. Missing models and unusable audio are "no acoustic
// opinion", not failures.
func (e *Engine) voiceSignal(audio *voicefeatures.Audio, seg *hearing.TranscriptSegment, roster *hearing.CandidateRoster, ev *Evidence) signal {
	pcm := audio.Slice(voicefeatures.TimeWindow{Start: seg.StartTime, End: seg.EndTime})

	vec, err := e.extractor.ExtractPCM(pcm, audio.SampleRate)
	if err != nil {
		var insufficient *voicefeatures.InsufficientAudioError
		if !errors.As(err, &insufficient) {
			e.logger.Warn("Feature extraction failed for segment", logging.Fields{
				"segment_id": seg.ID,
				"error":      err.Error(),
			})
		}
		return signal{}
	}

	ev.VoiceScores = make(map[string]float64)

	var best signal
	for i := range roster.Entries {
		name := roster.Entries[i].Name

		score, err := e.models.Score(name, vec)
		if err != nil {
			if !errors.Is(err, voicemodel.ErrModelNotFound) {
				e.logger.Warn("Model scoring failed", logging.Fields{
					"segment_id": seg.ID,
					"speaker":    name,
					"error":      err.Error(),
				})
			}
			continue
		}

		ev.VoiceScores[name] = score
		if score > best.confidence {
			best = signal{candidate: name, confidence: score}
		}
	}

	ev.VoiceCandidate = best.candidate
	ev.VoiceConfidence = best.confidence
	return best
}

// summarizeResults aggregates hearing-level statistics, including roster
// entries that attracted zero segments
func summarizeResults(results []Result, segments []hearing.TranscriptSegment, roster *hearing.CandidateRoster, thresholdVersion int) Summary {
	summary := Summary{
		TotalSegments:    len(results),
		ByMethod:         make(map[Method]int),
		ThresholdVersion: thresholdVersion,
	}

	durations := make(map[string]float64)
	for i := range segments {
		durations[segments[i].ID] = segments[i].Duration()
	}

	type agg struct {
		count    int
		duration float64
		confSum  float64
	}
	perSpeaker := make(map[string]*agg)

	confSum := 0.0
	for i := range results {
		r := &results[i]
		summary.ByMethod[r.Method]++
		confSum += r.Confidence

		if r.Error != nil {
			summary.FailedCount++
		}
		if r.Method == MethodUnresolved {
			summary.UnresolvedCount++
			continue
		}

		a := perSpeaker[r.Speaker]
		if a == nil {
			a = &agg{}
			perSpeaker[r.Speaker] = a
		}
		a.count++
		a.duration += durations[r.SegmentID]
		a.confSum += r.Confidence
	}

	if len(results) > 0 {
		summary.AvgConfidence = confSum / float64(len(results))
	}

	for speaker, a := range perSpeaker {
		summary.Coverage = append(summary.Coverage, SpeakerCoverage{
			Speaker:       speaker,
			SegmentCount:  a.count,
			TotalDuration: a.duration,
			AvgConfidence: a.confSum / float64(a.count),
		})
	}
	sort.Slice(summary.Coverage, func(i, j int) bool {
		return summary.Coverage[i].SegmentCount > summary.Coverage[j].SegmentCount
	})

	for i := range roster.Entries {
		if _, ok := perSpeaker[roster.Entries[i].Name]; !ok {
			summary.ZeroCoverage = append(summary.ZeroCoverage, roster.Entries[i].Name)
		}
	}
	sort.Strings(summary.ZeroCoverage)

	return summary
}
