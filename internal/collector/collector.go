package collector

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
	"github.com/hearingdesk/speaker-attribution/pkg/logging"
	"github.com/hearingdesk/speaker-attribution/pkg/output"
	"github.com/hearingdesk/speaker-attribution/pkg/voicefeatures"
)

// ClipRater extracts a feature vector from a downloaded clip so its audio
// quality can be judged before the clip is kept
type ClipRater interface {
	ExtractFile(path string, window *voicefeatures.TimeWindow) (voicefeatures.FeatureVector, error)
}

// Config contains voice sample collection settings
type Config struct {
	SampleDir             string        `json:"sample_dir" yaml:"sample_dir"`
	MaxSamplesPerSpeaker  int           `json:"max_samples_per_speaker" yaml:"max_samples_per_speaker"`
	SearchLimit           int           `json:"search_limit" yaml:"search_limit"`
	MinRelevance          float64       `json:"min_relevance" yaml:"min_relevance"`
	MinQuality            float64       `json:"min_quality" yaml:"min_quality"`
	MinClipDuration       time.Duration `json:"min_clip_duration" yaml:"min_clip_duration"`
	MaxClipDuration       time.Duration `json:"max_clip_duration" yaml:"max_clip_duration"`
	MaxConcurrentSpeakers int           `json:"max_concurrent_speakers" yaml:"max_concurrent_speakers"`

	Retry *RetryPolicy `json:"retry" yaml:"retry"`
}

// DefaultConfig returns collection defaults
func DefaultConfig() *Config {
	return &Config{
		SampleDir:             "./samples",
		MaxSamplesPerSpeaker:  10,
		SearchLimit:           25,
		MinRelevance:          0.5,
		MinQuality:            0.4,
		MinClipDuration:       5 * time.Second,
		MaxClipDuration:       10 * time.Minute,
		MaxConcurrentSpeakers: 4,
		Retry:                 DefaultRetryPolicy(),
	}
}

// Validate validates the collection configuration
func (c *Config) Validate() error {
	if c.MaxSamplesPerSpeaker <= 0 {
		return fmt.Errorf("max samples per speaker must be positive")
	}
	if c.MinRelevance < 0 || c.MinRelevance > 1 {
		return fmt.Errorf("min relevance must be between 0 and 1")
	}
	if c.MinQuality < 0 || c.MinQuality > 1 {
		return fmt.Errorf("min quality must be between 0 and 1")
	}
	if c.MinClipDuration <= 0 {
		return fmt.Errorf("min clip duration must be positive")
	}
	if c.MaxClipDuration <= c.MinClipDuration {
		return fmt.Errorf("max clip duration must exceed min clip duration")
	}
	return nil
}

// SpeakerCollection is the outcome for one roster entry. Zero samples with
// recorded errors is a valid degraded outcome, not a failure.
type SpeakerCollection struct {
	SpeakerID  string                `json:"speaker_id"`
	Samples    []hearing.VoiceSample `json:"samples"`
	Candidates int                   `json:"candidates"`
	Skipped    int                   `json:"skipped"`
	Errors     []string              `json:"errors,omitempty"`
}

// CollectionSummary aggregates one collection run
type CollectionSummary struct {
	Speakers     []SpeakerCollection `json:"speakers"`
	TotalSamples int                 `json:"total_samples"`
	ZeroSample   []string            `json:"zero_sample,omitempty"`
	Duration     time.Duration       `json:"duration"`
}

// WriteTable renders per-speaker collection outcomes as an aligned table
func (s *CollectionSummary) WriteTable(w io.Writer) error {
	fmt.Fprintf(w, "Collected %d samples across %d speakers in %s\n\n",
		s.TotalSamples, len(s.Speakers), s.Duration.Round(time.Millisecond))

	tw := output.NewTable(w)
	fmt.Fprintln(tw, "SPEAKER\tSAMPLES\tCANDIDATES\tSKIPPED\tERRORS")
	for _, sc := range s.Speakers {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n",
			sc.SpeakerID, len(sc.Samples), sc.Candidates, sc.Skipped, len(sc.Errors))
	}
	return tw.Flush()
}

// Collector gathers candidate voice clips for roster speakers from external
// content sources, scoring each clip for relevance and audio quality before
// keeping it
type Collector struct {
	cfg     *Config
	sources []Source
	rater   ClipRater
	index   *SampleIndex
	logger  logging.Logger
}

// NewCollector creates a voice sample collector
func NewCollector(cfg *Config, sources []Source, rater ClipRater, index *SampleIndex, logger logging.Logger) (*Collector, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("collector requires at least one source")
	}
	if cfg.Retry == nil {
		cfg.Retry = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Collector{
		cfg:     cfg,
		sources: sources,
		rater:   rater,
		index:   index,
		logger: logger.WithFields(logging.Fields{
			"component": "sample_collector",
		}),
	}, nil
}

// Collect gathers samples for every roster speaker. Speakers run
// concurrently; one speaker's source failures never abort the others.
func (c *Collector) Collect(ctx context.Context, roster *hearing.CandidateRoster) (*CollectionSummary, error) {
	if err := roster.Validate(); err != nil {
		return nil, fmt.Errorf("invalid roster: %w", err)
	}

	start := time.Now()
	collections := make([]SpeakerCollection, len(roster.Entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrentSpeakers)

	for i := range roster.Entries {
		g.Go(func() error {
			collections[i] = c.collectSpeaker(gctx, &roster.Entries[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &CollectionSummary{
		Speakers: collections,
		Duration: time.Since(start),
	}
	for i := range collections {
		summary.TotalSamples += len(collections[i].Samples)
		if len(collections[i].Samples) == 0 {
			summary.ZeroSample = append(summary.ZeroSample, collections[i].SpeakerID)
		}
	}

	c.logger.Info("Sample collection completed", logging.Fields{
		"speakers":      len(roster.Entries),
		"total_samples": summary.TotalSamples,
		"zero_sample":   len(summary.ZeroSample),
		"duration_ms":   summary.Duration.Milliseconds(),
	})

	return summary, nil
}

// collectSpeaker gathers up to the configured sample cap for one speaker
// across all sources
func (c *Collector) collectSpeaker(ctx context.Context, entry *hearing.RosterEntry) SpeakerCollection {
	collection := SpeakerCollection{SpeakerID: entry.Name}
	query := searchQuery(entry)

	for _, source := range c.sources {
		if len(collection.Samples) >= c.cfg.MaxSamplesPerSpeaker {
			break
		}

		var candidates []ClipCandidate
		err := c.cfg.Retry.Do(ctx, func() error {
			var searchErr error
			candidates, searchErr = source.Search(ctx, query, c.cfg.SearchLimit)
			return searchErr
		})
		if err != nil {
			collection.Errors = append(collection.Errors,
				fmt.Sprintf("%s search: %v", source.Name(), err))
			c.logger.Warn("Source search failed", logging.Fields{
				"speaker": entry.Name,
				"source":  source.Name(),
				"error":   err.Error(),
			})
			continue
		}

		collection.Candidates += len(candidates)

		for i := range candidates {
			if len(collection.Samples) >= c.cfg.MaxSamplesPerSpeaker {
				break
			}

			sample, skipped, err := c.evaluateCandidate(ctx, source, entry, &candidates[i])
			if err != nil {
				collection.Errors = append(collection.Errors,
					fmt.Sprintf("%s %s: %v", source.Name(), candidates[i].MediaURL, err))
				continue
			}
			if skipped {
				collection.Skipped++
				continue
			}

			collection.Samples = append(collection.Samples, *sample)
		}
	}

	return collection
}

// evaluateCandidate applies the dedup, relevance, and quality gates to one
// candidate and keeps it if all pass. skipped=true means the clip failed a
// gate; err means collection machinery failed on it.
func (c *Collector) evaluateCandidate(ctx context.Context, source Source, entry *hearing.RosterEntry, candidate *ClipCandidate) (*hearing.VoiceSample, bool, error) {
	if candidate.Duration > 0 &&
		(candidate.Duration < c.cfg.MinClipDuration || candidate.Duration > c.cfg.MaxClipDuration) {
		return nil, true, nil
	}

	relevance := relevanceScore(entry, candidate)
	if relevance < c.cfg.MinRelevance {
		return nil, true, nil
	}

	if c.index != nil {
		seen, err := c.index.Has(entry.Name, candidate.MediaURL)
		if err != nil {
			return nil, false, err
		}
		if !seen {
			seen, err = c.index.Rejected(entry.Name, candidate.MediaURL)
			if err != nil {
				return nil, false, err
			}
		}
		if seen {
			return nil, true, nil
		}
	}

	var path string
	err := c.cfg.Retry.Do(ctx, func() error {
		var dlErr error
		path, dlErr = source.Download(ctx, candidate, c.cfg.SampleDir)
		return dlErr
	})
	if err != nil {
		return nil, false, err
	}

	quality := 1.0
	if c.rater != nil {
		vec, err := c.rater.ExtractFile(path, nil)
		if err != nil {
			// Undecodable or too-short audio fails the quality gate
			return nil, true, c.discardClip(entry.Name, candidate.MediaURL, path)
		}
		quality = vec.Quality()
	}
	if quality < c.cfg.MinQuality {
		return nil, true, c.discardClip(entry.Name, candidate.MediaURL, path)
	}

	sample := &hearing.VoiceSample{
		ID:             uuid.NewString(),
		SpeakerID:      entry.Name,
		Source:         source.Name(),
		SourceURL:      candidate.MediaURL,
		FilePath:       path,
		Duration:       candidate.Duration,
		QualityScore:   quality,
		RelevanceScore: relevance,
		CollectedAt:    time.Now().UTC(),
	}

	if c.index != nil {
		if err := c.index.Put(sample); err != nil {
			return nil, false, err
		}
	}

	c.logger.Debug("Sample collected", logging.Fields{
		"speaker":   entry.Name,
		"source":    source.Name(),
		"relevance": relevance,
		"quality":   quality,
	})

	return sample, false, nil
}

// discardClip drops a downloaded clip that failed a post-download gate: the
// file is removed and the URL recorded so later runs skip the download
func (c *Collector) discardClip(speakerID, sourceURL, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("Failed to remove rejected clip", logging.Fields{
			"speaker": speakerID,
			"path":    path,
			"error":   err.Error(),
		})
	}

	if c.index == nil {
		return nil
	}
	return c.index.MarkRejected(speakerID, sourceURL)
}

// searchQuery builds the source query from a roster entry's name and role
func searchQuery(entry *hearing.RosterEntry) string {
	parts := []string{entry.Name}
	switch entry.Role {
	case hearing.RoleWitness:
		parts = append(parts, "testimony")
	default:
		parts = append(parts, "hearing remarks")
	}
	return strings.Join(parts, " ")
}

// relevanceScore measures token overlap between the speaker's name and the
// clip's title/description, with a small bonus when the text mentions the
// speaker's role
func relevanceScore(entry *hearing.RosterEntry, candidate *ClipCandidate) float64 {
	text := strings.ToLower(candidate.Title + " " + candidate.Description)
	if text == "" {
		return 0
	}

	nameTokens := nameTokens(entry.Name)
	if len(nameTokens) == 0 {
		return 0
	}

	matched := 0
	for _, token := range nameTokens {
		if strings.Contains(text, token) {
			matched++
		}
	}

	score := float64(matched) / float64(len(nameTokens))

	for _, roleTerm := range roleTerms(entry.Role) {
		if strings.Contains(text, roleTerm) {
			score += 0.2
			break
		}
	}

	if score > 1 {
		score = 1
	}
	return score
}

// nameTokens splits a display name into lowercase tokens, dropping titles
// and single-letter initials
func nameTokens(name string) []string {
	var tokens []string
	for _, field := range strings.Fields(strings.ToLower(name)) {
		token := strings.Trim(field, ".,")
		switch token {
		case "sen", "senator", "rep", "representative", "dr", "mr", "ms", "mrs", "hon":
			continue
		}
		if len(token) <= 1 {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

func roleTerms(role hearing.RosterRole) []string {
	switch role {
	case hearing.RoleChair:
		return []string{"chair", "chairman", "chairwoman"}
	case hearing.RoleRanking:
		return []string{"ranking member"}
	case hearing.RoleWitness:
		return []string{"witness", "testimony", "testifies"}
	default:
		return []string{"senator", "representative", "congress"}
	}
}
