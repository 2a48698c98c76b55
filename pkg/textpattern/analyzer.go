package textpattern

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
	"github.com/hearingdesk/speaker-attribution/pkg/logging"
)

// MatchKind distinguishes cues that name a specific roster entry from cues
// that only narrow the speaker to a role class
type MatchKind string

const (
	// MatchIdentity names a specific roster entry
	MatchIdentity MatchKind = "identity"
	// MatchRole narrows to a role class (chair, ranking, witness)
	MatchRole MatchKind = "role"
)

// Match is one textual cue resolved against the roster
type Match struct {
	Entry      *hearing.RosterEntry `json:"entry"`
	Kind       MatchKind            `json:"kind"`
	Confidence float64              `json:"confidence"`
	Pattern    string               `json:"pattern"`
}

// Config contains text analysis settings
type Config struct {
	IdentityBaseConfidence float64 `json:"identity_base_confidence" yaml:"identity_base_confidence"`
	RoleBaseConfidence     float64 `json:"role_base_confidence" yaml:"role_base_confidence"`
	RepeatMentionBoost     float64 `json:"repeat_mention_boost" yaml:"repeat_mention_boost"`
	MaxConfidence          float64 `json:"max_confidence" yaml:"max_confidence"`
}

// DefaultConfig returns analysis defaults. The base confidences are
// empirical: identity cues name a roster entry outright, role cues only
// narrow the field, so they start well apart.
func DefaultConfig() *Config {
	return &Config{
		IdentityBaseConfidence: 0.65,
		RoleBaseConfidence:     0.35,
		RepeatMentionBoost:     0.10,
		MaxConfidence:          0.90,
	}
}

// Validate checks configuration bounds
func (c *Config) Validate() error {
	if c.IdentityBaseConfidence <= 0 || c.IdentityBaseConfidence > 1 {
		return fmt.Errorf("identity_base_confidence must be in (0,1], got %f", c.IdentityBaseConfidence)
	}
	if c.RoleBaseConfidence <= 0 || c.RoleBaseConfidence > 1 {
		return fmt.Errorf("role_base_confidence must be in (0,1], got %f", c.RoleBaseConfidence)
	}
	if c.RoleBaseConfidence >= c.IdentityBaseConfidence {
		return fmt.Errorf("role_base_confidence must be below identity_base_confidence")
	}
	if c.MaxConfidence < c.IdentityBaseConfidence || c.MaxConfidence > 1 {
		return fmt.Errorf("max_confidence must be in [identity_base_confidence,1], got %f", c.MaxConfidence)
	}
	return nil
}

// Title variants that precede a surname in hearing-room address
var titlePattern = `(?:senator|sen\.|representative|rep\.|congressman|congresswoman|chairman|chairwoman|dr\.|mr\.|ms\.|mrs\.)`

var stateAddressRegex = regexp.MustCompile(`the\s+(?:gentleman|gentlewoman|gentlelady)\s+from\s+([a-z][a-z ]+?)(?:[,.]|\s+is\b|\s+for\b|$)`)

// Procedural phrases that place the current speaker in a role class.
// Gavel and recognition language belongs to whoever holds the gavel.
var roleCues = []struct {
	phrase string
	role   hearing.RosterRole
}{
	{"will come to order", hearing.RoleChair},
	{"hearing is adjourned", hearing.RoleChair},
	{"the chair recognizes", hearing.RoleChair},
	{"without objection, so ordered", hearing.RoleChair},
	{"the witness may proceed", hearing.RoleChair},
	{"as ranking member", hearing.RoleRanking},
	{"in my written testimony", hearing.RoleWitness},
	{"thank you for the opportunity to testify", hearing.RoleWitness},
}

// Analyzer scans transcript text for cues that suggest a speaker identity or
// role, resolved against a hearing's candidate roster
type Analyzer struct {
	cfg    *Config
	logger logging.Logger
}

// NewAnalyzer creates a text pattern analyzer
func NewAnalyzer(cfg *Config, logger logging.Logger) *Analyzer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Analyzer{
		cfg: cfg,
		logger: logger.WithFields(logging.Fields{
			"component": "text_pattern_analyzer",
		}),
	}
}

// Analyze returns all roster candidates suggested by the segment text, each
// with an independent confidence. An empty result means no textual cues were
// present; it is a valid outcome, not an error.
func (a *Analyzer) Analyze(text string, roster *hearing.CandidateRoster) []Match {
	if roster == nil || len(roster.Entries) == 0 || strings.TrimSpace(text) == "" {
		return nil
	}

	lower := strings.ToLower(text)

	var matches []Match
	matches = append(matches, a.identityMatches(lower, roster)...)
	matches = append(matches, a.stateAddressMatches(lower, roster)...)
	matches = append(matches, a.roleMatches(lower, roster)...)

	// Best match per (entry, kind); identity first, then by confidence
	matches = dedupe(matches)
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Kind != matches[j].Kind {
			return matches[i].Kind == MatchIdentity
		}
		return matches[i].Confidence > matches[j].Confidence
	})

	if len(matches) > 0 {
		a.logger.Debug("Text cues resolved", logging.Fields{
			"matches":   len(matches),
			"top":       matches[0].Entry.Name,
			"top_kind":  string(matches[0].Kind),
			"top_score": matches[0].Confidence,
		})
	}

	return matches
}

// identityMatches finds titled mentions and alias mentions of roster entries
func (a *Analyzer) identityMatches(lower string, roster *hearing.CandidateRoster) []Match {
	var matches []Match

	for i := range roster.Entries {
		entry := &roster.Entries[i]

		hits := 0
		pattern := ""

		surname := surnameOf(entry.Name)
		if surname != "" {
			re, err := regexp.Compile(titlePattern + `\s+` + regexp.QuoteMeta(surname) + `\b`)
			if err == nil {
				found := re.FindAllString(lower, -1)
				if len(found) > 0 {
					hits += len(found)
					pattern = found[0]
				}
			}
		}

		for _, alias := range entry.Aliases {
			al := strings.ToLower(alias)
			if al != "" && strings.Contains(lower, al) {
				hits++
				if pattern == "" {
					pattern = al
				}
			}
		}

		if hits == 0 {
			continue
		}

		matches = append(matches, Match{
			Entry:      entry,
			Kind:       MatchIdentity,
			Confidence: a.boosted(a.cfg.IdentityBaseConfidence, hits),
			Pattern:    pattern,
		})
	}

	return matches
}

// stateAddressMatches resolves "the gentleman from Texas" style address
// against roster entries' home states
func (a *Analyzer) stateAddressMatches(lower string, roster *hearing.CandidateRoster) []Match {
	var matches []Match

	for _, groups := range stateAddressRegex.FindAllStringSubmatch(lower, -1) {
		state := strings.TrimSpace(groups[1])

		var candidates []*hearing.RosterEntry
		for i := range roster.Entries {
			entry := &roster.Entries[i]
			if entry.State != "" && strings.EqualFold(entry.State, state) {
				candidates = append(candidates, entry)
			}
		}

		// The address only identifies a speaker when exactly one roster
		// entry holds that state
		if len(candidates) != 1 {
			continue
		}

		matches = append(matches, Match{
			Entry:      candidates[0],
			Kind:       MatchIdentity,
			Confidence: a.cfg.IdentityBaseConfidence,
			Pattern:    strings.TrimSpace(groups[0]),
		})
	}

	return matches
}

// roleMatches finds procedural phrases that narrow the speaker to a role
// class, resolved to a candidate only when the role has a single holder
func (a *Analyzer) roleMatches(lower string, roster *hearing.CandidateRoster) []Match {
	var matches []Match

	for _, cue := range roleCues {
		if !strings.Contains(lower, cue.phrase) {
			continue
		}

		entry := roster.FindByRole(cue.role)
		if entry == nil || !roleIsUnique(roster, cue.role) {
			continue
		}

		matches = append(matches, Match{
			Entry:      entry,
			Kind:       MatchRole,
			Confidence: a.cfg.RoleBaseConfidence,
			Pattern:    cue.phrase,
		})
	}

	return matches
}

// boosted raises a base confidence for repeated independent cues, capped at
// the configured ceiling
func (a *Analyzer) boosted(base float64, hits int) float64 {
	conf := base + float64(hits-1)*a.cfg.RepeatMentionBoost
	if conf > a.cfg.MaxConfidence {
		conf = a.cfg.MaxConfidence
	}
	return conf
}

func roleIsUnique(roster *hearing.CandidateRoster, role hearing.RosterRole) bool {
	count := 0
	for i := range roster.Entries {
		if roster.Entries[i].Role == role {
			count++
		}
	}
	return count == 1
}

func dedupe(matches []Match) []Match {
	type key struct {
		name string
		kind MatchKind
	}

	best := make(map[key]Match)
	var order []key
	for _, m := range matches {
		k := key{name: m.Entry.Name, kind: m.Kind}
		prev, seen := best[k]
		if !seen {
			order = append(order, k)
		}
		if !seen || m.Confidence > prev.Confidence {
			best[k] = m
		}
	}

	out := make([]Match, 0, len(best))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

// surnameOf extracts the last name token from a display name, dropping
// leading titles and trailing suffixes
func surnameOf(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	for i := len(fields) - 1; i >= 0; i-- {
		token := strings.Trim(fields[i], ".,")
		switch token {
		case "jr", "sr", "ii", "iii", "iv", "md", "phd":
			continue
		}
		return token
	}
	return ""
}
