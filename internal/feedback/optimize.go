package feedback

import (
	"fmt"
	"hash/fnv"

	"github.com/hearingdesk/speaker-attribution/internal/attribution"
	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
	"github.com/hearingdesk/speaker-attribution/pkg/logging"
)

// OptimizeMode weights the accuracy/coverage tradeoff in the objective
type OptimizeMode string

const (
	ModeBalanced OptimizeMode = "balanced"
	ModeAccuracy OptimizeMode = "accuracy"
	ModeCoverage OptimizeMode = "coverage"
)

// ThresholdStore is the slice of the threshold store the optimizer needs
type ThresholdStore interface {
	Current() (*attribution.ThresholdSet, error)
	Put(set *attribution.ThresholdSet) (*attribution.ThresholdSet, error)
}

// EvidenceReader supplies recorded attribution evidence for replay
type EvidenceReader interface {
	All() ([]attribution.EvidenceRecord, error)
}

// OptimizeConfig contains threshold optimization settings
type OptimizeConfig struct {
	Mode            OptimizeMode `json:"mode" yaml:"mode"`
	HoldoutFraction float64      `json:"holdout_fraction" yaml:"holdout_fraction"`
	MinCases        int          `json:"min_cases" yaml:"min_cases"`
	MaxRounds       int          `json:"max_rounds" yaml:"max_rounds"`
}

// DefaultOptimizeConfig returns optimization defaults
func DefaultOptimizeConfig() *OptimizeConfig {
	return &OptimizeConfig{
		Mode:            ModeBalanced,
		HoldoutFraction: 0.3,
		MinCases:        10,
		MaxRounds:       3,
	}
}

// EvalScore measures one threshold set against labeled replay cases
type EvalScore struct {
	Accuracy  float64 `json:"accuracy"`
	Coverage  float64 `json:"coverage"`
	Objective float64 `json:"objective"`
	Cases     int     `json:"cases"`
}

// OptimizeResult reports one optimization run
type OptimizeResult struct {
	Accepted bool                      `json:"accepted"`
	Previous *attribution.ThresholdSet `json:"previous"`
	Active   *attribution.ThresholdSet `json:"active"`

	PreviousScore EvalScore `json:"previous_score"`
	ActiveScore   EvalScore `json:"active_score"`

	TrainCases   int `json:"train_cases"`
	HoldoutCases int `json:"holdout_cases"`
}

// replayCase is one evidence record joined with its verified correction
type replayCase struct {
	evidence attribution.Evidence
	truth    string
	key      string
}

// Optimizer retunes the decision threshold set by replaying recorded
// evidence against correction history. A candidate set is only activated
// when it scores strictly better on held-out cases; the search itself never
// sees the holdout.
type Optimizer struct {
	cfg        *OptimizeConfig
	thresholds ThresholdStore
	evidence   EvidenceReader
	logger     logging.Logger
}

// NewOptimizer creates a threshold optimizer
func NewOptimizer(cfg *OptimizeConfig, thresholds ThresholdStore, evidence EvidenceReader, logger logging.Logger) (*Optimizer, error) {
	if thresholds == nil || evidence == nil {
		return nil, fmt.Errorf("optimizer requires threshold store and evidence reader")
	}

	if cfg == nil {
		cfg = DefaultOptimizeConfig()
	}
	if cfg.HoldoutFraction <= 0 || cfg.HoldoutFraction >= 1 {
		return nil, fmt.Errorf("holdout fraction must be in (0,1), got %f", cfg.HoldoutFraction)
	}

	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Optimizer{
		cfg:        cfg,
		thresholds: thresholds,
		evidence:   evidence,
		logger: logger.WithFields(logging.Fields{
			"component": "threshold_optimizer",
		}),
	}, nil
}

// Optimize searches for a better threshold set and activates it. Returns
// ErrNoImprovement when the current set is already at a local optimum for
// the available data; the active thresholds are left unchanged in that case.
func (o *Optimizer) Optimize(corrections []hearing.Correction) (*OptimizeResult, error) {
	current, err := o.thresholds.Current()
	if err != nil {
		return nil, err
	}

	cases, err := o.buildCases(corrections)
	if err != nil {
		return nil, err
	}
	if len(cases) < o.cfg.MinCases {
		return nil, fmt.Errorf("%w: %d labeled cases, need %d", ErrNoEvaluationData, len(cases), o.cfg.MinCases)
	}

	train, holdout := splitCases(cases, o.cfg.HoldoutFraction)
	if len(holdout) == 0 || len(train) == 0 {
		return nil, fmt.Errorf("%w: split produced an empty partition", ErrNoEvaluationData)
	}

	best := current
	bestTrain := o.evaluate(current, train)

	for round := 0; round < o.cfg.MaxRounds; round++ {
		improved := false
		for _, candidate := range neighbors(best) {
			if candidate.Validate() != nil {
				continue
			}
			score := o.evaluate(candidate, train)
			if score.Objective > bestTrain.Objective+1e-9 {
				best = candidate
				bestTrain = score
				improved = true
			}
		}
		if !improved {
			break
		}
	}

	currentHoldout := o.evaluate(current, holdout)
	bestHoldout := o.evaluate(best, holdout)

	result := &OptimizeResult{
		Previous:      current,
		Active:        current,
		PreviousScore: currentHoldout,
		ActiveScore:   currentHoldout,
		TrainCases:    len(train),
		HoldoutCases:  len(holdout),
	}

	// Strictly-better on held-out data, and no regression on either axis
	if best == current ||
		bestHoldout.Objective <= currentHoldout.Objective+1e-9 ||
		bestHoldout.Accuracy < currentHoldout.Accuracy ||
		bestHoldout.Coverage < currentHoldout.Coverage {
		o.logger.Info("Threshold optimization found no improvement", logging.Fields{
			"cases":     len(cases),
			"accuracy":  currentHoldout.Accuracy,
			"coverage":  currentHoldout.Coverage,
			"objective": currentHoldout.Objective,
		})
		return result, ErrNoImprovement
	}

	activated, err := o.thresholds.Put(best)
	if err != nil {
		return nil, fmt.Errorf("failed to activate thresholds: %w", err)
	}

	result.Accepted = true
	result.Active = activated
	result.ActiveScore = bestHoldout

	o.logger.Info("Threshold set improved and activated", logging.Fields{
		"version":       activated.Version,
		"old_objective": currentHoldout.Objective,
		"new_objective": bestHoldout.Objective,
		"old_accuracy":  currentHoldout.Accuracy,
		"new_accuracy":  bestHoldout.Accuracy,
	})

	return result, nil
}

// buildCases joins evidence records with corrections on transcript and
// segment identity
func (o *Optimizer) buildCases(corrections []hearing.Correction) ([]replayCase, error) {
	records, err := o.evidence.All()
	if err != nil {
		return nil, err
	}

	truth := make(map[string]string, len(corrections))
	for _, c := range corrections {
		truth[c.TranscriptID+"/"+c.SegmentID] = c.Speaker
	}

	var cases []replayCase
	for i := range records {
		key := records[i].TranscriptID + "/" + records[i].SegmentID
		speaker, ok := truth[key]
		if !ok {
			continue
		}
		cases = append(cases, replayCase{
			evidence: records[i].Evidence,
			truth:    speaker,
			key:      key,
		})
	}

	return cases, nil
}

// evaluate replays the decision ladder over labeled cases with the given
// thresholds. Coverage counts resolved segments; accuracy is measured over
// the resolved ones.
func (o *Optimizer) evaluate(set *attribution.ThresholdSet, cases []replayCase) EvalScore {
	resolved := 0
	correct := 0

	for i := range cases {
		speaker, _, method := attribution.Replay(&cases[i].evidence, set)
		if method == attribution.MethodUnresolved {
			continue
		}
		resolved++
		if speaker == cases[i].truth {
			correct++
		}
	}

	score := EvalScore{Cases: len(cases)}
	if len(cases) > 0 {
		score.Coverage = float64(resolved) / float64(len(cases))
	}
	if resolved > 0 {
		score.Accuracy = float64(correct) / float64(resolved)
	}

	accWeight, covWeight := 0.5, 0.5
	switch o.cfg.Mode {
	case ModeAccuracy:
		accWeight, covWeight = 0.8, 0.2
	case ModeCoverage:
		accWeight, covWeight = 0.2, 0.8
	}
	score.Objective = accWeight*score.Accuracy + covWeight*score.Coverage

	return score
}

// splitCases partitions cases deterministically by key hash, so repeated
// runs over the same data see the same holdout
func splitCases(cases []replayCase, holdoutFraction float64) (train, holdout []replayCase) {
	threshold := uint32(holdoutFraction * float64(1<<32-1))
	for i := range cases {
		h := fnv.New32a()
		h.Write([]byte(cases[i].key))
		if h.Sum32() <= threshold {
			holdout = append(holdout, cases[i])
		} else {
			train = append(train, cases[i])
		}
	}
	return train, holdout
}

// neighbors generates candidate sets one perturbation away from the base
func neighbors(base *attribution.ThresholdSet) []*attribution.ThresholdSet {
	deltas := []float64{-0.10, -0.05, 0.05, 0.10}

	var candidates []*attribution.ThresholdSet
	perturb := func(apply func(*attribution.ThresholdSet, float64)) {
		for _, d := range deltas {
			c := *base
			apply(&c, d)
			candidates = append(candidates, &c)
		}
	}

	perturb(func(c *attribution.ThresholdSet, d float64) { c.HighConfidenceOverride += d })
	perturb(func(c *attribution.ThresholdSet, d float64) { c.MediumConfidenceBoost += d })
	perturb(func(c *attribution.ThresholdSet, d float64) { c.MinimumUsable += d })
	perturb(func(c *attribution.ThresholdSet, d float64) { c.LowConfidenceCeiling += d })
	perturb(func(c *attribution.ThresholdSet, d float64) {
		c.VoiceWeight += d
		c.TextWeight -= d
	})

	return candidates
}
