package voicemodel

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/hearingdesk/speaker-attribution/pkg/voicefeatures"
)

// SchemaVersion identifies the persisted model layout. Bump when the
// serialized structure changes so stale records are rejected on load.
const SchemaVersion = 1

const (
	varianceFloor  = 1e-6
	maxIterations  = 100
	convergenceTol = 1e-4
)

// Component is one diagonal-covariance Gaussian mixture component
type Component struct {
	Weight   float64   `msgpack:"weight" json:"weight"`
	Mean     []float64 `msgpack:"mean" json:"mean"`
	Variance []float64 `msgpack:"variance" json:"variance"`
}

// SpeakerModel is a trained acoustic model for exactly one speaker:
// a mixture of diagonal Gaussians over voice feature vectors
type SpeakerModel struct {
	SpeakerID     string      `msgpack:"speaker_id" json:"speaker_id"`
	SchemaVersion int         `msgpack:"schema_version" json:"schema_version"`
	FeatureDim    int         `msgpack:"feature_dim" json:"feature_dim"`
	Components    []Component `msgpack:"components" json:"components"`
	SampleCount   int         `msgpack:"sample_count" json:"sample_count"`

	// AvgLogLikelihood is the mean per-vector log-likelihood over the
	// training pool; FitFloor is the minimum. Both anchor the similarity
	// mapping in Score.
	AvgLogLikelihood float64 `msgpack:"avg_log_likelihood" json:"avg_log_likelihood"`
	FitFloor         float64 `msgpack:"fit_floor" json:"fit_floor"`

	CreatedAt time.Time `msgpack:"created_at" json:"created_at"`
	UpdatedAt time.Time `msgpack:"updated_at" json:"updated_at"`
}

// TrainConfig controls model fitting
type TrainConfig struct {
	MinTrainingSamples int   `json:"min_training_samples" yaml:"min_training_samples"`
	MixtureComponents  int   `json:"mixture_components" yaml:"mixture_components"`
	Seed               int64 `json:"seed" yaml:"seed"`
}

// DefaultTrainConfig returns training defaults
func DefaultTrainConfig() *TrainConfig {
	return &TrainConfig{
		MinTrainingSamples: 5,
		MixtureComponents:  3,
		Seed:               1,
	}
}

// Fit trains a Gaussian mixture over the given feature vectors with EM.
// Fitting is deterministic for a fixed seed and input order. It does not
// touch any persisted state; commit through Store.Put for atomic replace.
func Fit(speakerID string, vectors []voicefeatures.FeatureVector, cfg *TrainConfig) (*SpeakerModel, error) {
	if cfg == nil {
		cfg = DefaultTrainConfig()
	}

	if len(vectors) < cfg.MinTrainingSamples {
		return nil, &InsufficientSamplesError{SpeakerID: speakerID, Got: len(vectors), Min: cfg.MinTrainingSamples}
	}

	for i, v := range vectors {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("training vector %d: %w", i, err)
		}
	}

	dim := voicefeatures.Dim
	data := make([][]float64, len(vectors))
	for i, v := range vectors {
		data[i] = v
	}

	// Shrink the mixture when samples are scarce so each component keeps
	// at least two supporting vectors
	k := min(cfg.MixtureComponents, len(data)/2)
	k = max(k, 1)

	rng := rand.New(rand.NewSource(cfg.Seed))
	components := initComponents(data, k, dim, rng)

	prevLL := math.Inf(-1)
	for iter := 0; iter < maxIterations; iter++ {
		ll := emStep(data, components, dim)
		if math.IsNaN(ll) || math.IsInf(ll, 1) {
			return nil, fmt.Errorf("EM diverged for %s: %w", speakerID, ErrDegenerateCovariance)
		}
		if ll-prevLL < convergenceTol && iter > 0 {
			break
		}
		prevLL = ll
	}

	for _, c := range components {
		for _, v := range c.Variance {
			if math.IsNaN(v) || v <= 0 {
				return nil, fmt.Errorf("component variance collapsed for %s: %w", speakerID, ErrDegenerateCovariance)
			}
		}
	}

	now := time.Now().UTC()
	model := &SpeakerModel{
		SpeakerID:     speakerID,
		SchemaVersion: SchemaVersion,
		FeatureDim:    dim,
		Components:    components,
		SampleCount:   len(data),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	total := 0.0
	floor := math.Inf(1)
	for _, x := range data {
		ll := model.logLikelihood(x)
		total += ll
		floor = math.Min(floor, ll)
	}
	model.AvgLogLikelihood = total / float64(len(data))
	model.FitFloor = floor

	return model, nil
}

// Score evaluates a feature vector against the model and returns a bounded
// similarity in [0,1]. The raw log-likelihood is squashed through a logistic
// anchored at the training fit floor, so a vector that fits as well as the
// worst training vector scores 0.5 and extreme outliers saturate at 0 and 1
// instead of escaping the range. Deterministic: no randomness at inference.
func (m *SpeakerModel) Score(vec voicefeatures.FeatureVector) (float64, error) {
	if err := vec.Validate(); err != nil {
		return 0, err
	}
	if m.FeatureDim != len(vec) {
		return 0, fmt.Errorf("model feature dim %d does not match vector dim %d", m.FeatureDim, len(vec))
	}

	ll := m.logLikelihood(vec)
	tau := math.Max(1.0, m.AvgLogLikelihood-m.FitFloor)

	return 1.0 / (1.0 + math.Exp(-(ll-m.FitFloor)/tau)), nil
}

// Usable reports whether the model meets the training-sample quality floor
func (m *SpeakerModel) Usable(minSamples int) bool {
	return m.SampleCount >= minSamples && len(m.Components) > 0
}

// logLikelihood computes the mixture log-density of one vector
func (m *SpeakerModel) logLikelihood(x []float64) float64 {
	logProbs := make([]float64, len(m.Components))
	for i, c := range m.Components {
		logProbs[i] = math.Log(c.Weight) + logGaussian(x, c.Mean, c.Variance)
	}
	return floats.LogSumExp(logProbs)
}

// logGaussian computes the log-density of a diagonal Gaussian
func logGaussian(x, mean, variance []float64) float64 {
	ll := 0.0
	for d := range x {
		v := math.Max(variance[d], varianceFloor)
		diff := x[d] - mean[d]
		ll += -0.5 * (diff*diff/v + math.Log(2*math.Pi*v))
	}
	return ll
}

// initComponents seeds mixture components with k-means++-style spread means
// and the global diagonal variance
func initComponents(data [][]float64, k, dim int, rng *rand.Rand) []Component {
	globalMean := make([]float64, dim)
	for _, x := range data {
		floats.Add(globalMean, x)
	}
	floats.Scale(1/float64(len(data)), globalMean)

	globalVar := make([]float64, dim)
	for _, x := range data {
		for d := range x {
			diff := x[d] - globalMean[d]
			globalVar[d] += diff * diff
		}
	}
	floats.Scale(1/float64(len(data)), globalVar)
	for d := range globalVar {
		globalVar[d] = math.Max(globalVar[d], varianceFloor)
	}

	components := make([]Component, k)
	chosen := []int{rng.Intn(len(data))}

	for len(chosen) < k {
		// Pick the next seed proportionally to squared distance from the
		// nearest already-chosen seed
		dists := make([]float64, len(data))
		total := 0.0
		for i, x := range data {
			best := math.Inf(1)
			for _, c := range chosen {
				best = math.Min(best, squaredDistance(x, data[c]))
			}
			dists[i] = best
			total += best
		}

		if total == 0 {
			chosen = append(chosen, rng.Intn(len(data)))
			continue
		}

		target := rng.Float64() * total
		cumulative := 0.0
		picked := len(data) - 1
		for i, d := range dists {
			cumulative += d
			if cumulative >= target {
				picked = i
				break
			}
		}
		chosen = append(chosen, picked)
	}

	for i, idx := range chosen {
		mean := make([]float64, dim)
		variance := make([]float64, dim)
		copy(mean, data[idx])
		copy(variance, globalVar)

		components[i] = Component{
			Weight:   1.0 / float64(k),
			Mean:     mean,
			Variance: variance,
		}
	}

	return components
}

// emStep runs one expectation-maximization iteration in place and returns
// the total data log-likelihood
func emStep(data [][]float64, components []Component, dim int) float64 {
	n := len(data)
	k := len(components)

	resp := make([][]float64, n)
	totalLL := 0.0

	// E step: component responsibilities per vector
	for i, x := range data {
		logProbs := make([]float64, k)
		for j, c := range components {
			logProbs[j] = math.Log(c.Weight) + logGaussian(x, c.Mean, c.Variance)
		}
		norm := floats.LogSumExp(logProbs)
		totalLL += norm

		resp[i] = make([]float64, k)
		for j := range logProbs {
			resp[i][j] = math.Exp(logProbs[j] - norm)
		}
	}

	// M step: re-estimate weights, means, variances
	for j := range components {
		respSum := 0.0
		for i := range data {
			respSum += resp[i][j]
		}
		if respSum < 1e-10 {
			continue // starved component keeps its parameters
		}

		mean := make([]float64, dim)
		for i, x := range data {
			floats.AddScaled(mean, resp[i][j], x)
		}
		floats.Scale(1/respSum, mean)

		variance := make([]float64, dim)
		for i, x := range data {
			for d := range x {
				diff := x[d] - mean[d]
				variance[d] += resp[i][j] * diff * diff
			}
		}
		floats.Scale(1/respSum, variance)
		for d := range variance {
			variance[d] = math.Max(variance[d], varianceFloor)
		}

		components[j].Weight = respSum / float64(n)
		components[j].Mean = mean
		components[j].Variance = variance
	}

	return totalLL
}

func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}
