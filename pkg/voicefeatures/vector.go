package voicefeatures

import "fmt"

// Feature vector layout. The sub-group ordering is fixed: every vector used
// to train or score the same speaker model must share this exact layout.
//
//	[0,39)   cepstral: 13 MFCC means, 13 MFCC stds, 13 MFCC mean abs deltas
//	[39,47)  spectral: centroid, bandwidth, rolloff, zero-crossing rate (mean, std each)
//	[47,54)  prosodic: pitch mean, pitch std, pitch range, tempo, energy mean, energy std, speech rate
//	[54,57)  temporal: voiced ratio, avg voiced run length, rhythm regularity
//	[57,58)  quality:  overall signal quality sub-score
const (
	NumMFCC = 13

	cepstralOffset = 0
	cepstralDim    = NumMFCC * 3
	spectralOffset = cepstralOffset + cepstralDim
	spectralDim    = 8
	prosodicOffset = spectralOffset + spectralDim
	prosodicDim    = 7
	temporalOffset = prosodicOffset + prosodicDim
	temporalDim    = 3
	qualityOffset  = temporalOffset + temporalDim

	// Dim is the fixed length of every feature vector
	Dim = qualityOffset + 1
)

// FeatureVector is a fixed-length numeric voice feature vector
type FeatureVector []float64

// Validate checks the vector has the expected dimensionality
func (v FeatureVector) Validate() error {
	if len(v) != Dim {
		return fmt.Errorf("feature vector has %d dimensions, expected %d", len(v), Dim)
	}
	return nil
}

// Quality returns the derived signal quality sub-score in [0,1]
func (v FeatureVector) Quality() float64 {
	if len(v) != Dim {
		return 0
	}
	return v[qualityOffset]
}

// Names returns the ordered dimension names, for diagnostics output
func Names() []string {
	names := make([]string, 0, Dim)
	for i := range NumMFCC {
		names = append(names, fmt.Sprintf("mfcc_%d_mean", i))
	}
	for i := range NumMFCC {
		names = append(names, fmt.Sprintf("mfcc_%d_std", i))
	}
	for i := range NumMFCC {
		names = append(names, fmt.Sprintf("mfcc_%d_delta", i))
	}
	names = append(names,
		"spectral_centroid_mean", "spectral_centroid_std",
		"spectral_bandwidth_mean", "spectral_bandwidth_std",
		"spectral_rolloff_mean", "spectral_rolloff_std",
		"zero_crossing_rate_mean", "zero_crossing_rate_std",
		"pitch_mean", "pitch_std", "pitch_range",
		"tempo", "energy_mean", "energy_std", "speech_rate",
		"voiced_ratio", "avg_voiced_run", "rhythm_regularity",
		"quality_score",
	)
	return names
}
