package voicefeatures

import (
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-sonar/fingerprint/extractors"
	"gonum.org/v1/gonum/stat"
)

// summarize collapses frame-level speech features into the fixed vector
// layout documented in vector.go. Missing feature groups contribute zeros;
// their absence is reflected in the quality sub-score instead of an error.
func summarize(f *extractors.ExtractedFeatures, pcm []float64, sampleRate int, cfg *Config) FeatureVector {
	vec := make(FeatureVector, Dim)

	writeCepstral(vec, f.MFCC)

	if f.SpectralFeatures != nil {
		s := f.SpectralFeatures
		writeMeanStd(vec, spectralOffset+0, s.SpectralCentroid)
		writeMeanStd(vec, spectralOffset+2, s.SpectralBandwidth)
		writeMeanStd(vec, spectralOffset+4, s.SpectralRolloff)
		writeMeanStd(vec, spectralOffset+6, s.ZeroCrossingRate)
	}

	writeProsodic(vec, f)
	writeTemporal(vec, f, cfg, sampleRate)

	vec[qualityOffset] = qualityScore(pcm, f)

	return vec
}

// writeCepstral writes per-coefficient mean, std, and mean absolute
// frame-to-frame delta for the first NumMFCC coefficients
func writeCepstral(vec FeatureVector, mfcc [][]float64) {
	if len(mfcc) == 0 {
		return
	}

	for c := range NumMFCC {
		track := coefficientTrack(mfcc, c)
		if len(track) == 0 {
			continue
		}

		vec[cepstralOffset+c] = stat.Mean(track, nil)
		if len(track) > 1 {
			vec[cepstralOffset+NumMFCC+c] = stat.StdDev(track, nil)
			vec[cepstralOffset+2*NumMFCC+c] = meanAbsDelta(track)
		}
	}
}

func writeProsodic(vec FeatureVector, f *extractors.ExtractedFeatures) {
	if f.HarmonicFeatures != nil {
		voiced := voicedPitches(f.HarmonicFeatures.PitchEstimate, f.HarmonicFeatures.VoicingStrength)
		if len(voiced) > 0 {
			vec[prosodicOffset+0] = stat.Mean(voiced, nil)
			if len(voiced) > 1 {
				vec[prosodicOffset+1] = stat.StdDev(voiced, nil)
			}
			lo, hi := voiced[0], voiced[0]
			for _, p := range voiced {
				lo = math.Min(lo, p)
				hi = math.Max(hi, p)
			}
			vec[prosodicOffset+2] = hi - lo
		}
	}

	if f.TemporalFeatures != nil {
		vec[prosodicOffset+3] = f.TemporalFeatures.OnsetDensity
	}

	if f.EnergyFeatures != nil && len(f.EnergyFeatures.ShortTimeEnergy) > 0 {
		vec[prosodicOffset+4] = stat.Mean(f.EnergyFeatures.ShortTimeEnergy, nil)
		if len(f.EnergyFeatures.ShortTimeEnergy) > 1 {
			vec[prosodicOffset+5] = stat.StdDev(f.EnergyFeatures.ShortTimeEnergy, nil)
		}
	}

	if f.SpeechFeatures != nil {
		vec[prosodicOffset+6] = f.SpeechFeatures.SpeechRate
	}
}

func writeTemporal(vec FeatureVector, f *extractors.ExtractedFeatures, cfg *Config, sampleRate int) {
	if f.TemporalFeatures != nil {
		vec[temporalOffset+0] = 1.0 - f.TemporalFeatures.SilenceRatio
	}

	if f.HarmonicFeatures != nil && len(f.HarmonicFeatures.VoicingStrength) > 0 {
		frameTime := float64(cfg.HopSize) / float64(sampleRate)
		vec[temporalOffset+1] = avgVoicedRun(f.HarmonicFeatures.VoicingStrength, frameTime)
	}

	if f.EnergyFeatures != nil && len(f.EnergyFeatures.ShortTimeEnergy) > 1 {
		vec[temporalOffset+2] = rhythmRegularity(f.EnergyFeatures.ShortTimeEnergy)
	}
}

// qualityScore combines an SNR estimate, dynamic range, and a clipping
// penalty into a [0,1] sub-score. Degenerate audio scores low instead of
// failing extraction, so the caller can decide whether to discard.
func qualityScore(pcm []float64, f *extractors.ExtractedFeatures) float64 {
	if len(pcm) == 0 {
		return 0
	}

	var energies []float64
	if f.EnergyFeatures != nil {
		energies = f.EnergyFeatures.ShortTimeEnergy
	}

	snr := estimateSNR(energies)
	snrScore := clamp01((snr - 5.0) / 25.0)

	peak := 0.0
	clipped := 0
	for _, s := range pcm {
		abs := math.Abs(s)
		peak = math.Max(peak, abs)
		if abs > 0.99 {
			clipped++
		}
	}

	dynScore := 0.0
	if r := rms(pcm); r > 0 && peak > 0 {
		// Crest factor in dB, normalized against the ~6-20 dB range of
		// reasonable speech recordings
		crestDB := 20 * math.Log10(peak/r)
		dynScore = clamp01((crestDB - 3.0) / 15.0)
	}

	clipPenalty := 2.0 * float64(clipped) / float64(len(pcm))

	return clamp01(0.6*snrScore + 0.4*dynScore - clipPenalty)
}

// estimateSNR approximates signal-to-noise ratio in dB from the spread
// between loud and quiet frames
func estimateSNR(energies []float64) float64 {
	if len(energies) < 10 {
		return 0
	}

	sorted := make([]float64, len(energies))
	copy(sorted, energies)
	sort.Float64s(sorted)

	noise := sorted[len(sorted)/10]    // 10th percentile: background
	signal := sorted[len(sorted)*9/10] // 90th percentile: speech
	if noise <= 0 {
		noise = 1e-10
	}
	if signal <= noise {
		return 0
	}

	return 10 * math.Log10(signal/noise)
}

// writeMeanStd writes the mean of a frame series at offset and its standard
// deviation at offset+1
func writeMeanStd(vec FeatureVector, offset int, series []float64) {
	if len(series) == 0 {
		return
	}
	vec[offset] = stat.Mean(series, nil)
	if len(series) > 1 {
		vec[offset+1] = stat.StdDev(series, nil)
	}
}

func coefficientTrack(mfcc [][]float64, c int) []float64 {
	track := make([]float64, 0, len(mfcc))
	for _, frame := range mfcc {
		if c < len(frame) {
			track = append(track, frame[c])
		}
	}
	return track
}

func meanAbsDelta(track []float64) float64 {
	sum := 0.0
	for i := 1; i < len(track); i++ {
		sum += math.Abs(track[i] - track[i-1])
	}
	return sum / float64(len(track)-1)
}

func voicedPitches(pitches, voicing []float64) []float64 {
	voiced := make([]float64, 0, len(pitches))
	for i, p := range pitches {
		if p <= 0 {
			continue
		}
		if i < len(voicing) && voicing[i] < 0.5 {
			continue
		}
		voiced = append(voiced, p)
	}
	return voiced
}

// avgVoicedRun returns the average length, in seconds, of contiguous voiced
// frame runs
func avgVoicedRun(voicing []float64, frameTime float64) float64 {
	var runs []int
	run := 0
	for _, v := range voicing {
		if v >= 0.5 {
			run++
		} else if run > 0 {
			runs = append(runs, run)
			run = 0
		}
	}
	if run > 0 {
		runs = append(runs, run)
	}
	if len(runs) == 0 {
		return 0
	}

	total := 0
	for _, r := range runs {
		total += r
	}
	return float64(total) / float64(len(runs)) * frameTime
}

// rhythmRegularity maps the coefficient of variation of frame energy into
// (0,1]: steady delivery scores high, erratic energy scores low
func rhythmRegularity(energies []float64) float64 {
	mean := stat.Mean(energies, nil)
	if mean <= 0 {
		return 0
	}
	cv := stat.StdDev(energies, nil) / mean
	return 1.0 / (1.0 + cv)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
