package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearingdesk/speaker-attribution/pkg/hearing"
	"github.com/hearingdesk/speaker-attribution/pkg/textpattern"
)

func identityMatch(name string, conf float64) textpattern.Match {
	return textpattern.Match{
		Entry:      &hearing.RosterEntry{Name: name},
		Kind:       textpattern.MatchIdentity,
		Confidence: conf,
	}
}

func roleMatch(name string, conf float64) textpattern.Match {
	return textpattern.Match{
		Entry:      &hearing.RosterEntry{Name: name},
		Kind:       textpattern.MatchRole,
		Confidence: conf,
	}
}

func TestDecideHighConfidenceVoiceWins(t *testing.T) {
	thresholds := DefaultThresholdSet()

	// Even a disagreeing identity cue cannot displace a strong acoustic match
	speaker, conf, method := decide(
		signal{candidate: "Ted Cruz", confidence: 0.92},
		signal{candidate: "Amy Klobuchar", confidence: 0.88, identity: true},
		thresholds,
	)

	assert.Equal(t, "Ted Cruz", speaker)
	assert.Equal(t, 0.92, conf)
	assert.Equal(t, MethodVoice, method)
}

func TestDecideMediumVoiceWithAgreement(t *testing.T) {
	thresholds := DefaultThresholdSet()

	speaker, conf, method := decide(
		signal{candidate: "Ted Cruz", confidence: 0.70},
		signal{candidate: "Ted Cruz", confidence: 0.80, identity: true},
		thresholds,
	)

	assert.Equal(t, "Ted Cruz", speaker)
	assert.Equal(t, MethodCombined, method)
	// 0.6*0.70 + 0.4*0.80 = 0.74
	assert.InDelta(t, 0.74, conf, 1e-9)
}

func TestDecideAgreementNeverLowersConfidence(t *testing.T) {
	thresholds := DefaultThresholdSet()

	// Weak agreeing text would pull the weighted blend below the voice
	// signal alone; the blend must not penalize agreement
	speaker, conf, method := decide(
		signal{candidate: "Ted Cruz", confidence: 0.80},
		signal{candidate: "Ted Cruz", confidence: 0.40, identity: true},
		thresholds,
	)

	assert.Equal(t, "Ted Cruz", speaker)
	assert.Equal(t, MethodCombined, method)
	assert.Equal(t, 0.80, conf)
}

func TestDecideMediumVoiceDisagreeingIdentityText(t *testing.T) {
	thresholds := DefaultThresholdSet()

	// Identity cue at better confidence takes the segment
	speaker, conf, method := decide(
		signal{candidate: "Ted Cruz", confidence: 0.65},
		signal{candidate: "Amy Klobuchar", confidence: 0.75, identity: true},
		thresholds,
	)
	assert.Equal(t, "Amy Klobuchar", speaker)
	assert.Equal(t, 0.75, conf)
	assert.Equal(t, MethodText, method)

	// Identity cue at worse confidence does not
	speaker, conf, method = decide(
		signal{candidate: "Ted Cruz", confidence: 0.65},
		signal{candidate: "Amy Klobuchar", confidence: 0.50, identity: true},
		thresholds,
	)
	assert.Equal(t, "Ted Cruz", speaker)
	assert.Equal(t, 0.65, conf)
	assert.Equal(t, MethodVoice, method)
}

func TestDecideRoleHintNeverDisplacesVoice(t *testing.T) {
	thresholds := DefaultThresholdSet()

	speaker, _, method := decide(
		signal{candidate: "Ted Cruz", confidence: 0.65},
		signal{candidate: "Dick Durbin", confidence: 0.90, identity: false},
		thresholds,
	)

	assert.Equal(t, "Ted Cruz", speaker)
	assert.Equal(t, MethodVoice, method)
}

func TestDecideUnusableVoiceTextWins(t *testing.T) {
	thresholds := DefaultThresholdSet()

	// Voice below the usable floor is discarded entirely
	speaker, conf, method := decide(
		signal{candidate: "Ted Cruz", confidence: 0.20},
		signal{candidate: "Amy Klobuchar", confidence: 0.65, identity: true},
		thresholds,
	)

	assert.Equal(t, "Amy Klobuchar", speaker)
	assert.Equal(t, 0.65, conf)
	assert.Equal(t, MethodText, method)
}

func TestDecideNoSignalsUnresolved(t *testing.T) {
	thresholds := DefaultThresholdSet()

	speaker, conf, method := decide(signal{}, signal{}, thresholds)

	assert.Equal(t, UnknownSpeaker, speaker)
	assert.Equal(t, 0.0, conf)
	assert.Equal(t, MethodUnresolved, method)
}

func TestDecideLowBandIdentityTextWins(t *testing.T) {
	thresholds := DefaultThresholdSet()

	speaker, conf, method := decide(
		signal{candidate: "Ted Cruz", confidence: 0.55},
		signal{candidate: "Amy Klobuchar", confidence: 0.70, identity: true},
		thresholds,
	)

	assert.Equal(t, "Amy Klobuchar", speaker)
	assert.Equal(t, 0.70, conf)
	assert.Equal(t, MethodText, method)
}

func TestDecideLowBandCapped(t *testing.T) {
	thresholds := DefaultThresholdSet()

	speaker, conf, method := decide(
		signal{candidate: "Ted Cruz", confidence: 0.55},
		signal{},
		thresholds,
	)

	assert.Equal(t, "Ted Cruz", speaker)
	assert.Equal(t, thresholds.LowConfidenceCeiling, conf)
	assert.Equal(t, MethodLowConfidence, method)
}

func TestDecideOverrideSweepIsMonotonic(t *testing.T) {
	// Fixed signals; only the override moves. Raising it can only demote a
	// segment out of a pure voice decision, never promote one into it.
	voice := signal{candidate: "Ted Cruz", confidence: 0.80}
	text := signal{candidate: "Ted Cruz", confidence: 0.70, identity: true}

	overrides := []float64{0.65, 0.70, 0.75, 0.80, 0.85, 0.90, 0.95}

	demoted := false
	for _, override := range overrides {
		thresholds := DefaultThresholdSet()
		thresholds.HighConfidenceOverride = override
		require.NoError(t, thresholds.Validate())

		speaker, _, method := decide(voice, text, thresholds)
		assert.Equal(t, "Ted Cruz", speaker)

		if override <= voice.confidence {
			assert.Equal(t, MethodVoice, method, "override=%.2f", override)
			assert.False(t, demoted,
				"voice decision reappeared after the override passed the signal (override=%.2f)", override)
		} else {
			assert.Equal(t, MethodCombined, method, "override=%.2f", override)
			demoted = true
		}
	}
	assert.True(t, demoted, "sweep never crossed the voice signal")
}

func TestDecideDeterministic(t *testing.T) {
	thresholds := DefaultThresholdSet()
	voice := signal{candidate: "Ted Cruz", confidence: 0.70}
	text := signal{candidate: "Ted Cruz", confidence: 0.80, identity: true}

	s1, c1, m1 := decide(voice, text, thresholds)
	s2, c2, m2 := decide(voice, text, thresholds)

	assert.Equal(t, s1, s2)
	assert.Equal(t, c1, c2)
	assert.Equal(t, m1, m2)
}

func TestBestTextSignalPrefersIdentity(t *testing.T) {
	best := bestTextSignal([]textpattern.Match{
		roleMatch("Dick Durbin", 0.90),
		identityMatch("Ted Cruz", 0.65),
		identityMatch("Amy Klobuchar", 0.75),
	})

	assert.Equal(t, "Amy Klobuchar", best.candidate)
	assert.Equal(t, 0.75, best.confidence)
	assert.True(t, best.identity)
}

func TestBestTextSignalRoleFallback(t *testing.T) {
	best := bestTextSignal([]textpattern.Match{
		roleMatch("Dick Durbin", 0.35),
	})

	assert.Equal(t, "Dick Durbin", best.candidate)
	assert.False(t, best.identity)

	assert.Empty(t, bestTextSignal(nil).candidate)
}

func TestReplayMatchesDecide(t *testing.T) {
	thresholds := DefaultThresholdSet()

	ev := &Evidence{
		VoiceCandidate:  "Ted Cruz",
		VoiceConfidence: 0.70,
		TextMatches:     []textpattern.Match{identityMatch("Ted Cruz", 0.80)},
	}

	speaker, conf, method := Replay(ev, thresholds)
	assert.Equal(t, "Ted Cruz", speaker)
	assert.InDelta(t, 0.74, conf, 1e-9)
	assert.Equal(t, MethodCombined, method)
}

func TestReplayFallsBackToRecordedCandidate(t *testing.T) {
	thresholds := DefaultThresholdSet()

	// Older records may carry only the reduced text candidate
	ev := &Evidence{
		TextCandidate:  "Amy Klobuchar",
		TextConfidence: 0.65,
	}

	speaker, conf, method := Replay(ev, thresholds)
	assert.Equal(t, "Amy Klobuchar", speaker)
	assert.Equal(t, 0.65, conf)
	assert.Equal(t, MethodText, method)
}

func TestThresholdSetValidate(t *testing.T) {
	require.NoError(t, DefaultThresholdSet().Validate())

	tests := []struct {
		name   string
		mutate func(*ThresholdSet)
	}{
		{"out of range", func(s *ThresholdSet) { s.HighConfidenceOverride = 1.2 }},
		{"floor above boost", func(s *ThresholdSet) { s.MinimumUsable = 0.70 }},
		{"boost above override", func(s *ThresholdSet) { s.MediumConfidenceBoost = 0.90 }},
		{"weights do not sum", func(s *ThresholdSet) { s.TextWeight = 0.10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultThresholdSet()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}
