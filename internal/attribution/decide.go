package attribution

import (
	"math"

	"github.com/hearingdesk/speaker-attribution/pkg/textpattern"
)

// signal is one candidate produced by either the acoustic or the textual
// analysis path
type signal struct {
	candidate  string
	confidence float64
	// identity is true for cues that name a roster entry outright; role
	// hints never override an identity or acoustic pick
	identity bool
}

// bestTextSignal reduces analyzer matches to the strongest identity
// candidate, falling back to the strongest role hint
func bestTextSignal(matches []textpattern.Match) signal {
	var best signal
	for _, m := range matches {
		isIdentity := m.Kind == textpattern.MatchIdentity
		if best.candidate == "" ||
			(isIdentity && !best.identity) ||
			(isIdentity == best.identity && m.Confidence > best.confidence) {
			best = signal{
				candidate:  m.Entry.Name,
				confidence: m.Confidence,
				identity:   isIdentity,
			}
		}
	}
	return best
}

// Replay re-runs the decision ladder over recorded evidence, typically with
// a candidate threshold set during offline optimization
func Replay(ev *Evidence, t *ThresholdSet) (string, float64, Method) {
	voice := signal{candidate: ev.VoiceCandidate, confidence: ev.VoiceConfidence}

	text := bestTextSignal(ev.TextMatches)
	if text.candidate == "" && ev.TextCandidate != "" {
		text = signal{candidate: ev.TextCandidate, confidence: ev.TextConfidence, identity: true}
	}

	return decide(voice, text, t)
}

// decide applies the fusion decision ladder to one segment's voice and text
// signals. The precedence order is the contract: override, then boost, then
// voice-alone, then discard, then the low-confidence floor. Deterministic:
// same signals and thresholds, same outcome.
//
// Disagreement between signals resolves in favor of text only when the text
// cue is an identity match at comparable-or-better confidence; role hints
// never displace an acoustic pick.
func decide(voice signal, text signal, t *ThresholdSet) (string, float64, Method) {
	hasVoice := voice.candidate != "" && voice.confidence >= t.MinimumUsable
	hasText := text.candidate != ""

	// Strong acoustic match wins outright
	if hasVoice && voice.confidence >= t.HighConfidenceOverride {
		return voice.candidate, voice.confidence, MethodVoice
	}

	if hasVoice && voice.confidence >= t.MediumConfidenceBoost {
		if hasText && text.candidate == voice.candidate {
			// Agreement boosts; it never drops below the voice signal alone
			weighted := t.VoiceWeight*voice.confidence + t.TextWeight*text.confidence
			return voice.candidate, math.Max(voice.confidence, weighted), MethodCombined
		}

		if hasText && text.identity && text.confidence >= voice.confidence {
			return text.candidate, text.confidence, MethodText
		}

		return voice.candidate, voice.confidence, MethodVoice
	}

	// Below the usable floor the acoustic signal is discarded entirely
	if !hasVoice {
		if hasText {
			return text.candidate, text.confidence, MethodText
		}
		return UnknownSpeaker, 0, MethodUnresolved
	}

	// Low-but-usable voice: a disagreeing identity cue at comparable-or-better
	// confidence takes the segment
	if hasText && text.identity && text.confidence >= voice.confidence {
		return text.candidate, text.confidence, MethodText
	}

	// Only weak signals remain: best available candidate, capped
	best := voice
	if hasText && text.confidence > voice.confidence {
		best = text
	}
	return best.candidate, math.Min(best.confidence, t.LowConfidenceCeiling), MethodLowConfidence
}
