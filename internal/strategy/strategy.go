// ABOUTME: Picks a target reply length and token budget from conversation context
// ABOUTME: A deterministic decision table — first matching rule wins

package strategy

import (
	"log/slog"

	"github.com/2389/roundtable/internal/classify"
)

// Length is the target reply size handed to the generator.
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// Token ceilings per length class.
const (
	shortMaxTokens  = 100
	mediumMaxTokens = 300
	longMaxTokens   = 600
)

// Rule thresholds.
const (
	handOffStreak      = 3
	firstExposureTurns = 2
	monotonyDiversity  = 0.3
)

// Strategy is the generation directive for one scheduled turn. It is handed
// to the generation collaborator and never stored.
type Strategy struct {
	Length    Length
	MaxTokens int
	Rationale string
	Guidance  string
}

// Pick evaluates the decision table top to bottom and returns the first
// matching strategy. Every path terminates in a fallback, so a decision is
// always produced.
func Pick(ctx classify.Context, logger *slog.Logger) Strategy {
	if logger == nil {
		logger = slog.Default()
	}
	s := pick(ctx)
	logger.Debug("length strategy picked",
		"length", s.Length,
		"max_tokens", s.MaxTokens,
		"rationale", s.Rationale)
	return s
}

func pick(ctx classify.Context) Strategy {
	// 1. A long streak means the speaker should yield the floor.
	if ctx.CurrentSpeakerStreak >= handOffStreak {
		return short("hand off the turn",
			"Answer briefly and invite someone else to weigh in.")
	}

	// 2. Questions get sized by how hard the topic is. First exposure to a
	// hard concept deserves a full explanation.
	if ctx.LastTurnType == classify.TurnTypeQuestion {
		switch {
		case ctx.TurnCount <= firstExposureTurns && ctx.TopicComplexity == classify.ComplexityComplex:
			return long("first exposure to a complex concept",
				"Explain the concept thoroughly from first principles, with an example.")
		case ctx.TopicComplexity == classify.ComplexityComplex:
			return medium("complex follow-up question",
				"Answer the question with enough depth to resolve it, without re-explaining basics.")
		default:
			return short("direct question on familiar ground",
				"Answer the question directly in a sentence or two.")
		}
	}

	// 3. Phase-specific sizing. Exploration falls through to later rules.
	switch ctx.Phase {
	case classify.PhaseInitialExplanation:
		return long("opening explanation",
			"Lay out the topic clearly and completely; this frames the whole conversation.")
	case classify.PhaseDebate:
		if ctx.LastTurnType == classify.TurnTypeChallenge && ctx.TopicComplexity == classify.ComplexityComplex {
			return long("complex challenge deserves a full rebuttal",
				"Address the challenge point by point with supporting reasoning.")
		}
		return medium("active debate",
			"Make one clear argument; leave room for the other side to respond.")
	case classify.PhaseConsensus:
		return short("converging",
			"Affirm the shared conclusion briefly and add at most one nuance.")
	case classify.PhaseQAndA:
		return medium("question-and-answer exchange",
			"Give a focused answer with one concrete example.")
	}

	// 4. Low diversity means the conversation is circling; force a short
	// reply from a different angle, whatever the complexity says.
	if ctx.PatternDiversity < monotonyDiversity {
		return short("break the monotony",
			"Reply briefly and take a noticeably different angle than the last few turns.")
	}

	// 5. Fallback by topic complexity.
	switch ctx.TopicComplexity {
	case classify.ComplexitySimple:
		return short("simple topic",
			"Keep it conversational and brief.")
	case classify.ComplexityComplex:
		return medium("complex topic, steady state",
			"Develop one idea properly rather than touching several.")
	default:
		return medium("default pacing",
			"Contribute a substantive but contained reply.")
	}
}

func short(rationale, guidance string) Strategy {
	return Strategy{Length: LengthShort, MaxTokens: shortMaxTokens, Rationale: rationale, Guidance: guidance}
}

func medium(rationale, guidance string) Strategy {
	return Strategy{Length: LengthMedium, MaxTokens: mediumMaxTokens, Rationale: rationale, Guidance: guidance}
}

func long(rationale, guidance string) Strategy {
	return Strategy{Length: LengthLong, MaxTokens: longMaxTokens, Rationale: rationale, Guidance: guidance}
}
