// ABOUTME: Derives conversation phase, complexity, streaks and diversity from turns
// ABOUTME: All heuristics run over a bounded window of the most recent turns

package classify

import (
	"log/slog"
	"math"
	"strings"

	"github.com/2389/roundtable/internal/lexicon"
	"github.com/2389/roundtable/internal/transcript"
)

// Phase is the conversation's current rhetorical mode.
type Phase string

const (
	PhaseInitialExplanation Phase = "initial_explanation"
	PhaseDebate             Phase = "debate"
	PhaseConsensus          Phase = "consensus"
	PhaseQAndA              Phase = "q_and_a"
	PhaseExploration        Phase = "exploration"
)

// Complexity classifies how demanding the current topic is.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// TurnType classifies the most recent turn.
type TurnType string

const (
	TurnTypeQuestion  TurnType = "question"
	TurnTypeChallenge TurnType = "challenge"
	TurnTypeAgreement TurnType = "agreement"
	TurnTypeStatement TurnType = "statement"
)

// Window sizes. Older history is deliberately ignored so a dominant early
// speaker cannot permanently skew the heuristics.
const (
	recentWindow = 5
	phaseWindow  = 3
	lengthWindow = 3
)

// Turn-length thresholds (in runes) for complexity classification.
const (
	simpleLengthCeiling  = 100
	complexLengthFloor   = 300
	initialPhaseMaxTurns = 2
)

// Reaction label groups carried in transcript metadata.
var (
	challengeReactions = map[string]bool{"refute": true, "challenge": true, "deflect": true}
	agreementReactions = map[string]bool{"affinity": true, "complement": true, "augment": true}
)

const exploreTogetherReaction = "explore_together"

// Context is the derived value object handed to the Length Strategist.
// It is recomputed each turn; nothing here is persisted.
type Context struct {
	Phase                Phase
	RecentTurnLengths    []int
	CurrentSpeakerStreak int
	LastTurnType         TurnType
	TopicComplexity      Complexity
	PatternDiversity     float64
	TurnCount            int
}

// Classifier derives a Context from parsed turns. It never fails: every
// branch terminates in a defined fallback.
type Classifier struct {
	signals lexicon.Signals
	logger  *slog.Logger
}

// New creates a classifier. Pass nil signals for the English default and nil
// logger for slog.Default.
func New(signals lexicon.Signals, logger *slog.Logger) *Classifier {
	if signals == nil {
		signals = lexicon.English{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		signals: signals,
		logger:  logger.With("component", "classify"),
	}
}

// Classify computes the full conversation context for the given candidate
// speaker. An empty turn list is valid initial state: phase
// initial_explanation, diversity 1.0.
func (c *Classifier) Classify(turns []transcript.Turn, speaker, topic string) Context {
	recent := lastN(turns, recentWindow)

	ctx := Context{
		Phase:                c.phase(turns),
		RecentTurnLengths:    turnLengths(recent),
		CurrentSpeakerStreak: speakerStreak(recent, speaker),
		LastTurnType:         c.lastTurnType(turns),
		TopicComplexity:      c.topicComplexity(turns, topic),
		PatternDiversity:     patternDiversity(recent),
		TurnCount:            len(turns),
	}

	c.logger.Debug("context classified",
		"speaker", speaker,
		"phase", ctx.Phase,
		"streak", ctx.CurrentSpeakerStreak,
		"last_turn_type", ctx.LastTurnType,
		"complexity", ctx.TopicComplexity,
		"diversity", ctx.PatternDiversity)

	return ctx
}

// speakerStreak counts backward-contiguous turns by the candidate within the
// recent window. A speaker change or the window edge stops the count.
func speakerStreak(recent []transcript.Turn, speaker string) int {
	streak := 0
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Speaker != speaker {
			break
		}
		streak++
	}
	return streak
}

// lastTurnType classifies the final turn by priority: reaction metadata, a
// literal question mark, interrogative keywords, then statement.
func (c *Classifier) lastTurnType(turns []transcript.Turn) TurnType {
	if len(turns) == 0 {
		return TurnTypeStatement
	}
	last := turns[len(turns)-1]

	switch {
	case challengeReactions[last.Reaction]:
		return TurnTypeChallenge
	case agreementReactions[last.Reaction]:
		return TurnTypeAgreement
	case last.Reaction == exploreTogetherReaction:
		return TurnTypeQuestion
	}
	if strings.Contains(last.Content, "?") {
		return TurnTypeQuestion
	}
	if c.signals.Interrogative(last.Content) {
		return TurnTypeQuestion
	}
	return TurnTypeStatement
}

// phase applies the priority rules over the last few turns. Rules are
// mutually exclusive by priority; the first match wins.
func (c *Classifier) phase(turns []transcript.Turn) Phase {
	if len(turns) <= initialPhaseMaxTurns {
		return PhaseInitialExplanation
	}

	window := lastN(turns, phaseWindow)
	challenges, agreements, questionish := 0, 0, 0
	for _, t := range window {
		if challengeReactions[t.Reaction] {
			challenges++
		}
		if agreementReactions[t.Reaction] {
			agreements++
		}
		if strings.Contains(t.Content, "?") || t.Reaction == exploreTogetherReaction {
			questionish++
		}
	}

	switch {
	case challenges >= 2:
		return PhaseDebate
	case agreements >= 2:
		return PhaseConsensus
	case questionish >= 1:
		return PhaseQAndA
	default:
		return PhaseExploration
	}
}

// topicComplexity uses mean turn length when turns exist, and falls back to
// keyword hints in the topic description otherwise.
func (c *Classifier) topicComplexity(turns []transcript.Turn, topic string) Complexity {
	if len(turns) > 0 {
		window := lastN(turns, lengthWindow)
		total := 0
		for _, t := range window {
			total += t.Length
		}
		mean := float64(total) / float64(len(window))
		switch {
		case mean < simpleLengthCeiling:
			return ComplexitySimple
		case mean > complexLengthFloor:
			return ComplexityComplex
		default:
			return ComplexityModerate
		}
	}

	switch {
	case c.signals.ComplexTopic(topic):
		return ComplexityComplex
	case c.signals.SimpleTopic(topic):
		return ComplexitySimple
	default:
		return ComplexityModerate
	}
}

// Diversity weights. They sum to 1 so the score stays in [0,1].
const (
	diversityLengthWeight   = 0.3
	diversityReactionWeight = 0.4
	diversitySpeakerWeight  = 0.3

	// A coefficient of variation of 0.5 or more counts as fully varied.
	diversityCVCeiling = 0.5
)

// patternDiversity scores how varied the recent turns are in length,
// reaction type and speaker. With fewer than two turns there is nothing to
// compare, so diversity is defined as maximal: monotony penalties must not
// fire at conversation start.
func patternDiversity(recent []transcript.Turn) float64 {
	if len(recent) < 2 {
		return 1.0
	}

	lengths := turnLengths(recent)
	cv := coefficientOfVariation(lengths)
	lengthScore := math.Min(cv/diversityCVCeiling, 1.0)

	distinct := map[string]bool{}
	for _, t := range recent {
		distinct[t.Reaction] = true
	}
	reactionScore := float64(len(distinct)) / float64(len(recent))

	changes := 0
	for i := 1; i < len(recent); i++ {
		if recent[i].Speaker != recent[i-1].Speaker {
			changes++
		}
	}
	speakerScore := float64(changes) / float64(len(recent)-1)

	score := diversityLengthWeight*lengthScore +
		diversityReactionWeight*reactionScore +
		diversitySpeakerWeight*speakerScore
	return math.Min(math.Max(score, 0), 1)
}

func coefficientOfVariation(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	mean := float64(sum) / float64(len(values))
	if mean == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance) / mean
}

func turnLengths(turns []transcript.Turn) []int {
	lengths := make([]int, 0, len(turns))
	for _, t := range turns {
		lengths = append(lengths, t.Length)
	}
	return lengths
}

func lastN(turns []transcript.Turn, n int) []transcript.Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
