// ABOUTME: Tests for conversation context classification
// ABOUTME: Covers streaks, phases, turn types, complexity and diversity bounds

package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/roundtable/internal/transcript"
)

func makeTurn(speaker, content, reactionLabel string) transcript.Turn {
	return transcript.Turn{
		Speaker:       speaker,
		Content:       content,
		Length:        len([]rune(content)),
		Category:      transcript.DefaultCategory,
		Reaction:      reactionLabel,
		EmotionalTone: transcript.DefaultTone,
	}
}

func TestClassify_EmptyTranscript(t *testing.T) {
	c := New(nil, nil)

	ctx := c.Classify(nil, "Kai", "casual chat")

	assert.Equal(t, PhaseInitialExplanation, ctx.Phase)
	assert.Equal(t, 0, ctx.CurrentSpeakerStreak)
	assert.Equal(t, TurnTypeStatement, ctx.LastTurnType)
	assert.Equal(t, 1.0, ctx.PatternDiversity)
	assert.Equal(t, 0, ctx.TurnCount)
}

func TestClassify_StreakBrokenByOtherSpeaker(t *testing.T) {
	c := New(nil, nil)
	turns := []transcript.Turn{
		makeTurn("Kai", "one", "independent"),
		makeTurn("Kai", "two", "independent"),
		makeTurn("Kai", "three", "independent"),
		makeTurn("Mina", "four", "independent"),
	}

	assert.Equal(t, 0, c.Classify(turns, "Kai", "").CurrentSpeakerStreak)
	assert.Equal(t, 1, c.Classify(turns, "Mina", "").CurrentSpeakerStreak)
}

func TestClassify_StreakBoundedByWindow(t *testing.T) {
	c := New(nil, nil)
	var turns []transcript.Turn
	for i := 0; i < 12; i++ {
		turns = append(turns, makeTurn("Kai", "again", "independent"))
	}

	ctx := c.Classify(turns, "Kai", "")
	assert.Equal(t, 5, ctx.CurrentSpeakerStreak, "streak never exceeds the window")
}

func TestClassify_LastTurnTypePriorities(t *testing.T) {
	c := New(nil, nil)

	cases := []struct {
		name     string
		turn     transcript.Turn
		expected TurnType
	}{
		{"refute reaction wins", makeTurn("A", "whatever?", "refute"), TurnTypeChallenge},
		{"affinity reaction wins", makeTurn("A", "is that so?", "affinity"), TurnTypeAgreement},
		{"explore_together maps to question", makeTurn("A", "let us see", "explore_together"), TurnTypeQuestion},
		{"question mark", makeTurn("A", "really?", "independent"), TurnTypeQuestion},
		{"interrogative keyword", makeTurn("A", "tell me how that works", "independent"), TurnTypeQuestion},
		{"plain statement", makeTurn("A", "it rained today", "independent"), TurnTypeStatement},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pad := []transcript.Turn{makeTurn("B", "earlier", "independent"), tc.turn}
			assert.Equal(t, tc.expected, c.Classify(pad, "A", "").LastTurnType)
		})
	}
}

func TestClassify_PhaseDebate(t *testing.T) {
	c := New(nil, nil)
	turns := []transcript.Turn{
		makeTurn("A", "opening", "independent"),
		makeTurn("B", "counter", "refute"),
		makeTurn("A", "pushback", "challenge"),
		makeTurn("B", "more", "independent"),
	}

	assert.Equal(t, PhaseDebate, c.Classify(turns, "A", "").Phase)
}

func TestClassify_PhaseConsensus(t *testing.T) {
	c := New(nil, nil)
	turns := []transcript.Turn{
		makeTurn("A", "start", "independent"),
		makeTurn("B", "yes", "affinity"),
		makeTurn("C", "agreed", "complement"),
		makeTurn("A", "fine", "independent"),
	}

	assert.Equal(t, PhaseConsensus, c.Classify(turns, "A", "").Phase)
}

func TestClassify_PhaseQAndA(t *testing.T) {
	c := New(nil, nil)
	turns := []transcript.Turn{
		makeTurn("A", "start", "independent"),
		makeTurn("B", "middle", "independent"),
		makeTurn("C", "but why though?", "independent"),
	}

	assert.Equal(t, PhaseQAndA, c.Classify(turns, "A", "").Phase)
}

func TestClassify_PhaseExplorationFallback(t *testing.T) {
	c := New(nil, nil)
	turns := []transcript.Turn{
		makeTurn("A", "statement one", "independent"),
		makeTurn("B", "statement two", "independent"),
		makeTurn("C", "statement three", "independent"),
	}

	assert.Equal(t, PhaseExploration, c.Classify(turns, "A", "").Phase)
}

func TestClassify_PhaseInitialUpToTwoTurns(t *testing.T) {
	c := New(nil, nil)
	turns := []transcript.Turn{
		makeTurn("A", "hello?", "refute"),
		makeTurn("B", "hi?", "refute"),
	}

	// Debate cues are ignored while the conversation is still opening.
	assert.Equal(t, PhaseInitialExplanation, c.Classify(turns, "A", "").Phase)
}

func TestClassify_ComplexityFromTurnLengths(t *testing.T) {
	c := New(nil, nil)

	shortTurns := []transcript.Turn{makeTurn("A", "hi", "independent")}
	assert.Equal(t, ComplexitySimple, c.Classify(shortTurns, "A", "").TopicComplexity)

	longContent := strings.Repeat("deep analysis ", 30) // > 300 runes
	longTurns := []transcript.Turn{makeTurn("A", longContent, "independent")}
	assert.Equal(t, ComplexityComplex, c.Classify(longTurns, "A", "").TopicComplexity)

	midContent := strings.Repeat("x", 200)
	midTurns := []transcript.Turn{makeTurn("A", midContent, "independent")}
	assert.Equal(t, ComplexityModerate, c.Classify(midTurns, "A", "").TopicComplexity)
}

func TestClassify_ComplexityFallsBackToTopicKeywords(t *testing.T) {
	c := New(nil, nil)

	assert.Equal(t, ComplexityComplex, c.Classify(nil, "A", "quantum entanglement").TopicComplexity)
	assert.Equal(t, ComplexitySimple, c.Classify(nil, "A", "icebreaker round").TopicComplexity)
	assert.Equal(t, ComplexityModerate, c.Classify(nil, "A", "weekend plans").TopicComplexity)
}

func TestClassify_DiversityInRange(t *testing.T) {
	c := New(nil, nil)

	transcripts := [][]transcript.Turn{
		nil,
		{makeTurn("A", "solo", "independent")},
		{
			makeTurn("A", "aaaa", "independent"),
			makeTurn("A", "aaaa", "independent"),
			makeTurn("A", "aaaa", "independent"),
		},
		{
			makeTurn("A", "short", "refute"),
			makeTurn("B", strings.Repeat("long ", 40), "affinity"),
			makeTurn("C", "mid sized turn here", "explore_together"),
			makeTurn("A", "?", "augment"),
			makeTurn("B", "closing", "independent"),
		},
	}

	for i, turns := range transcripts {
		d := c.Classify(turns, "A", "").PatternDiversity
		assert.GreaterOrEqual(t, d, 0.0, "transcript %d", i)
		assert.LessOrEqual(t, d, 1.0, "transcript %d", i)
	}
}

func TestClassify_DiversityMaximalWithFewTurns(t *testing.T) {
	c := New(nil, nil)

	assert.Equal(t, 1.0, c.Classify(nil, "A", "").PatternDiversity)
	one := []transcript.Turn{makeTurn("A", "only", "independent")}
	assert.Equal(t, 1.0, c.Classify(one, "A", "").PatternDiversity)
}

func TestClassify_MonotoneTurnsScoreLowDiversity(t *testing.T) {
	c := New(nil, nil)
	var turns []transcript.Turn
	for i := 0; i < 5; i++ {
		turns = append(turns, makeTurn("A", "same length!", "independent"))
	}

	d := c.Classify(turns, "A", "").PatternDiversity
	// Identical lengths, one reaction label, one speaker: only the
	// reaction-variety term contributes (1 distinct / 5 turns * 0.4).
	require.InDelta(t, 0.08, d, 0.0001)
}
