// ABOUTME: Pluggable keyword-based signal detection for conversation heuristics
// ABOUTME: Locale-specific keyword sets live behind the Signals interface

package lexicon

import "strings"

// Signals classifies free text for the scheduling heuristics. Implementations
// are locale-specific; the scheduling logic never touches keyword lists
// directly, so swapping locales does not touch the schedulers.
type Signals interface {
	// Interrogative reports whether the text reads like a question even
	// without a question mark ("how does this work then").
	Interrogative(text string) bool

	// Greeting reports whether the text is a salutation.
	Greeting(text string) bool

	// StrongDisagreement reports outright rejection ("that's wrong").
	StrongDisagreement(text string) bool

	// ModerateDisagreement reports hedged pushback ("I'm not convinced").
	ModerateDisagreement(text string) bool

	// IncompleteInfo reports that the text points at missing material.
	IncompleteInfo(text string) bool

	// ComplexTopic and SimpleTopic hint at the difficulty of a topic
	// description when no turn history exists to measure it from.
	ComplexTopic(topic string) bool
	SimpleTopic(topic string) bool
}

// English is the default Signals implementation. Matching is case-insensitive
// substring search; the lists are deliberately short and high-precision.
type English struct{}

var (
	englishInterrogative = []string{
		"what", "why", "how", "when", "where", "who", "which",
		"could you", "can you", "would you", "do you", "is it", "are there",
	}
	englishGreetingWords = []string{"hello", "hi", "hey", "greetings", "welcome", "howdy"}
	englishGreetingPhrases = []string{
		"good morning", "good afternoon", "good evening", "nice to meet",
	}
	englishStrongDisagreement = []string{
		"disagree", "that's wrong", "that is wrong", "incorrect",
		"not true", "no way", "absolutely not", "nonsense", "i object",
	}
	englishModerateDisagreement = []string{
		"however", "not sure about", "on the other hand", "i'm not convinced",
		"not so sure", "i doubt", "although", "but consider",
	}
	englishIncompleteInfo = []string{
		"what about", "missing", "don't forget", "also consider",
		"in addition", "worth noting", "one more thing", "incomplete",
	}
	englishComplexTopics = []string{
		"quantum", "philosophy", "ethics", "architecture", "algorithm",
		"economics", "theorem", "relativity", "distributed", "genome",
	}
	englishSimpleTopics = []string{
		"introduction", "basics", "overview", "getting started", "hello",
		"icebreaker", "small talk", "warm-up",
	}
)

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// containsAnyWord matches whole words only, so "hi" does not fire on "this".
func containsAnyWord(text string, words []string) bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	for _, f := range fields {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}

func (English) Interrogative(text string) bool {
	return containsAny(text, englishInterrogative)
}

func (English) Greeting(text string) bool {
	if containsAny(text, englishGreetingPhrases) {
		return true
	}
	return containsAnyWord(text, englishGreetingWords)
}

func (English) StrongDisagreement(text string) bool {
	return containsAny(text, englishStrongDisagreement)
}

func (English) ModerateDisagreement(text string) bool {
	return containsAny(text, englishModerateDisagreement)
}

func (English) IncompleteInfo(text string) bool {
	return containsAny(text, englishIncompleteInfo)
}

func (English) ComplexTopic(topic string) bool {
	return containsAny(topic, englishComplexTopics)
}

func (English) SimpleTopic(topic string) bool {
	return containsAny(topic, englishSimpleTopics)
}
