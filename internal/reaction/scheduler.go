// ABOUTME: Decides whether a candidate agent jumps into the conversation unprompted
// ABOUTME: Probabilistic per-(agent, trigger) decision with repeat guards and signal boosts

package reaction

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/2389/roundtable/internal/lexicon"
)

// Type is the rhetorical stance of a scheduled reaction.
type Type string

const (
	TypeAgree       Type = "agree"
	TypeDisagree    Type = "disagree"
	TypeAddInfo     Type = "add_info"
	TypeAskQuestion Type = "ask_question"
)

// RandomSource abstracts the pseudo-random generator so tests can seed or
// script the draws.
type RandomSource interface {
	Float64() float64
}

// DefaultSource returns a RandomSource backed by math/rand/v2 with the given
// seed.
func DefaultSource(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, seed))
}

// Trigger is the incoming message a candidate agent is reacting to.
type Trigger struct {
	Content string
	// MentionsAll is true when the message explicitly addresses every agent
	// in the room.
	MentionsAll bool
}

// Response is one reply already committed for the current trigger. Callers
// must evaluate candidates serially per trigger so earlier reactions are
// visible here; the repeat guards lose meaning otherwise.
type Response struct {
	AgentID string
	Text    string
}

// Decision is the scheduler's verdict for one (agent, trigger) pair.
type Decision struct {
	ShouldReact bool
	Type        Type
}

// Probability constants. The escape valve for immediate self-repeats under
// strong disagreement is deliberately narrow: 10% gate plus heavy dampening.
const (
	baseProbability         = 0.3
	crowdedThreshold        = 4
	crowdedFactor           = 0.6
	strongDisagreeFactor    = 2.5
	moderateDisagreeFactor  = 1.6
	questionFactor          = 1.7
	selfRebuttalGate        = 0.10
	selfRebuttalFactor      = 0.15
	recentRepeatFactor      = 0.2
	recentRepeatWithDispute = 0.5
	probabilityCeiling      = 0.85

	// How many trailing responses are scanned for signals and repeats.
	signalWindow = 4
)

// Scheduler makes per-trigger reaction decisions for candidate agents.
type Scheduler struct {
	signals lexicon.Signals
	rand    RandomSource
	logger  *slog.Logger
}

// New creates a scheduler. Nil signals selects the English keyword sets; nil
// rnd selects an unseeded default source.
func New(signals lexicon.Signals, rnd RandomSource, logger *slog.Logger) *Scheduler {
	if signals == nil {
		signals = lexicon.English{}
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		signals: signals,
		rand:    rnd,
		logger:  logger.With("component", "reaction"),
	}
}

// Decide returns whether agentID reacts to the trigger, and with what stance.
// prior holds the responses already committed for this same trigger, oldest
// first.
func (s *Scheduler) Decide(agentID string, trigger Trigger, prior []Response) Decision {
	// An explicit all-agents greeting always gets a response. A non-greeting
	// mention takes a plain base-probability draw; mandatory mention replies
	// are a separate path outside this scheduler.
	if trigger.MentionsAll {
		if s.signals.Greeting(trigger.Content) {
			return Decision{ShouldReact: true, Type: s.reactionType(trigger, prior)}
		}
		if s.rand.Float64() >= baseProbability {
			return Decision{}
		}
		return Decision{ShouldReact: true, Type: s.reactionType(trigger, prior)}
	}

	p := baseProbability
	if len(prior) >= crowdedThreshold {
		p *= crowdedFactor
	}

	recent := lastResponses(prior, signalWindow)
	strong := s.anyResponse(recent, s.signals.StrongDisagreement)
	moderate := s.anyResponse(recent, s.signals.ModerateDisagreement)
	question := s.anyResponse(recent, func(text string) bool {
		return strings.Contains(text, "?") || s.signals.Interrogative(text)
	})

	if strong {
		p *= strongDisagreeFactor
	}
	if moderate {
		p *= moderateDisagreeFactor
	}
	if question {
		p *= questionFactor
	}

	lastIsSelf := len(prior) > 0 && prior[len(prior)-1].AgentID == agentID
	recentRepeat := false
	for _, r := range recent {
		if r.AgentID == agentID {
			recentRepeat = true
			break
		}
	}

	switch {
	case lastIsSelf:
		// Speaking twice in a row is blocked outright unless a strong
		// disagreement opens the narrow rebuttal valve.
		if !strong {
			return Decision{}
		}
		if s.rand.Float64() >= selfRebuttalGate {
			return Decision{}
		}
		p *= selfRebuttalFactor
	case recentRepeat:
		if strong || moderate {
			p *= recentRepeatWithDispute
		} else {
			p *= recentRepeatFactor
		}
	}

	if p > probabilityCeiling {
		p = probabilityCeiling
	}

	if s.rand.Float64() >= p {
		return Decision{}
	}

	d := Decision{ShouldReact: true, Type: s.reactionType(trigger, prior)}
	s.logger.Debug("agent reacting",
		"agent_id", agentID,
		"type", d.Type,
		"probability", p,
		"prior_responses", len(prior))
	return d
}

// Fallback cumulative distribution over reaction types.
const (
	fallbackDisagreeCeiling = 0.35
	fallbackQuestionCeiling = 0.55
	fallbackAddInfoCeiling  = 0.75
)

// Signal-gated type probabilities, checked in priority order with an
// independent draw each.
const (
	strongDisagreeTypeP   = 0.7
	moderateDisagreeTypeP = 0.5
	questionTypeP         = 0.7
	incompleteInfoTypeP   = 0.6
)

// reactionType picks the rhetorical stance. Branches run in priority order
// and each re-rolls; the first branch whose signal is present and whose draw
// succeeds wins, otherwise the fixed fallback distribution applies.
func (s *Scheduler) reactionType(trigger Trigger, prior []Response) Type {
	recent := lastResponses(prior, signalWindow)
	scanned := trigger.Content
	for _, r := range recent {
		scanned += "\n" + r.Text
	}

	if s.signals.StrongDisagreement(scanned) && s.rand.Float64() < strongDisagreeTypeP {
		return TypeDisagree
	}
	if s.signals.ModerateDisagreement(scanned) && s.rand.Float64() < moderateDisagreeTypeP {
		return TypeDisagree
	}
	if (strings.Contains(scanned, "?") || s.signals.Interrogative(scanned)) && s.rand.Float64() < questionTypeP {
		return TypeAskQuestion
	}
	if s.signals.IncompleteInfo(scanned) && s.rand.Float64() < incompleteInfoTypeP {
		return TypeAddInfo
	}

	switch r := s.rand.Float64(); {
	case r < fallbackDisagreeCeiling:
		return TypeDisagree
	case r < fallbackQuestionCeiling:
		return TypeAskQuestion
	case r < fallbackAddInfoCeiling:
		return TypeAddInfo
	default:
		return TypeAgree
	}
}

// Instruction renders the natural-language directive handed to the generation
// collaborator. The scheduler never writes the reply itself.
func Instruction(t Type, trigger Trigger, prior []Response) string {
	var stance string
	switch t {
	case TypeDisagree:
		stance = "Respectfully disagree with the point above and explain your counterargument."
	case TypeAskQuestion:
		stance = "Ask one pointed question that moves the discussion forward."
	case TypeAddInfo:
		stance = "Add a relevant piece of information the discussion is missing."
	default:
		stance = "Agree with the point above and briefly reinforce it with your own angle."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A participant just said: %q\n", trigger.Content)
	recent := lastResponses(prior, 3)
	if len(recent) > 0 {
		b.WriteString("Responses so far:\n")
		for _, r := range recent {
			fmt.Fprintf(&b, "- %s: %q\n", r.AgentID, r.Text)
		}
	}
	b.WriteString(stance)
	return b.String()
}

func (s *Scheduler) anyResponse(responses []Response, match func(string) bool) bool {
	for _, r := range responses {
		if match(r.Text) {
			return true
		}
	}
	return false
}

func lastResponses(prior []Response, n int) []Response {
	if len(prior) <= n {
		return prior
	}
	return prior[len(prior)-n:]
}
