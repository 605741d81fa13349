// ABOUTME: Per-turn orchestration: classify, size, generate, then schedule reactions
// ABOUTME: Candidates are evaluated serially per trigger so repeat guards hold

package director

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/2389/roundtable/internal/classify"
	"github.com/2389/roundtable/internal/llm"
	"github.com/2389/roundtable/internal/reaction"
	"github.com/2389/roundtable/internal/room"
	"github.com/2389/roundtable/internal/store"
	"github.com/2389/roundtable/internal/strategy"
	"github.com/2389/roundtable/internal/transcript"
)

// Generator renders one reply for a scheduled turn.
type Generator interface {
	Generate(ctx context.Context, req *llm.Request) (string, error)
}

// ScheduledReaction records one agent's decided jump-in.
type ScheduledReaction struct {
	AgentID string        `json:"agent_id"`
	Type    reaction.Type `json:"type"`
}

// Decision is the scheduling outcome for one trigger, exposed to callers
// after the turn has been orchestrated.
type Decision struct {
	NextSpeaker string              `json:"next_speaker,omitempty"`
	Length      strategy.Length     `json:"length"`
	MaxTokens   int                 `json:"max_tokens"`
	Reactions   []ScheduledReaction `json:"reactions"`
}

// How much history feeds the classification transcript.
const defaultHistoryLimit = 50

// How many committed agent replies seed the reaction scheduler's response
// window at the start of a turn. Carrying the window across triggers is what
// keeps the repeat guards meaningful between consecutive messages.
const responseSeedWindow = 4

// Mention tokens that address every agent in the room at once.
var allMentionTokens = []string{"@all", "@everyone", "@agents"}

// Director runs the scheduling pipeline for incoming messages. Pipelines of
// different rooms are independent; within one room, triggers are serialized
// so reactions committed for a trigger are visible to later candidates.
type Director struct {
	store      store.Store
	rooms      *room.Service
	classifier *classify.Classifier
	scheduler  *reaction.Scheduler
	gen        Generator
	logger     *slog.Logger

	historyLimit int

	mu        sync.Mutex
	roomLocks map[string]*sync.Mutex
}

// New creates a director.
func New(st store.Store, rooms *room.Service, classifier *classify.Classifier,
	scheduler *reaction.Scheduler, gen Generator, logger *slog.Logger) *Director {
	if logger == nil {
		logger = slog.Default()
	}
	return &Director{
		store:        st,
		rooms:        rooms,
		classifier:   classifier,
		scheduler:    scheduler,
		gen:          gen,
		logger:       logger.With("component", "director"),
		historyLimit: defaultHistoryLimit,
		roomLocks:    make(map[string]*sync.Mutex),
	}
}

// SetHistoryLimit overrides how many stored messages feed classification and
// transcript rendering. Values <= 0 keep the default.
func (d *Director) SetHistoryLimit(n int) {
	if n > 0 {
		d.historyLimit = n
	}
}

// Step handles one committed trigger message: produces the primary scheduled
// turn, then consults the reaction scheduler for every other agent in order.
// Heuristic failures never abort the turn; only store-level failures do.
func (d *Director) Step(ctx context.Context, trigger *store.Message) (*Decision, error) {
	lock := d.roomLock(trigger.RoomID)
	lock.Lock()
	defer lock.Unlock()

	roomRec, err := d.store.GetRoom(ctx, trigger.RoomID)
	if err != nil {
		return nil, fmt.Errorf("loading room: %w", err)
	}
	agents, err := d.store.ListAgentsByRoom(ctx, trigger.RoomID)
	if err != nil {
		return nil, fmt.Errorf("loading agents: %w", err)
	}
	if len(agents) == 0 {
		return &Decision{}, nil
	}

	history, err := d.store.GetMessagesByRoom(ctx, trigger.RoomID, d.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	turns := transcript.Parse(renderTranscript(history), d.logger)

	speaker := d.pickSpeaker(agents, trigger, history)
	strat := strategy.Pick(d.classifier.Classify(turns, speaker.ID, roomRec.Topic), d.logger)

	decision := &Decision{
		NextSpeaker: speaker.ID,
		Length:      strat.Length,
		MaxTokens:   strat.MaxTokens,
	}

	trig := reaction.Trigger{
		Content:     trigger.Content,
		MentionsAll: mentionsAll(trigger.Content),
	}

	// The response window starts from the room's committed replies so the
	// repeat guards carry across triggers: an agent who answered the previous
	// message is still the most recent responder here. The primary scheduled
	// turn below is the conversation's next turn, not a jump-in, so it never
	// enters the window.
	responses := seedResponses(history, trigger.ID)
	replies := 0

	// Primary scheduled turn.
	text, err := d.gen.Generate(ctx, &llm.Request{
		Persona:   speaker.Persona,
		Guidance:  strat.Guidance,
		MaxTokens: strat.MaxTokens,
		History:   history,
	})
	if err != nil {
		d.logger.Error("primary generation failed, skipping turn",
			"room_id", trigger.RoomID,
			"agent_id", speaker.ID,
			"error", err)
	} else {
		text = reaction.TrimReply(text)
		if posted := d.post(ctx, trigger, speaker, text, replies); posted != nil {
			replies++
		}
	}

	// Reaction pass: strictly serial so each candidate sees every response
	// already committed for this trigger.
	for _, agent := range agents {
		if agent.ID == speaker.ID || agent.ID == trigger.AgentID {
			continue
		}
		verdict := d.scheduler.Decide(agent.ID, trig, responses)
		if !verdict.ShouldReact {
			continue
		}

		instruction := reaction.Instruction(verdict.Type, trig, responses)
		reply, err := d.gen.Generate(ctx, &llm.Request{
			Persona:     agent.Persona,
			Instruction: instruction,
			MaxTokens:   strat.MaxTokens,
			History:     history,
		})
		if err != nil {
			d.logger.Error("reaction generation failed, skipping",
				"room_id", trigger.RoomID,
				"agent_id", agent.ID,
				"error", err)
			continue
		}
		reply = reaction.TrimReply(reply)
		if posted := d.post(ctx, trigger, agent, reply, replies); posted == nil {
			continue
		}

		replies++
		responses = append(responses, reaction.Response{AgentID: agent.ID, Text: reply})
		decision.Reactions = append(decision.Reactions, ScheduledReaction{
			AgentID: agent.ID,
			Type:    verdict.Type,
		})
	}

	d.logger.Debug("turn scheduled",
		"room_id", trigger.RoomID,
		"next_speaker", decision.NextSpeaker,
		"length", decision.Length,
		"reactions", len(decision.Reactions))

	return decision, nil
}

// post commits one scheduled reply. The message key ties the reply to its
// trigger so clients can match optimistic and durable copies.
func (d *Director) post(ctx context.Context, trigger *store.Message, agent *store.Agent, text string, replyIndex int) *store.Message {
	msg, err := d.rooms.Post(ctx, &room.PostRequest{
		RoomID:     trigger.RoomID,
		AgentID:    agent.ID,
		Content:    text,
		MessageKey: fmt.Sprintf("%s:%s:%s:%d", trigger.RoomID, trigger.ID, agent.ID, replyIndex),
	})
	if err != nil {
		d.logger.Error("failed to commit scheduled reply",
			"room_id", trigger.RoomID,
			"agent_id", agent.ID,
			"error", err)
		return nil
	}
	return msg
}

// seedResponses rebuilds the reaction scheduler's rolling response window
// from committed history: the most recent agent replies, oldest first,
// excluding the trigger itself.
func seedResponses(history []*store.Message, triggerID string) []reaction.Response {
	var window []reaction.Response
	for i := len(history) - 1; i >= 0 && len(window) < responseSeedWindow; i-- {
		msg := history[i]
		if msg.AgentID == "" || msg.ID == triggerID {
			continue
		}
		window = append(window, reaction.Response{AgentID: msg.AgentID, Text: msg.Content})
	}
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	return window
}

// pickSpeaker chooses the next scheduled speaker: the agent who has gone
// longest without speaking, excluding the trigger's author.
func (d *Director) pickSpeaker(agents []*store.Agent, trigger *store.Message, history []*store.Message) *store.Agent {
	lastSpoke := make(map[string]int) // agentID -> last index in history
	for i, msg := range history {
		if msg.AgentID != "" {
			lastSpoke[msg.AgentID] = i
		}
	}

	var best *store.Agent
	bestIdx := len(history) + 1
	for _, agent := range agents {
		if agent.ID == trigger.AgentID {
			continue
		}
		idx, spoke := lastSpoke[agent.ID]
		if !spoke {
			idx = -1
		}
		if best == nil || idx < bestIdx {
			best = agent
			bestIdx = idx
		}
	}
	if best == nil {
		best = agents[0]
	}
	return best
}

func (d *Director) roomLock(roomID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.roomLocks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		d.roomLocks[roomID] = lock
	}
	return lock
}

// renderTranscript turns stored messages back into the canonical transcript
// the parser consumes.
func renderTranscript(msgs []*store.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(transcript.FormatLine(m.Speaker(), m.Content))
		b.WriteString("\n")
	}
	return b.String()
}

func mentionsAll(content string) bool {
	lower := strings.ToLower(content)
	for _, tok := range allMentionTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
