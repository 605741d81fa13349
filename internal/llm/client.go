// ABOUTME: OpenAI-compatible chat-completions client used as the generation collaborator
// ABOUTME: Minimal request/response shapes over net/http; no streaming

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2389/roundtable/internal/store"
)

// Request carries everything a generator needs for one scheduled turn: the
// persona of the speaking agent, the directive produced by the scheduling
// pipeline, and the recent history for grounding.
type Request struct {
	Persona string
	// Guidance is the length strategist's natural-language directive.
	Guidance string
	// Instruction, when set, is the reaction scheduler's stance template and
	// takes the place of a direct reply prompt.
	Instruction string
	MaxTokens   int
	History     []*store.Message
}

// ChatMessage is one turn in the completions payload.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("llm: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewClient creates a completions client. timeout bounds each call.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: 0.8,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Generate renders one reply under the request's directive. The directive is
// carried in the system prompt; history becomes alternating chat turns.
func (c *Client) Generate(ctx context.Context, req *Request) (string, error) {
	payload := chatRequest{
		Model:       c.model,
		Messages:    buildMessages(req),
		MaxTokens:   req.MaxTokens,
		Temperature: &c.temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding completion request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling completion endpoint: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading completion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPStatusError{StatusCode: resp.StatusCode, URL: url, Body: string(respBody)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decoding completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response had no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func buildMessages(req *Request) []ChatMessage {
	system := req.Persona
	if req.Guidance != "" {
		system += "\n\n" + req.Guidance
	}

	msgs := []ChatMessage{{Role: "system", Content: system}}
	for _, m := range req.History {
		role := "user"
		if m.AgentID != "" {
			role = "assistant"
		}
		msgs = append(msgs, ChatMessage{
			Role:    role,
			Content: fmt.Sprintf("%s: %s", m.Speaker(), m.Content),
		})
	}
	if req.Instruction != "" {
		msgs = append(msgs, ChatMessage{Role: "user", Content: req.Instruction})
	}
	return msgs
}
