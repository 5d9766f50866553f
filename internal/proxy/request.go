package proxy

import (
	"encoding/json"
	"fmt"

	"github.com/newrey/llm-gateway/internal/domain"
	"github.com/newrey/llm-gateway/internal/ratelimit"
	"github.com/newrey/llm-gateway/internal/util"
)

// ChatRequest is the decoded inbound OpenAI-shaped chat-completions body.
// Fields other than model/stream/max_tokens pass through untouched; raw
// retains the full decoded object so WithModel can rewrite just the
// model field without disturbing anything else the caller sent.
type ChatRequest struct {
	Model     string
	Stream    bool
	MaxTokens int

	raw map[string]interface{}
}

// ParseChatRequest decodes body into a ChatRequest, failing if "model" is
// absent - every candidate selection and usage record needs it.
func ParseChatRequest(body []byte) (*ChatRequest, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, domain.NewKindedError(domain.ErrInternal, fmt.Errorf("decoding chat request: %w", err))
	}

	model := util.GetString(raw, "model")
	if model == "" {
		return nil, domain.NewKindedError(domain.ErrInternal, fmt.Errorf("chat request missing \"model\""))
	}

	stream, _ := raw["stream"].(bool)
	maxTokens, _ := util.GetFloat64(raw, "max_tokens")

	return &ChatRequest{
		Model:     model,
		Stream:    stream,
		MaxTokens: int(maxTokens),
		raw:       raw,
	}, nil
}

// TokensHint is max_tokens when the caller supplied one, else an estimate
// from the concatenated message text.
func (c *ChatRequest) TokensHint() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return ratelimit.EstimateTokens(c.Model, c.promptText())
}

func (c *ChatRequest) promptText() string {
	messages, _ := c.raw["messages"].([]interface{})
	var out []byte
	for _, m := range messages {
		msg, ok := m.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, util.GetString(msg, "content")...)
	}
	return string(out)
}

// WithModel returns the request body with "model" rewritten to
// upstreamModel; every other field is carried through unchanged. alias
// resolution is a rewrite only, never a fabrication: upstreamModel
// always comes from the caller's own model or the routing document.
func (c *ChatRequest) WithModel(upstreamModel string) ([]byte, error) {
	clone := make(map[string]interface{}, len(c.raw))
	for k, v := range c.raw {
		clone[k] = v
	}
	clone["model"] = upstreamModel
	return json.Marshal(clone)
}
