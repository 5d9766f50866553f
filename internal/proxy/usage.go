package proxy

import (
	"bytes"
	"encoding/json"

	"github.com/newrey/llm-gateway/internal/util"
)

// extractTotalTokens pulls usage.total_tokens out of a full (non-streamed)
// JSON response body, returning 0 if the shape isn't present - callers
// fall back to the tokens_hint + response-length estimate in that case.
func extractTotalTokens(body []byte) int {
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0
	}
	usage, ok := parsed["usage"].(map[string]interface{})
	if !ok {
		return 0
	}
	n, _ := util.GetFloat64(usage, "total_tokens")
	return int(n)
}

// sseChunk is the opportunistic parse of one "data: {...}" line: either a
// final usage total, or delta content whose length feeds the fallback
// estimate if no usage field ever arrives.
type sseChunk struct {
	totalTokens int
	hasUsage    bool
	contentLen  int
}

var dataPrefix = []byte("data:")
var donePayload = []byte("[DONE]")

func isDoneLine(line []byte) bool {
	return bytes.Contains(line, donePayload)
}

// parseSSELine best-effort parses an SSE "data:" line's JSON payload. A
// line that isn't JSON (comments, blank keep-alives) is simply ignored;
// the Proxy Engine relays it to the caller regardless.
func parseSSELine(line []byte) sseChunk {
	trimmed := bytes.TrimSpace(line)
	if !bytes.HasPrefix(trimmed, dataPrefix) {
		return sseChunk{}
	}
	payload := bytes.TrimSpace(bytes.TrimPrefix(trimmed, dataPrefix))
	if len(payload) == 0 || bytes.Equal(payload, donePayload) {
		return sseChunk{}
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return sseChunk{}
	}

	var chunk sseChunk
	if usage, ok := parsed["usage"].(map[string]interface{}); ok {
		if n, ok := util.GetFloat64(usage, "total_tokens"); ok {
			chunk.totalTokens = int(n)
			chunk.hasUsage = true
		}
	}

	choices, _ := parsed["choices"].([]interface{})
	for _, c := range choices {
		choice, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		delta, ok := choice["delta"].(map[string]interface{})
		if !ok {
			continue
		}
		chunk.contentLen += len(util.GetString(delta, "content"))
	}
	return chunk
}

func ceilDiv4(n int) int {
	return (n + 3) / 4
}
