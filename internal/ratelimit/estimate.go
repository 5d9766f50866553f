package ratelimit

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// EstimateTokens estimates the prompt token count of concatenated message
// content. When a tiktoken encoding is available for modelHint it uses
// that for a precise count; otherwise it falls back to the spec's coarse
// ceil(len/4) heuristic, which is intentionally rough - good enough to
// gate admission, not to bill against.
func EstimateTokens(modelHint string, concatenated string) int {
	if enc := encodingFor(modelHint); enc != nil {
		return len(enc.Encode(concatenated, nil, nil))
	}
	return ceilDiv4(len(concatenated))
}

func ceilDiv4(chars int) int {
	if chars <= 0 {
		return 0
	}
	return (chars + 3) / 4
}

var (
	encodingCacheMu sync.Mutex
	encodingCache   = make(map[string]*tiktoken.Tiktoken)
	encodingMissing = make(map[string]struct{})
)

// encodingFor returns a cached tiktoken encoding for modelHint, or nil if
// tiktoken doesn't recognise the model family. Misses are cached too, so
// an unknown model name doesn't repeatedly pay tiktoken's lookup cost on
// every request.
func encodingFor(modelHint string) *tiktoken.Tiktoken {
	if modelHint == "" {
		return nil
	}

	encodingCacheMu.Lock()
	defer encodingCacheMu.Unlock()

	if enc, ok := encodingCache[modelHint]; ok {
		return enc
	}
	if _, ok := encodingMissing[modelHint]; ok {
		return nil
	}

	enc, err := tiktoken.EncodingForModel(modelHint)
	if err != nil {
		encodingMissing[modelHint] = struct{}{}
		return nil
	}
	encodingCache[modelHint] = enc
	return enc
}
