// Package proxy implements the Proxy Engine (C6): the critical path that
// drives Selector -> Limiter.reserve -> Upstream Client -> stream relay
// -> Limiter.commit/rollback, with failover strictly bounded to before
// the first byte of a chosen candidate's response reaches the caller.
package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/newrey/llm-gateway/internal/configstore"
	"github.com/newrey/llm-gateway/internal/domain"
	"github.com/newrey/llm-gateway/internal/ledger"
	"github.com/newrey/llm-gateway/internal/ratelimit"
	"github.com/newrey/llm-gateway/internal/selector"
	"github.com/newrey/llm-gateway/internal/upstream"
	"github.com/newrey/llm-gateway/internal/util"
	"github.com/newrey/llm-gateway/pkg/pool"
)

const chatCompletionsPath = "/chat/completions"

// streamReaderPool recycles the bufio.Reader used to scan SSE lines off
// an upstream response body - one per concurrent stream, on the hottest
// path the engine has.
var streamReaderPool = pool.NewLitePool(func() *bufio.Reader {
	return bufio.NewReaderSize(nil, 4096)
})

// outcome distinguishes a terminal attempt (bytes reached the caller, no
// further failover possible) from one that failed before anything was
// written, which the engine may retry on the next candidate.
type outcome int

const (
	outcomeFailedPreSend outcome = iota
	outcomeTerminal
)

// Engine wires the components together for one chat-completions request.
type Engine struct {
	store   *configstore.Store
	sel     *selector.Selector
	limiter *ratelimit.Manager
	client  *upstream.Client
	ledger  *ledger.Ledger
	now     func() time.Time
}

// New builds an Engine over the given components.
func New(store *configstore.Store, sel *selector.Selector, limiter *ratelimit.Manager, client *upstream.Client, led *ledger.Ledger) *Engine {
	return &Engine{store: store, sel: sel, limiter: limiter, client: client, ledger: led, now: time.Now}
}

// Serve runs the full selection/failover loop for one request, writing
// the response to sink. A non-nil return is either a failure before any
// byte reached the caller, which the caller (internal/app) maps to an
// HTTP status via domain.KindOf, or a terminal error after bytes were
// already relayed (a mid-stream abort or client disconnect), when the
// response is already committed.
func (e *Engine) Serve(ctx context.Context, sink Sink, body []byte) error {
	creq, err := ParseChatRequest(body)
	if err != nil {
		return err
	}

	tokensHint := creq.TokensHint()
	candidates, err := e.sel.Select(creq.Model, tokensHint)
	if err != nil {
		return err
	}

	var lastErr error
	for _, cand := range candidates {
		out, attemptErr := e.attempt(ctx, sink, creq, cand, tokensHint)
		if out == outcomeTerminal {
			return attemptErr
		}
		lastErr = attemptErr
	}

	if lastErr == nil {
		lastErr = errors.New("no candidates attempted")
	}
	return domain.NewKindedError(domain.ErrUpstreamTransport, fmt.Errorf("all candidates exhausted: %w", lastErr))
}

func (e *Engine) attempt(ctx context.Context, sink Sink, creq *ChatRequest, cand selector.Candidate, tokensHint int) (outcome, error) {
	doc := e.store.Snapshot()
	provider, ok := doc.FindProvider(cand.Provider)
	if !ok {
		// Config changed between Select and here; treat like any other
		// pre-send failure so the next candidate gets a chance.
		return outcomeFailedPreSend, domain.NewKindedError(domain.ErrUpstreamTransport, fmt.Errorf("provider %q no longer configured", cand.Provider))
	}

	rec := domain.UsageRecord{
		Model:     creq.Model,
		Provider:  cand.Provider,
		StartedAt: e.now(),
	}

	ticket := e.limiter.Reserve(cand.Provider)

	outBody, err := creq.WithModel(cand.UpstreamModel)
	if err != nil {
		_ = e.limiter.Rollback(ticket)
		return outcomeFailedPreSend, domain.NewKindedError(domain.ErrInternal, err)
	}

	resp, err := e.client.Call(ctx, provider, chatCompletionsPath, nil, outBody, creq.Stream)
	if err != nil {
		_ = e.limiter.Rollback(ticket)
		rec.EndedAt = e.now()
		rec.Status = string(domain.KindOf(err))
		rec.Error = err.Error()
		e.ledger.Append(rec)
		return outcomeFailedPreSend, err
	}

	if creq.Stream {
		return e.relayStream(sink, resp, ticket, rec, tokensHint)
	}
	return e.relayBody(sink, resp, ticket, rec, tokensHint)
}

// relayBody reads the full upstream body before writing anything to the
// caller, so a read failure here is still pre-send and eligible for
// failover.
func (e *Engine) relayBody(sink Sink, resp *upstream.Response, ticket ratelimit.Ticket, rec domain.UsageRecord, tokensHint int) (outcome, error) {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		_ = e.limiter.Rollback(ticket)
		rec.EndedAt = e.now()
		rec.Status = string(domain.KindOf(err))
		rec.Error = err.Error()
		e.ledger.Append(rec)
		return outcomeFailedPreSend, err
	}

	total := extractTotalTokens(data)
	if total == 0 {
		total = tokensHint + ceilDiv4(len(data))
	}
	_ = e.limiter.Commit(ticket, total)

	rec.EndedAt = e.now()
	rec.TotalTokens = total
	rec.Status = "ok"
	e.ledger.Append(rec)

	util.CopyResponseHeaders(sink.Header(), resp.Header)
	sink.WriteHeader(resp.StatusCode)
	if _, werr := sink.Write(data); werr != nil {
		return outcomeTerminal, domain.NewKindedError(domain.ErrClientDisconnect, werr)
	}
	return outcomeTerminal, nil
}

// relayStream forwards server-sent-event bytes as they arrive. Once the
// first byte has reached the caller (wroteAny), every subsequent failure
// is terminal: no failover, commit the observed token count, and for a
// genuine upstream error inject a synthetic SSE error event first.
func (e *Engine) relayStream(sink Sink, resp *upstream.Response, ticket ratelimit.Ticket, rec domain.UsageRecord, tokensHint int) (outcome, error) {
	defer resp.Body.Close()

	sink.Header().Set("Content-Type", "text/event-stream")
	sink.Header().Set("Cache-Control", "no-cache")
	sink.WriteHeader(resp.StatusCode)

	reader := streamReaderPool.Get()
	reader.Reset(resp.Body)
	defer streamReaderPool.Put(reader)

	var observedTokens, contentLen int
	var haveUsage bool
	var wroteAny bool

	finalize := func(status string, errMsg string) {
		total := observedTokens
		if !haveUsage {
			total = tokensHint + ceilDiv4(contentLen)
		}
		_ = e.limiter.Commit(ticket, total)
		rec.EndedAt = e.now()
		rec.TotalTokens = total
		rec.Status = status
		rec.Error = errMsg
		e.ledger.Append(rec)
	}

	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			if _, werr := sink.Write(line); werr != nil {
				finalize(string(domain.ErrClientDisconnect), werr.Error())
				return outcomeTerminal, domain.NewKindedError(domain.ErrClientDisconnect, werr)
			}
			wroteAny = true
			sink.Flush()

			chunk := parseSSELine(line)
			if chunk.hasUsage {
				observedTokens = chunk.totalTokens
				haveUsage = true
			}
			contentLen += chunk.contentLen

			if isDoneLine(line) {
				finalize("ok", "")
				return outcomeTerminal, nil
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				finalize("ok", "")
				return outcomeTerminal, nil
			}

			if !wroteAny {
				_ = e.limiter.Rollback(ticket)
				rec.EndedAt = e.now()
				rec.Status = string(domain.KindOf(readErr))
				rec.Error = readErr.Error()
				e.ledger.Append(rec)
				return outcomeFailedPreSend, readErr
			}

			_, _ = sink.Write(syntheticErrorEvent(readErr))
			sink.Flush()
			finalize(string(domain.KindOf(readErr)), readErr.Error())
			return outcomeTerminal, readErr
		}
	}
}

func syntheticErrorEvent(err error) []byte {
	kind := domain.KindOf(err)
	return []byte(fmt.Sprintf("data: {\"error\":{\"message\":%q,\"type\":%q}}\n\n", err.Error(), kind))
}
