package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/newrey/llm-gateway/internal/domain"
	"github.com/newrey/llm-gateway/internal/selector"
)

// handleChatCompletions adapts an http.ResponseWriter to proxy.Sink and
// hands the request body straight to the engine's reserve/call/commit
// state machine; the engine itself decides streaming vs buffered relay.
func (a *Application) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sink := &httpSink{w: w, flusher: flusher}

	if err := a.engine.Serve(r.Context(), sink, body); err != nil && !sink.wrote {
		writeEngineError(w, err)
	}
}

// httpSink adapts http.ResponseWriter + http.Flusher to proxy.Sink.
type httpSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	wrote   bool
}

func (s *httpSink) Header() http.Header        { return s.w.Header() }
func (s *httpSink) WriteHeader(statusCode int) { s.w.WriteHeader(statusCode) }
func (s *httpSink) Write(p []byte) (int, error) {
	s.wrote = true
	return s.w.Write(p)
}
func (s *httpSink) Flush()                      { s.flusher.Flush() }

// writeEngineError maps a domain.KindedError to the nearest HTTP status;
// this only runs for pre-send failures, since once a byte has reached
// the sink the status line is already committed.
func writeEngineError(w http.ResponseWriter, err error) {
	if domain.KindOf(err) == domain.ErrNoProviderAvailable {
		writeNoProviderError(w, err)
		return
	}

	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.ErrInternal:
		status = http.StatusBadRequest
	case domain.ErrUpstreamTransport, domain.ErrUpstreamHTTPError, domain.ErrUpstreamMalformed:
		status = http.StatusBadGateway
	case domain.ErrClientDisconnect:
		return
	}

	http.Error(w, err.Error(), status)
}

// noProviderBody is the structured body for a 503 NO_PROVIDER_AVAILABLE
// response: one deny reason per provider the selector considered.
type noProviderBody struct {
	Reasons map[string]string `json:"reasons"`
}

// writeNoProviderError unwraps err to a *selector.NoProviderError when
// possible and serialises its per-provider reasons; a caller needs that
// breakdown to tell "every provider is rate-limited" apart from "every
// provider is disabled".
func writeNoProviderError(w http.ResponseWriter, err error) {
	body := noProviderBody{Reasons: map[string]string{}}
	var noProvider *selector.NoProviderError
	if errors.As(err, &noProvider) {
		body.Reasons = noProvider.Reasons
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(body)
}
