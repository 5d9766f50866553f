package proxy

import "net/http"

// Sink is the minimal surface the Proxy Engine needs from whatever is
// writing bytes back to the caller: an HTTP response writer with an
// explicit flush point, so streamed chunks reach the client as they
// arrive instead of sitting in a buffer.
type Sink interface {
	Header() http.Header
	WriteHeader(statusCode int)
	Write(p []byte) (int, error)
	Flush()
}
