package util

import (
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// hopByHopHeaders are stripped before relaying an upstream response to
// the caller, per RFC 7230 section 6.1.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// CopyResponseHeaders copies src into dst, dropping hop-by-hop headers
// and any extra header named in src's own Connection header.
func CopyResponseHeaders(dst, src http.Header) {
	if c := src.Get("Connection"); c != "" {
		for _, f := range strings.Split(c, ",") {
			if f = strings.TrimSpace(f); f != "" {
				src.Del(f)
			}
		}
	}
	for _, h := range hopByHopHeaders {
		if h == "Te" && httpguts.HeaderValuesContainsToken(src["Te"], "trailers") {
			continue
		}
		src.Del(h)
	}
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
