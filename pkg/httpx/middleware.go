// Package httpx carries the HTTP plumbing shared by every route: middleware
// chaining, per-key rate limiting and CSRF protection for form posts.
package httpx

import "net/http"

// Middleware wraps an http.Handler with additional behaviour.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to a handler in the order given, so the first
// middleware is the outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// NoCache sets headers preventing any caching of the response. Required for
// pages carrying session state or one-time codes.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
