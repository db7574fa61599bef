package web

import (
	"io"
	"net/http"

	"github.com/harlowglass/stockroom/pkg/slogx"
)

// handleLivez answers 200 whenever the process is up.
func (rt *Router) handleLivez(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

// handleReadyz additionally checks database connectivity.
func (rt *Router) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := rt.Store.Ping(r.Context()); err != nil {
		slogx.FromContext(r.Context()).Error("readiness check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}
