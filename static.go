package main

import (
	_ "embed"
	"log/slog"
	"net/http"
)

// overlayHTML is the embedded overlay page: a transparent canvas that
// renders the frame stream.
//
//go:embed web/overlay.html
var overlayHTML string

// handleStatic serves the embedded overlay page.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	if _, err := w.Write([]byte(overlayHTML)); err != nil {
		slog.Error("failed to write overlay page", "error", err)
	}
}
