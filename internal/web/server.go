// Package web provides an HTTP status server for the color-sorter daemon.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sweeney/color-sorter/internal/logic"
	"github.com/sweeney/color-sorter/internal/status"
)

const (
	defaultHistory = 20
	maxHistory     = 500
)

// History provides recent gate transitions, newest first.
type History interface {
	RecentTransitions(ctx context.Context, limit int) ([]logic.Transition, error)
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	history    History
}

// New creates a Server that reads state from the given tracker. history may
// be nil, in which case /history.json answers 404.
func New(addr string, tracker *status.Tracker, history History) *Server {
	s := &Server{tracker: tracker, history: history}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/history.json", s.handleHistory)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// TransitionJSON is one entry of /history.json.
type TransitionJSON struct {
	Timestamp string `json:"timestamp"`
	Label     string `json:"label"`
	Command   string `json:"command"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// HistoryJSON is the body of /history.json.
type HistoryJSON struct {
	Transitions []TransitionJSON `json:"transitions"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.NotFound(w, r)
		return
	}

	limit := defaultHistory
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistory)
	}

	trs, err := s.history.RecentTransitions(r.Context(), limit)
	if err != nil {
		http.Error(w, "journal unavailable", http.StatusServiceUnavailable)
		return
	}

	out := HistoryJSON{Transitions: make([]TransitionJSON, 0, len(trs))}
	for _, tr := range trs {
		out.Transitions = append(out.Transitions, TransitionJSON{
			Timestamp: tr.Timestamp.UTC().Format(time.RFC3339Nano),
			Label:     string(tr.Label),
			Command:   string(tr.Command),
			From:      string(tr.From),
			To:        string(tr.To),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
