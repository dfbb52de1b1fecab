// Package api provides the HTTP API for watching and waking the rig.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/pieqf/wavesim/internal/controller"
	"github.com/pieqf/wavesim/internal/journal"
)

const (
	maxStreamConns = 8
	streamInterval = 100 * time.Millisecond
	writeWait      = 2 * time.Second
)

// Server serves rig telemetry over HTTP.
type Server struct {
	Hub      *Hub
	Wake     *controller.WakeSignal
	Journal  *journal.DB     // optional
	Writer   *journal.Writer // current journal session, if any
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
	Started  time.Time

	streamConns int32
	upgrader    websocket.Upgrader
	stop        chan struct{}
	srv         *http.Server
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	if s.Started.IsZero() {
		s.Started = time.Now()
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	wakeLimiter := NewRateLimiter(20, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/state", s.handleState)
	mux.HandleFunc("/api/v1/stream", s.handleStream)
	mux.HandleFunc("/api/v1/journal", s.handleJournal)
	mux.HandleFunc("/api/v1/wake", RateLimitMiddleware(wakeLimiter, s.adminOnly(s.handleWake)))
	return mux
}

// Start begins serving the HTTP API and the stream fan-out in goroutines.
func (s *Server) Start() {
	s.stop = make(chan struct{})
	go s.Hub.Run(streamInterval, s.stop)

	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Close stops the listener and the fan-out.
func (s *Server) Close() error {
	if s.stop != nil {
		close(s.stop)
	}
	if s.srv != nil {
		return s.srv.Close()
	}
	return nil
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly requires bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "control endpoints disabled (no WAVESIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":        "wavesim",
		"started":     s.Started.UTC().Format(time.RFC3339),
		"uptime":      humanize.RelTime(s.Started, time.Now(), "", ""),
		"awake":       s.Wake.Awake(),
		"subscribers": s.Hub.Subscribers(),
	}
	if snap, ok := s.Hub.Latest(); ok {
		status["mode"] = snap.Mode
		status["tick"] = snap.Tick
		status["ticks"] = humanize.Comma(int64(snap.Tick))
		status["interlocks"] = snap.Interlocks
		status["energy"] = snap.Energy
		if snap.Fault != "" {
			status["fault"] = snap.Fault
		}
		status["channels"] = snap.Channels
	}
	if s.Journal != nil && s.Writer != nil {
		if c, err := s.Journal.SessionCounts(s.Writer.Session()); err == nil {
			status["journal"] = map[string]any{
				"session":     s.Writer.Session(),
				"events":      humanize.Comma(c.Events),
				"transitions": humanize.Comma(c.Transitions),
				"faults":      humanize.Comma(c.Faults),
				"dropped":     humanize.Comma(int64(s.Writer.Dropped())),
			}
		} else {
			slog.Warn("journal counts", "error", err)
		}
	}
	writeJSON(w, status)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.Hub.Latest()
	if !ok {
		http.Error(w, "no state yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	evs, err := s.Journal.RecentEvents(limit)
	if err != nil {
		http.Error(w, "journal read failed", http.StatusInternalServerError)
		return
	}
	trs, err := s.Journal.RecentTransitions(limit)
	if err != nil {
		http.Error(w, "journal read failed", http.StatusInternalServerError)
		return
	}
	faults, err := s.Journal.RecentFaults(limit)
	if err != nil {
		http.Error(w, "journal read failed", http.StatusInternalServerError)
		return
	}
	sessions, err := s.Journal.Sessions(10)
	if err != nil {
		http.Error(w, "journal read failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"sessions":    sessions,
		"events":      evs,
		"transitions": trs,
		"faults":      faults,
	})
}

func (s *Server) handleWake(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Awake *bool `json:"awake"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Awake == nil {
			http.Error(w, "invalid json, want {\"awake\": bool}", http.StatusBadRequest)
			return
		}
		if *req.Awake {
			s.Wake.Set()
		} else {
			s.Wake.Clear()
		}
		slog.Info("wake signal changed over http", "awake", *req.Awake, "client", clientAddr(r))
	}
	writeJSON(w, map[string]bool{"awake": s.Wake.Awake()})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.streamConns, 1)
	if current > maxStreamConns {
		atomic.AddInt32(&s.streamConns, -1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.streamConns, -1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id, ch := s.Hub.Subscribe()
	defer s.Hub.Unsubscribe(id)
	slog.Info("stream client connected", "sub_id", id, "client", clientAddr(r))

	if snap, ok := s.Hub.Latest(); ok {
		data, err := json.Marshal(snap)
		if err == nil {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}

	// Reader goroutine: notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-gone:
			slog.Info("stream client disconnected", "sub_id", id)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
