// Package web provides the HTTP status server for the alarm-radio daemon:
// an HTML status page, the JSON snapshot, a command endpoint and metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/alarm-radio/internal/alarm"
	"github.com/sweeney/alarm-radio/internal/status"
)

// DefaultCommandTimeout bounds how long a command request waits for the
// main loop.
const DefaultCommandTimeout = 2 * time.Second

// Options wires the optional parts of the server. A nil Commands channel
// disables the command endpoint; a nil Metrics handler disables /metrics.
type Options struct {
	Commands       chan<- Request
	Guard          *alarm.EditGuard
	Metrics        http.Handler
	CommandTimeout time.Duration
	Log            *zap.Logger
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	opts       Options
	log        *zap.Logger
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	s := &Server{tracker: tracker, opts: opts, log: opts.Log.Named("web")}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/api/status", s.handleJSON)
	mux.HandleFunc("/api/command", s.handleCommand)
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
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
	if err := renderHTML(w, snap); err != nil {
		s.log.Warn("render status page", zap.Error(err))
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeResult(w, http.StatusMethodNotAllowed, Result{Error: "POST only"})
		return
	}
	if s.opts.Commands == nil {
		writeResult(w, http.StatusServiceUnavailable, Result{Error: "commands disabled"})
		return
	}

	var cmd Command
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cmd); err != nil {
		writeResult(w, http.StatusBadRequest, Result{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := cmd.Validate(); err != nil {
		writeResult(w, http.StatusBadRequest, Result{Error: err.Error()})
		return
	}

	// The edit guard is the one piece of engine state written from here.
	if s.opts.Guard != nil {
		switch cmd.Action {
		case ActionBeginEdit:
			s.opts.Guard.Begin(cmd.SlotIndex())
			s.log.Info("edit started", zap.Int("slot", cmd.SlotIndex()))
			writeResult(w, http.StatusOK, Result{OK: true, Message: "editing"})
			return
		case ActionCancelEdit:
			s.opts.Guard.End()
			writeResult(w, http.StatusOK, Result{OK: true, Message: "edit cancelled"})
			return
		}
	}

	res, err := s.submit(r.Context(), cmd)
	if err != nil {
		s.log.Warn("command not handled", zap.String("action", cmd.Action), zap.Error(err))
		writeResult(w, http.StatusGatewayTimeout, Result{Error: err.Error()})
		return
	}
	code := http.StatusOK
	if !res.OK {
		code = http.StatusConflict
	}
	writeResult(w, code, res)
}

// submit hands cmd to the main loop and waits for its reply.
func (s *Server) submit(ctx context.Context, cmd Command) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CommandTimeout)
	defer cancel()

	req := NewRequest(cmd)
	select {
	case s.opts.Commands <- req:
	case <-ctx.Done():
		return Result{}, errors.New("main loop busy")
	}
	select {
	case res := <-req.Reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, errors.New("no reply from main loop")
	}
}

func writeResult(w http.ResponseWriter, code int, res Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(res)
}
