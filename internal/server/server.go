// Package server exposes an alarm panel over HTTP
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/librescoot/tempfsm"
	"github.com/librescoot/tempfsm/alarm"
	"github.com/librescoot/tempfsm/graph"
)

// Panel is the alarm surface the server drives
type Panel interface {
	Execute(ctx context.Context, cmd tempfsm.CommandID) (tempfsm.StateID, error)
	CurrentState() tempfsm.StateID
	PermittedCommands() []tempfsm.CommandID
	Machine() *tempfsm.Machine
}

// Options configures the router
type Options struct {
	// CommandLimit is the number of commands accepted per CommandWindow
	// and client IP. Zero disables rate limiting.
	CommandLimit  int
	CommandWindow time.Duration
	// FireTimeout bounds how long a command waits for the machine
	FireTimeout time.Duration
	// Metrics is mounted at /metrics when set
	Metrics http.Handler
}

type server struct {
	panel  Panel
	logger zerolog.Logger
	opts   Options
}

// New returns the HTTP handler for panel
func New(panel Panel, logger zerolog.Logger, opts Options) http.Handler {
	if opts.FireTimeout <= 0 {
		opts.FireTimeout = 5 * time.Second
	}
	s := &server{panel: panel, logger: logger, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/state", s.handleState)
	r.Get("/commands", s.handleCommands)
	r.Get("/graph", s.handleGraph)
	r.Group(func(r chi.Router) {
		if opts.CommandLimit > 0 {
			r.Use(httprate.Limit(opts.CommandLimit, opts.CommandWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Retry-After", fmt.Sprintf("%d", int(opts.CommandWindow.Seconds())))
					writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many commands")
				}),
			))
		}
		r.Post("/commands/{command}", s.handleFire)
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	return r
}

type timerResponse struct {
	State    tempfsm.StateID `json:"state"`
	Duration string          `json:"duration"`
	Deadline time.Time       `json:"deadline"`
}

type stateResponse struct {
	State tempfsm.StateID `json:"state"`
	Timer *timerResponse  `json:"timer,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{State: s.panel.CurrentState()}
	if status, ok := s.panel.Machine().ActiveTimer(); ok {
		resp.Timer = &timerResponse{
			State:    status.State,
			Duration: status.Duration.String(),
			Deadline: status.Deadline,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleCommands(w http.ResponseWriter, r *http.Request) {
	permitted := s.panel.PermittedCommands()
	if permitted == nil {
		permitted = []tempfsm.CommandID{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"permitted": permitted})
}

func (s *server) handleFire(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "command")
	cmd, ok := alarm.ParseCommand(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_command", fmt.Sprintf("%q is not an alarm command", name))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.FireTimeout)
	defer cancel()

	state, err := s.panel.Execute(ctx, cmd)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, stateResponse{State: state})
	case errors.Is(err, tempfsm.ErrUndefinedTransition):
		writeError(w, http.StatusConflict, "undefined_transition", err.Error())
	case errors.Is(err, tempfsm.ErrNoMatchingGuard):
		writeError(w, http.StatusConflict, "no_matching_guard", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "busy", err.Error())
	default:
		s.logger.Error().Err(err).Str("command", string(cmd)).Msg("command failed")
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (s *server) handleGraph(w http.ResponseWriter, r *http.Request) {
	var style graph.Style
	switch r.URL.Query().Get("format") {
	case "", "dot":
		style = graph.UmlDot{}
	case "mermaid":
		style = graph.Mermaid{Direction: "LR"}
	default:
		writeError(w, http.StatusBadRequest, "unknown_format", "format must be dot or mermaid")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(graph.Export(s.panel.Machine(), style)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorResponse{Error: code, Detail: detail})
}
