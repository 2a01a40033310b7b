package runtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/harklabs/hark-core/internal/session"
)

// sessionOverridesBody is the JSON shape accepted by the start and restart
// endpoints; absent fields retain the active configuration.
type sessionOverridesBody struct {
	Continuous      *bool   `json:"continuous,omitempty"`
	Grammar         *string `json:"grammar,omitempty"`
	InterimResults  *bool   `json:"interim_results,omitempty"`
	Language        *string `json:"language,omitempty"`
	MaxAlternatives *uint   `json:"max_alternatives,omitempty"`
	Pattern         *string `json:"pattern,omitempty"`
}

func (r *Runtime) registerSessionRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/session", r.handleSession)
	mux.HandleFunc("/v1/session/start", r.handleStart)
	mux.HandleFunc("/v1/session/stop", r.handleStop)
	mux.HandleFunc("/v1/session/abort", r.handleAbort)
	mux.HandleFunc("/v1/session/restart", r.handleRestart)
	mux.HandleFunc("/v1/session/events", r.handleEvents)
}

func (r *Runtime) handleEvents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	events, err := r.store.ListSessionEvents(req.Context(), r.controller.SessionID(), limit)
	if err != nil {
		http.Error(w, "event store unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": r.controller.SessionID(),
		"events":     events,
	})
}

func (r *Runtime) handleSession(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, r.controller.Snapshot())
}

func (r *Runtime) handleStart(w http.ResponseWriter, req *http.Request) {
	r.handleControl(w, req, r.controller.Start)
}

func (r *Runtime) handleRestart(w http.ResponseWriter, req *http.Request) {
	r.handleControl(w, req, r.controller.Restart)
}

func (r *Runtime) handleControl(w http.ResponseWriter, req *http.Request, op func(*session.Overrides) error) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ov, err := decodeOverrides(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := op(ov); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"state": r.controller.State().String()})
}

func (r *Runtime) handleStop(w http.ResponseWriter, req *http.Request) {
	r.handleSimple(w, req, r.controller.Stop)
}

func (r *Runtime) handleAbort(w http.ResponseWriter, req *http.Request) {
	r.handleSimple(w, req, r.controller.Abort)
}

func (r *Runtime) handleSimple(w http.ResponseWriter, req *http.Request, op func() error) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := op(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"state": r.controller.State().String()})
}

func decodeOverrides(req *http.Request) (*session.Overrides, error) {
	if req.Body == nil || req.ContentLength == 0 {
		return nil, nil
	}
	var body sessionOverridesBody
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return nil, errors.New("invalid overrides body")
	}
	ov := &session.Overrides{
		Continuous:      body.Continuous,
		Grammar:         body.Grammar,
		InterimResults:  body.InterimResults,
		Language:        body.Language,
		MaxAlternatives: body.MaxAlternatives,
	}
	if body.Pattern != nil {
		re, err := regexp.Compile(*body.Pattern)
		if err != nil {
			return nil, errors.New("invalid pattern expression")
		}
		ov.Pattern = re
	}
	return ov, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
