package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/lingorelay/lingo-relay/internal/session"
	"github.com/lingorelay/lingo-relay/internal/storage"
	"github.com/lingorelay/lingo-relay/internal/translate"
)

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type SessionStore interface {
	ListSessions() ([]storage.Session, error)
	GetLines(sessionID string) ([]storage.Line, error)
}

type startRequest struct {
	Name      string `json:"name"`
	Direction string `json:"direction"`
}

func registerAPIRoutes(mux *http.ServeMux, store SessionStore, controls ControlHooks) {
	mux.HandleFunc("GET /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		sessions, err := store.ListSessions()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list sessions: %v", err))
			return
		}
		if sessions == nil {
			sessions = []storage.Session{}
		}
		writeJSON(w, http.StatusOK, sessions)
	})

	mux.HandleFunc("GET /api/sessions/{id}/lines", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusForbidden, "invalid session id")
			return
		}

		lines, err := store.GetLines(sessionID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get session lines: %v", err))
			return
		}
		if lines == nil {
			lines = []storage.Line{}
		}
		writeJSON(w, http.StatusOK, lines)
	})

	mux.HandleFunc("POST /api/start", func(w http.ResponseWriter, r *http.Request) {
		if controls.Start == nil {
			writeJSONError(w, http.StatusNotImplemented, "start not available")
			return
		}

		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := controls.Start(req.Name, req.Direction); err != nil {
			writeJSONError(w, startErrorStatus(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/stop", func(w http.ResponseWriter, r *http.Request) {
		if controls.Stop == nil {
			writeJSONError(w, http.StatusNotImplemented, "stop not available")
			return
		}

		hadContent, err := controls.Stop()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stop session: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"had_content": hadContent})
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		status := session.StatusReady
		if controls.Status != nil {
			status = controls.Status()
		}
		var warnings []string
		if controls.Warnings != nil {
			warnings = controls.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": status, "warnings": warnings})
	})
}

func startErrorStatus(err error) int {
	var valErr *session.ValidationError
	var credErr *session.CredentialError
	switch {
	case errors.Is(err, session.ErrSessionActive):
		return http.StatusConflict
	case errors.As(err, &valErr),
		errors.As(err, &credErr),
		errors.Is(err, translate.ErrUnknownDirection):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func validSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
