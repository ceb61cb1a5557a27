package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/agarciaarin-ops/SCUMM-AI/internal/engine"
	"github.com/agarciaarin-ops/SCUMM-AI/internal/services"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/chat"
	"github.com/agarciaarin-ops/SCUMM-AI/pkg/state"
	"github.com/google/uuid"
)

// SessionHandler exposes the session entry points over HTTP:
//
//	POST   /v1/session             start a session
//	GET    /v1/session/{id}        fetch current state
//	DELETE /v1/session/{id}        discard a session
//	POST   /v1/session/{id}/action submit a player action
type SessionHandler struct {
	engine *engine.Engine
	store  services.SessionStore
	logger *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewSessionHandler(e *engine.Engine, store services.SessionStore, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		engine: e,
		store:  store,
		logger: logger,
	}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	rest := strings.TrimPrefix(r.URL.Path, "/v1/session")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "":
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported at /v1/session.")
			return
		}
		h.handleStart(w, r)

	case strings.HasSuffix(rest, "/action"):
		if r.Method != http.MethodPost {
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported for actions.")
			return
		}
		id, ok := h.parseID(w, strings.TrimSuffix(rest, "/action"))
		if !ok {
			return
		}
		h.handleAction(w, r, id)

	default:
		id, ok := h.parseID(w, rest)
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		}
	}
}

func (h *SessionHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var settings state.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.logger.Warn("Invalid session settings", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body. Expected JSON session settings.")
		return
	}

	h.logger.Info("Starting session", "world", settings.World, "start_location", settings.StartLocation)

	// StartSession never fails; at worst the state is synthesized.
	gs := h.engine.StartSession(r.Context(), settings)

	if err := h.store.SaveGameState(r.Context(), gs.ID, gs); err != nil {
		h.logger.Error("Failed to save new session", "session_id", gs.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to save session.")
		return
	}

	h.writeState(w, http.StatusCreated, gs)
}

func (h *SessionHandler) handleAction(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var body chat.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body. Expected JSON with 'action' field.")
		return
	}
	if err := body.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, "Action cannot be empty.")
		return
	}

	gs, err := h.store.LoadGameState(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load session", "session_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load session.")
		return
	}
	if gs == nil {
		h.writeError(w, http.StatusNotFound, "Session not found.")
		return
	}

	// loadingStatus presence is the busy gate: reject, don't queue.
	if gs.IsBusy() {
		h.writeError(w, http.StatusConflict, "An operation is already in flight for this session.")
		return
	}

	// Persist the in-flight marker so concurrent callers observe the gate
	// while the turn runs.
	marker, copyErr := gs.DeepCopy()
	if copyErr == nil {
		marker.LoadingStatus = "Processing action..."
		if err := h.store.SaveGameState(r.Context(), id, marker); err != nil {
			h.logger.Warn("Failed to persist in-flight marker", "session_id", id, "error", err)
		}
	}

	gs = h.engine.ApplyAction(r.Context(), gs, body.Action)

	if err := h.store.SaveGameState(r.Context(), id, gs); err != nil {
		h.logger.Error("Failed to save session after turn", "session_id", id, "error", err)
		// Roll the store back to the pre-turn state so the in-flight
		// marker does not outlive this request; otherwise the session
		// would answer 409 until its TTL.
		if copyErr == nil {
			marker.LoadingStatus = ""
			if rbErr := h.store.SaveGameState(r.Context(), id, marker); rbErr != nil {
				h.logger.Error("Failed to clear persisted in-flight marker", "session_id", id, "error", rbErr)
			}
		}
		h.writeError(w, http.StatusInternalServerError, "Failed to save session.")
		return
	}

	h.writeState(w, http.StatusOK, gs)
}

func (h *SessionHandler) handleGet(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	gs, err := h.store.LoadGameState(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load session", "session_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load session.")
		return
	}
	if gs == nil {
		h.writeError(w, http.StatusNotFound, "Session not found.")
		return
	}
	h.writeState(w, http.StatusOK, gs)
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.store.DeleteGameState(r.Context(), id); err != nil {
		h.logger.Error("Failed to delete session", "session_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to delete session.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) parseID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid session ID.")
		return uuid.Nil, false
	}
	return id, true
}

func (h *SessionHandler) writeState(w http.ResponseWriter, status int, gs *state.GameState) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(gs); err != nil {
		h.logger.Error("Error encoding session response", "error", err)
	}
}

func (h *SessionHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: msg}); err != nil {
		h.logger.Error("Error encoding error response", "error", err)
	}
}
