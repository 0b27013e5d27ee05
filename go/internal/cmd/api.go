package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pointdeck/pointdeck/go/internal/estimation"
	"github.com/pointdeck/pointdeck/go/internal/models"
	"github.com/pointdeck/pointdeck/go/internal/session"
)

// registerAPI wires the JSON endpoints. The realtime surface stays on the
// WebSocket routes; these endpoints cover setup and the authoritative
// re-fetch reads that broadcasts trigger.
func registerAPI(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("POST /api/sessions", handleCreateSession(services))
	mux.HandleFunc("GET /api/sessions/{id}", handleGetSession(services))
	mux.HandleFunc("POST /api/sessions/{id}/items", handleAttachItem(services))
	mux.HandleFunc("GET /api/sessions/{id}/items", handlePendingItems(services))
	mux.HandleFunc("GET /api/sessions/{id}/items/{item_id}/votes", handleItemVotes(services))
	mux.HandleFunc("POST /api/sessions/{id}/chat", handleSendChat(services))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func sessionIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func handleCreateSession(services *Services) http.HandlerFunc {
	type request struct {
		Name           string `json:"name"`
		EstimationType string `json:"estimation_type"`
		TimeLimitSec   int    `json:"time_limit_sec"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		scheme := models.EstimationScheme(req.EstimationType)
		if scheme == "" {
			scheme = models.SchemeFibonacci
		}
		if scheme != models.SchemeFibonacci && scheme != models.SchemeTShirt {
			writeError(w, http.StatusBadRequest, "unknown estimation type")
			return
		}
		if req.TimeLimitSec < 0 {
			writeError(w, http.StatusBadRequest, "time limit must not be negative")
			return
		}

		s, err := services.Sessions.CreateSession(r.Context(), req.Name, scheme, req.TimeLimitSec)
		if err != nil {
			log.Error().Err(err).Msg("failed to create session")
			writeError(w, http.StatusInternalServerError, "failed to create session")
			return
		}
		writeJSON(w, http.StatusCreated, s)
	}
}

func handleGetSession(services *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionIDFromPath(w, r)
		if !ok {
			return
		}

		s, err := services.Sessions.GetSession(r.Context(), id)
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("session_id", id.String()).Msg("failed to get session")
			writeError(w, http.StatusInternalServerError, "failed to get session")
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleAttachItem(services *Services) http.HandlerFunc {
	type request struct {
		Title          string `json:"title"`
		Position       int    `json:"position"`
		EstimationType string `json:"estimation_type"`
		TimeLimitSec   int    `json:"time_limit_sec"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionIDFromPath(w, r)
		if !ok {
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Title == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}

		item := models.BacklogItem{
			Title:          req.Title,
			EstimationType: models.EstimationScheme(req.EstimationType),
			TimeLimitSec:   req.TimeLimitSec,
		}
		attached, err := services.Sessions.AttachItem(r.Context(), id, item, req.Position)
		if err != nil {
			log.Error().Err(err).Str("session_id", id.String()).Msg("failed to attach item")
			writeError(w, http.StatusInternalServerError, "failed to attach item")
			return
		}
		writeJSON(w, http.StatusCreated, attached)
	}
}

func handlePendingItems(services *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionIDFromPath(w, r)
		if !ok {
			return
		}

		items, err := services.Sessions.PendingItems(r.Context(), id)
		if err != nil {
			log.Error().Err(err).Str("session_id", id.String()).Msg("failed to list pending items")
			writeError(w, http.StatusInternalServerError, "failed to list items")
			return
		}
		if items == nil {
			items = []models.BacklogItem{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func handleItemVotes(services *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionIDFromPath(w, r)
		if !ok {
			return
		}
		itemID, err := uuid.Parse(r.PathValue("item_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid item id")
			return
		}

		votes, err := services.Estimations.GetEstimationsForItem(r.Context(), id, itemID)
		if err != nil {
			log.Error().Err(err).Str("item_id", itemID.String()).Msg("failed to list votes")
			writeError(w, http.StatusInternalServerError, "failed to list votes")
			return
		}
		if votes == nil {
			votes = []models.Vote{}
		}

		values := make([]string, 0, len(votes))
		for _, v := range votes {
			values = append(values, v.Points)
		}
		scheme := models.SchemeFibonacci
		if s, err := services.Sessions.GetSession(r.Context(), id); err == nil {
			scheme = s.EstimationType
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"votes":     votes,
			"consensus": estimation.Calculate(scheme, values),
		})
	}
}

func handleSendChat(services *Services) http.HandlerFunc {
	type request struct {
		UserID   string `json:"user_id"`
		UserName string `json:"user_name"`
		Body     string `json:"body"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionIDFromPath(w, r)
		if !ok {
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}

		msg, err := services.Chat.Send(r.Context(), id, userID, req.UserName, req.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, msg)
	}
}
