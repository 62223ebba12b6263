package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ratehive/ratehive/internal/domain"
)

// ─── Award API (/v1/awards, /v1/users/*) ─────────────────────────────────────

type awardRequest struct {
	UserID      string `json:"user_id"`
	Action      string `json:"action_type"`
	ReferenceID string `json:"reference_id,omitempty"`
}

func (s *Server) handleAward(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	res, err := s.coord.Award(r.Context(), req.UserID, domain.ActionType(req.Action), req.ReferenceID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Duplicate submissions are not errors: the caller learns the award
	// was already counted and gets the current totals back.
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	stats, err := s.coord.Stats(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUserBadges(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	unlocked, err := s.coord.UnlockedBadges(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if unlocked == nil {
		unlocked = []domain.UserBadge{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"badges":  unlocked,
	})
}
