package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ratehive/ratehive/internal/domain"
)

// ─── Badge Catalog API (/v1/badges) ──────────────────────────────────────────
// Catalog writes take effect on the next catalog refresh; in-flight awards
// keep evaluating against the catalog they started with.

func (s *Server) handleListBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := s.store.Badges(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if badges == nil {
		badges = []domain.Badge{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"badges": badges,
	})
}

func (s *Server) handleCreateBadge(w http.ResponseWriter, r *http.Request) {
	var b domain.Badge
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if b.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := b.Condition.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	if err := s.store.CreateBadge(r.Context(), b); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleUpdateBadge(w http.ResponseWriter, r *http.Request) {
	var b domain.Badge
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b.ID = chi.URLParam(r, "id")
	if err := b.Condition.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.store.UpdateBadge(r.Context(), b); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBadge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteBadge(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
