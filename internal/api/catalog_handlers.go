package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/bounty-board/internal/models"
)

// Catalog handlers: categories and bounties

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.bounties.ListCategories(r.Context())
	if err != nil {
		respondServiceError(w, r, "list categories", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"total":      len(categories),
	})
}

func (s *Server) handleListBounties(w http.ResponseWriter, r *http.Request) {
	filter := models.BountyFilter{
		Status:     models.BountyStatus(r.URL.Query().Get("status")),
		CategoryID: r.URL.Query().Get("category_id"),
		Limit:      50, // default
		Offset:     0,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	bounties, err := s.bounties.ListBounties(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, "list bounties", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"bounties": bounties,
		"total":    len(bounties),
	})
}

func (s *Server) handleGetBounty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "bounty id is required")
		return
	}

	view, err := s.bounties.GetBountyWithStatus(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, "get bounty", err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleCreateBounty(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBountyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := s.bounties.CreateBounty(r.Context(), WalletFromContext(r.Context()), req)
	if err != nil {
		respondServiceError(w, r, "create bounty", err)
		return
	}

	respondJSON(w, http.StatusCreated, b)
}

func (s *Server) handleDeleteBounty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "bounty id is required")
		return
	}

	if err := s.bounties.DeleteBounty(r.Context(), WalletFromContext(r.Context()), id); err != nil {
		respondServiceError(w, r, "delete bounty", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "bounty deleted",
	})
}
