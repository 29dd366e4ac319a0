package api

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/bounty-board/internal/export"
	"github.com/terra-clan/bounty-board/internal/models"
)

// --- Participant handlers (wallet identity) ---

func (s *Server) handleGetOwnSubmission(w http.ResponseWriter, r *http.Request) {
	bountyID := chi.URLParam(r, "id")

	sub, err := s.bounties.ListSubmissionForWallet(r.Context(), bountyID, WalletFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, "get submission", err)
		return
	}
	if sub == nil {
		respondJSON(w, http.StatusOK, struct{}{})
		return
	}

	respondJSON(w, http.StatusOK, sub)
}

func (s *Server) handleSubmitEntry(w http.ResponseWriter, r *http.Request) {
	var fields models.SubmissionFields
	if !decodeJSON(w, r, &fields) {
		return
	}

	req := models.SubmitEntryRequest{
		BountyID:         chi.URLParam(r, "id"),
		SubmissionFields: fields,
	}

	sub, created, err := s.bounties.SubmitOrUpdateEntry(r.Context(), WalletFromContext(r.Context()), req)
	if err != nil {
		respondServiceError(w, r, "save submission", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, sub)
}

// --- Admin handlers (admin wallet identity) ---

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	bountyID := chi.URLParam(r, "id")

	submissions, err := s.bounties.ListSubmissions(r.Context(), WalletFromContext(r.Context()), bountyID)
	if err != nil {
		respondServiceError(w, r, "list submissions", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"submissions": submissions,
		"total":       len(submissions),
	})
}

func (s *Server) handleAnnounceWinners(w http.ResponseWriter, r *http.Request) {
	var req models.AnnounceWinnersRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := s.bounties.AnnounceWinners(r.Context(), WalletFromContext(r.Context()), chi.URLParam(r, "id"), req.Winners)
	if err != nil {
		respondServiceError(w, r, "announce winners", err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	wallet := WalletFromContext(r.Context())

	isAdmin, err := s.bounties.IsAdmin(r.Context(), wallet)
	if err != nil {
		respondServiceError(w, r, "check admin", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"wallet":   wallet,
		"is_admin": isAdmin,
	})
}

func (s *Server) handleListAdminWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.bounties.ListAdminWallets(r.Context(), WalletFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, "list admin wallets", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"wallets": wallets,
		"total":   len(wallets),
	})
}

func (s *Server) handleExportBounty(w http.ResponseWriter, r *http.Request) {
	bountyID := chi.URLParam(r, "id")
	admin := WalletFromContext(r.Context())

	submissions, err := s.bounties.ListSubmissions(r.Context(), admin, bountyID)
	if err != nil {
		respondServiceError(w, r, "export bounty", err)
		return
	}

	view, err := s.bounties.GetBountyWithStatus(r.Context(), bountyID)
	if err != nil {
		respondServiceError(w, r, "export bounty", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, view, submissions); err != nil {
		slog.Error("failed to build export", "error", err, "bounty_id", bountyID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to export bounty")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="bounty-`+bountyID+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("failed to send export", "error", err, "bounty_id", bountyID)
	}
}
