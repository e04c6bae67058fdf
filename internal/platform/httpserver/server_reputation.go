package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	reputationerrors "tontine/contexts/member-trust/reputation-ledger/domain/errors"
	reputationhttp "tontine/contexts/member-trust/reputation-ledger/transport/http"

	"github.com/google/uuid"
)

func (s *Server) handleApplyReputation(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")

	var req reputationhttp.ApplyReputationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReputationError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	// Callers without a key get a fresh one, trading dedup for liveness.
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	resp, err := s.reputation.Handler.ApplyHandler(r.Context(), wallet, idempotencyKey, req)
	if err != nil {
		writeReputationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetReputation(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")
	resp, err := s.reputation.Handler.GetProfileHandler(r.Context(), wallet)
	if err != nil {
		writeReputationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListReputationEvents(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")
	resp, err := s.reputation.Handler.ListEventsHandler(r.Context(), wallet)
	if err != nil {
		writeReputationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReplayReputation(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")
	resp, err := s.reputation.Handler.ReplayHandler(r.Context(), wallet)
	if err != nil {
		writeReputationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeReputationDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reputationerrors.ErrUnknownAction):
		writeReputationError(w, http.StatusBadRequest, "unknown_action", err.Error())
	case errors.Is(err, reputationerrors.ErrInvalidInput):
		writeReputationError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, reputationerrors.ErrIdempotencyKeyMissing):
		writeReputationError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	case errors.Is(err, reputationerrors.ErrProfileNotFound):
		writeReputationError(w, http.StatusNotFound, "profile_not_found", err.Error())
	case errors.Is(err, reputationerrors.ErrConcurrentUpdate),
		errors.Is(err, reputationerrors.ErrVersionConflict),
		errors.Is(err, reputationerrors.ErrIdempotencyConflict),
		errors.Is(err, reputationerrors.ErrConflict):
		writeReputationError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeReputationError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeReputationError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, reputationhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
