package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	withdrawalerrors "tontine/contexts/pool-governance/emergency-withdrawal/domain/errors"
	withdrawalhttp "tontine/contexts/pool-governance/emergency-withdrawal/transport/http"
)

func (s *Server) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	poolID := r.PathValue("pool_id")

	var req withdrawalhttp.CreateWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWithdrawalError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.withdrawals.Handler.CreateWithdrawalHandler(r.Context(), poolID, req)
	if err != nil {
		writeWithdrawalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")

	var req withdrawalhttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWithdrawalError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.withdrawals.Handler.CastVoteHandler(r.Context(), requestID, req)
	if err != nil {
		writeWithdrawalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResolveWithdrawal(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")
	resp, err := s.withdrawals.Handler.ResolveWithdrawalHandler(r.Context(), requestID)
	if err != nil {
		writeWithdrawalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetWithdrawal(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")
	resp, err := s.withdrawals.Handler.GetWithdrawalHandler(r.Context(), requestID)
	if err != nil {
		writeWithdrawalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	poolID := r.PathValue("pool_id")
	resp, err := s.withdrawals.Handler.ListWithdrawalsHandler(r.Context(), poolID)
	if err != nil {
		writeWithdrawalDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeWithdrawalDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, withdrawalerrors.ErrInvalidAmount):
		writeWithdrawalError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, withdrawalerrors.ErrInvalidReason):
		writeWithdrawalError(w, http.StatusBadRequest, "invalid_reason", err.Error())
	case errors.Is(err, withdrawalerrors.ErrInvalidInput):
		writeWithdrawalError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, withdrawalerrors.ErrRequestNotFound):
		writeWithdrawalError(w, http.StatusNotFound, "request_not_found", err.Error())
	case errors.Is(err, withdrawalerrors.ErrPoolNotFound):
		writeWithdrawalError(w, http.StatusNotFound, "pool_not_found", err.Error())
	case errors.Is(err, withdrawalerrors.ErrNotPoolMember):
		writeWithdrawalError(w, http.StatusConflict, "not_pool_member", err.Error())
	case errors.Is(err, withdrawalerrors.ErrVotingClosed):
		writeWithdrawalError(w, http.StatusConflict, "voting_closed", err.Error())
	case errors.Is(err, withdrawalerrors.ErrSelfVoteForbidden):
		writeWithdrawalError(w, http.StatusConflict, "self_vote_forbidden", err.Error())
	case errors.Is(err, withdrawalerrors.ErrDuplicateVote):
		writeWithdrawalError(w, http.StatusConflict, "duplicate_vote", err.Error())
	case errors.Is(err, withdrawalerrors.ErrVoteNotFound):
		writeWithdrawalError(w, http.StatusNotFound, "vote_not_found", err.Error())
	case errors.Is(err, withdrawalerrors.ErrConflict):
		writeWithdrawalError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, withdrawalerrors.ErrMembershipUnavailable):
		writeWithdrawalError(w, http.StatusBadGateway, "membership_unavailable", err.Error())
	default:
		writeWithdrawalError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeWithdrawalError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, withdrawalhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
