package httpserver

import (
	"errors"
	"net/http"

	badgeerrors "tontine/contexts/member-trust/badge-evaluator/domain/errors"
	badgehttp "tontine/contexts/member-trust/badge-evaluator/transport/http"
)

func (s *Server) handleEvaluateBadges(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")
	resp, err := s.badges.Handler.EvaluateHandler(r.Context(), wallet)
	if err != nil {
		writeBadgeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListBadges(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")
	resp, err := s.badges.Handler.ListBadgesHandler(r.Context(), wallet)
	if err != nil {
		writeBadgeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeBadgeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, badgeerrors.ErrInvalidInput):
		writeBadgeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, badgeerrors.ErrProfileNotFound):
		writeBadgeError(w, http.StatusNotFound, "profile_not_found", err.Error())
	case errors.Is(err, badgeerrors.ErrConflict):
		writeBadgeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, badgeerrors.ErrInviteStatsUnavailable):
		writeBadgeError(w, http.StatusBadGateway, "invite_stats_unavailable", err.Error())
	default:
		writeBadgeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeBadgeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, badgehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
