package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	badgeevaluator "tontine/contexts/member-trust/badge-evaluator"
	reputationledger "tontine/contexts/member-trust/reputation-ledger"
	emergencywithdrawal "tontine/contexts/pool-governance/emergency-withdrawal"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "tontine/internal/platform/httpserver/docs"
)

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	addr        string
	withdrawals emergencywithdrawal.Module
	reputation  reputationledger.Module
	badges      badgeevaluator.Module
}

func New(
	withdrawals emergencywithdrawal.Module,
	reputation reputationledger.Module,
	badges badgeevaluator.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:         http.NewServeMux(),
		logger:      logger,
		addr:        addr,
		withdrawals: withdrawals,
		reputation:  reputation,
		badges:      badges,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/pools/{pool_id}/withdrawals", s.handleCreateWithdrawal)
	s.mux.HandleFunc("GET /api/pools/{pool_id}/withdrawals", s.handleListWithdrawals)
	s.mux.HandleFunc("POST /api/withdrawals/{request_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("POST /api/withdrawals/{request_id}/resolve", s.handleResolveWithdrawal)
	s.mux.HandleFunc("GET /api/withdrawals/{request_id}", s.handleGetWithdrawal)

	s.mux.HandleFunc("POST /api/members/{wallet}/reputation", s.handleApplyReputation)
	s.mux.HandleFunc("GET /api/members/{wallet}/reputation", s.handleGetReputation)
	s.mux.HandleFunc("GET /api/members/{wallet}/reputation/events", s.handleListReputationEvents)
	s.mux.HandleFunc("GET /api/members/{wallet}/reputation/replay", s.handleReplayReputation)

	s.mux.HandleFunc("POST /api/members/{wallet}/badges/evaluate", s.handleEvaluateBadges)
	s.mux.HandleFunc("GET /api/members/{wallet}/badges", s.handleListBadges)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
