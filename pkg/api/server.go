package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/partypool/partypool/pkg/metrics"
	"github.com/partypool/partypool/pkg/orchestrator"
	"github.com/partypool/partypool/pkg/types"
)

// ClusterService is the slice of the orchestrator the HTTP surface needs
type ClusterService interface {
	GetClusterList(ctx context.Context) ([]orchestrator.ClusterView, error)
	JoinCluster(ctx context.Context, clusterID int64, userID string) error
	JoinRandomCluster(ctx context.Context, userID string) (orchestrator.PartyState, error)
	GetPartyStatus(ctx context.Context, userID string) (orchestrator.PartyState, error)
}

// DeploymentService is the slice of the deployment pipeline the HTTP
// surface needs
type DeploymentService interface {
	GetDeploymentStatus(ctx context.Context, id string) (types.DeploymentStatus, error)
}

// Server exposes the party pool over HTTP
type Server struct {
	clusters    ClusterService
	deployments DeploymentService
	logger      zerolog.Logger
	httpServer  *http.Server
}

// NewServer creates the HTTP server listening on addr
func NewServer(addr string, clusters ClusterService, deployments DeploymentService, logger zerolog.Logger) *Server {
	s := &Server{
		clusters:    clusters,
		deployments: deployments,
		logger:      logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/v1/clusters", s.handleListClusters).Methods(http.MethodGet)
	router.HandleFunc("/v1/clusters/{id}/join", s.handleJoinCluster).Methods(http.MethodPost)
	router.HandleFunc("/v1/joins", s.handleJoinRandom).Methods(http.MethodPost)
	router.HandleFunc("/v1/party/{userId}", s.handlePartyStatus).Methods(http.MethodGet)
	router.HandleFunc("/v1/deployments/{jobId}", s.handleDeploymentStatus).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", metrics.HealthHandler()).Methods(http.MethodGet)
	router.HandleFunc("/readyz", metrics.ReadinessHandler()).Methods(http.MethodGet)
	router.Use(s.logRequests)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router returns the route handler, mainly for tests
func (s *Server) Router() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleListClusters(w http.ResponseWriter, r *http.Request) {
	views, err := s.clusters.GetClusterList(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

type joinRequest struct {
	UserID string `json:"userId"`
}

type joinResponse struct {
	ClusterID int64 `json:"clusterId"`
}

func (s *Server) handleJoinCluster(w http.ResponseWriter, r *http.Request) {
	clusterID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid cluster id"})
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "userId is required"})
		return
	}

	if err := s.clusters.JoinCluster(r.Context(), clusterID, req.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{ClusterID: clusterID})
}

func (s *Server) handleJoinRandom(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "userId is required"})
		return
	}

	state, err := s.clusters.JoinRandomCluster(r.Context(), req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// A closed party is a normal answer, not a refusal
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handlePartyStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.clusters.GetPartyStatus(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type deploymentResponse struct {
	ID     string                 `json:"jobId"`
	Status types.DeploymentStatus `json:"status"`
}

func (s *Server) handleDeploymentStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["jobId"]
	status, err := s.deployments.GetDeploymentStatus(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deploymentResponse{ID: id, Status: status})
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeError maps service errors onto HTTP statuses. Join refusals carry
// their reason so clients can react without parsing messages.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if joinErr, ok := orchestrator.AsJoinError(err); ok {
		status := http.StatusConflict
		switch joinErr.Reason {
		case orchestrator.ReasonClusterDoesNotExist:
			status = http.StatusNotFound
		case orchestrator.ReasonSendMailFailed:
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorBody{Error: joinErr.Error(), Reason: string(joinErr.Reason)})
		return
	}

	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
