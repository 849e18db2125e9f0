package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partypool/partypool/pkg/log"
	"github.com/partypool/partypool/pkg/orchestrator"
	"github.com/partypool/partypool/pkg/types"
)

type stubClusterService struct {
	views       []orchestrator.ClusterView
	joinErr     error
	randomState orchestrator.PartyState
	state       orchestrator.PartyState
	err         error
}

func (s *stubClusterService) GetClusterList(ctx context.Context) ([]orchestrator.ClusterView, error) {
	return s.views, s.err
}

func (s *stubClusterService) JoinCluster(ctx context.Context, clusterID int64, userID string) error {
	return s.joinErr
}

func (s *stubClusterService) JoinRandomCluster(ctx context.Context, userID string) (orchestrator.PartyState, error) {
	return s.randomState, s.joinErr
}

func (s *stubClusterService) GetPartyStatus(ctx context.Context, userID string) (orchestrator.PartyState, error) {
	return s.state, s.err
}

type stubDeploymentService struct {
	status types.DeploymentStatus
	err    error
}

func (s *stubDeploymentService) GetDeploymentStatus(ctx context.Context, id string) (types.DeploymentStatus, error) {
	return s.status, s.err
}

func newTestServer(clusters *stubClusterService, deployments *stubDeploymentService) *Server {
	return NewServer(":0", clusters, deployments, log.Nop())
}

func doRequest(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

// TestListClusters tests the cluster listing endpoint
func TestListClusters(t *testing.T) {
	clusters := &stubClusterService{
		views: []orchestrator.ClusterView{
			{ID: 7, UserCount: 3, MaxUsers: 10, TimeRemaining: time.Hour},
		},
	}
	server := newTestServer(clusters, &stubDeploymentService{})

	rec := doRequest(t, server, http.MethodGet, "/v1/clusters", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []orchestrator.ClusterView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, 3, got[0].UserCount)
}

// TestJoinCluster tests the targeted join endpoint
func TestJoinCluster(t *testing.T) {
	server := newTestServer(&stubClusterService{}, &stubDeploymentService{})

	rec := doRequest(t, server, http.MethodPost, "/v1/clusters/7/join", `{"userId":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp joinResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.ClusterID)
}

// TestJoinClusterBadRequests tests input validation
func TestJoinClusterBadRequests(t *testing.T) {
	server := newTestServer(&stubClusterService{}, &stubDeploymentService{})

	rec := doRequest(t, server, http.MethodPost, "/v1/clusters/notanumber/join", `{"userId":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, server, http.MethodPost, "/v1/clusters/7/join", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, server, http.MethodPost, "/v1/clusters/7/join", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestJoinErrorMapping tests refusal reason to status code mapping
func TestJoinErrorMapping(t *testing.T) {
	tests := []struct {
		reason   orchestrator.JoinReason
		expected int
	}{
		{orchestrator.ReasonClusterDoesNotExist, http.StatusNotFound},
		{orchestrator.ReasonUserAlreadyJoined, http.StatusConflict},
		{orchestrator.ReasonClusterExpired, http.StatusConflict},
		{orchestrator.ReasonClusterNotReady, http.StatusConflict},
		{orchestrator.ReasonClusterFull, http.StatusConflict},
		{orchestrator.ReasonNoPortsAvailable, http.StatusConflict},
		{orchestrator.ReasonSendMailFailed, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			clusters := &stubClusterService{
				joinErr: &orchestrator.JoinError{Reason: tt.reason},
			}
			server := newTestServer(clusters, &stubDeploymentService{})

			rec := doRequest(t, server, http.MethodPost, "/v1/clusters/7/join", `{"userId":"alice"}`)
			assert.Equal(t, tt.expected, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, string(tt.reason), body.Reason)
		})
	}
}

// TestJoinUnknownErrorIs500 tests that unclassified failures are internal
func TestJoinUnknownErrorIs500(t *testing.T) {
	clusters := &stubClusterService{joinErr: errors.New("disk on fire")}
	server := newTestServer(clusters, &stubDeploymentService{})

	rec := doRequest(t, server, http.MethodPost, "/v1/clusters/7/join", `{"userId":"alice"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire",
		"internal detail must not leak to clients")
}

// TestJoinRandom tests the any-cluster join endpoint
func TestJoinRandom(t *testing.T) {
	clusters := &stubClusterService{
		randomState: orchestrator.PartyState{
			Status: orchestrator.PartyStatusJoined,
			Joined: &orchestrator.JoinedDetails{ClusterID: 12, Address: "party-12.example.dev", Port: 8505},
		},
	}
	server := newTestServer(clusters, &stubDeploymentService{})

	rec := doRequest(t, server, http.MethodPost, "/v1/joins", `{"userId":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var state orchestrator.PartyState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, orchestrator.PartyStatusJoined, state.Status)
	require.NotNil(t, state.Joined)
	assert.Equal(t, int64(12), state.Joined.ClusterID)
}

// TestJoinRandomClosedParty tests that a pool with no room is a 200 closed
// view, not a conflict
func TestJoinRandomClosedParty(t *testing.T) {
	clusters := &stubClusterService{
		randomState: orchestrator.PartyState{Status: orchestrator.PartyStatusClosed},
	}
	server := newTestServer(clusters, &stubDeploymentService{})

	rec := doRequest(t, server, http.MethodPost, "/v1/joins", `{"userId":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var state orchestrator.PartyState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, orchestrator.PartyStatusClosed, state.Status)
	assert.Nil(t, state.Joined)
}

// TestPartyStatus tests the party status endpoint
func TestPartyStatus(t *testing.T) {
	clusters := &stubClusterService{
		state: orchestrator.PartyState{
			Status: orchestrator.PartyStatusJoined,
			Joined: &orchestrator.JoinedDetails{ClusterID: 3, Address: "party-3.example.dev", Port: 8505},
		},
	}
	server := newTestServer(clusters, &stubDeploymentService{})

	rec := doRequest(t, server, http.MethodGet, "/v1/party/alice", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var state orchestrator.PartyState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, orchestrator.PartyStatusJoined, state.Status)
	require.NotNil(t, state.Joined)
	assert.Equal(t, 8505, state.Joined.Port)
}

// TestDeploymentStatus tests the deployment status endpoint
func TestDeploymentStatus(t *testing.T) {
	deployments := &stubDeploymentService{status: types.DeploymentStatusRegister}
	server := newTestServer(&stubClusterService{}, deployments)

	rec := doRequest(t, server, http.MethodGet, "/v1/deployments/job-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp deploymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.ID)
	assert.Equal(t, types.DeploymentStatusRegister, resp.Status)
}

// TestMethodNotAllowed tests route method restrictions
func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(&stubClusterService{}, &stubDeploymentService{})

	rec := doRequest(t, server, http.MethodDelete, "/v1/clusters", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
