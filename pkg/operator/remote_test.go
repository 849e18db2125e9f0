package operator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partypool/partypool/pkg/log"
)

// TestRemoteCreateCluster tests the create call and its error mapping
func TestRemoteCreateCluster(t *testing.T) {
	var gotName string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/clusters", r.URL.Path)

		var body struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotName = body.Name

		if body.Name == "party-dupe" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"address": body.Name + ".example.dev"})
	}))
	defer server.Close()

	op := NewRemoteClusterOperator(server.URL, log.Nop())

	address, err := op.CreateCluster(context.Background(), "party-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "party-1.example.dev", address)
	assert.Equal(t, "party-1", gotName)

	_, err = op.CreateCluster(context.Background(), "party-dupe", nil)
	assert.ErrorIs(t, err, ErrClusterNameTaken)
}

// TestRemoteClusterStatus tests status decoding and not-found handling
func TestRemoteClusterStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/clusters/party-1/status":
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
		case "/clusters/party-gone/status":
			w.WriteHeader(http.StatusNotFound)
		case "/clusters/party-weird/status":
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "defragmenting"})
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	op := NewRemoteClusterOperator(server.URL, log.Nop())
	ctx := context.Background()

	status, err := op.GetClusterStatus(ctx, "party-1")
	require.NoError(t, err)
	assert.Equal(t, ClusterStatusReady, status)

	status, err = op.GetClusterStatus(ctx, "party-gone")
	require.NoError(t, err)
	assert.Equal(t, ClusterStatusNotFound, status)

	status, err = op.GetClusterStatus(ctx, "party-weird")
	require.NoError(t, err)
	assert.Equal(t, ClusterStatusUnknown, status)

	_, err = op.GetClusterStatus(ctx, "party-boom")
	assert.True(t, IsTransient(err), "5xx must be retryable")
}

// TestRemoteClusterPorts tests the port set fetch
func TestRemoteClusterPorts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/clusters/party-1/ports", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string][]int{"ports": {8505, 8506}})
	}))
	defer server.Close()

	op := NewRemoteClusterOperator(server.URL, log.Nop())
	ports, err := op.GetClusterPorts(context.Background(), "party-1")
	require.NoError(t, err)
	assert.Equal(t, []int{8505, 8506}, ports)
}

// TestRemoteTransportFailureIsTransient tests the unreachable-server path
func TestRemoteTransportFailureIsTransient(t *testing.T) {
	op := NewRemoteClusterOperator("http://127.0.0.1:1", log.Nop())

	_, err := op.CreateCluster(context.Background(), "party-1", nil)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

// TestRemoteApplicationCopy tests copy response decoding and the image store
// backpressure mapping
func TestRemoteApplicationCopy(t *testing.T) {
	notReady := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/applications/copy", r.URL.Path)
		if notReady {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"imageStorePath": "store/Chatter/1.0"})
	}))
	defer server.Close()

	op := NewRemoteApplicationOperator(server.URL, log.Nop())
	ctx := context.Background()

	_, err := op.CopyPackageToImageStore(ctx, "party-1:19000", "/tmp/pkg", "Chatter", "1.0")
	assert.ErrorIs(t, err, ErrImageStoreNotReady)
	assert.True(t, IsTransient(err))

	notReady = false
	path, err := op.CopyPackageToImageStore(ctx, "party-1:19000", "/tmp/pkg", "Chatter", "1.0")
	require.NoError(t, err)
	assert.Equal(t, "store/Chatter/1.0", path)
}

// TestRemoteApplicationDuplicates tests the already-registered and
// already-exists conflict mappings
func TestRemoteApplicationDuplicates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	op := NewRemoteApplicationOperator(server.URL, log.Nop())
	ctx := context.Background()

	err := op.RegisterApplication(ctx, "party-1:19000", "store/Chatter/1.0")
	assert.ErrorIs(t, err, ErrApplicationAlreadyRegistered)

	err = op.CreateApplication(ctx, "party-1:19000", "chatter-19000", "Chatter", "1.0")
	assert.ErrorIs(t, err, ErrApplicationAlreadyExists)
}

// TestRemoteApplicationCounts tests the count endpoints
func TestRemoteApplicationCounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "party-1:19000", r.URL.Query().Get("cluster"))
		switch r.URL.Path {
		case "/counts/applications":
			_ = json.NewEncoder(w).Encode(map[string]int{"count": 2})
		case "/counts/services":
			_ = json.NewEncoder(w).Encode(map[string]int{"count": 5})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	op := NewRemoteApplicationOperator(server.URL, log.Nop())
	ctx := context.Background()

	apps, err := op.GetApplicationCount(ctx, "party-1:19000")
	require.NoError(t, err)
	assert.Equal(t, 2, apps)

	services, err := op.GetServiceCount(ctx, "party-1:19000")
	require.NoError(t, err)
	assert.Equal(t, 5, services)
}
