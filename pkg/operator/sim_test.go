package operator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSimClusterLifecycle tests create, readiness polling, and deletion
func TestSimClusterLifecycle(t *testing.T) {
	ctx := context.Background()
	sim := NewSimClusterOperator(5)
	sim.CreateTicks = 2

	address, err := sim.CreateCluster(ctx, "party-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "party-1.sim.partypool.dev", address)

	for i := 0; i < 2; i++ {
		status, err := sim.GetClusterStatus(ctx, "party-1")
		require.NoError(t, err)
		assert.Equal(t, ClusterStatusCreating, status)
	}

	status, err := sim.GetClusterStatus(ctx, "party-1")
	require.NoError(t, err)
	assert.Equal(t, ClusterStatusReady, status)

	ports, err := sim.GetClusterPorts(ctx, "party-1")
	require.NoError(t, err)
	require.Len(t, ports, 5)
	assert.Equal(t, SimBasePort, ports[0])

	require.NoError(t, sim.DeleteCluster(ctx, "party-1"))
	status, err = sim.GetClusterStatus(ctx, "party-1")
	require.NoError(t, err)
	assert.Equal(t, ClusterStatusNotFound, status)
	assert.False(t, sim.Exists("party-1"))
}

// TestSimClusterNameCollision tests duplicate create rejection
func TestSimClusterNameCollision(t *testing.T) {
	ctx := context.Background()
	sim := NewSimClusterOperator(5)

	_, err := sim.CreateCluster(ctx, "party-1", nil)
	require.NoError(t, err)

	_, err = sim.CreateCluster(ctx, "party-1", nil)
	assert.ErrorIs(t, err, ErrClusterNameTaken)
}

// TestSimClusterStatusUnknownName tests the not-found report
func TestSimClusterStatusUnknownName(t *testing.T) {
	sim := NewSimClusterOperator(5)

	status, err := sim.GetClusterStatus(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, ClusterStatusNotFound, status)
}

// TestSimClusterFailedCreate tests the create-failure mode
func TestSimClusterFailedCreate(t *testing.T) {
	ctx := context.Background()
	sim := NewSimClusterOperator(5)
	sim.FailCreates = true

	_, err := sim.CreateCluster(ctx, "party-1", nil)
	require.NoError(t, err)

	status, err := sim.GetClusterStatus(ctx, "party-1")
	require.NoError(t, err)
	assert.Equal(t, ClusterStatusCreateFailed, status)
}

// TestSimApplicationFlow tests copy, register, create, and the duplicate
// responses
func TestSimApplicationFlow(t *testing.T) {
	ctx := context.Background()
	sim := NewSimApplicationOperator()
	endpoint := "party-1.sim.partypool.dev:19000"

	path, err := sim.CopyPackageToImageStore(ctx, endpoint, "/tmp/pkg", "Chatter", "1.0")
	require.NoError(t, err)
	assert.Equal(t, "store/Chatter/1.0", path)

	require.NoError(t, sim.RegisterApplication(ctx, endpoint, path))
	err = sim.RegisterApplication(ctx, endpoint, path)
	assert.ErrorIs(t, err, ErrApplicationAlreadyRegistered)

	require.NoError(t, sim.CreateApplication(ctx, endpoint, "chatter-19000", "Chatter", "1.0"))
	err = sim.CreateApplication(ctx, endpoint, "chatter-19000", "Chatter", "1.0")
	assert.ErrorIs(t, err, ErrApplicationAlreadyExists)

	exists, err := sim.ApplicationExists(ctx, endpoint, "chatter-19000")
	require.NoError(t, err)
	assert.True(t, exists)

	apps, err := sim.GetApplicationCount(ctx, endpoint)
	require.NoError(t, err)
	assert.Equal(t, 1, apps)
}

// TestSimCopyNotReady tests the transient image store failure mode
func TestSimCopyNotReady(t *testing.T) {
	ctx := context.Background()
	sim := NewSimApplicationOperator()
	sim.StoreNotReadyPolls = 1
	endpoint := "party-1.sim.partypool.dev:19000"

	_, err := sim.CopyPackageToImageStore(ctx, endpoint, "/tmp/pkg", "Chatter", "1.0")
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	_, err = sim.CopyPackageToImageStore(ctx, endpoint, "/tmp/pkg", "Chatter", "1.0")
	assert.NoError(t, err)
}

// TestIsTransient tests error classification
func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrTransient))
	assert.True(t, IsTransient(ErrImageStoreNotReady))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(ErrClusterNameTaken))
	assert.False(t, IsTransient(assert.AnError))
}
