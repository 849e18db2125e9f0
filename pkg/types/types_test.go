package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIsActive tests which states count toward pool capacity
func TestIsActive(t *testing.T) {
	tests := []struct {
		status ClusterStatus
		active bool
	}{
		{ClusterStatusNew, true},
		{ClusterStatusCreating, true},
		{ClusterStatusReady, true},
		{ClusterStatusRemove, false},
		{ClusterStatusDeleting, false},
		{ClusterStatusDeleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			c := Cluster{Status: tt.status}
			assert.Equal(t, tt.active, c.IsActive())
		})
	}
}

// TestExpired tests the uptime clock including the not-yet-started sentinel
func TestExpired(t *testing.T) {
	now := time.Now().UTC()
	maxUptime := time.Hour

	unstarted := Cluster{Status: ClusterStatusReady, LifetimeStartedOn: LifetimeNotStarted}
	assert.False(t, unstarted.Expired(now, maxUptime), "never-joined cluster must not expire")

	fresh := Cluster{LifetimeStartedOn: now.Add(-30 * time.Minute)}
	assert.False(t, fresh.Expired(now, maxUptime))

	stale := Cluster{LifetimeStartedOn: now.Add(-2 * time.Hour)}
	assert.True(t, stale.Expired(now, maxUptime))

	exact := Cluster{LifetimeStartedOn: now.Add(-time.Hour)}
	assert.True(t, exact.Expired(now, maxUptime))
}

// TestTimeRemaining tests remaining lifetime clamping
func TestTimeRemaining(t *testing.T) {
	now := time.Now().UTC()

	c := Cluster{LifetimeStartedOn: now.Add(-40 * time.Minute)}
	assert.Equal(t, 20*time.Minute, c.TimeRemaining(now, time.Hour))

	expired := Cluster{LifetimeStartedOn: now.Add(-3 * time.Hour)}
	assert.Equal(t, time.Duration(0), expired.TimeRemaining(now, time.Hour))
}

// TestNextFreePort tests lowest-free-port assignment
func TestNextFreePort(t *testing.T) {
	c := Cluster{
		Ports: []int{8505, 8506, 8507},
		Users: []ClusterUser{
			{UserID: "alice", Port: 8505},
			{UserID: "bob", Port: 8507},
		},
	}

	port, ok := c.NextFreePort()
	require.True(t, ok)
	assert.Equal(t, 8506, port)

	full := Cluster{
		Ports: []int{8505},
		Users: []ClusterUser{{UserID: "alice", Port: 8505}},
	}
	_, ok = full.NextFreePort()
	assert.False(t, ok)

	empty := Cluster{}
	_, ok = empty.NextFreePort()
	assert.False(t, ok)
}

// TestWithUserStartsClock tests that only the first join starts the lifetime
func TestWithUserStartsClock(t *testing.T) {
	now := time.Now().UTC()
	c := Cluster{
		Status:            ClusterStatusReady,
		Ports:             []int{8505, 8506},
		LifetimeStartedOn: LifetimeNotStarted,
	}

	first := c.WithUser(ClusterUser{UserID: "alice", Port: 8505}, now)
	assert.Equal(t, now, first.LifetimeStartedOn)
	require.Len(t, first.Users, 1)

	later := now.Add(10 * time.Minute)
	second := first.WithUser(ClusterUser{UserID: "bob", Port: 8506}, later)
	assert.Equal(t, now, second.LifetimeStartedOn, "second join must not restart the clock")
	assert.Len(t, second.Users, 2)

	// Original record untouched
	assert.Empty(t, c.Users)
	assert.Equal(t, LifetimeNotStarted, c.LifetimeStartedOn)
}

// TestWithReady tests the transition into the ready state
func TestWithReady(t *testing.T) {
	now := time.Now().UTC()
	c := Cluster{Status: ClusterStatusCreating}

	ready := c.WithReady([]int{8505, 8506}, now)
	assert.Equal(t, ClusterStatusReady, ready.Status)
	assert.Equal(t, []int{8505, 8506}, ready.Ports)
	assert.Equal(t, now, ready.CreatedOn)
	assert.Equal(t, LifetimeNotStarted, ready.LifetimeStartedOn)
}

// TestMarkedForRemoval tests that removal clears ports and users
func TestMarkedForRemoval(t *testing.T) {
	c := Cluster{
		Status: ClusterStatusReady,
		Ports:  []int{8505},
		Users:  []ClusterUser{{UserID: "alice", Port: 8505}},
	}

	marked := c.MarkedForRemoval()
	assert.Equal(t, ClusterStatusRemove, marked.Status)
	assert.Empty(t, marked.Ports)
	assert.Empty(t, marked.Users)

	// Original untouched
	assert.Len(t, c.Users, 1)
}

// TestCloneDoesNotAlias tests that With* copies never share slices
func TestCloneDoesNotAlias(t *testing.T) {
	c := Cluster{
		Ports: []int{8505, 8506},
		Users: []ClusterUser{{UserID: "alice", Port: 8505}},
	}

	next := c.WithStatus(ClusterStatusRemove)
	next.Ports[0] = 9999
	next.Users[0].UserID = "mallory"

	assert.Equal(t, 8505, c.Ports[0])
	assert.Equal(t, "alice", c.Users[0].UserID)
}

// TestSentinelRoundTripsJSON tests that never-joined clusters survive the
// store codec; encoding/json rejects time values outside years [0, 9999]
func TestSentinelRoundTripsJSON(t *testing.T) {
	c := Cluster{
		ID:                42,
		Status:            ClusterStatusReady,
		LifetimeStartedOn: LifetimeNotStarted,
	}

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var got Cluster
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, got.LifetimeStartedOn.Equal(LifetimeNotStarted))
	assert.False(t, got.Expired(time.Now().UTC(), time.Hour))
}

// TestHasUser tests membership lookup
func TestHasUser(t *testing.T) {
	c := Cluster{Users: []ClusterUser{{UserID: "alice", Port: 8505}}}
	assert.True(t, c.HasUser("alice"))
	assert.False(t, c.HasUser("bob"))
}

// TestDeploymentStatusTerminal tests terminal stage detection
func TestDeploymentStatusTerminal(t *testing.T) {
	assert.True(t, DeploymentStatusComplete.Terminal())
	assert.True(t, DeploymentStatusFailed.Terminal())
	assert.False(t, DeploymentStatusCopy.Terminal())
	assert.False(t, DeploymentStatusRegister.Terminal())
	assert.False(t, DeploymentStatusCreate.Terminal())
}

// TestDeploymentWithStatus tests replace-on-write for deployments
func TestDeploymentWithStatus(t *testing.T) {
	d := ApplicationDeployment{ID: "job-1", Status: DeploymentStatusCopy}

	next := d.WithStatus(DeploymentStatusRegister).WithImageStorePath("store/app/1.0")
	assert.Equal(t, DeploymentStatusRegister, next.Status)
	assert.Equal(t, "store/app/1.0", next.ImageStorePath)
	assert.Equal(t, DeploymentStatusCopy, d.Status)
	assert.Empty(t, d.ImageStorePath)
}
