package types

import (
	"time"
)

// ClusterStatus represents the lifecycle state of a party cluster
type ClusterStatus string

const (
	ClusterStatusNew      ClusterStatus = "new"
	ClusterStatusCreating ClusterStatus = "creating"
	ClusterStatusReady    ClusterStatus = "ready"
	ClusterStatusRemove   ClusterStatus = "remove"
	ClusterStatusDeleting ClusterStatus = "deleting"
	ClusterStatusDeleted  ClusterStatus = "deleted"
)

// LifetimeNotStarted is the sentinel for a cluster whose uptime clock has not
// started yet. The clock starts at the first successful join, not at creation.
// The year stays inside the range encoding/json accepts for time.Time.
var LifetimeNotStarted = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// Cluster represents one ephemeral shared compute cluster rented out to users
// for a bounded lifetime.
//
// Cluster records are value types: every state transition builds a fresh copy
// via the With* methods and writes it back atomically. Records are never
// mutated through a shared reference, so an aborted store transaction can
// never leave a partially-applied update behind.
type Cluster struct {
	ID                int64
	InternalName      string
	Status            ClusterStatus
	AppCount          int
	ServiceCount      int
	Address           string
	Ports             []int
	Users             []ClusterUser
	CreatedOn         time.Time
	LifetimeStartedOn time.Time
}

// ClusterUser is one user occupying one port on a cluster
type ClusterUser struct {
	UserID string
	Port   int
}

// IsActive reports whether the cluster counts toward pool capacity
func (c Cluster) IsActive() bool {
	switch c.Status {
	case ClusterStatusNew, ClusterStatusCreating, ClusterStatusReady:
		return true
	}
	return false
}

// Expired reports whether the cluster has exceeded its maximum uptime.
// A cluster that has never been joined carries the LifetimeNotStarted
// sentinel and never expires on its own.
func (c Cluster) Expired(now time.Time, maxUptime time.Duration) bool {
	return now.Sub(c.LifetimeStartedOn) >= maxUptime
}

// TimeRemaining returns how long the cluster has left before expiry
func (c Cluster) TimeRemaining(now time.Time, maxUptime time.Duration) time.Duration {
	remaining := maxUptime - now.Sub(c.LifetimeStartedOn)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasUser reports whether the given user occupies this cluster
func (c Cluster) HasUser(userID string) bool {
	for _, u := range c.Users {
		if u.UserID == userID {
			return true
		}
	}
	return false
}

// NextFreePort returns the lowest assigned port not held by any user
func (c Cluster) NextFreePort() (int, bool) {
	for _, port := range c.Ports {
		taken := false
		for _, u := range c.Users {
			if u.Port == port {
				taken = true
				break
			}
		}
		if !taken {
			return port, true
		}
	}
	return 0, false
}

// WithStatus returns a copy of the cluster in the given state
func (c Cluster) WithStatus(status ClusterStatus) Cluster {
	next := c.clone()
	next.Status = status
	return next
}

// WithAddress returns a copy carrying the provisioned address
func (c Cluster) WithAddress(address string) Cluster {
	next := c.clone()
	next.Address = address
	return next
}

// WithCounts returns a copy carrying refreshed application/service counts
func (c Cluster) WithCounts(appCount, serviceCount int) Cluster {
	next := c.clone()
	next.AppCount = appCount
	next.ServiceCount = serviceCount
	return next
}

// WithReady returns a copy transitioned to Ready with the fixed port set
// assigned. CreatedOn records readiness; the lifetime clock stays unstarted
// until the first user joins.
func (c Cluster) WithReady(ports []int, now time.Time) Cluster {
	next := c.clone()
	next.Status = ClusterStatusReady
	next.Ports = append([]int(nil), ports...)
	next.CreatedOn = now
	next.LifetimeStartedOn = LifetimeNotStarted
	return next
}

// WithUser returns a copy with the user appended. The first user starts the
// uptime clock.
func (c Cluster) WithUser(user ClusterUser, now time.Time) Cluster {
	next := c.clone()
	next.Users = append(next.Users, user)
	if len(c.Users) == 0 {
		next.LifetimeStartedOn = now
	}
	return next
}

// MarkedForRemoval returns a copy in the Remove state with ports and users
// cleared. Ports are never reused across a removal without the cluster being
// recreated.
func (c Cluster) MarkedForRemoval() Cluster {
	next := c.clone()
	next.Status = ClusterStatusRemove
	next.Ports = nil
	next.Users = nil
	return next
}

// clone deep-copies the record so With* methods never alias slices
func (c Cluster) clone() Cluster {
	next := c
	next.Ports = append([]int(nil), c.Ports...)
	next.Users = append([]ClusterUser(nil), c.Users...)
	return next
}

// DeploymentStatus represents the stage of an in-flight application deployment
type DeploymentStatus string

const (
	DeploymentStatusCopy     DeploymentStatus = "copy"
	DeploymentStatusRegister DeploymentStatus = "register"
	DeploymentStatusCreate   DeploymentStatus = "create"
	DeploymentStatusComplete DeploymentStatus = "complete"
	DeploymentStatusFailed   DeploymentStatus = "failed"
)

// Terminal reports whether the stage ends the deployment
func (s DeploymentStatus) Terminal() bool {
	return s == DeploymentStatusComplete || s == DeploymentStatusFailed
}

// ApplicationDeployment is one attempt to install one application package
// onto one cluster. Like Cluster it is a replace-on-write value type.
type ApplicationDeployment struct {
	ID                      string
	Cluster                 string // management endpoint, host:port
	Status                  DeploymentStatus
	ImageStorePath          string
	ApplicationTypeName     string
	ApplicationTypeVersion  string
	ApplicationInstanceName string
	PackageFilePath         string
	Timestamp               time.Time
}

// WithStatus returns a copy of the deployment in the given stage
func (d ApplicationDeployment) WithStatus(status DeploymentStatus) ApplicationDeployment {
	next := d
	next.Status = status
	return next
}

// WithImageStorePath returns a copy carrying the uploaded image store path
func (d ApplicationDeployment) WithImageStorePath(path string) ApplicationDeployment {
	next := d
	next.ImageStorePath = path
	return next
}

// ApplicationPackage describes one sample application deployed onto every
// newly-ready cluster
type ApplicationPackage struct {
	Name    string
	Version string
	Path    string // local .tar.gz archive
}

// ClusterConfig holds the pool sizing and capacity thresholds. It is
// hot-reloadable; the orchestrator reads it fresh every tick.
type ClusterConfig struct {
	MinimumClusterCount    int
	MaximumClusterCount    int
	MaximumUsersPerCluster int
	MaximumClusterUptime   time.Duration

	// Capacity thresholds as fractions of total user capacity. The pool
	// grows at or above the high threshold and shrinks at or below the low
	// one; the band between them is a hysteresis zone where the target
	// stays put.
	UserCapacityHighThreshold float64
	UserCapacityLowThreshold  float64

	RefreshInterval time.Duration
}
