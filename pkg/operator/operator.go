package operator

import (
	"context"
)

// ClusterStatus is the provisioning status reported by the infrastructure
type ClusterStatus string

const (
	ClusterStatusCreating     ClusterStatus = "creating"
	ClusterStatusReady        ClusterStatus = "ready"
	ClusterStatusCreateFailed ClusterStatus = "create_failed"
	ClusterStatusDeleting     ClusterStatus = "deleting"
	ClusterStatusDeleteFailed ClusterStatus = "delete_failed"
	ClusterStatusNotFound     ClusterStatus = "not_found"
	ClusterStatusUnknown      ClusterStatus = "unknown"
)

// ClusterOperator provisions and deprovisions named infrastructure units.
// Implementations: SimClusterOperator for tests and --simulate mode,
// RemoteClusterOperator against a provisioning API.
type ClusterOperator interface {
	// CreateCluster provisions a cluster under the given name and returns
	// its address. Ports may be nil to let the operator assign its default
	// port range. A name collision is terminal (ErrClusterNameTaken).
	CreateCluster(ctx context.Context, name string, ports []int) (string, error)

	// DeleteCluster tears down the named cluster
	DeleteCluster(ctx context.Context, name string) error

	// GetClusterStatus reports the provisioning status of the named cluster
	GetClusterStatus(ctx context.Context, name string) (ClusterStatus, error)

	// GetClusterPorts returns the port set assigned to a ready cluster
	GetClusterPorts(ctx context.Context, name string) ([]int, error)
}

// ApplicationOperator manages application packages on a provisioned cluster.
// The cluster argument is the management endpoint (host:port).
type ApplicationOperator interface {
	// CopyPackageToImageStore uploads an extracted package directory to the
	// cluster's artifact store and returns the image store path
	CopyPackageToImageStore(ctx context.Context, cluster, localPath, typeName, typeVersion string) (string, error)

	// RegisterApplication registers the application type at the image store
	// path. Registering an already-registered type returns
	// ErrApplicationAlreadyRegistered.
	RegisterApplication(ctx context.Context, cluster, imageStorePath string) error

	// CreateApplication instantiates the application. Creating an existing
	// instance returns ErrApplicationAlreadyExists.
	CreateApplication(ctx context.Context, cluster, instanceName, typeName, typeVersion string) error

	// ApplicationExists reports whether the named instance exists
	ApplicationExists(ctx context.Context, cluster, instanceName string) (bool, error)

	GetApplicationCount(ctx context.Context, cluster string) (int, error)
	GetServiceCount(ctx context.Context, cluster string) (int, error)

	// GetServiceEndpoint resolves a service endpoint URL on the cluster
	GetServiceEndpoint(ctx context.Context, cluster, serviceURI, endpointName string) (string, error)
}
