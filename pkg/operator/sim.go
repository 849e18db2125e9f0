package operator

import (
	"context"
	"fmt"
	"sync"
)

// SimBasePort is the first user port assigned by the simulated operator
const SimBasePort = 8505

// SimClusterOperator is a deterministic in-memory ClusterOperator. A cluster
// becomes ready after CreateTicks status polls; tests drive the lifecycle by
// polling. The zero value of CreateTicks makes clusters ready on the first
// poll after creation.
type SimClusterOperator struct {
	mu       sync.Mutex
	clusters map[string]*simCluster

	// CreateTicks is how many status polls a cluster spends in the creating
	// state before reporting ready
	CreateTicks int

	// DeleteTicks is how many status polls a cluster spends deleting before
	// it disappears
	DeleteTicks int

	// PortCount is how many user ports each cluster is assigned
	PortCount int

	// FailCreates makes every cluster report create_failed once provisioning
	// finishes, for teardown-path tests
	FailCreates bool
}

type simCluster struct {
	name     string
	address  string
	ports    []int
	polls    int
	deleting bool
	delPolls int
}

// NewSimClusterOperator creates a simulated cluster operator
func NewSimClusterOperator(portCount int) *SimClusterOperator {
	return &SimClusterOperator{
		clusters:  make(map[string]*simCluster),
		PortCount: portCount,
	}
}

func (o *SimClusterOperator) CreateCluster(ctx context.Context, name string, ports []int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.clusters[name]; exists {
		return "", fmt.Errorf("create %s: %w", name, ErrClusterNameTaken)
	}

	if len(ports) == 0 {
		count := o.PortCount
		if count == 0 {
			count = 5
		}
		ports = make([]int, count)
		for i := range ports {
			ports[i] = SimBasePort + i
		}
	}

	c := &simCluster{
		name:    name,
		address: name + ".sim.partypool.dev",
		ports:   ports,
	}
	o.clusters[name] = c
	return c.address, nil
}

func (o *SimClusterOperator) DeleteCluster(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	c, exists := o.clusters[name]
	if !exists {
		return nil
	}
	c.deleting = true
	c.delPolls = 0
	return nil
}

func (o *SimClusterOperator) GetClusterStatus(ctx context.Context, name string) (ClusterStatus, error) {
	if err := ctx.Err(); err != nil {
		return ClusterStatusUnknown, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	c, exists := o.clusters[name]
	if !exists {
		return ClusterStatusNotFound, nil
	}

	if c.deleting {
		c.delPolls++
		if c.delPolls > o.DeleteTicks {
			delete(o.clusters, name)
			return ClusterStatusNotFound, nil
		}
		return ClusterStatusDeleting, nil
	}

	if c.polls < o.CreateTicks {
		c.polls++
		return ClusterStatusCreating, nil
	}
	if o.FailCreates {
		return ClusterStatusCreateFailed, nil
	}
	return ClusterStatusReady, nil
}

func (o *SimClusterOperator) GetClusterPorts(ctx context.Context, name string) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	c, exists := o.clusters[name]
	if !exists {
		return nil, fmt.Errorf("cluster %s not found", name)
	}
	return append([]int(nil), c.ports...), nil
}

// Exists reports whether the simulated infrastructure still holds the cluster
func (o *SimClusterOperator) Exists(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, exists := o.clusters[name]
	return exists
}

// SimApplicationOperator is a deterministic in-memory ApplicationOperator.
// Registered types and created instances are tracked per cluster endpoint.
type SimApplicationOperator struct {
	mu         sync.Mutex
	registered map[string]map[string]bool // cluster -> image store path
	instances  map[string]map[string]bool // cluster -> instance name
	copies     map[string]int             // cluster -> uploads performed

	// StoreNotReadyPolls makes the first N copy attempts per cluster fail
	// with ErrImageStoreNotReady, to exercise the retry path
	StoreNotReadyPolls int

	// NotReady marks cluster endpoints whose image store never comes up;
	// every copy attempt there fails with ErrImageStoreNotReady
	NotReady map[string]bool
}

// NewSimApplicationOperator creates a simulated application operator
func NewSimApplicationOperator() *SimApplicationOperator {
	return &SimApplicationOperator{
		registered: make(map[string]map[string]bool),
		instances:  make(map[string]map[string]bool),
		copies:     make(map[string]int),
	}
}

func (o *SimApplicationOperator) CopyPackageToImageStore(ctx context.Context, cluster, localPath, typeName, typeVersion string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.NotReady[cluster] {
		return "", fmt.Errorf("copy %s to %s: %w", typeName, cluster, ErrImageStoreNotReady)
	}
	if o.copies[cluster] < o.StoreNotReadyPolls {
		o.copies[cluster]++
		return "", fmt.Errorf("copy %s to %s: %w", typeName, cluster, ErrImageStoreNotReady)
	}
	o.copies[cluster]++
	return fmt.Sprintf("store/%s/%s", typeName, typeVersion), nil
}

func (o *SimApplicationOperator) RegisterApplication(ctx context.Context, cluster, imageStorePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.registered[cluster] == nil {
		o.registered[cluster] = make(map[string]bool)
	}
	if o.registered[cluster][imageStorePath] {
		return fmt.Errorf("register %s on %s: %w", imageStorePath, cluster, ErrApplicationAlreadyRegistered)
	}
	o.registered[cluster][imageStorePath] = true
	return nil
}

func (o *SimApplicationOperator) CreateApplication(ctx context.Context, cluster, instanceName, typeName, typeVersion string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.instances[cluster] == nil {
		o.instances[cluster] = make(map[string]bool)
	}
	if o.instances[cluster][instanceName] {
		return fmt.Errorf("create %s on %s: %w", instanceName, cluster, ErrApplicationAlreadyExists)
	}
	o.instances[cluster][instanceName] = true
	return nil
}

func (o *SimApplicationOperator) ApplicationExists(ctx context.Context, cluster, instanceName string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.instances[cluster][instanceName], nil
}

func (o *SimApplicationOperator) GetApplicationCount(ctx context.Context, cluster string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.instances[cluster]), nil
}

func (o *SimApplicationOperator) GetServiceCount(ctx context.Context, cluster string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	// One service per instance in the simulation
	return len(o.instances[cluster]), nil
}

func (o *SimApplicationOperator) GetServiceEndpoint(ctx context.Context, cluster, serviceURI, endpointName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s/%s/%s", cluster, serviceURI, endpointName), nil
}
