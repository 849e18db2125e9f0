package storage

import (
	"errors"

	"github.com/partypool/partypool/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// QueueHead identifies the oldest entry in the deployment work queue. It is
// obtained from PeekDeploymentQueue and handed back to ConsumeQueueHead once
// the stage it represents has been processed.
type QueueHead struct {
	Key          []byte
	DeploymentID string
}

// Store provides atomic, isolated read-modify-write transactions over the
// cluster map, the deployment map, and the deployment FIFO queue.
//
// Every function passed to View/Update runs inside a single transaction:
// either all of its writes commit or none do. The queue is peek/consume
// rather than destructive-dequeue so that stage processing can happen outside
// any transaction; a crash before the consuming Update commits leaves the
// head in place and the same stage is re-processed.
type Store interface {
	View(fn func(tx ReadTx) error) error
	Update(fn func(tx Tx) error) error
	Close() error
}

// ReadTx is the read-only view of one transaction
type ReadTx interface {
	GetCluster(id int64) (*types.Cluster, error)
	ListClusters() ([]*types.Cluster, error)

	GetDeployment(id string) (*types.ApplicationDeployment, error)
	ListDeployments() ([]*types.ApplicationDeployment, error)

	PeekDeploymentQueue() (*QueueHead, error)
	QueueDepth() (int, error)
}

// Tx is the read-write view of one transaction
type Tx interface {
	ReadTx

	PutCluster(c *types.Cluster) error
	DeleteCluster(id int64) error

	PutDeployment(d *types.ApplicationDeployment) error
	DeleteDeployment(id string) error

	EnqueueDeployment(id string) error
	ConsumeQueueHead(head *QueueHead) error
}
