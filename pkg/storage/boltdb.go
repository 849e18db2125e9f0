package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/partypool/partypool/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketClusters        = []byte("clusters")
	bucketDeployments     = []byte("deployments")
	bucketDeploymentQueue = []byte("deployment_queue")
)

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "partypool.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketClusters,
			bucketDeployments,
			bucketDeploymentQueue,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// View runs fn inside a read-only transaction
func (s *BoltStore) View(fn func(tx ReadTx) error) error {
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(&boltTx{tx: btx})
	})
}

// Update runs fn inside a read-write transaction. Any error from fn aborts
// the transaction; no partial write is ever visible.
func (s *BoltStore) Update(fn func(tx Tx) error) error {
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(&boltTx{tx: btx})
	})
}

// boltTx adapts one bbolt transaction to the ReadTx/Tx interfaces
type boltTx struct {
	tx *bolt.Tx
}

func clusterKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func (t *boltTx) GetCluster(id int64) (*types.Cluster, error) {
	data := t.tx.Bucket(bucketClusters).Get(clusterKey(id))
	if data == nil {
		return nil, fmt.Errorf("cluster %d: %w", id, ErrNotFound)
	}
	var cluster types.Cluster
	if err := json.Unmarshal(data, &cluster); err != nil {
		return nil, err
	}
	return &cluster, nil
}

func (t *boltTx) ListClusters() ([]*types.Cluster, error) {
	var clusters []*types.Cluster
	err := t.tx.Bucket(bucketClusters).ForEach(func(k, v []byte) error {
		var cluster types.Cluster
		if err := json.Unmarshal(v, &cluster); err != nil {
			return err
		}
		clusters = append(clusters, &cluster)
		return nil
	})
	return clusters, err
}

func (t *boltTx) PutCluster(c *types.Cluster) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return t.tx.Bucket(bucketClusters).Put(clusterKey(c.ID), data)
}

func (t *boltTx) DeleteCluster(id int64) error {
	return t.tx.Bucket(bucketClusters).Delete(clusterKey(id))
}

func (t *boltTx) GetDeployment(id string) (*types.ApplicationDeployment, error) {
	data := t.tx.Bucket(bucketDeployments).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("deployment %s: %w", id, ErrNotFound)
	}
	var deployment types.ApplicationDeployment
	if err := json.Unmarshal(data, &deployment); err != nil {
		return nil, err
	}
	return &deployment, nil
}

func (t *boltTx) ListDeployments() ([]*types.ApplicationDeployment, error) {
	var deployments []*types.ApplicationDeployment
	err := t.tx.Bucket(bucketDeployments).ForEach(func(k, v []byte) error {
		var deployment types.ApplicationDeployment
		if err := json.Unmarshal(v, &deployment); err != nil {
			return err
		}
		deployments = append(deployments, &deployment)
		return nil
	})
	return deployments, err
}

func (t *boltTx) PutDeployment(d *types.ApplicationDeployment) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return t.tx.Bucket(bucketDeployments).Put([]byte(d.ID), data)
}

func (t *boltTx) DeleteDeployment(id string) error {
	return t.tx.Bucket(bucketDeployments).Delete([]byte(id))
}

// EnqueueDeployment appends the deployment id at the queue tail. Sequence
// numbers are monotonic per bucket, so big-endian keys preserve FIFO order
// under a forward cursor.
func (t *boltTx) EnqueueDeployment(id string) error {
	b := t.tx.Bucket(bucketDeploymentQueue)
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return b.Put(key, []byte(id))
}

func (t *boltTx) PeekDeploymentQueue() (*QueueHead, error) {
	c := t.tx.Bucket(bucketDeploymentQueue).Cursor()
	k, v := c.First()
	if k == nil {
		return nil, nil
	}
	// Copy out: bbolt memory is only valid for the transaction lifetime
	head := &QueueHead{
		Key:          append([]byte(nil), k...),
		DeploymentID: string(v),
	}
	return head, nil
}

func (t *boltTx) ConsumeQueueHead(head *QueueHead) error {
	return t.tx.Bucket(bucketDeploymentQueue).Delete(head.Key)
}

func (t *boltTx) QueueDepth() (int, error) {
	depth := 0
	c := t.tx.Bucket(bucketDeploymentQueue).Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		depth++
	}
	return depth, nil
}
