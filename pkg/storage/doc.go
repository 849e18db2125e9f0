/*
Package storage provides BoltDB-backed persistence for the cluster pool.

All pool state lives in one embedded database file: the cluster map, the
deployment job map, and the deployment work queue. Records are serialized
as JSON into separate buckets.

	┌──────────────── BOLTDB LAYOUT ────────────────┐
	│                                                │
	│  clusters          big-endian int64 id → JSON  │
	│  deployments       job id (string)    → JSON   │
	│  deployment_queue  sequence number    → job id │
	│                                                │
	└────────────────────────────────────────────────┘

Access goes through View and Update, each wrapping one BoltDB transaction:
every write inside an Update commits atomically or not at all. Multi-record
operations (a balance pass, an enqueue batch, a join) lean on this to stay
consistent under crashes.

The queue is peek/consume rather than destructive-dequeue. Callers peek the
head, do their work outside any transaction, then consume the head in the
same Update that records the outcome. A crash before that commit leaves the
head in place, so the work is redone rather than lost.

# Usage

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.Update(func(tx storage.Tx) error {
		return tx.PutCluster(cluster)
	})
*/
package storage
