package orchestrator

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/partypool/partypool/pkg/events"
	"github.com/partypool/partypool/pkg/log"
	"github.com/partypool/partypool/pkg/mailer"
	"github.com/partypool/partypool/pkg/metrics"
	"github.com/partypool/partypool/pkg/operator"
	"github.com/partypool/partypool/pkg/storage"
	"github.com/partypool/partypool/pkg/types"
	"github.com/rs/zerolog"
)

// managementPort is the cluster management endpoint port reported to the
// deployment pipeline
const managementPort = 19000

const (
	defaultMinTickDelay = 2 * time.Second
	defaultMaxTickDelay = 30 * time.Second
)

// managementEndpoint is the address application operators talk to
func managementEndpoint(address string) string {
	return fmt.Sprintf("%s:%d", address, managementPort)
}

// Enqueuer is the slice of the deployment pipeline the orchestrator needs:
// queueing deployments for a cluster that just became ready. The pipeline's
// storage stays its own; the two cores only meet at this call.
type Enqueuer interface {
	QueueApplicationDeployment(ctx context.Context, clusterAddress string, clusterPort int) ([]string, error)
}

// Options configures an Orchestrator
type Options struct {
	Store        storage.Store
	Clusters     operator.ClusterOperator
	Applications operator.ApplicationOperator
	Deployer     Enqueuer
	Mailer       mailer.Mailer
	Broker       *events.Broker
	Config       func() types.ClusterConfig
	Logger       zerolog.Logger

	// Tick delay bounds for the adaptive backoff; zero values take defaults
	MinTickDelay time.Duration
	MaxTickDelay time.Duration
}

// Orchestrator owns the cluster pool: it advances every cluster's state
// machine once per tick, recomputes the capacity target, balances the pool
// toward it, and serves join requests.
type Orchestrator struct {
	store    storage.Store
	clusters operator.ClusterOperator
	apps     operator.ApplicationOperator
	deployer Enqueuer
	mailer   mailer.Mailer
	broker   *events.Broker
	config   func() types.ClusterConfig
	logger   zerolog.Logger

	minDelay time.Duration
	maxDelay time.Duration
}

// New creates an orchestrator
func New(opts Options) *Orchestrator {
	minDelay := opts.MinTickDelay
	if minDelay == 0 {
		minDelay = defaultMinTickDelay
	}
	maxDelay := opts.MaxTickDelay
	if maxDelay == 0 {
		maxDelay = defaultMaxTickDelay
	}

	return &Orchestrator{
		store:    opts.Store,
		clusters: opts.Clusters,
		apps:     opts.Applications,
		deployer: opts.Deployer,
		mailer:   opts.Mailer,
		broker:   opts.Broker,
		config:   opts.Config,
		logger:   opts.Logger,
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

// Run drives the orchestrator loop until ctx is cancelled. The delay between
// ticks shrinks back to the minimum after a tick that did work and doubles
// up to the maximum when the pool is quiet.
//
// Transient failures are absorbed inside the tick; an error escaping here is
// either cancellation or something systemic, and the caller is expected to
// treat it as fatal rather than wedge silently.
func (o *Orchestrator) Run(ctx context.Context) error {
	metrics.UpdateComponent("orchestrator", true, "running")
	defer metrics.UpdateComponent("orchestrator", false, "stopped")

	delay := o.minDelay
	for {
		worked, err := o.Tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.UpdateComponent("orchestrator", false, err.Error())
			return fmt.Errorf("orchestrator tick: %w", err)
		}

		if worked {
			delay = o.minDelay
		} else {
			delay *= 2
			if delay > o.maxDelay {
				delay = o.maxDelay
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Tick performs one orchestration pass: advance every cluster, recompute the
// target, balance the pool. It reports whether any state changed.
//
// Each cluster is processed in its own transaction so one stuck cluster
// cannot hold a lock over the pool. Transient failures skip the affected
// work and are retried next tick; unexpected errors propagate to fail the
// loop.
func (o *Orchestrator) Tick(ctx context.Context) (bool, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TickDuration)

	clusters, err := o.listClusters()
	if err != nil {
		o.logger.Error().Err(err).Msg("failed to list clusters, skipping tick")
		metrics.TickErrors.WithLabelValues("orchestrator").Inc()
		return false, nil
	}

	worked := false
	for _, cluster := range clusters {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		changed, err := o.processCluster(ctx, cluster)
		if err != nil {
			if operator.IsTransient(err) {
				o.logger.Warn().Err(err).Int64("cluster_id", cluster.ID).
					Msg("transient failure processing cluster")
				metrics.TickErrors.WithLabelValues("orchestrator").Inc()
				continue
			}
			if errors.Is(err, context.Canceled) {
				return false, err
			}
			// Unknown failures are treated as systemic: better to fail the
			// loop and restart than to keep limping
			return false, fmt.Errorf("cluster %d: %w", cluster.ID, err)
		}
		worked = worked || changed
	}

	cfg := o.config()
	clusters, err = o.listClusters()
	if err != nil {
		o.logger.Error().Err(err).Msg("failed to relist clusters, skipping balance")
		metrics.TickErrors.WithLabelValues("orchestrator").Inc()
		return worked, nil
	}

	target := TargetCapacity(clusters, cfg)
	created, removed, err := o.Balance(ctx, target)
	if err != nil {
		o.logger.Error().Err(err).Int("target", target).Msg("balance pass failed")
		metrics.TickErrors.WithLabelValues("orchestrator").Inc()
		return worked, nil
	}

	o.observePool(clusters, target)
	return worked || created > 0 || removed > 0, nil
}

func (o *Orchestrator) listClusters() ([]*types.Cluster, error) {
	var clusters []*types.Cluster
	err := o.store.View(func(tx storage.ReadTx) error {
		var err error
		clusters, err = tx.ListClusters()
		return err
	})
	return clusters, err
}

// processCluster advances one cluster's state machine and persists the
// outcome in its own transaction
func (o *Orchestrator) processCluster(ctx context.Context, cluster *types.Cluster) (bool, error) {
	logger := log.WithClusterID(o.logger, cluster.ID)

	next, changed, err := o.advance(ctx, *cluster)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	if next.Status == types.ClusterStatusDeleted {
		err = o.store.Update(func(tx storage.Tx) error {
			return tx.DeleteCluster(cluster.ID)
		})
		if err != nil {
			return false, err
		}
		logger.Info().Str("from", string(cluster.Status)).Msg("cluster record removed")
		o.publish(events.ClusterEvent(events.EventClusterRemoved, cluster.ID, "cluster deleted"))
		return true, nil
	}

	err = o.store.Update(func(tx storage.Tx) error {
		return tx.PutCluster(&next)
	})
	if err != nil {
		return false, err
	}
	logger.Debug().Str("from", string(cluster.Status)).Str("to", string(next.Status)).Msg("cluster advanced")

	if next.Status == types.ClusterStatusReady && cluster.Status != types.ClusterStatusReady {
		o.publish(events.ClusterEvent(events.EventClusterReady, next.ID, "cluster ready"))
		// Best-effort: a failed enqueue leaves a bare but usable cluster
		if o.deployer != nil {
			if _, err := o.deployer.QueueApplicationDeployment(ctx, next.Address, managementPort); err != nil {
				logger.Error().Err(err).Msg("failed to queue application deployments")
			}
		}
	}
	return true, nil
}

// Balance moves the pool toward the target count in a single transaction:
// either every addition and removal mark commits or none do. The target is
// clamped into the configured bounds, clusters with users are never marked
// for removal, and the pool is never shrunk below the minimum.
func (o *Orchestrator) Balance(ctx context.Context, target int) (created, removed int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	cfg := o.config()
	if target < cfg.MinimumClusterCount {
		target = cfg.MinimumClusterCount
	}
	if target > cfg.MaximumClusterCount {
		target = cfg.MaximumClusterCount
	}

	var newIDs []int64
	err = o.store.Update(func(tx storage.Tx) error {
		created, removed = 0, 0
		newIDs = newIDs[:0]

		clusters, err := tx.ListClusters()
		if err != nil {
			return err
		}

		var active []*types.Cluster
		for _, c := range clusters {
			if c.IsActive() {
				active = append(active, c)
			}
		}

		switch {
		case len(active) < target:
			for i := len(active); i < target; i++ {
				record := newClusterRecord()
				if err := tx.PutCluster(record); err != nil {
					return err
				}
				newIDs = append(newIDs, record.ID)
				created++
			}

		case len(active) > target:
			excess := len(active) - target
			if headroom := len(active) - cfg.MinimumClusterCount; headroom < excess {
				excess = headroom
			}
			for _, c := range active {
				if removed >= excess {
					break
				}
				if len(c.Users) > 0 {
					continue
				}
				marked := c.MarkedForRemoval()
				if err := tx.PutCluster(&marked); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	for _, id := range newIDs {
		o.publish(events.ClusterEvent(events.EventClusterCreated, id, "cluster record created"))
	}
	if created > 0 {
		metrics.ClustersCreated.Add(float64(created))
		o.logger.Info().Int("count", created).Int("target", target).Msg("added clusters")
	}
	if removed > 0 {
		metrics.ClustersRemoved.Add(float64(removed))
		o.logger.Info().Int("count", removed).Int("target", target).Msg("marked clusters for removal")
	}
	return created, removed, nil
}

// newClusterRecord builds a fresh cluster with a random id and provisioning
// name derived from the same uuid
func newClusterRecord() *types.Cluster {
	u := uuid.New()
	id := int64(binary.BigEndian.Uint64(u[:8]) &^ (1 << 63))
	return &types.Cluster{
		ID:                id,
		InternalName:      "party-" + hex.EncodeToString(u[:4]),
		Status:            types.ClusterStatusNew,
		LifetimeStartedOn: types.LifetimeNotStarted,
	}
}

func (o *Orchestrator) observePool(clusters []*types.Cluster, target int) {
	counts := map[types.ClusterStatus]int{
		types.ClusterStatusNew:      0,
		types.ClusterStatusCreating: 0,
		types.ClusterStatusReady:    0,
		types.ClusterStatusRemove:   0,
		types.ClusterStatusDeleting: 0,
	}
	users := 0
	for _, c := range clusters {
		counts[c.Status]++
		users += len(c.Users)
	}
	for status, count := range counts {
		metrics.ClustersTotal.WithLabelValues(string(status)).Set(float64(count))
	}
	metrics.UsersTotal.Set(float64(users))
	metrics.TargetCapacity.Set(float64(target))
}

func (o *Orchestrator) publish(event *events.Event) {
	if o.broker != nil {
		o.broker.Publish(event)
	}
}
