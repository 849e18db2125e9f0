package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/partypool/partypool/pkg/events"
	"github.com/partypool/partypool/pkg/operator"
	"github.com/partypool/partypool/pkg/types"
)

// advance computes one state-machine step for a cluster. It performs the
// remote operator calls for the step but no persistence; the caller commits
// the returned record. changed is false when the cluster should be left
// exactly as it was.
func (o *Orchestrator) advance(ctx context.Context, cluster types.Cluster) (next types.Cluster, changed bool, err error) {
	switch cluster.Status {
	case types.ClusterStatusNew:
		return o.advanceNew(ctx, cluster)
	case types.ClusterStatusCreating:
		return o.advanceCreating(ctx, cluster)
	case types.ClusterStatusReady:
		return o.advanceReady(ctx, cluster)
	case types.ClusterStatusRemove:
		return o.advanceRemove(ctx, cluster)
	case types.ClusterStatusDeleting:
		return o.advanceDeleting(ctx, cluster)
	default:
		return cluster, false, nil
	}
}

// advanceNew asks the operator to provision the cluster. A name collision
// means another record already owns the name: give up this record, the next
// balance pass creates a fresh one.
func (o *Orchestrator) advanceNew(ctx context.Context, cluster types.Cluster) (types.Cluster, bool, error) {
	address, err := o.clusters.CreateCluster(ctx, cluster.InternalName, nil)
	if err != nil {
		if errors.Is(err, operator.ErrClusterNameTaken) {
			o.logger.Warn().Int64("cluster_id", cluster.ID).Str("name", cluster.InternalName).
				Msg("cluster name collision, abandoning record")
			return cluster.WithStatus(types.ClusterStatusDeleted), true, nil
		}
		return cluster, false, err
	}
	return cluster.WithAddress(address).WithStatus(types.ClusterStatusCreating), true, nil
}

func (o *Orchestrator) advanceCreating(ctx context.Context, cluster types.Cluster) (types.Cluster, bool, error) {
	status, err := o.clusters.GetClusterStatus(ctx, cluster.InternalName)
	if err != nil {
		return cluster, false, err
	}

	switch status {
	case operator.ClusterStatusReady:
		ports, err := o.clusters.GetClusterPorts(ctx, cluster.InternalName)
		if err != nil {
			return cluster, false, err
		}
		return cluster.WithReady(ports, time.Now().UTC()), true, nil

	case operator.ClusterStatusCreateFailed:
		o.logger.Warn().Int64("cluster_id", cluster.ID).Msg("cluster provisioning failed, tearing down")
		return cluster.MarkedForRemoval(), true, nil

	case operator.ClusterStatusDeleting:
		return cluster.WithStatus(types.ClusterStatusDeleting), true, nil

	case operator.ClusterStatusNotFound:
		return cluster.WithStatus(types.ClusterStatusDeleted), true, nil

	default:
		// Still creating
		return cluster, false, nil
	}
}

// advanceReady retires an expired cluster, follows externally-triggered
// deletion, and otherwise refreshes the observed application and service
// counts. Count refresh is best-effort: a failure leaves the cluster as-is.
func (o *Orchestrator) advanceReady(ctx context.Context, cluster types.Cluster) (types.Cluster, bool, error) {
	cfg := o.config()
	if cluster.Expired(time.Now().UTC(), cfg.MaximumClusterUptime) {
		o.publish(events.ClusterEvent(events.EventClusterExpired, cluster.ID, "cluster lifetime exceeded"))
		return cluster.MarkedForRemoval(), true, nil
	}

	status, err := o.clusters.GetClusterStatus(ctx, cluster.InternalName)
	if err != nil {
		return cluster, false, err
	}
	switch status {
	case operator.ClusterStatusDeleting:
		return cluster.WithStatus(types.ClusterStatusDeleting), true, nil
	case operator.ClusterStatusNotFound:
		return cluster.WithStatus(types.ClusterStatusDeleted), true, nil
	}

	endpoint := managementEndpoint(cluster.Address)
	appCount, err := o.apps.GetApplicationCount(ctx, endpoint)
	if err != nil {
		o.logger.Debug().Err(err).Int64("cluster_id", cluster.ID).Msg("application count refresh failed")
		return cluster, false, nil
	}
	serviceCount, err := o.apps.GetServiceCount(ctx, endpoint)
	if err != nil {
		o.logger.Debug().Err(err).Int64("cluster_id", cluster.ID).Msg("service count refresh failed")
		return cluster, false, nil
	}

	if appCount == cluster.AppCount && serviceCount == cluster.ServiceCount {
		return cluster, false, nil
	}
	return cluster.WithCounts(appCount, serviceCount), true, nil
}

func (o *Orchestrator) advanceRemove(ctx context.Context, cluster types.Cluster) (types.Cluster, bool, error) {
	status, err := o.clusters.GetClusterStatus(ctx, cluster.InternalName)
	if err != nil {
		return cluster, false, err
	}

	if status == operator.ClusterStatusNotFound {
		return cluster.WithStatus(types.ClusterStatusDeleted), true, nil
	}

	if err := o.clusters.DeleteCluster(ctx, cluster.InternalName); err != nil {
		return cluster, false, err
	}
	return cluster.WithStatus(types.ClusterStatusDeleting), true, nil
}

func (o *Orchestrator) advanceDeleting(ctx context.Context, cluster types.Cluster) (types.Cluster, bool, error) {
	status, err := o.clusters.GetClusterStatus(ctx, cluster.InternalName)
	if err != nil {
		return cluster, false, err
	}

	switch status {
	case operator.ClusterStatusNotFound:
		return cluster.WithStatus(types.ClusterStatusDeleted), true, nil
	case operator.ClusterStatusCreateFailed, operator.ClusterStatusDeleteFailed:
		// Teardown stalled, go back and retry the delete
		return cluster.WithStatus(types.ClusterStatusRemove), true, nil
	default:
		return cluster, false, nil
	}
}
