/*
Package orchestrator maintains the pool of party clusters and hands out
seats on them.

The orchestrator owns every cluster record in the store. Once per tick it
advances each cluster's state machine, recomputes the capacity target from
current utilization, and balances the pool toward it. It also serves the
user-facing operations: listing joinable clusters, admitting users, and
reporting party status.

# Architecture

	┌────────────────── ORCHESTRATOR ──────────────────┐
	│                                                    │
	│  ┌──────────────────────────────────┐             │
	│  │            Run loop               │             │
	│  │  - Adaptive delay between ticks   │             │
	│  │  - Shrinks while work is found    │             │
	│  │  - Doubles while the pool idles   │             │
	│  └────────────────┬─────────────────┘             │
	│                   │                                │
	│  ┌────────────────▼─────────────────┐             │
	│  │              Tick                 │             │
	│  │  1. Advance each cluster          │             │
	│  │  2. Compute capacity target       │             │
	│  │  3. Balance pool toward target    │             │
	│  │  4. Export pool gauges            │             │
	│  └────────────────┬─────────────────┘             │
	│                   │                                │
	│  ┌────────────────▼─────────────────┐             │
	│  │         Cluster lifecycle         │             │
	│  │                                    │             │
	│  │  new → creating → ready           │             │
	│  │          │          │             │             │
	│  │          ▼          ▼ (expiry)    │             │
	│  │        remove → deleting → gone   │             │
	│  └──────────────────────────────────┘             │
	└────────────────────────────────────────────────────┘

# Capacity

The target is driven by two thresholds on total user capacity. At or above
the high threshold the pool grows by the headroom above it; at or below the
low threshold it shrinks by the width of the whole band. Anywhere between,
the target holds. The asymmetry keeps a pool hovering near a boundary from
oscillating.

Growth and shrink are both clamped to the configured minimum and maximum
pool sizes, and a cluster carrying users is never marked for removal no
matter how far over target the pool is.

# Joins

A join runs in one store transaction: the user's existing membership is
checked across the whole pool, the target cluster is validated (exists,
ready, not expired, has a seat and a free port), the notification mail is
sent, and the updated record is written. If any step fails nothing is
persisted; in particular a user is never admitted without being told where
to connect.

The first successful join starts the cluster's uptime clock. Until then the
cluster carries a lifetime sentinel far in the future and never expires.

A random join shuffles the eligible clusters and keeps trying until one
admits the user. A pool with no room answers with the closed party view,
not an error.

# Usage

	orch := orchestrator.New(orchestrator.Options{
		Store:        store,
		Clusters:     clusterOperator,
		Applications: appOperator,
		Deployer:     pipeline,
		Mailer:       mailer,
		Config:       func() types.ClusterConfig { return provider.Current().Cluster },
		Logger:       logger,
	})

	go orch.Run(ctx)

	err := orch.JoinCluster(ctx, clusterID, userID)
	if joinErr, ok := orchestrator.AsJoinError(err); ok {
		// refusal with a reason, not a system failure
		_ = joinErr.Reason
	}
*/
package orchestrator
