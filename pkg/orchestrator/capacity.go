package orchestrator

import (
	"math"

	"github.com/partypool/partypool/pkg/types"
)

// TargetCapacity computes the desired number of active clusters from current
// utilization.
//
// The thresholds are asymmetric on purpose: growth is driven by the headroom
// above the high threshold and shrink by the width of the whole band, so a
// pool hovering at either boundary does not oscillate between targets.
func TargetCapacity(clusters []*types.Cluster, cfg types.ClusterConfig) int {
	active := 0
	totalUsers := 0
	for _, c := range clusters {
		if c.IsActive() {
			active++
			totalUsers += len(c.Users)
		}
	}

	capacity := active * cfg.MaximumUsersPerCluster
	percentFull := 0.0
	if capacity > 0 {
		percentFull = float64(totalUsers) / float64(capacity)
	}

	high := cfg.UserCapacityHighThreshold
	low := cfg.UserCapacityLowThreshold

	switch {
	case percentFull >= high:
		target := active + int(math.Ceil(float64(active)*(1-high)))
		if target > cfg.MaximumClusterCount {
			target = cfg.MaximumClusterCount
		}
		return target
	case percentFull <= low:
		target := active - int(math.Floor(float64(active)*(high-low)))
		if target < cfg.MinimumClusterCount {
			target = cfg.MinimumClusterCount
		}
		return target
	default:
		return active
	}
}
