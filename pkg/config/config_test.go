package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
cluster:
  minimumCount: 5
  maximumCount: 20
  maximumUsers: 10
  maximumUptime: 2h
  userCapacityHighThreshold: 0.8
  userCapacityLowThreshold: 0.4
  refreshInterval: 30s
packages:
  - name: Chatter
    version: "1.0.0"
    path: /opt/packages/chatter.tar.gz
operators:
  provisioner: http://provisioner.local:9000
  applicationManager: http://appmanager.local:9001
`

// TestParseValid tests decoding a complete configuration
func TestParseValid(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Cluster.MinimumClusterCount)
	assert.Equal(t, 20, cfg.Cluster.MaximumClusterCount)
	assert.Equal(t, 10, cfg.Cluster.MaximumUsersPerCluster)
	assert.Equal(t, 2*time.Hour, cfg.Cluster.MaximumClusterUptime)
	assert.Equal(t, 0.8, cfg.Cluster.UserCapacityHighThreshold)
	assert.Equal(t, 0.4, cfg.Cluster.UserCapacityLowThreshold)
	assert.Equal(t, 30*time.Second, cfg.Cluster.RefreshInterval)

	require.Len(t, cfg.Packages, 1)
	assert.Equal(t, "Chatter", cfg.Packages[0].Name)
	assert.Equal(t, "1.0.0", cfg.Packages[0].Version)

	assert.Equal(t, "http://provisioner.local:9000", cfg.Operators.Provisioner)
}

// TestParseInvalid tests validation failures
func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "min above max",
			yaml: `
cluster:
  minimumCount: 30
  maximumCount: 20
  maximumUsers: 10
  maximumUptime: 1h
  userCapacityHighThreshold: 0.8
  userCapacityLowThreshold: 0.4
  refreshInterval: 30s
`,
		},
		{
			name: "zero users",
			yaml: `
cluster:
  minimumCount: 1
  maximumCount: 2
  maximumUsers: 0
  maximumUptime: 1h
  userCapacityHighThreshold: 0.8
  userCapacityLowThreshold: 0.4
  refreshInterval: 30s
`,
		},
		{
			name: "low threshold above high",
			yaml: `
cluster:
  minimumCount: 1
  maximumCount: 2
  maximumUsers: 5
  maximumUptime: 1h
  userCapacityHighThreshold: 0.5
  userCapacityLowThreshold: 0.9
  refreshInterval: 30s
`,
		},
		{
			name: "missing uptime",
			yaml: `
cluster:
  minimumCount: 1
  maximumCount: 2
  maximumUsers: 5
  userCapacityHighThreshold: 0.8
  userCapacityLowThreshold: 0.4
  refreshInterval: 30s
`,
		},
		{
			name: "package without path",
			yaml: `
cluster:
  minimumCount: 1
  maximumCount: 2
  maximumUsers: 5
  maximumUptime: 1h
  userCapacityHighThreshold: 0.8
  userCapacityLowThreshold: 0.4
  refreshInterval: 30s
packages:
  - name: Broken
    version: "1.0"
`,
		},
		{
			name: "not yaml",
			yaml: `{{{`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

// TestDurationUnmarshal tests the duration wrapper
func TestDurationUnmarshal(t *testing.T) {
	cfg, err := Parse([]byte(`
cluster:
  minimumCount: 1
  maximumCount: 2
  maximumUsers: 5
  maximumUptime: 90m
  userCapacityHighThreshold: 0.8
  userCapacityLowThreshold: 0.4
  refreshInterval: 1m30s
`))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.Cluster.MaximumClusterUptime)
	assert.Equal(t, 90*time.Second, cfg.Cluster.RefreshInterval)
}
