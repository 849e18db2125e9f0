/*
Package config loads and hot-reloads the pool configuration.

The on-disk format is YAML: pool sizing and capacity thresholds, the
application packages to deploy onto each cluster, and the operator
endpoints. Durations are written in Go syntax ("2h", "90s").

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
	    path: /var/lib/partypool/packages/chatter.tar.gz
	operators:
	  provisioner: http://provisioner:9000
	  applicationManager: http://appmanager:9001

A Provider wraps the current configuration behind an atomic pointer and
polls the file's modification time. Consumers call Current() every time
they need a value, so an edit takes effect on the next orchestrator or
pipeline tick without a restart. A file that fails to parse or validate is
rejected and the previous configuration stays in force.
*/
package config
