/*
Package metrics provides Prometheus metrics and health checking for the
pool service.

All metrics carry the partypool_ prefix and register on the default
registry at init. Pool gauges (clusters by status, users, capacity target)
are set once per orchestrator tick; counters and histograms are updated at
the point of work.

Health is component-based: the store, orchestrator, and pipeline each
register and update their status, /healthz reflects the worst of them, and
/readyz requires all three to be registered healthy.
*/
package metrics
