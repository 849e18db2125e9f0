/*
Package types defines the core data model shared across the pool service.

Cluster and ApplicationDeployment are replace-on-write value types: every
state transition builds a fresh copy through a With* method and the caller
persists it atomically. No code mutates a record through a shared pointer,
so an aborted transaction can never leave a half-applied update behind.

A cluster's uptime clock does not start at creation. Ready clusters carry
the LifetimeNotStarted sentinel until their first user joins; an idle
cluster sits in the pool indefinitely, and only an occupied one ages toward
its maximum uptime.
*/
package types
