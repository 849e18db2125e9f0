/*
Package events provides a lightweight broker for pool lifecycle events.

The orchestrator and pipeline publish events as clusters and deployments
move through their lifecycles: cluster.created, cluster.ready,
cluster.expired, cluster.removed, user.joined, deployment.queued,
deployment.complete, deployment.failed.

Publishing never blocks the control loops. Events flow through a buffered
channel into a broadcast loop; a subscriber whose buffer is full misses the
event rather than stalling the publisher. The stream is best-effort
observability, not a ledger; the store is the source of truth.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for event := range sub {
		fmt.Println(event.Type, event.Message)
	}
*/
package events
