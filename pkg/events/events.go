package events

import (
	"strconv"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventClusterCreated   EventType = "cluster.created"
	EventClusterReady     EventType = "cluster.ready"
	EventClusterExpired   EventType = "cluster.expired"
	EventClusterRemoved   EventType = "cluster.removed"
	EventUserJoined       EventType = "user.joined"
	EventDeploymentQueued EventType = "deployment.queued"
	EventDeploymentDone   EventType = "deployment.complete"
	EventDeploymentFailed EventType = "deployment.failed"
)

// Event is one pool lifecycle occurrence
type Event struct {
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// ClusterEvent builds an event tagged with a cluster id
func ClusterEvent(eventType EventType, clusterID int64, message string) *Event {
	return &Event{
		Type:    eventType,
		Message: message,
		Metadata: map[string]string{
			"cluster_id": strconv.FormatInt(clusterID, 10),
		},
	}
}

// DeploymentEvent builds an event tagged with a deployment job id
func DeploymentEvent(eventType EventType, jobID, message string) *Event {
	return &Event{
		Type:    eventType,
		Message: message,
		Metadata: map[string]string{
			"job_id": jobID,
		},
	}
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker fans events out to subscribers. Publishing never blocks the
// orchestrator or pipeline loops: a subscriber with a full buffer misses the
// event.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns its channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish hands an event to the broker
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
