package ports

import (
	"context"

	"github.com/ridesim/dispatch/internal/core/domain"
)

// Skim is the C1 shortest-path oracle: given an ordered sequence of node
// ids, it answers the total travel distance or the expanded node-by-node
// path joining them. A sequence of length 1 is a degenerate query answered
// with zero distance and a single-element path.
type Skim interface {
	Distance(ctx context.Context, nodes []domain.NodeID) (float64, error)
	Path(ctx context.Context, nodes []domain.NodeID) ([]domain.NodeID, error)
}

// RideEvent is what gets published to the live feed whenever a ride fires a
// VehicleEvent or a dispatcher commits/defers/resigns a request.
type RideEvent struct {
	RunID     string
	Operator  string
	RideID    string
	VehicleID string
	Kind      string // "o" | "d" | "a" (pickup/dropoff/assignment) | "commit_taxi" | "commit_pool" | "deferred" | "resigned"
	Node      *domain.NodeID
	Traveller string
}

// EventPublisher publishes ride events to a message broker for the live
// feed and the reporting API's WebSocket relay.
type EventPublisher interface {
	PublishRideEvent(ctx context.Context, event RideEvent) error
	PublishBroadcast(ctx context.Context, subject string, data []byte) error
}

// EventSubscriber subscribes to the ride event feed.
type EventSubscriber interface {
	SubscribeRideEvents(ctx context.Context, handler func(ctx context.Context, event RideEvent) error) error
}

// CacheService provides read-through caching, used by the graph adapter to
// memoize Skim answers.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
