package domain

import "time"

// NodeID identifies a crossroad in the static road graph a Skim answers
// queries over.
type NodeID int64

// StopKind distinguishes the three points a vehicle's path can be marked
// with: a pickup, a dropoff, or a pure assignment marker left behind for
// reporting when a traveller is added to a ride already en route.
type StopKind string

const (
	KindPickup     StopKind = "o"
	KindDropoff    StopKind = "d"
	KindAssignment StopKind = "a"
)

// Stop is one point a ride's vehicle must visit, in the order the ride's
// DestinationPoints slice holds them.
type Stop struct {
	Node        NodeID
	Kind        StopKind
	TravellerID string
}

// VehicleEvent is a timestamped record of a stop actually reached, appended
// to a Vehicle's Path.Events and mirrored onto the owning Ride's Events for
// the vehicle_log/ride_log reports (see the reportwriter adapter).
type VehicleEvent struct {
	Time        time.Time
	Node        NodeID
	Kind        StopKind
	TravellerID string
}
