package domain

import "time"

// ServiceKind is the mode a traveller was ultimately served by, and the key
// the per-mode utility/distance maps are indexed by.
type ServiceKind string

const (
	ServiceTaxi     ServiceKind = "taxi"
	ServicePool     ServiceKind = "pool"
	ServiceUnserved ServiceKind = "unserved"
)

// Behaviour carries the traveller-level preference parameters the utility
// and deferral formulas read from.
type Behaviour struct {
	ValueOfTime           float64       // currency per second of in-vehicle/waiting time
	PickupDelaySensitivity float64      // multiplier applied to pickup delay in the utility formula
	MaxPickup             time.Duration // walk-away threshold for pickup wait
	MaxWaiting            time.Duration // accumulated waiting threshold before resignation
	PfSTable               map[int]float64 // PfS table keyed by the number of travellers sharing the ride
	PfSConst               float64         // flat disutility applied to every pool trip, independent of PfSTable
}

// Traveller is one request in the chronological stream the event loop
// consumes. Fields mutate in place as the dispatcher commits, defers, or
// resigns the request; ownership lives in the engine's Simulation registry.
type Traveller struct {
	ID          string
	Origin      NodeID
	Destination NodeID
	RequestTime time.Time

	RequestedKind ServiceKind // taxi-only vs. willing-to-pool, from the request stream
	ServedBy      ServiceKind // set once a ride commits
	TripLength    float64     // meters, origin->destination, set when the request is first handled

	Behaviour Behaviour

	Resigned           bool
	AccumulatedWaiting time.Duration
	PickupDelay        *time.Duration

	Utilities map[ServiceKind]float64
	Distances map[ServiceKind]float64
}

// NewTraveller builds a Traveller with its utility/distance maps
// initialized, matching the zero-state the event loop expects before a
// dispatcher has evaluated any candidate ride.
func NewTraveller(id string, origin, destination NodeID, requestTime time.Time, kind ServiceKind, behaviour Behaviour) *Traveller {
	return &Traveller{
		ID:            id,
		Origin:        origin,
		Destination:   destination,
		RequestTime:   requestTime,
		RequestedKind: kind,
		ServedBy:      ServiceUnserved,
		Behaviour:     behaviour,
		Utilities:     make(map[ServiceKind]float64),
		Distances:     make(map[ServiceKind]float64),
	}
}

// PenaltyForSharing looks up the PfS multiplier applied to in-vehicle time
// cost for a pool ride shared by coRiders travellers in total, the traveller
// being priced included. Once coRiders exceeds
// every key the table defines, it clamps to the table's highest entry
// rather than substituting some other value — the table is assumed to
// cover the smallest co-rider counts exactly and flatten out beyond that.
func (b Behaviour) PenaltyForSharing(coRiders int) float64 {
	if v, ok := b.PfSTable[coRiders]; ok {
		return v
	}
	if len(b.PfSTable) == 0 {
		return 0
	}
	maxKey := 0
	for k := range b.PfSTable {
		if k > maxKey {
			maxKey = k
		}
	}
	return b.PfSTable[maxKey]
}
