package domain

import "time"

// VehicleType tags a vehicle's allowed service kinds, carried forward from
// the original per-operator dispatch tables so a dispatcher can restrict its
// nearest-vehicle search by kind.
type VehicleType string

const (
	VehicleTaxi  VehicleType = "taxi"
	VehiclePool  VehicleType = "pool"
	VehicleMixed VehicleType = "mixed"
)

// Path is a vehicle's per-Δt movement state: where it sits between
// crossroads, how long it has been travelling the current edge,
// and the log of stops it has actually fired events for. The Vehicle Mover
// is the only component that advances these fields.
type Path struct {
	CurrentPosition NodeID // last crossroad fully reached

	ClosestCrossroad *NodeID       // next crossroad ahead on CurrentPath, nil once the path is exhausted
	CurrentPath      []NodeID      // remaining crossroads to visit, in order
	TimeBetweenCrossroads time.Duration // time already spent on the current edge
	ToClosestCrossroads   time.Duration // not written by the Vehicle Mover; stays zero

	CurrentTime     time.Time // last tick this vehicle was advanced to
	Stationary      bool      // true while idle, not assigned, or waiting at a dropoff
	Mileage         float64   // cumulative meters driven
	OccupiedMileage float64   // cumulative meters driven with at least one traveller aboard

	Events []VehicleEvent
}

// Vehicle is one unit of a dispatcher's fleet.
type Vehicle struct {
	ID       string
	Operator string
	Type     VehicleType
	Speed    float64 // meters/second
	Capacity int

	StartTime time.Time
	EndTime   time.Time
	Available bool // false once retired past EndTime, while serving a taxi ride, or while a pool ride fills its capacity

	Travellers          []string // traveller ids currently aboard
	ScheduledTravellers []string // traveller ids committed but not yet picked up

	Path Path
}

// Occupancy returns how many travellers are presently aboard plus scheduled
// to board, the figure a dispatcher's capacity check compares against
// Capacity.
func (v *Vehicle) Occupancy() int {
	return len(v.Travellers) + len(v.ScheduledTravellers)
}

// HasCapacityFor reports whether n additional travellers fit.
func (v *Vehicle) HasCapacityFor(n int) bool {
	return v.Occupancy()+n <= v.Capacity
}

// Retire marks a vehicle permanently unavailable. The event loop's EndTime
// check sets Available directly and does not call it.
func (v *Vehicle) Retire() {
	v.Available = false
}
