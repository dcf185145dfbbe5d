package domain

// RideType distinguishes the two C3 Ride variants spec'd for this engine.
type RideType string

const (
	RideTaxi RideType = "taxi"
	RidePool RideType = "pool"
)

// Profitability is the revenue/cost/profit triple a dispatcher compares
// candidate rides by.
type Profitability struct {
	Revenue float64
	Cost    float64
	Profit  float64
}

// Ride is the common surface TaxiRide and PoolRide satisfy, letting the
// dispatcher and reportwriter adapter handle both uniformly.
type Ride interface {
	RideID() string
	Type() RideType
	IsActive() bool
	SetActive(bool)
	TravellerIDs() []string
	DestinationPoints() []Stop
	PastDestinationPoints() []Stop
	ServingVehicle() string
	GetProfitability() Profitability
	SetProfitability(Profitability)
	AppendEvent(VehicleEvent)
	Events() []VehicleEvent
	RemoveTraveller(id string)
}

// RideBase holds the fields every ride variant shares; TaxiRide and PoolRide
// embed it by value and inherit its methods through promotion.
type RideBase struct {
	ID                    string
	Travellers            []string
	DestPoints            []Stop
	PastDestPoints        []Stop
	Vehicle               string
	Active                bool
	Profit                Profitability
	EventLog              []VehicleEvent
}

func (r *RideBase) RideID() string                  { return r.ID }
func (r *RideBase) IsActive() bool                  { return r.Active }
func (r *RideBase) SetActive(active bool)           { r.Active = active }
func (r *RideBase) TravellerIDs() []string          { return r.Travellers }
func (r *RideBase) DestinationPoints() []Stop       { return r.DestPoints }
func (r *RideBase) PastDestinationPoints() []Stop   { return r.PastDestPoints }
func (r *RideBase) ServingVehicle() string          { return r.Vehicle }
func (r *RideBase) GetProfitability() Profitability { return r.Profit }
func (r *RideBase) SetProfitability(p Profitability) { r.Profit = p }
func (r *RideBase) AppendEvent(e VehicleEvent)      { r.EventLog = append(r.EventLog, e) }
func (r *RideBase) Events() []VehicleEvent          { return r.EventLog }

// RemoveTraveller drops id from the ride's roster, fired on dropoff.
func (r *RideBase) RemoveTraveller(id string) {
	out := r.Travellers[:0]
	for _, t := range r.Travellers {
		if t != id {
			out = append(out, t)
		}
	}
	r.Travellers = out
}

// AdvanceStop pops the next destination point off DestPoints onto
// PastDestPoints.
func (r *RideBase) AdvanceStop() (Stop, bool) {
	if len(r.DestPoints) == 0 {
		return Stop{}, false
	}
	next := r.DestPoints[0]
	r.DestPoints = r.DestPoints[1:]
	r.PastDestPoints = append(r.PastDestPoints, next)
	return next, true
}

// TaxiRide is a private, single-traveller ride: exactly one pickup and one
// dropoff, never re-opened to additional travellers.
type TaxiRide struct {
	RideBase
}

func NewTaxiRide(id, vehicleID string, traveller *Traveller) *TaxiRide {
	return &TaxiRide{RideBase: RideBase{
		ID:         id,
		Travellers: []string{traveller.ID},
		Vehicle:    vehicleID,
		Active:     true,
		DestPoints: []Stop{
			{Node: traveller.Origin, Kind: KindPickup, TravellerID: traveller.ID},
			{Node: traveller.Destination, Kind: KindDropoff, TravellerID: traveller.ID},
		},
	}}
}

func (r *TaxiRide) Type() RideType { return RideTaxi }

// PoolRide is a shared ride: an ordered multi-stop itinerary serving more
// than one traveller at once, subject to the pickup/detour bounds the
// combination enumerator checks.
type PoolRide struct {
	RideBase

	// AdmissibleCombinations holds the stop orderings recorded when the
	// ride last committed a traveller (the enumerator's other feasible
	// orderings, the chosen one excluded). The next insertion enumerates
	// from these, and the Vehicle Mover prunes fired stops from each.
	AdmissibleCombinations [][]Stop
	Shared                 bool
}

func NewPoolRide(id, vehicleID string, traveller *Traveller) *PoolRide {
	return &PoolRide{RideBase: RideBase{
		ID:         id,
		Travellers: []string{traveller.ID},
		Vehicle:    vehicleID,
		Active:     true,
		DestPoints: []Stop{
			{Node: traveller.Origin, Kind: KindPickup, TravellerID: traveller.ID},
			{Node: traveller.Destination, Kind: KindDropoff, TravellerID: traveller.ID},
		},
	}}
}

func (r *PoolRide) Type() RideType { return RidePool }

// AddTraveller merges a newly-committed traveller into an already-active
// pool ride: it appends the traveller id, installs the enumerator's chosen
// stop ordering, marks the ride Shared, and replaces the cached admissible
// combinations with the ones still valid after the merge.
func (r *PoolRide) AddTraveller(traveller *Traveller, newStopOrder []Stop, remainingCombinations [][]Stop, profit Profitability) {
	r.Travellers = append(r.Travellers, traveller.ID)
	r.DestPoints = newStopOrder
	r.AdmissibleCombinations = remainingCombinations
	r.Shared = true
	r.Profit = profit
}
