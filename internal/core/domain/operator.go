package domain

// Operator owns one fleet; its per-kind fare tables live in the engine's
// Simulation instead, keyed by operator name, since a dispatcher prices
// candidates against the specific run's configured fares rather than a
// value carried on the domain object itself.
type Operator struct {
	Name  string
	Fleet map[VehicleType][]*Vehicle

	Rides map[string]Ride // active and past rides, keyed by ride id
}

// NewOperator builds an Operator with its maps initialized.
func NewOperator(name string) *Operator {
	return &Operator{
		Name:  name,
		Fleet: make(map[VehicleType][]*Vehicle),
		Rides: make(map[string]Ride),
	}
}

// Vehicles returns every vehicle in the fleet matching any of the given
// types, or the whole fleet when no types are given.
func (o *Operator) Vehicles(types ...VehicleType) []*Vehicle {
	if len(types) == 0 {
		var all []*Vehicle
		for _, vs := range o.Fleet {
			all = append(all, vs...)
		}
		return all
	}
	var filtered []*Vehicle
	for _, t := range types {
		filtered = append(filtered, o.Fleet[t]...)
	}
	return filtered
}
