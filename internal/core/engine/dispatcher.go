package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ridesim/dispatch/internal/core/domain"
	"github.com/ridesim/dispatch/internal/core/matching"
	"github.com/ridesim/dispatch/internal/core/ports"
	"github.com/ridesim/dispatch/internal/core/simerr"
)

// MatchOptions replaces the source's keyword-argument flags with an
// explicit option record, per the §9 design note. The zero value turns
// every flag off, both filters included; DefaultMatchOptions gives the
// §4.5 documented defaults.
type MatchOptions struct {
	EmptyPoolOnly  bool
	OnlyTaxi       bool
	AttractiveOnly bool
	ProfitableOnly bool
}

// DefaultMatchOptions are the defaults named in §4.5: both filters on.
func DefaultMatchOptions() MatchOptions {
	return MatchOptions{AttractiveOnly: true, ProfitableOnly: true}
}

// FindClosestVehicle implements §4.5 findClosestVehicle: scans every
// vehicle of the allowed types, skipping unavailable ones and, when
// emptyPoolOnly is set, any vehicle already carrying or scheduled to carry
// travellers. Ties are broken by fleet scan order.
func FindClosestVehicle(ctx context.Context, skim ports.Skim, operator *domain.Operator, origin domain.NodeID, allowedTypes []domain.VehicleType, emptyPoolOnly bool) (time.Duration, *domain.Vehicle, bool) {
	var best *domain.Vehicle
	var bestTime time.Duration

	for _, v := range operator.Vehicles(allowedTypes...) {
		if !v.Available {
			continue
		}
		if emptyPoolOnly && (len(v.Travellers) > 0 || len(v.ScheduledTravellers) > 0) {
			continue
		}
		d, err := skim.Distance(ctx, []domain.NodeID{origin, v.Path.CurrentPosition})
		if err != nil {
			continue
		}
		t := time.Duration(d / v.Speed * float64(time.Second))
		if best == nil || t < bestTime {
			best, bestTime = v, t
		}
	}
	if best == nil {
		return 0, nil, false
	}
	return bestTime, best, true
}

// TaxiCandidate implements §4.5 taxiUtility: it builds a fresh TaxiRide
// candidate over the closest eligible vehicle without committing anything.
func TaxiCandidate(ctx context.Context, skim ports.Skim, operator *domain.Operator, traveller *domain.Traveller, opts MatchOptions, fare, opCost float64) (*domain.TaxiRide, *domain.Vehicle, domain.Profitability, float64, bool, error) {
	types := []domain.VehicleType{domain.VehicleTaxi}
	if !opts.OnlyTaxi {
		types = append(types, domain.VehiclePool)
	}
	emptyPoolOnly := !opts.OnlyTaxi

	_, vehicle, ok := FindClosestVehicle(ctx, skim, operator, traveller.Origin, types, emptyPoolOnly)
	if !ok {
		return nil, nil, domain.Profitability{}, 0, false, nil
	}

	ride := domain.NewTaxiRide(fmt.Sprintf("taxi-%s", traveller.ID), vehicle.ID, traveller)
	profit, err := TaxiProfitability(ctx, skim, vehicle, traveller, fare, opCost)
	if err != nil {
		return nil, nil, domain.Profitability{}, 0, false, err
	}
	utility, err := TaxiUtility(ctx, skim, vehicle, traveller, fare, nil)
	if err != nil {
		return nil, nil, domain.Profitability{}, 0, false, err
	}
	return ride, vehicle, profit, utility, true, nil
}

// PoolCandidate is one surviving insertion sequence from §4.5 step 2,
// carrying everything AssignPool needs to commit it.
type PoolCandidate struct {
	Ride       *domain.PoolRide
	Vehicle    *domain.Vehicle
	Sequence   []domain.Stop
	Profit     domain.Profitability
	Utilities  map[string]float64 // traveller id -> shared utility under this sequence
	Admissible [][]domain.Stop
}

// PoolMatchResult bundles the sorted candidate list and the taxi fallback
// from §4.5 poolUtility.
type PoolMatchResult struct {
	Candidates   []PoolCandidate // ascending by profit; best is last
	TaxiFallback *PoolCandidate
}

// PoolUtilityEval implements §4.5 poolUtility.
func PoolUtilityEval(
	ctx context.Context,
	skim ports.Skim,
	operator *domain.Operator,
	traveller *domain.Traveller,
	pools []*domain.PoolRide,
	travellers Travellers,
	opts MatchOptions,
	fare, poolDiscount, opCost, sharingDiscount float64,
) (PoolMatchResult, error) {
	var result PoolMatchResult
	maxPickupTime := traveller.Behaviour.MaxPickup

	// 1. Taxi fallback.
	approach, emptyVeh, ok := FindClosestVehicle(ctx, skim, operator, traveller.Origin, []domain.VehicleType{domain.VehiclePool}, true)
	if ok && approach <= maxPickupTime {
		ride := domain.NewPoolRide(fmt.Sprintf("pool-%s", traveller.ID), emptyVeh.ID, traveller)
		utility, err := TaxiUtility(ctx, skim, emptyVeh, traveller, fare, nil)
		if err != nil {
			return result, err
		}
		// Recorded as the solo taxi baseline Filter A compares every
		// candidate sequence's shared utility against, even when a pool
		// candidate ends up chosen instead of this fallback.
		traveller.Utilities[domain.ServiceTaxi] = utility

		profit, err := PoolProfitability(ctx, skim, ride, emptyVeh, fare, opCost, sharingDiscount, ride.DestinationPoints(), []*domain.Traveller{traveller}, false)
		if err != nil {
			return result, err
		}
		result.TaxiFallback = &PoolCandidate{
			Ride: ride, Vehicle: emptyVeh, Sequence: ride.DestinationPoints(),
			Profit: profit, Utilities: map[string]float64{traveller.ID: utility},
		}
	}

	// 2. Pool enumeration.
	for _, ride := range pools {
		if len(ride.TravellerIDs()) == 0 || !ride.IsActive() {
			continue
		}
		vehicle := findVehicleByID(operator, ride.ServingVehicle())
		if vehicle == nil {
			continue
		}

		maxDistancePickup := maxPickupTime.Seconds() * vehicle.Speed
		maxTripLength, err := matching.MaxTripLength(ctx, skim, vehicle.Path.CurrentPosition, ride, traveller.TripLength)
		if err != nil {
			return result, err
		}

		sequences, err := matching.Enumerate(ctx, skim, vehicle.Path.CurrentPosition, ride, traveller.ID, traveller.Origin, traveller.Destination, maxDistancePickup, maxTripLength)
		if err != nil {
			return result, err
		}

		for _, seq := range sequences {
			participants := participantTravellers(ride, traveller, travellers)
			coRiders := len(participants)

			utilities := make(map[string]float64, coRiders)
			attractive := true
			for _, p := range participants {
				alreadyPickedUp := pickedUp(ride, p.ID)
				var pastOrigin *domain.NodeID
				if alreadyPickedUp {
					po := findPastOrigin(ride, p.ID)
					pastOrigin = po
				}
				u, err := PoolUtility(ctx, skim, vehicle, p, seq, fare, poolDiscount, alreadyPickedUp, pastOrigin, coRiders)
				if err != nil {
					return result, err
				}
				utilities[p.ID] = u
				if opts.AttractiveOnly {
					baseline, ok := p.Utilities[domain.ServiceTaxi]
					if ok && u <= baseline {
						attractive = false
					}
				}
			}
			if opts.AttractiveOnly && !attractive {
				continue
			}

			profit, err := PoolProfitability(ctx, skim, ride, vehicle, fare, opCost, sharingDiscount, seq, participants, true)
			if err != nil {
				return result, err
			}
			if opts.ProfitableOnly && profit.Profit <= ride.GetProfitability().Profit {
				continue
			}

			result.Candidates = append(result.Candidates, PoolCandidate{
				Ride: ride, Vehicle: vehicle, Sequence: seq, Profit: profit,
				Utilities: utilities, Admissible: removeSequence(sequences, seq),
			})
		}
	}

	// Ascending by profit with ride ID (descending) as the tiebreak, so that
	// when two candidates tie on profit the lower ride ID ends up last and
	// is the one AssignPool commits — ties resolve by ride ID ascending.
	sort.Slice(result.Candidates, func(i, j int) bool {
		pi, pj := result.Candidates[i].Profit.Profit, result.Candidates[j].Profit.Profit
		if pi != pj {
			return pi < pj
		}
		return result.Candidates[i].Ride.RideID() > result.Candidates[j].Ride.RideID()
	})
	return result, nil
}

// removeSequence returns every candidate but the chosen one, leaving the
// rest as the ride's refreshed admissible-combinations cache.
func removeSequence(all [][]domain.Stop, chosen []domain.Stop) [][]domain.Stop {
	var rest [][]domain.Stop
	skipped := false
	for _, c := range all {
		if !skipped && stopSeqEqual(c, chosen) {
			skipped = true
			continue
		}
		rest = append(rest, c)
	}
	return rest
}

func stopSeqEqual(a, b []domain.Stop) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func findVehicleByID(operator *domain.Operator, id string) *domain.Vehicle {
	for _, v := range operator.Vehicles() {
		if v.ID == id {
			return v
		}
	}
	return nil
}

func participantTravellers(ride *domain.PoolRide, incoming *domain.Traveller, travellers Travellers) []*domain.Traveller {
	participants := make([]*domain.Traveller, 0, len(ride.TravellerIDs())+1)
	for _, id := range ride.TravellerIDs() {
		if t, ok := travellers[id]; ok {
			participants = append(participants, t)
		}
	}
	participants = append(participants, incoming)
	return participants
}

func pickedUp(ride *domain.PoolRide, travellerID string) bool {
	for _, s := range ride.PastDestinationPoints() {
		if s.TravellerID == travellerID && s.Kind == domain.KindPickup {
			return true
		}
	}
	return false
}

func findPastOrigin(ride *domain.PoolRide, travellerID string) *domain.NodeID {
	for _, s := range ride.PastDestinationPoints() {
		if s.TravellerID == travellerID && s.Kind == domain.KindPickup {
			n := s.Node
			return &n
		}
	}
	return nil
}

// AssignTaxi implements §4.5 assignTaxi: commits ride to vehicle, marks the
// vehicle unavailable and non-stationary, rebuilds its path, and records
// the traveller's taxi utility.
func AssignTaxi(ctx context.Context, skim ports.Skim, operator *domain.Operator, ride *domain.TaxiRide, vehicle *domain.Vehicle, traveller *domain.Traveller, profit domain.Profitability, utility float64) error {
	ride.Vehicle = vehicle.ID
	ride.Profit = profit
	ride.AppendEvent(domain.VehicleEvent{Time: vehicle.Path.CurrentTime, Node: vehicle.Path.CurrentPosition, Kind: domain.KindAssignment, TravellerID: traveller.ID})

	vehicle.Available = false
	vehicle.ScheduledTravellers = []string{traveller.ID}
	vehicle.Path.Stationary = false

	path, err := skim.Path(ctx, append([]domain.NodeID{vehicle.Path.CurrentPosition}, nodesOf(ride.DestinationPoints())...))
	if err != nil {
		return fmt.Errorf("assign taxi path: %w", err)
	}
	vehicle.Path.CurrentPath = path
	if len(path) > 1 {
		next := path[1]
		vehicle.Path.ClosestCrossroad = &next
	}

	traveller.ServedBy = domain.ServiceTaxi
	traveller.Utilities[domain.ServiceTaxi] = utility
	traveller.Distances[domain.ServiceTaxi] = traveller.TripLength

	operator.Fleet[vehicle.Type] = upsertVehicle(operator.Fleet[vehicle.Type], vehicle)
	operator.Rides[ride.ID] = ride
	return nil
}

// AssignPoolFresh commits a brand-new PoolRide (the §4.5 poolUtility taxi
// fallback, re-framed as a pool ride) the same way AssignTaxi commits a
// TaxiRide, but seeds the admissible-combinations cache with the
// destination points so future insertions have a base to enumerate from.
func AssignPoolFresh(ctx context.Context, skim ports.Skim, operator *domain.Operator, candidate PoolCandidate, traveller *domain.Traveller) error {
	ride, vehicle := candidate.Ride, candidate.Vehicle
	ride.Vehicle = vehicle.ID
	ride.Profit = candidate.Profit
	ride.AdmissibleCombinations = [][]domain.Stop{ride.DestinationPoints()}
	ride.AppendEvent(domain.VehicleEvent{Time: vehicle.Path.CurrentTime, Node: vehicle.Path.CurrentPosition, Kind: domain.KindAssignment, TravellerID: traveller.ID})

	vehicle.ScheduledTravellers = append(vehicle.ScheduledTravellers, traveller.ID)
	if vehicle.Occupancy() >= vehicle.Capacity {
		vehicle.Available = false
	}
	vehicle.Path.Stationary = false

	path, err := skim.Path(ctx, append([]domain.NodeID{vehicle.Path.CurrentPosition}, nodesOf(ride.DestinationPoints())...))
	if err != nil {
		return fmt.Errorf("assign pool path: %w", err)
	}
	vehicle.Path.CurrentPath = path
	if len(path) > 1 {
		next := path[1]
		vehicle.Path.ClosestCrossroad = &next
	}

	traveller.ServedBy = domain.ServicePool
	if u, ok := candidate.Utilities[traveller.ID]; ok {
		// A freshly-started pool ride is priced with the solo taxi formula
		// until another traveller is merged in; record it under both keys
		// so a later insertion's attractiveness filter has a baseline.
		traveller.Utilities[domain.ServiceTaxi] = u
		traveller.Utilities[domain.ServicePool] = u
	}
	traveller.Distances[domain.ServicePool] = traveller.TripLength

	operator.Fleet[vehicle.Type] = upsertVehicle(operator.Fleet[vehicle.Type], vehicle)
	operator.Rides[ride.ID] = ride
	return nil
}

// AssignPool implements §4.5 assignPool: it picks the highest-profit
// candidate (candidates is ascending, so the last one), records every
// participant's pool utility, and folds the new traveller into the ride via
// C3's AddTraveller.
func AssignPool(ctx context.Context, skim ports.Skim, candidates []PoolCandidate, traveller *domain.Traveller, travellers Travellers) error {
	if len(candidates) == 0 {
		return fmt.Errorf("%w: no pool candidates to assign", simerr.ErrNoFeasibleVehicle)
	}
	best := candidates[len(candidates)-1]

	for id, u := range best.Utilities {
		if t, ok := travellers[id]; ok {
			t.Utilities[domain.ServicePool] = u
		}
	}
	traveller.ServedBy = domain.ServicePool
	traveller.Distances[domain.ServicePool] = traveller.TripLength

	return AddTraveller(ctx, skim, best.Ride, best.Vehicle, traveller, best.Profit, best.Sequence, best.Admissible)
}

// ActivePoolRides returns every active pool ride an operator is currently
// running, ordered by ride ID ascending. operator.Rides is a map, so this
// is the one place callers should read it from when the resulting order
// feeds a ranking that must be reproducible run to run.
func ActivePoolRides(operator *domain.Operator) []*domain.PoolRide {
	ids := make([]string, 0, len(operator.Rides))
	byID := make(map[string]*domain.PoolRide, len(operator.Rides))
	for id, r := range operator.Rides {
		if pr, ok := r.(*domain.PoolRide); ok && pr.IsActive() {
			ids = append(ids, id)
			byID[id] = pr
		}
	}
	sort.Strings(ids)

	pools := make([]*domain.PoolRide, len(ids))
	for i, id := range ids {
		pools[i] = byID[id]
	}
	return pools
}

func upsertVehicle(fleet []*domain.Vehicle, vehicle *domain.Vehicle) []*domain.Vehicle {
	for _, v := range fleet {
		if v.ID == vehicle.ID {
			return fleet
		}
	}
	return append(fleet, vehicle)
}
