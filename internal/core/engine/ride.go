// Package engine implements the CORE state machine: C3 ride economics, C4
// vehicle movement, C5 dispatch matching, and C6 the chronological event
// loop that drives them.
package engine

import (
	"context"
	"fmt"

	"github.com/ridesim/dispatch/internal/core/domain"
	"github.com/ridesim/dispatch/internal/core/ports"
)

// nodesOf flattens an ordered stop list to the node sequence a Skim query
// takes.
func nodesOf(stops []domain.Stop) []domain.NodeID {
	nodes := make([]domain.NodeID, len(stops))
	for i, s := range stops {
		nodes[i] = s.Node
	}
	return nodes
}

// TaxiProfitability implements the §4.3 Taxi profitability formula:
// revenue is the trip fare, cost is deadhead-plus-trip distance at the
// operator's per-meter operating cost.
func TaxiProfitability(ctx context.Context, skim ports.Skim, vehicle *domain.Vehicle, traveller *domain.Traveller, fare, opCost float64) (domain.Profitability, error) {
	deadhead, err := skim.Distance(ctx, []domain.NodeID{vehicle.Path.CurrentPosition, traveller.Origin})
	if err != nil {
		return domain.Profitability{}, fmt.Errorf("taxi deadhead: %w", err)
	}
	revenue := traveller.TripLength * fare
	cost := (deadhead + traveller.TripLength) * opCost
	return domain.Profitability{Revenue: revenue, Cost: cost, Profit: revenue - cost}, nil
}

// TaxiUtility implements the §4.3 Taxi utility formula. pickupDelaySeconds,
// when nil, is computed as deadhead/speed.
func TaxiUtility(ctx context.Context, skim ports.Skim, vehicle *domain.Vehicle, traveller *domain.Traveller, fare float64, pickupDelaySeconds *float64) (float64, error) {
	delay := 0.0
	if pickupDelaySeconds != nil {
		delay = *pickupDelaySeconds
	} else {
		deadhead, err := skim.Distance(ctx, []domain.NodeID{vehicle.Path.CurrentPosition, traveller.Origin})
		if err != nil {
			return 0, fmt.Errorf("taxi pickup delay: %w", err)
		}
		delay = deadhead / vehicle.Speed
	}
	b := traveller.Behaviour
	u := -traveller.TripLength*fare -
		(traveller.TripLength/vehicle.Speed)*b.ValueOfTime -
		delay*b.ValueOfTime*b.PickupDelaySensitivity
	return u, nil
}

// effectiveTripDistance computes the distance a traveller experiences under
// a candidate pool stop sequence: from their past pickup (if already
// aboard) or from the vehicle's current position (if not), through the
// sequence, up to and including their own dropoff node.
func effectiveTripDistance(ctx context.Context, skim ports.Skim, vehicle *domain.Vehicle, travellerID string, stopSeq []domain.Stop, alreadyPickedUp bool, pastOrigin *domain.NodeID) (float64, error) {
	var trail []domain.NodeID
	if alreadyPickedUp && pastOrigin != nil {
		trail = append(trail, *pastOrigin)
	}
	trail = append(trail, vehicle.Path.CurrentPosition)

	for _, s := range stopSeq {
		trail = append(trail, s.Node)
		if s.TravellerID == travellerID && s.Kind == domain.KindDropoff {
			break
		}
	}
	d, err := skim.Distance(ctx, trail)
	if err != nil {
		return 0, fmt.Errorf("pool effective distance: %w", err)
	}
	return d, nil
}

// pickupDelayFor returns the seconds until travellerID's own pickup under
// stopSeq, zero if they are already aboard.
func pickupDelayFor(ctx context.Context, skim ports.Skim, vehicle *domain.Vehicle, travellerID string, stopSeq []domain.Stop, alreadyPickedUp bool) (float64, error) {
	if alreadyPickedUp {
		return 0, nil
	}
	trail := []domain.NodeID{vehicle.Path.CurrentPosition}
	for _, s := range stopSeq {
		trail = append(trail, s.Node)
		if s.TravellerID == travellerID && s.Kind == domain.KindPickup {
			break
		}
	}
	d, err := skim.Distance(ctx, trail)
	if err != nil {
		return 0, fmt.Errorf("pool pickup delay: %w", err)
	}
	return d / vehicle.Speed, nil
}

// PoolUtility implements the §4.3 Pool utility formula for one traveller
// under a candidate stop sequence with N total co-riders.
func PoolUtility(ctx context.Context, skim ports.Skim, vehicle *domain.Vehicle, traveller *domain.Traveller, stopSeq []domain.Stop, fare, poolDiscount float64, alreadyPickedUp bool, pastOrigin *domain.NodeID, coRiderCount int) (float64, error) {
	tripLength, err := effectiveTripDistance(ctx, skim, vehicle, traveller.ID, stopSeq, alreadyPickedUp, pastOrigin)
	if err != nil {
		return 0, err
	}
	pickupDelay, err := pickupDelayFor(ctx, skim, vehicle, traveller.ID, stopSeq, alreadyPickedUp)
	if err != nil {
		return 0, err
	}

	b := traveller.Behaviour
	pfs := b.PenaltyForSharing(coRiderCount)
	u := -tripLength*fare*(1-poolDiscount) -
		(tripLength/vehicle.Speed)*b.ValueOfTime*pfs -
		pickupDelay*b.ValueOfTime*b.PickupDelaySensitivity -
		b.PfSConst
	return u, nil
}

// PoolProfitability implements the §4.3 Pool profitability formula.
// travellers supplies every traveller on the ride (the one being inserted
// included, when evaluating an insertion), each carrying its direct
// origin->destination TripLength. The cost trail is the ride's past stop
// nodes followed by newStops.
func PoolProfitability(ctx context.Context, skim ports.Skim, ride *domain.PoolRide, vehicle *domain.Vehicle, fare, opCost, sharingDiscount float64, newStops []domain.Stop, travellers []*domain.Traveller, shared bool) (domain.Profitability, error) {
	var revenue float64
	if shared {
		var sumTrip float64
		for _, t := range travellers {
			sumTrip += t.TripLength
		}
		revenue = (1 - sharingDiscount) * fare * sumTrip
	} else if len(travellers) == 1 {
		revenue = fare * travellers[0].TripLength
	}

	trail := []domain.NodeID{}
	for _, s := range ride.PastDestPoints {
		trail = append(trail, s.Node)
	}
	trail = append(trail, nodesOf(newStops)...)
	d, err := skim.Distance(ctx, trail)
	if err != nil {
		return domain.Profitability{}, fmt.Errorf("pool cost trail: %w", err)
	}
	cost := opCost * d
	return domain.Profitability{Revenue: revenue, Cost: cost, Profit: revenue - cost}, nil
}

// AddTraveller implements §4.3 addTraveller: it merges a newly committed
// traveller into ride, moves them onto the vehicle's scheduledTravellers,
// flips the vehicle unavailable if capacity is now exhausted, and rebuilds
// the vehicle's currentPath from its current position through the new stop
// sequence.
func AddTraveller(ctx context.Context, skim ports.Skim, ride *domain.PoolRide, vehicle *domain.Vehicle, traveller *domain.Traveller, profit domain.Profitability, newStopSeq []domain.Stop, admissibleCombs [][]domain.Stop) error {
	vehicle.ScheduledTravellers = append(vehicle.ScheduledTravellers, traveller.ID)
	if vehicle.Occupancy() >= vehicle.Capacity {
		vehicle.Available = false
	}

	path, err := skim.Path(ctx, append([]domain.NodeID{vehicle.Path.CurrentPosition}, nodesOf(newStopSeq)...))
	if err != nil {
		return fmt.Errorf("rebuild vehicle path: %w", err)
	}
	vehicle.Path.CurrentPath = path
	if len(path) > 1 {
		next := path[1]
		vehicle.Path.ClosestCrossroad = &next
	}
	vehicle.Path.Stationary = false

	ride.AddTraveller(traveller, newStopSeq, admissibleCombs, profit)
	return nil
}
