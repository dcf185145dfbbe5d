package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ridesim/dispatch/internal/core/domain"
	"github.com/ridesim/dispatch/internal/core/ports"
	"github.com/ridesim/dispatch/internal/core/simerr"
)

// PoolCapacityFreed controls whether a pool vehicle becomes available again
// as soon as any traveller is dropped off (freeing a seat) or only once the
// ride is fully empty. Default is per-dropoff, the latest-source behaviour
// recorded as the resolution of this option.
type PoolCapacityFreed bool

const (
	FreedPerDropoff PoolCapacityFreed = true
	FreedAtEmpty    PoolCapacityFreed = false
)

// Travellers is the simulation-global registry a Mover/Dispatcher look
// travellers up in; rides and vehicles only hold traveller ids.
type Travellers map[string]*domain.Traveller

// Publisher is satisfied by anything that wants to observe fired events
// without the engine importing the ports/adapters packages directly.
type Publisher interface {
	Publish(event domain.VehicleEvent)
}

// NoopPublisher discards every event; used when no log/feed sink is wired,
// matching the §6 requirement that the core function correctly with no
// sink attached.
type NoopPublisher struct{}

func (NoopPublisher) Publish(domain.VehicleEvent) {}

// Move implements the C4 Vehicle Mover: it advances vehicle by delta along
// ride's planned path, firing checkEvents at every node boundary crossed.
func Move(ctx context.Context, skim ports.Skim, vehicle *domain.Vehicle, ride domain.Ride, travellers Travellers, delta time.Duration, capacityPolicy PoolCapacityFreed, pub Publisher) error {
	if pub == nil {
		pub = NoopPublisher{}
	}
	remaining := delta

	for vehicle.Path.CurrentPath != nil && remaining > 0 {
		if vehicle.Path.ClosestCrossroad == nil {
			return fmt.Errorf("%w: vehicle %s has a path but no closest crossroad", simerr.ErrInvariantViolation, vehicle.ID)
		}

		l, err := skim.Distance(ctx, []domain.NodeID{vehicle.Path.CurrentPosition, *vehicle.Path.ClosestCrossroad})
		if err != nil {
			return fmt.Errorf("edge distance: %w", err)
		}
		edgeDuration := time.Duration(l / vehicle.Speed * float64(time.Second))
		tau := edgeDuration - vehicle.Path.TimeBetweenCrossroads

		if remaining < tau {
			vehicle.Path.TimeBetweenCrossroads += remaining
			vehicle.Path.CurrentTime = vehicle.Path.CurrentTime.Add(remaining)
			checkEvents(ride, vehicle, travellers, capacityPolicy, pub)
			remaining = 0
			break
		}

		checkEvents(ride, vehicle, travellers, capacityPolicy, pub)

		vehicle.Path.Mileage += l
		if len(vehicle.Travellers) > 0 {
			vehicle.Path.OccupiedMileage += l
		}
		remaining -= tau
		vehicle.Path.CurrentTime = vehicle.Path.CurrentTime.Add(tau)
		vehicle.Path.CurrentPath = vehicle.Path.CurrentPath[1:]
		vehicle.Path.CurrentPosition = *vehicle.Path.ClosestCrossroad
		vehicle.Path.TimeBetweenCrossroads = 0

		for _, tid := range vehicle.Travellers {
			if t, ok := travellers[tid]; ok {
				t.Distances[t.ServedBy] += l
			}
		}

		checkEvents(ride, vehicle, travellers, capacityPolicy, pub)

		if len(vehicle.Path.CurrentPath) <= 1 {
			vehicle.Path.CurrentPath = nil
			vehicle.Path.ClosestCrossroad = nil
			vehicle.Path.Stationary = true
			vehicle.Available = true
			ride.SetActive(false)
		} else {
			next := vehicle.Path.CurrentPath[1]
			vehicle.Path.ClosestCrossroad = &next
		}

		checkEvents(ride, vehicle, travellers, capacityPolicy, pub)
	}

	if !vehicle.Path.CurrentTime.Before(vehicle.EndTime) {
		vehicle.Available = false
	}
	return nil
}

// checkEvents implements the §4.4 checkEvents routine: every stop in
// ride.destinationPoints whose node equals the vehicle's current position
// fires its side effect and moves from destinationPoints to
// pastDestinationPoints, removing itself from every cached admissible
// combination along the way.
func checkEvents(ride domain.Ride, vehicle *domain.Vehicle, travellers Travellers, capacityPolicy PoolCapacityFreed, pub Publisher) {
	for {
		pts := ride.DestinationPoints()
		idx := -1
		for i, s := range pts {
			if s.Node == vehicle.Path.CurrentPosition {
				idx = i
				break
			}
		}
		if idx == -1 {
			return
		}
		stop := pts[idx]
		ev := domain.VehicleEvent{Time: vehicle.Path.CurrentTime, Node: stop.Node, Kind: stop.Kind, TravellerID: stop.TravellerID}

		switch stop.Kind {
		case domain.KindPickup:
			removeString(&vehicle.ScheduledTravellers, stop.TravellerID)
			vehicle.Travellers = append(vehicle.Travellers, stop.TravellerID)

		case domain.KindDropoff:
			removeString(&vehicle.Travellers, stop.TravellerID)
			ride.RemoveTraveller(stop.TravellerID)
			if bool(capacityPolicy) {
				vehicle.Available = true
			}

		case domain.KindAssignment:
			vehicle.ScheduledTravellers = append(vehicle.ScheduledTravellers, stop.TravellerID)
		}

		ride.AppendEvent(ev)
		vehicle.Path.Events = append(vehicle.Path.Events, ev)
		pub.Publish(ev)

		advanceRideStop(ride, idx)

		if pr, ok := ride.(*domain.PoolRide); ok {
			pr.AdmissibleCombinations = pruneCombinations(pr.AdmissibleCombinations, stop)
			if !bool(capacityPolicy) && stop.Kind == domain.KindDropoff && len(pr.TravellerIDs()) == 0 {
				vehicle.Available = true
			}
		}
		if len(ride.TravellerIDs()) == 0 {
			ride.SetActive(false)
		}
	}
}

// advanceRideStop removes the stop at idx from destinationPoints and
// appends it to pastDestinationPoints, regardless of whether it was the
// head of the list (checkEvents may fire out of order when two stops share
// a node).
func advanceRideStop(ride domain.Ride, idx int) {
	switch r := ride.(type) {
	case *domain.TaxiRide:
		s := r.DestPoints[idx]
		r.DestPoints = append(r.DestPoints[:idx], r.DestPoints[idx+1:]...)
		r.PastDestPoints = append(r.PastDestPoints, s)
	case *domain.PoolRide:
		s := r.DestPoints[idx]
		r.DestPoints = append(r.DestPoints[:idx], r.DestPoints[idx+1:]...)
		r.PastDestPoints = append(r.PastDestPoints, s)
	}
}

// pruneCombinations drops the fired stop from every cached admissible
// combination, preserving relative order.
func pruneCombinations(combs [][]domain.Stop, fired domain.Stop) [][]domain.Stop {
	pruned := make([][]domain.Stop, 0, len(combs))
	for _, c := range combs {
		next := make([]domain.Stop, 0, len(c))
		for _, s := range c {
			if s.Node == fired.Node && s.Kind == fired.Kind && s.TravellerID == fired.TravellerID {
				continue
			}
			next = append(next, s)
		}
		pruned = append(pruned, next)
	}
	return pruned
}

func removeString(s *[]string, v string) {
	out := (*s)[:0]
	for _, x := range *s {
		if x != v {
			out = append(out, x)
		}
	}
	*s = out
}
