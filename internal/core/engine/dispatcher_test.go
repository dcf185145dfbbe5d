package engine

import (
	"context"
	"testing"

	"github.com/ridesim/dispatch/internal/core/domain"
)

func newTestPoolVehicle(id string, pos domain.NodeID, scheduledTraveller string) *domain.Vehicle {
	v := newTestVehicle(id, pos, 1.0, 4)
	v.Type = domain.VehiclePool
	v.ScheduledTravellers = []string{scheduledTraveller}
	return v
}

func newTestPoolTraveller(id string, origin, dest domain.NodeID, tripLength float64) *domain.Traveller {
	t := newTestTraveller(id, origin, dest, tripLength)
	t.RequestedKind = domain.ServicePool
	return t
}

// TestPoolInsertionScenario reproduces the "insert a second rider into an
// active pool ride" fixture: one pool ride already carrying rider A, a
// second request from rider C that fits within the pickup/detour bounds.
// PoolUtilityEval should surface it as a candidate, and AssignPool should
// merge C into the existing ride rather than opening a new one.
func TestPoolInsertionScenario(t *testing.T) {
	ctx := context.Background()
	skim := linearSkim{stepMeters: 1000}

	travellerA := newTestPoolTraveller("A", 0, 2, 2000)
	vehicle := newTestPoolVehicle("V1", 0, "A")
	ride := domain.NewPoolRide("pool-a", vehicle.ID, travellerA)

	operator := domain.NewOperator("CityCab")
	operator.Fleet[domain.VehiclePool] = []*domain.Vehicle{vehicle}
	operator.Rides[ride.ID] = ride

	travellers := Travellers{"A": travellerA}
	travellerC := newTestPoolTraveller("C", 0, 4, 4000)

	match, err := PoolUtilityEval(ctx, skim, operator, travellerC, ActivePoolRides(operator), travellers, DefaultMatchOptions(), 1.0, 0.0, 0.1, 0.0)
	if err != nil {
		t.Fatalf("PoolUtilityEval: %v", err)
	}
	if len(match.Candidates) == 0 {
		t.Fatalf("expected at least one pool insertion candidate")
	}

	if err := AssignPool(ctx, skim, match.Candidates, travellerC, travellers); err != nil {
		t.Fatalf("AssignPool: %v", err)
	}

	if travellerC.ServedBy != domain.ServicePool {
		t.Errorf("traveller C served by %v, want pool", travellerC.ServedBy)
	}
	if !ride.Shared {
		t.Errorf("ride should be marked shared once a second traveller is merged in")
	}
	if len(ride.TravellerIDs()) != 2 {
		t.Fatalf("expected 2 travellers on the ride, got %d: %v", len(ride.TravellerIDs()), ride.TravellerIDs())
	}
}

// TestPoolMatchTieBreaksByRideIDAscending reproduces two pool rides that
// are indistinguishable on profit — same vehicle position, same onboard
// rider, same detour — and checks that PoolUtilityEval's candidate order
// resolves the tie deterministically: AssignPool always commits the same
// one (the lowest ride ID) instead of whichever the runtime's map
// iteration happened to visit last.
func TestPoolMatchTieBreaksByRideIDAscending(t *testing.T) {
	ctx := context.Background()
	skim := linearSkim{stepMeters: 1000}

	travellerA1 := newTestPoolTraveller("A1", 0, 2, 2000)
	travellerA2 := newTestPoolTraveller("A2", 0, 2, 2000)
	vehicle1 := newTestPoolVehicle("V1", 0, "A1")
	vehicle2 := newTestPoolVehicle("V2", 0, "A2")

	rideLo := domain.NewPoolRide("pool-a", vehicle1.ID, travellerA1) // lexicographically smallest
	rideHi := domain.NewPoolRide("pool-b", vehicle2.ID, travellerA2)

	operator := domain.NewOperator("CityCab")
	operator.Fleet[domain.VehiclePool] = []*domain.Vehicle{vehicle1, vehicle2}
	operator.Rides[rideLo.ID] = rideLo
	operator.Rides[rideHi.ID] = rideHi

	travellers := Travellers{"A1": travellerA1, "A2": travellerA2}
	travellerC := newTestPoolTraveller("C", 0, 4, 4000)

	for i := 0; i < 20; i++ {
		match, err := PoolUtilityEval(ctx, skim, operator, travellerC, ActivePoolRides(operator), travellers, DefaultMatchOptions(), 1.0, 0.0, 0.1, 0.0)
		if err != nil {
			t.Fatalf("PoolUtilityEval: %v", err)
		}
		if len(match.Candidates) < 2 {
			t.Fatalf("expected candidates from both tied rides, got %d", len(match.Candidates))
		}

		// Both rides are symmetric (same vehicle position, same onboard
		// rider, same detour), so the best sequence from each must tie on
		// profit. AssignPool always takes the last candidate, so it must
		// resolve to the ride with the lexicographically smallest ID.
		best := match.Candidates[len(match.Candidates)-1]
		if best.Ride.RideID() != "pool-a" {
			t.Fatalf("run %d: AssignPool would commit %q, want the ascending tiebreak winner %q", i, best.Ride.RideID(), "pool-a")
		}
	}
}
