package engine

import (
	"context"
	"testing"
	"time"

	"github.com/ridesim/dispatch/internal/core/domain"
)

// TestMoveSingleTaxiScenario reproduces the "single taxi" end-to-end
// fixture: graph A(0)—B(1)—C(2), 1000m legs, vehicle at A picks up a
// traveller bound for C and is dropped off there.
func TestMoveSingleTaxiScenario(t *testing.T) {
	skim := linearSkim{stepMeters: 1000}
	ctx := context.Background()

	traveller := newTestTraveller("T1", 0, 2, 2000)
	traveller.ServedBy = domain.ServiceTaxi

	vehicle := newTestVehicle("V1", 0, 1.0, 1)
	vehicle.Path.Stationary = false
	path, err := skim.Path(ctx, []domain.NodeID{0, 2})
	if err != nil {
		t.Fatalf("skim path: %v", err)
	}
	vehicle.Path.CurrentPath = path
	next := path[1]
	vehicle.Path.ClosestCrossroad = &next
	vehicle.ScheduledTravellers = []string{traveller.ID}
	vehicle.Available = false
	vehicle.EndTime = time.Unix(3600, 0)

	ride := domain.NewTaxiRide("taxi-T1", vehicle.ID, traveller)

	travellers := Travellers{traveller.ID: traveller}

	if err := Move(ctx, skim, vehicle, ride, travellers, 2001*time.Second, FreedPerDropoff, NoopPublisher{}); err != nil {
		t.Fatalf("Move: %v", err)
	}

	if vehicle.Path.Mileage != 2000 {
		t.Errorf("mileage = %v, want 2000", vehicle.Path.Mileage)
	}
	if ride.IsActive() {
		t.Errorf("ride should be inactive after dropoff")
	}
	if !vehicle.Available {
		t.Errorf("vehicle should be available again after dropoff")
	}
	if len(vehicle.Travellers) != 0 {
		t.Errorf("vehicle should carry no travellers after dropoff, got %v", vehicle.Travellers)
	}

	var gotPickup, gotDropoff bool
	var pickupIdx, dropoffIdx = -1, -1
	for i, e := range ride.Events() {
		if e.Kind == domain.KindPickup && e.TravellerID == "T1" {
			gotPickup = true
			pickupIdx = i
		}
		if e.Kind == domain.KindDropoff && e.TravellerID == "T1" {
			gotDropoff = true
			dropoffIdx = i
		}
	}
	if !gotPickup || !gotDropoff {
		t.Fatalf("expected one pickup and one dropoff event, got %v", ride.Events())
	}
	if pickupIdx >= dropoffIdx {
		t.Errorf("pickup must precede dropoff in the event log")
	}
}

// TestMoveSplitAcrossTwoCallsMatchesSingleCall verifies the round-trip law
// from §8: Move(Δt) then Move(Δt') equals a single Move(Δt+Δt').
func TestMoveSplitAcrossTwoCallsMatchesSingleCall(t *testing.T) {
	skim := linearSkim{stepMeters: 1000}
	ctx := context.Background()

	build := func() (*domain.Vehicle, *domain.TaxiRide, *domain.Traveller) {
		traveller := newTestTraveller("T1", 0, 2, 2000)
		vehicle := newTestVehicle("V1", 0, 1.0, 1)
		vehicle.Path.Stationary = false
		vehicle.EndTime = time.Unix(100000, 0)
		path, _ := skim.Path(ctx, []domain.NodeID{0, 2})
		vehicle.Path.CurrentPath = path
		next := path[1]
		vehicle.Path.ClosestCrossroad = &next
		vehicle.ScheduledTravellers = []string{traveller.ID}
		ride := domain.NewTaxiRide("taxi-T1", vehicle.ID, traveller)
		return vehicle, ride, traveller
	}

	vA, rA, tA := build()
	travellersA := Travellers{tA.ID: tA}
	_ = Move(ctx, skim, vA, rA, travellersA, 500*time.Second, FreedPerDropoff, NoopPublisher{})
	_ = Move(ctx, skim, vA, rA, travellersA, 700*time.Second, FreedPerDropoff, NoopPublisher{})

	vB, rB, tB := build()
	travellersB := Travellers{tB.ID: tB}
	_ = Move(ctx, skim, vB, rB, travellersB, 1200*time.Second, FreedPerDropoff, NoopPublisher{})

	if vA.Path.Mileage != vB.Path.Mileage {
		t.Errorf("split mileage %v != single-call mileage %v", vA.Path.Mileage, vB.Path.Mileage)
	}
	if vA.Path.CurrentPosition != vB.Path.CurrentPosition {
		t.Errorf("split position %v != single-call position %v", vA.Path.CurrentPosition, vB.Path.CurrentPosition)
	}
}
