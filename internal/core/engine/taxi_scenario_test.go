package engine

import (
	"context"
	"testing"
	"time"

	"github.com/ridesim/dispatch/internal/core/domain"
)

// TestSingleTaxiScenario drives the full event loop over the "single
// taxi" fixture: graph A(0)—B(1)—C(2), one vehicle, one taxi request.
func TestSingleTaxiScenario(t *testing.T) {
	skim := linearSkim{stepMeters: 1000}
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	sim := NewSimulation(skim, 60*time.Second, FreedPerDropoff, nil, nil)
	sim.Fares["CityCab"] = map[domain.ServiceKind]Fares{
		domain.ServiceTaxi: {Fare: 1.0, OperatingCost: 0.1},
	}

	vehicles := []VehicleRow{
		{ID: "V1", Origin: 0, StartTime: epoch, EndTime: epoch.Add(time.Hour), Type: domain.VehicleTaxi, Capacity: 1, Speed: 1.0, Operator: "CityCab"},
	}
	requests := []RequestRow{
		{ID: "T1", Origin: 0, Destination: 2, RequestTime: epoch.Add(5 * time.Second), Kind: domain.ServiceTaxi, Operator: "CityCab", Behaviour: domain.Behaviour{
			ValueOfTime: 0.01, PickupDelaySensitivity: 1, MaxPickup: 10 * time.Minute, MaxWaiting: 10 * time.Minute,
		}},
	}
	sim.Seed(vehicles, requests)

	if err := sim.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	traveller, ok := sim.Travellers["T1"]
	if !ok {
		t.Fatalf("traveller T1 was never created")
	}
	if traveller.ServedBy != domain.ServiceTaxi {
		t.Errorf("traveller served by %v, want taxi", traveller.ServedBy)
	}
	if traveller.Resigned {
		t.Errorf("traveller should not have resigned")
	}

	op := sim.Operators["CityCab"]
	if op == nil {
		t.Fatalf("operator CityCab was never created")
	}
	vehicles2 := op.Vehicles()
	if len(vehicles2) != 1 {
		t.Fatalf("expected exactly one vehicle, got %d", len(vehicles2))
	}
	v := vehicles2[0]
	if v.Path.Mileage != 2000 {
		t.Errorf("vehicle mileage = %v, want 2000", v.Path.Mileage)
	}
	if !v.Available {
		t.Errorf("vehicle should be available again after the ride completes")
	}

	if len(op.Rides) != 1 {
		t.Fatalf("expected exactly one ride, got %d", len(op.Rides))
	}
	for _, ride := range op.Rides {
		if ride.IsActive() {
			t.Errorf("ride should be inactive once T1 is dropped off")
		}
	}
}

// TestDeferredThenResignedScenario reproduces the "no vehicles present"
// fixture: a traveller whose request never finds a vehicle accumulates
// waiting until it exceeds maxWaiting and resigns.
func TestDeferredThenResignedScenario(t *testing.T) {
	skim := linearSkim{stepMeters: 1000}
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	sim := NewSimulation(skim, 60*time.Second, FreedPerDropoff, nil, nil)
	sim.Operators["CityCab"] = domain.NewOperator("CityCab")
	sim.Fares["CityCab"] = map[domain.ServiceKind]Fares{domain.ServiceTaxi: {Fare: 1.0, OperatingCost: 0.1}}

	requests := []RequestRow{
		{ID: "T1", Origin: 0, Destination: 2, RequestTime: epoch, Kind: domain.ServiceTaxi, Operator: "CityCab", Behaviour: domain.Behaviour{
			ValueOfTime: 0.01, PickupDelaySensitivity: 1, MaxPickup: 10 * time.Minute, MaxWaiting: 120 * time.Second,
		}},
	}
	sim.Seed(nil, requests)

	if err := sim.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	traveller, ok := sim.Travellers["T1"]
	if !ok {
		t.Fatalf("traveller T1 was never created")
	}
	if !traveller.Resigned {
		t.Errorf("traveller should have resigned after exceeding maxWaiting")
	}
	if _, served := traveller.Utilities[domain.ServiceTaxi]; served {
		t.Errorf("a resigned traveller should have no recorded utility")
	}
}
