package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ridesim/dispatch/internal/core/domain"
)

// linearSkim answers distance/path queries over a straight line of nodes
// spaced stepMeters apart, matching the A—B—C—D topology used throughout
// spec scenario fixtures.
type linearSkim struct {
	stepMeters float64
}

func (s linearSkim) Distance(_ context.Context, nodes []domain.NodeID) (float64, error) {
	var total float64
	for i := 1; i < len(nodes); i++ {
		total += math.Abs(float64(nodes[i]-nodes[i-1])) * s.stepMeters
	}
	return total, nil
}

func (s linearSkim) Path(_ context.Context, nodes []domain.NodeID) ([]domain.NodeID, error) {
	var out []domain.NodeID
	for i := 0; i < len(nodes); i++ {
		if i == 0 {
			out = append(out, nodes[i])
			continue
		}
		from, to := nodes[i-1], nodes[i]
		if from == to {
			continue
		}
		step := domain.NodeID(1)
		if to < from {
			step = -1
		}
		for n := from + step; ; n += step {
			out = append(out, n)
			if n == to {
				break
			}
		}
	}
	return out, nil
}

func newTestVehicle(id string, pos domain.NodeID, speed float64, capacity int) *domain.Vehicle {
	v := &domain.Vehicle{ID: id, Speed: speed, Capacity: capacity, Available: true, Type: domain.VehicleTaxi}
	v.Path.CurrentPosition = pos
	v.Path.Stationary = true
	return v
}

func newTestTraveller(id string, origin, dest domain.NodeID, tripLength float64) *domain.Traveller {
	t := domain.NewTraveller(id, origin, dest, time.Time{}, domain.ServiceTaxi, domain.Behaviour{
		ValueOfTime:            0.01,
		PickupDelaySensitivity: 1,
		MaxPickup:              10 * time.Minute,
		MaxWaiting:             10 * time.Minute,
	})
	t.TripLength = tripLength
	return t
}

func TestTaxiProfitability(t *testing.T) {
	skim := linearSkim{stepMeters: 1000}
	vehicle := newTestVehicle("V1", 1, 1.0, 1)
	traveller := newTestTraveller("T1", 1, 3, 2000)

	profit, err := TaxiProfitability(context.Background(), skim, vehicle, traveller, 1.0, 0.1)
	if err != nil {
		t.Fatalf("TaxiProfitability: %v", err)
	}
	if profit.Revenue != 2000 {
		t.Errorf("revenue = %v, want 2000", profit.Revenue)
	}
	wantCost := (0 + 2000) * 0.1
	if profit.Cost != wantCost {
		t.Errorf("cost = %v, want %v", profit.Cost, wantCost)
	}
	if profit.Profit != profit.Revenue-profit.Cost {
		t.Errorf("profit = %v, want revenue-cost", profit.Profit)
	}
}

func TestTaxiUtilityIsNegativeAndWorsensWithDelay(t *testing.T) {
	skim := linearSkim{stepMeters: 1000}
	vehicle := newTestVehicle("V1", 1, 1.0, 1)
	traveller := newTestTraveller("T1", 1, 3, 2000)

	base, err := TaxiUtility(context.Background(), skim, vehicle, traveller, 1.0, nil)
	if err != nil {
		t.Fatalf("TaxiUtility: %v", err)
	}
	if base >= 0 {
		t.Fatalf("expected negative solo taxi utility, got %v", base)
	}

	delay := 500.0
	withDelay, err := TaxiUtility(context.Background(), skim, vehicle, traveller, 1.0, &delay)
	if err != nil {
		t.Fatalf("TaxiUtility with delay: %v", err)
	}
	if withDelay >= base {
		t.Errorf("adding pickup delay should worsen utility: base=%v withDelay=%v", base, withDelay)
	}
}

func TestTaxiProfitabilityIncludesDeadhead(t *testing.T) {
	skim := linearSkim{stepMeters: 1000}
	vehicle := newTestVehicle("V1", 0, 1.0, 1) // one segment of deadhead before reaching node 1
	traveller := newTestTraveller("T1", 1, 3, 2000)

	profit, err := TaxiProfitability(context.Background(), skim, vehicle, traveller, 1.0, 0.1)
	if err != nil {
		t.Fatalf("TaxiProfitability: %v", err)
	}
	wantCost := (1000 + 2000) * 0.1
	if profit.Cost != wantCost {
		t.Errorf("cost = %v, want %v (deadhead should be included)", profit.Cost, wantCost)
	}
}
