package matching

import (
	"context"
	"math"
	"testing"

	"github.com/ridesim/dispatch/internal/core/domain"
)

type linearSkim struct{ stepMeters float64 }

func (s linearSkim) Distance(_ context.Context, nodes []domain.NodeID) (float64, error) {
	var total float64
	for i := 1; i < len(nodes); i++ {
		total += math.Abs(float64(nodes[i]-nodes[i-1])) * s.stepMeters
	}
	return total, nil
}

func (s linearSkim) Path(_ context.Context, nodes []domain.NodeID) ([]domain.NodeID, error) {
	return nodes, nil
}

// TestEnumerateProducesPoolInsertionScenario reproduces the "pool
// insertion" fixture: vehicle between A(0) and B(1), carrying T1 bound for
// D(3) with a single remaining stop; a new T2 request B(1)->C(2) must
// surface the sequence (B,o,T2),(C,d,T2),(D,d,T1) among its candidates.
func TestEnumerateProducesPoolInsertionScenario(t *testing.T) {
	skim := linearSkim{stepMeters: 1000}
	ride := &domain.PoolRide{RideBase: domain.RideBase{
		DestPoints: []domain.Stop{{Node: 3, Kind: domain.KindDropoff, TravellerID: "T1"}},
		Travellers: []string{"T1"},
	}}

	candidates, err := Enumerate(context.Background(), skim, 0, ride, "T2", 1, 2, 5000, 10000)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(candidates) == 0 {
		t.Fatalf("expected at least one feasible insertion")
	}

	want := []domain.Stop{
		{Node: 1, Kind: domain.KindPickup, TravellerID: "T2"},
		{Node: 2, Kind: domain.KindDropoff, TravellerID: "T2"},
		{Node: 3, Kind: domain.KindDropoff, TravellerID: "T1"},
	}
	found := false
	for _, c := range candidates {
		if stopsEqual(c, want) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected sequence %v not found among candidates %v", want, candidates)
	}
}

func TestEnumerateRejectsPickupBeyondBound(t *testing.T) {
	skim := linearSkim{stepMeters: 1000}
	ride := &domain.PoolRide{RideBase: domain.RideBase{
		DestPoints: []domain.Stop{{Node: 3, Kind: domain.KindDropoff, TravellerID: "T1"}},
		Travellers: []string{"T1"},
	}}

	// Pickup bound of 0m: no insertion can reach the new origin at node 1.
	candidates, err := Enumerate(context.Background(), skim, 0, ride, "T2", 1, 2, 0, 10000)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("expected no feasible insertions under a zero pickup bound, got %v", candidates)
	}
}

func stopsEqual(a, b []domain.Stop) bool {
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
