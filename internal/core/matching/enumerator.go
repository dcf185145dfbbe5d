// Package matching implements the C2 Combination Enumerator: it produces
// feasible orderings of a pool ride's remaining stops once a new
// traveller's (origin, destination) pair is considered for insertion.
package matching

import (
	"context"
	"fmt"

	"github.com/ridesim/dispatch/internal/core/domain"
	"github.com/ridesim/dispatch/internal/core/ports"
)

func nodesOf(stops []domain.Stop) []domain.NodeID {
	nodes := make([]domain.NodeID, len(stops))
	for i, s := range stops {
		nodes[i] = s.Node
	}
	return nodes
}

// insert returns a copy of base with origin spliced in at index i and
// destination spliced in at index j, where j is the index in the
// already-origin-inserted slice (so j > i holds the destination strictly
// after the origin).
func insert(base []domain.Stop, origin domain.Stop, i int, destination domain.Stop, j int) []domain.Stop {
	withOrigin := make([]domain.Stop, 0, len(base)+1)
	withOrigin = append(withOrigin, base[:i]...)
	withOrigin = append(withOrigin, origin)
	withOrigin = append(withOrigin, base[i:]...)

	result := make([]domain.Stop, 0, len(withOrigin)+1)
	result = append(result, withOrigin[:j]...)
	result = append(result, destination)
	result = append(result, withOrigin[j:]...)
	return result
}

// Enumerate implements §4.2: given a pool ride's current admissible
// combinations (or its destinationPoints when none have been cached yet)
// it inserts the new traveller's origin at every position i and their
// destination at every position j>i, keeps orderings within the pickup and
// detour bounds, and returns the survivors. An empty result means no
// insertion is feasible.
func Enumerate(
	ctx context.Context,
	skim ports.Skim,
	vehiclePosition domain.NodeID,
	ride *domain.PoolRide,
	travellerID string,
	originNode, destinationNode domain.NodeID,
	maxDistancePickup, maxTripLength float64,
) ([][]domain.Stop, error) {
	bases := ride.AdmissibleCombinations
	if len(bases) == 0 {
		bases = [][]domain.Stop{ride.DestinationPoints()}
	}

	origin := domain.Stop{Node: originNode, Kind: domain.KindPickup, TravellerID: travellerID}
	destination := domain.Stop{Node: destinationNode, Kind: domain.KindDropoff, TravellerID: travellerID}

	var feasible [][]domain.Stop
	for _, base := range bases {
		for i := 0; i <= len(base); i++ {
			for j := i + 1; j <= len(base)+1; j++ {
				candidate := insert(base, origin, i, destination, j)

				pickupPrefix := append([]domain.NodeID{vehiclePosition}, nodesOf(candidate[:i+1])...)
				pickupDist, err := skim.Distance(ctx, pickupPrefix)
				if err != nil {
					return nil, fmt.Errorf("pickup bound: %w", err)
				}
				if pickupDist > maxDistancePickup {
					continue
				}

				fullTrail := append([]domain.NodeID{vehiclePosition}, nodesOf(candidate)...)
				fullDist, err := skim.Distance(ctx, fullTrail)
				if err != nil {
					return nil, fmt.Errorf("detour bound: %w", err)
				}
				if fullDist > maxTripLength {
					continue
				}

				feasible = append(feasible, candidate)
			}
		}
	}
	return feasible, nil
}

// MaxTripLength implements the §4.2 detour bound definition: the existing
// ride's remaining distance plus the new traveller's direct trip length.
func MaxTripLength(ctx context.Context, skim ports.Skim, vehiclePosition domain.NodeID, ride *domain.PoolRide, newTravellerTripLength float64) (float64, error) {
	remaining, err := skim.Distance(ctx, append([]domain.NodeID{vehiclePosition}, nodesOf(ride.DestinationPoints())...))
	if err != nil {
		return 0, fmt.Errorf("remaining distance: %w", err)
	}
	return remaining + newTravellerTripLength, nil
}
