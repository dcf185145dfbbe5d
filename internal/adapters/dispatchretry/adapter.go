// Package dispatchretry adapts a live engine.Simulation to the
// workflows.DispatchService interface, letting a Temporal worker drive the
// same §4.5 matching rules the in-process event loop uses for its
// deferral/resignation retries, for deployments that want a durable saga
// instead of the loop's in-memory re-queue.
package dispatchretry

import (
	"context"
	"fmt"

	"github.com/ridesim/dispatch/internal/core/domain"
	"github.com/ridesim/dispatch/internal/core/engine"
	"github.com/ridesim/dispatch/internal/core/simerr"
	"github.com/ridesim/dispatch/internal/workflows"
)

// Adapter wraps an in-process engine.Simulation. RunID is carried only for
// event annotation; the Simulation itself is single-run.
type Adapter struct {
	RunID string
	Sim   *engine.Simulation
}

// New builds an Adapter over a live simulation.
func New(runID string, sim *engine.Simulation) *Adapter {
	return &Adapter{RunID: runID, Sim: sim}
}

// AttemptReattempt re-runs the taxi/pool matching rules for a single
// traveller still waiting in the queue, mirroring Simulation.handleRequest.
func (a *Adapter) AttemptReattempt(ctx context.Context, runID, travellerID string) (workflows.ReattemptResult, error) {
	if runID != a.RunID {
		return workflows.ReattemptResult{}, fmt.Errorf("%w: reattempt for run %q against adapter bound to %q", simerr.ErrInvariantViolation, runID, a.RunID)
	}

	traveller, ok := a.Sim.Travellers[travellerID]
	if !ok {
		return workflows.ReattemptResult{}, fmt.Errorf("unknown traveller %q", travellerID)
	}
	if traveller.Resigned {
		return workflows.ReattemptResult{}, nil
	}

	op, operator, ok := a.findOperator(traveller)
	if !ok {
		return workflows.ReattemptResult{}, fmt.Errorf("no operator bound to traveller %q", travellerID)
	}
	fares := a.Sim.Fares[operator][traveller.RequestedKind]

	if traveller.RequestedKind == domain.ServicePool {
		pools := engine.ActivePoolRides(op)
		match, err := engine.PoolUtilityEval(ctx, a.Sim.Skim, op, traveller, pools, a.Sim.Travellers, engine.DefaultMatchOptions(), fares.Fare, fares.PoolDiscount, fares.OperatingCost, fares.SharingDiscount)
		if err != nil {
			return workflows.ReattemptResult{}, fmt.Errorf("pool match: %w", err)
		}
		switch {
		case len(match.Candidates) > 0:
			vehicleID := match.Candidates[len(match.Candidates)-1].Vehicle.ID
			if err := engine.AssignPool(ctx, a.Sim.Skim, match.Candidates, traveller, a.Sim.Travellers); err != nil {
				return workflows.ReattemptResult{}, fmt.Errorf("assign pool: %w", err)
			}
			return workflows.ReattemptResult{Committed: true, ServedBy: "pool", VehicleID: vehicleID}, nil
		case match.TaxiFallback != nil:
			vehicleID := match.TaxiFallback.Vehicle.ID
			if err := engine.AssignPoolFresh(ctx, a.Sim.Skim, op, *match.TaxiFallback, traveller); err != nil {
				return workflows.ReattemptResult{}, fmt.Errorf("assign pool fallback: %w", err)
			}
			return workflows.ReattemptResult{Committed: true, ServedBy: "pool", VehicleID: vehicleID}, nil
		}
		return workflows.ReattemptResult{}, nil
	}

	ride, vehicle, profit, utility, found, err := engine.TaxiCandidate(ctx, a.Sim.Skim, op, traveller, engine.MatchOptions{OnlyTaxi: true}, fares.Fare, fares.OperatingCost)
	if err != nil {
		return workflows.ReattemptResult{}, fmt.Errorf("taxi match: %w", err)
	}
	if !found {
		return workflows.ReattemptResult{}, nil
	}
	if err := engine.AssignTaxi(ctx, a.Sim.Skim, op, ride, vehicle, traveller, profit, utility); err != nil {
		return workflows.ReattemptResult{}, fmt.Errorf("assign taxi: %w", err)
	}
	return workflows.ReattemptResult{Committed: true, ServedBy: "taxi", VehicleID: vehicle.ID}, nil
}

// MarkResigned sets the traveller's Resigned flag, the same terminal state
// Simulation.handleRequest reaches once AccumulatedWaiting crosses
// MaxWaiting.
func (a *Adapter) MarkResigned(ctx context.Context, runID, travellerID string) error {
	if runID != a.RunID {
		return fmt.Errorf("%w: resign for run %q against adapter bound to %q", simerr.ErrInvariantViolation, runID, a.RunID)
	}
	traveller, ok := a.Sim.Travellers[travellerID]
	if !ok {
		return fmt.Errorf("unknown traveller %q", travellerID)
	}
	traveller.Resigned = true
	return nil
}

// findOperator resolves the operator dispatching a reattempt against.
// Traveller carries no operator field of its own (it's a property of the
// request stream, not the rider), so multi-operator simulations are out of
// scope for the distributed driver; it binds to whichever single operator
// the Simulation was seeded with.
func (a *Adapter) findOperator(traveller *domain.Traveller) (*domain.Operator, string, bool) {
	for name, op := range a.Sim.Operators {
		return op, name, true
	}
	return nil, "", false
}
