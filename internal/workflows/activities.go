package workflows

import (
	"context"
	"fmt"
	"log"

	"github.com/ridesim/dispatch/internal/core/ports"
)

// ReattemptResult is what a single dispatch retry produces: either a
// commit (taxi or pool) or nothing, in which case the workflow sleeps and
// tries again on the next refresh tick.
type ReattemptResult struct {
	Committed bool
	ServedBy  string // "taxi" | "pool", empty when not committed
	VehicleID string
}

// DispatchService is the narrow surface the workflow needs from the live
// simulation: one retry of the §4.5 matching rules against a traveller
// still waiting in the queue. It is satisfied by an adapter sitting in
// front of the in-process Simulation registry; the workflow package stays
// free of an engine import so it can be compiled into a standalone
// worker binary.
type DispatchService interface {
	AttemptReattempt(ctx context.Context, runID, travellerID string) (ReattemptResult, error)
	MarkResigned(ctx context.Context, runID, travellerID string) error
}

// ReattemptActivities holds the activity implementations for ReattemptWorkflow.
type ReattemptActivities struct {
	Dispatch  DispatchService
	Publisher ports.EventPublisher
}

// AttemptDispatch runs one retry of the matching rules for the traveller.
func (a *ReattemptActivities) AttemptDispatch(ctx context.Context, runID, travellerID string) (ReattemptResult, error) {
	result, err := a.Dispatch.AttemptReattempt(ctx, runID, travellerID)
	if err != nil {
		return ReattemptResult{}, fmt.Errorf("attempt dispatch %s: %w", travellerID, err)
	}
	return result, nil
}

// PublishCommit announces a successful reattempt on the live feed.
func (a *ReattemptActivities) PublishCommit(ctx context.Context, runID, operator, travellerID, vehicleID, servedBy string) error {
	if a.Publisher == nil {
		log.Printf("commit (no publisher) run=%s traveller=%s served_by=%s", runID, travellerID, servedBy)
		return nil
	}
	return a.Publisher.PublishRideEvent(ctx, ports.RideEvent{
		RunID:     runID,
		Operator:  operator,
		VehicleID: vehicleID,
		Kind:      "commit_" + servedBy,
		Traveller: travellerID,
	})
}

// MarkResigned records the traveller as resigned once accumulated waiting
// exceeds its MaxWaiting threshold, and announces it on the live feed.
func (a *ReattemptActivities) MarkResigned(ctx context.Context, runID, operator, travellerID string) error {
	if err := a.Dispatch.MarkResigned(ctx, runID, travellerID); err != nil {
		return fmt.Errorf("mark resigned %s: %w", travellerID, err)
	}
	if a.Publisher != nil {
		return a.Publisher.PublishRideEvent(ctx, ports.RideEvent{
			RunID:     runID,
			Operator:  operator,
			Kind:      "resigned",
			Traveller: travellerID,
		})
	}
	return nil
}
