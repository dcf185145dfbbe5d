package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ReattemptInput is the input for the deferred-reattempt workflow: one
// traveller who didn't get a ride on first pass, retried on a fixed timer
// until either a vehicle is found or it resigns.
type ReattemptInput struct {
	RunID             string
	Operator          string
	TravellerID       string
	RefreshDensitySec float64
	MaxWaitingSec     float64
}

// ReattemptWorkflow re-runs the §4.5 matching rules for a deferred
// traveller every RefreshDensitySec, mirroring the in-process event loop's
// deferral/resignation rule (spec.md §4.6) as a durable saga: it either
// terminates in a commit activity or, once accumulated waiting exceeds
// MaxWaitingSec, in the "mark resigned" compensation.
func ReattemptWorkflow(ctx workflow.Context, input ReattemptInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting reattempt workflow", "traveller", input.TravellerID, "runID", input.RunID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	refresh := time.Duration(input.RefreshDensitySec * float64(time.Second))
	maxWaiting := time.Duration(input.MaxWaitingSec * float64(time.Second))

	var waited time.Duration
	for waited <= maxWaiting {
		if err := workflow.Sleep(ctx, refresh); err != nil {
			return err
		}
		waited += refresh

		var result ReattemptResult
		err := workflow.ExecuteActivity(ctx, "AttemptDispatch", input.RunID, input.TravellerID).Get(ctx, &result)
		if err != nil {
			return err
		}
		if result.Committed {
			logger.Info("reattempt committed", "traveller", input.TravellerID, "servedBy", result.ServedBy)
			return workflow.ExecuteActivity(ctx, "PublishCommit",
				input.RunID, input.Operator, input.TravellerID, result.VehicleID, result.ServedBy).Get(ctx, nil)
		}
	}

	logger.Info("reattempt exhausted, resigning", "traveller", input.TravellerID, "waited", waited)
	return workflow.ExecuteActivity(ctx, "MarkResigned", input.RunID, input.Operator, input.TravellerID).Get(ctx, nil)
}
