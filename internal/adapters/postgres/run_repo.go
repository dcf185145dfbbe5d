package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ridesim/dispatch/internal/core/domain"
	"github.com/ridesim/dispatch/internal/core/ports"
)

// RunRepo implements ports.RunRepository with pgx, persisting a
// simulation run's five output tables (spec.md §6) as rows instead of
// flat text files.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) SaveSummary(ctx context.Context, s ports.RunSummary) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO run_summaries (run_id, config_path, started_at, finished_at,
			requests_total, taxi_assigned, pool_assigned, resigned, total_profit, total_cost,
			total_mileage, ride_mileage, request_mileage, mileage_reduction_abs, mileage_reduction_pct)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (run_id) DO UPDATE
		SET finished_at = EXCLUDED.finished_at,
		    requests_total = EXCLUDED.requests_total,
		    taxi_assigned = EXCLUDED.taxi_assigned,
		    pool_assigned = EXCLUDED.pool_assigned,
		    resigned = EXCLUDED.resigned,
		    total_profit = EXCLUDED.total_profit,
		    total_cost = EXCLUDED.total_cost,
		    total_mileage = EXCLUDED.total_mileage,
		    ride_mileage = EXCLUDED.ride_mileage,
		    request_mileage = EXCLUDED.request_mileage,
		    mileage_reduction_abs = EXCLUDED.mileage_reduction_abs,
		    mileage_reduction_pct = EXCLUDED.mileage_reduction_pct
	`, s.RunID, s.ConfigPath, s.StartedAt, s.FinishedAt,
		s.RequestsTotal, s.TaxiAssigned, s.PoolAssigned, s.Resigned, s.TotalProfit, s.TotalCost,
		s.TotalMileage, s.RideMileage, s.RequestMileage, s.MileageReductionAbs, s.MileageReductionPct)
	return err
}

func (r *RunRepo) SaveVehicleLog(ctx context.Context, entries []ports.VehicleLogEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		var node *int64
		if e.Event.Node != 0 {
			n := int64(e.Event.Node)
			node = &n
		}
		batch.Queue(`
			INSERT INTO vehicle_log (run_id, operator, vehicle_id, event_time, node, kind, traveller_id, mileage)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, e.RunID, e.Operator, e.VehicleID, e.Event.Time, node, string(e.Event.Kind), e.Event.TravellerID, e.Mileage)
	}
	return execBatch(ctx, r.db, batch, len(entries))
}

func (r *RunRepo) SaveRideLog(ctx context.Context, entries []ports.RideLogEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		travellers, err := json.Marshal(e.Travellers)
		if err != nil {
			return fmt.Errorf("marshal travellers: %w", err)
		}
		batch.Queue(`
			INSERT INTO ride_log (run_id, operator, ride_id, type, travellers, revenue, cost, profit)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, e.RunID, e.Operator, e.RideID, string(e.Type), travellers, e.Profit.Revenue, e.Profit.Cost, e.Profit.Profit)
	}
	return execBatch(ctx, r.db, batch, len(entries))
}

func (r *RunRepo) SaveTravellerResults(ctx context.Context, entries []ports.TravellerResultEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO traveller_results (run_id, traveller_id, served_by, pickup_delay, resigned)
			VALUES ($1, $2, $3, $4, $5)
		`, e.RunID, e.TravellerID, string(e.ServedBy), e.PickupDelay, e.Resigned)
	}
	return execBatch(ctx, r.db, batch, len(entries))
}

func (r *RunRepo) SaveUtilityResults(ctx context.Context, entries []ports.UtilityResultEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO utility_results (run_id, traveller_id, kind, utility, distance)
			VALUES ($1, $2, $3, $4, $5)
		`, e.RunID, e.TravellerID, string(e.Kind), e.Utility, e.Distance)
	}
	return execBatch(ctx, r.db, batch, len(entries))
}

func (r *RunRepo) GetSummary(ctx context.Context, runID string) (*ports.RunSummary, error) {
	var s ports.RunSummary
	err := r.db.Pool.QueryRow(ctx, `
		SELECT run_id, config_path, started_at, finished_at,
		       requests_total, taxi_assigned, pool_assigned, resigned, total_profit, total_cost,
		       total_mileage, ride_mileage, request_mileage, mileage_reduction_abs, mileage_reduction_pct
		FROM run_summaries WHERE run_id = $1
	`, runID).Scan(
		&s.RunID, &s.ConfigPath, &s.StartedAt, &s.FinishedAt,
		&s.RequestsTotal, &s.TaxiAssigned, &s.PoolAssigned, &s.Resigned, &s.TotalProfit, &s.TotalCost,
		&s.TotalMileage, &s.RideMileage, &s.RequestMileage, &s.MileageReductionAbs, &s.MileageReductionPct,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RunRepo) ListRideLog(ctx context.Context, runID string) ([]ports.RideLogEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT operator, ride_id, type, travellers, revenue, cost, profit
		FROM ride_log WHERE run_id = $1 ORDER BY ride_id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.RideLogEntry
	for rows.Next() {
		var e ports.RideLogEntry
		var kind string
		var travellers []byte
		if err := rows.Scan(&e.Operator, &e.RideID, &kind, &travellers,
			&e.Profit.Revenue, &e.Profit.Cost, &e.Profit.Profit); err != nil {
			return nil, err
		}
		e.RunID = runID
		e.Type = domain.RideType(kind)
		if err := json.Unmarshal(travellers, &e.Travellers); err != nil {
			return nil, fmt.Errorf("unmarshal travellers: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *RunRepo) ListVehicleLog(ctx context.Context, runID string, vehicleID string) ([]ports.VehicleLogEntry, error) {
	query := `
		SELECT operator, vehicle_id, event_time, node, kind, traveller_id, mileage
		FROM vehicle_log WHERE run_id = $1
	`
	args := []any{runID}
	if vehicleID != "" {
		query += ` AND vehicle_id = $2`
		args = append(args, vehicleID)
	}
	query += ` ORDER BY event_time`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.VehicleLogEntry
	for rows.Next() {
		var e ports.VehicleLogEntry
		var node *int64
		var kind string
		if err := rows.Scan(&e.Operator, &e.VehicleID, &e.Event.Time, &node, &kind, &e.Event.TravellerID, &e.Mileage); err != nil {
			return nil, err
		}
		e.RunID = runID
		e.Event.Kind = domain.StopKind(kind)
		if node != nil {
			e.Event.Node = domain.NodeID(*node)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *RunRepo) ListTravellerResults(ctx context.Context, runID string) ([]ports.TravellerResultEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT traveller_id, served_by, pickup_delay, resigned
		FROM traveller_results WHERE run_id = $1 ORDER BY traveller_id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.TravellerResultEntry
	for rows.Next() {
		var e ports.TravellerResultEntry
		var served string
		if err := rows.Scan(&e.TravellerID, &served, &e.PickupDelay, &e.Resigned); err != nil {
			return nil, err
		}
		e.RunID = runID
		e.ServedBy = domain.ServiceKind(served)
		out = append(out, e)
	}
	return out, rows.Err()
}

func execBatch(ctx context.Context, db *DB, batch *pgx.Batch, n int) error {
	br := db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec %d: %w", i, err)
		}
	}
	return nil
}
