package ports

import (
	"context"

	"github.com/ridesim/dispatch/internal/core/domain"
)

// RunSummary is the machine-readable counterpart of the general_results text
// table (spec.md §6): one row per completed simulation run.
type RunSummary struct {
	RunID           string
	ConfigPath      string
	StartedAt       string
	FinishedAt      string
	RequestsTotal   int
	TaxiAssigned    int
	PoolAssigned    int
	Resigned        int
	TotalProfit     float64
	TotalCost       float64
	TotalMileage        float64 // vehicle mileage: total meters driven by the fleet
	RideMileage         float64 // meters driven while carrying at least one traveller
	RequestMileage      float64 // sum of origin->destination distance across every request
	MileageReductionAbs float64 // RequestMileage - TotalMileage
	MileageReductionPct float64 // 100 * MileageReductionAbs / RequestMileage, 0 when RequestMileage is 0
}

// VehicleLogEntry is one row of the vehicle_log output: a single fired
// VehicleEvent attributed to the vehicle and operator that produced it.
type VehicleLogEntry struct {
	RunID     string
	Operator  string
	VehicleID string
	Event     domain.VehicleEvent
	Mileage   float64
}

// RideLogEntry is one row of the ride_log output: a ride's terminal state.
type RideLogEntry struct {
	RunID     string
	Operator  string
	RideID    string
	Type      domain.RideType
	Travellers []string
	Profit    domain.Profitability
}

// TravellerResultEntry is one row of the traveller_results output.
type TravellerResultEntry struct {
	RunID       string
	TravellerID string
	ServedBy    domain.ServiceKind
	PickupDelay *float64 // seconds, nil if unserved
	Resigned    bool
}

// UtilityResultEntry is one row of the utility_results output: a
// traveller's per-mode utility/distance comparison (§12 supplemented
// feature carried from the original mode-choice tracking).
type UtilityResultEntry struct {
	RunID       string
	TravellerID string
	Kind        domain.ServiceKind
	Utility     float64
	Distance    float64
}

// RunRepository persists the outcome of one simulation run.
type RunRepository interface {
	SaveSummary(ctx context.Context, summary RunSummary) error
	SaveVehicleLog(ctx context.Context, entries []VehicleLogEntry) error
	SaveRideLog(ctx context.Context, entries []RideLogEntry) error
	SaveTravellerResults(ctx context.Context, entries []TravellerResultEntry) error
	SaveUtilityResults(ctx context.Context, entries []UtilityResultEntry) error

	GetSummary(ctx context.Context, runID string) (*RunSummary, error)
	ListRideLog(ctx context.Context, runID string) ([]RideLogEntry, error)
	ListVehicleLog(ctx context.Context, runID string, vehicleID string) ([]VehicleLogEntry, error)
	ListTravellerResults(ctx context.Context, runID string) ([]TravellerResultEntry, error)
}

// ReportWriter renders one run's persisted outputs as the text tables of
// spec.md §6, alongside a JSON summary for the reporting API.
type ReportWriter interface {
	Write(outputPath string, summary RunSummary, vehicleLog []VehicleLogEntry, rideLog []RideLogEntry, travellers []TravellerResultEntry, utilities []UtilityResultEntry) error
}
