// Package reportwriter produces the five persisted-output text tables of
// spec.md §6 under {output_path}/{date}/, plus a machine-readable JSON
// summary the reporting API can serve without re-parsing text.
package reportwriter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/ridesim/dispatch/internal/core/ports"
)

// TextWriter implements ports.ReportWriter over plain text tables plus a
// JSON summary, one directory per run date.
type TextWriter struct{}

// Write renders every output table for one run into outputPath/date/, where
// date is the run's start date (YYYY-MM-DD), matching spec.md §6's
// "{output_path}/{date}/" layout.
func (TextWriter) Write(
	outputPath string,
	summary ports.RunSummary,
	vehicleLog []ports.VehicleLogEntry,
	rideLog []ports.RideLogEntry,
	travellers []ports.TravellerResultEntry,
	utilities []ports.UtilityResultEntry,
) error {
	date := time.Now().Format("2006-01-02")
	if summary.StartedAt != "" {
		if t, err := time.Parse(time.RFC3339, summary.StartedAt); err == nil {
			date = t.Format("2006-01-02")
		}
	}
	dir := filepath.Join(outputPath, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}

	if err := writeVehicleLog(filepath.Join(dir, "vehicle_log.txt"), vehicleLog); err != nil {
		return err
	}
	if err := writeRideLog(filepath.Join(dir, "ride_log.txt"), rideLog); err != nil {
		return err
	}
	if err := writeTravellerResults(filepath.Join(dir, "traveller_results.txt"), travellers); err != nil {
		return err
	}
	if err := writeUtilityResults(filepath.Join(dir, "utility_results.txt"), utilities); err != nil {
		return err
	}
	if err := writeGeneralResults(filepath.Join(dir, "general_results.txt"), summary); err != nil {
		return err
	}
	if err := writeJSONSummary(filepath.Join(dir, "summary.json"), summary); err != nil {
		return err
	}
	return nil
}

func newTable(path string) (*os.File, *tabwriter.Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, tabwriter.NewWriter(f, 0, 2, 2, ' ', 0), nil
}

// writeVehicleLog writes DATE | NODE | TYPE | TRAVELLER_ID | VEHICLE_ID.
func writeVehicleLog(path string, entries []ports.VehicleLogEntry) error {
	f, tw, err := newTable(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintln(tw, "DATE\tNODE\tTYPE\tTRAVELLER_ID\tVEHICLE_ID")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			e.Event.Time.Format(time.RFC3339), e.Event.Node, e.Event.Kind, e.Event.TravellerID, e.VehicleID)
	}
	return tw.Flush()
}

// writeRideLog writes RIDE_ID | TYPE | TRAVELLERS | REVENUE | COST | PROFIT,
// one row per ride with its final traveller list and profitability. It
// does not write per-event DATE | NODE | TYPE | TRAVELLER_ID rows.
func writeRideLog(path string, entries []ports.RideLogEntry) error {
	f, tw, err := newTable(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintln(tw, "RIDE_ID\tTYPE\tTRAVELLERS\tREVENUE\tCOST\tPROFIT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%.2f\t%.2f\t%.2f\n",
			e.RideID, e.Type, e.Travellers, e.Profit.Revenue, e.Profit.Cost, e.Profit.Profit)
	}
	return tw.Flush()
}

// writeTravellerResults writes each traveller's served mode, pickup delay
// and resigned flag. The requested mode and the requested vs. actual
// distances are not written.
func writeTravellerResults(path string, entries []ports.TravellerResultEntry) error {
	f, tw, err := newTable(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintln(tw, "TRAVELLER_ID\tSERVED_BY\tPICKUP_DELAY_S\tRESIGNED")
	for _, e := range entries {
		delay := "-"
		if e.PickupDelay != nil {
			delay = fmt.Sprintf("%.1f", *e.PickupDelay)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", e.TravellerID, e.ServedBy, delay, e.Resigned)
	}
	return tw.Flush()
}

// writeUtilityResults writes per-traveller per-mode utility/distance.
func writeUtilityResults(path string, entries []ports.UtilityResultEntry) error {
	f, tw, err := newTable(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintln(tw, "TRAVELLER_ID\tKIND\tUTILITY\tDISTANCE_M")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.2f\n", e.TravellerID, e.Kind, e.Utility, e.Distance)
	}
	return tw.Flush()
}

// writeGeneralResults writes the run-level totals spec.md §6 names:
// vehicle mileage, ride mileage, request mileage, mileage reduction
// (absolute and percent), profits, costs.
func writeGeneralResults(path string, s ports.RunSummary) error {
	f, tw, err := newTable(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(tw, "run_id\t%s\n", s.RunID)
	fmt.Fprintf(tw, "started_at\t%s\n", s.StartedAt)
	fmt.Fprintf(tw, "finished_at\t%s\n", s.FinishedAt)
	fmt.Fprintf(tw, "requests_total\t%d\n", s.RequestsTotal)
	fmt.Fprintf(tw, "taxi_assigned\t%d\n", s.TaxiAssigned)
	fmt.Fprintf(tw, "pool_assigned\t%d\n", s.PoolAssigned)
	fmt.Fprintf(tw, "resigned\t%d\n", s.Resigned)
	fmt.Fprintf(tw, "total_profit\t%.2f\n", s.TotalProfit)
	fmt.Fprintf(tw, "total_cost\t%.2f\n", s.TotalCost)
	fmt.Fprintf(tw, "vehicle_mileage_m\t%.2f\n", s.TotalMileage)
	fmt.Fprintf(tw, "ride_mileage_m\t%.2f\n", s.RideMileage)
	fmt.Fprintf(tw, "request_mileage_m\t%.2f\n", s.RequestMileage)
	fmt.Fprintf(tw, "mileage_reduction_abs_m\t%.2f\n", s.MileageReductionAbs)
	fmt.Fprintf(tw, "mileage_reduction_pct\t%.2f\n", s.MileageReductionPct)
	return tw.Flush()
}

func writeJSONSummary(path string, s ports.RunSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
