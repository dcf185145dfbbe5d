package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/ridesim/dispatch/internal/adapters/http"
	"github.com/ridesim/dispatch/internal/core/domain"
	"github.com/ridesim/dispatch/internal/core/ports"
)

// fakeRunRepo is a hand-written ports.RunRepository stub, in the style of
// the teacher's usecases tests (no mocking framework).
type fakeRunRepo struct {
	summary    *ports.RunSummary
	rides      []ports.RideLogEntry
	vehicleLog []ports.VehicleLogEntry
	travellers []ports.TravellerResultEntry
}

func (f *fakeRunRepo) SaveSummary(context.Context, ports.RunSummary) error            { return nil }
func (f *fakeRunRepo) SaveVehicleLog(context.Context, []ports.VehicleLogEntry) error   { return nil }
func (f *fakeRunRepo) SaveRideLog(context.Context, []ports.RideLogEntry) error         { return nil }
func (f *fakeRunRepo) SaveTravellerResults(context.Context, []ports.TravellerResultEntry) error {
	return nil
}
func (f *fakeRunRepo) SaveUtilityResults(context.Context, []ports.UtilityResultEntry) error {
	return nil
}

func (f *fakeRunRepo) GetSummary(_ context.Context, runID string) (*ports.RunSummary, error) {
	if f.summary == nil || f.summary.RunID != runID {
		return nil, context.Canceled
	}
	return f.summary, nil
}

func (f *fakeRunRepo) ListRideLog(context.Context, string) ([]ports.RideLogEntry, error) {
	return f.rides, nil
}

func (f *fakeRunRepo) ListVehicleLog(_ context.Context, _ string, vehicleID string) ([]ports.VehicleLogEntry, error) {
	if vehicleID == "" {
		return f.vehicleLog, nil
	}
	var out []ports.VehicleLogEntry
	for _, e := range f.vehicleLog {
		if e.VehicleID == vehicleID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRunRepo) ListTravellerResults(context.Context, string) ([]ports.TravellerResultEntry, error) {
	return f.travellers, nil
}

func newTestApp(repo ports.RunRepository) *fiber.App {
	app := fiber.New()
	deps := &handler.Dependencies{Runs: repo}
	app.Get("/v1/runs/:id", handler.GetRunHandler(deps))
	app.Get("/v1/runs/:id/rides", handler.ListRideLogHandler(deps))
	app.Get("/v1/runs/:id/vehicle-log", handler.ListVehicleLogHandler(deps))
	app.Get("/v1/runs/:id/travellers", handler.ListTravellerResultsHandler(deps))
	app.Get("/v1/runs/:id/travellers/:traveller_id", handler.GetTravellerHandler(deps))
	return app
}

func TestGetRunHandler(t *testing.T) {
	repo := &fakeRunRepo{summary: &ports.RunSummary{RunID: "run-1", RequestsTotal: 10, TaxiAssigned: 7}}
	app := newTestApp(repo)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/runs/run-1", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got ports.RunSummary
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.RunID != "run-1" || got.TaxiAssigned != 7 {
		t.Errorf("got %+v, want run-1/7", got)
	}
}

func TestGetRunHandlerNotFound(t *testing.T) {
	repo := &fakeRunRepo{}
	app := newTestApp(repo)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/runs/missing", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListRideLogHandlerPagination(t *testing.T) {
	repo := &fakeRunRepo{rides: []ports.RideLogEntry{
		{RideID: "r1", Type: domain.RideTaxi},
		{RideID: "r2", Type: domain.RidePool},
		{RideID: "r3", Type: domain.RideTaxi},
	}}
	app := newTestApp(repo)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/runs/run-1/rides?offset=1&limit=1", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var got handler.PaginatedResponse
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Pagination.Total != 3 || got.Pagination.Offset != 1 || got.Pagination.Limit != 1 {
		t.Errorf("pagination = %+v, want total=3 offset=1 limit=1", got.Pagination)
	}
}

func TestGetTravellerHandler(t *testing.T) {
	repo := &fakeRunRepo{travellers: []ports.TravellerResultEntry{
		{TravellerID: "T1", ServedBy: domain.ServiceTaxi},
		{TravellerID: "T2", ServedBy: domain.ServiceUnserved, Resigned: true},
	}}
	app := newTestApp(repo)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/runs/run-1/travellers/T2", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var got ports.TravellerResultEntry
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Resigned {
		t.Errorf("expected T2 to be resigned")
	}

	resp2, err := app.Test(httptest.NewRequest("GET", "/v1/runs/run-1/travellers/T9", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp2.StatusCode != 404 {
		t.Errorf("status = %d, want 404", resp2.StatusCode)
	}
}
