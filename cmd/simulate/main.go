package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ridesim/dispatch/internal/adapters/dispatchretry"
	"github.com/ridesim/dispatch/internal/adapters/graph"
	natsadapter "github.com/ridesim/dispatch/internal/adapters/nats"
	"github.com/ridesim/dispatch/internal/adapters/postgres"
	"github.com/ridesim/dispatch/internal/adapters/reportwriter"
	"github.com/ridesim/dispatch/internal/adapters/valkey"
	"github.com/ridesim/dispatch/internal/core/domain"
	"github.com/ridesim/dispatch/internal/core/engine"
	"github.com/ridesim/dispatch/internal/core/ports"
	"github.com/ridesim/dispatch/internal/pkg/config"
	"github.com/ridesim/dispatch/internal/pkg/logging"
	"github.com/ridesim/dispatch/internal/pkg/telemetry"
)

// ---------------------------------------------------------------------------
// simulation_config JSON (spec.md §6)
// ---------------------------------------------------------------------------

type simulationConfigFile struct {
	Requests          string   `json:"requests"`
	Vehicles          string   `json:"vehicles"`
	CityConfig        string   `json:"city_config"`
	BehaviouralConfig string   `json:"behavioural_config"`
	FaresConfig       string   `json:"fares_config"`
	TaxiOperators     []string `json:"taxi_operators"`
	RefreshDensity    float64  `json:"refresh_density"`
	OutputPath        string   `json:"output_path"`
}

type cityConfigFile struct {
	City  string `json:"city"`
	Paths struct {
		CityGraph string `json:"city_graph"`
	} `json:"paths"`
}

type behaviouralConfigFile struct {
	VoT                    float64 `json:"VoT"`
	PickupDelaySensitivity float64 `json:"pickup_delay_sensitivity"`
	MaximalPickup          float64 `json:"maximal_pickup"`
	MaximalWaiting         float64 `json:"maximal_waiting"`
	PoolRides              struct {
		PfS      map[string]float64 `json:"PfS"`
		PfSConst float64            `json:"PfS_const"`
	} `json:"pool_rides"`
}

type faresConfigFile struct {
	Fares          map[string]map[string]float64 `json:"fares"`
	OperatingCosts map[string]map[string]float64 `json:"operating_costs"`
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: simulate <simulation_config.json>")
	}

	cfg, err := config.Load("ridesim-simulate")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(envOr("LOG_LEVEL", "info"), "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(ctx)
		}
	}

	simCfg, err := loadSimulationConfig(os.Args[1])
	if err != nil {
		log.Fatalf("simulation config: %v", err)
	}

	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, running without skim cache", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	skim, err := buildSkim(simCfg, cache)
	if err != nil {
		log.Fatalf("skim: %v", err)
	}

	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	var livePublisher engine.Publisher
	if err != nil {
		slog.Warn("nats unavailable, running without live feed", "error", err)
		livePublisher = engine.NoopPublisher{}
	} else {
		defer publisher.Close()
		livePublisher = &feedPublisher{pub: publisher, runID: simCfg.runID, logger: slog.Default()}
	}

	refresh := time.Duration(simCfg.RefreshDensity * float64(time.Second))
	sim := engine.NewSimulation(skim, refresh, engine.FreedPerDropoff, livePublisher, slog.Default())

	behaviour, err := loadBehaviour(simCfg.BehaviouralConfig)
	if err != nil {
		log.Fatalf("behavioural config: %v", err)
	}
	sim.Fares, err = loadFares(simCfg.FaresConfig)
	if err != nil {
		log.Fatalf("fares config: %v", err)
	}

	vehicles, err := loadVehicles(simCfg.Vehicles)
	if err != nil {
		log.Fatalf("vehicles: %v", err)
	}
	requests, err := loadRequests(simCfg.Requests, behaviour)
	if err != nil {
		log.Fatalf("requests: %v", err)
	}
	for _, v := range vehicles {
		if _, ok := sim.Operators[v.Operator]; !ok {
			sim.Operators[v.Operator] = domain.NewOperator(v.Operator)
		}
	}
	for _, r := range requests {
		if _, ok := sim.Operators[r.Operator]; !ok {
			sim.Operators[r.Operator] = domain.NewOperator(r.Operator)
		}
	}

	sim.Seed(vehicles, requests)

	startedAt := time.Now()
	slog.Info("simulation starting", "run_id", simCfg.runID, "requests", len(requests), "vehicles", len(vehicles))

	if err := sim.Run(ctx); err != nil {
		log.Fatalf("simulation run failed: %v", err)
	}
	finishedAt := time.Now()

	summary, vehicleLog, rideLog, travellerResults, utilityResults := collectResults(simCfg.runID, simCfg.ConfigPath, startedAt, finishedAt, sim)

	if err := (reportwriter.TextWriter{}).Write(simCfg.OutputPath, summary, vehicleLog, rideLog, travellerResults, utilityResults); err != nil {
		slog.Error("report write failed", "error", err)
	}

	if err := persist(ctx, cfg, summary, vehicleLog, rideLog, travellerResults, utilityResults); err != nil {
		slog.Error("persist results failed", "error", err)
	}

	slog.Info("simulation finished",
		"run_id", simCfg.runID,
		"requests_total", summary.RequestsTotal,
		"taxi_assigned", summary.TaxiAssigned,
		"pool_assigned", summary.PoolAssigned,
		"resigned", summary.Resigned,
		"total_profit", summary.TotalProfit,
	)

	// Reference the dispatchretry adapter so the optional distributed
	// reattempt-worker has a concrete type to bind to when this run's
	// Simulation is exposed over an in-process RPC front; this binary's
	// own termination is driven purely by the in-process EventLoop above.
	_ = dispatchretry.New(simCfg.runID, sim)
}

// ---------------------------------------------------------------------------
// Config loading
// ---------------------------------------------------------------------------

type resolvedSimConfig struct {
	simulationConfigFile
	runID      string
	ConfigPath string
}

func loadSimulationConfig(path string) (resolvedSimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return resolvedSimConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	var parsed simulationConfigFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return resolvedSimConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if parsed.RefreshDensity <= 0 {
		parsed.RefreshDensity = 60
	}
	if parsed.OutputPath == "" {
		parsed.OutputPath = "./output"
	}
	return resolvedSimConfig{
		simulationConfigFile: parsed,
		runID:                fmt.Sprintf("run-%d", time.Now().UnixNano()),
		ConfigPath:            path,
	}, nil
}

func buildSkim(cfg resolvedSimConfig, cache ports.CacheService) (ports.Skim, error) {
	cityData, err := os.ReadFile(cfg.CityConfig)
	if err != nil {
		return nil, fmt.Errorf("read city config: %w", err)
	}
	var city cityConfigFile
	if err := json.Unmarshal(cityData, &city); err != nil {
		return nil, fmt.Errorf("parse city config: %w", err)
	}
	return graph.Load(city.Paths.CityGraph, cache, 3600)
}

func loadBehaviour(path string) (domain.Behaviour, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Behaviour{}, fmt.Errorf("read %s: %w", path, err)
	}
	var parsed behaviouralConfigFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return domain.Behaviour{}, fmt.Errorf("parse %s: %w", path, err)
	}
	pfs := make(map[int]float64, len(parsed.PoolRides.PfS))
	for k, v := range parsed.PoolRides.PfS {
		n, err := strconv.Atoi(k)
		if err != nil {
			return domain.Behaviour{}, fmt.Errorf("pool_rides.PfS key %q: %w", k, err)
		}
		pfs[n] = v
	}
	return domain.Behaviour{
		ValueOfTime:            parsed.VoT,
		PickupDelaySensitivity: parsed.PickupDelaySensitivity,
		MaxPickup:              time.Duration(parsed.MaximalPickup * float64(time.Second)),
		MaxWaiting:             time.Duration(parsed.MaximalWaiting * float64(time.Second)),
		PfSTable:               pfs,
		PfSConst:               parsed.PoolRides.PfSConst,
	}, nil
}

func loadFares(path string) (map[string]map[domain.ServiceKind]engine.Fares, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var parsed faresConfigFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make(map[string]map[domain.ServiceKind]engine.Fares, len(parsed.Fares))
	for op, table := range parsed.Fares {
		costs := parsed.OperatingCosts[op]
		poolDiscount := table["pool_discount"]
		out[op] = map[domain.ServiceKind]engine.Fares{
			domain.ServiceTaxi: {Fare: table["taxi"], OperatingCost: costs["taxi"]},
			domain.ServicePool: {Fare: table["pool"], OperatingCost: costs["pool"], PoolDiscount: poolDiscount, SharingDiscount: poolDiscount},
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Tabular input (spec.md §6)
// ---------------------------------------------------------------------------

const csvTimeLayout = "2006-01-02 15:04:05"

func loadVehicles(path string) ([]engine.VehicleRow, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	rows := make([]engine.VehicleRow, 0, len(records))
	for _, rec := range records {
		origin, err := strconv.ParseInt(rec["origin"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("vehicle %s: origin: %w", rec["id"], err)
		}
		start, err := time.Parse(csvTimeLayout, rec["start_time"])
		if err != nil {
			return nil, fmt.Errorf("vehicle %s: start_time: %w", rec["id"], err)
		}
		end, err := time.Parse(csvTimeLayout, rec["end_time"])
		if err != nil {
			return nil, fmt.Errorf("vehicle %s: end_time: %w", rec["id"], err)
		}
		capacity, err := strconv.Atoi(rec["capacity"])
		if err != nil {
			return nil, fmt.Errorf("vehicle %s: capacity: %w", rec["id"], err)
		}
		speed, err := strconv.ParseFloat(rec["speed"], 64)
		if err != nil {
			return nil, fmt.Errorf("vehicle %s: speed: %w", rec["id"], err)
		}
		rows = append(rows, engine.VehicleRow{
			ID:        rec["id"],
			Origin:    domain.NodeID(origin),
			StartTime: start,
			EndTime:   end,
			Type:      domain.VehicleType(rec["type"]),
			Capacity:  capacity,
			Speed:     speed,
			Operator:  rec["operator"],
		})
	}
	return rows, nil
}

func loadRequests(path string, behaviour domain.Behaviour) ([]engine.RequestRow, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	rows := make([]engine.RequestRow, 0, len(records))
	for _, rec := range records {
		origin, err := strconv.ParseInt(rec["origin"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("request %s: origin: %w", rec["id"], err)
		}
		destination, err := strconv.ParseInt(rec["destination"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("request %s: destination: %w", rec["id"], err)
		}
		requestTime, err := time.Parse(csvTimeLayout, rec["request_time"])
		if err != nil {
			return nil, fmt.Errorf("request %s: request_time: %w", rec["id"], err)
		}
		rows = append(rows, engine.RequestRow{
			ID:          rec["id"],
			Origin:      domain.NodeID(origin),
			Destination: domain.NodeID(destination),
			RequestTime: requestTime,
			Kind:        domain.ServiceKind(rec["type"]),
			Operator:    rec["operator"],
			Behaviour:   behaviour,
		})
	}
	return rows, nil
}

func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	var out []map[string]string
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Results collection
// ---------------------------------------------------------------------------

func collectResults(runID, configPath string, startedAt, finishedAt time.Time, sim *engine.Simulation) (
	ports.RunSummary, []ports.VehicleLogEntry, []ports.RideLogEntry, []ports.TravellerResultEntry, []ports.UtilityResultEntry,
) {
	var vehicleLog []ports.VehicleLogEntry
	var rideLog []ports.RideLogEntry
	var totalMileage, rideMileage, totalProfit, totalCost float64

	for opName, op := range sim.Operators {
		for _, v := range op.Vehicles() {
			totalMileage += v.Path.Mileage
			rideMileage += v.Path.OccupiedMileage
			for _, ev := range v.Path.Events {
				vehicleLog = append(vehicleLog, ports.VehicleLogEntry{
					RunID: runID, Operator: opName, VehicleID: v.ID, Event: ev, Mileage: v.Path.Mileage,
				})
			}
		}
		for _, ride := range op.Rides {
			profit := ride.GetProfitability()
			totalProfit += profit.Profit
			totalCost += profit.Cost
			rideLog = append(rideLog, ports.RideLogEntry{
				RunID: runID, Operator: opName, RideID: ride.RideID(), Type: ride.Type(),
				Travellers: ride.TravellerIDs(), Profit: profit,
			})
		}
	}

	var travellerResults []ports.TravellerResultEntry
	var utilityResults []ports.UtilityResultEntry
	var taxiAssigned, poolAssigned, resigned int
	var requestMileage float64

	for id, t := range sim.Travellers {
		requestMileage += t.TripLength
		var delay *float64
		if t.PickupDelay != nil {
			d := t.PickupDelay.Seconds()
			delay = &d
		}
		travellerResults = append(travellerResults, ports.TravellerResultEntry{
			RunID: runID, TravellerID: id, ServedBy: t.ServedBy, PickupDelay: delay, Resigned: t.Resigned,
		})
		for kind, utility := range t.Utilities {
			utilityResults = append(utilityResults, ports.UtilityResultEntry{
				RunID: runID, TravellerID: id, Kind: kind, Utility: utility, Distance: t.Distances[kind],
			})
		}
		switch {
		case t.Resigned:
			resigned++
		case t.ServedBy == domain.ServiceTaxi:
			taxiAssigned++
		case t.ServedBy == domain.ServicePool:
			poolAssigned++
		}
	}

	mileageReductionAbs := requestMileage - totalMileage
	var mileageReductionPct float64
	if requestMileage > 0 {
		mileageReductionPct = mileageReductionAbs / requestMileage * 100
	}

	summary := ports.RunSummary{
		RunID:               runID,
		ConfigPath:          configPath,
		StartedAt:           startedAt.Format(time.RFC3339),
		FinishedAt:          finishedAt.Format(time.RFC3339),
		RequestsTotal:       len(sim.Travellers),
		TaxiAssigned:        taxiAssigned,
		PoolAssigned:        poolAssigned,
		Resigned:            resigned,
		TotalProfit:         totalProfit,
		TotalCost:           totalCost,
		TotalMileage:        totalMileage,
		RideMileage:         rideMileage,
		RequestMileage:      requestMileage,
		MileageReductionAbs: mileageReductionAbs,
		MileageReductionPct: mileageReductionPct,
	}
	return summary, vehicleLog, rideLog, travellerResults, utilityResults
}

func persist(ctx context.Context, cfg *config.Config, summary ports.RunSummary, vehicleLog []ports.VehicleLogEntry, rideLog []ports.RideLogEntry, travellerResults []ports.TravellerResultEntry, utilityResults []ports.UtilityResultEntry) error {
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	runs := postgres.NewRunRepo(db)
	if err := runs.SaveSummary(ctx, summary); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	if err := runs.SaveVehicleLog(ctx, vehicleLog); err != nil {
		return fmt.Errorf("save vehicle log: %w", err)
	}
	if err := runs.SaveRideLog(ctx, rideLog); err != nil {
		return fmt.Errorf("save ride log: %w", err)
	}
	if err := runs.SaveTravellerResults(ctx, travellerResults); err != nil {
		return fmt.Errorf("save traveller results: %w", err)
	}
	if err := runs.SaveUtilityResults(ctx, utilityResults); err != nil {
		return fmt.Errorf("save utility results: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Live feed
// ---------------------------------------------------------------------------

// feedPublisher adapts the engine's traveller-centric Publisher to the
// ride.event.> live feed. It carries no vehicle/operator attribution since
// VehicleEvent doesn't, matching the upstream mover/loop call sites.
type feedPublisher struct {
	pub    *natsadapter.Publisher
	runID  string
	logger *slog.Logger
}

func (f *feedPublisher) Publish(event domain.VehicleEvent) {
	node := event.Node
	err := f.pub.PublishRideEvent(context.Background(), ports.RideEvent{
		RunID:     f.runID,
		Kind:      string(event.Kind),
		Traveller: event.TravellerID,
		Node:      &node,
	})
	if err != nil {
		f.logger.Warn("publish ride event failed", "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
