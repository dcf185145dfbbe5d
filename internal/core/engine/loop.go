package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ridesim/dispatch/internal/core/domain"
	"github.com/ridesim/dispatch/internal/core/ports"
	"github.com/ridesim/dispatch/internal/core/simerr"
)

// EventKind orders the three event types the loop interleaves. Equal
// timestamps resolve NEW_VEHICLE before REQUEST before TICK, per §4.6.
type EventKind int

const (
	EventNewVehicle EventKind = iota
	EventRequest
	EventTick
)

// RequestRow is one parsed row of the requests table (§6).
type RequestRow struct {
	ID          string
	Origin      domain.NodeID
	Destination domain.NodeID
	RequestTime time.Time
	Kind        domain.ServiceKind
	Operator    string
	Behaviour   domain.Behaviour
}

// VehicleRow is one parsed row of the vehicles table (§6).
type VehicleRow struct {
	ID        string
	Origin    domain.NodeID
	StartTime time.Time
	EndTime   time.Time
	Type      domain.VehicleType
	Capacity  int
	Speed     float64
	Operator  string
}

// event is one entry of the loop's chronological queue.
type event struct {
	Time    time.Time
	Kind    EventKind
	Seq     int // original input order, preserved as a tiebreak within a kind
	Vehicle *VehicleRow
	Request *RequestRow
}

// Fares bundles an operator's per-kind pricing, keyed by domain.ServiceKind.
type Fares struct {
	Fare            float64
	OperatingCost   float64
	PoolDiscount    float64
	SharingDiscount float64
}

// Simulation is the event loop's mutable context: the simulation-global
// Travellers registry, the per-operator dispatchers, and the shared Skim,
// created at initialise and torn down at finalize (§9 design note).
type Simulation struct {
	Skim           ports.Skim
	Operators      map[string]*domain.Operator
	Travellers     Travellers
	Refresh        time.Duration
	CapacityPolicy PoolCapacityFreed
	Publisher      Publisher
	Fares          map[string]map[domain.ServiceKind]Fares // operator -> kind -> fares
	Logger         *slog.Logger

	queue        []event
	lastEventTime time.Time
	seq          int
}

// NewSimulation builds an empty Simulation context; callers populate
// Operators per named operator before calling Run.
func NewSimulation(skim ports.Skim, refresh time.Duration, capacityPolicy PoolCapacityFreed, pub Publisher, logger *slog.Logger) *Simulation {
	if pub == nil {
		pub = NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulation{
		Skim:           skim,
		Operators:      make(map[string]*domain.Operator),
		Travellers:     make(Travellers),
		Refresh:        refresh,
		CapacityPolicy: capacityPolicy,
		Publisher:      pub,
		Fares:          make(map[string]map[domain.ServiceKind]Fares),
		Logger:         logger,
	}
}

// Seed loads the initial chronological event stream from the vehicle and
// request rows, sorted ascending by (time, kind) with input order preserved
// within a kind.
func (s *Simulation) Seed(vehicles []VehicleRow, requests []RequestRow) {
	for i := range vehicles {
		s.queue = append(s.queue, event{Time: vehicles[i].StartTime, Kind: EventNewVehicle, Seq: s.seq, Vehicle: &vehicles[i]})
		s.seq++
	}
	for i := range requests {
		s.queue = append(s.queue, event{Time: requests[i].RequestTime, Kind: EventRequest, Seq: s.seq, Request: &requests[i]})
		s.seq++
	}
	s.sortQueue()
}

func (s *Simulation) sortQueue() {
	sort.SliceStable(s.queue, func(i, j int) bool {
		a, b := s.queue[i], s.queue[j]
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Seq < b.Seq
	})
}

func (s *Simulation) fareFor(operator string, kind domain.ServiceKind) Fares {
	if m, ok := s.Fares[operator]; ok {
		if f, ok := m[kind]; ok {
			return f
		}
	}
	return Fares{Fare: 1, OperatingCost: 0.1}
}

// activeRides returns every active ride, paired with its serving vehicle,
// across every operator.
func (s *Simulation) activeRides() []struct {
	Ride    domain.Ride
	Vehicle *domain.Vehicle
} {
	var out []struct {
		Ride    domain.Ride
		Vehicle *domain.Vehicle
	}
	for _, op := range s.Operators {
		for _, ride := range op.Rides {
			if !ride.IsActive() {
				continue
			}
			v := findVehicleByID(op, ride.ServingVehicle())
			if v == nil {
				continue
			}
			out = append(out, struct {
				Ride    domain.Ride
				Vehicle *domain.Vehicle
			}{ride, v})
		}
	}
	return out
}

func (s *Simulation) anyRideActive() bool {
	for _, op := range s.Operators {
		for _, r := range op.Rides {
			if r.IsActive() {
				return true
			}
		}
	}
	return false
}

// Run drives the C6 event loop to completion per §4.6.
func (s *Simulation) Run(ctx context.Context) error {
	for len(s.queue) > 0 || s.anyRideActive() {
		if len(s.queue) == 0 {
			s.queue = append(s.queue, event{Time: s.lastEventTime.Add(s.Refresh), Kind: EventTick, Seq: s.seq})
			s.seq++
		}

		head := s.queue[0]
		delta := head.Time.Sub(s.lastEventTime)
		if delta > 0 {
			for _, ar := range s.activeRides() {
				if err := Move(ctx, s.Skim, ar.Vehicle, ar.Ride, s.Travellers, delta, s.CapacityPolicy, s.Publisher); err != nil {
					if errors.Is(err, simerr.ErrInvariantViolation) {
						return fmt.Errorf("advance vehicle %s: %w", ar.Vehicle.ID, err)
					}
					s.Logger.Error("vehicle advance failed", "vehicle", ar.Vehicle.ID, "error", err)
				}
			}
			s.lastEventTime = head.Time
		}

		switch head.Kind {
		case EventNewVehicle:
			s.handleNewVehicle(head.Vehicle)
		case EventRequest:
			if err := s.handleRequest(ctx, head.Request); err != nil {
				return err
			}
		case EventTick:
			// synthetic tick: movement above already advanced every ride.
		}

		s.queue = s.queue[1:]

		for _, op := range s.Operators {
			for _, v := range op.Vehicles() {
				if !v.Path.CurrentTime.Before(v.EndTime) {
					v.Available = false
				}
			}
		}
	}
	return nil
}

func (s *Simulation) handleNewVehicle(row *VehicleRow) {
	op, ok := s.Operators[row.Operator]
	if !ok {
		op = domain.NewOperator(row.Operator)
		s.Operators[row.Operator] = op
	}
	v := &domain.Vehicle{
		ID: row.ID, Operator: row.Operator, Type: row.Type,
		Speed: row.Speed, Capacity: row.Capacity,
		StartTime: row.StartTime, EndTime: row.EndTime, Available: true,
	}
	v.Path.CurrentPosition = row.Origin
	v.Path.CurrentTime = row.StartTime
	v.Path.Stationary = true
	op.Fleet[row.Type] = append(op.Fleet[row.Type], v)
}

// handleRequest implements §4.6 step 3's REQUEST handling, including the
// deferral/resignation rule.
func (s *Simulation) handleRequest(ctx context.Context, row *RequestRow) error {
	traveller, existing := s.Travellers[row.ID]
	if !existing {
		tripLength, err := s.Skim.Distance(ctx, []domain.NodeID{row.Origin, row.Destination})
		if err != nil {
			s.Logger.Error("unknown node in request, discarding", "request", row.ID, "error", err)
			return nil
		}
		traveller = domain.NewTraveller(row.ID, row.Origin, row.Destination, row.RequestTime, row.Kind, row.Behaviour)
		traveller.TripLength = tripLength
		s.Travellers[row.ID] = traveller
	}
	if traveller.Resigned {
		return nil
	}

	op, ok := s.Operators[row.Operator]
	if !ok {
		return fmt.Errorf("%w: unknown operator %q", simerr.ErrInvariantViolation, row.Operator)
	}
	fares := s.fareFor(row.Operator, row.Kind)

	if row.Kind == domain.ServicePool {
		pools := ActivePoolRides(op)
		match, err := PoolUtilityEval(ctx, s.Skim, op, traveller, pools, s.Travellers, DefaultMatchOptions(), fares.Fare, fares.PoolDiscount, fares.OperatingCost, fares.SharingDiscount)
		if err != nil {
			return fmt.Errorf("pool match: %w", err)
		}
		switch {
		case len(match.Candidates) > 0:
			if err := AssignPool(ctx, s.Skim, match.Candidates, traveller, s.Travellers); err != nil {
				return fmt.Errorf("assign pool: %w", err)
			}
			s.Publisher.Publish(domain.VehicleEvent{Time: s.lastEventTime, Kind: "commit_pool", TravellerID: traveller.ID})
			return nil
		case match.TaxiFallback != nil:
			if err := AssignPoolFresh(ctx, s.Skim, op, *match.TaxiFallback, traveller); err != nil {
				return fmt.Errorf("assign pool fallback: %w", err)
			}
			s.Publisher.Publish(domain.VehicleEvent{Time: s.lastEventTime, Kind: "commit_pool", TravellerID: traveller.ID})
			return nil
		}
	} else {
		ride, vehicle, profit, utility, found, err := TaxiCandidate(ctx, s.Skim, op, traveller, MatchOptions{OnlyTaxi: true}, fares.Fare, fares.OperatingCost)
		if err != nil {
			return fmt.Errorf("taxi match: %w", err)
		}
		if found {
			if err := AssignTaxi(ctx, s.Skim, op, ride, vehicle, traveller, profit, utility); err != nil {
				return fmt.Errorf("assign taxi: %w", err)
			}
			s.Publisher.Publish(domain.VehicleEvent{Time: s.lastEventTime, Kind: "commit_taxi", TravellerID: traveller.ID})
			return nil
		}
	}

	// Deferral / resignation.
	traveller.AccumulatedWaiting += s.Refresh
	if traveller.AccumulatedWaiting > traveller.Behaviour.MaxWaiting {
		traveller.Resigned = true
		s.Publisher.Publish(domain.VehicleEvent{Time: s.lastEventTime, Kind: "resigned", TravellerID: traveller.ID})
		return nil
	}
	s.queue = append(s.queue, event{Time: s.lastEventTime.Add(s.Refresh), Kind: EventRequest, Seq: s.seq, Request: row})
	s.seq++
	s.sortQueue()
	s.Publisher.Publish(domain.VehicleEvent{Time: s.lastEventTime, Kind: "deferred", TravellerID: traveller.ID})
	return nil
}
