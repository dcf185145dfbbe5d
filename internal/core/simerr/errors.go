// Package simerr defines the error kinds raised across the dispatch engine.
//
// Every kind is a sentinel wrapped with fmt.Errorf("%w: ...", Kind, detail) at
// the call site, so callers can test with errors.Is while still getting a
// message with the offending node, ride, or vehicle id.
package simerr

import "errors"

var (
	// ErrUnknownNode is raised when a Skim is asked for a node id it has no
	// coordinates or adjacency for.
	ErrUnknownNode = errors.New("unknown node")

	// ErrUnsupportedSkim is raised when a Skim cannot answer a query at all
	// (e.g. no path between two nodes of a disconnected graph). An empty
	// node sequence is reported as ErrInvariantViolation instead.
	ErrUnsupportedSkim = errors.New("unsupported skim query")

	// ErrNoFeasibleVehicle is raised when a dispatcher finds no vehicle
	// able to serve a request under its current constraints.
	ErrNoFeasibleVehicle = errors.New("no feasible vehicle")

	// ErrResigned is raised when an operation is attempted against a
	// traveller who has already resigned from the request queue.
	ErrResigned = errors.New("traveller resigned")

	// ErrInvariantViolation guards state the engine considers impossible;
	// it should never surface outside of a test.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrConfigInvalid is raised by config/file validation.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrCapacityExceeded is raised when a pool ride is asked to carry more
	// travellers than its vehicle's capacity allows.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)
