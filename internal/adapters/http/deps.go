package http

import (
	"github.com/nats-io/nats.go"

	"github.com/ridesim/dispatch/internal/adapters/postgres"
	"github.com/ridesim/dispatch/internal/adapters/valkey"
	"github.com/ridesim/dispatch/internal/core/ports"
)

// Dependencies holds all services needed by HTTP handlers: a read-only
// reporting API over persisted run results, plus a WebSocket relay of the
// live NATS event feed while a run is in progress.
type Dependencies struct {
	Runs  ports.RunRepository
	NATS  *nats.Conn
	DB    *postgres.DB
	Cache *valkey.Cache
}
