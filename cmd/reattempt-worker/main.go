package main

import (
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/ridesim/dispatch/internal/adapters/nats"
	"github.com/ridesim/dispatch/internal/core/ports"
	"github.com/ridesim/dispatch/internal/pkg/config"
	"github.com/ridesim/dispatch/internal/workflows"
)

func main() {
	cfg, err := config.Load("ridesim-reattempt-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	var publisher ports.EventPublisher
	if np, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		log.Printf("nats unavailable, reattempt commits will only be logged: %v", err)
	} else {
		defer np.Close()
		publisher = np
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.ReattemptWorkflow)
	w.RegisterActivity(&workflows.ReattemptActivities{
		// Dispatch is left nil: it binds to a live engine.Simulation via
		// internal/adapters/dispatchretry.Adapter, and this process has no
		// Simulation of its own. cmd/simulate builds an Adapter but does
		// not hand it to any worker.
		Publisher: publisher,
	})

	log.Println("reattempt worker started")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
