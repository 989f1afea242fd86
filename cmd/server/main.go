package main

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Jeremiassm/controlh-app/internal/api"
	"github.com/Jeremiassm/controlh-app/internal/config"
	"github.com/Jeremiassm/controlh-app/internal/db"
	"github.com/Jeremiassm/controlh-app/pkg/tracker"
	"github.com/Jeremiassm/controlh-app/pkg/ward"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := db.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.Driver, err)
	}
	defer store.Close()

	bus := ward.NewBus(store)
	svc := tracker.New(bus,
		tracker.WithLocation(cfg.Location),
		tracker.WithCategories(ward.NewCategorySet(cfg.Categories...)),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	server := api.New(svc, bus, reg)

	log.Printf("controlh listening on :%s (driver=%s, tz=%s)", cfg.ListenPort, cfg.Driver, cfg.Location)
	if err := http.ListenAndServe(":"+cfg.ListenPort, server); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
