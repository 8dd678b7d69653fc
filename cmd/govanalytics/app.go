package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"govanalytics/config"
	"govanalytics/fetch"
	"govanalytics/observability/logging"
	"govanalytics/providers"
	"govanalytics/store"
)

// defaultGraphEndpoint is used when no subgraph endpoint override is set via
// GOVANALYTICS_GRAPH_ENDPOINT; spec.md §6 lists environment variables as
// "names only", so the value itself is opaque to the core.
const defaultGraphEndpoint = "https://gateway.thegraph.com/api/subgraphs/governance"

// app bundles the wiring every subcommand needs: configuration, the
// provider registry, the fetch coordinator, and the snapshot store.
type app struct {
	cfg         config.Config
	coordinator *fetch.Coordinator
	store       store.Store
	logger      *slog.Logger
}

func newApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(logging.Options{Service: "govanalytics", Env: strings.TrimSpace(os.Getenv("GOVANALYTICS_ENV"))}).With("run_id", uuid.NewString())

	client := &http.Client{Timeout: 15 * time.Second}
	graphEndpoint := strings.TrimSpace(os.Getenv("GOVANALYTICS_GRAPH_ENDPOINT"))
	if graphEndpoint == "" {
		graphEndpoint = defaultGraphEndpoint
	}
	registry := providers.NewRegistry(
		providers.NewEtherscanAdapter(cfg.APIKeys.Etherscan, client),
		providers.NewTheGraphAdapter(cfg.APIKeys.Graph, graphEndpoint, client),
		providers.NewAlchemyAdapter(cfg.APIKeys.Alchemy, client),
		providers.NewEthplorerAdapter(cfg.APIKeys.Ethplorer, client),
		providers.NewSimulatorAdapter(cfg.Simulator),
	)

	coordinator, err := fetch.New(registry, cfg, "simulator", cfg.Simulator.Seed)
	if err != nil {
		return nil, fmt.Errorf("build fetch coordinator: %w", err)
	}

	backend, err := openStore(cfg.SnapshotStore)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	return &app{cfg: cfg, coordinator: coordinator, store: backend, logger: logger}, nil
}

func openStore(cfg config.SnapshotStoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "disk":
		return store.NewDiskStore(cfg.Path)
	default:
		return store.NewMemStore(), nil
	}
}

func (a *app) close() {
	if a == nil || a.store == nil {
		return
	}
	_ = a.store.Close()
}
