package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/cuemby/vein/pkg/assetindex/boltindex"
	"github.com/cuemby/vein/pkg/assetindex/sqlindex"
	"github.com/cuemby/vein/pkg/config"
	"github.com/cuemby/vein/pkg/metrics"
	"github.com/cuemby/vein/pkg/objectstore"
	"github.com/cuemby/vein/pkg/proxy"
	"github.com/cuemby/vein/pkg/quarantine"
	"github.com/cuemby/vein/pkg/upstream"
)

// postgresPoolSize is the connection pool size used when the asset
// index is backed by postgres. There is no dedicated config knob for
// it yet, so a single sensible default is used for every deployment.
const postgresPoolSize = 10

// Config is the typed configuration surface used by the CLI.
type Config = config.Config

type quarantineEngine = quarantine.Engine

func loadConfig() Config {
	return config.Default()
}

// openIndex resolves the configured database backend (bolt or postgres)
// and opens it, returning a close func regardless of which backend was
// chosen so callers don't need a type switch at the call site.
func openIndex(dbCfg config.DatabaseConfig) (assetindex.Index, func(), error) {
	backend := dbCfg.Backend()
	switch backend.Kind {
	case config.BackendPostgres:
		idx, err := sqlindex.Open(context.Background(), backend.URL, postgresPoolSize)
		if err != nil {
			return nil, nil, err
		}
		return idx, func() { _ = idx.Close() }, nil
	default:
		idx, err := boltindex.Open(backend.Path)
		if err != nil {
			return nil, nil, err
		}
		return idx, func() { _ = idx.Close() }, nil
	}
}

// openIndexFromFlags resolves --db-path/--db-url flags (falling back to
// config.Default()) for the quarantine and stats subcommands, which run
// standalone rather than as part of `serve`.
func openIndexFromFlags(cmd *cobra.Command) (assetindex.Index, func(), error) {
	cfg := loadConfig()
	if v, _ := cmd.Flags().GetString("db-path"); v != "" {
		cfg.Database.Path = v
	}
	if v, _ := cmd.Flags().GetString("db-url"); v != "" {
		cfg.Database.URL = v
	}
	return openIndex(cfg.Database)
}

func openObjectStore(path string) (*objectstore.Store, error) {
	return objectstore.Open(path)
}

func newUpstreamClient(cfg config.UpstreamConfig) *upstream.Client {
	return upstream.New(cfg)
}

func newQuarantineEngine(idx assetindex.Index, policy config.DelayPolicyConfig) *quarantineEngine {
	return quarantine.New(idx, policy)
}

func newScheduler(qe *quarantineEngine) *quarantine.Scheduler {
	return quarantine.NewScheduler(qe)
}

func newProxyEngine(store *objectstore.Store, idx assetindex.Index, client *upstream.Client, qe *quarantineEngine, cfg config.UpstreamConfig) *proxy.Engine {
	return proxy.New(store, idx, client, qe, cfg)
}

func newCollector(idx assetindex.Index) *metrics.Collector {
	return metrics.NewCollector(idx)
}

func setVersion(v string) { metrics.SetVersion(v) }

func registerComponent(name string, healthy bool, msg string) {
	metrics.RegisterComponent(name, healthy, msg)
}

func metricsHandler() http.Handler  { return metrics.Handler() }
func healthHandler() http.Handler   { return metrics.HealthHandler() }
func readyHandler() http.Handler    { return metrics.ReadyHandler() }
func livenessHandler() http.Handler { return metrics.LivenessHandler() }

func approveTransition(e *quarantineEngine, ctx context.Context, name, version, platform, reason string) error {
	return e.Approve(ctx, name, version, platform, reason)
}

func blockTransition(e *quarantineEngine, ctx context.Context, name, version, platform, reason string) error {
	return e.Block(ctx, name, version, platform, reason)
}

// queryHealth fetches and prints the /health document from a running
// instance's metrics server, the CLI-facing counterpart to the same
// JSON the liveness/readiness probes consume.
func queryHealth(metricsAddr string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + metricsAddr + "/health")
	if err != nil {
		return fmt.Errorf("failed to reach metrics server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read health response: %w", err)
	}

	var pretty map[string]any
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
	return nil
}
