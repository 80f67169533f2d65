package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/cuemby/vein/pkg/config"
	"github.com/cuemby/vein/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vein",
	Short: "vein - caching, revalidating mirror proxy for package registries",
	Long: `vein fronts gem, crate, and npm registries, caching resolved assets
on first fetch and revalidating on every subsequent request. Newly observed
package versions are withheld from index responses for a configurable
quarantine delay before they become visible to clients.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"vein version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(quarantineCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(catalogCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func init() {
	serveCmd.Flags().String("listen-addr", "", "Override the proxy's HTTP listen address")
	serveCmd.Flags().String("metrics-addr", "", "Override the metrics/health HTTP listen address")
	serveCmd.Flags().String("storage-path", "", "Override the object store root directory")
	serveCmd.Flags().String("db-path", "", "Override the bolt asset index path")
	serveCmd.Flags().String("db-url", "", "Override the postgres asset index URL (postgres://...)")
	serveCmd.Flags().String("upstream-url", "", "Override the upstream registry origin")
	serveCmd.Flags().Bool("enable-pprof", false, "Enable pprof profiling endpoints on the metrics server")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy server",
	Long: `Run vein's HTTP proxy against an upstream registry, with on-disk
caching, revalidation, and quarantine enforcement.`,
	RunE: runServe,
}

func runApplyOverrides(cmd *cobra.Command, cfg *Config) {
	if v, _ := cmd.Flags().GetString("listen-addr"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v, _ := cmd.Flags().GetString("metrics-addr"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	if v, _ := cmd.Flags().GetString("storage-path"); v != "" {
		cfg.Storage.Path = v
	}
	if v, _ := cmd.Flags().GetString("db-path"); v != "" {
		cfg.Database.Path = v
	}
	if v, _ := cmd.Flags().GetString("db-url"); v != "" {
		cfg.Database.URL = v
	}
	if v, _ := cmd.Flags().GetString("upstream-url"); v != "" {
		cfg.Upstream.URL = v
	}
}

func init() {
	quarantineCmd.AddCommand(quarantineStatusCmd)
	quarantineCmd.AddCommand(quarantineListCmd)
	quarantineCmd.AddCommand(quarantineApproveCmd)
	quarantineCmd.AddCommand(quarantineBlockCmd)
	quarantineCmd.AddCommand(quarantinePromoteCmd)

	for _, c := range []*cobra.Command{quarantineStatusCmd, quarantineListCmd, quarantineApproveCmd, quarantineBlockCmd, quarantinePromoteCmd} {
		c.Flags().String("db-path", "", "Bolt asset index path")
		c.Flags().String("db-url", "", "Postgres asset index URL (postgres://...)")
	}

	quarantineApproveCmd.Flags().String("reason", "manual approval", "Reason recorded for the status change")
	quarantineBlockCmd.Flags().String("reason", "manual block", "Reason recorded for the status change")

	statsCmd.Flags().String("db-path", "", "Bolt asset index path")
	statsCmd.Flags().String("db-url", "", "Postgres asset index URL (postgres://...)")

	healthCmd.Flags().String("metrics-addr", "", "Metrics/health server address to query")

	catalogCmd.AddCommand(catalogSyncCmd)
}

var quarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "Inspect and manage quarantined package versions",
}

var quarantineStatusCmd = &cobra.Command{
	Use:   "status NAME VERSION PLATFORM",
	Short: "Show whether a specific version is currently quarantined",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, closeIdx, err := openIndexFromFlags(cmd)
		if err != nil {
			return err
		}
		defer closeIdx()

		gv, err := idx.GetGemVersion(context.Background(), args[0], args[1], args[2])
		if err == assetindex.ErrNotFound {
			fmt.Println("never observed")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up version: %w", err)
		}
		fmt.Printf("%s %s (%s): status=%s\n", gv.Name, gv.Version, gv.Platform, gv.Status)
		return nil
	},
}

var quarantineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List versions in quarantine status, with the time each becomes available",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, closeIdx, err := openIndexFromFlags(cmd)
		if err != nil {
			return err
		}
		defer closeIdx()

		versions, err := idx.ListQuarantined(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list quarantined versions: %w", err)
		}
		if len(versions) == 0 {
			fmt.Println("No quarantined versions")
			return nil
		}
		fmt.Printf("%-24s %-16s %-10s %-12s %s\n", "NAME", "VERSION", "PLATFORM", "STATUS", "AVAILABLE AFTER")
		for _, gv := range versions {
			fmt.Printf("%-24s %-16s %-10s %-12s %s\n",
				gv.Name, gv.Version, gv.Platform, gv.Status,
				gv.AvailableAfter.UTC().Format(time.RFC3339))
		}
		return nil
	},
}

var quarantineApproveCmd = &cobra.Command{
	Use:   "approve NAME VERSION PLATFORM",
	Short: "Promote a version out of quarantine immediately",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, args, approveTransition)
	},
}

var quarantineBlockCmd = &cobra.Command{
	Use:   "block NAME VERSION PLATFORM",
	Short: "Block a version, hiding it regardless of quarantine delay",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, args, blockTransition)
	},
}

type transitionFunc func(e *quarantineEngine, ctx context.Context, name, version, platform, reason string) error

func runTransition(cmd *cobra.Command, args []string, fn transitionFunc) error {
	idx, closeIdx, err := openIndexFromFlags(cmd)
	if err != nil {
		return err
	}
	defer closeIdx()

	reason, _ := cmd.Flags().GetString("reason")
	qe := newQuarantineEngine(idx, config.DefaultDelayPolicyConfig())
	if err := fn(qe, context.Background(), args[0], args[1], args[2], reason); err != nil {
		return fmt.Errorf("transition failed: %w", err)
	}
	fmt.Printf("%s %s (%s) updated\n", args[0], args[1], args[2])
	return nil
}

var quarantinePromoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Run one quarantine promotion sweep immediately, outside its hourly schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, closeIdx, err := openIndexFromFlags(cmd)
		if err != nil {
			return err
		}
		defer closeIdx()

		qe := newQuarantineEngine(idx, config.DefaultDelayPolicyConfig())
		n, err := qe.Promote(context.Background())
		if err != nil {
			return fmt.Errorf("promotion sweep failed: %w", err)
		}
		fmt.Printf("%d version(s) promoted\n", n)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print asset index counts: cached assets, manifests, catalog names, quarantine status",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, closeIdx, err := openIndexFromFlags(cmd)
		if err != nil {
			return err
		}
		defer closeIdx()

		stats, err := idx.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to read stats: %w", err)
		}
		fmt.Printf("cached assets:      %d\n", stats.CachedAssets)
		fmt.Printf("manifests analyzed: %d\n", stats.ManifestsAnalyzed)
		fmt.Printf("catalog names:      %d\n", stats.CatalogNames)
		for status, count := range stats.GemVersionsByStatus {
			fmt.Printf("gem versions %-12s %d\n", string(status)+":", count)
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query a running instance's /health endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("metrics-addr")
		if addr == "" {
			addr = config.Default().Server.MetricsAddr
		}
		return queryHealth(addr)
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and manage the known package-name catalog",
}

var catalogSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the catalog name set from upstream (external collaborator hook)",
	Long: `The core asset index exposes PutCatalogName/ListCatalogNames as the
interface a catalog-sync job would call; the crawl/schedule that walks an
upstream registry's full name list and calls it is an external concern
and is not implemented here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("catalog sync is an external collaborator of this core; no crawl is implemented here")
		return nil
	},
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	runApplyOverrides(cmd, &cfg)
	if err := cfg.Storage.NormalizePaths(); err != nil {
		return fmt.Errorf("failed to normalize storage path: %w", err)
	}

	logger := log.WithComponent("main")

	idx, closeIdx, err := openIndex(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open asset index: %w", err)
	}
	defer closeIdx()

	store, err := openObjectStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open object store: %w", err)
	}

	client := newUpstreamClient(cfg.Upstream)
	qe := newQuarantineEngine(idx, cfg.DelayPolicy)
	sched := newScheduler(qe)
	sched.Start()

	engine := newProxyEngine(store, idx, client, qe, cfg.Upstream)

	collector := newCollector(idx)
	collector.Start()

	setVersion(Version)
	registerComponent("asset_index", true, "ready")
	registerComponent("object_store", true, "ready")
	registerComponent("proxy", true, "ready")

	pprofEnabled, _ := cmd.Flags().GetBool("enable-pprof")
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metricsHandler())
	metricsMux.Handle("/health", healthHandler())
	metricsMux.Handle("/ready", readyHandler())
	metricsMux.Handle("/live", livenessHandler())
	if pprofEnabled {
		metricsMux.Handle("/debug/pprof/", http.DefaultServeMux)
	}
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux}

	go func() {
		logger.Info().Str("addr", cfg.Server.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	proxyServer := &http.Server{Addr: cfg.Server.ListenAddr, Handler: engine.Handler()}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.ListenAddr).Msg("proxy server listening")
		if err := proxyServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("proxy server error: %w", err)
		}
	}()

	fmt.Printf("vein is running. Proxy: http://%s  Metrics: http://%s/metrics\n", cfg.Server.ListenAddr, cfg.Server.MetricsAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("shutting down after server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sched.Stop()
	collector.Stop()
	_ = proxyServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	fmt.Println("shutdown complete")
	return nil
}
