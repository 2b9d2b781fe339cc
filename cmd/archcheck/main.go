package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"archcheck/internal/cache"
	"archcheck/internal/config"
	"archcheck/internal/crawler"
	"archcheck/internal/extractor"
	"archcheck/internal/graph"
	"archcheck/internal/index"
	"archcheck/internal/location"
	"archcheck/internal/logging"
	"archcheck/internal/storage"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "archcheck",
		Short: "Check architecture rules against compiled JVM classes",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setup()
		},
	}
	configPath string
	dbPath     string
	logLevel   string

	cfg      *config.Config
	logger   *log.Logger
	registry = prometheus.NewRegistry()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the configuration file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the snapshot database (SQLite); overrides the configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(runsCmd)
}

// setup loads configuration and the logger before any command runs.
func setup() {
	var err error
	cfg, err = config.LoadConfig(configPath)
	if err != nil {
		logging.New(os.Stderr, "").Fatalf("Failed to load config: %v", err)
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger = logging.New(os.Stderr, cfg.Log.Level)
}

// initStore opens the snapshot database.
func initStore() (*storage.SQLiteStore, error) {
	return storage.NewSQLiteStore(cfg.Storage.Path)
}

// resolveLocations parses the command arguments, falling back to the
// configured locations. Unsupported addresses are logged and skipped.
func resolveLocations(args []string) []location.Location {
	raw := args
	if len(raw) == 0 {
		raw = cfg.Locations
	}
	locs, errs := index.ResolveLocations(raw)
	for _, err := range errs {
		logger.Warn("skipping location", "err", err)
	}
	if len(locs) == 0 {
		logger.Fatal("No locations to import; pass them as arguments or set 'locations' in " + configPath)
	}
	return locs
}

func newImporter() *index.Importer {
	cr := crawler.NewCrawler(extractor.NewExtractor())
	cr.Logger = logger
	if cfg.Import.Workers > 0 {
		cr.Workers = cfg.Import.Workers
	}
	return index.NewImporter(cr, logger)
}

func newCache() *cache.Cache {
	store, err := cache.NewLRUStore(cfg.Cache.Size)
	if err != nil {
		logger.Fatalf("Failed to create cache: %v", err)
	}
	return cache.New(store, cache.WithRegisterer(registry), cache.WithLogger(logger))
}

// importGraph imports locs through a cache context, so every lookup within
// one command sees the same graph.
func importGraph(ctx context.Context, cc *cache.Context, locs []location.Location) *graph.Graph {
	importer := newImporter()
	filters := index.Filters(cfg.Import)
	g, err := cc.GetOrImport(ctx, locs, func(ctx context.Context, locs []location.Location) (*graph.Graph, error) {
		return importer.Import(ctx, locs, filters...)
	})
	if err != nil {
		logger.Fatalf("Import failed: %v", err)
	}
	logDiagnostics(g)
	return g
}

func logDiagnostics(g *graph.Graph) {
	for _, d := range g.Diagnostics() {
		switch d.Kind {
		case graph.DiagnosticUnresolved:
			logger.Debug("unresolved class", "name", d.Name)
		default:
			logger.Warn(string(d.Kind), "name", d.Name, "detail", d.Detail)
		}
	}
}

// logMetrics writes the cache counters at debug level.
func logMetrics() {
	families, err := registry.Gather()
	if err != nil {
		logger.Debug("failed to gather metrics", "err", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			logger.Debug("metric", "name", mf.GetName(), "labels", strings.Join(labels, ","), "value", m.GetCounter().GetValue())
		}
	}
}

func printStats(g *graph.Graph) {
	stats := g.Stats()
	fmt.Printf("✅ %d classes in %d packages, %d dependencies, %d unresolved.\n",
		stats.Classes, stats.Packages, stats.Dependencies, stats.Stubs)
	counts := g.DiagnosticCounts()
	if n := counts[graph.DiagnosticMalformed] + counts[graph.DiagnosticUnreadable]; n > 0 {
		fmt.Printf("⚠️  %d inputs could not be read or parsed.\n", n)
	}
	if n := counts[graph.DiagnosticDuplicate]; n > 0 {
		fmt.Printf("⚠️  %d classes were defined more than once; the last definition won.\n", n)
	}
}
