package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"archcheck/internal/analysis"
	"archcheck/internal/cache"
	"archcheck/internal/extractor"
	"archcheck/internal/graph"
	"archcheck/internal/index"
	"archcheck/internal/report"
	"archcheck/internal/retrieval"
	"archcheck/internal/rules"
	"archcheck/internal/storage"
	"archcheck/internal/tree"

	"github.com/spf13/cobra"
)

var (
	saveSnapshot bool
	jsonPath     string

	fromRun      string
	reportFormat string

	treeFilter  string
	treeExclude bool
	treeFold    []string

	depsHops     int
	depsIncoming bool
	depsKinds    []string

	diagramExternal bool
)

func init() {
	importCmd.Flags().BoolVar(&saveSnapshot, "save", false, "Save the imported graph as a snapshot in the database")
	importCmd.Flags().StringVar(&jsonPath, "json", "", "Write the graph summary to this JSON file")

	checkCmd.Flags().StringVar(&fromRun, "run", "", "Check a saved snapshot instead of importing (run id or 'latest')")
	checkCmd.Flags().StringVar(&reportFormat, "format", "text", "Report format: text or markdown")

	treeCmd.Flags().StringVar(&treeFilter, "filter", "", "Show only classes matching this name pattern")
	treeCmd.Flags().BoolVar(&treeExclude, "exclude", false, "Invert --filter")
	treeCmd.Flags().StringSliceVar(&treeFold, "fold", nil, "Fold these packages or classes")

	depsCmd.Flags().IntVar(&depsHops, "hops", 1, "Maximum distance from the class (0 = unbounded)")
	depsCmd.Flags().BoolVar(&depsIncoming, "incoming", false, "Follow dependencies towards the class instead of away from it")
	depsCmd.Flags().StringSliceVar(&depsKinds, "kind", nil, "Only follow these access kinds, e.g. method_call,inheritance")

	diagramCmd.Flags().BoolVar(&diagramExternal, "external", false, "Include packages of unresolved classes")
}

var importCmd = &cobra.Command{
	Use:   "import [locations...]",
	Short: "Import class files and archives and print a summary",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		locs := resolveLocations(args)

		fmt.Printf("📂 Importing %d locations...\n", len(locs))
		start := time.Now()
		cc := newCache().NewContext()
		defer cc.Close()
		g := importGraph(ctx, cc, locs)
		fmt.Printf("🔗 Graph linked in %v.\n", time.Since(start).Round(time.Millisecond))
		printStats(g)

		if jsonPath != "" {
			if err := index.ExportFile(g, jsonPath); err != nil {
				logger.Fatalf("Failed to write %s: %v", jsonPath, err)
			}
			fmt.Printf("📝 Summary written to %s\n", jsonPath)
		}

		if saveSnapshot {
			store, err := initStore()
			if err != nil {
				logger.Fatalf("Failed to initialize database: %v", err)
			}
			defer store.Close()

			fmt.Println("💾 Saving snapshot...")
			runID, err := store.SaveGraph(ctx, string(cache.KeyOf(locs)), g)
			if err != nil {
				logger.Fatalf("Failed to save graph: %v", err)
			}
			fmt.Printf("🎉 Snapshot %s saved to %s\n", runID, cfg.Storage.Path)
		}
		logMetrics()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [locations...]",
	Short: "Evaluate the configured rules; exits non-zero on violations",
	Run: func(cmd *cobra.Command, args []string) {
		if !runCheck(cmd.Context(), args) {
			os.Exit(1)
		}
	},
}

// runCheck evaluates every configured rule and reports whether all passed.
func runCheck(ctx context.Context, args []string) bool {
	ruleSet, err := rules.CompileAll(cfg.Rules)
	if err != nil {
		logger.Fatalf("Invalid rule: %v", err)
	}
	if len(ruleSet) == 0 {
		logger.Fatal("No rules configured in " + configPath)
	}

	var g *graph.Graph
	if fromRun != "" {
		g = loadSnapshot(ctx, fromRun)
	} else {
		cc := newCache().NewContext()
		defer cc.Close()
		g = importGraph(ctx, cc, resolveLocations(args))
	}

	results, err := rules.EvaluateAll(ctx, g, ruleSet...)
	if err != nil {
		logger.Fatalf("Evaluation failed: %v", err)
	}

	passed := true
	for _, r := range results {
		if !r.Passed() {
			passed = false
		}
	}

	switch reportFormat {
	case "markdown", "md":
		if err := report.Markdown(os.Stdout, g.Stats(), results); err != nil {
			logger.Fatalf("Failed to write report: %v", err)
		}
	default:
		for _, r := range results {
			fmt.Print(r.Report())
		}
	}
	logMetrics()
	return passed
}

func loadSnapshot(ctx context.Context, runID string) *graph.Graph {
	store, err := initStore()
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	if runID == "latest" {
		run, err := store.LatestRun(ctx)
		if errors.Is(err, storage.ErrRunNotFound) {
			logger.Fatal("No snapshots saved yet; run 'archcheck import --save' first")
		}
		if err != nil {
			logger.Fatalf("Failed to read snapshots: %v", err)
		}
		runID = run.ID
	}

	fmt.Printf("🔄 Loading snapshot %s...\n", runID)
	g, err := store.LoadGraph(ctx, runID)
	if err != nil {
		logger.Fatalf("Failed to load graph: %v", err)
	}
	return g
}

var treeCmd = &cobra.Command{
	Use:   "tree [locations...]",
	Short: "Print the package tree of the imported classes",
	Run: func(cmd *cobra.Command, args []string) {
		cc := newCache().NewContext()
		defer cc.Close()
		g := importGraph(cmd.Context(), cc, resolveLocations(args))

		t := tree.Build(g)
		t.SetFilter(tree.NameFilter{Pattern: treeFilter, Exclude: treeExclude})
		for _, name := range treeFold {
			n, ok := t.Find(name)
			if !ok {
				logger.Warn("cannot fold unknown node", "name", name)
				continue
			}
			n.Fold()
		}
		if err := t.Render(os.Stdout); err != nil {
			logger.Fatalf("Failed to render tree: %v", err)
		}
	},
}

var depsCmd = &cobra.Command{
	Use:   "deps CLASS [locations...]",
	Short: "List the dependencies around one class",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cc := newCache().NewContext()
		defer cc.Close()
		g := importGraph(cmd.Context(), cc, resolveLocations(args[1:]))

		name := args[0]
		if _, ok := g.Node(name); !ok {
			logger.Fatalf("Class %s is not in the graph", name)
		}

		rc := retrieval.DefaultConfig()
		rc.MaxHops = depsHops
		if depsIncoming {
			rc.Direction = retrieval.Incoming
		}
		if len(depsKinds) > 0 {
			rc.AllowedKinds = make(map[extractor.AccessKind]bool, len(depsKinds))
			for _, k := range depsKinds {
				rc.AllowedKinds[extractor.AccessKind(k)] = true
			}
		}

		sub := retrieval.Extract(g, []string{name}, rc)
		fmt.Printf("🔍 %d classes within %d hops of %s:\n", len(sub.NodeNames)-1, depsHops, name)
		for _, d := range sub.Dependencies {
			fmt.Println(d.Description())
		}
	},
}

var diagramCmd = &cobra.Command{
	Use:   "diagram [locations...]",
	Short: "Print a Mermaid diagram of package dependencies",
	Run: func(cmd *cobra.Command, args []string) {
		cc := newCache().NewContext()
		defer cc.Close()
		g := importGraph(cmd.Context(), cc, resolveLocations(args))

		cycles := analysis.NewAnalyzer(g).PackageCycles(nil)
		for _, c := range cycles {
			logger.Warn("package cycle", "cycle", c.String())
		}
		fmt.Print(report.PackageDiagram(g, report.DiagramOptions{External: diagramExternal, Cycles: cycles}))
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List saved snapshots, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		store, err := initStore()
		if err != nil {
			logger.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()

		runs, err := store.Runs(cmd.Context())
		if err != nil {
			logger.Fatalf("Failed to list snapshots: %v", err)
		}
		if len(runs) == 0 {
			fmt.Println("No snapshots saved yet.")
			return
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  %d classes  %d dependencies\n",
				r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Modules, r.Dependencies)
		}
	},
}
