package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"codemap/internal/config"
	"codemap/internal/crawler"
	"codemap/internal/extractor"
	"codemap/internal/gitlog"
	"codemap/internal/history"
	"codemap/internal/hybrid"
	"codemap/internal/logging"
	"codemap/internal/retrieval"
	"codemap/internal/semantic"
	"codemap/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:   "codemap",
		Short: "Hybrid code knowledge graph",
		Long:  "codemap fuses call structure, commit history and access patterns into one searchable graph of a source tree.",
	}
	cfgPath string
	limit   int
	maxHops int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "codemap.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().IntVarP(&limit, "limit", "n", 10, "Maximum results to show")
	contextCmd.Flags().IntVar(&maxHops, "hops", 2, "Expansion depth for context prediction")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(relatedCmd)
	rootCmd.AddCommand(symbolCmd)
	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(correlateCmd)
	rootCmd.AddCommand(accessCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadSetup reads the config, wires the logger and opens the store.
func loadSetup() (*config.Config, storage.Store, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format))

	dir := cfg.Storage.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cfg.Project.Root, dir)
	}
	store, err := storage.Open(cfg.Storage.Backend, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return cfg, store, nil
}

func newBuilder(cfg *config.Config) (*hybrid.Builder, error) {
	var extractors []*extractor.Extractor
	var exts []string
	for _, lang := range cfg.Project.Languages {
		ext, err := extractor.NewExtractor(lang)
		if err != nil {
			return nil, err
		}
		extractors = append(extractors, ext)
		exts = append(exts, ext.Extensions()...)
	}
	return &hybrid.Builder{
		Crawler: crawler.New(extractors, cfg.Project.Exclude, slog.Default()),
		Miner:   history.NewMiner(gitlog.ExecRunner{}, cfg.History.MaxCommits, exts, slog.Default()),
		Logger:  slog.Default(),
	}, nil
}

func newMiner(cfg *config.Config) (*history.Miner, error) {
	var exts []string
	for _, lang := range cfg.Project.Languages {
		ext, err := extractor.NewExtractor(lang)
		if err != nil {
			return nil, err
		}
		exts = append(exts, ext.Extensions()...)
	}
	return history.NewMiner(gitlog.ExecRunner{}, cfg.History.MaxCommits, exts, slog.Default()), nil
}

// loadHybrid fetches the fusion graph, telling the user to build when no
// snapshot exists yet.
func loadHybrid(ctx context.Context, store storage.Store) (*hybrid.Graph, error) {
	g, err := store.LoadHybrid(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errors.New("no graph found, run `codemap build` first")
	}
	return g, err
}

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Scan the project and rebuild the knowledge graph",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, store, err := loadSetup()
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer store.Close()

		root := cfg.Project.Root
		if len(args) > 0 {
			root = args[0]
		}

		builder, err := newBuilder(cfg)
		if err != nil {
			log.Fatalf("Failed to create builder: %v", err)
		}

		ctx := cmd.Context()
		// Previous graph donates its runtime temporal state.
		prev, err := store.LoadHybrid(ctx)
		if err != nil {
			prev = nil
		}

		fmt.Printf("Scanning %s ...\n", root)
		start := time.Now()
		res, err := builder.Build(ctx, root, prev)
		if err != nil {
			log.Fatalf("Build failed: %v", err)
		}

		if err := store.SaveStructural(ctx, res.Structural); err != nil {
			log.Fatalf("Failed to save structural graph: %v", err)
		}
		if err := store.SaveHybrid(ctx, res.Graph); err != nil {
			log.Fatalf("Failed to save hybrid graph: %v", err)
		}

		fmt.Printf("Built graph in %v: %d files, %d nodes, %d edges, %d commits mined.\n",
			time.Since(start).Round(time.Millisecond),
			res.Files, res.Graph.Len(), len(res.Graph.Edges()), res.Commits)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [base-ref]",
	Short: "Re-extract files changed since a git ref and show their impact",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, store, err := loadSetup()
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer store.Close()

		baseRef := "HEAD"
		if len(args) > 0 {
			baseRef = args[0]
		}
		root := cfg.Project.Root

		ctx := cmd.Context()
		changes, err := gitlog.Diff(ctx, gitlog.ExecRunner{}, root, baseRef)
		if err != nil {
			log.Fatalf("Failed to read git diff: %v", err)
		}
		if len(changes) == 0 {
			fmt.Println("No changes detected.")
			return
		}

		sg, err := store.LoadStructural(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			log.Fatalf("no graph found, run `codemap build` first")
		}
		if err != nil {
			log.Fatalf("Failed to load structural graph: %v", err)
		}

		byExt := make(map[string]*extractor.Extractor)
		for _, lang := range cfg.Project.Languages {
			ext, err := extractor.NewExtractor(lang)
			if err != nil {
				log.Fatalf("Failed to create extractor: %v", err)
			}
			for _, suffix := range ext.Extensions() {
				byExt[suffix] = ext
			}
		}

		removed, updated := 0, 0
		for _, ch := range changes {
			ext, ok := byExt[filepath.Ext(ch.Path)]
			if !ok {
				continue
			}
			removed += sg.RemoveFile(ch.Path)

			full := filepath.Join(root, filepath.FromSlash(ch.Path))
			if _, err := os.Stat(full); err != nil {
				continue // deleted file, nothing to re-extract
			}
			res, err := ext.ExtractFile(ctx, full, root)
			if err != nil {
				slog.Warn("skipping file", "path", ch.Path, "error", err)
				continue
			}
			for _, n := range res.Nodes {
				sg.AddNode(n)
				updated++
			}
			for _, e := range res.Edges {
				sg.AddEdge(e)
			}
		}

		if err := store.SaveStructural(ctx, sg); err != nil {
			log.Fatalf("Failed to save structural graph: %v", err)
		}
		fmt.Printf("Graph update: %d symbols removed, %d symbols added/updated.\n", removed, updated)

		// Impact: expand the changed set over the fusion graph.
		if g, err := store.LoadHybrid(ctx); err == nil {
			engine := &retrieval.Engine{Graph: g, Logger: slog.Default()}
			out := engine.FromChanges(changes, retrieval.Config{MaxHops: 2, Limit: limit})
			if len(out.Entries) > 0 {
				fmt.Println()
				out.Query = "changed files"
				fmt.Println(formatContext(out))
			}
		}
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Multi-dimensional search over the knowledge graph",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, store, err := loadSetup()
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer store.Close()

		g, err := loadHybrid(cmd.Context(), store)
		if err != nil {
			log.Fatalf("%v", err)
		}

		query := strings.Join(args, " ")
		fmt.Println(formatSearchResults(g, g.Search(query, limit)))
	},
}

var relatedCmd = &cobra.Command{
	Use:   "related <file>",
	Short: "Show files related to a file across all signals",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, store, err := loadSetup()
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer store.Close()

		g, err := loadHybrid(cmd.Context(), store)
		if err != nil {
			log.Fatalf("%v", err)
		}

		fmt.Println(formatRelated(args[0], g.RelatedNodes(args[0], limit)))
	},
}

var symbolCmd = &cobra.Command{
	Use:   "symbol <name>",
	Short: "Query a symbol's callers and callees",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, store, err := loadSetup()
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer store.Close()

		sg, err := store.LoadStructural(cmd.Context())
		if errors.Is(err, storage.ErrNotFound) {
			log.Fatalf("no graph found, run `codemap build` first")
		}
		if err != nil {
			log.Fatalf("Failed to load structural graph: %v", err)
		}

		fmt.Println(formatQueryResult(sg.Query(args[0])))
	},
}

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Mine recent git history for co-modification patterns",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, store, err := loadSetup()
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		data, err := store.LoadCorrelations(ctx)
		if err != nil {
			data = history.NewCorrelationData(cfg.Project.Root)
		}

		miner, err := newMiner(cfg)
		if err != nil {
			log.Fatalf("Failed to create miner: %v", err)
		}
		counted, err := miner.Learn(ctx, cfg.Project.Root, data)
		if err != nil {
			log.Fatalf("Mining failed: %v", err)
		}

		if err := store.SaveCorrelations(ctx, data); err != nil {
			log.Fatalf("Failed to save correlations: %v", err)
		}

		fmt.Printf("Mined %d new commits.\n\n", counted)
		fmt.Println(formatAllPatterns(data))
	},
}

var correlateCmd = &cobra.Command{
	Use:   "correlate [file]",
	Short: "Show learned correlations, for one file or overall",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, store, err := loadSetup()
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer store.Close()

		data, err := store.LoadCorrelations(cmd.Context())
		if errors.Is(err, storage.ErrNotFound) {
			log.Fatalf("no correlations found, run `codemap learn` first")
		}
		if err != nil {
			log.Fatalf("Failed to load correlations: %v", err)
		}

		if len(args) == 1 {
			fmt.Println(formatCorrelations(args[0], data.CorrelationsFor(args[0], limit)))
			return
		}
		fmt.Println(formatAllPatterns(data))
	},
}

var accessCmd = &cobra.Command{
	Use:   "access <file>",
	Short: "Record a file access for temporal correlation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, store, err := loadSetup()
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		g, err := loadHybrid(ctx, store)
		if err != nil {
			log.Fatalf("%v", err)
		}
		g.RecordAccess(args[0])
		if err := store.SaveHybrid(ctx, g); err != nil {
			log.Fatalf("Failed to save hybrid graph: %v", err)
		}

		// The standalone correlation table tracks accesses too.
		data, err := store.LoadCorrelations(ctx)
		if err != nil {
			data = history.NewCorrelationData(cfg.Project.Root)
		}
		data.RecordAccess(args[0])
		if err := store.SaveCorrelations(ctx, data); err != nil {
			log.Fatalf("Failed to save correlations: %v", err)
		}
	},
}

var contextCmd = &cobra.Command{
	Use:   "context <task description>",
	Short: "Predict which files matter for a task",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, store, err := loadSetup()
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer store.Close()

		g, err := loadHybrid(cmd.Context(), store)
		if err != nil {
			log.Fatalf("%v", err)
		}

		// No vector backend is wired in yet; prediction runs on graph
		// signals alone.
		engine := &retrieval.Engine{Graph: g, Semantic: semantic.None{}, Logger: slog.Default()}
		cfg := retrieval.Config{MaxHops: maxHops, Limit: limit}
		out, err := engine.Predict(cmd.Context(), strings.Join(args, " "), cfg)
		if err != nil {
			log.Fatalf("Prediction failed: %v", err)
		}
		fmt.Println(formatContext(out))
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show graph statistics",
	Run: func(cmd *cobra.Command, args []string) {
		_, store, err := loadSetup()
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		g, err := loadHybrid(ctx, store)
		if err != nil {
			log.Fatalf("%v", err)
		}
		sg, err := store.LoadStructural(ctx)
		if err != nil {
			sg = nil
		}

		fmt.Print(formatStats(sg, g))
	},
}
