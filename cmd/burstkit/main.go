package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"unicode/utf8"

	"github.com/TobiSchelling/burstkit/internal/bursts"
	"github.com/TobiSchelling/burstkit/internal/config"
	"github.com/TobiSchelling/burstkit/internal/database"
	"github.com/TobiSchelling/burstkit/internal/metrics"
	"github.com/TobiSchelling/burstkit/internal/pipeline"
	"github.com/TobiSchelling/burstkit/internal/server"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	mtr        = metrics.New()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "burstkit",
	Short:   "Burst detection data tools",
	Long:    "burstkit turns burst window logs into CSV and loads ranked burst labels into the annotations table.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}
		return config.LoadEnv()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to .ini or .yaml config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(prepCmd)
	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(seriesCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("burstkit", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default app.ini",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "app.ini")
		if len(args) == 1 {
			target = args[0]
		}
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.WriteFile(target, config.DefaultConfigINI, 0o600); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit the [db] section before running 'burstkit annotate'.")
		return nil
	},
}

// --- prep command ---

var (
	prepLines        int
	prepLegacyHeader bool
	prepDryRun       bool
)

var prepCmd = &cobra.Command{
	Use:   "prep <dir> <out.csv>",
	Short: "Collect the top bursts of every window file in a directory into one CSV",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkLines(prepLines); err != nil {
			return err
		}
		result := pipeline.Prep(pipeline.PrepOptions{
			Dir:          args[0],
			Out:          args[1],
			Lines:        prepLines,
			LegacyHeader: prepLegacyHeader,
			DryRun:       prepDryRun,
		}, mtr)
		printResult(result)
		if err := result.Err(); err != nil {
			return err
		}

		// prep needs no config; push only when one is around.
		if cfg, err := loadConfig(configPath); err == nil {
			pushMetrics(cmd.Context(), cfg)
		}
		return nil
	},
}

func init() {
	prepCmd.Flags().IntVarP(&prepLines, "lines", "N", bursts.DefaultLines, "Top N lines collected from each file")
	prepCmd.Flags().BoolVar(&prepLegacyHeader, "legacy-header", false, "Write the old 10-label header (rate_deltarate_percent_delta)")
	prepCmd.Flags().BoolVar(&prepDryRun, "dry-run", false, "Parse files without writing the CSV")
}

// --- annotate command ---

var (
	annotateDelimiter string
	annotateDryRun    bool
)

var annotateCmd = &cobra.Command{
	Use:   "annotate <csv> <series> [ini]",
	Short: "Replace an annotation series with the ranked labels of a CSV file",
	Long: "Reads Timestamp, LABEL and RANK columns from a local file or s3://bucket/key\n" +
		"and replaces every annotation of <series> with them. The ini file defaults to " + config.DefaultPath + ".",
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) == 3 {
			path = args[2]
		}
		cfg, err := loadConfig(path)
		if err != nil {
			return err
		}
		log.Printf("Database configuration from %s", cfg.Path())

		delim, err := parseDelimiter(annotateDelimiter)
		if err != nil {
			return err
		}

		result := pipeline.NewAnnotator(cfg, mtr).Run(cmd.Context(), pipeline.AnnotateOptions{
			Input:     args[0],
			Series:    args[1],
			Delimiter: delim,
			DryRun:    annotateDryRun,
		})
		printResult(result)
		if err := result.Err(); err != nil {
			return err
		}
		pushMetrics(cmd.Context(), cfg)
		return nil
	},
}

func init() {
	annotateCmd.Flags().StringVarP(&annotateDelimiter, "delimiter", "d", "\t", "Delimiter for csv files (default TAB)")
	annotateCmd.Flags().BoolVar(&annotateDryRun, "dry-run", false, "Read and validate the file without touching the database")
}

// --- series command ---

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "List stored annotation series",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		db, err := database.Connect(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		list, err := db.ListSeries(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No annotation series stored. Load one with: burstkit annotate")
			return nil
		}

		fmt.Println("Annotation series:")
		for _, s := range list {
			fmt.Printf("  %s: %d (%s to %s)\n", s.Series, s.Count,
				bursts.FormatTime(s.First.Time), bursts.FormatTime(s.Last.Time))
		}
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored annotation series as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		db, err := database.Connect(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := mtr.RegisterRuntime(); err != nil {
			return err
		}
		scope := database.Scope{Corpus: cfg.DB.Corpus, Public: cfg.Public}

		fmt.Printf("Starting server at http://localhost:%d\n", servePort)
		fmt.Printf("Serving corpus %s (public=%d)\n", scope.Corpus, scope.Public)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, scope, mtr, servePort)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func loadConfig(explicit string) (*config.Config, error) {
	path, err := config.ResolveConfigPath(explicit)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

func checkLines(n int) error {
	if n < 1 {
		return fmt.Errorf("--lines must be at least 1, got %d", n)
	}
	return nil
}

// parseDelimiter accepts a single character or the escape \t.
func parseDelimiter(s string) (rune, error) {
	if s == `\t` {
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

func printResult(result *pipeline.Result) {
	for i, step := range result.Steps {
		fmt.Printf("\nStep %d: %s\n", i+1, step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}

func pushMetrics(ctx context.Context, cfg *config.Config) {
	if cfg.Metrics.Pushgateway == "" {
		return
	}
	if err := mtr.Push(ctx, cfg.Metrics.Pushgateway, cfg.Metrics.Job); err != nil {
		log.Printf("Warning: %v", err)
	}
}
