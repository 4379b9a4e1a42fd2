package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/TobiSchelling/burstkit/internal/annotations"
	"github.com/TobiSchelling/burstkit/internal/bursts"
	"github.com/TobiSchelling/burstkit/internal/config"
	"github.com/TobiSchelling/burstkit/internal/database"
	"github.com/TobiSchelling/burstkit/internal/metrics"
	"github.com/TobiSchelling/burstkit/internal/source"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of one job run.
type Result struct {
	Job   string
	Steps []StepResult
}

// Err returns the error of the first failed step, if any.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return fmt.Errorf("%s: %w", s.Name, s.Err)
		}
	}
	return nil
}

func (r *Result) add(step StepResult) bool {
	r.Steps = append(r.Steps, step)
	return step.Err == nil
}

// PrepOptions configures a prep run.
type PrepOptions struct {
	Dir          string
	Out          string
	Lines        int
	LegacyHeader bool
	DryRun       bool
}

// Prep scans a directory of burst window files and writes the bursts of the
// first Lines lines of each file to one CSV. Zero Lines means bursts.DefaultLines.
func Prep(opts PrepOptions, m *metrics.Metrics) *Result {
	start := time.Now()
	r := &Result{Job: "prep"}
	defer func() {
		if m != nil {
			m.ObserveRun(r.Job, time.Since(start))
		}
	}()

	log.Printf("Searching for files in %s...", opts.Dir)
	files, err := bursts.ListFiles(opts.Dir)
	if !r.add(StepResult{Name: "Scan", Summary: fmt.Sprintf("Found %d files", len(files)), Err: err}) {
		return r
	}

	lines := opts.Lines
	if lines == 0 {
		lines = bursts.DefaultLines
	}
	parsed, err := bursts.ReadPaths(files, lines)
	if err != nil {
		r.add(StepResult{Name: "Parse", Err: err})
		return r
	}
	var total, skipped int
	for _, res := range parsed {
		if m != nil {
			m.ObserveLines(len(res.Bursts), res.Skipped)
		}
		total += len(res.Bursts)
		skipped += res.Skipped
	}
	r.add(StepResult{
		Name:    "Parse",
		Summary: fmt.Sprintf("Parsed %d bursts, skipped %d lines", total, skipped),
	})

	if opts.DryRun {
		r.add(StepResult{Name: "Write", Summary: fmt.Sprintf("[dry-run] Would write %d rows to %s", total, opts.Out)})
		return r
	}
	r.add(writeBursts(opts, parsed, m))
	return r
}

func writeBursts(opts PrepOptions, parsed []*bursts.FileResult, m *metrics.Metrics) StepResult {
	out, err := os.Create(opts.Out)
	if err != nil {
		return StepResult{Name: "Write", Err: fmt.Errorf("creating %s: %w", opts.Out, err)}
	}
	defer out.Close()

	w := bursts.NewWriter(out, opts.LegacyHeader)
	if err := w.WriteHeader(); err != nil {
		return StepResult{Name: "Write", Err: err}
	}
	for _, res := range parsed {
		if err := w.Write(res.Bursts...); err != nil {
			return StepResult{Name: "Write", Err: err}
		}
	}
	if err := w.Flush(); err != nil {
		return StepResult{Name: "Write", Err: fmt.Errorf("writing %s: %w", opts.Out, err)}
	}
	if err := out.Close(); err != nil {
		return StepResult{Name: "Write", Err: fmt.Errorf("closing %s: %w", opts.Out, err)}
	}
	if m != nil {
		m.BurstsWritten.Add(float64(w.Rows()))
	}
	return StepResult{Name: "Write", Summary: fmt.Sprintf("Wrote %d rows to %s", w.Rows(), opts.Out)}
}

// AnnotateOptions configures an annotate run.
type AnnotateOptions struct {
	Input     string
	Series    string
	Delimiter rune
	DryRun    bool
}

// Annotator loads annotation files into the configured database.
type Annotator struct {
	cfg     *config.Config
	fetcher *source.Fetcher
	metrics *metrics.Metrics
	connect func(context.Context, *config.Config) (*database.DB, error)
}

// NewAnnotator creates an Annotator for cfg.
func NewAnnotator(cfg *config.Config, m *metrics.Metrics) *Annotator {
	return &Annotator{
		cfg:     cfg,
		fetcher: source.NewFetcher(cfg.S3),
		metrics: m,
		connect: database.Connect,
	}
}

// Run reads the input, connects to the database and replaces the series.
func (a *Annotator) Run(ctx context.Context, opts AnnotateOptions) *Result {
	start := time.Now()
	r := &Result{Job: "annotate"}
	defer func() {
		if a.metrics != nil {
			a.metrics.ObserveRun(r.Job, time.Since(start))
		}
	}()

	rows, step := a.read(ctx, opts)
	if !r.add(step) {
		return r
	}

	if opts.DryRun {
		r.add(StepResult{
			Name:    "Load",
			Summary: fmt.Sprintf("[dry-run] Would replace series %s with %d annotations", opts.Series, len(rows)),
		})
		return r
	}

	db, err := a.connect(ctx, a.cfg)
	if !r.add(StepResult{Name: "Connect", Summary: fmt.Sprintf("Connected to %s database", a.cfg.DB.Driver), Err: err}) {
		return r
	}
	defer db.Close()

	loader := annotations.NewLoader(db, a.metrics)
	res, err := loader.Load(ctx, rows, annotations.Options{
		Series: opts.Series,
		Public: a.cfg.Public,
		Corpus: a.cfg.DB.Corpus,
	})
	if err != nil {
		r.add(StepResult{Name: "Load", Err: err})
		return r
	}
	r.add(StepResult{
		Name:    "Load",
		Summary: fmt.Sprintf("Removed %d, inserted %d, %d annotations in series %s", res.Deleted, res.Inserted, res.Count, opts.Series),
	})
	return r
}

func (a *Annotator) read(ctx context.Context, opts AnnotateOptions) ([]annotations.Row, StepResult) {
	data, err := a.fetcher.Fetch(ctx, opts.Input)
	if err != nil {
		return nil, StepResult{Name: "Read", Err: err}
	}
	delim := opts.Delimiter
	if delim == 0 {
		delim = '\t'
	}
	rows, err := annotations.Read(opts.Input, data, delim)
	if err != nil {
		return nil, StepResult{Name: "Read", Err: err}
	}
	if a.metrics != nil {
		a.metrics.RowsRead.Add(float64(len(rows)))
	}
	return rows, StepResult{Name: "Read", Summary: fmt.Sprintf("Read %d bursts from %s", len(rows), opts.Input)}
}
