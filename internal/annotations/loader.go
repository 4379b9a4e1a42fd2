package annotations

import (
	"context"
	"errors"
	"fmt"

	"github.com/TobiSchelling/burstkit/internal/database"
	"github.com/TobiSchelling/burstkit/internal/metrics"
)

// ErrEmptyBatch is returned when a load has no rows. Replacing a series
// with nothing would silently wipe it.
var ErrEmptyBatch = errors.New("no annotation rows to load")

// Store persists annotation series.
type Store interface {
	ReplaceSeries(ctx context.Context, series string, rows []database.Annotation) (*database.ReplaceResult, error)
}

// Options identifies where a batch is stored.
type Options struct {
	Series string
	Public int
	Corpus string
}

// Loader replaces annotation series from parsed rows.
type Loader struct {
	store   Store
	metrics *metrics.Metrics
}

// NewLoader creates a Loader. m may be nil.
func NewLoader(store Store, m *metrics.Metrics) *Loader {
	return &Loader{store: store, metrics: m}
}

// Normalize converts rows into annotations whose value is rank divided by
// the batch size. Values are only comparable within one batch.
func Normalize(rows []Row, opts Options) []database.Annotation {
	out := make([]database.Annotation, len(rows))
	for i, r := range rows {
		out[i] = database.Annotation{
			Label:  r.Label,
			Time:   r.Time,
			Public: opts.Public,
			Corpus: opts.Corpus,
			Series: opts.Series,
			Value:  float64(r.Rank) / float64(len(rows)),
		}
	}
	return out
}

// Load replaces the series named in opts with rows.
func (l *Loader) Load(ctx context.Context, rows []Row, opts Options) (*database.ReplaceResult, error) {
	if opts.Series == "" {
		return nil, errors.New("series name is required")
	}
	if len(rows) == 0 {
		return nil, ErrEmptyBatch
	}

	res, err := l.store.ReplaceSeries(ctx, opts.Series, Normalize(rows, opts))
	if err != nil {
		return nil, fmt.Errorf("replacing series %s: %w", opts.Series, err)
	}

	if l.metrics != nil {
		l.metrics.AnnotationsDeleted.Add(float64(res.Deleted))
		l.metrics.AnnotationsInserted.Add(float64(res.Inserted))
	}
	return res, nil
}
