package scraper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/estatehub/marketplace/internal/app/core/service"
	"github.com/estatehub/marketplace/internal/app/domain/property"
	"github.com/estatehub/marketplace/internal/app/metrics"
	"github.com/estatehub/marketplace/pkg/logger"
)

// ErrRunInProgress is returned when a run is requested while one is active.
var ErrRunInProgress = errors.New("scraper run already in progress")

const (
	historySize       = 20
	maxParallelSource = 4
)

// Importer stores scraped listings.
type Importer interface {
	ImportScraped(ctx context.Context, listing property.Property) (property.Property, bool, error)
}

// SourceResult summarizes one source within a run.
type SourceResult struct {
	Source   string        `json:"source"`
	Fetched  int           `json:"fetched"`
	Created  int           `json:"created"`
	Updated  int           `json:"updated"`
	Failed   int           `json:"failed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Run is one pass over every source.
type Run struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Sources    []SourceResult `json:"sources"`
	Fetched    int            `json:"fetched"`
	Created    int            `json:"created"`
	Updated    int            `json:"updated"`
	Failed     int            `json:"failed"`
}

// Runner fetches sources concurrently and imports what they return.
type Runner struct {
	sources  []Source
	importer Importer
	log      *logger.Logger

	running sync.Mutex

	mu      sync.RWMutex
	history []Run
}

// NewRunner constructs a runner over sources.
func NewRunner(importer Importer, sources []Source, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewDefault("scraper")
	}
	return &Runner{
		sources:  append([]Source(nil), sources...),
		importer: importer,
		log:      log,
	}
}

// Descriptor advertises the service.
func (r *Runner) Descriptor() service.Descriptor {
	names := make([]string, 0, len(r.sources))
	for _, src := range r.sources {
		names = append(names, "source:"+src.Name())
	}
	return service.Descriptor{
		Name:         "scraper",
		Domain:       "listings",
		Layer:        service.LayerWorker,
		Capabilities: append([]string{"run", "history"}, names...),
	}
}

// Run fetches every source and imports the listings. A failing source is
// recorded in its result and does not stop the others.
func (r *Runner) Run(ctx context.Context) (Run, error) {
	if !r.running.TryLock() {
		return Run{}, ErrRunInProgress
	}
	defer r.running.Unlock()

	run := Run{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	results := make([]SourceResult, len(r.sources))

	var g errgroup.Group
	g.SetLimit(maxParallelSource)
	for i, src := range r.sources {
		i, src := i, src
		g.Go(func() error {
			results[i] = r.runSource(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	run.FinishedAt = time.Now().UTC()
	run.Sources = results
	for _, res := range results {
		run.Fetched += res.Fetched
		run.Created += res.Created
		run.Updated += res.Updated
		run.Failed += res.Failed
	}
	r.record(run)

	r.log.WithField("run_id", run.ID).
		WithField("fetched", run.Fetched).
		WithField("created", run.Created).
		WithField("updated", run.Updated).
		WithField("failed", run.Failed).
		Info("scrape run finished")
	return run, ctx.Err()
}

func (r *Runner) runSource(ctx context.Context, src Source) SourceResult {
	start := time.Now()
	res := SourceResult{Source: src.Name()}
	defer func() {
		res.Duration = time.Since(start)
		metrics.RecordScrape(res.Source, res.Created, res.Updated, res.Failed, res.Duration, res.Error == "")
	}()

	listings, err := src.Fetch(ctx)
	if err != nil {
		res.Error = err.Error()
		r.log.WithError(err).WithField("source", res.Source).Warn("scraper source failed")
		return res
	}
	res.Fetched = len(listings)

	var failures []string
	for _, l := range listings {
		if ctx.Err() != nil {
			res.Failed += res.Fetched - res.Created - res.Updated - res.Failed
			res.Error = ctx.Err().Error()
			return res
		}
		_, created, err := r.importer.ImportScraped(ctx, l.Property(res.Source))
		switch {
		case err != nil:
			res.Failed++
			if len(failures) < 3 {
				failures = append(failures, l.Ref+": "+err.Error())
			}
		case created:
			res.Created++
		default:
			res.Updated++
		}
	}
	if len(failures) > 0 {
		r.log.WithField("source", res.Source).
			WithField("failed", res.Failed).
			WithField("examples", strings.Join(failures, "; ")).
			Warn("scraped listings rejected")
	}
	return res
}

func (r *Runner) record(run Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, run)
	if len(r.history) > historySize {
		r.history = append([]Run(nil), r.history[len(r.history)-historySize:]...)
	}
}

// Runs returns recent runs, newest first.
func (r *Runner) Runs() []Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Run, 0, len(r.history))
	for i := len(r.history) - 1; i >= 0; i-- {
		run := r.history[i]
		run.Sources = append([]SourceResult(nil), run.Sources...)
		out = append(out, run)
	}
	return out
}
