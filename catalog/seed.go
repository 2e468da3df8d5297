package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jacentio/shelf/internal/logging"
)

// Stage is one seeding phase. Stages run in the order of [Stages].
type Stage string

const (
	StageGenres    Stage = "genres"
	StageAuthors   Stage = "authors"
	StageBooks     Stage = "books"
	StageInstances Stage = "instances"
)

// Stages lists the seeding stages in execution order.
func Stages() []Stage {
	return []Stage{StageGenres, StageAuthors, StageBooks, StageInstances}
}

// ItemResult is the outcome of seeding one dataset item.
type ItemResult struct {
	Index int
	ID    string
	// Existing is true when the genre stage found a genre instead of creating one.
	Existing bool
	// Err is a *SeedError when the item failed.
	Err error
}

func (r ItemResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Index    int    `json:"index"`
		ID       string `json:"id,omitempty"`
		Existing bool   `json:"existing,omitempty"`
		Error    string `json:"error,omitempty"`
	}{Index: r.Index, ID: r.ID, Existing: r.Existing}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// StageReport holds one result per dataset index of a stage.
type StageReport struct {
	Stage Stage        `json:"stage"`
	Items []ItemResult `json:"items"`
}

// IDs returns the index-to-identifier table of the stage. Failed slots are empty.
func (sr StageReport) IDs() []string {
	ids := make([]string, len(sr.Items))
	for i, it := range sr.Items {
		ids[i] = it.ID
	}
	return ids
}

// Failures returns the failed items of the stage in index order.
func (sr StageReport) Failures() []*SeedError {
	var out []*SeedError
	for _, it := range sr.Items {
		var se *SeedError
		if errors.As(it.Err, &se) {
			out = append(out, se)
		}
	}
	return out
}

// Counts summarizes a stage.
type Counts struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Failed   int `json:"failed"`
}

// Report is the outcome of a seeding run. Stages that did not run are absent.
type Report struct {
	RunID  string        `json:"run_id"`
	Stages []StageReport `json:"stages"`
}

// Stage returns the report of one stage.
func (r *Report) Stage(stage Stage) (StageReport, bool) {
	for _, sr := range r.Stages {
		if sr.Stage == stage {
			return sr, true
		}
	}
	return StageReport{}, false
}

// Counts summarizes every stage that ran.
func (r *Report) Counts() map[Stage]Counts {
	out := make(map[Stage]Counts, len(r.Stages))
	for _, sr := range r.Stages {
		var c Counts
		for _, it := range sr.Items {
			switch {
			case it.Err != nil:
				c.Failed++
			case it.Existing:
				c.Existing++
			default:
				c.Created++
			}
		}
		out[sr.Stage] = c
	}
	return out
}

// Seeder populates a store from a Dataset in four stages: genres, authors,
// books, instances. Items of a stage are created concurrently and every stage
// waits for the previous one to settle, since it reads the previous stages'
// index tables.
//
// Genres are deduplicated through the Resolver; authors, books and instances
// are created unconditionally, so re-running a seed duplicates them.
//
// When any item of a stage fails, the rest of the stage still completes, then
// the run stops before the next stage and returns the partial report with a
// *StageError.
type Seeder struct {
	store       Store
	resolver    *Resolver
	logger      *slog.Logger
	concurrency int
	limiter     *rate.Limiter
	preflight   bool
}

// SeederOption configures a Seeder.
type SeederOption func(*Seeder)

// WithConcurrency bounds the number of in-flight creates per stage. Zero or
// less means unbounded.
func WithConcurrency(n int) SeederOption {
	return func(s *Seeder) { s.concurrency = n }
}

// WithRateLimit throttles creates to perSecond with the given burst.
// Zero or less disables throttling.
func WithRateLimit(perSecond float64, burst int) SeederOption {
	return func(s *Seeder) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithPreflight makes Run validate every positional reference before writing
// anything.
func WithPreflight(enabled bool) SeederOption {
	return func(s *Seeder) { s.preflight = enabled }
}

// WithLogger sets the seeder's logger. Nil means slog.Default().
func WithLogger(logger *slog.Logger) SeederOption {
	return func(s *Seeder) { s.logger = logger }
}

// NewSeeder creates a Seeder writing to store.
func NewSeeder(store Store, opts ...SeederOption) *Seeder {
	s := &Seeder{
		store:    store,
		resolver: NewResolver(store),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run seeds d. The returned report is never nil.
func (s *Seeder) Run(ctx context.Context, d Dataset) (*Report, error) {
	runID := logging.RunID(ctx)
	if runID == "" {
		runID = NewID()
		ctx = logging.WithRunID(ctx, runID)
	}
	report := &Report{RunID: runID}
	logger := logging.Enrich(ctx, s.logger)

	if s.preflight {
		if failures := ValidateDataset(d); len(failures) > 0 {
			logger.Error("dataset has unresolvable references", "failures", len(failures))
			return report, preflightError(failures)
		}
	}

	start := time.Now()

	genreIDs, err := s.runStage(ctx, report, StageGenres, len(d.Genres), func(ctx context.Context, i int) (string, bool, error) {
		g, created, err := s.resolver.FindOrCreate(ctx, Genre{Name: d.Genres[i].Name})
		if err != nil {
			return "", false, err
		}
		return g.ID, !created, nil
	})
	if err != nil {
		return report, err
	}

	authorIDs, err := s.runStage(ctx, report, StageAuthors, len(d.Authors), func(ctx context.Context, i int) (string, bool, error) {
		in := d.Authors[i]
		a, err := s.store.CreateAuthor(ctx, Author{
			FirstName:   in.FirstName,
			FamilyName:  in.FamilyName,
			DateOfBirth: in.DateOfBirth,
			DateOfDeath: in.DateOfDeath,
		})
		return a.ID, false, err
	})
	if err != nil {
		return report, err
	}

	bookIDs, err := s.runStage(ctx, report, StageBooks, len(d.Books), func(ctx context.Context, i int) (string, bool, error) {
		in := d.Books[i]
		authorID, err := resolveIndex(StageBooks, i, "author", authorIDs, in.Author, StageAuthors)
		if err != nil {
			return "", false, err
		}
		genres := make([]string, 0, len(in.Genres))
		for j, gi := range in.Genres {
			id, err := resolveIndex(StageBooks, i, fmt.Sprintf("genres[%d]", j), genreIDs, gi, StageGenres)
			if err != nil {
				return "", false, err
			}
			genres = append(genres, id)
		}
		b, err := s.store.CreateBook(ctx, Book{
			Title:    in.Title,
			Summary:  in.Summary,
			ISBN:     in.ISBN,
			AuthorID: authorID,
			GenreIDs: genres,
		})
		return b.ID, false, err
	})
	if err != nil {
		return report, err
	}

	_, err = s.runStage(ctx, report, StageInstances, len(d.Instances), func(ctx context.Context, i int) (string, bool, error) {
		in := d.Instances[i]
		bookID, err := resolveIndex(StageInstances, i, "book", bookIDs, in.Book, StageBooks)
		if err != nil {
			return "", false, err
		}
		inst := BookInstance{BookID: bookID, Imprint: in.Imprint, Status: in.Status}
		if in.DueBack != nil {
			inst.DueBack = *in.DueBack
		}
		created, err := s.store.CreateInstance(ctx, inst)
		return created.ID, false, err
	})
	if err != nil {
		return report, err
	}

	logger.Info("seed complete", "duration", time.Since(start))
	return report, nil
}

type seedFunc func(ctx context.Context, index int) (id string, existing bool, err error)

// runStage fans fn out over n items and joins. Each goroutine writes only its
// own slot of ids and results.
func (s *Seeder) runStage(ctx context.Context, report *Report, stage Stage, n int, fn seedFunc) ([]string, error) {
	logger := logging.Enrich(ctx, s.logger).With("stage", stage)
	logger.Info("seed stage started", "items", n)

	ids := make([]string, n)
	results := make([]ItemResult, n)

	// Items never return errors to the group; a failure stays in its slot
	// so the rest of the stage completes.
	var g errgroup.Group
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i := 0; i < n; i++ {
		results[i].Index = i
		g.Go(func() error {
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					results[i].Err = &SeedError{Stage: stage, Index: i, Err: err}
					return nil
				}
			}

			id, existing, err := fn(ctx, i)
			if err != nil {
				var se *SeedError
				if !errors.As(err, &se) {
					se = &SeedError{Stage: stage, Index: i, Err: err}
				}
				results[i].Err = se
				logger.Debug("seed item failed", "index", i, "error", err)
				return nil
			}

			ids[i] = id
			results[i].ID = id
			results[i].Existing = existing
			if existing {
				logger.Debug("seed item already exists", "index", i, "id", id)
			} else {
				logger.Debug("seed item created", "index", i, "id", id)
			}
			return nil
		})
	}
	_ = g.Wait()

	sr := StageReport{Stage: stage, Items: results}
	report.Stages = append(report.Stages, sr)

	c := report.Counts()[stage]
	failures := sr.Failures()
	if len(failures) > 0 {
		for _, f := range failures {
			logger.Error("seed item failed", "index", f.Index, "field", f.Field, "error", f.Err)
		}
		logger.Error("seed stage failed; later stages skipped", "created", c.Created, "existing", c.Existing, "failed", c.Failed)
		return ids, &StageError{Stage: stage, Failures: failures}
	}

	logger.Info("seed stage complete", "created", c.Created, "existing", c.Existing)
	return ids, nil
}

// resolveIndex turns a positional reference into the identifier recorded by an
// earlier stage.
func resolveIndex(stage Stage, index int, field string, table []string, ref int, target Stage) (string, error) {
	if ref < 0 || ref >= len(table) {
		return "", &SeedError{
			Stage: stage,
			Index: index,
			Field: field,
			Err:   fmt.Errorf("%w: %s index %d out of range (%d entries)", ErrSeedResolution, target, ref, len(table)),
		}
	}
	if table[ref] == "" {
		return "", &SeedError{
			Stage: stage,
			Index: index,
			Field: field,
			Err:   fmt.Errorf("%w: %s[%d] was not created", ErrSeedResolution, target, ref),
		}
	}
	return table[ref], nil
}

// preflightError groups preflight failures by stage.
func preflightError(failures []*SeedError) error {
	var errs []error
	for _, stage := range Stages() {
		var stageFailures []*SeedError
		for _, f := range failures {
			if f.Stage == stage {
				stageFailures = append(stageFailures, f)
			}
		}
		if len(stageFailures) > 0 {
			errs = append(errs, &StageError{Stage: stage, Failures: stageFailures})
		}
	}
	return errors.Join(errs...)
}
