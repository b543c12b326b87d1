package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tripcal/internal/config"
	"tripcal/internal/ics"
	appLog "tripcal/internal/log"
	"tripcal/internal/store"
)

// Activities are expanded this many months either side of the current
// month.
const windowMonths = 12

// Refresher pulls every configured feed into the trip store.
type Refresher struct {
	cfg     *config.Config
	loc     *time.Location
	fetcher *ics.Fetcher
	store   *store.TripStore
	now     func() time.Time

	// runs are serialized; a cron tick during a slow run waits
	runMu sync.Mutex
}

// New creates a Refresher. A nil loc means time.Local.
func New(cfg *config.Config, loc *time.Location, fetcher *ics.Fetcher, st *store.TripStore) *Refresher {
	if loc == nil {
		loc = time.Local
	}
	return &Refresher{
		cfg:     cfg,
		loc:     loc,
		fetcher: fetcher,
		store:   st,
		now:     time.Now,
	}
}

// Sources lists the configured feeds that have a URL.
func (r *Refresher) Sources() []ics.Source {
	sources := make([]ics.Source, 0, len(r.cfg.ICS))
	for _, c := range r.cfg.ICS {
		if c.URL == "" {
			continue
		}
		sources = append(sources, ics.Source{ID: c.SourceID(), URL: c.URL})
	}
	return sources
}

// RunOnce fetches, parses and builds every feed and replaces its trips in
// the store. A feed that fails keeps its previous trips; the returned
// error joins every per-feed failure.
func (r *Refresher) RunOnce(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	started := time.Now()
	sources := r.Sources()

	ids := make([]string, 0, len(sources))
	for _, src := range sources {
		ids = append(ids, src.ID)
	}
	r.store.Retain(ids)

	if len(sources) == 0 {
		appLog.Info("refresh: no trip feeds configured")
		return nil
	}

	results, errs := r.fetcher.FetchAll(ctx, sources)

	now := r.now().In(r.loc)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, r.loc)
	build := ics.BuildConfig{
		Location:   r.loc,
		RangeStart: month.AddDate(0, -windowMonths, 0),
		RangeEnd:   month.AddDate(0, windowMonths+1, 0).Add(-time.Nanosecond),
	}

	total := 0
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", res.Source.ID, err))
			continue
		}
		trips, err := ics.BuildTrips(events, build)
		if err != nil {
			errs = append(errs, fmt.Errorf("build %s: %w", res.Source.ID, err))
			continue
		}
		r.store.Replace(res.Source.ID, trips)
		total += len(trips)
	}

	err := errors.Join(errs...)
	if err != nil {
		appLog.Error("refresh: some feeds failed", err, "failed", len(errs))
	}
	appLog.Info("refresh completed",
		"sources", len(sources),
		"trips", total,
		"elapsed", time.Since(started).Round(time.Millisecond).String(),
	)
	return err
}

// Start schedules RunOnce on cfg.RefreshCron in the refresher's zone and
// returns once the schedule is running. The schedule stops when ctx is
// done; the returned channel closes after the last run has finished.
func (r *Refresher) Start(ctx context.Context) (<-chan struct{}, error) {
	c := cron.New(
		cron.WithLocation(r.loc),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
	)
	if _, err := c.AddFunc(r.cfg.RefreshCron, func() {
		// errors are logged by RunOnce
		_ = r.RunOnce(ctx)
	}); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", r.cfg.RefreshCron, err)
	}

	c.Start()
	appLog.Info("refresh scheduler started", "schedule", r.cfg.RefreshCron, "timezone", r.loc.String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("refresh scheduler stopped")
	}()
	return done, nil
}

// cronLogger routes the scheduler's own messages to the app log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
