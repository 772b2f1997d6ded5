// Package janitor removes date and room rows that no reservation references.
//
// Cancellations hard-delete room_schedule rows and partial writes can leave a
// date or room behind, so both tables slowly collect unused labels. The
// janitor purges them on a cron schedule.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/robfig/cron/v3"
)

const (
	// DefaultRunTimeout bounds a single scheduled purge.
	DefaultRunTimeout = time.Minute
	// DefaultGracePeriod keeps freshly registered dates and rooms alive while
	// the toggle that created them is still inserting its reservation.
	DefaultGracePeriod = 10 * time.Minute
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("janitor: already started")

// Janitor runs orphan purges against a maintenance repository.
type Janitor struct {
	repo       persistence.MaintenanceRepository
	logger     *slog.Logger
	runTimeout time.Duration
	grace      time.Duration
	now        func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// New constructs a Janitor with DefaultGracePeriod and the wall clock. A nil
// logger falls back to slog.Default.
func New(repo persistence.MaintenanceRepository, logger *slog.Logger) *Janitor {
	return NewWithGracePeriod(repo, DefaultGracePeriod, time.Now, logger)
}

// NewWithGracePeriod constructs a Janitor that leaves orphans younger than
// grace in place. A non-positive grace selects DefaultGracePeriod.
func NewWithGracePeriod(repo persistence.MaintenanceRepository, grace time.Duration, now func() time.Time, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	if now == nil {
		now = time.Now
	}
	return &Janitor{
		repo:       repo,
		logger:     logger.With("component", "janitor"),
		runTimeout: DefaultRunTimeout,
		grace:      grace,
		now:        now,
	}
}

// PurgeOrphans runs one purge pass immediately, removing orphans older than
// the grace period.
func (j *Janitor) PurgeOrphans(ctx context.Context) (result persistence.PurgeResult, err error) {
	start := time.Now()
	cutoff := j.now().Add(-j.grace)
	defer func() {
		if err != nil {
			j.logger.ErrorContext(ctx, "orphan purge failed", "error", err)
			return
		}
		j.logger.InfoContext(ctx, "orphan purge finished",
			"dates_removed", result.Dates,
			"rooms_removed", result.Rooms,
			"cutoff", cutoff.UTC().Format(time.RFC3339),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	return j.repo.PurgeOrphans(ctx, cutoff)
}

// Start schedules PurgeOrphans with a six-field cron spec. Each run derives
// its context from ctx and is bounded by DefaultRunTimeout.
func (j *Janitor) Start(ctx context.Context, schedule string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron != nil {
		return ErrAlreadyStarted
	}

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() { j.run(ctx) }); err != nil {
		return err
	}
	c.Start()
	j.cron = c

	j.logger.InfoContext(ctx, "janitor scheduled", "schedule", schedule)
	return nil
}

// Stop halts the schedule and returns a context that is done once any
// running purge has finished. Stop on a janitor that never started returns a
// done context.
func (j *Janitor) Stop() context.Context {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	done := j.cron.Stop()
	j.cron = nil
	return done
}

func (j *Janitor) run(parent context.Context) {
	if parent.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, j.runTimeout)
	defer cancel()

	_, _ = j.PurgeOrphans(ctx)
}
