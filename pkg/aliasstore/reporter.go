package aliasstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// StatsSink receives periodic alias table statistics.
type StatsSink interface {
	SetAliasStats(aliases, refreshes int64)
}

// Reporter publishes Store.Stats to a StatsSink on a cron schedule.
type Reporter struct {
	store   Store
	sink    StatsSink
	logger  *slog.Logger
	timeout time.Duration
	cron    *cron.Cron
}

// NewReporter schedules a stats refresh using a standard cron expression
// (descriptors such as "@every 1m" are accepted).
func NewReporter(store Store, sink StatsSink, schedule string, logger *slog.Logger) (*Reporter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Reporter{
		store:   store,
		sink:    sink,
		logger:  logger.With("component", "alias_reporter"),
		timeout: 5 * time.Second,
		cron:    cron.New(),
	}
	if _, err := r.cron.AddFunc(schedule, r.Report); err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start runs the schedule in the background after an initial report.
func (r *Reporter) Start() {
	r.Report()
	r.cron.Start()
}

// Stop halts the schedule and waits for a running report to finish.
func (r *Reporter) Stop() {
	<-r.cron.Stop().Done()
}

// Report reads the current stats and publishes them once.
func (r *Reporter) Report() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	st, err := r.store.Stats(ctx)
	if err != nil {
		r.logger.Warn("alias stats unavailable", "error", err)
		return
	}
	r.sink.SetAliasStats(st.Aliases, st.Refreshes)
	r.logger.Debug("alias stats reported", "aliases", st.Aliases, "refreshes", st.Refreshes)
}
