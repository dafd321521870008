// ABOUTME: GapJob runs gap analysis periodically on a cron schedule
// ABOUTME: Runs never overlap; Stop waits for a running analysis to finish
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/harper/muleta/internal/logger"
	"github.com/robfig/cron/v3"
)

// DefaultGapSchedule runs analysis once a day
const DefaultGapSchedule = "@daily"

// GapJob schedules GapAnalyzer.Analyze
type GapJob struct {
	analyzer *GapAnalyzer
	cron     *cron.Cron
	timeout  time.Duration
	log      *logger.Logger

	// onReport receives each finished report; used by watch mode
	onReport func(*GapReport)
}

// NewGapJob parses the schedule and registers the analysis
func NewGapJob(analyzer *GapAnalyzer, schedule string, log *logger.Logger) (*GapJob, error) {
	if schedule == "" {
		schedule = DefaultGapSchedule
	}
	spec, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid gap schedule: %w", err)
	}

	job := &GapJob{
		analyzer: analyzer,
		timeout:  5 * time.Minute,
		log:      logger.OrNop(log).Component("gap_job"),
	}
	job.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	job.cron.Schedule(spec, cron.FuncJob(job.run))
	return job, nil
}

// OnReport registers a callback for finished runs
func (j *GapJob) OnReport(fn func(*GapReport)) {
	j.onReport = fn
}

// RunOnce analyzes immediately, outside the schedule
func (j *GapJob) RunOnce(ctx context.Context) (*GapReport, error) {
	report, err := j.analyzer.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	if j.onReport != nil {
		j.onReport(report)
	}
	return report, nil
}

func (j *GapJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if _, err := j.RunOnce(ctx); err != nil {
		j.log.Error("scheduled gap analysis failed", "error", err)
	}
}

// Start begins the schedule in the background
func (j *GapJob) Start() {
	j.cron.Start()
	j.log.Info("gap job started", "next_run", j.Next())
}

// Stop halts the schedule and waits for a running analysis
func (j *GapJob) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info("gap job stopped")
}

// Next is the time of the next scheduled run
func (j *GapJob) Next() time.Time {
	entries := j.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
