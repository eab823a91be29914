package aggregation

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job runs one full aggregation pass: recompute rollups for every Base
// and Chunk from their canonical submissions. Supplied by the caller
// (internal/store-backed in the real server, in-memory in tests).
type Job func(ctx context.Context) error

// Scheduler runs a Job once, or repeatedly on a cron schedule, matching
// the controller's own SetupScheduler/StartCron/StopCron shape.
type Scheduler struct {
	cron   *cron.Cron
	job    Job
	logger *zap.Logger
}

// NewScheduler builds a Scheduler that will run job on spec (standard
// 5-field cron syntax, no seconds field — aggregation does not need
// sub-minute granularity).
func NewScheduler(job Job, spec string, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{job: job, logger: logger}
	s.cron = cron.New(cron.WithChain(cron.Recover(cron.VerbosePrintfLogger(zapStdLogAdapter{logger}))))

	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 25*time.Minute)
		defer cancel()
		if err := s.job(ctx); err != nil {
			s.logger.Error("aggregation run failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the cron schedule.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for any in-flight run to finish, then stops the schedule.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce runs the job a single time, bypassing the schedule entirely.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.job(ctx)
}

// zapStdLogAdapter lets the cron package's printf-style logger write
// through zap instead of the standard log package.
type zapStdLogAdapter struct{ logger *zap.Logger }

func (a zapStdLogAdapter) Printf(format string, args ...interface{}) {
	a.logger.Sugar().Infof(format, args...)
}
