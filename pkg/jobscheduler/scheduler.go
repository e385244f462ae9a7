package jobscheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/fsandov/botpress-simulator/pkg/logs"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a scheduled unit of work. The context is cancelled when the
// scheduler stops.
type Job func(ctx context.Context) error

type Scheduler interface {
	Add(name, spec string, job Job) (id cron.EntryID, err error)
	Remove(id cron.EntryID)
	Start()
	Stop(ctx context.Context) error
	List() []cron.Entry
}

type cronScheduler struct {
	c      *cron.Cron
	logger *logs.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*cronScheduler)

func WithLogger(l *logs.Logger) Option {
	return func(s *cronScheduler) { s.logger = l }
}

// New returns a cron scheduler that recovers panicking jobs and skips a run
// while the previous one is still executing.
func New(opts ...Option) Scheduler {
	s := &cronScheduler{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logs.GetLogger()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	cl := cronLogger{l: s.logger}
	s.c = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s
}

func (s *cronScheduler) Add(name, spec string, job Job) (cron.EntryID, error) {
	return s.c.AddFunc(spec, func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			s.logger.Error(s.ctx, "job failed",
				zap.String("job", name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		s.logger.Debug(s.ctx, "job finished",
			zap.String("job", name),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *cronScheduler) Remove(id cron.EntryID) {
	s.c.Remove(id)
}

func (s *cronScheduler) Start() {
	s.c.Start()
}

// Stop cancels running jobs and waits for them until ctx is done.
func (s *cronScheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("jobscheduler: stop: %w", ctx.Err())
	}
}

func (s *cronScheduler) List() []cron.Entry {
	return s.c.Entries()
}

type cronLogger struct {
	l *logs.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(context.Background(), "cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(context.Background(), "cron: "+msg, append([]interface{}{err}, keysAndValues...)...)
}
