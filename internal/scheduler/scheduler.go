// Package scheduler mails tomorrow's digest to configured subscribers on a
// cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tartampluch/onefam/internal/config"
	"github.com/tartampluch/onefam/internal/metrics"
)

// DigestSender composes and queues one family's digest.
type DigestSender interface {
	SendDigest(ctx context.Context, familyID, to string) (string, error)
}

// Scheduler runs SendDigest for every subscription at each cron tick.
type Scheduler struct {
	sender        DigestSender
	schedule      string
	subscriptions []config.Subscription
	cron          *cron.Cron
}

// New validates the schedule. An empty schedule yields a disabled Scheduler.
func New(sender DigestSender, settings config.DigestSettings) (*Scheduler, error) {
	if settings.Schedule != "" {
		if _, err := cron.ParseStandard(settings.Schedule); err != nil {
			return nil, fmt.Errorf("%s: %w", config.ErrCronSchedule, err)
		}
	}
	return &Scheduler{
		sender:        sender,
		schedule:      settings.Schedule,
		subscriptions: settings.Subscriptions,
	}, nil
}

// Enabled reports whether there is anything to schedule.
func (s *Scheduler) Enabled() bool {
	return s.schedule != "" && len(s.subscriptions) > 0
}

// Start registers the job and starts the cron loop in UTC. ctx is handed to
// every run; cancel it and call Stop to shut down.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}

	logger := slogAdapter{log: slog.With(config.LogKeyComponent, config.CompScheduler)}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("%s: %w", config.ErrCronSchedule, err)
	}
	s.cron.Start()

	slog.Info(config.MsgSchedulerStart,
		config.LogKeyComponent, config.CompScheduler,
		config.LogKeySchedule, s.schedule,
		config.LogKeyCount, len(s.subscriptions),
	)
	return nil
}

// Stop halts the cron loop and waits for a running job, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	slog.Info(config.MsgSchedulerStop, config.LogKeyComponent, config.CompScheduler)
}

// RunOnce sends the digest for every subscription. A failing subscription
// does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) {
	slog.InfoContext(ctx, config.MsgSchedulerRun,
		config.LogKeyComponent, config.CompScheduler,
		config.LogKeyCount, len(s.subscriptions),
	)

	for _, sub := range s.subscriptions {
		if ctx.Err() != nil {
			return
		}
		_, err := s.sender.SendDigest(ctx, sub.FamilyID, sub.Email)
		metrics.RecordScheduledDigest(err)
		if err != nil {
			slog.ErrorContext(ctx, config.MsgSchedulerFail,
				config.LogKeyComponent, config.CompScheduler,
				config.LogKeyGroup, sub.FamilyID,
				config.LogKeyTo, sub.Email,
				config.LogKeyError, err,
			)
		}
	}
}

// slogAdapter routes cron's internal logging to slog.
type slogAdapter struct {
	log *slog.Logger
}

func (a slogAdapter) Info(msg string, keysAndValues ...any) {
	a.log.Debug(msg, keysAndValues...)
}

func (a slogAdapter) Error(err error, msg string, keysAndValues ...any) {
	a.log.Error(msg, append(keysAndValues, config.LogKeyError, err)...)
}
