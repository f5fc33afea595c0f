package services

import (
	"context"
	"time"

	"facture-workflow/internal/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// tokenCleanupSchedule purges dead refresh tokens every night
const tokenCleanupSchedule = "30 3 * * *"

// jobTimeout bounds a single scheduled run
const jobTimeout = 5 * time.Minute

// CronService runs the scheduled background jobs
type CronService struct {
	cron     *cron.Cron
	reminder *ReminderService
	auth     *AuthService
	schedule string
	log      *zap.Logger
}

// NewCronService creates the scheduler; reminderSchedule is a standard
// five-field cron expression
func NewCronService(reminder *ReminderService, auth *AuthService, reminderSchedule string) *CronService {
	log := logger.Named("cron")
	return &CronService{
		cron: cron.New(
			cron.WithLogger(cronLogger{log.Sugar()}),
			cron.WithChain(cron.Recover(cronLogger{log.Sugar()}), cron.SkipIfStillRunning(cronLogger{log.Sugar()})),
		),
		reminder: reminder,
		auth:     auth,
		schedule: reminderSchedule,
		log:      log,
	}
}

// Start registers the jobs and starts the scheduler
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runReminder); err != nil {
		return err
	}
	if s.auth != nil {
		if _, err := s.cron.AddFunc(tokenCleanupSchedule, s.runTokenCleanup); err != nil {
			return err
		}
	}
	s.cron.Start()

	s.log.Info("scheduler started", zap.String("reminder_schedule", s.schedule))
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *CronService) runReminder() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.reminder.Run(ctx); err != nil {
		s.log.Error("reminder run failed", zap.Error(err))
	}
}

func (s *CronService) runTokenCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.auth.CleanupExpiredTokens(ctx); err != nil {
		s.log.Error("token cleanup failed", zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
