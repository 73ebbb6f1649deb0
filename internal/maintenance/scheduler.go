// Package maintenance runs periodic housekeeping: database backups and the
// purge of bookings past their retention period.
package maintenance

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"roombook/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Store is what the jobs need from the database.
type Store interface {
	Backup(ctx context.Context, dest string) error
	CleanupBackups(dir string, retention time.Duration) (int, error)
	PurgeEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Invalidator is told which data changed after a purge.
type Invalidator interface {
	InvalidateAll(ctx context.Context)
}

// Options configures the jobs. An empty schedule disables its job.
type Options struct {
	BackupSchedule   string
	BackupDir        string
	BackupRetention  time.Duration
	PurgeSchedule    string
	BookingRetention time.Duration
	Location         *time.Location
	Now              func() time.Time
}

// Scheduler owns the cron runner.
type Scheduler struct {
	store       Store
	invalidator Invalidator
	opts        Options
	cron        *cron.Cron
	logger      zerolog.Logger
}

// New registers the enabled jobs. Nothing runs until Start.
func New(store Store, invalidator Invalidator, opts Options, logger *zerolog.Logger) (*Scheduler, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BackupDir == "" {
		opts.BackupDir = "backups"
	}

	s := &Scheduler{
		store:       store,
		invalidator: invalidator,
		opts:        opts,
		cron:        cron.New(cron.WithLocation(opts.Location)),
		logger:      logger.With().Str("component", "maintenance").Logger(),
	}

	if opts.BackupSchedule != "" {
		if _, err := s.cron.AddFunc(opts.BackupSchedule, func() { _ = s.RunBackup(context.Background()) }); err != nil {
			return nil, fmt.Errorf("backup schedule %q: %w", opts.BackupSchedule, err)
		}
	}
	if opts.PurgeSchedule != "" && opts.BookingRetention > 0 {
		if _, err := s.cron.AddFunc(opts.PurgeSchedule, func() { _, _ = s.RunPurge(context.Background()) }); err != nil {
			return nil, fmt.Errorf("purge schedule %q: %w", opts.PurgeSchedule, err)
		}
	}
	return s, nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start runs the jobs until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Int("jobs", s.Jobs()).Msg("maintenance scheduler started")
	s.cron.Start()
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		s.logger.Info().Msg("maintenance scheduler stopped")
	}()
}

// RunBackup copies the database and prunes old copies.
func (s *Scheduler) RunBackup(ctx context.Context) error {
	timestamp := s.opts.Now().Format("20060102_150405")
	dest := filepath.Join(s.opts.BackupDir, fmt.Sprintf("roombook_%s.db", timestamp))

	s.logger.Info().Str("path", dest).Msg("starting database backup")
	if err := s.store.Backup(ctx, dest); err != nil {
		s.logger.Error().Err(err).Msg("backup failed")
		return err
	}
	s.logger.Info().Msg("backup completed successfully")

	deleted, err := s.store.CleanupBackups(s.opts.BackupDir, s.opts.BackupRetention)
	if err != nil {
		s.logger.Error().Err(err).Msg("backup cleanup failed")
		return err
	}
	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Msg("cleaned up old backups")
	}
	return nil
}

// RunPurge deletes bookings that ended before now minus the retention period.
func (s *Scheduler) RunPurge(ctx context.Context) (int64, error) {
	if s.opts.BookingRetention <= 0 {
		return 0, nil
	}
	cutoff := s.opts.Now().Add(-s.opts.BookingRetention)
	n, err := s.store.PurgeEndedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("purge failed")
		return 0, err
	}
	if n > 0 {
		metrics.IncPurged(n)
		if s.invalidator != nil {
			s.invalidator.InvalidateAll(ctx)
		}
		s.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("purged past bookings")
	}
	return n, nil
}
