package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"paysync/internal/repository"
)

const (
	DefaultMarkerPurgeSpec       = "0 */15 * * * *"
	DefaultReservationExpirySpec = "0 * * * * *"
)

// Schedule holds the cron expressions (with seconds) of the housekeeping jobs.
// An empty expression disables that job.
type Schedule struct {
	MarkerPurge       string
	ReservationExpiry string
}

// Scheduler runs the housekeeping jobs.
type Scheduler struct {
	cron     *cron.Cron
	store    *repository.Store
	schedule Schedule
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a new cron scheduler.
func New(store *repository.Store, schedule Schedule, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		store:    store,
		schedule: schedule,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() error {
	s.logger.Info("Starting cron scheduler...")

	if s.schedule.MarkerPurge != "" {
		if _, err := s.cron.AddFunc(s.schedule.MarkerPurge, func() {
			s.logger.Debug("Running: purge expired markers")
			s.purgeExpiredMarkers()
		}); err != nil {
			return err
		}
	}

	if s.schedule.ReservationExpiry != "" {
		if _, err := s.cron.AddFunc(s.schedule.ReservationExpiry, func() {
			s.logger.Debug("Running: expire reservations")
			s.expireReservations()
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("Cron scheduler started", zap.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) purgeExpiredMarkers() {
	defer s.recoverFromPanic("purgeExpiredMarkers")

	n, err := s.store.Markers.PurgeExpired(s.now())
	if err != nil {
		s.logger.Error("Failed to purge idempotency markers", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Purged expired idempotency markers", zap.Int64("count", n))
	}
}

// Reservations that lapse unpaid are released. Orders with a payment already
// received are left for the webhook and reconciliation paths.
func (s *Scheduler) expireReservations() {
	defer s.recoverFromPanic("expireReservations")

	n, err := s.store.Orders.ExpireReservations(s.now())
	if err != nil {
		s.logger.Error("Failed to expire reservations", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Expired lapsed reservations", zap.Int64("count", n))
	}
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}
