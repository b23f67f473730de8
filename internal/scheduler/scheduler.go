// Package scheduler refreshes the key health snapshot on a fixed interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/Alias1177/marketfeed/models"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StatusProber produces per-key health records.
type StatusProber interface {
	KeyStatuses(ctx context.Context) []models.KeyStatus
}

// KeyCounter reports the current number of keys.
type KeyCounter interface {
	Len() int
}

// Scheduler manages the periodic health check
type Scheduler struct {
	cron     *gocron.Scheduler
	prober   StatusProber
	keys     KeyCounter
	interval time.Duration
	perKey   time.Duration
	logger   zerolog.Logger

	mu        sync.RWMutex
	statuses  []models.KeyStatus
	checkedAt time.Time
}

// New creates a scheduler that probes every interval. A run may spend perKey on each
// request it makes, sized by the pool at run time.
func New(prober StatusProber, keys KeyCounter, interval, perKey time.Duration) *Scheduler {
	return &Scheduler{
		cron:     gocron.NewScheduler(time.UTC),
		prober:   prober,
		keys:     keys,
		interval: interval,
		perKey:   perKey,
		logger:   log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the health job and runs it immediately, then every interval.
func (s *Scheduler) Start() error {
	s.logger.Info().Dur("interval", s.interval).Msg("Starting scheduler")

	if _, err := s.cron.Every(s.interval).SingletonMode().Do(s.Refresh); err != nil {
		return err
	}

	s.cron.StartAsync()
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Scheduler stopped")
}

// Refresh probes every key and replaces the stored snapshot.
func (s *Scheduler) Refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout())
	defer cancel()

	statuses := s.prober.KeyStatuses(ctx)

	active := 0
	for _, st := range statuses {
		if st.Status == models.KeyActive {
			active++
		}
	}

	s.mu.Lock()
	s.statuses = statuses
	s.checkedAt = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Info().Int("keys", len(statuses)).Int("active", active).Msg("Key health refreshed")
}

// runTimeout allows a probe and a usage request per key.
func (s *Scheduler) runTimeout() time.Duration {
	return s.perKey * time.Duration(2*max(s.keys.Len(), 1))
}

// Latest returns the last snapshot and when it was taken. The time is zero before the first run.
func (s *Scheduler) Latest() ([]models.KeyStatus, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.KeyStatus, len(s.statuses))
	copy(out, s.statuses)
	return out, s.checkedAt
}
