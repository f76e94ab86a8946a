// Package scheduler keeps the snapshot cache warm in the background so
// interactive requests mostly hit a fresh cache during trading hours.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"lof_arb_api/logger"
	"lof_arb_api/services/fundcache"
)

// Scheduler manages the background refresh job.
type Scheduler struct {
	cron  *gocron.Scheduler
	cache *fundcache.Cache
	ttl   time.Duration
}

// NewScheduler creates a scheduler refreshing the given cache once per TTL.
func NewScheduler(cache *fundcache.Cache, ttl time.Duration) *Scheduler {
	return &Scheduler{
		cron:  gocron.NewScheduler(time.Local),
		cache: cache,
		ttl:   ttl,
	}
}

// Start begins the periodic refresh. The job simply calls Get: a fresh cache
// makes it a no-op, a stale one triggers the normal single-flight recompute,
// so the scheduler can never multiply upstream call volume.
func (s *Scheduler) Start() {
	s.cron.Every(s.ttl).Do(func() {
		if !isMarketOpen() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.ttl)
		defer cancel()
		if _, err := s.cache.Get(ctx); err != nil {
			logger.WithComponent("scheduler").WithError(err).Warn("background refresh failed")
		}
	})

	s.cron.StartAsync()
	logger.WithComponent("scheduler").WithFields(logger.Fields{
		"interval": s.ttl.String(),
	}).Info("background refresh started")
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	logger.WithComponent("scheduler").Info("background refresh stopped")
}

// isMarketOpen checks whether mainland exchanges are in a trading session.
// Sessions are 9:30-11:30 and 13:00-15:00, Monday to Friday, China time.
func isMarketOpen() bool {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.Local
	}
	now := time.Now().In(loc)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}

	minutes := now.Hour()*60 + now.Minute()
	morning := minutes >= 9*60+30 && minutes <= 11*60+30
	afternoon := minutes >= 13*60 && minutes <= 15*60
	return morning || afternoon
}
