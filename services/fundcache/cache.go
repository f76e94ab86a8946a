package fundcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"lof_arb_api/logger"
	"lof_arb_api/models"
	"lof_arb_api/services/datasource"
	"lof_arb_api/services/pipeline"
)

// Fetcher is the upstream adapter contract the cache recomputes from.
type Fetcher interface {
	FetchQuotes(ctx context.Context) ([]models.RawQuoteRow, error)
	FetchStatus(ctx context.Context) ([]models.RawStatusRow, error)
}

// Cache holds the last published ResultSet behind a minimum refresh interval.
//
// States: empty (no data yet), fresh (age < TTL, served as-is), stale
// (age >= TTL, eligible for recompute). A cold cache makes every concurrent
// caller wait on one shared recompute; a stale cache lets exactly one caller
// recompute while everyone else is served the previous snapshot immediately.
// A failed recompute never wipes the previous snapshot or its timestamp.
type Cache struct {
	fetcher    Fetcher
	ttl        time.Duration
	thresholds pipeline.Thresholds

	mu         sync.RWMutex
	result     *models.ResultSet
	refreshing bool
	onPublish  func(*models.ResultSet)

	flight singleflight.Group
}

// New creates a cache over the given adapter. ttl is the minimum refresh
// interval, enforced regardless of request rate.
func New(fetcher Fetcher, ttl time.Duration, thresholds pipeline.Thresholds) *Cache {
	return &Cache{
		fetcher:    fetcher,
		ttl:        ttl,
		thresholds: thresholds,
	}
}

// OnPublish registers a hook invoked with every newly published snapshot.
// Must be called before the cache starts serving.
func (c *Cache) OnPublish(fn func(*models.ResultSet)) {
	c.onPublish = fn
}

// Get returns the current snapshot, recomputing per the state machine above.
// An error is returned only when there is no previous snapshot to fall back
// to.
func (c *Cache) Get(ctx context.Context) (*models.ResultSet, error) {
	c.mu.RLock()
	current := c.result
	fresh := current != nil && time.Since(current.ComputedAt) < c.ttl
	c.mu.RUnlock()

	if fresh {
		return current, nil
	}

	if current == nil {
		// Cold start: all concurrent callers share one flight and wait for
		// it; a failure here is the only user-visible refresh error.
		v, err, _ := c.flight.Do("refresh", func() (interface{}, error) {
			return c.recompute(ctx)
		})
		if err != nil {
			// Another caller may have published while we queued.
			c.mu.RLock()
			fallback := c.result
			c.mu.RUnlock()
			if fallback != nil {
				return fallback, nil
			}
			return nil, err
		}
		return v.(*models.ResultSet), nil
	}

	// Stale: exactly one caller becomes the refresher, the rest get the
	// still-valid previous snapshot without blocking on the in-flight work.
	c.mu.Lock()
	// Double-check after acquiring the write lock; a refresher may have
	// published while we waited.
	if c.result != nil && time.Since(c.result.ComputedAt) < c.ttl {
		refreshed := c.result
		c.mu.Unlock()
		return refreshed, nil
	}
	if c.refreshing {
		stale := c.result
		c.mu.Unlock()
		return stale, nil
	}
	c.refreshing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.refreshing = false
		c.mu.Unlock()
	}()

	updated, err := c.recompute(ctx)
	if err != nil {
		logger.WithComponent("cache").WithError(err).
			Warn("refresh failed, serving last known good snapshot")
		return current, nil
	}
	return updated, nil
}

// Current returns the published snapshot without triggering a refresh.
func (c *Cache) Current() *models.ResultSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result
}

// State reports the cache state for diagnostics.
func (c *Cache) State() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.result == nil:
		return "empty"
	case time.Since(c.result.ComputedAt) < c.ttl:
		return "fresh"
	default:
		return "stale"
	}
}

// recompute runs the full pipeline: both upstream fetches in parallel, join,
// metric derivation, filter, then an atomic publish. The snapshot timestamp
// is taken at publish so it always matches the data it describes.
func (c *Cache) recompute(ctx context.Context) (*models.ResultSet, error) {
	start := time.Now()

	var (
		quotes []models.RawQuoteRow
		status []models.RawStatusRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		quotes, err = c.fetcher.FetchQuotes(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		status, err = c.fetcher.FetchStatus(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.WithComponent("cache").WithError(err).WithFields(logger.Fields{
			"stage":    "fetch",
			"schema":   errors.Is(err, datasource.ErrUpstreamSchemaError),
			"duration": time.Since(start).String(),
		}).Error("upstream fetch failed")
		return nil, err
	}

	joined, dropped := pipeline.Join(quotes, status)
	if len(joined) == 0 {
		// Distinct from a fetch failure: the feeds answered but nothing
		// matched, which usually means they are out of sync.
		logger.WithComponent("cache").WithFields(logger.Fields{
			"stage":   "join",
			"quotes":  len(quotes),
			"status":  len(status),
			"dropped": dropped,
		}).Error("join produced no records")
		return nil, pipeline.ErrEmptyResult
	}

	computed := make([]models.FundRecord, 0, len(joined))
	excluded := 0
	for _, rec := range joined {
		r, ok := pipeline.Compute(rec)
		if !ok {
			excluded++
			continue
		}
		computed = append(computed, r)
	}

	candidates := pipeline.Filter(computed, c.thresholds)

	snapshot := &models.ResultSet{
		Records:    candidates,
		ComputedAt: time.Now(),
	}

	c.mu.Lock()
	c.result = snapshot
	c.mu.Unlock()

	if c.onPublish != nil {
		c.onPublish(snapshot)
	}

	logger.WithComponent("cache").WithFields(logger.Fields{
		"joined":     len(joined),
		"dropped":    dropped,
		"unvalued":   excluded,
		"candidates": len(candidates),
		"duration":   time.Since(start).String(),
	}).Info("snapshot refreshed")
	return snapshot, nil
}
