package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/FOCUS1407/gestion-immobiliere/internal/cache"
)

// ReportCache memoizes report figures per agency. Every write that changes
// rents, leases or payments bumps the agency generation so stale entries
// are never read again and simply expire.
type ReportCache struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

func NewReportCache(c cache.Cache, ttl time.Duration, logger *logrus.Logger) *ReportCache {
	return &ReportCache{cache: c, ttl: ttl, logger: logger}
}

func generationKey(agencyID uint) string {
	return fmt.Sprintf("reports:%d:gen", agencyID)
}

func (r *ReportCache) key(ctx context.Context, agencyID uint, parts ...interface{}) (string, bool) {
	if r == nil || r.cache == nil {
		return "", false
	}
	gen, err := r.cache.Counter(ctx, generationKey(agencyID))
	if err != nil {
		r.logger.WithError(err).Warn("Report cache unavailable")
		return "", false
	}
	key := fmt.Sprintf("reports:%d:%d", agencyID, gen)
	for _, p := range parts {
		key += fmt.Sprintf(":%v", p)
	}
	return key, true
}

func (r *ReportCache) load(ctx context.Context, agencyID uint, dest interface{}, parts ...interface{}) bool {
	key, ok := r.key(ctx, agencyID, parts...)
	if !ok {
		return false
	}
	found, err := r.cache.Get(ctx, key, dest)
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Failed to read report cache")
		return false
	}
	return found
}

func (r *ReportCache) store(ctx context.Context, agencyID uint, value interface{}, parts ...interface{}) {
	key, ok := r.key(ctx, agencyID, parts...)
	if !ok {
		return
	}
	if err := r.cache.Set(ctx, key, value, r.ttl); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Failed to write report cache")
	}
}

// Invalidate drops every cached report of the agency.
func (r *ReportCache) Invalidate(ctx context.Context, agencyID uint) {
	if r == nil || r.cache == nil || agencyID == 0 {
		return
	}
	if _, err := r.cache.Incr(ctx, generationKey(agencyID)); err != nil {
		r.logger.WithError(err).WithField("agency_id", agencyID).Warn("Failed to invalidate report cache")
	}
}
