package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
)

// NotificationSink persists candidate notifications and returns the ones
// that were actually created.
type NotificationSink interface {
	Store(ctx context.Context, batch []models.Notification) ([]models.Notification, error)
}

// LatePaymentChecker scans active leases for months without a valid payment.
type LatePaymentChecker struct {
	DB       *gorm.DB
	Sink     NotificationSink
	GraceDay int
	Logger   *logrus.Logger
}

func NewLatePaymentChecker(db *gorm.DB, sink NotificationSink, graceDay int, logger *logrus.Logger) *LatePaymentChecker {
	return &LatePaymentChecker{DB: db, Sink: sink, GraceDay: graceDay, Logger: logger}
}

func LatePaymentMessage(m models.Month, tenant *models.Tenant, unit *models.Unit) string {
	return fmt.Sprintf("Late payment for %s - Tenant: %s (%s).", m.Label(), tenant.FullName(), unit.Designation)
}

func UnitLink(unitID uint) string {
	return fmt.Sprintf("/units/%d", unitID)
}

// UnpaidMonths lists the months between the lease start and the check limit
// that have no entry in paid. The current month only counts once the grace
// day is reached.
func UnpaidMonths(start, today time.Time, graceDay int, paid map[string]bool) []models.Month {
	start = models.DateOnly(start)
	limit := models.DateOnly(today)
	if today.Day() < graceDay {
		limit = models.AddMonths(limit, -1)
	}

	var out []models.Month
	// The cursor steps from the previous cursor, so once a short month clamps
	// the day it stays clamped.
	for cursor := start; !cursor.After(limit); cursor = models.AddMonths(cursor, 1) {
		m := models.MonthOf(cursor)
		if !paid[m.String()] {
			out = append(out, m)
		}
	}
	return out
}

// Run creates one notification per unpaid month of every active lease and
// returns how many were new.
func (c *LatePaymentChecker) Run(ctx context.Context, today time.Time) (int, error) {
	db := c.DB.WithContext(ctx)

	var leases []models.Lease
	if err := db.Where("end_date IS NULL").
		Preload("Unit.Building.Owner").
		Preload("Tenant").
		Find(&leases).Error; err != nil {
		return 0, fmt.Errorf("failed to load active leases: %w", err)
	}
	if len(leases) == 0 {
		return 0, nil
	}

	ids := make([]uint, 0, len(leases))
	for _, l := range leases {
		ids = append(ids, l.ID)
	}
	var payments []models.Payment
	if err := db.Select("lease_id", "covered_month").
		Where("lease_id IN ? AND is_valid = ?", ids, true).
		Find(&payments).Error; err != nil {
		return 0, fmt.Errorf("failed to load payments: %w", err)
	}
	paid := make(map[uint]map[string]bool)
	for _, p := range payments {
		if paid[p.LeaseID] == nil {
			paid[p.LeaseID] = make(map[string]bool)
		}
		paid[p.LeaseID][p.CoveredMonth] = true
	}

	var candidates []models.Notification
	for _, l := range leases {
		if l.Unit == nil || l.Unit.Building == nil || l.Unit.Building.Owner == nil || l.Tenant == nil {
			c.Logger.WithField("lease_id", l.ID).Warn("Skipping lease with incomplete relations")
			continue
		}
		for _, m := range UnpaidMonths(l.StartDate, today, c.GraceDay, paid[l.ID]) {
			candidates = append(candidates, models.Notification{
				AgencyID: l.Unit.Building.Owner.AgencyID,
				Message:  LatePaymentMessage(m, l.Tenant, l.Unit),
				Link:     UnitLink(l.UnitID),
			})
		}
	}

	created, err := c.Sink.Store(ctx, candidates)
	if err != nil {
		return len(created), err
	}
	c.Logger.WithFields(logrus.Fields{
		"leases":     len(leases),
		"candidates": len(candidates),
		"created":    len(created),
	}).Info("Late payment check finished")
	return len(created), nil
}
