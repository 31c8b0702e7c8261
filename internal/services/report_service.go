package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
)

type InterfaceReportService interface {
	FinancialSummary(ctx context.Context, actor *Actor, month models.Month, ownerID uint) (*models.FinancialSummary, error)
	FinancialReport(ctx context.Context, actor *Actor, month models.Month, ownerID uint) (*models.FinancialReport, error)
	OwnerHistory(ctx context.Context, actor *Actor, ownerID uint) (*models.OwnerHistory, error)
	RentReport(ctx context.Context, actor *Actor, filter RentFilter) ([]models.RentRow, error)
	Dashboard(ctx context.Context, actor *Actor) (*models.Dashboard, error)
}

type RentFilter struct {
	Month      models.Month
	OwnerID    uint
	BuildingID uint
	Status     models.RentStatus
}

type ReportService struct {
	DB     *gorm.DB
	Cache  *ReportCache
	Logger *logrus.Logger
	Now    func() time.Time
}

func NewReportService(db *gorm.DB, cache *ReportCache, logger *logrus.Logger) *ReportService {
	return &ReportService{DB: db, Cache: cache, Logger: logger, Now: time.Now}
}

// reportScope is the agency and optional owner a report covers.
type reportScope struct {
	agencyID uint
	owner    *models.Owner
}

func (sc reportScope) ownerID() uint {
	if sc.owner == nil {
		return 0
	}
	return sc.owner.ID
}

// scopeFor resolves which data the actor may aggregate. Owners only ever see
// their own figures; agencies may narrow down to one managed owner.
func (s *ReportService) scopeFor(db *gorm.DB, actor *Actor, ownerID uint) (reportScope, error) {
	switch {
	case actor.IsOwner():
		if ownerID != 0 && ownerID != actor.Owner.ID {
			return reportScope{}, ErrForbidden
		}
		owner, err := loadOwner(db, actor, actor.Owner.ID)
		if err != nil {
			return reportScope{}, err
		}
		return reportScope{agencyID: owner.AgencyID, owner: owner}, nil
	case actor.IsAgency():
		if ownerID == 0 {
			return reportScope{agencyID: actor.Agency.ID}, nil
		}
		owner, err := loadManagedOwner(db, actor, ownerID)
		if err != nil {
			return reportScope{}, err
		}
		return reportScope{agencyID: actor.Agency.ID, owner: owner}, nil
	}
	return reportScope{}, ErrForbidden
}

// joinOwners extends a query rooted at leases up to the owning agency.
func (sc reportScope) joinOwners(q *gorm.DB) *gorm.DB {
	q = q.Joins("JOIN units ON units.id = leases.unit_id").
		Joins("JOIN buildings ON buildings.id = units.building_id").
		Joins("JOIN owners ON owners.id = buildings.owner_id").
		Where("owners.agency_id = ?", sc.agencyID)
	if sc.owner != nil {
		q = q.Where("owners.id = ?", sc.owner.ID)
	}
	return q
}

func overlapping(q *gorm.DB, m models.Month) *gorm.DB {
	return q.Where("leases.start_date <= ? AND (leases.end_date IS NULL OR leases.end_date >= ?)", m.End(), m.Start())
}

// summary sums expected rent per overlapping lease, so a unit that changes
// tenant mid-month is owed once by each lease.
func (s *ReportService) summary(db *gorm.DB, sc reportScope, m models.Month) (*models.FinancialSummary, error) {
	var expected struct{ Total float64 }
	err := overlapping(sc.joinOwners(db.Table("leases")), m).
		Select("COALESCE(SUM(units.rent), 0) AS total").
		Scan(&expected).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum expected rent: %w", err)
	}

	var paid struct {
		Paid       float64
		Commission float64
	}
	err = sc.joinOwners(db.Table("payments").Joins("JOIN leases ON leases.id = payments.lease_id")).
		Where("payments.is_valid = ? AND payments.covered_month = ?", true, m.String()).
		Select("COALESCE(SUM(payments.amount), 0) AS paid, COALESCE(SUM(payments.amount * owners.commission_rate / 100.0), 0) AS commission").
		Scan(&paid).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments: %w", err)
	}

	return &models.FinancialSummary{
		Month:      m.String(),
		Expected:   models.RoundMoney(expected.Total),
		Paid:       models.RoundMoney(paid.Paid),
		Unpaid:     models.RoundMoney(expected.Total - paid.Paid),
		Commission: models.RoundMoney(paid.Commission),
	}, nil
}

// cachedSummary serves summary through the report cache.
func (s *ReportService) cachedSummary(ctx context.Context, db *gorm.DB, sc reportScope, m models.Month) (*models.FinancialSummary, error) {
	var cached models.FinancialSummary
	if s.Cache.load(ctx, sc.agencyID, &cached, "summary", m.String(), sc.ownerID()) {
		return &cached, nil
	}
	sum, err := s.summary(db, sc, m)
	if err != nil {
		return nil, err
	}
	s.Cache.store(ctx, sc.agencyID, sum, "summary", m.String(), sc.ownerID())
	return sum, nil
}

func (s *ReportService) FinancialSummary(ctx context.Context, actor *Actor, month models.Month, ownerID uint) (*models.FinancialSummary, error) {
	db := s.DB.WithContext(ctx)
	sc, err := s.scopeFor(db, actor, ownerID)
	if err != nil {
		return nil, err
	}
	return s.cachedSummary(ctx, db, sc, month)
}

// rentRows lists every lease overlapping the month plus leases that received
// a valid payment for it, so row totals match the summary figures.
func (s *ReportService) rentRows(db *gorm.DB, sc reportScope, m models.Month) ([]models.RentRow, map[uint]*models.Owner, error) {
	paidLeases := db.Model(&models.Payment{}).Select("lease_id").
		Where("covered_month = ? AND is_valid = ?", m.String(), true)

	var leases []models.Lease
	err := sc.joinOwners(db.Model(&models.Lease{})).
		Where("((leases.start_date <= ? AND (leases.end_date IS NULL OR leases.end_date >= ?)) OR leases.id IN (?))",
			m.End(), m.Start(), paidLeases).
		Preload("Unit.Building.Owner.User").
		Preload("Tenant").
		Find(&leases).Error
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load leases: %w", err)
	}

	ids := make([]uint, 0, len(leases))
	for _, l := range leases {
		ids = append(ids, l.ID)
	}
	paidBy := make(map[uint]float64)
	lastBy := make(map[uint]time.Time)
	if len(ids) > 0 {
		var payments []models.Payment
		if err := db.Where("lease_id IN ? AND covered_month = ? AND is_valid = ?", ids, m.String(), true).
			Find(&payments).Error; err != nil {
			return nil, nil, fmt.Errorf("failed to load payments: %w", err)
		}
		for _, p := range payments {
			paidBy[p.LeaseID] += p.Amount
			if p.PaymentDate.After(lastBy[p.LeaseID]) {
				lastBy[p.LeaseID] = p.PaymentDate
			}
		}
	}

	owners := make(map[uint]*models.Owner)
	rows := make([]models.RentRow, 0, len(leases))
	for _, l := range leases {
		if l.Unit == nil || l.Unit.Building == nil || l.Unit.Building.Owner == nil {
			continue
		}
		owner := l.Unit.Building.Owner
		owners[owner.ID] = owner

		row := models.RentRow{
			LeaseID:    l.ID,
			UnitID:     l.UnitID,
			Unit:       l.Unit.Designation,
			BuildingID: l.Unit.BuildingID,
			Building:   l.Unit.Building.Address,
			OwnerID:    owner.ID,
			Owner:      owner.User.FullName(),
			TenantID:   l.TenantID,
			Paid:       models.RoundMoney(paidBy[l.ID]),
		}
		if l.Tenant != nil {
			row.Tenant = l.Tenant.FullName()
		}
		if l.Covers(m) {
			row.Expected = l.Unit.Rent
		}
		row.Balance = models.RoundMoney(row.Expected - row.Paid)
		row.Status = models.RentStatusFor(row.Expected, row.Paid)
		if last, ok := lastBy[l.ID]; ok {
			row.LastPayment = &last
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		if a.Building != b.Building {
			return a.Building < b.Building
		}
		if a.Unit != b.Unit {
			return a.Unit < b.Unit
		}
		return a.LeaseID < b.LeaseID
	})
	return rows, owners, nil
}

func (s *ReportService) FinancialReport(ctx context.Context, actor *Actor, month models.Month, ownerID uint) (*models.FinancialReport, error) {
	db := s.DB.WithContext(ctx)
	sc, err := s.scopeFor(db, actor, ownerID)
	if err != nil {
		return nil, err
	}
	rows, owners, err := s.rentRows(db, sc, month)
	if err != nil {
		return nil, err
	}

	report := &models.FinancialReport{Month: month.String(), Owners: []models.OwnerReport{}}
	report.Totals.Month = month.String()

	index := make(map[uint]int)
	for _, row := range rows {
		i, ok := index[row.OwnerID]
		if !ok {
			o := owners[row.OwnerID]
			report.Owners = append(report.Owners, models.OwnerReport{
				OwnerID:        o.ID,
				Owner:          o.User.FullName(),
				FirstName:      o.User.FirstName,
				LastName:       o.User.LastName,
				CommissionRate: o.CommissionRate,
			})
			i = len(report.Owners) - 1
			index[row.OwnerID] = i
		}
		or := &report.Owners[i]
		or.Rows = append(or.Rows, row)
		or.Expected += row.Expected
		or.Paid += row.Paid
	}

	for i := range report.Owners {
		or := &report.Owners[i]
		or.Expected = models.RoundMoney(or.Expected)
		or.Paid = models.RoundMoney(or.Paid)
		or.Unpaid = models.RoundMoney(or.Expected - or.Paid)
		or.Commission = owners[or.OwnerID].Commission(or.Paid)
		or.NetToOwner = models.RoundMoney(or.Paid - or.Commission)

		report.Totals.Expected += or.Expected
		report.Totals.Paid += or.Paid
		report.Totals.Commission += or.Commission
		report.NetToOwners += or.NetToOwner
	}
	report.Totals.Expected = models.RoundMoney(report.Totals.Expected)
	report.Totals.Paid = models.RoundMoney(report.Totals.Paid)
	report.Totals.Unpaid = models.RoundMoney(report.Totals.Expected - report.Totals.Paid)
	report.Totals.Commission = models.RoundMoney(report.Totals.Commission)
	report.NetToOwners = models.RoundMoney(report.NetToOwners)
	return report, nil
}

func (s *ReportService) RentReport(ctx context.Context, actor *Actor, filter RentFilter) ([]models.RentRow, error) {
	db := s.DB.WithContext(ctx)
	sc, err := s.scopeFor(db, actor, filter.OwnerID)
	if err != nil {
		return nil, err
	}
	rows, _, err := s.rentRows(db, sc, filter.Month)
	if err != nil {
		return nil, err
	}

	out := make([]models.RentRow, 0, len(rows))
	for _, r := range rows {
		if filter.BuildingID != 0 && r.BuildingID != filter.BuildingID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// OwnerHistory walks every month from the owner's first lease to now.
func (s *ReportService) OwnerHistory(ctx context.Context, actor *Actor, ownerID uint) (*models.OwnerHistory, error) {
	db := s.DB.WithContext(ctx)
	if actor.IsOwner() && ownerID == 0 {
		ownerID = actor.Owner.ID
	}
	if ownerID == 0 {
		return nil, NewValidationError("owner_id", "select an owner")
	}
	sc, err := s.scopeFor(db, actor, ownerID)
	if err != nil {
		return nil, err
	}

	history := &models.OwnerHistory{
		OwnerID:   sc.owner.ID,
		Owner:     sc.owner.User.FullName(),
		FirstName: sc.owner.User.FirstName,
		LastName:  sc.owner.User.LastName,
		Months:    []models.HistoryMonth{},
	}

	var leases []models.Lease
	if err := sc.joinOwners(db.Model(&models.Lease{})).Order("leases.start_date").Limit(1).Find(&leases).Error; err != nil {
		return nil, fmt.Errorf("failed to find first lease: %w", err)
	}
	if len(leases) == 0 {
		return history, nil
	}

	current := models.MonthOf(s.Now())
	for m := models.MonthOf(leases[0].StartDate); !current.Before(m); m = m.Next() {
		sum, err := s.cachedSummary(ctx, db, sc, m)
		if err != nil {
			return nil, err
		}
		history.Months = append(history.Months, models.HistoryMonth{
			FinancialSummary: *sum,
			NetToOwner:       models.RoundMoney(sum.Paid - sum.Commission),
		})
	}
	return history, nil
}

func (s *ReportService) Dashboard(ctx context.Context, actor *Actor) (*models.Dashboard, error) {
	db := s.DB.WithContext(ctx)
	sc, err := s.scopeFor(db, actor, 0)
	if err != nil {
		return nil, err
	}
	d := &models.Dashboard{Role: actor.User.Role}

	buildings := db.Model(&models.Building{}).
		Joins("JOIN owners ON owners.id = buildings.owner_id").
		Where("owners.agency_id = ?", sc.agencyID)
	units := db.Model(&models.Unit{}).
		Joins("JOIN buildings ON buildings.id = units.building_id").
		Joins("JOIN owners ON owners.id = buildings.owner_id").
		Where("owners.agency_id = ?", sc.agencyID)
	if sc.owner != nil {
		buildings = buildings.Where("owners.id = ?", sc.owner.ID)
		units = units.Where("owners.id = ?", sc.owner.ID)
	}
	units = units.Session(&gorm.Session{})

	if err := buildings.Count(&d.Buildings).Error; err != nil {
		return nil, fmt.Errorf("failed to count buildings: %w", err)
	}
	if err := units.Count(&d.Units).Error; err != nil {
		return nil, fmt.Errorf("failed to count units: %w", err)
	}
	if err := units.Where("units.tenant_id IS NOT NULL").Count(&d.OccupiedUnits).Error; err != nil {
		return nil, fmt.Errorf("failed to count occupied units: %w", err)
	}
	d.OccupancyRate = models.OccupancyRate(d.OccupiedUnits, d.Units)

	if actor.IsAgency() {
		if err := db.Model(&models.Owner{}).Where("agency_id = ?", sc.agencyID).Count(&d.Owners).Error; err != nil {
			return nil, fmt.Errorf("failed to count owners: %w", err)
		}
		if err := db.Model(&models.Notification{}).Where("agency_id = ? AND is_read = ?", sc.agencyID, false).
			Count(&d.UnreadNotifications).Error; err != nil {
			return nil, fmt.Errorf("failed to count notifications: %w", err)
		}
	}

	sum, err := s.cachedSummary(ctx, db, sc, models.MonthOf(s.Now()))
	if err != nil {
		return nil, err
	}
	d.CurrentMonth = *sum
	return d, nil
}
