package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/FOCUS1407/gestion-immobiliere/config"
	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
	"github.com/FOCUS1407/gestion-immobiliere/internal/storage"
)

type InterfacePaymentService interface {
	RecordPayment(ctx context.Context, actor *Actor, unitID uint, in PaymentInput, proof *storage.Upload) (*models.Payment, error)
	UpdatePayment(ctx context.Context, actor *Actor, id uint, in PaymentInput, proof *storage.Upload) (*models.Payment, error)
	DeletePayment(ctx context.Context, actor *Actor, id uint) error
	TenantPayments(ctx context.Context, actor *Actor, tenantID uint, q models.PaginationQuery) ([]models.Payment, models.PaginationResult, error)
	TenantMonthPayments(ctx context.Context, actor *Actor, tenantID uint, month models.Month) ([]models.Payment, error)
	TenantPaymentsExport(ctx context.Context, actor *Actor, tenantID uint) (*models.Tenant, []models.Payment, error)
	MonthPayments(ctx context.Context, actor *Actor, month models.Month) ([]models.Payment, error)

	ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error)
	AddPaymentMethod(ctx context.Context, actor *Actor, code string) (*models.PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, actor *Actor, id uint) error
	ListPropertyTypes(ctx context.Context) ([]models.PropertyType, error)
}

type PaymentInput struct {
	Amount          float64 `form:"amount" json:"amount"`
	PaymentDate     string  `form:"payment_date" json:"payment_date" binding:"required"`
	CoveredMonth    string  `form:"covered_month" json:"covered_month" binding:"required"`
	PaymentMethodID uint    `form:"payment_method_id" json:"payment_method_id" binding:"required"`
	IsValid         *bool   `form:"is_valid" json:"is_valid"`
	RemoveProof     bool    `form:"remove_proof" json:"remove_proof"`
}

type PaymentService struct {
	DB      *gorm.DB
	Files   FileStore
	Reports *ReportCache
	Logger  *logrus.Logger
}

func NewPaymentService(db *gorm.DB, files FileStore, reports *ReportCache, logger *logrus.Logger) InterfacePaymentService {
	return &PaymentService{DB: db, Files: files, Reports: reports, Logger: logger}
}

// paymentPreloads loads what listings and exports display for a payment.
func paymentPreloads(db *gorm.DB) *gorm.DB {
	return db.Preload("PaymentMethod").Preload("Lease.Tenant").Preload("Lease.Unit.Building")
}

func (in PaymentInput) validate(tx *gorm.DB) (models.Payment, *models.PaymentMethod, error) {
	verr := &ValidationError{}
	p := models.Payment{
		Amount:          models.RoundMoney(in.Amount),
		PaymentMethodID: in.PaymentMethodID,
		IsValid:         true,
	}
	if in.IsValid != nil {
		p.IsValid = *in.IsValid
	}
	if in.Amount < 0 {
		verr.Add("amount", "amount cannot be negative")
	}
	date, err := models.ParseDate(in.PaymentDate)
	if err != nil {
		verr.Add("payment_date", err.Error())
	}
	p.PaymentDate = models.DateOnly(date)
	month, err := models.ParseMonth(in.CoveredMonth)
	if err != nil {
		verr.Add("covered_month", "enter the month as YYYY-MM")
	}
	p.CoveredMonth = month.String()

	var method models.PaymentMethod
	if err := tx.First(&method, in.PaymentMethodID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return p, nil, err
		}
		verr.Add("payment_method_id", "select a valid payment method")
		return p, nil, verr.Err()
	}
	return p, &method, verr.Err()
}

func ensureUniqueMonth(tx *gorm.DB, leaseID uint, month string, excludeID uint) error {
	var count int64
	q := tx.Model(&models.Payment{}).Where("lease_id = ? AND covered_month = ?", leaseID, month)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		m, _ := models.ParseMonth(month)
		return conflict("a payment for %s already exists for this lease", m.Label())
	}
	return nil
}

func proofRequired(method *models.PaymentMethod) error {
	return NewValidationError("proof", fmt.Sprintf("a proof of payment is required for %s", method.Label))
}

// RecordPayment stores a payment against the unit's active lease.
func (s *PaymentService) RecordPayment(ctx context.Context, actor *Actor, unitID uint, in PaymentInput, proof *storage.Upload) (*models.Payment, error) {
	db := s.DB.WithContext(ctx)
	unit, err := loadManagedUnit(db, actor, unitID)
	if err != nil {
		return nil, err
	}
	lease, err := activeLease(db, unit.ID)
	if err != nil {
		return nil, err
	}
	if lease == nil {
		return nil, conflict("unit %s has no active lease", unit.Designation)
	}

	payment, method, err := in.validate(db)
	if err != nil {
		return nil, err
	}
	if method.RequiresProof && proof == nil {
		return nil, proofRequired(method)
	}
	payment.LeaseID = lease.ID

	if proof != nil {
		if payment.ProofPath, err = s.Files.Save(storage.KindProof, proof); err != nil {
			return nil, uploadErr("proof", err)
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := ensureUniqueMonth(tx, lease.ID, payment.CoveredMonth, 0); err != nil {
			return err
		}
		if err := tx.Create(&payment).Error; err != nil {
			if isUniqueViolation(err) {
				return conflict("a payment for %s already exists for this lease", payment.CoveredMonth)
			}
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		removeFiles(s.Files, s.Logger, []string{payment.ProofPath})
		return nil, err
	}

	s.Reports.Invalidate(ctx, unit.Building.Owner.AgencyID)
	s.Logger.WithFields(logrus.Fields{
		"payment_id":    payment.ID,
		"lease_id":      lease.ID,
		"covered_month": payment.CoveredMonth,
		"amount":        payment.Amount,
	}).Info("Recorded payment")
	payment.PaymentMethod = method
	return &payment, nil
}

func loadManagedPayment(db *gorm.DB, actor *Actor, id uint) (*models.Payment, error) {
	if err := requireAgency(actor); err != nil {
		return nil, err
	}
	var payment models.Payment
	if err := db.Preload("Lease.Unit.Building.Owner").First(&payment, id).Error; err != nil {
		return nil, lookupErr(err, "payment")
	}
	l := payment.Lease
	if l == nil || l.Unit == nil || l.Unit.Building == nil || l.Unit.Building.Owner == nil ||
		!actor.canManageOwner(l.Unit.Building.Owner) {
		return nil, ErrForbidden
	}
	return &payment, nil
}

func (s *PaymentService) UpdatePayment(ctx context.Context, actor *Actor, id uint, in PaymentInput, proof *storage.Upload) (*models.Payment, error) {
	db := s.DB.WithContext(ctx)
	existing, err := loadManagedPayment(db, actor, id)
	if err != nil {
		return nil, err
	}
	updated, method, err := in.validate(db)
	if err != nil {
		return nil, err
	}

	keptProof := existing.ProofPath
	if in.RemoveProof {
		keptProof = ""
	}
	if method.RequiresProof && proof == nil && keptProof == "" {
		return nil, proofRequired(method)
	}

	newProof := ""
	if proof != nil {
		if newProof, err = s.Files.Save(storage.KindProof, proof); err != nil {
			return nil, uploadErr("proof", err)
		}
	}

	updated.ID = existing.ID
	updated.LeaseID = existing.LeaseID
	updated.CreatedAt = existing.CreatedAt
	updated.ProofPath = keptProof
	if newProof != "" {
		updated.ProofPath = newProof
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := ensureUniqueMonth(tx, existing.LeaseID, updated.CoveredMonth, existing.ID); err != nil {
			return err
		}
		return tx.Model(&updated).
			Select("amount", "payment_date", "covered_month", "payment_method_id", "is_valid", "proof_path").
			Updates(&updated).Error
	})
	if err != nil {
		removeFiles(s.Files, s.Logger, []string{newProof})
		return nil, err
	}

	if existing.ProofPath != "" && existing.ProofPath != updated.ProofPath {
		removeFiles(s.Files, s.Logger, []string{existing.ProofPath})
	}
	s.Reports.Invalidate(ctx, existing.Lease.Unit.Building.Owner.AgencyID)
	updated.PaymentMethod = method
	return &updated, nil
}

func (s *PaymentService) DeletePayment(ctx context.Context, actor *Actor, id uint) error {
	db := s.DB.WithContext(ctx)
	payment, err := loadManagedPayment(db, actor, id)
	if err != nil {
		return err
	}
	if err := db.Delete(&models.Payment{}, payment.ID).Error; err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	removeFiles(s.Files, s.Logger, []string{payment.ProofPath})
	s.Reports.Invalidate(ctx, payment.Lease.Unit.Building.Owner.AgencyID)
	return nil
}

func tenantLeaseIDs(db *gorm.DB, tenantID uint) ([]uint, error) {
	var ids []uint
	if err := db.Model(&models.Lease{}).Where("tenant_id = ?", tenantID).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to load leases: %w", err)
	}
	return ids, nil
}

// TenantPayments lists a tenant's payments, latest covered month first.
func (s *PaymentService) TenantPayments(ctx context.Context, actor *Actor, tenantID uint, q models.PaginationQuery) ([]models.Payment, models.PaginationResult, error) {
	db := s.DB.WithContext(ctx)
	tenant, err := loadTenant(db, actor, tenantID)
	if err != nil {
		return nil, models.PaginationResult{}, err
	}
	leaseIDs, err := tenantLeaseIDs(db, tenant.ID)
	if err != nil {
		return nil, models.PaginationResult{}, err
	}
	payments := []models.Payment{}
	if len(leaseIDs) == 0 {
		q = q.Normalize(0)
		return payments, q.Result(0), nil
	}

	var total int64
	if err := db.Model(&models.Payment{}).Where("lease_id IN ?", leaseIDs).Count(&total).Error; err != nil {
		return nil, models.PaginationResult{}, fmt.Errorf("failed to count payments: %w", err)
	}
	q = q.Normalize(total)

	if err := paymentPreloads(db).
		Where("lease_id IN ?", leaseIDs).
		Order("covered_month DESC, payment_date DESC, id DESC").
		Limit(q.PageSize).Offset(q.Offset()).
		Find(&payments).Error; err != nil {
		return nil, models.PaginationResult{}, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, q.Result(total), nil
}

func (s *PaymentService) TenantMonthPayments(ctx context.Context, actor *Actor, tenantID uint, month models.Month) ([]models.Payment, error) {
	db := s.DB.WithContext(ctx)
	tenant, err := loadTenant(db, actor, tenantID)
	if err != nil {
		return nil, err
	}
	leaseIDs, err := tenantLeaseIDs(db, tenant.ID)
	if err != nil {
		return nil, err
	}
	payments := []models.Payment{}
	if len(leaseIDs) == 0 {
		return payments, nil
	}
	if err := paymentPreloads(db).
		Where("lease_id IN ? AND covered_month = ?", leaseIDs, month.String()).
		Order("payment_date, id").
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (s *PaymentService) TenantPaymentsExport(ctx context.Context, actor *Actor, tenantID uint) (*models.Tenant, []models.Payment, error) {
	db := s.DB.WithContext(ctx)
	tenant, err := loadTenant(db, actor, tenantID)
	if err != nil {
		return nil, nil, err
	}
	leaseIDs, err := tenantLeaseIDs(db, tenant.ID)
	if err != nil {
		return nil, nil, err
	}
	payments := []models.Payment{}
	if len(leaseIDs) > 0 {
		if err := paymentPreloads(db).
			Where("lease_id IN ?", leaseIDs).
			Order("covered_month, payment_date, id").
			Find(&payments).Error; err != nil {
			return nil, nil, fmt.Errorf("failed to list payments: %w", err)
		}
	}
	return tenant, payments, nil
}

// MonthPayments lists every payment of the agency covering the month.
func (s *PaymentService) MonthPayments(ctx context.Context, actor *Actor, month models.Month) ([]models.Payment, error) {
	if err := requireAgency(actor); err != nil {
		return nil, err
	}
	payments := []models.Payment{}
	err := paymentPreloads(s.DB.WithContext(ctx)).
		Joins("JOIN leases ON leases.id = payments.lease_id").
		Joins("JOIN units ON units.id = leases.unit_id").
		Joins("JOIN buildings ON buildings.id = units.building_id").
		Joins("JOIN owners ON owners.id = buildings.owner_id").
		Where("owners.agency_id = ? AND payments.covered_month = ?", actor.Agency.ID, month.String()).
		Order("buildings.address, units.designation, payments.id").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (s *PaymentService) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	if err := s.DB.WithContext(ctx).Order("code").Find(&methods).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	return methods, nil
}

// AddPaymentMethod enables a method known to the catalog.
func (s *PaymentService) AddPaymentMethod(ctx context.Context, actor *Actor, code string) (*models.PaymentMethod, error) {
	if err := requireAgency(actor); err != nil {
		return nil, err
	}
	entry := config.GetPaymentMethod(code)
	if entry == nil {
		return nil, NewValidationError("code", "select a valid payment method")
	}

	method := models.PaymentMethod{Code: strings.ToUpper(entry.Code), Label: entry.Label, RequiresProof: entry.RequiresProof}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.PaymentMethod{}).Where("code = ?", method.Code).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflict("payment method %s already exists", method.Code)
		}
		return tx.Create(&method).Error
	})
	if err != nil {
		return nil, err
	}
	return &method, nil
}

// DeletePaymentMethod refuses to remove a method still referenced.
func (s *PaymentService) DeletePaymentMethod(ctx context.Context, actor *Actor, id uint) error {
	if err := requireAgency(actor); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var method models.PaymentMethod
		if err := tx.First(&method, id).Error; err != nil {
			return lookupErr(err, "payment method")
		}
		var leases, payments int64
		if err := tx.Model(&models.Lease{}).Where("payment_method_id = ?", id).Count(&leases).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Payment{}).Where("payment_method_id = ?", id).Count(&payments).Error; err != nil {
			return err
		}
		if leases+payments > 0 {
			return conflict("payment method %s is used by %d leases and %d payments", method.Code, leases, payments)
		}
		return tx.Delete(&method).Error
	})
}

func (s *PaymentService) ListPropertyTypes(ctx context.Context) ([]models.PropertyType, error) {
	var types []models.PropertyType
	if err := s.DB.WithContext(ctx).Order("code").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("failed to list property types: %w", err)
	}
	return types, nil
}
