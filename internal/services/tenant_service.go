package services

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
)

type InterfaceTenantService interface {
	ListTenants(ctx context.Context, actor *Actor, search string, q models.PaginationQuery) ([]TenantSummary, models.PaginationResult, error)
	GetTenant(ctx context.Context, actor *Actor, id uint) (*TenantDetail, error)
	CreateTenant(ctx context.Context, actor *Actor, in TenantInput) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, actor *Actor, id uint, in TenantInput) (*models.Tenant, error)
	DeleteTenant(ctx context.Context, actor *Actor, id uint) error
}

type TenantInput struct {
	LastName    string  `json:"last_name" binding:"required"`
	FirstName   string  `json:"first_name" binding:"required"`
	Phone       string  `json:"phone" binding:"required"`
	CompanyName string  `json:"company_name"`
	Email       string  `json:"email"`
	Deposit     float64 `json:"deposit"`
}

type TenantSummary struct {
	models.Tenant
	CurrentUnit *models.Unit `json:"current_unit"`
}

type TenantDetail struct {
	models.Tenant
	CurrentUnit *models.Unit   `json:"current_unit"`
	Leases      []models.Lease `json:"leases"`
}

type TenantService struct {
	DB      *gorm.DB
	Files   FileStore
	Reports *ReportCache
	Logger  *logrus.Logger
}

func NewTenantService(db *gorm.DB, files FileStore, reports *ReportCache, logger *logrus.Logger) InterfaceTenantService {
	return &TenantService{DB: db, Files: files, Reports: reports, Logger: logger}
}

// normalizePhone keeps digits only.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (in TenantInput) validate() (models.Tenant, error) {
	verr := &ValidationError{}
	t := models.Tenant{
		LastName:    strings.TrimSpace(in.LastName),
		FirstName:   strings.TrimSpace(in.FirstName),
		Phone:       normalizePhone(in.Phone),
		CompanyName: strings.TrimSpace(in.CompanyName),
		Email:       normalizeEmail(in.Email),
		Deposit:     models.RoundMoney(in.Deposit),
	}
	if t.LastName == "" {
		verr.Add("last_name", "this field is required")
	}
	if t.FirstName == "" {
		verr.Add("first_name", "this field is required")
	}
	if t.Phone == "" {
		verr.Add("phone", "the phone number must contain digits")
	} else if len(t.Phone) > 20 {
		verr.Add("phone", "the phone number is too long")
	}
	if t.Email != "" && !emailPattern.MatchString(t.Email) {
		verr.Add("email", "enter a valid email address")
	}
	if in.Deposit < 0 {
		verr.Add("deposit", "deposit cannot be negative")
	}
	return t, verr.Err()
}

func loadTenant(db *gorm.DB, actor *Actor, id uint) (*models.Tenant, error) {
	if err := requireAgency(actor); err != nil {
		return nil, err
	}
	var tenant models.Tenant
	if err := db.First(&tenant, id).Error; err != nil {
		return nil, lookupErr(err, "tenant")
	}
	if tenant.AgencyID != actor.Agency.ID {
		return nil, ErrForbidden
	}
	return &tenant, nil
}

func (s *TenantService) ListTenants(ctx context.Context, actor *Actor, search string, q models.PaginationQuery) ([]TenantSummary, models.PaginationResult, error) {
	if err := requireAgency(actor); err != nil {
		return nil, models.PaginationResult{}, err
	}
	db := s.DB.WithContext(ctx)

	base := db.Model(&models.Tenant{}).Where("agency_id = ?", actor.Agency.ID)
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		base = base.Where("LOWER(last_name) LIKE ? OR LOWER(first_name) LIKE ? OR phone LIKE ? OR LOWER(company_name) LIKE ?",
			like, like, "%"+search+"%", like)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, models.PaginationResult{}, fmt.Errorf("failed to count tenants: %w", err)
	}
	q = q.Normalize(total)

	var tenants []models.Tenant
	if err := base.Order("last_name, first_name, id").Limit(q.PageSize).Offset(q.Offset()).Find(&tenants).Error; err != nil {
		return nil, models.PaginationResult{}, fmt.Errorf("failed to list tenants: %w", err)
	}

	units, err := currentUnits(db, tenants)
	if err != nil {
		return nil, models.PaginationResult{}, err
	}
	out := make([]TenantSummary, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, TenantSummary{Tenant: t, CurrentUnit: units[t.ID]})
	}
	return out, q.Result(total), nil
}

func currentUnits(db *gorm.DB, tenants []models.Tenant) (map[uint]*models.Unit, error) {
	out := make(map[uint]*models.Unit)
	if len(tenants) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(tenants))
	for _, t := range tenants {
		ids = append(ids, t.ID)
	}
	var units []models.Unit
	if err := db.Preload("Building").Where("tenant_id IN ?", ids).Find(&units).Error; err != nil {
		return nil, fmt.Errorf("failed to load occupied units: %w", err)
	}
	for i := range units {
		out[*units[i].TenantID] = &units[i]
	}
	return out, nil
}

func (s *TenantService) GetTenant(ctx context.Context, actor *Actor, id uint) (*TenantDetail, error) {
	db := s.DB.WithContext(ctx)
	tenant, err := loadTenant(db, actor, id)
	if err != nil {
		return nil, err
	}

	detail := &TenantDetail{Tenant: *tenant}
	units, err := currentUnits(db, []models.Tenant{*tenant})
	if err != nil {
		return nil, err
	}
	detail.CurrentUnit = units[tenant.ID]

	if err := db.Preload("Unit.Building").Preload("PaymentMethod").
		Where("tenant_id = ?", tenant.ID).
		Order("start_date DESC").
		Find(&detail.Leases).Error; err != nil {
		return nil, fmt.Errorf("failed to load leases: %w", err)
	}
	return detail, nil
}

func (s *TenantService) CreateTenant(ctx context.Context, actor *Actor, in TenantInput) (*models.Tenant, error) {
	if err := requireAgency(actor); err != nil {
		return nil, err
	}
	tenant, err := in.validate()
	if err != nil {
		return nil, err
	}
	tenant.AgencyID = actor.Agency.ID
	if err := s.DB.WithContext(ctx).Create(&tenant).Error; err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return &tenant, nil
}

func (s *TenantService) UpdateTenant(ctx context.Context, actor *Actor, id uint, in TenantInput) (*models.Tenant, error) {
	db := s.DB.WithContext(ctx)
	tenant, err := loadTenant(db, actor, id)
	if err != nil {
		return nil, err
	}
	updated, err := in.validate()
	if err != nil {
		return nil, err
	}
	updated.ID = tenant.ID
	updated.AgencyID = tenant.AgencyID
	updated.CreatedAt = tenant.CreatedAt

	if err := db.Model(&updated).
		Select("last_name", "first_name", "phone", "company_name", "email", "deposit").
		Updates(&updated).Error; err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	return &updated, nil
}

// DeleteTenant removes the tenant with its leases and frees the unit it
// occupies.
func (s *TenantService) DeleteTenant(ctx context.Context, actor *Actor, id uint) error {
	var files []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant, err := loadTenant(tx, actor, id)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Unit{}).Where("tenant_id = ?", tenant.ID).Update("tenant_id", nil).Error; err != nil {
			return fmt.Errorf("failed to free units: %w", err)
		}
		var leaseIDs []uint
		if err := tx.Model(&models.Lease{}).Where("tenant_id = ?", tenant.ID).Pluck("id", &leaseIDs).Error; err != nil {
			return err
		}
		if files, err = deleteLeases(tx, leaseIDs); err != nil {
			return err
		}
		return tx.Delete(&models.Tenant{}, tenant.ID).Error
	})
	if err != nil {
		return err
	}
	removeFiles(s.Files, s.Logger, files)
	s.Reports.Invalidate(ctx, actor.AgencyID())
	return nil
}
