package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/FOCUS1407/gestion-immobiliere/internal/auth"
	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
)

type InterfaceOwnerService interface {
	CreateOwner(ctx context.Context, actor *Actor, in OwnerInput) (*OwnerCreated, error)
	ListOwners(ctx context.Context, actor *Actor, q models.PaginationQuery) ([]OwnerSummary, models.PaginationResult, error)
	GetOwner(ctx context.Context, actor *Actor, id uint) (*models.Owner, error)
	UpdateOwner(ctx context.Context, actor *Actor, id uint, in OwnerInput) (*models.Owner, error)
	DeleteOwner(ctx context.Context, actor *Actor, id uint) error
}

type OwnerInput struct {
	FirstName      string  `json:"first_name" binding:"required"`
	LastName       string  `json:"last_name" binding:"required"`
	Email          string  `json:"email" binding:"required"`
	Phone          string  `json:"phone"`
	Address        string  `json:"address"`
	CommissionRate float64 `json:"commission_rate"`
	ContractStart  string  `json:"contract_start" binding:"required"`
	ContractMonths int     `json:"contract_months" binding:"required"`
}

type OwnerCreated struct {
	Owner             models.Owner `json:"owner"`
	Username          string       `json:"username"`
	TemporaryPassword string       `json:"temporary_password"`
}

type OwnerSummary struct {
	models.Owner
	BuildingCount int64 `json:"building_count"`
}

type OwnerService struct {
	DB      *gorm.DB
	Files   FileStore
	Reports *ReportCache
	Logger  *logrus.Logger
}

func NewOwnerService(db *gorm.DB, files FileStore, reports *ReportCache, logger *logrus.Logger) InterfaceOwnerService {
	return &OwnerService{DB: db, Files: files, Reports: reports, Logger: logger}
}

func (in OwnerInput) validate() (*ValidationError, models.Owner) {
	verr := &ValidationError{}
	owner := models.Owner{
		CommissionRate: models.RoundMoney(in.CommissionRate),
		ContractMonths: in.ContractMonths,
	}

	if strings.TrimSpace(in.FirstName) == "" {
		verr.Add("first_name", "this field is required")
	}
	if strings.TrimSpace(in.LastName) == "" {
		verr.Add("last_name", "this field is required")
	}
	if !emailPattern.MatchString(strings.TrimSpace(in.Email)) {
		verr.Add("email", "enter a valid email address")
	}
	if in.CommissionRate < 0 || in.CommissionRate > 100 {
		verr.Add("commission_rate", "commission rate must be between 0 and 100")
	}
	if in.ContractMonths <= 0 {
		verr.Add("contract_months", "contract duration must be at least one month")
	}
	start, err := models.ParseDate(in.ContractStart)
	if err != nil {
		verr.Add("contract_start", err.Error())
	}
	owner.ContractStart = models.DateOnly(start)
	return verr, owner
}

// usernameBase builds the "first.last" login, lowercased, spaces removed.
func usernameBase(first, last string) string {
	base := strings.ToLower(strings.TrimSpace(first)) + "." + strings.ToLower(strings.TrimSpace(last))
	return strings.ReplaceAll(base, " ", "")
}

// uniqueUsername appends 1, 2, ... to base until no user holds it.
func uniqueUsername(tx *gorm.DB, base string) (string, error) {
	username := base
	for counter := 1; ; counter++ {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if count == 0 {
			return username, nil
		}
		username = fmt.Sprintf("%s%d", base, counter)
	}
}

func (s *OwnerService) CreateOwner(ctx context.Context, actor *Actor, in OwnerInput) (*OwnerCreated, error) {
	if err := requireAgency(actor); err != nil {
		return nil, err
	}
	verr, owner := in.validate()
	if err := verr.Err(); err != nil {
		return nil, err
	}

	password, err := auth.GeneratePassword(12)
	if err != nil {
		return nil, fmt.Errorf("failed to generate password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := emailTaken(tx, in.Email, 0)
		if err != nil {
			return err
		}
		if taken {
			return NewValidationError("email", "a user with this email already exists")
		}

		username, err := uniqueUsername(tx, usernameBase(in.FirstName, in.LastName))
		if err != nil {
			return err
		}

		owner.User = models.User{
			Username:           username,
			Email:              normalizeEmail(in.Email),
			FirstName:          strings.TrimSpace(in.FirstName),
			LastName:           strings.TrimSpace(in.LastName),
			Phone:              strings.TrimSpace(in.Phone),
			Address:            strings.TrimSpace(in.Address),
			PasswordHash:       hash,
			Role:               models.RoleOwner,
			MustChangePassword: true,
		}
		if err := tx.Create(&owner.User).Error; err != nil {
			return fmt.Errorf("failed to create owner user: %w", err)
		}
		owner.UserID = owner.User.ID
		owner.AgencyID = actor.Agency.ID
		if err := tx.Omit("User").Create(&owner).Error; err != nil {
			return fmt.Errorf("failed to create owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithFields(logrus.Fields{
		"agency_id": actor.Agency.ID,
		"owner_id":  owner.ID,
		"username":  owner.User.Username,
	}).Info("Created owner account")

	return &OwnerCreated{Owner: owner, Username: owner.User.Username, TemporaryPassword: password}, nil
}

func (s *OwnerService) ListOwners(ctx context.Context, actor *Actor, q models.PaginationQuery) ([]OwnerSummary, models.PaginationResult, error) {
	if err := requireAgency(actor); err != nil {
		return nil, models.PaginationResult{}, err
	}
	db := s.DB.WithContext(ctx)

	var total int64
	base := db.Model(&models.Owner{}).Where("agency_id = ?", actor.Agency.ID)
	if err := base.Count(&total).Error; err != nil {
		return nil, models.PaginationResult{}, fmt.Errorf("failed to count owners: %w", err)
	}
	q = q.Normalize(total)

	var owners []models.Owner
	err := db.Preload("User").
		Joins("JOIN users ON users.id = owners.user_id").
		Where("owners.agency_id = ?", actor.Agency.ID).
		Order("users.last_name, users.first_name, owners.id").
		Limit(q.PageSize).Offset(q.Offset()).
		Find(&owners).Error
	if err != nil {
		return nil, models.PaginationResult{}, fmt.Errorf("failed to list owners: %w", err)
	}

	counts, err := s.buildingCounts(db, owners)
	if err != nil {
		return nil, models.PaginationResult{}, err
	}

	out := make([]OwnerSummary, 0, len(owners))
	for _, o := range owners {
		out = append(out, OwnerSummary{Owner: o, BuildingCount: counts[o.ID]})
	}
	return out, q.Result(total), nil
}

func (s *OwnerService) buildingCounts(db *gorm.DB, owners []models.Owner) (map[uint]int64, error) {
	counts := make(map[uint]int64)
	if len(owners) == 0 {
		return counts, nil
	}
	ids := make([]uint, 0, len(owners))
	for _, o := range owners {
		ids = append(ids, o.ID)
	}

	var rows []struct {
		OwnerID uint
		Count   int64
	}
	err := db.Model(&models.Building{}).
		Select("owner_id, COUNT(*) AS count").
		Where("owner_id IN ?", ids).
		Group("owner_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count buildings: %w", err)
	}
	for _, r := range rows {
		counts[r.OwnerID] = r.Count
	}
	return counts, nil
}

// loadOwner fetches an owner and checks the actor may read it.
func loadOwner(db *gorm.DB, actor *Actor, id uint) (*models.Owner, error) {
	var owner models.Owner
	if err := db.Preload("User").First(&owner, id).Error; err != nil {
		return nil, lookupErr(err, "owner")
	}
	if !actor.canReadOwner(&owner) {
		return nil, ErrForbidden
	}
	return &owner, nil
}

// loadManagedOwner is loadOwner restricted to the managing agency.
func loadManagedOwner(db *gorm.DB, actor *Actor, id uint) (*models.Owner, error) {
	if err := requireAgency(actor); err != nil {
		return nil, err
	}
	owner, err := loadOwner(db, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.canManageOwner(owner) {
		return nil, ErrForbidden
	}
	return owner, nil
}

func (s *OwnerService) GetOwner(ctx context.Context, actor *Actor, id uint) (*models.Owner, error) {
	db := s.DB.WithContext(ctx)
	owner, err := loadManagedOwner(db, actor, id)
	if err != nil {
		return nil, err
	}
	err = db.Preload("PropertyType").Preload("Units").
		Where("owner_id = ?", owner.ID).Order("address").
		Find(&owner.Buildings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load buildings: %w", err)
	}
	return owner, nil
}

func (s *OwnerService) UpdateOwner(ctx context.Context, actor *Actor, id uint, in OwnerInput) (*models.Owner, error) {
	verr, contract := in.validate()
	if err := verr.Err(); err != nil {
		return nil, err
	}

	var owner *models.Owner
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		owner, err = loadManagedOwner(tx, actor, id)
		if err != nil {
			return err
		}
		taken, err := emailTaken(tx, in.Email, owner.UserID)
		if err != nil {
			return err
		}
		if taken {
			return NewValidationError("email", "a user with this email already exists")
		}

		owner.User.FirstName = strings.TrimSpace(in.FirstName)
		owner.User.LastName = strings.TrimSpace(in.LastName)
		owner.User.Email = normalizeEmail(in.Email)
		owner.User.Phone = strings.TrimSpace(in.Phone)
		owner.User.Address = strings.TrimSpace(in.Address)
		if err := tx.Model(&owner.User).
			Select("first_name", "last_name", "email", "phone", "address").
			Updates(&owner.User).Error; err != nil {
			return fmt.Errorf("failed to update owner user: %w", err)
		}

		owner.CommissionRate = contract.CommissionRate
		owner.ContractStart = contract.ContractStart
		owner.ContractMonths = contract.ContractMonths
		return tx.Model(owner).
			Select("commission_rate", "contract_start", "contract_months").
			Updates(owner).Error
	})
	if err != nil {
		return nil, err
	}

	s.Reports.Invalidate(ctx, owner.AgencyID)
	return owner, nil
}

// DeleteOwner removes the owner, its login and everything it owns.
func (s *OwnerService) DeleteOwner(ctx context.Context, actor *Actor, id uint) error {
	var files []string
	var agencyID uint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := loadManagedOwner(tx, actor, id)
		if err != nil {
			return err
		}
		agencyID = owner.AgencyID

		var buildingIDs []uint
		if err := tx.Model(&models.Building{}).Where("owner_id = ?", owner.ID).Pluck("id", &buildingIDs).Error; err != nil {
			return err
		}
		if files, err = deleteBuildings(tx, buildingIDs); err != nil {
			return err
		}
		if err := tx.Delete(&models.Owner{}, owner.ID).Error; err != nil {
			return fmt.Errorf("failed to delete owner: %w", err)
		}
		if owner.User.ProfilePhoto != "" {
			files = append(files, owner.User.ProfilePhoto)
		}
		if err := tx.Delete(&models.User{}, owner.UserID).Error; err != nil {
			return fmt.Errorf("failed to delete owner user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	removeFiles(s.Files, s.Logger, files)
	s.Reports.Invalidate(ctx, agencyID)
	s.Logger.WithField("owner_id", id).Info("Deleted owner")
	return nil
}
