package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
	"github.com/FOCUS1407/gestion-immobiliere/internal/storage"
)

type InterfaceMoveReportService interface {
	CreateReport(ctx context.Context, actor *Actor, leaseID uint, in MoveReportInput, doc *storage.Upload) (*models.MoveReport, error)
	ListReports(ctx context.Context, actor *Actor, leaseID uint) ([]models.MoveReport, error)
	UpdateReport(ctx context.Context, actor *Actor, id uint, in MoveReportInput, doc *storage.Upload) (*models.MoveReport, error)
	DeleteReport(ctx context.Context, actor *Actor, id uint) error
}

type MoveReportInput struct {
	Kind        string `form:"kind" json:"kind" binding:"required"`
	Date        string `form:"date" json:"date" binding:"required"`
	Description string `form:"description" json:"description"`
}

type MoveReportService struct {
	DB     *gorm.DB
	Files  FileStore
	Logger *logrus.Logger
}

func NewMoveReportService(db *gorm.DB, files FileStore, logger *logrus.Logger) InterfaceMoveReportService {
	return &MoveReportService{DB: db, Files: files, Logger: logger}
}

func (in MoveReportInput) validate() (models.MoveReport, error) {
	verr := &ValidationError{}
	r := models.MoveReport{
		Kind:        models.MoveReportKind(strings.ToLower(strings.TrimSpace(in.Kind))),
		Description: strings.TrimSpace(in.Description),
	}
	if !r.Kind.Valid() {
		verr.Add("kind", "kind must be move_in or move_out")
	}
	d, err := models.ParseDate(in.Date)
	if err != nil {
		verr.Add("date", err.Error())
	}
	r.Date = models.DateOnly(d)
	return r, verr.Err()
}

func loadManagedLease(db *gorm.DB, actor *Actor, id uint) (*models.Lease, error) {
	if err := requireAgency(actor); err != nil {
		return nil, err
	}
	var lease models.Lease
	if err := db.Preload("Unit.Building.Owner").First(&lease, id).Error; err != nil {
		return nil, lookupErr(err, "lease")
	}
	if lease.Unit == nil || lease.Unit.Building == nil || lease.Unit.Building.Owner == nil ||
		!actor.canManageOwner(lease.Unit.Building.Owner) {
		return nil, ErrForbidden
	}
	return &lease, nil
}

func loadManagedReport(db *gorm.DB, actor *Actor, id uint) (*models.MoveReport, error) {
	var report models.MoveReport
	if err := db.First(&report, id).Error; err != nil {
		return nil, lookupErr(err, "move report")
	}
	if _, err := loadManagedLease(db, actor, report.LeaseID); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *MoveReportService) CreateReport(ctx context.Context, actor *Actor, leaseID uint, in MoveReportInput, doc *storage.Upload) (*models.MoveReport, error) {
	db := s.DB.WithContext(ctx)
	lease, err := loadManagedLease(db, actor, leaseID)
	if err != nil {
		return nil, err
	}
	report, err := in.validate()
	if err != nil {
		return nil, err
	}
	report.LeaseID = lease.ID

	if doc != nil {
		if report.DocumentPath, err = s.Files.Save(storage.KindDocument, doc); err != nil {
			return nil, uploadErr("document", err)
		}
	}
	if err := db.Create(&report).Error; err != nil {
		removeFiles(s.Files, s.Logger, []string{report.DocumentPath})
		return nil, fmt.Errorf("failed to create move report: %w", err)
	}
	return &report, nil
}

func (s *MoveReportService) ListReports(ctx context.Context, actor *Actor, leaseID uint) ([]models.MoveReport, error) {
	db := s.DB.WithContext(ctx)
	lease, err := loadManagedLease(db, actor, leaseID)
	if err != nil {
		return nil, err
	}
	reports := []models.MoveReport{}
	if err := db.Where("lease_id = ?", lease.ID).Order("date, id").Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("failed to list move reports: %w", err)
	}
	return reports, nil
}

func (s *MoveReportService) UpdateReport(ctx context.Context, actor *Actor, id uint, in MoveReportInput, doc *storage.Upload) (*models.MoveReport, error) {
	db := s.DB.WithContext(ctx)
	existing, err := loadManagedReport(db, actor, id)
	if err != nil {
		return nil, err
	}
	updated, err := in.validate()
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.LeaseID = existing.LeaseID
	updated.CreatedAt = existing.CreatedAt
	updated.DocumentPath = existing.DocumentPath

	if doc != nil {
		if updated.DocumentPath, err = s.Files.Save(storage.KindDocument, doc); err != nil {
			return nil, uploadErr("document", err)
		}
	}
	if err := db.Model(&updated).Select("kind", "date", "description", "document_path").Updates(&updated).Error; err != nil {
		if doc != nil {
			removeFiles(s.Files, s.Logger, []string{updated.DocumentPath})
		}
		return nil, fmt.Errorf("failed to update move report: %w", err)
	}
	if doc != nil && existing.DocumentPath != "" {
		removeFiles(s.Files, s.Logger, []string{existing.DocumentPath})
	}
	return &updated, nil
}

func (s *MoveReportService) DeleteReport(ctx context.Context, actor *Actor, id uint) error {
	db := s.DB.WithContext(ctx)
	report, err := loadManagedReport(db, actor, id)
	if err != nil {
		return err
	}
	if err := db.Delete(&models.MoveReport{}, report.ID).Error; err != nil {
		return fmt.Errorf("failed to delete move report: %w", err)
	}
	removeFiles(s.Files, s.Logger, []string{report.DocumentPath})
	return nil
}
