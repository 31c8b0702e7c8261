package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
)

const unreadPreviewSize = 5

type InterfaceNotificationService interface {
	ListNotifications(ctx context.Context, actor *Actor, unreadOnly bool, q models.PaginationQuery) ([]models.Notification, models.PaginationResult, error)
	Unread(ctx context.Context, actor *Actor) (*models.UnreadNotifications, error)
	MarkRead(ctx context.Context, actor *Actor, id uint) (*models.Notification, error)
	MarkAllRead(ctx context.Context, actor *Actor) (int64, error)
}

type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) InterfaceNotificationService {
	return &NotificationService{DB: db}
}

func (s *NotificationService) ListNotifications(ctx context.Context, actor *Actor, unreadOnly bool, q models.PaginationQuery) ([]models.Notification, models.PaginationResult, error) {
	if err := requireAgency(actor); err != nil {
		return nil, models.PaginationResult{}, err
	}
	base := s.DB.WithContext(ctx).Model(&models.Notification{}).Where("agency_id = ?", actor.Agency.ID)
	if unreadOnly {
		base = base.Where("is_read = ?", false)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, models.PaginationResult{}, fmt.Errorf("failed to count notifications: %w", err)
	}
	q = q.Normalize(total)

	notifications := []models.Notification{}
	if err := base.Order("created_at DESC, id DESC").Limit(q.PageSize).Offset(q.Offset()).Find(&notifications).Error; err != nil {
		return nil, models.PaginationResult{}, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, q.Result(total), nil
}

// Unread returns the unread count and the latest unread notifications.
func (s *NotificationService) Unread(ctx context.Context, actor *Actor) (*models.UnreadNotifications, error) {
	if err := requireAgency(actor); err != nil {
		return nil, err
	}
	base := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("agency_id = ? AND is_read = ?", actor.Agency.ID, false).
		Session(&gorm.Session{})

	out := &models.UnreadNotifications{Latest: []models.Notification{}}
	if err := base.Count(&out.Count).Error; err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	if err := base.Order("created_at DESC, id DESC").Limit(unreadPreviewSize).Find(&out.Latest).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, actor *Actor, id uint) (*models.Notification, error) {
	if err := requireAgency(actor); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	var n models.Notification
	if err := db.First(&n, id).Error; err != nil {
		return nil, lookupErr(err, "notification")
	}
	if n.AgencyID != actor.Agency.ID {
		return nil, ErrForbidden
	}
	if !n.IsRead {
		if err := db.Model(&n).Update("is_read", true).Error; err != nil {
			return nil, fmt.Errorf("failed to mark notification read: %w", err)
		}
		n.IsRead = true
	}
	return &n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor *Actor) (int64, error) {
	if err := requireAgency(actor); err != nil {
		return 0, err
	}
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("agency_id = ? AND is_read = ?", actor.Agency.ID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}
