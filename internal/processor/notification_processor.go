package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/FOCUS1407/gestion-immobiliere/config"
	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
	"github.com/FOCUS1407/gestion-immobiliere/internal/queue"
)

// NotificationProcessor persists notification batches and hands the newly
// created ones to the queue subscribers.
type NotificationProcessor struct {
	db     *gorm.DB
	logger *logrus.Logger
	config *config.Config
	queue  *queue.NotificationQueue
}

func NewNotificationProcessor(db *gorm.DB, queue *queue.NotificationQueue, config *config.Config, logger *logrus.Logger) *NotificationProcessor {
	return &NotificationProcessor{
		db:     db,
		queue:  queue,
		config: config,
		logger: logger,
	}
}

// Store writes the candidates in batches of NOTIFY_BATCH_SIZE. A candidate
// is dropped when its agency already has an unread notification with the
// same message.
func (p *NotificationProcessor) Store(ctx context.Context, candidates []models.Notification) ([]models.Notification, error) {
	size := p.config.Notifications.BatchSize
	if size < 1 {
		size = len(candidates)
	}

	var created []models.Notification
	for start := 0; start < len(candidates); start += size {
		end := start + size
		if end > len(candidates) {
			end = len(candidates)
		}

		batch, err := p.processBatch(ctx, candidates[start:end])
		if err != nil {
			return created, err
		}
		created = append(created, batch...)
		p.publish(batch)
	}
	return created, nil
}

func (p *NotificationProcessor) publish(batch []models.Notification) {
	if p.queue == nil || len(batch) == 0 {
		return
	}
	if err := p.queue.Push(batch); err != nil {
		p.logger.WithError(err).WithField("batch_size", len(batch)).Warn("Notifications were stored but not dispatched")
	}
}

// processBatch handles a single batch with transaction and retry logic.
func (p *NotificationProcessor) processBatch(ctx context.Context, batch []models.Notification) ([]models.Notification, error) {
	maxRetries := p.config.Notifications.MaxRetries
	delay := time.Duration(p.config.Notifications.RetryDelay) * time.Second

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying notification batch, attempt %d of %d", attempt, maxRetries)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		var created []models.Notification
		err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var txErr error
			created, txErr = insertNew(tx, batch)
			return txErr
		})
		if err == nil {
			p.logger.WithFields(logrus.Fields{
				"batch_size": len(batch),
				"created":    len(created),
			}).Info("Processed notification batch")
			return created, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		p.logger.Errorf("Notification batch failed: %v", err)
	}

	return nil, fmt.Errorf("failed to process batch after %d attempts: %w", maxRetries+1, err)
}

type dedupKey struct {
	agencyID uint
	message  string
}

func insertNew(tx *gorm.DB, batch []models.Notification) ([]models.Notification, error) {
	seen := make(map[dedupKey]bool, len(batch))
	var created []models.Notification
	for _, n := range batch {
		key := dedupKey{n.AgencyID, n.Message}
		if seen[key] {
			continue
		}
		seen[key] = true

		var count int64
		if err := tx.Model(&models.Notification{}).
			Where("agency_id = ? AND message = ? AND is_read = ?", n.AgencyID, n.Message, false).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check existing notifications: %w", err)
		}
		if count > 0 {
			continue
		}

		n.ID = 0
		n.IsRead = false
		if err := tx.Create(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to create notification: %w", err)
		}
		created = append(created, n)
	}
	return created, nil
}
