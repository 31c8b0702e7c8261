package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/FOCUS1407/gestion-immobiliere/config"
	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
)

type Service struct {
	logger   *logrus.Logger
	client   *http.Client
	enabled  bool
	botToken string
	apiURL   string
	db       *gorm.DB
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logrus.Logger) *Service {
	return &Service{
		logger:   logger,
		client:   &http.Client{Timeout: 10 * time.Second},
		enabled:  cfg.Telegram.Enabled,
		botToken: cfg.Telegram.BotToken,
		apiURL:   strings.TrimRight(cfg.Telegram.APIURL, "/"),
		db:       db,
	}
}

func (s *Service) Enabled() bool {
	return s.enabled
}

// SendMessage sends an HTML formatted message to a Telegram chat.
func (s *Service) SendMessage(ctx context.Context, chatID, message string) error {
	if !s.enabled {
		return nil
	}
	if s.botToken == "" {
		return errors.New("Telegram bot token is not configured")
	}
	if chatID == "" {
		return errors.New("Telegram chat ID is not configured")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.botToken)
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       message,
		"parse_mode": "HTML",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create Telegram request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.New("invalid bot token - please check your token from @BotFather")
		case http.StatusBadRequest:
			return fmt.Errorf("invalid chat ID or message format: %s", string(body))
		case http.StatusForbidden:
			return errors.New("bot was blocked by the user or chat")
		case http.StatusNotFound:
			return errors.New("bot not found - please check your token from @BotFather")
		default:
			return fmt.Errorf("Telegram API error (status %d): %s", resp.StatusCode, string(body))
		}
	}

	return nil
}

func FormatNotification(n models.Notification) string {
	msg := "<b>🔔 Rent reminder</b>\n\n" + html.EscapeString(n.Message)
	if n.Link != "" {
		msg += "\n\n🔗 " + html.EscapeString(n.Link)
	}
	return msg
}

// HandleBatch forwards freshly created notifications to the chat of the
// agency they belong to. Agencies without a chat id are skipped.
func (s *Service) HandleBatch(batch []models.Notification) error {
	if !s.enabled || len(batch) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(batch))
	for _, n := range batch {
		ids = append(ids, n.AgencyID)
	}
	var agencies []models.Agency
	if err := s.db.Where("id IN ? AND telegram_chat_id <> ''", ids).Find(&agencies).Error; err != nil {
		return fmt.Errorf("failed to load agency chats: %w", err)
	}
	chats := make(map[uint]string, len(agencies))
	for _, a := range agencies {
		chats[a.ID] = a.TelegramChatID
	}

	ctx := context.Background()
	var failed int
	for _, n := range batch {
		chatID, ok := chats[n.AgencyID]
		if !ok {
			continue
		}
		if err := s.SendMessage(ctx, chatID, FormatNotification(n)); err != nil {
			failed++
			s.logger.WithError(err).WithFields(logrus.Fields{
				"agency_id":       n.AgencyID,
				"notification_id": n.ID,
			}).Error("Failed to send Telegram notification")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d Telegram messages failed", failed, len(batch))
	}
	return nil
}
