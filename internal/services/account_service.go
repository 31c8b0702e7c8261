package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/FOCUS1407/gestion-immobiliere/internal/auth"
	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
	"github.com/FOCUS1407/gestion-immobiliere/internal/storage"
)

// FileStore persists uploaded files and returns their relative paths.
type FileStore interface {
	Save(kind storage.Kind, up *storage.Upload) (string, error)
	SavePhoto(up *storage.Upload) (string, error)
	Remove(path string) error
}

type InterfaceAccountService interface {
	RegisterAgency(ctx context.Context, in RegisterAgencyInput) (*models.User, error)
	Login(ctx context.Context, identifier, password string) (*LoginResult, error)
	ResolveActor(ctx context.Context, userID uint) (*Actor, error)
	ChangePassword(ctx context.Context, actor *Actor, oldPassword, newPassword string) (*LoginResult, error)
	UpdateProfile(ctx context.Context, actor *Actor, in ProfileInput) (*models.User, error)
	UpdateAgencyProfile(ctx context.Context, actor *Actor, in AgencyProfileInput) (*models.Agency, error)
	SetProfilePhoto(ctx context.Context, actor *Actor, photo *storage.Upload) (*models.User, error)
}

type RegisterAgencyInput struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" binding:"required"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	SIRET     string `json:"siret" binding:"required"`
}

type ProfileInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" binding:"required"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

type AgencyProfileInput struct {
	SIRET          string `json:"siret" binding:"required"`
	TelegramChatID string `json:"telegram_chat_id"`
}

type LoginResult struct {
	Token              string      `json:"token"`
	ExpiresAt          time.Time   `json:"expires_at"`
	User               models.User `json:"user"`
	MustChangePassword bool        `json:"must_change_password"`
}

var (
	siretPattern = regexp.MustCompile(`^\d{14}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

type AccountService struct {
	DB     *gorm.DB
	Tokens *auth.TokenManager
	Files  FileStore
	Logger *logrus.Logger
}

func NewAccountService(db *gorm.DB, tokens *auth.TokenManager, files FileStore, logger *logrus.Logger) InterfaceAccountService {
	return &AccountService{DB: db, Tokens: tokens, Files: files, Logger: logger}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// emailTaken checks case-insensitively, ignoring the user excludeID.
func emailTaken(tx *gorm.DB, email string, excludeID uint) (bool, error) {
	var count int64
	q := tx.Model(&models.User{}).Where("LOWER(email) = ?", normalizeEmail(email))
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

func (s *AccountService) RegisterAgency(ctx context.Context, in RegisterAgencyInput) (*models.User, error) {
	verr := &ValidationError{}
	in.Username = strings.TrimSpace(in.Username)
	in.SIRET = strings.ReplaceAll(strings.TrimSpace(in.SIRET), " ", "")
	if in.Username == "" {
		verr.Add("username", "this field is required")
	}
	if !emailPattern.MatchString(strings.TrimSpace(in.Email)) {
		verr.Add("email", "enter a valid email address")
	}
	if !siretPattern.MatchString(in.SIRET) {
		verr.Add("siret", "SIRET must contain exactly 14 digits")
	}
	if err := auth.ValidatePassword(in.Password, in.Username); err != nil {
		verr.Add("password", err.Error())
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username:     in.Username,
		Email:        normalizeEmail(in.Email),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		PasswordHash: hash,
		Role:         models.RoleAgency,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return NewValidationError("username", "a user with that username already exists")
		}
		taken, err := emailTaken(tx, user.Email, 0)
		if err != nil {
			return err
		}
		if taken {
			return NewValidationError("email", "a user with this email already exists")
		}
		if err := tx.Model(&models.Agency{}).Where("siret = ?", in.SIRET).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return NewValidationError("siret", "an agency with this SIRET already exists")
		}

		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		agency := models.Agency{UserID: user.ID, SIRET: in.SIRET}
		if err := tx.Create(&agency).Error; err != nil {
			return fmt.Errorf("failed to create agency: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("Registered agency")
	return &user, nil
}

// Login accepts either the username or the email address as identifier.
func (s *AccountService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user models.User
	err := s.DB.WithContext(ctx).
		Where("username = ? OR LOWER(email) = ?", identifier, normalizeEmail(identifier)).
		Order("id").
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		s.Logger.WithField("identifier", identifier).Warn("Failed login attempt")
		return nil, ErrInvalidCredentials
	}

	return s.issue(&user)
}

func (s *AccountService) issue(user *models.User) (*LoginResult, error) {
	token, expiresAt, err := s.Tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:              token,
		ExpiresAt:          expiresAt,
		User:               *user,
		MustChangePassword: user.MustChangePassword,
	}, nil
}

func (s *AccountService) ResolveActor(ctx context.Context, userID uint) (*Actor, error) {
	db := s.DB.WithContext(ctx)

	actor := &Actor{}
	if err := db.First(&actor.User, userID).Error; err != nil {
		return nil, lookupErr(err, "user")
	}

	switch actor.User.Role {
	case models.RoleAgency:
		var agency models.Agency
		if err := db.Where("user_id = ?", userID).First(&agency).Error; err != nil {
			return nil, lookupErr(err, "agency profile")
		}
		actor.Agency = &agency
	case models.RoleOwner:
		var owner models.Owner
		if err := db.Where("user_id = ?", userID).First(&owner).Error; err != nil {
			return nil, lookupErr(err, "owner profile")
		}
		actor.Owner = &owner
	}
	return actor, nil
}

func (s *AccountService) ChangePassword(ctx context.Context, actor *Actor, oldPassword, newPassword string) (*LoginResult, error) {
	if !auth.CheckPasswordHash(oldPassword, actor.User.PasswordHash) {
		return nil, NewValidationError("old_password", "your old password was entered incorrectly")
	}
	if oldPassword == newPassword {
		return nil, NewValidationError("new_password", "the new password must differ from the old one")
	}
	if err := auth.ValidatePassword(newPassword, actor.User.Username); err != nil {
		return nil, NewValidationError("new_password", err.Error())
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := actor.User
	err = s.DB.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"password_hash":        hash,
		"must_change_password": false,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}
	user.PasswordHash = hash
	user.MustChangePassword = false

	s.Logger.WithField("user_id", user.ID).Info("Password changed")
	return s.issue(&user)
}

func (s *AccountService) UpdateProfile(ctx context.Context, actor *Actor, in ProfileInput) (*models.User, error) {
	if !emailPattern.MatchString(strings.TrimSpace(in.Email)) {
		return nil, NewValidationError("email", "enter a valid email address")
	}

	user := actor.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := emailTaken(tx, in.Email, user.ID)
		if err != nil {
			return err
		}
		if taken {
			return NewValidationError("email", "a user with this email already exists")
		}
		user.FirstName = strings.TrimSpace(in.FirstName)
		user.LastName = strings.TrimSpace(in.LastName)
		user.Email = normalizeEmail(in.Email)
		user.Phone = strings.TrimSpace(in.Phone)
		user.Address = strings.TrimSpace(in.Address)
		return tx.Model(&user).Select("first_name", "last_name", "email", "phone", "address").Updates(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AccountService) UpdateAgencyProfile(ctx context.Context, actor *Actor, in AgencyProfileInput) (*models.Agency, error) {
	if err := requireAgency(actor); err != nil {
		return nil, err
	}
	siret := strings.ReplaceAll(strings.TrimSpace(in.SIRET), " ", "")
	if !siretPattern.MatchString(siret) {
		return nil, NewValidationError("siret", "SIRET must contain exactly 14 digits")
	}

	agency := *actor.Agency
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Agency{}).Where("siret = ? AND id <> ?", siret, agency.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return NewValidationError("siret", "an agency with this SIRET already exists")
		}
		agency.SIRET = siret
		agency.TelegramChatID = strings.TrimSpace(in.TelegramChatID)
		return tx.Model(&agency).Select("siret", "telegram_chat_id").Updates(&agency).Error
	})
	if err != nil {
		return nil, err
	}
	return &agency, nil
}

func (s *AccountService) SetProfilePhoto(ctx context.Context, actor *Actor, photo *storage.Upload) (*models.User, error) {
	path, err := s.Files.SavePhoto(photo)
	if err != nil {
		return nil, uploadErr("photo", err)
	}

	user := actor.User
	previous := user.ProfilePhoto
	if err := s.DB.WithContext(ctx).Model(&user).Update("profile_photo", path).Error; err != nil {
		_ = s.Files.Remove(path)
		return nil, fmt.Errorf("failed to update profile photo: %w", err)
	}
	user.ProfilePhoto = path

	if previous != "" {
		if err := s.Files.Remove(previous); err != nil {
			s.Logger.WithError(err).WithField("path", previous).Warn("Failed to remove previous profile photo")
		}
	}
	return &user, nil
}

// uploadErr reports storage rejections as a validation error on field.
func uploadErr(field string, err error) error {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return NewValidationError(field, "file exceeds the maximum upload size")
	case errors.Is(err, storage.ErrUnsupportedType):
		return NewValidationError(field, "unsupported file type, allowed: PDF, JPEG, PNG")
	case errors.Is(err, storage.ErrEmpty):
		return NewValidationError(field, "the submitted file is empty")
	}
	return err
}
