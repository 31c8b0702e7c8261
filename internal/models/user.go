package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAgency Role = "agency"
	RoleOwner  Role = "owner"
)

func (r Role) Valid() bool {
	return r == RoleAgency || r == RoleOwner
}

// User is an account able to log in. Agencies and owners both hold one.
type User struct {
	BaseModel
	Username           string `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email              string `gorm:"size:254;index" json:"email"`
	FirstName          string `gorm:"size:150" json:"first_name"`
	LastName           string `gorm:"size:150" json:"last_name"`
	Phone              string `gorm:"size:32" json:"phone"`
	Address            string `gorm:"size:255" json:"address"`
	PasswordHash       string `gorm:"not null" json:"-"`
	Role               Role   `gorm:"size:16;not null;index" json:"role"`
	ProfilePhoto       string `gorm:"size:255" json:"profile_photo,omitempty"`
	MustChangePassword bool   `gorm:"not null;default:false" json:"must_change_password"`
}

func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

type Agency struct {
	BaseModel
	UserID         uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	User           User   `gorm:"constraint:OnDelete:CASCADE" json:"user"`
	SIRET          string `gorm:"column:siret;size:14;uniqueIndex;not null" json:"siret"`
	TelegramChatID string `gorm:"size:64" json:"telegram_chat_id,omitempty"`
}

// Owner is a property owner under a management contract with one agency.
type Owner struct {
	BaseModel
	UserID         uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	User           User       `gorm:"constraint:OnDelete:CASCADE" json:"user"`
	AgencyID       uint       `gorm:"index;not null" json:"agency_id"`
	Agency         *Agency    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CommissionRate float64    `gorm:"type:decimal(5,2);not null;default:0" json:"commission_rate"`
	ContractStart  time.Time  `gorm:"not null" json:"contract_start"`
	ContractMonths int        `gorm:"not null;default:12" json:"contract_months"`
	Buildings      []Building `json:"buildings,omitempty"`
}

func (o Owner) ContractEnd() time.Time {
	return AddMonths(o.ContractStart, o.ContractMonths)
}

// Commission returns the agency's share of a collected amount.
func (o Owner) Commission(amount float64) float64 {
	return RoundMoney(amount * o.CommissionRate / 100)
}
