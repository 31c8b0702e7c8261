package models

import (
	"strings"
	"time"
)

type Tenant struct {
	BaseModel
	AgencyID    uint    `gorm:"index;not null" json:"agency_id"`
	Agency      *Agency `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	LastName    string  `gorm:"size:100;not null" json:"last_name"`
	FirstName   string  `gorm:"size:100;not null" json:"first_name"`
	Phone       string  `gorm:"size:20;not null" json:"phone"`
	CompanyName string  `gorm:"size:150" json:"company_name,omitempty"`
	Email       string  `gorm:"size:254" json:"email,omitempty"`
	Deposit     float64 `gorm:"type:decimal(10,2);not null;default:0" json:"deposit"`
}

func (t Tenant) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

// Lease binds a tenant to a unit for a date range. A lease without an end
// date is active.
type Lease struct {
	BaseModel
	UnitID          uint           `gorm:"index;not null" json:"unit_id"`
	Unit            *Unit          `gorm:"constraint:OnDelete:CASCADE" json:"unit,omitempty"`
	TenantID        uint           `gorm:"index;not null" json:"tenant_id"`
	Tenant          *Tenant        `gorm:"constraint:OnDelete:CASCADE" json:"tenant,omitempty"`
	StartDate       time.Time      `gorm:"not null" json:"start_date"`
	EndDate         *time.Time     `gorm:"index" json:"end_date"`
	PaymentMethodID uint           `gorm:"not null" json:"payment_method_id"`
	PaymentMethod   *PaymentMethod `gorm:"constraint:OnDelete:RESTRICT" json:"payment_method,omitempty"`
}

func (l Lease) Active() bool {
	return l.EndDate == nil
}

// Covers reports whether the lease overlaps any day of the month.
func (l Lease) Covers(m Month) bool {
	if DateOnly(l.StartDate).After(m.End()) {
		return false
	}
	return l.EndDate == nil || !DateOnly(*l.EndDate).Before(m.Start())
}
