package models

import "time"

const (
	PaymentMethodMobile   = "MOB"
	PaymentMethodCash     = "ESP"
	PaymentMethodTransfer = "VIR"
	PaymentMethodDeposit  = "DEP"
)

type PaymentMethod struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Code          string `gorm:"size:3;uniqueIndex;not null" json:"code"`
	Label         string `gorm:"size:64;not null" json:"label"`
	RequiresProof bool   `gorm:"not null;default:false" json:"requires_proof"`
}

// Payment records rent received for one covered month of a lease.
type Payment struct {
	BaseModel
	LeaseID         uint           `gorm:"not null;uniqueIndex:idx_payment_lease_month" json:"lease_id"`
	Lease           *Lease         `gorm:"constraint:OnDelete:CASCADE" json:"lease,omitempty"`
	Amount          float64        `gorm:"type:decimal(10,2);not null" json:"amount"`
	PaymentDate     time.Time      `gorm:"not null" json:"payment_date"`
	CoveredMonth    string         `gorm:"size:7;not null;index;uniqueIndex:idx_payment_lease_month" json:"covered_month"`
	PaymentMethodID uint           `gorm:"not null" json:"payment_method_id"`
	PaymentMethod   *PaymentMethod `gorm:"constraint:OnDelete:RESTRICT" json:"payment_method,omitempty"`
	IsValid         bool           `gorm:"not null" json:"is_valid"`
	ProofPath       string         `gorm:"size:255" json:"proof_path,omitempty"`
}

type MoveReportKind string

const (
	MoveIn  MoveReportKind = "move_in"
	MoveOut MoveReportKind = "move_out"
)

func (k MoveReportKind) Valid() bool {
	return k == MoveIn || k == MoveOut
}

type MoveReport struct {
	BaseModel
	LeaseID      uint           `gorm:"index;not null" json:"lease_id"`
	Lease        *Lease         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Kind         MoveReportKind `gorm:"size:16;not null" json:"kind"`
	Date         time.Time      `gorm:"not null" json:"date"`
	Description  string         `gorm:"type:text" json:"description"`
	DocumentPath string         `gorm:"size:255" json:"document_path,omitempty"`
}
