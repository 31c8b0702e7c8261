package models

import "time"

// Notification is an in-app message addressed to an agency.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AgencyID  uint      `gorm:"index;not null" json:"agency_id"`
	Agency    *Agency   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Message   string    `gorm:"size:500;not null" json:"message"`
	Link      string    `gorm:"size:255" json:"link,omitempty"`
	IsRead    bool      `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

type UnreadNotifications struct {
	Count  int64          `json:"count"`
	Latest []Notification `json:"latest"`
}
