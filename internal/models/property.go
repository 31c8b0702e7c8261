package models

import "time"

const (
	PropertyTypeResidential = "RES"
	PropertyTypeCommercial  = "COM"
)

type PropertyType struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Code  string `gorm:"size:3;uniqueIndex;not null" json:"code"`
	Label string `gorm:"size:64;not null" json:"label"`
}

type Building struct {
	BaseModel
	OwnerID        uint          `gorm:"index;not null" json:"owner_id"`
	Owner          *Owner        `gorm:"constraint:OnDelete:CASCADE" json:"owner,omitempty"`
	PropertyTypeID uint          `gorm:"not null" json:"property_type_id"`
	PropertyType   *PropertyType `gorm:"constraint:OnDelete:RESTRICT" json:"property_type,omitempty"`
	Address        string        `gorm:"size:255;not null" json:"address"`
	Area           float64       `gorm:"type:decimal(10,2)" json:"area"`
	Rooms          int           `json:"rooms"`
	Latitude       *float64      `json:"latitude"`
	Longitude      *float64      `json:"longitude"`
	Units          []Unit        `json:"units,omitempty"`
}

func (b Building) HasLocation() bool {
	return b.Latitude != nil && b.Longitude != nil
}

// Unit is a rentable room, flat or shop inside a building.
type Unit struct {
	BaseModel
	BuildingID    uint       `gorm:"index;not null" json:"building_id"`
	Building      *Building  `gorm:"constraint:OnDelete:CASCADE" json:"building,omitempty"`
	Designation   string     `gorm:"size:100;not null" json:"designation"`
	Area          float64    `gorm:"type:decimal(10,2)" json:"area"`
	Rent          float64    `gorm:"type:decimal(10,2);not null" json:"rent"`
	TenantID      *uint      `gorm:"index" json:"tenant_id"`
	Tenant        *Tenant    `gorm:"constraint:OnDelete:SET NULL" json:"tenant,omitempty"`
	AvailableFrom *time.Time `json:"available_from,omitempty"`
}

func (u Unit) Occupied() bool {
	return u.TenantID != nil
}

type BuildingStats struct {
	Building
	UnitCount     int64 `json:"unit_count"`
	OccupiedUnits int64 `json:"occupied_units"`
}
