package models

import "time"

// FinancialSummary aggregates one month of rent for an agency or owner.
type FinancialSummary struct {
	Month      string  `json:"month"`
	Expected   float64 `json:"expected"`
	Paid       float64 `json:"paid"`
	Unpaid     float64 `json:"unpaid"`
	Commission float64 `json:"commission"`
}

type RentStatus string

const (
	RentPaid    RentStatus = "paid"
	RentPartial RentStatus = "partial"
	RentUnpaid  RentStatus = "unpaid"
)

func RentStatusFor(expected, paid float64) RentStatus {
	switch {
	case paid >= expected:
		return RentPaid
	case paid > 0:
		return RentPartial
	default:
		return RentUnpaid
	}
}

// RentRow is the position of one lease for a month.
type RentRow struct {
	LeaseID     uint       `json:"lease_id"`
	UnitID      uint       `json:"unit_id"`
	Unit        string     `json:"unit"`
	BuildingID  uint       `json:"building_id"`
	Building    string     `json:"building"`
	OwnerID     uint       `json:"owner_id"`
	Owner       string     `json:"owner"`
	TenantID    uint       `json:"tenant_id"`
	Tenant      string     `json:"tenant"`
	Expected    float64    `json:"expected"`
	Paid        float64    `json:"paid"`
	Balance     float64    `json:"balance"`
	Status      RentStatus `json:"status"`
	LastPayment *time.Time `json:"last_payment,omitempty"`
}

type OwnerReport struct {
	OwnerID        uint      `json:"owner_id"`
	Owner          string    `json:"owner"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	CommissionRate float64   `json:"commission_rate"`
	Rows           []RentRow `json:"rows"`
	Expected       float64   `json:"expected"`
	Paid           float64   `json:"paid"`
	Unpaid         float64   `json:"unpaid"`
	Commission     float64   `json:"commission"`
	NetToOwner     float64   `json:"net_to_owner"`
}

type FinancialReport struct {
	Month       string           `json:"month"`
	Owners      []OwnerReport    `json:"owners"`
	Totals      FinancialSummary `json:"totals"`
	NetToOwners float64          `json:"net_to_owners"`
}

type HistoryMonth struct {
	FinancialSummary
	NetToOwner float64 `json:"net_to_owner"`
}

// OwnerHistory is the month by month record of an owner since its first lease.
type OwnerHistory struct {
	OwnerID   uint           `json:"owner_id"`
	Owner     string         `json:"owner"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Months    []HistoryMonth `json:"months"`
}

type Dashboard struct {
	Role                Role             `json:"role"`
	Owners              int64            `json:"owners,omitempty"`
	Buildings           int64            `json:"buildings"`
	Units               int64            `json:"units"`
	OccupiedUnits       int64            `json:"occupied_units"`
	OccupancyRate       float64          `json:"occupancy_rate"`
	CurrentMonth        FinancialSummary `json:"current_month"`
	UnreadNotifications int64            `json:"unread_notifications,omitempty"`
}

// OccupancyRate is occupied over total as a percentage, zero without units.
func OccupancyRate(occupied, total int64) float64 {
	if total == 0 {
		return 0
	}
	return RoundMoney(float64(occupied) / float64(total) * 100)
}
