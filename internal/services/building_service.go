package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/FOCUS1407/gestion-immobiliere/internal/geometry"
	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
)

// Geocoder resolves a postal address to latitude and longitude.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (float64, float64, error)
}

type InterfaceBuildingService interface {
	CreateBuilding(ctx context.Context, actor *Actor, ownerID uint, in BuildingInput) (*models.Building, error)
	ListBuildings(ctx context.Context, actor *Actor, ownerID uint) ([]models.BuildingStats, error)
	GetBuilding(ctx context.Context, actor *Actor, id uint) (*models.Building, error)
	UpdateBuilding(ctx context.Context, actor *Actor, id uint, in BuildingInput) (*models.Building, error)
	DeleteBuilding(ctx context.Context, actor *Actor, id uint) error
	GeocodeBuilding(ctx context.Context, actor *Actor, id uint) (*models.Building, error)
	BuildingMap(ctx context.Context, actor *Actor) (*geojson.FeatureCollection, error)

	CreateUnit(ctx context.Context, actor *Actor, buildingID uint, in UnitInput) (*models.Unit, error)
	GetUnit(ctx context.Context, actor *Actor, id uint) (*UnitDetail, error)
	UpdateUnit(ctx context.Context, actor *Actor, id uint, in UnitInput) (*models.Unit, error)
	DeleteUnit(ctx context.Context, actor *Actor, id uint) error
	AssignTenant(ctx context.Context, actor *Actor, unitID uint, in LeaseInput) (*models.Lease, error)
	ReleaseUnit(ctx context.Context, actor *Actor, unitID uint, endDate string) (*models.Lease, error)
}

type BuildingInput struct {
	Address        string   `json:"address" binding:"required"`
	PropertyTypeID uint     `json:"property_type_id" binding:"required"`
	Area           float64  `json:"area"`
	Rooms          int      `json:"rooms"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
}

type UnitInput struct {
	Designation   string  `json:"designation" binding:"required"`
	Area          float64 `json:"area"`
	Rent          float64 `json:"rent"`
	AvailableFrom string  `json:"available_from"`
}

type LeaseInput struct {
	TenantID        uint   `json:"tenant_id" binding:"required"`
	StartDate       string `json:"start_date" binding:"required"`
	PaymentMethodID uint   `json:"payment_method_id" binding:"required"`
}

type UnitDetail struct {
	models.Unit
	ActiveLease *models.Lease    `json:"active_lease"`
	Leases      []models.Lease   `json:"leases"`
	Payments    []models.Payment `json:"payments"`
}

type BuildingService struct {
	DB       *gorm.DB
	Files    FileStore
	Geocoder Geocoder
	Reports  *ReportCache
	Logger   *logrus.Logger
}

func NewBuildingService(db *gorm.DB, files FileStore, geocoder Geocoder, reports *ReportCache, logger *logrus.Logger) InterfaceBuildingService {
	return &BuildingService{DB: db, Files: files, Geocoder: geocoder, Reports: reports, Logger: logger}
}

func (in BuildingInput) validate(tx *gorm.DB) error {
	verr := &ValidationError{}
	if strings.TrimSpace(in.Address) == "" {
		verr.Add("address", "this field is required")
	}
	if in.Area < 0 {
		verr.Add("area", "area cannot be negative")
	}
	if in.Rooms < 0 {
		verr.Add("rooms", "number of rooms cannot be negative")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		verr.Add("latitude", "latitude and longitude must be given together")
	} else if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90 || *in.Longitude < -180 || *in.Longitude > 180) {
		verr.Add("latitude", "coordinates out of range")
	}

	var pt models.PropertyType
	if err := tx.First(&pt, in.PropertyTypeID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		verr.Add("property_type_id", "select a valid property type")
	}
	return verr.Err()
}

func (s *BuildingService) CreateBuilding(ctx context.Context, actor *Actor, ownerID uint, in BuildingInput) (*models.Building, error) {
	db := s.DB.WithContext(ctx)
	owner, err := loadManagedOwner(db, actor, ownerID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(db); err != nil {
		return nil, err
	}

	building := models.Building{
		OwnerID:        owner.ID,
		PropertyTypeID: in.PropertyTypeID,
		Address:        strings.TrimSpace(in.Address),
		Area:           in.Area,
		Rooms:          in.Rooms,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
	}
	if !building.HasLocation() {
		s.locate(ctx, &building)
	}
	if err := db.Create(&building).Error; err != nil {
		return nil, fmt.Errorf("failed to create building: %w", err)
	}

	s.Logger.WithFields(logrus.Fields{
		"building_id": building.ID,
		"owner_id":    owner.ID,
	}).Info("Created building")
	return &building, nil
}

// locate fills in coordinates when a geocoder is configured. Failures are
// logged only; a building without coordinates is still valid.
func (s *BuildingService) locate(ctx context.Context, b *models.Building) bool {
	if s.Geocoder == nil {
		return false
	}
	lat, lon, err := s.Geocoder.Geocode(ctx, b.Address)
	if err != nil {
		s.Logger.WithError(err).WithField("address", b.Address).Warn("Failed to geocode building")
		return false
	}
	b.Latitude = &lat
	b.Longitude = &lon
	return true
}

// buildingScope restricts a building query to what the actor may read.
func buildingScope(db *gorm.DB, actor *Actor) (*gorm.DB, error) {
	switch {
	case actor.IsAgency():
		return db.Joins("JOIN owners ON owners.id = buildings.owner_id").
			Where("owners.agency_id = ?", actor.Agency.ID), nil
	case actor.IsOwner():
		return db.Where("buildings.owner_id = ?", actor.Owner.ID), nil
	}
	return nil, ErrForbidden
}

func (s *BuildingService) ListBuildings(ctx context.Context, actor *Actor, ownerID uint) ([]models.BuildingStats, error) {
	q, err := buildingScope(s.DB.WithContext(ctx).Model(&models.Building{}), actor)
	if err != nil {
		return nil, err
	}
	if ownerID != 0 {
		q = q.Where("buildings.owner_id = ?", ownerID)
	}

	var buildings []models.Building
	if err := q.Preload("PropertyType").Preload("Owner.User").Order("buildings.address").Find(&buildings).Error; err != nil {
		return nil, fmt.Errorf("failed to list buildings: %w", err)
	}
	return s.withStats(ctx, buildings)
}

func (s *BuildingService) withStats(ctx context.Context, buildings []models.Building) ([]models.BuildingStats, error) {
	out := make([]models.BuildingStats, 0, len(buildings))
	if len(buildings) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(buildings))
	for _, b := range buildings {
		ids = append(ids, b.ID)
	}

	var rows []struct {
		BuildingID uint
		Units      int64
		Occupied   int64
	}
	err := s.DB.WithContext(ctx).Model(&models.Unit{}).
		Select("building_id, COUNT(*) AS units, SUM(CASE WHEN tenant_id IS NOT NULL THEN 1 ELSE 0 END) AS occupied").
		Where("building_id IN ?", ids).
		Group("building_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count units: %w", err)
	}
	stats := make(map[uint]int)
	for i, r := range rows {
		stats[r.BuildingID] = i
	}

	for _, b := range buildings {
		bs := models.BuildingStats{Building: b}
		if i, ok := stats[b.ID]; ok {
			bs.UnitCount = rows[i].Units
			bs.OccupiedUnits = rows[i].Occupied
		}
		out = append(out, bs)
	}
	return out, nil
}

// loadBuilding fetches a building with its owner and checks read access.
func loadBuilding(db *gorm.DB, actor *Actor, id uint) (*models.Building, error) {
	var building models.Building
	if err := db.Preload("Owner.User").Preload("PropertyType").First(&building, id).Error; err != nil {
		return nil, lookupErr(err, "building")
	}
	if building.Owner == nil || !actor.canReadOwner(building.Owner) {
		return nil, ErrForbidden
	}
	return &building, nil
}

func loadManagedBuilding(db *gorm.DB, actor *Actor, id uint) (*models.Building, error) {
	if err := requireAgency(actor); err != nil {
		return nil, err
	}
	building, err := loadBuilding(db, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.canManageOwner(building.Owner) {
		return nil, ErrForbidden
	}
	return building, nil
}

func (s *BuildingService) GetBuilding(ctx context.Context, actor *Actor, id uint) (*models.Building, error) {
	db := s.DB.WithContext(ctx)
	building, err := loadBuilding(db, actor, id)
	if err != nil {
		return nil, err
	}
	if err := db.Preload("Tenant").Where("building_id = ?", building.ID).Order("designation").Find(&building.Units).Error; err != nil {
		return nil, fmt.Errorf("failed to load units: %w", err)
	}
	return building, nil
}

func (s *BuildingService) UpdateBuilding(ctx context.Context, actor *Actor, id uint, in BuildingInput) (*models.Building, error) {
	db := s.DB.WithContext(ctx)
	building, err := loadManagedBuilding(db, actor, id)
	if err != nil {
		return nil, err
	}
	if err := in.validate(db); err != nil {
		return nil, err
	}

	addressChanged := strings.TrimSpace(in.Address) != building.Address
	building.Address = strings.TrimSpace(in.Address)
	building.PropertyTypeID = in.PropertyTypeID
	building.Area = in.Area
	building.Rooms = in.Rooms
	building.Latitude = in.Latitude
	building.Longitude = in.Longitude
	if addressChanged && in.Latitude == nil {
		s.locate(ctx, building)
	}

	err = db.Model(building).
		Select("address", "property_type_id", "area", "rooms", "latitude", "longitude").
		Updates(building).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update building: %w", err)
	}
	building.PropertyType = nil
	return building, nil
}

func (s *BuildingService) DeleteBuilding(ctx context.Context, actor *Actor, id uint) error {
	var files []string
	var agencyID uint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		building, err := loadManagedBuilding(tx, actor, id)
		if err != nil {
			return err
		}
		agencyID = building.Owner.AgencyID
		files, err = deleteBuildings(tx, []uint{building.ID})
		return err
	})
	if err != nil {
		return err
	}
	removeFiles(s.Files, s.Logger, files)
	s.Reports.Invalidate(ctx, agencyID)
	return nil
}

func (s *BuildingService) GeocodeBuilding(ctx context.Context, actor *Actor, id uint) (*models.Building, error) {
	db := s.DB.WithContext(ctx)
	building, err := loadManagedBuilding(db, actor, id)
	if err != nil {
		return nil, err
	}
	if s.Geocoder == nil {
		return nil, conflict("geocoding is not enabled")
	}
	lat, lon, err := s.Geocoder.Geocode(ctx, building.Address)
	if err != nil {
		return nil, NewValidationError("address", "the address could not be located")
	}
	building.Latitude = &lat
	building.Longitude = &lon
	if err := db.Model(building).Select("latitude", "longitude").Updates(building).Error; err != nil {
		return nil, fmt.Errorf("failed to store coordinates: %w", err)
	}
	return building, nil
}

func (s *BuildingService) BuildingMap(ctx context.Context, actor *Actor) (*geojson.FeatureCollection, error) {
	buildings, err := s.ListBuildings(ctx, actor, 0)
	if err != nil {
		return nil, err
	}
	points := make([]geometry.BuildingPoint, 0, len(buildings))
	for _, b := range buildings {
		if !b.HasLocation() {
			continue
		}
		p := geometry.BuildingPoint{
			ID:            b.ID,
			OwnerID:       b.OwnerID,
			Address:       b.Address,
			Latitude:      *b.Latitude,
			Longitude:     *b.Longitude,
			UnitCount:     b.UnitCount,
			OccupiedUnits: b.OccupiedUnits,
		}
		if b.Owner != nil {
			p.OwnerName = b.Owner.User.FullName()
		}
		points = append(points, p)
	}
	return geometry.BuildingsFeatureCollection(points), nil
}

func (in UnitInput) validate() (*models.Unit, error) {
	verr := &ValidationError{}
	unit := &models.Unit{
		Designation: strings.TrimSpace(in.Designation),
		Area:        in.Area,
		Rent:        models.RoundMoney(in.Rent),
	}
	if unit.Designation == "" {
		verr.Add("designation", "this field is required")
	}
	if in.Rent < 0 {
		verr.Add("rent", "rent cannot be negative")
	}
	if in.Area < 0 {
		verr.Add("area", "area cannot be negative")
	}
	if in.AvailableFrom != "" {
		d, err := models.ParseDate(in.AvailableFrom)
		if err != nil {
			verr.Add("available_from", err.Error())
		} else {
			d = models.DateOnly(d)
			unit.AvailableFrom = &d
		}
	}
	return unit, verr.Err()
}

func (s *BuildingService) CreateUnit(ctx context.Context, actor *Actor, buildingID uint, in UnitInput) (*models.Unit, error) {
	db := s.DB.WithContext(ctx)
	building, err := loadManagedBuilding(db, actor, buildingID)
	if err != nil {
		return nil, err
	}
	unit, err := in.validate()
	if err != nil {
		return nil, err
	}
	unit.BuildingID = building.ID
	if err := db.Create(unit).Error; err != nil {
		return nil, fmt.Errorf("failed to create unit: %w", err)
	}
	return unit, nil
}

// loadUnit fetches a unit with its building and owner and checks read access.
func loadUnit(db *gorm.DB, actor *Actor, id uint) (*models.Unit, error) {
	var unit models.Unit
	if err := db.Preload("Building.Owner.User").Preload("Tenant").First(&unit, id).Error; err != nil {
		return nil, lookupErr(err, "unit")
	}
	if unit.Building == nil || unit.Building.Owner == nil || !actor.canReadOwner(unit.Building.Owner) {
		return nil, ErrForbidden
	}
	return &unit, nil
}

func loadManagedUnit(db *gorm.DB, actor *Actor, id uint) (*models.Unit, error) {
	if err := requireAgency(actor); err != nil {
		return nil, err
	}
	unit, err := loadUnit(db, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.canManageOwner(unit.Building.Owner) {
		return nil, ErrForbidden
	}
	return unit, nil
}

func activeLease(db *gorm.DB, unitID uint) (*models.Lease, error) {
	var lease models.Lease
	err := db.Where("unit_id = ? AND end_date IS NULL", unitID).Order("start_date DESC").First(&lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active lease: %w", err)
	}
	return &lease, nil
}

func (s *BuildingService) GetUnit(ctx context.Context, actor *Actor, id uint) (*UnitDetail, error) {
	db := s.DB.WithContext(ctx)
	unit, err := loadUnit(db, actor, id)
	if err != nil {
		return nil, err
	}

	detail := &UnitDetail{Unit: *unit}
	if err := db.Preload("Tenant").Preload("PaymentMethod").
		Where("unit_id = ?", unit.ID).Order("start_date DESC").
		Find(&detail.Leases).Error; err != nil {
		return nil, fmt.Errorf("failed to load leases: %w", err)
	}
	for i := range detail.Leases {
		if detail.Leases[i].Active() {
			detail.ActiveLease = &detail.Leases[i]
			break
		}
	}

	leaseIDs := make([]uint, 0, len(detail.Leases))
	for _, l := range detail.Leases {
		leaseIDs = append(leaseIDs, l.ID)
	}
	detail.Payments = []models.Payment{}
	if len(leaseIDs) > 0 {
		if err := db.Preload("PaymentMethod").
			Where("lease_id IN ?", leaseIDs).
			Order("covered_month DESC, payment_date DESC").
			Find(&detail.Payments).Error; err != nil {
			return nil, fmt.Errorf("failed to load payments: %w", err)
		}
	}
	return detail, nil
}

func (s *BuildingService) UpdateUnit(ctx context.Context, actor *Actor, id uint, in UnitInput) (*models.Unit, error) {
	db := s.DB.WithContext(ctx)
	unit, err := loadManagedUnit(db, actor, id)
	if err != nil {
		return nil, err
	}
	updated, err := in.validate()
	if err != nil {
		return nil, err
	}
	unit.Designation = updated.Designation
	unit.Area = updated.Area
	unit.Rent = updated.Rent
	unit.AvailableFrom = updated.AvailableFrom

	if err := db.Model(unit).
		Select("designation", "area", "rent", "available_from").
		Updates(unit).Error; err != nil {
		return nil, fmt.Errorf("failed to update unit: %w", err)
	}
	s.Reports.Invalidate(ctx, unit.Building.Owner.AgencyID)
	return unit, nil
}

func (s *BuildingService) DeleteUnit(ctx context.Context, actor *Actor, id uint) error {
	var files []string
	var agencyID uint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unit, err := loadManagedUnit(tx, actor, id)
		if err != nil {
			return err
		}
		agencyID = unit.Building.Owner.AgencyID
		files, err = deleteUnits(tx, []uint{unit.ID})
		return err
	})
	if err != nil {
		return err
	}
	removeFiles(s.Files, s.Logger, files)
	s.Reports.Invalidate(ctx, agencyID)
	return nil
}

// AssignTenant opens a lease for the unit. A unit holds at most one active
// lease and a tenant occupies at most one unit at a time.
func (s *BuildingService) AssignTenant(ctx context.Context, actor *Actor, unitID uint, in LeaseInput) (*models.Lease, error) {
	start, err := models.ParseDate(in.StartDate)
	if err != nil {
		return nil, NewValidationError("start_date", err.Error())
	}

	var lease models.Lease
	var agencyID uint
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unit, err := loadManagedUnit(tx, actor, unitID)
		if err != nil {
			return err
		}
		agencyID = unit.Building.Owner.AgencyID

		current, err := activeLease(tx, unit.ID)
		if err != nil {
			return err
		}
		if current != nil || unit.TenantID != nil {
			return conflict("unit %s is already occupied", unit.Designation)
		}

		var tenant models.Tenant
		if err := tx.First(&tenant, in.TenantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewValidationError("tenant_id", "select a valid tenant")
			}
			return err
		}
		if tenant.AgencyID != actor.Agency.ID {
			return NewValidationError("tenant_id", "select a valid tenant")
		}

		var occupied int64
		if err := tx.Model(&models.Lease{}).Where("tenant_id = ? AND end_date IS NULL", tenant.ID).Count(&occupied).Error; err != nil {
			return err
		}
		if occupied > 0 {
			return conflict("tenant %s already occupies another unit", tenant.FullName())
		}

		var method models.PaymentMethod
		if err := tx.First(&method, in.PaymentMethodID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewValidationError("payment_method_id", "select a valid payment method")
			}
			return err
		}

		lease = models.Lease{
			UnitID:          unit.ID,
			TenantID:        tenant.ID,
			StartDate:       models.DateOnly(start),
			PaymentMethodID: method.ID,
		}
		if err := tx.Create(&lease).Error; err != nil {
			return fmt.Errorf("failed to create lease: %w", err)
		}
		return tx.Model(&models.Unit{}).Where("id = ?", unit.ID).Update("tenant_id", tenant.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.Reports.Invalidate(ctx, agencyID)
	s.Logger.WithFields(logrus.Fields{
		"lease_id":  lease.ID,
		"unit_id":   unitID,
		"tenant_id": lease.TenantID,
	}).Info("Tenant assigned to unit")
	return &lease, nil
}

// ReleaseUnit ends the active lease at endDate (today when empty) and frees
// the unit.
func (s *BuildingService) ReleaseUnit(ctx context.Context, actor *Actor, unitID uint, endDate string) (*models.Lease, error) {
	end := models.DateOnly(time.Now())
	if endDate != "" {
		d, err := models.ParseDate(endDate)
		if err != nil {
			return nil, NewValidationError("end_date", err.Error())
		}
		end = models.DateOnly(d)
	}

	var lease *models.Lease
	var agencyID uint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unit, err := loadManagedUnit(tx, actor, unitID)
		if err != nil {
			return err
		}
		agencyID = unit.Building.Owner.AgencyID

		lease, err = activeLease(tx, unit.ID)
		if err != nil {
			return err
		}
		if lease == nil {
			return conflict("unit %s has no active lease", unit.Designation)
		}
		if end.Before(models.DateOnly(lease.StartDate)) {
			return NewValidationError("end_date", "the end date cannot be before the start date")
		}

		lease.EndDate = &end
		if err := tx.Model(lease).Update("end_date", end).Error; err != nil {
			return fmt.Errorf("failed to end lease: %w", err)
		}
		return tx.Model(&models.Unit{}).Where("id = ?", unit.ID).Update("tenant_id", nil).Error
	})
	if err != nil {
		return nil, err
	}

	s.Reports.Invalidate(ctx, agencyID)
	return lease, nil
}
