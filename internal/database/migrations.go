package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/FOCUS1407/gestion-immobiliere/config"
	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
)

// Models lists every table in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Agency{},
		&models.Owner{},
		&models.PropertyType{},
		&models.PaymentMethod{},
		&models.Building{},
		&models.Tenant{},
		&models.Unit{},
		&models.Lease{},
		&models.Payment{},
		&models.MoveReport{},
		&models.Notification{},
	}
}

// RunMigrations creates or updates the schema and seeds reference data.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return SeedCatalog(db)
}

// SeedCatalog inserts missing property types and payment methods. Existing
// rows are left untouched so labels edited in place survive restarts.
func SeedCatalog(db *gorm.DB) error {
	for _, e := range config.GetPropertyTypes() {
		pt := models.PropertyType{Code: strings.ToUpper(e.Code), Label: e.Label}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&pt).Error; err != nil {
			return fmt.Errorf("failed to seed property type %s: %w", e.Code, err)
		}
	}
	for _, e := range config.GetPaymentMethods() {
		pm := models.PaymentMethod{Code: strings.ToUpper(e.Code), Label: e.Label, RequiresProof: e.RequiresProof}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&pm).Error; err != nil {
			return fmt.Errorf("failed to seed payment method %s: %w", e.Code, err)
		}
	}
	return nil
}
