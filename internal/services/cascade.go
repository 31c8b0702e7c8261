package services

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
)

// Deletions run children first so they work with or without database level
// cascades. Each helper returns the stored files that became orphaned; the
// caller removes them once the transaction committed.

func deleteLeases(tx *gorm.DB, leaseIDs []uint) ([]string, error) {
	if len(leaseIDs) == 0 {
		return nil, nil
	}
	var files []string

	var proofs []string
	if err := tx.Model(&models.Payment{}).Where("lease_id IN ? AND proof_path <> ''", leaseIDs).Pluck("proof_path", &proofs).Error; err != nil {
		return nil, err
	}
	files = append(files, proofs...)
	if err := tx.Where("lease_id IN ?", leaseIDs).Delete(&models.Payment{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete payments: %w", err)
	}

	var docs []string
	if err := tx.Model(&models.MoveReport{}).Where("lease_id IN ? AND document_path <> ''", leaseIDs).Pluck("document_path", &docs).Error; err != nil {
		return nil, err
	}
	files = append(files, docs...)
	if err := tx.Where("lease_id IN ?", leaseIDs).Delete(&models.MoveReport{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete move reports: %w", err)
	}

	if err := tx.Where("id IN ?", leaseIDs).Delete(&models.Lease{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete leases: %w", err)
	}
	return files, nil
}

func deleteUnits(tx *gorm.DB, unitIDs []uint) ([]string, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	var leaseIDs []uint
	if err := tx.Model(&models.Lease{}).Where("unit_id IN ?", unitIDs).Pluck("id", &leaseIDs).Error; err != nil {
		return nil, err
	}
	files, err := deleteLeases(tx, leaseIDs)
	if err != nil {
		return nil, err
	}
	if err := tx.Where("id IN ?", unitIDs).Delete(&models.Unit{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete units: %w", err)
	}
	return files, nil
}

func deleteBuildings(tx *gorm.DB, buildingIDs []uint) ([]string, error) {
	if len(buildingIDs) == 0 {
		return nil, nil
	}
	var unitIDs []uint
	if err := tx.Model(&models.Unit{}).Where("building_id IN ?", buildingIDs).Pluck("id", &unitIDs).Error; err != nil {
		return nil, err
	}
	files, err := deleteUnits(tx, unitIDs)
	if err != nil {
		return nil, err
	}
	if err := tx.Where("id IN ?", buildingIDs).Delete(&models.Building{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete buildings: %w", err)
	}
	return files, nil
}

func removeFiles(store FileStore, logger *logrus.Logger, files []string) {
	if store == nil {
		return
	}
	for _, f := range files {
		if err := store.Remove(f); err != nil {
			logger.WithError(err).WithField("path", f).Warn("Failed to remove stored file")
		}
	}
}
