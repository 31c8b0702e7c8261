package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CatalogEntry is a reference value seeded into the database on migration.
type CatalogEntry struct {
	Code          string `json:"code"`
	Label         string `json:"label"`
	RequiresProof bool   `json:"requires_proof,omitempty"`
}

type Catalog struct {
	PropertyTypes  []CatalogEntry `json:"property_types"`
	PaymentMethods []CatalogEntry `json:"payment_methods"`
}

var defaultCatalog = Catalog{
	PropertyTypes: []CatalogEntry{
		{Code: "RES", Label: "Residential"},
		{Code: "COM", Label: "Commercial"},
	},
	PaymentMethods: []CatalogEntry{
		{Code: "MOB", Label: "Mobile money", RequiresProof: true},
		{Code: "ESP", Label: "Cash"},
		{Code: "VIR", Label: "Bank transfer", RequiresProof: true},
		{Code: "DEP", Label: "Cash deposit", RequiresProof: true},
	},
}

var (
	catalog     = defaultCatalog
	catalogLock sync.RWMutex
)

// LoadCatalog replaces the built-in reference data with the content of a
// JSON file. An empty path keeps the defaults.
func LoadCatalog(path string) error {
	if path == "" {
		return nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("failed to read catalog file: %w", err)
	}

	var loaded Catalog
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := loaded.validate(); err != nil {
		return err
	}

	catalogLock.Lock()
	catalog = loaded
	catalogLock.Unlock()
	return nil
}

func (c Catalog) validate() error {
	for _, group := range [][]CatalogEntry{c.PropertyTypes, c.PaymentMethods} {
		seen := make(map[string]bool)
		for _, e := range group {
			code := strings.ToUpper(strings.TrimSpace(e.Code))
			if code == "" || len(code) > 3 {
				return fmt.Errorf("invalid catalog code %q", e.Code)
			}
			if seen[code] {
				return fmt.Errorf("duplicate catalog code %q", code)
			}
			seen[code] = true
		}
	}
	return nil
}

// ResetCatalog restores the built-in reference data.
func ResetCatalog() {
	catalogLock.Lock()
	catalog = defaultCatalog
	catalogLock.Unlock()
}

func GetPropertyTypes() []CatalogEntry {
	catalogLock.RLock()
	defer catalogLock.RUnlock()
	return append([]CatalogEntry(nil), catalog.PropertyTypes...)
}

func GetPaymentMethods() []CatalogEntry {
	catalogLock.RLock()
	defer catalogLock.RUnlock()
	return append([]CatalogEntry(nil), catalog.PaymentMethods...)
}

// GetPaymentMethod returns a payment method by code
func GetPaymentMethod(code string) *CatalogEntry {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, m := range GetPaymentMethods() {
		if strings.EqualFold(m.Code, code) {
			return &m
		}
	}
	return nil
}
