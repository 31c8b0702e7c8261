package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	ResetCatalog()

	types := GetPropertyTypes()
	require.Len(t, types, 2)
	assert.Equal(t, "RES", types[0].Code)

	methods := GetPaymentMethods()
	require.Len(t, methods, 4)

	cash := GetPaymentMethod("esp")
	require.NotNil(t, cash)
	assert.False(t, cash.RequiresProof)

	transfer := GetPaymentMethod("VIR")
	require.NotNil(t, transfer)
	assert.True(t, transfer.RequiresProof)

	assert.Nil(t, GetPaymentMethod("BTC"))
}

func TestLoadCatalog(t *testing.T) {
	defer ResetCatalog()

	tests := []struct {
		name        string
		content     string
		expectError bool
		methods     int
	}{
		{
			name:    "Valid override",
			content: `{"property_types":[{"code":"RES","label":"Logement"}],"payment_methods":[{"code":"CHQ","label":"Cheque","requires_proof":true}]}`,
			methods: 1,
		},
		{
			name:        "Duplicate code",
			content:     `{"payment_methods":[{"code":"MOB","label":"a"},{"code":"mob","label":"b"}]}`,
			expectError: true,
		},
		{
			name:        "Code too long",
			content:     `{"payment_methods":[{"code":"CHEQUE","label":"Cheque"}]}`,
			expectError: true,
		},
		{
			name:        "Malformed JSON",
			content:     `{"payment_methods":`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetCatalog()
			path := filepath.Join(t.TempDir(), "catalog.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			err := LoadCatalog(path)
			if tt.expectError {
				assert.Error(t, err)
				assert.Len(t, GetPaymentMethods(), 4, "defaults must survive a failed load")
				return
			}
			require.NoError(t, err)
			assert.Len(t, GetPaymentMethods(), tt.methods)
		})
	}
}

func TestLoadCatalogEmptyPathKeepsDefaults(t *testing.T) {
	ResetCatalog()
	require.NoError(t, LoadCatalog(""))
	assert.Len(t, GetPaymentMethods(), 4)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.LatePayments.GraceDay)
	assert.Equal(t, int64(5242880), cfg.Uploads.MaxBytes)
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "oracle"
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("LATE_PAYMENT_GRACE_DAY", "5")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.LatePayments.GraceDay)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)

	t.Setenv("LATE_PAYMENT_GRACE_DAY", "40")
	_, err = LoadConfig()
	assert.Error(t, err)
}
