package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FOCUS1407/gestion-immobiliere/internal/auth"
	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
	"github.com/FOCUS1407/gestion-immobiliere/internal/storage"
)

func TestCreateOwnerGeneratesCredentials(t *testing.T) {
	f := newFixture(t)
	agency := f.agency("immo", "12345678901234")

	created, _ := f.owner(agency, "Jean", "Dupont", 8)
	assert.Equal(t, "jean.dupont", created.Username)
	assert.NoError(t, auth.ValidatePassword(created.TemporaryPassword, created.Username))
	assert.Equal(t, agency.Agency.ID, created.Owner.AgencyID)
	assert.True(t, created.Owner.User.MustChangePassword)
	assert.Equal(t, models.RoleOwner, created.Owner.User.Role)

	second, err := f.svc.Owners.CreateOwner(f.ctx, agency, OwnerInput{
		FirstName:      "Jean",
		LastName:       "Dupont",
		Email:          "jean.dupont2@example.com",
		ContractStart:  "2024-01-01",
		ContractMonths: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, "jean.dupont1", second.Username)

	third, err := f.svc.Owners.CreateOwner(f.ctx, agency, OwnerInput{
		FirstName:      "Jean ",
		LastName:       "Du Pont",
		Email:          "jdp@example.com",
		ContractStart:  "2024-01-01",
		ContractMonths: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, "jean.dupont2", third.Username)
}

func TestCreateOwnerDuplicateEmailHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	agency := f.agency("immo", "12345678901234")
	f.owner(agency, "Jean", "Dupont", 8)

	var users, owners int64
	require.NoError(t, f.db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, f.db.Model(&models.Owner{}).Count(&owners).Error)

	_, err := f.svc.Owners.CreateOwner(f.ctx, agency, OwnerInput{
		FirstName:      "Paul",
		LastName:       "Martin",
		Email:          "JEAN.DUPONT@example.com",
		ContractStart:  "2024-01-01",
		ContractMonths: 12,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")

	var usersAfter, ownersAfter int64
	require.NoError(t, f.db.Model(&models.User{}).Count(&usersAfter).Error)
	require.NoError(t, f.db.Model(&models.Owner{}).Count(&ownersAfter).Error)
	assert.Equal(t, users, usersAfter)
	assert.Equal(t, owners, ownersAfter)
}

func TestCreateOwnerValidation(t *testing.T) {
	f := newFixture(t)
	agency := f.agency("immo", "12345678901234")

	_, err := f.svc.Owners.CreateOwner(f.ctx, agency, OwnerInput{
		FirstName:      "Jean",
		Email:          "jean@example.com",
		CommissionRate: 120,
		ContractStart:  "yesterday",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"last_name", "commission_rate", "contract_months", "contract_start"} {
		assert.Contains(t, verr.Fields, field)
	}
}

func TestOwnerPermissions(t *testing.T) {
	f := newFixture(t)
	a := f.portfolio("immo", "12345678901234")
	other := f.agency("other", "98765432109876")

	_, err := f.svc.Owners.GetOwner(f.ctx, other, a.owner.Owner.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Owners.UpdateOwner(f.ctx, other, a.owner.Owner.ID, OwnerInput{
		FirstName:      "X",
		LastName:       "Y",
		Email:          "x@example.com",
		ContractStart:  "2024-01-01",
		ContractMonths: 6,
	})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.svc.Owners.DeleteOwner(f.ctx, other, a.owner.Owner.ID), ErrForbidden)

	_, _, err = f.svc.Owners.ListOwners(f.ctx, a.ownerActor, models.PaginationQuery{})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Owners.CreateOwner(f.ctx, a.ownerActor, OwnerInput{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Owners.GetOwner(f.ctx, a.agency, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	owner, err := f.svc.Owners.GetOwner(f.ctx, a.agency, a.owner.Owner.ID)
	require.NoError(t, err)
	require.Len(t, owner.Buildings, 1)
	assert.Len(t, owner.Buildings[0].Units, 2)
}

func TestListOwnersPaginates(t *testing.T) {
	f := newFixture(t)
	agency := f.agency("immo", "12345678901234")
	for _, last := range []string{"Alpha", "Bravo", "Charlie"} {
		f.owner(agency, "Jean", last, 5)
	}
	f.owner(f.agency("other", "98765432109876"), "Jean", "Delta", 5)

	owners, page, err := f.svc.Owners.ListOwners(f.ctx, agency, models.PaginationQuery{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Equal(t, 2, page.Page)
	require.Len(t, owners, 1)
	assert.Equal(t, "Charlie", owners[0].User.LastName)

	// out of range pages fall back to the first one
	owners, page, err = f.svc.Owners.ListOwners(f.ctx, agency, models.PaginationQuery{Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Len(t, owners, 2)
}

func TestUpdateOwner(t *testing.T) {
	f := newFixture(t)
	a := f.portfolio("immo", "12345678901234")

	owner, err := f.svc.Owners.UpdateOwner(f.ctx, a.agency, a.owner.Owner.ID, OwnerInput{
		FirstName:      "Jeanne",
		LastName:       "Durand",
		Email:          "jeanne@example.com",
		CommissionRate: 12.5,
		ContractStart:  "2024-02-01",
		ContractMonths: 24,
	})
	require.NoError(t, err)
	assert.Equal(t, 12.5, owner.CommissionRate)

	var stored models.Owner
	require.NoError(t, f.db.Preload("User").First(&stored, a.owner.Owner.ID).Error)
	assert.Equal(t, "Jeanne Durand", stored.User.FullName())
	assert.Equal(t, 24, stored.ContractMonths)
	assert.Equal(t, a.owner.Username, stored.User.Username)
}

func TestDeleteOwnerCascades(t *testing.T) {
	f := newFixture(t)
	a := f.portfolio("immo", "12345678901234")

	proof, err := f.svc.Payments.RecordPayment(f.ctx, a.agency, a.rented.ID, PaymentInput{
		Amount:          500,
		PaymentDate:     "2024-02-03",
		CoveredMonth:    "2024-02",
		PaymentMethodID: f.paymentMethod(models.PaymentMethodMobile),
	}, &storage.Upload{Name: "receipt.pdf", Reader: bytes.NewReader([]byte("%PDF-1.4"))})
	require.NoError(t, err)
	require.True(t, f.files.has(proof.ProofPath))

	require.NoError(t, f.svc.Owners.DeleteOwner(f.ctx, a.agency, a.owner.Owner.ID))

	for _, model := range []interface{}{&models.Owner{}, &models.Building{}, &models.Unit{}, &models.Lease{}, &models.Payment{}} {
		var count int64
		require.NoError(t, f.db.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T should be gone", model)
	}
	var users int64
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", a.owner.Owner.UserID).Count(&users).Error)
	assert.Zero(t, users)
	assert.False(t, f.files.has(proof.ProofPath))

	// the tenant belongs to the agency and survives
	_, err = f.svc.Tenants.GetTenant(f.ctx, a.agency, a.tenant.ID)
	assert.NoError(t, err)
}
