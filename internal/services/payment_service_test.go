package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
	"github.com/FOCUS1407/gestion-immobiliere/internal/storage"
)

func TestPaymentUniquePerLeaseAndMonth(t *testing.T) {
	f := newFixture(t)
	a := f.portfolio("immo", "12345678901234")
	f.pay(a.agency, a.rented.ID, "2024-02", 500)

	_, err := f.svc.Payments.RecordPayment(f.ctx, a.agency, a.rented.ID, PaymentInput{
		Amount:          200,
		PaymentDate:     "2024-02-20",
		CoveredMonth:    "02/2024",
		PaymentMethodID: f.paymentMethod(models.PaymentMethodCash),
	}, nil)
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "a payment for February 2024 already exists for this lease")

	other := f.pay(a.agency, a.rented.ID, "2024-03", 500)
	_, err = f.svc.Payments.UpdatePayment(f.ctx, a.agency, other.ID, PaymentInput{
		Amount:          500,
		PaymentDate:     "2024-03-05",
		CoveredMonth:    "2024-02",
		PaymentMethodID: f.paymentMethod(models.PaymentMethodCash),
	}, nil)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRecordPaymentRules(t *testing.T) {
	f := newFixture(t)
	a := f.portfolio("immo", "12345678901234")

	_, err := f.svc.Payments.RecordPayment(f.ctx, a.agency, a.vacant.ID, PaymentInput{
		Amount:          400,
		PaymentDate:     "2024-02-01",
		CoveredMonth:    "2024-02",
		PaymentMethodID: f.paymentMethod(models.PaymentMethodCash),
	}, nil)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Payments.RecordPayment(f.ctx, a.agency, a.rented.ID, PaymentInput{
		Amount:          500,
		PaymentDate:     "2024-02-01",
		CoveredMonth:    "2024-02",
		PaymentMethodID: f.paymentMethod(models.PaymentMethodMobile),
	}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "proof")

	_, err = f.svc.Payments.RecordPayment(f.ctx, a.agency, a.rented.ID, PaymentInput{
		Amount:          -1,
		PaymentDate:     "01/02/2024x",
		CoveredMonth:    "someday",
		PaymentMethodID: 999,
	}, nil)
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"amount", "payment_date", "covered_month", "payment_method_id"} {
		assert.Contains(t, verr.Fields, field)
	}

	_, err = f.svc.Payments.RecordPayment(f.ctx, a.ownerActor, a.rented.ID, PaymentInput{}, nil)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestInvalidPaymentIsStoredInvalid(t *testing.T) {
	f := newFixture(t)
	a := f.portfolio("immo", "12345678901234")

	invalid := false
	p, err := f.svc.Payments.RecordPayment(f.ctx, a.agency, a.rented.ID, PaymentInput{
		Amount:          500,
		PaymentDate:     "2024-01-20",
		CoveredMonth:    "2024-01",
		PaymentMethodID: f.paymentMethod(models.PaymentMethodCash),
		IsValid:         &invalid,
	}, nil)
	require.NoError(t, err)
	assert.False(t, p.IsValid)

	var stored models.Payment
	require.NoError(t, f.db.First(&stored, p.ID).Error)
	assert.False(t, stored.IsValid)

	sum, err := f.svc.Reports.FinancialSummary(f.ctx, a.agency, models.NewMonth(2024, 1), 0)
	require.NoError(t, err)
	assert.Equal(t, 500.0, sum.Expected)
	assert.Zero(t, sum.Paid)
	assert.Equal(t, 500.0, sum.Unpaid)
	assert.Zero(t, sum.Commission)
}

func TestUpdatePaymentReplacesProof(t *testing.T) {
	f := newFixture(t)
	a := f.portfolio("immo", "12345678901234")

	p, err := f.svc.Payments.RecordPayment(f.ctx, a.agency, a.rented.ID, PaymentInput{
		Amount:          500,
		PaymentDate:     "2024-02-01",
		CoveredMonth:    "2024-02",
		PaymentMethodID: f.paymentMethod(models.PaymentMethodTransfer),
	}, &storage.Upload{Name: "a.pdf", Reader: bytes.NewReader([]byte("first"))})
	require.NoError(t, err)
	oldProof := p.ProofPath

	invalid := false
	updated, err := f.svc.Payments.UpdatePayment(f.ctx, a.agency, p.ID, PaymentInput{
		Amount:          450,
		PaymentDate:     "2024-02-02",
		CoveredMonth:    "2024-02",
		PaymentMethodID: f.paymentMethod(models.PaymentMethodTransfer),
		IsValid:         &invalid,
	}, &storage.Upload{Name: "b.pdf", Reader: bytes.NewReader([]byte("second"))})
	require.NoError(t, err)
	assert.NotEqual(t, oldProof, updated.ProofPath)
	assert.False(t, f.files.has(oldProof))
	assert.True(t, f.files.has(updated.ProofPath))

	var stored models.Payment
	require.NoError(t, f.db.First(&stored, p.ID).Error)
	assert.Equal(t, 450.0, stored.Amount)
	assert.False(t, stored.IsValid)

	// removing the proof of a method that needs one is refused
	_, err = f.svc.Payments.UpdatePayment(f.ctx, a.agency, p.ID, PaymentInput{
		Amount:          450,
		PaymentDate:     "2024-02-02",
		CoveredMonth:    "2024-02",
		PaymentMethodID: f.paymentMethod(models.PaymentMethodTransfer),
		RemoveProof:     true,
	}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestOwnerCannotDeletePayment(t *testing.T) {
	f := newFixture(t)
	a := f.portfolio("immo", "12345678901234")
	p := f.pay(a.agency, a.rented.ID, "2024-02", 500)

	assert.ErrorIs(t, f.svc.Payments.DeletePayment(f.ctx, a.ownerActor, p.ID), ErrForbidden)
	assert.ErrorIs(t, f.svc.Payments.DeletePayment(f.ctx, f.agency("other", "98765432109876"), p.ID), ErrForbidden)
	assert.ErrorIs(t, f.svc.Payments.DeletePayment(f.ctx, a.agency, 31337), ErrNotFound)

	require.NoError(t, f.svc.Payments.DeletePayment(f.ctx, a.agency, p.ID))
	var count int64
	require.NoError(t, f.db.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTenantPaymentListings(t *testing.T) {
	f := newFixture(t)
	a := f.portfolio("immo", "12345678901234")
	for _, m := range []string{"2024-01", "2024-02", "2024-03"} {
		f.pay(a.agency, a.rented.ID, m, 500)
	}

	payments, page, err := f.svc.Payments.TenantPayments(f.ctx, a.agency, a.tenant.ID, models.PaginationQuery{PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.Pages)
	require.Len(t, payments, 2)
	assert.Equal(t, "2024-03", payments[0].CoveredMonth)
	require.NotNil(t, payments[0].Lease)
	assert.Equal(t, "Room A", payments[0].Lease.Unit.Designation)

	month, err := f.svc.Payments.TenantMonthPayments(f.ctx, a.agency, a.tenant.ID, models.NewMonth(2024, 2))
	require.NoError(t, err)
	require.Len(t, month, 1)
	assert.Equal(t, "2024-02", month[0].CoveredMonth)

	tenant, all, err := f.svc.Payments.TenantPaymentsExport(f.ctx, a.agency, a.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, a.tenant.ID, tenant.ID)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-01", all[0].CoveredMonth)

	agencyMonth, err := f.svc.Payments.MonthPayments(f.ctx, a.agency, models.NewMonth(2024, 3))
	require.NoError(t, err)
	assert.Len(t, agencyMonth, 1)

	_, _, err = f.svc.Payments.TenantPayments(f.ctx, f.agency("other", "98765432109876"), a.tenant.ID, models.PaginationQuery{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPaymentMethodCatalog(t *testing.T) {
	f := newFixture(t)
	a := f.portfolio("immo", "12345678901234")

	methods, err := f.svc.Payments.ListPaymentMethods(f.ctx)
	require.NoError(t, err)
	assert.Len(t, methods, 4)

	_, err = f.svc.Payments.AddPaymentMethod(f.ctx, a.agency, models.PaymentMethodCash)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.svc.Payments.AddPaymentMethod(f.ctx, a.agency, "XXX")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	// the cash method is used by the portfolio lease
	err = f.svc.Payments.DeletePaymentMethod(f.ctx, a.agency, f.paymentMethod(models.PaymentMethodCash))
	assert.ErrorIs(t, err, ErrConflict)

	deposit := f.paymentMethod(models.PaymentMethodDeposit)
	assert.ErrorIs(t, f.svc.Payments.DeletePaymentMethod(f.ctx, a.ownerActor, deposit), ErrForbidden)
	require.NoError(t, f.svc.Payments.DeletePaymentMethod(f.ctx, a.agency, deposit))

	added, err := f.svc.Payments.AddPaymentMethod(f.ctx, a.agency, "dep")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodDeposit, added.Code)
	assert.True(t, added.RequiresProof)

	types, err := f.svc.Payments.ListPropertyTypes(f.ctx)
	require.NoError(t, err)
	assert.Len(t, types, 2)
}
