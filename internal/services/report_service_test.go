package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
)

// reportData adds a second owner to the portfolio and records:
// Jan: unit A 500; Feb: unit A 300 (partial), unit C 800.
type reportData struct {
	*portfolio
	second      *OwnerCreated
	secondActor *Actor
	unitC       *models.Unit
	partial     *models.Payment
}

func (f *fixture) reportData() *reportData {
	f.t.Helper()
	p := f.portfolio("immo", "12345678901234")
	d := &reportData{portfolio: p}
	d.second, d.secondActor = f.owner(p.agency, "Luc", "Bernard", 5)
	b := f.building(p.agency, d.second.Owner.ID, "3 quai Voltaire, Lyon")
	d.unitC = f.unit(p.agency, b.ID, "Shop C", 800)
	tenant := f.tenant(p.agency, "Paul", "Martin")
	f.lease(p.agency, d.unitC.ID, tenant.ID, "2024-02-01")

	f.pay(p.agency, p.rented.ID, "2024-01", 500)
	d.partial = f.pay(p.agency, p.rented.ID, "2024-02", 300)
	f.pay(p.agency, d.unitC.ID, "2024-02", 800)
	return d
}

func (f *fixture) reports(now string) *ReportService {
	rs := f.svc.Reports.(*ReportService)
	rs.Now = func() time.Time { return day(now) }
	return rs
}

func TestFinancialSummary(t *testing.T) {
	f := newFixture(t)
	d := f.reportData()
	rs := f.reports("2024-02-10")

	feb, err := rs.FinancialSummary(f.ctx, d.agency, models.NewMonth(2024, 2), 0)
	require.NoError(t, err)
	assert.Equal(t, models.FinancialSummary{Month: "2024-02", Expected: 1300, Paid: 1100, Unpaid: 200, Commission: 70}, *feb)

	jan, err := rs.FinancialSummary(f.ctx, d.agency, models.NewMonth(2024, 1), 0)
	require.NoError(t, err)
	assert.Equal(t, 500.0, jan.Expected)
	assert.Equal(t, 50.0, jan.Commission)

	own, err := rs.FinancialSummary(f.ctx, d.ownerActor, models.NewMonth(2024, 2), 0)
	require.NoError(t, err)
	assert.Equal(t, models.FinancialSummary{Month: "2024-02", Expected: 500, Paid: 300, Unpaid: 200, Commission: 30}, *own)

	narrowed, err := rs.FinancialSummary(f.ctx, d.agency, models.NewMonth(2024, 2), d.second.Owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 800.0, narrowed.Paid)
	assert.Equal(t, 40.0, narrowed.Commission)
}

func TestFinancialSummaryPermissions(t *testing.T) {
	f := newFixture(t)
	d := f.reportData()
	rs := f.reports("2024-02-10")
	other := f.agency("other", "98765432109876")

	_, err := rs.FinancialSummary(f.ctx, d.ownerActor, models.NewMonth(2024, 2), d.second.Owner.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = rs.FinancialSummary(f.ctx, other, models.NewMonth(2024, 2), d.owner.Owner.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = rs.FinancialSummary(f.ctx, d.agency, models.NewMonth(2024, 2), 4040)
	assert.ErrorIs(t, err, ErrNotFound)

	empty, err := rs.FinancialSummary(f.ctx, other, models.NewMonth(2024, 2), 0)
	require.NoError(t, err)
	assert.Zero(t, empty.Expected)
	assert.Zero(t, empty.Paid)
}

func TestFinancialSummaryCacheIsInvalidated(t *testing.T) {
	f := newFixture(t)
	d := f.reportData()
	rs := f.reports("2024-02-10")
	feb := models.NewMonth(2024, 2)

	before, err := rs.FinancialSummary(f.ctx, d.agency, feb, 0)
	require.NoError(t, err)
	assert.Equal(t, 1100.0, before.Paid)

	require.NoError(t, f.svc.Payments.DeletePayment(f.ctx, d.agency, d.partial.ID))

	after, err := rs.FinancialSummary(f.ctx, d.agency, feb, 0)
	require.NoError(t, err)
	assert.Equal(t, 800.0, after.Paid)
	assert.Equal(t, 500.0, after.Unpaid)
}

func TestFinancialReportTotals(t *testing.T) {
	f := newFixture(t)
	d := f.reportData()
	rs := f.reports("2024-02-10")
	feb := models.NewMonth(2024, 2)

	report, err := rs.FinancialReport(f.ctx, d.agency, feb, 0)
	require.NoError(t, err)
	require.Len(t, report.Owners, 2)

	var validPaid struct{ Total float64 }
	require.NoError(t, f.db.Model(&models.Payment{}).
		Select("SUM(amount) AS total").
		Where("covered_month = ? AND is_valid = ?", "2024-02", true).
		Scan(&validPaid).Error)
	assert.Equal(t, validPaid.Total, report.Totals.Paid)
	assert.Equal(t, 1300.0, report.Totals.Expected)
	assert.Equal(t, 70.0, report.Totals.Commission)
	assert.Equal(t, 1030.0, report.NetToOwners)

	first := report.Owners[0]
	assert.Equal(t, d.owner.Owner.ID, first.OwnerID)
	assert.Equal(t, 10.0, first.CommissionRate)
	assert.Equal(t, 30.0, first.Commission)
	assert.Equal(t, 270.0, first.NetToOwner)
	require.Len(t, first.Rows, 1)
	assert.Equal(t, models.RentPartial, first.Rows[0].Status)
	assert.Equal(t, 200.0, first.Rows[0].Balance)
	assert.Equal(t, "Marie Curie", first.Rows[0].Tenant)

	second := report.Owners[1]
	assert.Equal(t, 40.0, second.Commission)
	assert.Equal(t, models.RentPaid, second.Rows[0].Status)

	own, err := rs.FinancialReport(f.ctx, d.secondActor, feb, 0)
	require.NoError(t, err)
	require.Len(t, own.Owners, 1)
	assert.Equal(t, 800.0, own.Totals.Paid)
}

func TestTurnoverMonthCountsEachLease(t *testing.T) {
	f := newFixture(t)
	a := f.portfolio("immo", "12345678901234")
	rs := f.reports("2024-03-20")
	march := models.NewMonth(2024, 3)

	f.pay(a.agency, a.rented.ID, "2024-03", 500)
	_, err := f.svc.Buildings.ReleaseUnit(f.ctx, a.agency, a.rented.ID, "2024-03-10")
	require.NoError(t, err)
	next := f.tenant(a.agency, "Pierre", "Curie")
	f.lease(a.agency, a.rented.ID, next.ID, "2024-03-15")
	f.pay(a.agency, a.rented.ID, "2024-03", 500)

	sum, err := rs.FinancialSummary(f.ctx, a.agency, march, 0)
	require.NoError(t, err)
	assert.Equal(t, models.FinancialSummary{Month: "2024-03", Expected: 1000, Paid: 1000, Unpaid: 0, Commission: 100}, *sum)

	report, err := rs.FinancialReport(f.ctx, a.agency, march, 0)
	require.NoError(t, err)
	require.Len(t, report.Owners, 1)
	require.Len(t, report.Owners[0].Rows, 2)
	for _, row := range report.Owners[0].Rows {
		assert.Equal(t, a.rented.ID, row.UnitID)
		assert.Equal(t, models.RentPaid, row.Status)
	}
	assert.Equal(t, *sum, report.Totals)
}

func TestRentReportFilters(t *testing.T) {
	f := newFixture(t)
	d := f.reportData()
	rs := f.reports("2024-03-10")

	rows, err := rs.RentReport(f.ctx, d.agency, RentFilter{Month: models.NewMonth(2024, 3)})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, models.RentUnpaid, r.Status)
	}

	rows, err = rs.RentReport(f.ctx, d.agency, RentFilter{Month: models.NewMonth(2024, 2), Status: models.RentPaid})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, d.unitC.ID, rows[0].UnitID)

	rows, err = rs.RentReport(f.ctx, d.agency, RentFilter{Month: models.NewMonth(2024, 2), BuildingID: d.building.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, d.rented.ID, rows[0].UnitID)

	// January predates the second lease
	rows, err = rs.RentReport(f.ctx, d.agency, RentFilter{Month: models.NewMonth(2024, 1)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.RentPaid, rows[0].Status)
}

func TestOwnerHistory(t *testing.T) {
	f := newFixture(t)
	d := f.reportData()
	rs := f.reports("2024-03-10")

	history, err := rs.OwnerHistory(f.ctx, d.ownerActor, 0)
	require.NoError(t, err)
	require.Len(t, history.Months, 3)
	assert.Equal(t, "2024-01", history.Months[0].Month)
	assert.Equal(t, 450.0, history.Months[0].NetToOwner)
	assert.Equal(t, 270.0, history.Months[1].NetToOwner)
	assert.Equal(t, 500.0, history.Months[2].Unpaid)

	_, err = rs.OwnerHistory(f.ctx, d.agency, 0)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	history, err = rs.OwnerHistory(f.ctx, d.agency, d.second.Owner.ID)
	require.NoError(t, err)
	require.Len(t, history.Months, 2)
	assert.Equal(t, "2024-02", history.Months[0].Month)

	fresh, _ := f.owner(d.agency, "Ana", "Lopez", 7)
	history, err = rs.OwnerHistory(f.ctx, d.agency, fresh.Owner.ID)
	require.NoError(t, err)
	assert.Empty(t, history.Months)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	d := f.reportData()
	rs := f.reports("2024-02-10")
	require.NoError(t, f.db.Create(&models.Notification{AgencyID: d.agency.Agency.ID, Message: "hello"}).Error)

	dash, err := rs.Dashboard(f.ctx, d.agency)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAgency, dash.Role)
	assert.Equal(t, int64(2), dash.Owners)
	assert.Equal(t, int64(2), dash.Buildings)
	assert.Equal(t, int64(3), dash.Units)
	assert.Equal(t, int64(2), dash.OccupiedUnits)
	assert.Equal(t, 66.67, dash.OccupancyRate)
	assert.Equal(t, 1100.0, dash.CurrentMonth.Paid)
	assert.Equal(t, int64(1), dash.UnreadNotifications)

	own, err := rs.Dashboard(f.ctx, d.ownerActor)
	require.NoError(t, err)
	assert.Zero(t, own.Owners)
	assert.Equal(t, int64(1), own.Buildings)
	assert.Equal(t, int64(2), own.Units)
	assert.Equal(t, 50.0, own.OccupancyRate)
	assert.Equal(t, 300.0, own.CurrentMonth.Paid)
	assert.Zero(t, own.UnreadNotifications)
}
