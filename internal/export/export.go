// Package export renders payments and financial reports as CSV downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FOCUS1407/gestion-immobiliere/internal/models"
)

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// fileToken keeps letters, digits and dashes; runs of anything else become
// one underscore.
func fileToken(s string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > 127:
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			sep = false
			b.WriteRune(r)
		default:
			sep = true
		}
	}
	return b.String()
}

// FinancialReportFilename names the monthly report of one owner, or of the
// whole agency when no owner name is given.
func FinancialReportFilename(month models.Month, firstName, lastName string) string {
	if firstName == "" && lastName == "" {
		return fmt.Sprintf("financial_report_%s.csv", month)
	}
	return fmt.Sprintf("financial_report_%s_%s_%s.csv", fileToken(firstName), fileToken(lastName), month)
}

func HistoryReportFilename(firstName, lastName string) string {
	return fmt.Sprintf("history_report_%s_%s.csv", fileToken(firstName), fileToken(lastName))
}

func TenantPaymentsFilename(t *models.Tenant) string {
	return fmt.Sprintf("payments_%s_%s.csv", fileToken(t.FirstName), fileToken(t.LastName))
}

func MonthPaymentsFilename(month models.Month) string {
	return fmt.Sprintf("payments_%s.csv", month)
}

var paymentHeader = []string{
	"Covered month", "Payment date", "Amount", "Method", "Valid", "Tenant", "Unit", "Building", "Proof",
}

func WritePayments(w io.Writer, payments []models.Payment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(paymentHeader); err != nil {
		return err
	}
	for _, p := range payments {
		var method, tenant, unit, building string
		if p.PaymentMethod != nil {
			method = p.PaymentMethod.Label
		}
		if l := p.Lease; l != nil {
			if l.Tenant != nil {
				tenant = l.Tenant.FullName()
			}
			if l.Unit != nil {
				unit = l.Unit.Designation
				if l.Unit.Building != nil {
					building = l.Unit.Building.Address
				}
			}
		}
		row := []string{
			p.CoveredMonth,
			p.PaymentDate.Format(models.DateLayout),
			money(p.Amount),
			method,
			yesNo(p.IsValid),
			tenant,
			unit,
			building,
			yesNo(p.ProofPath != ""),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFinancialReport writes one line per rent row, a subtotal line per
// owner and the grand total last.
func WriteFinancialReport(w io.Writer, report *models.FinancialReport) error {
	cw := csv.NewWriter(w)
	rows := [][]string{{
		"Month", "Owner", "Building", "Unit", "Tenant", "Expected", "Paid", "Balance", "Status", "Commission", "Net to owner",
	}}
	for _, o := range report.Owners {
		for _, r := range o.Rows {
			rows = append(rows, []string{
				report.Month, o.Owner, r.Building, r.Unit, r.Tenant,
				money(r.Expected), money(r.Paid), money(r.Balance), string(r.Status), "", "",
			})
		}
		rows = append(rows, []string{
			report.Month, o.Owner, "", "", fmt.Sprintf("Total (commission %s%%)", money(o.CommissionRate)),
			money(o.Expected), money(o.Paid), money(o.Unpaid), "", money(o.Commission), money(o.NetToOwner),
		})
	}
	rows = append(rows, []string{
		report.Month, "All owners", "", "", "Grand total",
		money(report.Totals.Expected), money(report.Totals.Paid), money(report.Totals.Unpaid), "",
		money(report.Totals.Commission), money(report.NetToOwners),
	})

	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func WriteOwnerHistory(w io.Writer, h *models.OwnerHistory) error {
	cw := csv.NewWriter(w)
	rows := [][]string{{"Month", "Expected", "Paid", "Unpaid", "Commission", "Net to owner"}}
	var total models.HistoryMonth
	for _, m := range h.Months {
		rows = append(rows, []string{
			m.Month, money(m.Expected), money(m.Paid), money(m.Unpaid), money(m.Commission), money(m.NetToOwner),
		})
		total.Expected += m.Expected
		total.Paid += m.Paid
		total.Unpaid += m.Unpaid
		total.Commission += m.Commission
		total.NetToOwner += m.NetToOwner
	}
	rows = append(rows, []string{
		"Total", money(total.Expected), money(total.Paid), money(total.Unpaid), money(total.Commission), money(total.NetToOwner),
	})
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
