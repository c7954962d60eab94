package payroll

import (
	"fmt"

	"github.com/thetaxjournal/accountsvedartha/internal/render"
)

// PayslipSlip lays out a payslip with its code in the bottom-left corner.
func PayslipSlip(issuer string, item Item) render.Slip {
	e, d := item.Earnings, item.Deductions
	return render.Slip{
		Title:    "Payslip",
		Issuer:   issuer,
		Subtitle: fmt.Sprintf("%s - %s", item.EmployeeName, item.Month),
		Lines: []render.Line{
			{Label: "Payable days", Value: fmt.Sprintf("%d of %d (LOP %d)", item.PayableDays, item.StandardDays, item.LOPDays)},
			{Label: "Basic", Value: render.Money(e.Basic)},
			{Label: "HRA", Value: render.Money(e.HRA)},
			{Label: "Special allowance", Value: render.Money(e.Special)},
			{Label: "Other allowance", Value: render.Money(e.Other)},
			{Label: "Gross", Value: render.Money(e.Gross)},
			{Label: "Provident fund", Value: render.Money(d.PF)},
			{Label: "ESI", Value: render.Money(d.ESI)},
			{Label: "Professional tax", Value: render.Money(d.PT)},
			{Label: "Total deductions", Value: render.Money(d.Total)},
		},
		AmountLabel: "Net pay",
		Amount:      item.Net,
		SealCode:    item.SealCode,
		Corner:      render.BottomLeft,
	}
}
