// Package payroll computes attendance-prorated salaries and statutory deductions.
package payroll

import (
	"fmt"
	"math"
	"time"

	"github.com/thetaxjournal/accountsvedartha/internal/seal"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// Engine turns compensation, attendance and settings into payroll items.
type Engine struct {
	sealer *seal.Sealer
	policy MissingPolicy
	now    func() time.Time
}

// NewEngine constructs an Engine. A nil sealer gets a fresh one.
func NewEngine(sealer *seal.Sealer, policy MissingPolicy) *Engine {
	if sealer == nil {
		sealer = seal.New()
	}
	if policy == "" {
		policy = MissingFullPay
	}
	return &Engine{sealer: sealer, policy: policy, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Policy reports the configured missing-attendance policy.
func (e *Engine) Policy() MissingPolicy { return e.policy }

// ComputeRun produces one item per active employee for month. attendance is keyed
// by employee id. Nothing is returned when settings are missing.
func (e *Engine) ComputeRun(employees []Employee, attendance map[string]AttendanceRecord, settings *Settings, month shared.Month) ([]Item, error) {
	if settings == nil {
		return nil, &shared.ConfigurationError{Setting: "payroll_settings", Message: "statutory settings are not configured"}
	}
	if month.IsZero() {
		return nil, shared.NewValidationError("month", "is required")
	}
	standard := settings.StandardDaysFor(month)
	createdAt := e.now().UTC()

	items := make([]Item, 0, len(employees))
	for _, emp := range employees {
		if !emp.Active() {
			continue
		}
		var lop int
		record, ok := attendance[emp.ID]
		switch {
		case ok:
			lop = record.LOPDays(month)
		case e.policy == MissingNoPay:
			lop = standard
		case e.policy == MissingReject:
			return nil, shared.NewValidationError("attendance", "missing for employee %s in %s", emp.ID, month)
		}

		item := compute(emp, *settings, month, standard, lop)
		item.CreatedAt = createdAt
		code, err := e.sealer.Seal(map[string]any{
			"type":       "payslip",
			"id":         item.ID,
			"employeeId": item.EmployeeID,
			"month":      item.Month,
			"net":        item.Net,
		})
		if err != nil {
			return nil, fmt.Errorf("payroll: seal %s: %w", item.ID, err)
		}
		item.SealCode = code
		items = append(items, item)
	}
	return items, nil
}

func compute(emp Employee, s Settings, month shared.Month, standard, lop int) Item {
	if lop > standard {
		lop = standard
	}
	payable := standard - lop
	ratio := 0.0
	if standard > 0 {
		ratio = float64(payable) / float64(standard)
	}

	c := emp.Compensation
	earn := Earnings{
		Basic:   math.Round(c.Basic * ratio),
		HRA:     math.Round(c.HRA * ratio),
		Special: math.Round(c.Special * ratio),
		Other:   math.Round(c.Other * ratio),
	}
	earn.Gross = earn.Basic + earn.HRA + earn.Special + earn.Other

	var ded Deductions
	ded.PF = math.Round(math.Min(earn.Basic, s.PFThreshold) * s.PFPercentage / 100)
	if earn.Gross <= s.ESIThreshold {
		ded.ESI = math.Round(earn.Gross * s.ESIPercentage / 100)
	}
	if earn.Gross > s.PTSlab {
		ded.PT = s.PTAmount
	}
	ded.Total = ded.PF + ded.ESI + ded.PT

	return Item{
		ID:              ItemID(month, emp.ID),
		EmployeeID:      emp.ID,
		EmployeeName:    emp.Name,
		BranchID:        emp.BranchID,
		Month:           month.String(),
		StandardDays:    standard,
		PayableDays:     payable,
		LOPDays:         lop,
		Ratio:           ratio,
		Earnings:        earn,
		Deductions:      ded,
		Net:             earn.Gross - ded.Total,
		SettingsVersion: s.Version,
	}
}

// Warnings lists review flags for computed items.
func Warnings(items []Item) []Warning {
	var out []Warning
	for _, item := range items {
		if item.Net < 0 {
			out = append(out, Warning{
				EmployeeID: item.EmployeeID,
				Code:       WarningNegativeNet,
				Message:    fmt.Sprintf("net salary %.2f is below zero", item.Net),
			})
		}
	}
	return out
}
