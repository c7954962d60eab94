package payroll

import (
	"fmt"
	"strings"
	"time"

	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// Status is a single day's attendance code.
type Status string

const (
	StatusPresent     Status = "present"
	StatusAbsent      Status = "absent"
	StatusHalfDay     Status = "half_day"
	StatusPaidLeave   Status = "paid_leave"
	StatusUnpaidLeave Status = "unpaid_leave"
)

// Valid reports whether s is a known attendance code.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusHalfDay, StatusPaidLeave, StatusUnpaidLeave:
		return true
	}
	return false
}

// LossOfPay reports whether the day counts as unpaid absence. Half days do not.
func (s Status) LossOfPay() bool {
	return s == StatusAbsent || s == StatusUnpaidLeave
}

// EmploymentStatus tracks whether an employee is on the payroll.
type EmploymentStatus string

const (
	EmploymentActive   EmploymentStatus = "active"
	EmploymentInactive EmploymentStatus = "inactive"
	EmploymentExited   EmploymentStatus = "exited"
)

// Compensation is the monthly salary structure before proration.
type Compensation struct {
	Basic   float64 `json:"basic" validate:"gte=0"`
	HRA     float64 `json:"hra" validate:"gte=0"`
	Special float64 `json:"special" validate:"gte=0"`
	Other   float64 `json:"other" validate:"gte=0"`
}

// Employee is the payroll view of a staff member.
type Employee struct {
	ID           string           `json:"id" validate:"required"`
	Name         string           `json:"name" validate:"required"`
	BranchID     string           `json:"branchId"`
	Designation  string           `json:"designation,omitempty"`
	Status       EmploymentStatus `json:"status" validate:"required,oneof=active inactive exited"`
	Compensation Compensation     `json:"compensation"`
}

// Active reports whether the employee takes part in payroll runs.
func (e Employee) Active() bool { return e.Status == EmploymentActive }

// SettingsID is the fixed id of the global statutory settings record.
const SettingsID = "global"

// Settings is the statutory deduction snapshot a run computes against.
type Settings struct {
	Version       int       `json:"version"`
	PFThreshold   float64   `json:"pfThreshold" yaml:"pf_threshold" validate:"gte=0"`
	PFPercentage  float64   `json:"pfPercentage" yaml:"pf_percentage" validate:"gte=0,lte=100"`
	ESIThreshold  float64   `json:"esiThreshold" yaml:"esi_threshold" validate:"gte=0"`
	ESIPercentage float64   `json:"esiPercentage" yaml:"esi_percentage" validate:"gte=0,lte=100"`
	PTSlab        float64   `json:"ptSlab" yaml:"pt_slab" validate:"gte=0"`
	PTAmount      float64   `json:"ptAmount" yaml:"pt_amount" validate:"gte=0"`
	StandardDays  int       `json:"standardDays,omitempty" yaml:"standard_days" validate:"gte=0,lte=31"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// StandardDaysFor returns the divisor used to prorate month m.
func (s Settings) StandardDaysFor(m shared.Month) int {
	if s.StandardDays > 0 {
		return s.StandardDays
	}
	return m.Days()
}

// AttendanceRecord is one employee's day-by-day attendance for a month.
type AttendanceRecord struct {
	EmployeeID string         `json:"employeeId"`
	Month      string         `json:"month"`
	Days       map[int]Status `json:"days"`
	Locked     bool           `json:"locked"`
	LockedBy   string         `json:"lockedBy,omitempty"`
}

// LOPDays counts unpaid days that fall inside month m.
func (a AttendanceRecord) LOPDays(m shared.Month) int {
	last := m.Days()
	count := 0
	for day, status := range a.Days {
		if day < 1 || day > last {
			continue
		}
		if status.LossOfPay() {
			count++
		}
	}
	return count
}

// Earnings are the prorated salary components.
type Earnings struct {
	Basic   float64 `json:"basic"`
	HRA     float64 `json:"hra"`
	Special float64 `json:"special"`
	Other   float64 `json:"other"`
	Gross   float64 `json:"gross"`
}

// Deductions are the statutory deductions for an item.
type Deductions struct {
	PF    float64 `json:"pf"`
	ESI   float64 `json:"esi"`
	PT    float64 `json:"pt"`
	Total float64 `json:"total"`
}

// Item is one employee's payroll line for a month.
type Item struct {
	ID              string     `json:"id"`
	RunID           string     `json:"runId,omitempty"`
	EmployeeID      string     `json:"employeeId"`
	EmployeeName    string     `json:"employeeName"`
	BranchID        string     `json:"branchId,omitempty"`
	Month           string     `json:"month"`
	StandardDays    int        `json:"standardDays"`
	PayableDays     int        `json:"payableDays"`
	LOPDays         int        `json:"lopDays"`
	Ratio           float64    `json:"ratio"`
	Earnings        Earnings   `json:"earnings"`
	Deductions      Deductions `json:"deductions"`
	Net             float64    `json:"net"`
	SettingsVersion int        `json:"settingsVersion"`
	SealCode        string     `json:"sealCode"`
	SealSignature   string     `json:"sealSignature,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// ItemID is the deterministic id of an employee's item for month m.
func ItemID(m shared.Month, employeeID string) string {
	return m.String() + "_" + employeeID
}

// AttendanceID addresses the attendance record of an employee for month m.
func AttendanceID(m shared.Month, employeeID string) string {
	return ItemID(m, employeeID)
}

// MissingPolicy decides how an employee without attendance is paid.
type MissingPolicy string

const (
	// MissingFullPay treats absent records as full attendance.
	MissingFullPay MissingPolicy = "full_pay"
	// MissingNoPay treats every standard day as loss of pay.
	MissingNoPay MissingPolicy = "no_pay"
	// MissingReject fails the run.
	MissingReject MissingPolicy = "reject"
)

// ParseMissingPolicy accepts the configured policy name; empty means full_pay.
func ParseMissingPolicy(raw string) (MissingPolicy, error) {
	switch p := MissingPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return MissingFullPay, nil
	case MissingFullPay, MissingNoPay, MissingReject:
		return p, nil
	default:
		return "", &shared.ConfigurationError{
			Setting: "ATTENDANCE_MISSING_POLICY",
			Message: fmt.Sprintf("unknown policy %q", raw),
		}
	}
}

// RunStatus tracks a payroll run record.
type RunStatus string

const (
	RunCommitted RunStatus = "committed"
)

// Run is the persisted summary of a committed payroll run.
type Run struct {
	ID              string    `json:"id"`
	Month           string    `json:"month"`
	Status          RunStatus `json:"status"`
	Corrective      bool      `json:"corrective"`
	SettingsVersion int       `json:"settingsVersion"`
	ItemIDs         []string  `json:"itemIds"`
	TotalGross      float64   `json:"totalGross"`
	TotalDeductions float64   `json:"totalDeductions"`
	TotalNet        float64   `json:"totalNet"`
	Warnings        []Warning `json:"warnings,omitempty"`
	RequestedBy     string    `json:"requestedBy,omitempty"`
	CommittedAt     time.Time `json:"committedAt"`
}

// Warning flags an item that needs review.
type Warning struct {
	EmployeeID string `json:"employeeId"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// WarningNegativeNet marks an item whose deductions exceed earnings.
const WarningNegativeNet = "negative_net"
