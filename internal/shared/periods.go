package shared

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FiscalYear spans April 1 of StartYear through March 31 of StartYear+1.
type FiscalYear struct {
	StartYear int
}

// FiscalYearOf returns the fiscal year containing t.
func FiscalYearOf(t time.Time) FiscalYear {
	if t.Month() >= time.April {
		return FiscalYear{StartYear: t.Year()}
	}
	return FiscalYear{StartYear: t.Year() - 1}
}

// ParseFiscalYear parses labels of the form "2024-2025".
func ParseFiscalYear(label string) (FiscalYear, error) {
	parts := strings.Split(strings.TrimSpace(label), "-")
	if len(parts) != 2 {
		return FiscalYear{}, NewValidationError("fiscalYear", "expected START-END, got %q", label)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return FiscalYear{}, NewValidationError("fiscalYear", "invalid start year %q", parts[0])
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil || end != start+1 {
		return FiscalYear{}, NewValidationError("fiscalYear", "end year must follow start year in %q", label)
	}
	return FiscalYear{StartYear: start}, nil
}

// Label renders the fiscal year as "2024-2025".
func (fy FiscalYear) Label() string {
	return fmt.Sprintf("%d-%d", fy.StartYear, fy.StartYear+1)
}

// Start is April 1, 00:00 in loc.
func (fy FiscalYear) Start(loc *time.Location) time.Time {
	return time.Date(fy.StartYear, time.April, 1, 0, 0, 0, 0, loc)
}

// End is the first instant of the next fiscal year (exclusive bound).
func (fy FiscalYear) End(loc *time.Location) time.Time {
	return time.Date(fy.StartYear+1, time.April, 1, 0, 0, 0, 0, loc)
}

// Contains reports whether t falls inside the fiscal year, judged on t's calendar date.
func (fy FiscalYear) Contains(t time.Time) bool {
	return FiscalYearOf(t) == fy
}

// Month identifies a calendar month as "YYYY-MM".
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses "2024-04".
func ParseMonth(value string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(value))
	if err != nil {
		return Month{}, NewValidationError("month", "invalid month %q (expected YYYY-MM)", value)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the calendar month of t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Days returns the number of calendar days in the month.
func (m Month) Days() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// First returns the first day of the month in UTC.
func (m Month) First() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// IsZero reports an unset month.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}
