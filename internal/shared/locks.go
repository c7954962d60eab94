package shared

import "fmt"

// PayrollRunLockKey builds redis keys guarding a payroll run for one month.
func PayrollRunLockKey(month string) string {
	return fmt.Sprintf("payroll:run:%s:lock", month)
}
