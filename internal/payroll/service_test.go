package payroll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thetaxjournal/accountsvedartha/internal/seal"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
	"github.com/thetaxjournal/accountsvedartha/internal/store"
)

type runRecorder struct {
	outcomes []string
}

func (r *runRecorder) ObservePayrollRun(outcome string, _ int, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func seededStore(t *testing.T, withSettings bool) *store.Memory {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	for _, emp := range staff() {
		require.NoError(t, store.Put(ctx, st, store.Employees, emp.ID, emp))
	}
	for id, rec := range e1Attendance() {
		require.NoError(t, store.Put(ctx, st, store.Attendance, "2024-04_"+id, rec))
	}
	if withSettings {
		require.NoError(t, store.Put(ctx, st, store.PayrollSettings, SettingsID, statutory()))
	}
	return st
}

func newTestService(st store.Store, policy MissingPolicy, opts ...ServiceOption) (*Service, *MemoryLocker) {
	locker := NewMemoryLocker()
	return NewService(st, NewEngine(seal.New(), policy), locker, opts...), locker
}

func TestRunPayrollCommitsItemsRunAndLocks(t *testing.T) {
	ctx := context.Background()
	st := seededStore(t, true)
	signer, err := seal.NewSigner("payroll-test-key")
	require.NoError(t, err)
	recorder := &runRecorder{}
	svc, _ := newTestService(st, MissingFullPay, WithSigner(signer), WithObserver(recorder))

	result, err := svc.RunPayroll(ctx, RunInput{Month: "2024-04", RequestedBy: "hr-1"})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	require.Equal(t, []string{"2024-04_E1", "2024-04_E2"}, result.Run.ItemIDs)
	require.Equal(t, 59000.0, result.Run.TotalGross)
	require.Equal(t, 55695.0, result.Run.TotalNet)
	require.Equal(t, "hr-1", result.Run.RequestedBy)

	stored, err := svc.Items(ctx, "2024-04")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, item := range stored {
		require.Equal(t, result.Run.ID, item.RunID)
		require.True(t, signer.Verify(item.SealCode, item.SealSignature))
	}

	rec, err := store.Get[AttendanceRecord](ctx, st, store.Attendance, "2024-04_E1")
	require.NoError(t, err)
	require.True(t, rec.Locked)
	require.Equal(t, result.Run.ID, rec.LockedBy)

	run, err := svc.Run(ctx, "2024-04")
	require.NoError(t, err)
	require.Equal(t, result.Run.ID, run.ID)
	require.Equal(t, []string{"committed"}, recorder.outcomes)
}

func TestRunPayrollWithoutSettingsWritesNothing(t *testing.T) {
	ctx := context.Background()
	st := seededStore(t, false)
	recorder := &runRecorder{}
	svc, _ := newTestService(st, MissingFullPay, WithObserver(recorder))

	_, err := svc.RunPayroll(ctx, RunInput{Month: "2024-04"})
	var cfgErr *shared.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	items, err := svc.Items(ctx, "2024-04")
	require.NoError(t, err)
	require.Empty(t, items)
	require.Equal(t, []string{"misconfigured"}, recorder.outcomes)
}

func TestRunPayrollRejectPolicyWritesNothing(t *testing.T) {
	ctx := context.Background()
	st := seededStore(t, true)
	svc, _ := newTestService(st, MissingReject)

	_, err := svc.RunPayroll(ctx, RunInput{Month: "2024-04"})
	require.ErrorIs(t, err, shared.ErrValidation)

	items, err := svc.Items(ctx, "2024-04")
	require.NoError(t, err)
	require.Empty(t, items)

	rec, err := store.Get[AttendanceRecord](ctx, st, store.Attendance, "2024-04_E1")
	require.NoError(t, err)
	require.False(t, rec.Locked)
}

func TestRunPayrollRequiresCorrectiveFlagForRerun(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(seededStore(t, true), MissingFullPay)

	first, err := svc.RunPayroll(ctx, RunInput{Month: "2024-04"})
	require.NoError(t, err)

	_, err = svc.RunPayroll(ctx, RunInput{Month: "2024-04"})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "corrective", verr.Field)

	second, err := svc.RunPayroll(ctx, RunInput{Month: "2024-04", Corrective: true})
	require.NoError(t, err)
	require.True(t, second.Run.Corrective)
	require.NotEqual(t, first.Run.ID, second.Run.ID)

	items, err := svc.Items(ctx, "2024-04")
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		require.Equal(t, second.Run.ID, item.RunID)
	}
}

func TestRunPayrollRejectsHeldMonth(t *testing.T) {
	ctx := context.Background()
	recorder := &runRecorder{}
	svc, locker := newTestService(seededStore(t, true), MissingFullPay, WithObserver(recorder))

	release, err := locker.Acquire(ctx, shared.PayrollRunLockKey("2024-04"), time.Minute)
	require.NoError(t, err)

	_, err = svc.RunPayroll(ctx, RunInput{Month: "2024-04"})
	require.ErrorIs(t, err, shared.ErrConcurrency)
	require.Equal(t, []string{"conflict"}, recorder.outcomes)

	require.NoError(t, release(ctx))
	_, err = svc.RunPayroll(ctx, RunInput{Month: "2024-04"})
	require.NoError(t, err)
}

func TestRunPayrollValidatesMonth(t *testing.T) {
	svc, _ := newTestService(seededStore(t, true), MissingFullPay)

	_, err := svc.RunPayroll(context.Background(), RunInput{})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RunPayroll(context.Background(), RunInput{Month: "April"})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "month", verr.Field)
}

// failingStore fails every write to one collection inside transactions.
type failingStore struct {
	store.Store
	failOn store.Collection
}

func (f *failingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return f.Store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		return fn(ctx, &failingStore{Store: tx, failOn: f.failOn})
	})
}

func (f *failingStore) Upsert(ctx context.Context, c store.Collection, id string, data []byte) error {
	if c == f.failOn {
		return errors.New("disk full")
	}
	return f.Store.Upsert(ctx, c, id, data)
}

func TestRunPayrollIsAtomic(t *testing.T) {
	ctx := context.Background()
	mem := seededStore(t, true)
	svc, _ := newTestService(&failingStore{Store: mem, failOn: store.PayrollRuns}, MissingFullPay)

	_, err := svc.RunPayroll(ctx, RunInput{Month: "2024-04"})
	require.ErrorContains(t, err, "disk full")

	items, err := store.List[Item](ctx, mem, store.PayrollItems)
	require.NoError(t, err)
	require.Empty(t, items)

	rec, err := store.Get[AttendanceRecord](ctx, mem, store.Attendance, "2024-04_E1")
	require.NoError(t, err)
	require.False(t, rec.Locked)
}

func TestMarkAttendance(t *testing.T) {
	ctx := context.Background()
	svc, locker := newTestService(seededStore(t, true), MissingFullPay)

	rec, err := svc.MarkAttendance(ctx, AttendanceInput{EmployeeID: "E2", Month: "2024-04", Days: map[int]Status{1: StatusAbsent}})
	require.NoError(t, err)
	require.Equal(t, StatusAbsent, rec.Days[1])

	rec, err = svc.MarkAttendance(ctx, AttendanceInput{EmployeeID: "E2", Month: "2024-04", Days: map[int]Status{2: StatusHalfDay}})
	require.NoError(t, err)
	require.Len(t, rec.Days, 2)

	_, err = svc.MarkAttendance(ctx, AttendanceInput{EmployeeID: "E2", Month: "2024-04", Days: map[int]Status{31: StatusAbsent}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.MarkAttendance(ctx, AttendanceInput{EmployeeID: "E2", Month: "2024-04", Days: map[int]Status{3: "sick"}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.MarkAttendance(ctx, AttendanceInput{EmployeeID: "nobody", Month: "2024-04", Days: map[int]Status{3: StatusPresent}})
	require.ErrorIs(t, err, shared.ErrNotFound)

	release, err := locker.Acquire(ctx, shared.PayrollRunLockKey("2024-04"), time.Minute)
	require.NoError(t, err)
	_, err = svc.MarkAttendance(ctx, AttendanceInput{EmployeeID: "E2", Month: "2024-04", Days: map[int]Status{3: StatusPresent}})
	require.ErrorIs(t, err, shared.ErrConcurrency)
	require.NoError(t, release(ctx))

	_, err = svc.RunPayroll(ctx, RunInput{Month: "2024-04"})
	require.NoError(t, err)

	_, err = svc.MarkAttendance(ctx, AttendanceInput{EmployeeID: "E2", Month: "2024-04", Days: map[int]Status{4: StatusPresent}})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "attendance", verr.Field)
}

func TestUpsertSettingsBumpsVersion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(store.NewMemory(), MissingFullPay)
	fixed := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return fixed })

	_, err := svc.Settings(ctx)
	require.ErrorIs(t, err, shared.ErrConfiguration)

	first, err := svc.UpsertSettings(ctx, *statutory())
	require.NoError(t, err)
	require.Equal(t, 1, first.Version)
	require.Equal(t, fixed, first.UpdatedAt)

	second, err := svc.UpsertSettings(ctx, *statutory())
	require.NoError(t, err)
	require.Equal(t, 2, second.Version)

	bad := *statutory()
	bad.PFPercentage = 120
	_, err = svc.UpsertSettings(ctx, bad)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "pfPercentage", verr.Field)
}

func TestUpsertEmployeeValidates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(store.NewMemory(), MissingFullPay)

	_, err := svc.UpsertEmployee(ctx, Employee{ID: "E1", Name: "Asha", Status: "retired"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.UpsertEmployee(ctx, Employee{ID: "E1", Name: "Asha", Status: EmploymentActive, Compensation: Compensation{Basic: -1}})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "compensation.basic", verr.Field)

	_, err = svc.UpsertEmployee(ctx, Employee{ID: "E1", Name: "Asha", Status: EmploymentActive})
	require.NoError(t, err)
	emps, err := svc.Employees(ctx)
	require.NoError(t, err)
	require.Len(t, emps, 1)
}

func TestCorrectiveRunPicksUpUnlockedAttendance(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(seededStore(t, true), MissingFullPay)

	first, err := svc.RunPayroll(ctx, RunInput{Month: "2024-04"})
	require.NoError(t, err)
	require.Equal(t, 3, byEmployee(first.Items)["E1"].LOPDays)

	_, err = svc.MarkAttendance(ctx, AttendanceInput{EmployeeID: "E1", Month: "2024-04", Days: map[int]Status{1: StatusPresent}})
	require.ErrorIs(t, err, shared.ErrValidation)

	rec, err := svc.UnlockAttendance(ctx, "2024-04", "E1")
	require.NoError(t, err)
	require.False(t, rec.Locked)
	require.Empty(t, rec.LockedBy)

	_, err = svc.MarkAttendance(ctx, AttendanceInput{EmployeeID: "E1", Month: "2024-04", Days: map[int]Status{1: StatusPresent}})
	require.NoError(t, err)

	second, err := svc.RunPayroll(ctx, RunInput{Month: "2024-04", Corrective: true})
	require.NoError(t, err)
	e1 := byEmployee(second.Items)["E1"]
	require.Equal(t, 2, e1.LOPDays)
	require.Greater(t, e1.Net, byEmployee(first.Items)["E1"].Net)

	relocked, err := store.Get[AttendanceRecord](ctx, svc.store, store.Attendance, "2024-04_E1")
	require.NoError(t, err)
	require.True(t, relocked.Locked)
	require.Equal(t, second.Run.ID, relocked.LockedBy)
}

func TestUnlockAttendance(t *testing.T) {
	ctx := context.Background()
	svc, locker := newTestService(seededStore(t, true), MissingFullPay)

	rec, err := svc.UnlockAttendance(ctx, "2024-04", "E1")
	require.NoError(t, err)
	require.False(t, rec.Locked)

	_, err = svc.UnlockAttendance(ctx, "2024-04", "E2")
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.UnlockAttendance(ctx, "April", "E1")
	require.ErrorIs(t, err, shared.ErrValidation)

	release, err := locker.Acquire(ctx, shared.PayrollRunLockKey("2024-04"), time.Minute)
	require.NoError(t, err)
	defer func() { _ = release(ctx) }()
	_, err = svc.UnlockAttendance(ctx, "2024-04", "E1")
	require.ErrorIs(t, err, shared.ErrConcurrency)
}
