package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/thetaxjournal/accountsvedartha/internal/seal"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
	"github.com/thetaxjournal/accountsvedartha/internal/store"
)

// DefaultLockTTL bounds how long a crashed run can hold a month.
const DefaultLockTTL = 2 * time.Minute

// RunObserver receives one call per attempted run.
type RunObserver interface {
	ObservePayrollRun(outcome string, items int, elapsed time.Duration)
}

// Service coordinates payroll runs, attendance and settings against the store.
type Service struct {
	store    store.Store
	engine   *Engine
	locker   RunLocker
	signer   *seal.Signer
	lockTTL  time.Duration
	observer RunObserver
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithSigner attaches a detached signer to every sealed item.
func WithSigner(signer *seal.Signer) ServiceOption {
	return func(s *Service) { s.signer = signer }
}

// WithLockTTL overrides the run lock lease.
func WithLockTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(o RunObserver) ServiceOption {
	return func(s *Service) { s.observer = o }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService constructs a Service.
func NewService(st store.Store, engine *Engine, locker RunLocker, opts ...ServiceOption) *Service {
	s := &Service{
		store:   st,
		engine:  engine,
		locker:  locker,
		lockTTL: DefaultLockTTL,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RunInput requests a payroll run.
type RunInput struct {
	Month       string `json:"month" validate:"required"`
	Corrective  bool   `json:"corrective"`
	RequestedBy string `json:"-"`
}

// RunResult is a committed run and its items.
type RunResult struct {
	Run   Run    `json:"run"`
	Items []Item `json:"items"`
}

// RunPayroll computes and commits a month under the exclusive run lock. Items, the
// run record and attendance locks are written in one transaction.
func (s *Service) RunPayroll(ctx context.Context, in RunInput) (result RunResult, err error) {
	started := s.now()
	defer func() { s.observeRun(err, len(result.Items), started) }()

	if err := shared.ValidateStruct(in); err != nil {
		return RunResult{}, err
	}
	month, err := shared.ParseMonth(in.Month)
	if err != nil {
		return RunResult{}, err
	}
	release, err := s.locker.Acquire(ctx, shared.PayrollRunLockKey(month.String()), s.lockTTL)
	if err != nil {
		return RunResult{}, err
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			s.logger.Warn("payroll run lock release failed", slog.String("month", month.String()), slog.Any("error", relErr))
		}
	}()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		var txErr error
		result, txErr = s.commitRun(ctx, tx, month, in)
		return txErr
	})
	if err != nil {
		return RunResult{}, err
	}

	s.logger.Info("payroll run committed",
		slog.String("month", month.String()),
		slog.String("run_id", result.Run.ID),
		slog.Int("items", len(result.Items)),
		slog.Bool("corrective", in.Corrective),
	)
	for _, w := range result.Run.Warnings {
		s.logger.Warn("payroll run warning", slog.String("month", month.String()), slog.String("employee_id", w.EmployeeID), slog.String("code", w.Code))
	}
	return result, nil
}

func (s *Service) commitRun(ctx context.Context, tx store.Store, month shared.Month, in RunInput) (RunResult, error) {
	settings, err := store.Get[Settings](ctx, tx, store.PayrollSettings, SettingsID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return RunResult{}, &shared.ConfigurationError{Setting: "payroll_settings", Message: "statutory settings are not configured"}
		}
		return RunResult{}, err
	}

	previous, err := store.Get[Run](ctx, tx, store.PayrollRuns, month.String())
	switch {
	case err == nil && !in.Corrective:
		return RunResult{}, shared.NewValidationError("corrective", "payroll for %s was committed by run %s; request a corrective run", month, previous.ID)
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return RunResult{}, err
	}

	employees, err := store.List[Employee](ctx, tx, store.Employees)
	if err != nil {
		return RunResult{}, err
	}
	attendance, err := attendanceFor(ctx, tx, month)
	if err != nil {
		return RunResult{}, err
	}

	items, err := s.engine.ComputeRun(employees, attendance, &settings, month)
	if err != nil {
		return RunResult{}, err
	}

	run := Run{
		ID:              uuid.NewString(),
		Month:           month.String(),
		Status:          RunCommitted,
		Corrective:      in.Corrective,
		SettingsVersion: settings.Version,
		Warnings:        Warnings(items),
		RequestedBy:     in.RequestedBy,
		CommittedAt:     s.now().UTC(),
	}
	for i := range items {
		item := &items[i]
		item.RunID = run.ID
		if s.signer.Enabled() {
			sig, err := s.signer.Sign(item.SealCode)
			if err != nil {
				return RunResult{}, err
			}
			item.SealSignature = sig
		}
		if err := store.Put(ctx, tx, store.PayrollItems, item.ID, item); err != nil {
			return RunResult{}, err
		}
		if rec, ok := attendance[item.EmployeeID]; ok {
			rec.Locked = true
			rec.LockedBy = run.ID
			if err := store.Put(ctx, tx, store.Attendance, AttendanceID(month, item.EmployeeID), rec); err != nil {
				return RunResult{}, err
			}
		}
		run.ItemIDs = append(run.ItemIDs, item.ID)
		run.TotalGross += item.Earnings.Gross
		run.TotalDeductions += item.Deductions.Total
		run.TotalNet += item.Net
	}
	if err := store.Put(ctx, tx, store.PayrollRuns, month.String(), run); err != nil {
		return RunResult{}, err
	}
	return RunResult{Run: run, Items: items}, nil
}

func attendanceFor(ctx context.Context, st store.Store, month shared.Month) (map[string]AttendanceRecord, error) {
	records, err := store.List[AttendanceRecord](ctx, st, store.Attendance)
	if err != nil {
		return nil, err
	}
	out := make(map[string]AttendanceRecord)
	for _, rec := range records {
		if rec.Month == month.String() {
			out[rec.EmployeeID] = rec
		}
	}
	return out, nil
}

func (s *Service) observeRun(err error, items int, started time.Time) {
	if s.observer == nil {
		return
	}
	outcome := "committed"
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrConcurrency):
		outcome = "conflict"
	case errors.Is(err, shared.ErrConfiguration):
		outcome = "misconfigured"
	case errors.Is(err, shared.ErrValidation):
		outcome = "rejected"
	default:
		outcome = "failed"
	}
	s.observer.ObservePayrollRun(outcome, items, s.now().Sub(started))
}

// AttendanceInput marks one or more days for an employee.
type AttendanceInput struct {
	EmployeeID string         `json:"employeeId" validate:"required"`
	Month      string         `json:"month" validate:"required"`
	Days       map[int]Status `json:"days" validate:"required,min=1"`
}

// MarkAttendance merges days into the employee's record for the month. Records
// consumed by a run are locked; marking while a run holds the month is rejected.
func (s *Service) MarkAttendance(ctx context.Context, in AttendanceInput) (AttendanceRecord, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return AttendanceRecord{}, err
	}
	month, err := shared.ParseMonth(in.Month)
	if err != nil {
		return AttendanceRecord{}, err
	}
	for day, status := range in.Days {
		if day < 1 || day > month.Days() {
			return AttendanceRecord{}, shared.NewValidationError(fmt.Sprintf("days[%d]", day), "day outside %s", month)
		}
		if !status.Valid() {
			return AttendanceRecord{}, shared.NewValidationError(fmt.Sprintf("days[%d]", day), "unknown status %q", status)
		}
	}

	release, err := s.locker.Acquire(ctx, shared.PayrollRunLockKey(month.String()), s.lockTTL)
	if err != nil {
		return AttendanceRecord{}, err
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	var record AttendanceRecord
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := store.Get[Employee](ctx, tx, store.Employees, in.EmployeeID); err != nil {
			return err
		}
		id := AttendanceID(month, in.EmployeeID)
		current, err := store.Get[AttendanceRecord](ctx, tx, store.Attendance, id)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			current = AttendanceRecord{EmployeeID: in.EmployeeID, Month: month.String()}
		case err != nil:
			return err
		}
		if current.Locked {
			return shared.NewValidationError("attendance", "%s is locked by payroll run %s", id, current.LockedBy)
		}
		if current.Days == nil {
			current.Days = make(map[int]Status, len(in.Days))
		}
		for day, status := range in.Days {
			current.Days[day] = status
		}
		record = current
		return store.Put(ctx, tx, store.Attendance, id, current)
	})
	if err != nil {
		return AttendanceRecord{}, err
	}
	return record, nil
}

// UnlockAttendance reopens a record consumed by a committed run so it can be
// corrected before a corrective run. Unlocking an unlocked record is a no-op.
func (s *Service) UnlockAttendance(ctx context.Context, monthLabel, employeeID string) (AttendanceRecord, error) {
	month, err := shared.ParseMonth(monthLabel)
	if err != nil {
		return AttendanceRecord{}, err
	}
	release, err := s.locker.Acquire(ctx, shared.PayrollRunLockKey(month.String()), s.lockTTL)
	if err != nil {
		return AttendanceRecord{}, err
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	var record AttendanceRecord
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		id := AttendanceID(month, employeeID)
		current, err := store.Get[AttendanceRecord](ctx, tx, store.Attendance, id)
		if err != nil {
			return err
		}
		if !current.Locked {
			record = current
			return nil
		}
		s.logger.Info("attendance unlocked",
			slog.String("month", month.String()),
			slog.String("employee_id", employeeID),
			slog.String("run_id", current.LockedBy),
		)
		current.Locked = false
		current.LockedBy = ""
		record = current
		return store.Put(ctx, tx, store.Attendance, id, current)
	})
	if err != nil {
		return AttendanceRecord{}, err
	}
	return record, nil
}

// UpsertSettings replaces the statutory snapshot and bumps its version.
func (s *Service) UpsertSettings(ctx context.Context, in Settings) (Settings, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Settings{}, err
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		current, err := store.Get[Settings](ctx, tx, store.PayrollSettings, SettingsID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			current = Settings{}
		case err != nil:
			return err
		}
		in.Version = current.Version + 1
		in.UpdatedAt = s.now().UTC()
		return store.Put(ctx, tx, store.PayrollSettings, SettingsID, in)
	})
	if err != nil {
		return Settings{}, err
	}
	return in, nil
}

// Settings returns the current statutory snapshot.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	settings, err := store.Get[Settings](ctx, s.store, store.PayrollSettings, SettingsID)
	if errors.Is(err, shared.ErrNotFound) {
		return Settings{}, &shared.ConfigurationError{Setting: "payroll_settings", Message: "statutory settings are not configured"}
	}
	return settings, err
}

// UpsertEmployee validates and stores an employee.
func (s *Service) UpsertEmployee(ctx context.Context, emp Employee) (Employee, error) {
	if err := shared.ValidateStruct(emp); err != nil {
		return Employee{}, err
	}
	if err := store.Put(ctx, s.store, store.Employees, emp.ID, emp); err != nil {
		return Employee{}, err
	}
	return emp, nil
}

// Employee returns one employee.
func (s *Service) Employee(ctx context.Context, id string) (Employee, error) {
	return store.Get[Employee](ctx, s.store, store.Employees, id)
}

// Employees lists every employee.
func (s *Service) Employees(ctx context.Context) ([]Employee, error) {
	return store.List[Employee](ctx, s.store, store.Employees)
}

// Items lists the committed items of a month ordered by employee id.
func (s *Service) Items(ctx context.Context, monthLabel string) ([]Item, error) {
	month, err := shared.ParseMonth(monthLabel)
	if err != nil {
		return nil, err
	}
	all, err := store.List[Item](ctx, s.store, store.PayrollItems)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(all))
	for _, item := range all {
		if item.Month == month.String() {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

// Item returns a single payroll item.
func (s *Service) Item(ctx context.Context, id string) (Item, error) {
	return store.Get[Item](ctx, s.store, store.PayrollItems, id)
}

// Run returns the committed run record of a month.
func (s *Service) Run(ctx context.Context, monthLabel string) (Run, error) {
	month, err := shared.ParseMonth(monthLabel)
	if err != nil {
		return Run{}, err
	}
	return store.Get[Run](ctx, s.store, store.PayrollRuns, month.String())
}
