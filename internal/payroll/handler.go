package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/thetaxjournal/accountsvedartha/internal/platform/httpx"
	"github.com/thetaxjournal/accountsvedartha/internal/render"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// Enqueuer hands a run to the background worker and returns the task id.
type Enqueuer interface {
	EnqueuePayrollRun(ctx context.Context, in RunInput) (string, error)
}

// Handler exposes payroll endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	enqueuer Enqueuer
	issuer   string
}

// NewHandler builds a Handler. enqueuer may be nil, in which case async runs are
// refused.
func NewHandler(logger *slog.Logger, service *Service, enqueuer Enqueuer, issuer string) *Handler {
	return &Handler{logger: logger, service: service, enqueuer: enqueuer, issuer: issuer}
}

// MountRoutes registers payroll routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireRoles())
		r.Put("/payroll/settings", h.upsertSettings)
	})
	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireRoles(shared.RoleHR))
		r.Get("/payroll/settings", h.showSettings)
		r.Get("/employees", h.listEmployees)
		r.Post("/employees", h.upsertEmployee)
		r.Post("/payroll/runs", h.run)
		r.Get("/payroll/runs/{month}", h.showRun)
		r.Get("/payroll/items", h.listItems)
		r.Post("/attendance/{month}/{employeeID}/unlock", h.unlockAttendance)
	})
	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireRoles(shared.RoleHR, shared.RoleBranchManager))
		r.Post("/attendance", h.markAttendance)
	})
	r.Get("/payroll/items/{id}", h.showItem)
	r.Get("/payroll/items/{id}/pdf", h.itemPDF)
}

func (h *Handler) upsertSettings(w http.ResponseWriter, r *http.Request) {
	var in Settings
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	settings, err := h.service.UpsertSettings(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) showSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.Employees(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	out := employees[:0]
	for _, e := range employees {
		if p.CanSeeBranch(e.BranchID) {
			out = append(out, e)
		}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) upsertEmployee(w http.ResponseWriter, r *http.Request) {
	var in Employee
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if p, _ := shared.PrincipalFromContext(r.Context()); !p.CanSeeBranch(in.BranchID) {
		httpx.RespondError(w, fmt.Errorf("%w: branch %s", shared.ErrForbidden, in.BranchID))
		return
	}
	emp, err := h.service.UpsertEmployee(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, emp)
}

type taskAccepted struct {
	TaskID string `json:"taskId"`
	Month  string `json:"month"`
}

// requireCompanyWide refuses branch-scoped callers: a run covers every branch.
func requireCompanyWide(r *http.Request) error {
	p, _ := shared.PrincipalFromContext(r.Context())
	if !p.CompanyWide() {
		return fmt.Errorf("%w: payroll runs span every branch", shared.ErrForbidden)
	}
	return nil
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	if err := requireCompanyWide(r); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in RunInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	in.RequestedBy = p.UserID

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if h.enqueuer == nil {
			httpx.RespondError(w, &shared.ConfigurationError{Setting: "REDIS_ADDR", Message: "background runs are not configured"})
			return
		}
		if err := shared.ValidateStruct(in); err != nil {
			httpx.RespondError(w, err)
			return
		}
		id, err := h.enqueuer.EnqueuePayrollRun(r.Context(), in)
		if err != nil {
			h.logger.Error("enqueue payroll run", slog.String("month", in.Month), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, taskAccepted{TaskID: id, Month: in.Month})
		return
	}

	result, err := h.service.RunPayroll(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) showRun(w http.ResponseWriter, r *http.Request) {
	if err := requireCompanyWide(r); err != nil {
		httpx.RespondError(w, err)
		return
	}
	run, err := h.service.Run(r.Context(), chi.URLParam(r, "month"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, run)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Items(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	out := items[:0]
	for _, item := range items {
		if p.CanSeeBranch(item.BranchID) {
			out = append(out, item)
		}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) markAttendance(w http.ResponseWriter, r *http.Request) {
	var in AttendanceInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.visibleEmployee(r, in.EmployeeID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	record, err := h.service.MarkAttendance(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) unlockAttendance(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	if err := h.visibleEmployee(r, employeeID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	record, err := h.service.UnlockAttendance(r.Context(), chi.URLParam(r, "month"), employeeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

// visibleEmployee hides employees of other branches as not found.
func (h *Handler) visibleEmployee(r *http.Request, id string) error {
	if id == "" {
		return shared.NewValidationError("employeeId", "is required")
	}
	emp, err := h.service.Employee(r.Context(), id)
	if err != nil {
		return err
	}
	if p, _ := shared.PrincipalFromContext(r.Context()); !p.CanSeeBranch(emp.BranchID) {
		return &shared.NotFoundError{Resource: "employee", Reason: "not visible"}
	}
	return nil
}

func (h *Handler) showItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.visibleItem(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) itemPDF(w http.ResponseWriter, r *http.Request) {
	item, err := h.visibleItem(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "payslip-"+item.ID+".pdf"))
	if err := render.Write(w, PayslipSlip(h.issuer, item)); err != nil {
		h.logger.Error("render payslip", slog.String("item", item.ID), slog.Any("error", err))
	}
}

// visibleItem lets employees read their own payslips and HR staff those of
// their branch.
func (h *Handler) visibleItem(r *http.Request) (Item, error) {
	item, err := h.service.Item(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return Item{}, err
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	switch {
	case p.Role == shared.RoleEmployee && p.Staff.EmployeeID == item.EmployeeID:
		return item, nil
	case p.Can(shared.RoleHR) && p.CanSeeBranch(item.BranchID):
		return item, nil
	default:
		return Item{}, &shared.NotFoundError{Resource: "payroll_item", Reason: "not visible"}
	}
}
