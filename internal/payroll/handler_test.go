package payroll

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

type fakeEnqueuer struct {
	got []RunInput
}

func (f *fakeEnqueuer) EnqueuePayrollRun(_ context.Context, in RunInput) (string, error) {
	f.got = append(f.got, in)
	return "task-1", nil
}

func serve(t *testing.T, h *Handler, role shared.Role, scope, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	p, err := shared.NewPrincipal(role, "user-"+string(role), scope)
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithPrincipal(req.Context(), p)))
		})
	})
	h.MountRoutes(r)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func newTestHandler(t *testing.T, enqueuer Enqueuer) *Handler {
	t.Helper()
	svc, _ := newTestService(seededStore(t, true), MissingFullPay)
	return NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, enqueuer, "Vedartha Payroll")
}

func TestHandlerRunAndPayslip(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := serve(t, h, shared.RoleHR, "", http.MethodPost, "/payroll/runs", `{"month":"2024-04"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, 55695.0, result.Run.TotalNet)
	require.Equal(t, "user-hr", result.Run.RequestedBy)

	rec = serve(t, h, shared.RoleHR, "", http.MethodPost, "/payroll/runs", `{"month":"2024-04"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"field":"corrective"`)

	rec = serve(t, h, shared.RoleEmployee, "E1", http.MethodGet, "/payroll/items/2024-04_E1/pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = serve(t, h, shared.RoleEmployee, "E1", http.MethodGet, "/payroll/items/2024-04_E2", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, h, shared.RoleEmployee, "E1", http.MethodPost, "/payroll/runs", `{"month":"2024-05"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, h, shared.RoleHR, "", http.MethodPost, "/attendance", `{"employeeId":"E1","month":"2024-04","days":{"7":"absent"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"field":"attendance"`)
}

func TestHandlerAsyncRun(t *testing.T) {
	rec := serve(t, newTestHandler(t, nil), shared.RoleHR, "", http.MethodPost, "/payroll/runs?async=true", `{"month":"2024-04"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	enqueuer := &fakeEnqueuer{}
	rec = serve(t, newTestHandler(t, enqueuer), shared.RoleHR, "", http.MethodPost, "/payroll/runs?async=1", `{"month":"2024-04","corrective":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.JSONEq(t, `{"taskId":"task-1","month":"2024-04"}`, rec.Body.String())
	require.Equal(t, []RunInput{{Month: "2024-04", Corrective: true, RequestedBy: "user-hr"}}, enqueuer.got)
}

func TestHandlerSettingsAreAdminOnly(t *testing.T) {
	h := newTestHandler(t, nil)
	body := `{"pfThreshold":15000,"pfPercentage":12,"esiThreshold":21000,"esiPercentage":0.75,"ptSlab":15000,"ptAmount":200}`

	rec := serve(t, h, shared.RoleHR, "", http.MethodPut, "/payroll/settings", body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, h, shared.RoleAdmin, "", http.MethodPut, "/payroll/settings", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var s Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	require.Greater(t, s.Version, 1)

	rec = serve(t, h, shared.RoleHR, "", http.MethodGet, "/payroll/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerScopesAttendanceAndRunsByBranch(t *testing.T) {
	h := newTestHandler(t, nil)
	ctx := context.Background()
	for _, emp := range []Employee{
		{ID: "EA", Name: "Kiran", BranchID: "B1", Status: EmploymentActive, Compensation: Compensation{Basic: 20000}},
		{ID: "EB", Name: "Latha", BranchID: "B2", Status: EmploymentActive, Compensation: Compensation{Basic: 20000}},
	} {
		_, err := h.service.UpsertEmployee(ctx, emp)
		require.NoError(t, err)
	}

	rec := serve(t, h, shared.RoleBranchManager, "B1", http.MethodPost, "/attendance", `{"employeeId":"EB","month":"2024-04","days":{"1":"absent"}}`)
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = serve(t, h, shared.RoleBranchManager, "B1", http.MethodPost, "/attendance", `{"employeeId":"EA","month":"2024-04","days":{"1":"absent"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(t, h, shared.RoleHR, "B1", http.MethodPost, "/payroll/runs", `{"month":"2024-04"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	_, err := h.service.Run(ctx, "2024-04")
	require.ErrorIs(t, err, shared.ErrNotFound)

	rec = serve(t, h, shared.RoleHR, "", http.MethodPost, "/payroll/runs", `{"month":"2024-04"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(t, h, shared.RoleHR, "B1", http.MethodGet, "/payroll/runs/2024-04", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = serve(t, h, shared.RoleAdmin, "", http.MethodGet, "/payroll/runs/2024-04", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerUnlockAttendanceForCorrection(t *testing.T) {
	h := newTestHandler(t, nil)
	_, err := h.service.UpsertEmployee(context.Background(), Employee{ID: "EB", Name: "Latha", BranchID: "B2", Status: EmploymentActive, Compensation: Compensation{Basic: 20000}})
	require.NoError(t, err)
	_, err = h.service.MarkAttendance(context.Background(), AttendanceInput{EmployeeID: "EB", Month: "2024-04", Days: map[int]Status{1: StatusAbsent}})
	require.NoError(t, err)

	rec := serve(t, h, shared.RoleHR, "", http.MethodPost, "/payroll/runs", `{"month":"2024-04"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(t, h, shared.RoleHR, "B1", http.MethodPost, "/attendance/2024-04/EB/unlock", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, h, shared.RoleBranchManager, "B2", http.MethodPost, "/attendance/2024-04/EB/unlock", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, h, shared.RoleHR, "B2", http.MethodPost, "/attendance/2024-04/EB/unlock", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"locked":false`)

	rec = serve(t, h, shared.RoleHR, "B2", http.MethodPost, "/attendance", `{"employeeId":"EB","month":"2024-04","days":{"1":"present"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
