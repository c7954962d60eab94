package ledger

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

func ledgerRouter(t *testing.T, src Source, role shared.Role, scope string) http.Handler {
	t.Helper()
	p, err := shared.NewPrincipal(role, "u", scope)
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithPrincipal(req.Context(), p)))
		})
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	NewHandler(logger, NewService(src, logger)).MountRoutes(r)
	return r
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandlerStatementFormats(t *testing.T) {
	invoices, payments := fixtures()
	h := ledgerRouter(t, &fakeSource{invoices: invoices, payments: payments}, shared.RoleAccountant, "")

	rec := get(h, "/ledger/2024-2025")
	require.Equal(t, http.StatusOK, rec.Code)
	var st Statement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.Len(t, st.Entries, 6)
	require.Equal(t, "i1", st.Entries[0].DocumentID)

	rec = get(h, "/ledger/2024-2025?order=desc")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.Equal(t, "i3", st.Entries[0].DocumentID)

	rec = get(h, "/ledger/2024-2025.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()
	label, err := book.GetCellValue("Statement", "B1")
	require.NoError(t, err)
	require.Equal(t, "2024-2025", label)

	rec = get(h, "/ledger/2024-2025.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("Date,Type,Reference,Amount,Balance")))

	rec = get(h, "/ledger/2024-2025/monthly")
	require.Equal(t, http.StatusOK, rec.Code)
	var months []MonthTotals
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &months))
	require.Len(t, months, 4)

	require.Equal(t, http.StatusBadRequest, get(h, "/ledger/2024-2025.pdf").Code)
	require.Equal(t, http.StatusBadRequest, get(h, "/ledger/someday").Code)
}

func TestHandlerScopesClients(t *testing.T) {
	src := &fakeSource{}
	h := ledgerRouter(t, src, shared.RoleClient, "c9")

	require.Equal(t, http.StatusOK, get(h, "/ledger/2024-2025").Code)
	require.Equal(t, "c9", src.lastFilter.ClientID)
	require.Equal(t, http.StatusForbidden, get(h, "/ledger/2024-2025?clientId=c1").Code)

	employee := ledgerRouter(t, src, shared.RoleEmployee, "e1")
	require.Equal(t, http.StatusForbidden, get(employee, "/ledger/2024-2025").Code)
}

func TestFilterScopedTo(t *testing.T) {
	manager, err := shared.NewPrincipal(shared.RoleBranchManager, "m", "blr")
	require.NoError(t, err)
	f, err := Filter{}.ScopedTo(manager)
	require.NoError(t, err)
	require.Equal(t, "blr", f.BranchID)
	_, err = Filter{BranchID: "mum"}.ScopedTo(manager)
	require.ErrorIs(t, err, shared.ErrForbidden)

	admin, err := shared.NewPrincipal(shared.RoleAdmin, "a", "")
	require.NoError(t, err)
	f, err = Filter{BranchID: "mum"}.ScopedTo(admin)
	require.NoError(t, err)
	require.Equal(t, "mum", f.BranchID)
}
