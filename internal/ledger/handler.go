package ledger

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/thetaxjournal/accountsvedartha/internal/platform/httpx"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler exposes fiscal-year statements.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes. {fy} may carry a .xlsx or .csv suffix to
// select an export format.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ledger/{fy}", h.statement)
	r.Get("/ledger/{fy}/monthly", h.monthly)
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	fy, format := splitFormat(chi.URLParam(r, "fy"))
	st, ok := h.load(w, r, fy)
	if !ok {
		return
	}
	entries := st.Entries
	if r.URL.Query().Get("order") == "desc" {
		entries = Reverse(entries)
	}

	switch format {
	case "xlsx":
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "ledger-"+st.Summary.FiscalYear+".xlsx"))
		if err := WriteXLSX(w, st.Summary, entries, st.Monthly); err != nil {
			h.logger.Error("ledger xlsx export", slog.String("fiscal_year", fy), slog.Any("error", err))
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "ledger-"+st.Summary.FiscalYear+".csv"))
		if err := WriteCSV(w, entries); err != nil {
			h.logger.Error("ledger csv export", slog.String("fiscal_year", fy), slog.Any("error", err))
		}
	case "":
		st.Entries = entries
		httpx.JSON(w, http.StatusOK, st)
	default:
		httpx.RespondError(w, shared.NewValidationError("format", "unsupported export %q", format))
	}
}

func (h *Handler) monthly(w http.ResponseWriter, r *http.Request) {
	st, ok := h.load(w, r, chi.URLParam(r, "fy"))
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, st.Monthly)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request, fy string) (Statement, bool) {
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: no principal", httpx.ErrUnauthorized))
		return Statement{}, false
	}
	f, err := Filter{
		BranchID: r.URL.Query().Get("branchId"),
		ClientID: r.URL.Query().Get("clientId"),
	}.ScopedTo(p)
	if err != nil {
		httpx.RespondError(w, err)
		return Statement{}, false
	}
	st, err := h.service.Statement(r.Context(), fy, f)
	if err != nil {
		httpx.RespondError(w, err)
		return Statement{}, false
	}
	return st, true
}

func splitFormat(raw string) (fy, format string) {
	if i := strings.LastIndexByte(raw, '.'); i >= 0 {
		return raw[:i], strings.ToLower(raw[i+1:])
	}
	return raw, ""
}
