package billing

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thetaxjournal/accountsvedartha/internal/ledger"
	"github.com/thetaxjournal/accountsvedartha/internal/platform/httpx"
	"github.com/thetaxjournal/accountsvedartha/internal/render"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// Handler exposes billing endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	keys    httpx.KeyClaimer
}

// NewHandler builds a Handler. Routes expect an authenticated principal in context.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// WithIdempotency makes POST /invoices and POST /payments honour the
// Idempotency-Key header.
func (h *Handler) WithIdempotency(keys httpx.KeyClaimer) *Handler {
	h.keys = keys
	return h
}

var issuers = []shared.Role{shared.RoleBranchManager, shared.RoleAccountant}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireRoles())
		r.Get("/branches", h.listBranches)
		r.Post("/branches", h.upsertBranch)
	})
	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireRoles(issuers...))
		r.Get("/clients", h.listClients)
		r.Post("/clients", h.upsertClient)
		r.With(httpx.Idempotent(h.keys, "invoices", h.logger)).Post("/invoices", h.createInvoice)
		r.Post("/invoices/{id}/void", h.voidInvoice)
		r.With(httpx.Idempotent(h.keys, "payments", h.logger)).Post("/payments", h.recordPayment)
		r.Get("/aging", h.aging)
	})
	r.Get("/invoices", h.listInvoices)
	r.Get("/invoices/{id}", h.showInvoice)
	r.Get("/invoices/{id}/pdf", h.invoicePDF)
	r.Get("/payments", h.listPayments)
	r.Get("/payments/{id}", h.showPayment)
	r.Get("/payments/{id}/pdf", h.receiptPDF)
	r.Post("/seal/verify", h.verify)
}

func (h *Handler) listBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.service.Branches(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, branches)
}

func (h *Handler) upsertBranch(w http.ResponseWriter, r *http.Request) {
	var in Branch
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	branch, err := h.service.UpsertBranch(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, branch)
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	clients, err := h.service.Clients(r.Context(), f.BranchID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, clients)
}

func (h *Handler) upsertClient(w http.ResponseWriter, r *http.Request) {
	var in Client
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := requireBranch(r, in.BranchID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	client, err := h.service.UpsertClient(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var in InvoiceInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := requireBranch(r, in.BranchID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.CreateInvoice(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) voidInvoice(w http.ResponseWriter, r *http.Request) {
	if _, err := h.visibleInvoice(r); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.VoidInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var in PaymentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if in.InvoiceID != "" {
		inv, err := h.service.Invoice(r.Context(), in.InvoiceID)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if err := requireBranch(r, inv.BranchID); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	payment, err := h.service.RecordPayment(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf := time.Now()
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		asOf, err = time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.RespondError(w, shared.NewValidationError("asOf", "expected YYYY-MM-DD"))
			return
		}
	}
	bucket, err := h.service.CalculateAging(r.Context(), f, asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bucket)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoices, err := h.service.Invoices(r.Context(), f)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) showInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.visibleInvoice(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) invoicePDF(w http.ResponseWriter, r *http.Request) {
	inv, err := h.visibleInvoice(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	branch, err := h.service.Branch(r.Context(), inv.BranchID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.writePDF(w, inv.Number, InvoiceSlip(branch, inv))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payments, err := h.service.Payments(r.Context(), f)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) showPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.visiblePayment(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) receiptPDF(w http.ResponseWriter, r *http.Request) {
	p, err := h.visiblePayment(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	branch, err := h.service.Branch(r.Context(), p.BranchID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.writePDF(w, "receipt-"+p.ID, ReceiptSlip(branch, p))
}

type verifyRequest struct {
	Code string `json:"code" validate:"required"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var in verifyRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.ValidateStruct(in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.Verify(r.Context(), in.Code)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) writePDF(w http.ResponseWriter, name string, slip render.Slip) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", sanitize(name)+".pdf"))
	if err := render.Write(w, slip); err != nil {
		h.logger.Error("render slip", slog.String("document", name), slog.Any("error", err))
	}
}

func (h *Handler) filter(r *http.Request) (ledger.Filter, error) {
	f := ledger.Filter{
		BranchID: r.URL.Query().Get("branchId"),
		ClientID: r.URL.Query().Get("clientId"),
	}
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		return ledger.Filter{}, shared.ErrForbidden
	}
	return f.ScopedTo(p)
}

func (h *Handler) visibleInvoice(r *http.Request) (Invoice, error) {
	inv, err := h.service.Invoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return Invoice{}, err
	}
	if !visible(r, inv.BranchID, inv.ClientID) {
		return Invoice{}, &shared.NotFoundError{Resource: "invoice", Reason: "not visible"}
	}
	return inv, nil
}

func (h *Handler) visiblePayment(r *http.Request) (Payment, error) {
	p, err := h.service.Payment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return Payment{}, err
	}
	if !visible(r, p.BranchID, p.ClientID) {
		return Payment{}, &shared.NotFoundError{Resource: "payment", Reason: "not visible"}
	}
	return p, nil
}

// visible hides documents outside the caller's scope as if they did not exist.
func visible(r *http.Request, branchID, clientID string) bool {
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		return false
	}
	if p.Role == shared.RoleClient {
		return p.Client.ClientID == clientID
	}
	return p.CanSeeBranch(branchID)
}

func requireBranch(r *http.Request, branchID string) error {
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok || (branchID != "" && !p.CanSeeBranch(branchID)) {
		return fmt.Errorf("%w: branch %s", shared.ErrForbidden, branchID)
	}
	return nil
}

func sanitize(name string) string {
	out := []rune(name)
	for i, c := range out {
		if c == '/' || c == '\\' || c == '"' {
			out[i] = '-'
		}
	}
	return string(out)
}
