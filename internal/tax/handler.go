package tax

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thetaxjournal/accountsvedartha/internal/platform/httpx"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// ComputeRequest is the body of POST /tax/compute.
type ComputeRequest struct {
	SupplierState string     `json:"supplierState" validate:"required"`
	PlaceOfSupply string     `json:"placeOfSupply" validate:"required"`
	Items         []LineItem `json:"items" validate:"required,min=1,dive"`
}

// ComputeResponse adds the grand total in words to the computed totals.
type ComputeResponse struct {
	Totals
	AmountInWords string `json:"amountInWords"`
}

// Handler exposes the stateless tax calculator.
type Handler struct{}

// NewHandler builds a Handler.
func NewHandler() *Handler { return &Handler{} }

// MountRoutes registers tax routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/tax/compute", h.compute)
}

func (h *Handler) compute(w http.ResponseWriter, r *http.Request) {
	var in ComputeRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.ValidateStruct(in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	totals, err := ComputeTotals(in.Items, in.SupplierState, in.PlaceOfSupply)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ComputeResponse{Totals: totals, AmountInWords: RupeesInWords(totals.GrandTotal)})
}
