package billing

import (
	"time"

	"github.com/thetaxjournal/accountsvedartha/internal/tax"
)

// Branch is a supplying office; its State is the supplier jurisdiction.
type Branch struct {
	ID            string `json:"id" validate:"required"`
	Name          string `json:"name" validate:"required"`
	State         string `json:"state" validate:"required"`
	GSTIN         string `json:"gstin,omitempty"`
	Address       string `json:"address,omitempty"`
	InvoicePrefix string `json:"invoicePrefix" validate:"required,alphanum,max=8"`
}

// Client is a billed customer attached to a branch.
type Client struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	BranchID string `json:"branchId" validate:"required"`
	State    string `json:"state" validate:"required"`
	GSTIN    string `json:"gstin,omitempty"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

// InvoiceStatus enumerates invoice statuses.
type InvoiceStatus string

const (
	StatusIssued        InvoiceStatus = "ISSUED"
	StatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	StatusPaid          InvoiceStatus = "PAID"
	StatusVoid          InvoiceStatus = "VOID"
)

// Invoice is an issued tax invoice.
type Invoice struct {
	ID            string         `json:"id"`
	Number        string         `json:"number"`
	BranchID      string         `json:"branchId"`
	ClientID      string         `json:"clientId"`
	Date          time.Time      `json:"date"`
	DueAt         time.Time      `json:"dueAt"`
	SupplierState string         `json:"supplierState"`
	PlaceOfSupply string         `json:"placeOfSupply"`
	Items         []tax.LineItem `json:"items"`
	Totals        tax.Totals     `json:"totals"`
	AmountPaid    float64        `json:"amountPaid"`
	Status        InvoiceStatus  `json:"status"`
	SealCode      string         `json:"sealCode"`
	SealSignature string         `json:"sealSignature,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Outstanding is the unpaid part of the grand total.
func (inv Invoice) Outstanding() float64 {
	return inv.Totals.GrandTotal - inv.AmountPaid
}

// Payment is a receipt recorded against an invoice.
type Payment struct {
	ID            string    `json:"id"`
	InvoiceID     string    `json:"invoiceId"`
	InvoiceNumber string    `json:"invoiceNumber"`
	BranchID      string    `json:"branchId"`
	ClientID      string    `json:"clientId"`
	Amount        float64   `json:"amount"`
	Date          time.Time `json:"date"`
	Method        string    `json:"method,omitempty"`
	Note          string    `json:"note,omitempty"`
	SealCode      string    `json:"sealCode"`
	SealSignature string    `json:"sealSignature,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// InvoiceInput creates an invoice. An empty PlaceOfSupply falls back to the
// client's state.
type InvoiceInput struct {
	BranchID      string         `json:"branchId" validate:"required"`
	ClientID      string         `json:"clientId" validate:"required"`
	Date          time.Time      `json:"date" validate:"required"`
	DueAt         time.Time      `json:"dueAt"`
	PlaceOfSupply string         `json:"placeOfSupply"`
	Items         []tax.LineItem `json:"items" validate:"required,min=1,dive"`
}

// PaymentInput records a payment.
type PaymentInput struct {
	InvoiceID string    `json:"invoiceId" validate:"required"`
	Amount    float64   `json:"amount" validate:"gt=0"`
	Date      time.Time `json:"date" validate:"required"`
	Method    string    `json:"method" validate:"omitempty,oneof=cash cheque neft upi card"`
	Note      string    `json:"note" validate:"max=280"`
}

// AgingBucket summarises outstanding totals by days past due.
type AgingBucket struct {
	Current   float64 `json:"current"`
	Bucket30  float64 `json:"bucket30"`
	Bucket60  float64 `json:"bucket60"`
	Bucket90  float64 `json:"bucket90"`
	Bucket120 float64 `json:"bucket120"`
}

// Verdict is the outcome of checking a scanned code against the store.
type Verdict string

const (
	// VerdictVerified means the record exists and the sealed figures agree.
	VerdictVerified Verdict = "verified"
	// VerdictMismatch means the record exists but the figures disagree.
	VerdictMismatch Verdict = "mismatch"
	// VerdictUnknown means the code or record could not be found. It does not
	// imply tampering.
	VerdictUnknown Verdict = "unknown"
)

// Verification reports how a sealed code compares to the live record.
type Verification struct {
	Verdict      Verdict        `json:"verdict"`
	Type         string         `json:"type,omitempty"`
	ID           string         `json:"id,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	SealedAmount float64        `json:"sealedAmount,omitempty"`
	StoredAmount float64        `json:"storedAmount,omitempty"`
	Reissued     bool           `json:"reissued,omitempty"`
	SealedAt     time.Time      `json:"sealedAt,omitempty"`
	Record       map[string]any `json:"record,omitempty"`
}
