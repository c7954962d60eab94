// Package billing issues sealed invoices and receipts and verifies scanned codes.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thetaxjournal/accountsvedartha/internal/ledger"
	"github.com/thetaxjournal/accountsvedartha/internal/seal"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
	"github.com/thetaxjournal/accountsvedartha/internal/store"
	"github.com/thetaxjournal/accountsvedartha/internal/tax"
)

const sealDateLayout = "2006-01-02"

// Service handles billing business logic.
type Service struct {
	store  store.Store
	sealer *seal.Sealer
	signer *seal.Signer
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service. signer may be nil.
func NewService(st store.Store, sealer *seal.Sealer, signer *seal.Signer, logger *slog.Logger) *Service {
	if sealer == nil {
		sealer = seal.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, sealer: sealer, signer: signer, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// UpsertBranch validates and stores a branch.
func (s *Service) UpsertBranch(ctx context.Context, b Branch) (Branch, error) {
	b.InvoicePrefix = strings.ToUpper(strings.TrimSpace(b.InvoicePrefix))
	if err := shared.ValidateStruct(b); err != nil {
		return Branch{}, err
	}
	return b, store.Put(ctx, s.store, store.Branches, b.ID, b)
}

// Branches lists every branch.
func (s *Service) Branches(ctx context.Context) ([]Branch, error) {
	return store.List[Branch](ctx, s.store, store.Branches)
}

// Branch returns one branch.
func (s *Service) Branch(ctx context.Context, id string) (Branch, error) {
	return store.Get[Branch](ctx, s.store, store.Branches, id)
}

// UpsertClient validates and stores a client; its branch must exist.
func (s *Service) UpsertClient(ctx context.Context, c Client) (Client, error) {
	if err := shared.ValidateStruct(c); err != nil {
		return Client{}, err
	}
	if _, err := store.Get[Branch](ctx, s.store, store.Branches, c.BranchID); err != nil {
		return Client{}, err
	}
	return c, store.Put(ctx, s.store, store.Clients, c.ID, c)
}

// Client returns one client.
func (s *Service) Client(ctx context.Context, id string) (Client, error) {
	return store.Get[Client](ctx, s.store, store.Clients, id)
}

// Clients lists clients, optionally restricted to one branch.
func (s *Service) Clients(ctx context.Context, branchID string) ([]Client, error) {
	all, err := store.List[Client](ctx, s.store, store.Clients)
	if err != nil || branchID == "" {
		return all, err
	}
	out := all[:0]
	for _, c := range all {
		if c.BranchID == branchID {
			out = append(out, c)
		}
	}
	return out, nil
}

// CreateInvoice computes totals, numbers, seals and stores an invoice.
func (s *Service) CreateInvoice(ctx context.Context, in InvoiceInput) (Invoice, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Invoice{}, err
	}
	var inv Invoice
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		branch, err := store.Get[Branch](ctx, tx, store.Branches, in.BranchID)
		if err != nil {
			return err
		}
		client, err := store.Get[Client](ctx, tx, store.Clients, in.ClientID)
		if err != nil {
			return err
		}
		pos := in.PlaceOfSupply
		if strings.TrimSpace(pos) == "" {
			pos = client.State
		}
		totals, err := tax.ComputeTotals(in.Items, branch.State, pos)
		if err != nil {
			return err
		}
		number, err := nextInvoiceNumber(ctx, tx, branch, in.Date)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		inv = Invoice{
			ID:            uuid.NewString(),
			Number:        number,
			BranchID:      branch.ID,
			ClientID:      client.ID,
			Date:          in.Date,
			DueAt:         in.DueAt,
			SupplierState: branch.State,
			PlaceOfSupply: pos,
			Items:         in.Items,
			Totals:        totals,
			Status:        StatusIssued,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if inv.DueAt.IsZero() {
			inv.DueAt = in.Date.AddDate(0, 0, 30)
		}
		inv.SealCode, inv.SealSignature, err = s.seal(map[string]any{
			"type":       "invoice",
			"id":         inv.ID,
			"number":     inv.Number,
			"grandTotal": inv.Totals.GrandTotal,
			"date":       inv.Date.Format(sealDateLayout),
		})
		if err != nil {
			return err
		}
		return store.Put(ctx, tx, store.Invoices, inv.ID, inv)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.logger.Info("invoice issued", slog.String("number", inv.Number), slog.Float64("grand_total", inv.Totals.GrandTotal))
	return inv, nil
}

// invoiceSequence is the last number issued for a branch in a fiscal year.
type invoiceSequence struct {
	BranchID   string `json:"branchId"`
	FiscalYear string `json:"fiscalYear"`
	Last       int    `json:"last"`
}

// nextInvoiceNumber yields PREFIX/FY/NNNN, sequenced per branch and fiscal year.
// The counter document is rewritten in the caller's transaction, so two
// concurrent issuers for one branch conflict on it instead of sharing a number.
func nextInvoiceNumber(ctx context.Context, tx store.Store, branch Branch, date time.Time) (string, error) {
	fy := shared.FiscalYearOf(date)
	id := branch.ID + "_" + fy.Label()
	seq, err := store.Get[invoiceSequence](ctx, tx, store.Sequences, id)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		seq = invoiceSequence{BranchID: branch.ID, FiscalYear: fy.Label()}
		// Seed from invoices issued before the counter existed.
		invoices, err := store.List[Invoice](ctx, tx, store.Invoices)
		if err != nil {
			return "", err
		}
		for _, inv := range invoices {
			if inv.BranchID == branch.ID && fy.Contains(inv.Date) {
				seq.Last++
			}
		}
	case err != nil:
		return "", err
	}
	seq.Last++
	if err := store.Put(ctx, tx, store.Sequences, id, seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%04d", branch.InvoicePrefix, fy.Label(), seq.Last), nil
}

// RecordPayment stores a sealed receipt and updates the invoice balance.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (Payment, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Payment{}, err
	}
	var p Payment
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		inv, err := store.Get[Invoice](ctx, tx, store.Invoices, in.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusVoid {
			return shared.NewValidationError("invoiceId", "invoice %s is void", inv.Number)
		}
		outstanding := decimal.NewFromFloat(inv.Totals.GrandTotal).Sub(decimal.NewFromFloat(inv.AmountPaid))
		amount := decimal.NewFromFloat(in.Amount)
		if amount.GreaterThan(outstanding) {
			return shared.NewValidationError("amount", "exceeds outstanding %s on %s", outstanding.StringFixed(2), inv.Number)
		}

		p = Payment{
			ID:            uuid.NewString(),
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.Number,
			BranchID:      inv.BranchID,
			ClientID:      inv.ClientID,
			Amount:        in.Amount,
			Date:          in.Date,
			Method:        in.Method,
			Note:          in.Note,
			CreatedAt:     s.now().UTC(),
		}
		p.SealCode, p.SealSignature, err = s.seal(map[string]any{
			"type":      "receipt",
			"id":        p.ID,
			"invoiceId": p.InvoiceID,
			"amount":    p.Amount,
			"date":      p.Date.Format(sealDateLayout),
		})
		if err != nil {
			return err
		}

		paid := decimal.NewFromFloat(inv.AmountPaid).Add(amount)
		inv.AmountPaid = paid.InexactFloat64()
		if paid.Equal(decimal.NewFromFloat(inv.Totals.GrandTotal)) {
			inv.Status = StatusPaid
		} else {
			inv.Status = StatusPartiallyPaid
		}
		inv.UpdatedAt = p.CreatedAt
		if err := store.Put(ctx, tx, store.Payments, p.ID, p); err != nil {
			return err
		}
		return store.Put(ctx, tx, store.Invoices, inv.ID, inv)
	})
	if err != nil {
		return Payment{}, err
	}
	s.logger.Info("payment recorded", slog.String("invoice", p.InvoiceNumber), slog.Float64("amount", p.Amount))
	return p, nil
}

// VoidInvoice marks an unpaid invoice void; void invoices leave the ledger.
func (s *Service) VoidInvoice(ctx context.Context, id string) (Invoice, error) {
	var inv Invoice
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		inv, err = store.Get[Invoice](ctx, tx, store.Invoices, id)
		if err != nil {
			return err
		}
		if inv.AmountPaid > 0 {
			return shared.NewValidationError("status", "invoice %s has payments and cannot be voided", inv.Number)
		}
		inv.Status = StatusVoid
		inv.UpdatedAt = s.now().UTC()
		return store.Put(ctx, tx, store.Invoices, inv.ID, inv)
	})
	return inv, err
}

// Invoice returns one invoice.
func (s *Service) Invoice(ctx context.Context, id string) (Invoice, error) {
	return store.Get[Invoice](ctx, s.store, store.Invoices, id)
}

// Payment returns one payment.
func (s *Service) Payment(ctx context.Context, id string) (Payment, error) {
	return store.Get[Payment](ctx, s.store, store.Payments, id)
}

// Invoices lists invoices matching f, oldest first.
func (s *Service) Invoices(ctx context.Context, f ledger.Filter) ([]Invoice, error) {
	all, err := store.List[Invoice](ctx, s.store, store.Invoices)
	if err != nil {
		return nil, err
	}
	out := make([]Invoice, 0, len(all))
	for _, inv := range all {
		if matches(f, inv.BranchID, inv.ClientID) {
			out = append(out, inv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Payments lists payments matching f, oldest first.
func (s *Service) Payments(ctx context.Context, f ledger.Filter) ([]Payment, error) {
	all, err := store.List[Payment](ctx, s.store, store.Payments)
	if err != nil {
		return nil, err
	}
	out := make([]Payment, 0, len(all))
	for _, p := range all {
		if matches(f, p.BranchID, p.ClientID) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// LedgerInvoices adapts non-void invoices for statement building.
func (s *Service) LedgerInvoices(ctx context.Context, f ledger.Filter) ([]ledger.Invoice, error) {
	invoices, err := s.Invoices(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.Status == StatusVoid {
			continue
		}
		out = append(out, ledger.Invoice{
			ID:         inv.ID,
			Number:     inv.Number,
			ClientID:   inv.ClientID,
			BranchID:   inv.BranchID,
			Date:       inv.Date,
			TaxAmount:  inv.Totals.TaxAmount,
			GrandTotal: inv.Totals.GrandTotal,
		})
	}
	return out, nil
}

// LedgerPayments adapts payments for statement building.
func (s *Service) LedgerPayments(ctx context.Context, f ledger.Filter) ([]ledger.Payment, error) {
	payments, err := s.Payments(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Payment, 0, len(payments))
	for _, p := range payments {
		out = append(out, ledger.Payment{
			ID:        p.ID,
			Reference: p.InvoiceNumber,
			ClientID:  p.ClientID,
			BranchID:  p.BranchID,
			Date:      p.Date,
			Amount:    p.Amount,
		})
	}
	return out, nil
}

func matches(f ledger.Filter, branchID, clientID string) bool {
	if f.BranchID != "" && f.BranchID != branchID {
		return false
	}
	return f.ClientID == "" || f.ClientID == clientID
}

// CalculateAging groups outstanding invoices by days past due.
func (s *Service) CalculateAging(ctx context.Context, f ledger.Filter, asOf time.Time) (AgingBucket, error) {
	invoices, err := s.Invoices(ctx, f)
	if err != nil {
		return AgingBucket{}, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	var bucket AgingBucket
	for _, inv := range invoices {
		if inv.Status == StatusPaid || inv.Status == StatusVoid {
			continue
		}
		due := inv.Outstanding()
		days := int(asOf.Sub(inv.DueAt).Hours() / 24)
		switch {
		case days <= 0:
			bucket.Current += due
		case days <= 30:
			bucket.Bucket30 += due
		case days <= 60:
			bucket.Bucket60 += due
		case days <= 90:
			bucket.Bucket90 += due
		default:
			bucket.Bucket120 += due
		}
	}
	return bucket, nil
}

func (s *Service) seal(record map[string]any) (code, signature string, err error) {
	code, err = s.sealer.Seal(record)
	if err != nil {
		return "", "", fmt.Errorf("billing: seal: %w", err)
	}
	signature, err = s.signer.Sign(code)
	if err != nil {
		return "", "", err
	}
	return code, signature, nil
}
