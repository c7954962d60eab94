package billing

import (
	"context"
	"errors"
	"math"

	"github.com/thetaxjournal/accountsvedartha/internal/payroll"
	"github.com/thetaxjournal/accountsvedartha/internal/seal"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
	"github.com/thetaxjournal/accountsvedartha/internal/store"
)

// stored is the part of any sealed record Verify compares against.
type stored struct {
	amount    float64
	code      string
	signature string
}

// Verify unseals code and compares it with the live record it names. Codes that are
// not ours, or whose record is gone, are unknown rather than tampered.
func (s *Service) Verify(ctx context.Context, code string) (Verification, error) {
	opened, ok := seal.Open(code)
	if !ok {
		return Verification{Verdict: VerdictUnknown, Reason: "not a sealed code"}, nil
	}
	return s.VerifyOpened(ctx, code, opened)
}

// VerifyOpened checks an already unsealed code.
func (s *Service) VerifyOpened(ctx context.Context, code string, opened seal.Opened) (Verification, error) {
	payload := opened.Record
	v := Verification{
		Type:     payload.String("type"),
		ID:       payload.String("id"),
		SealedAt: opened.SealedAt,
		Record:   payload,
	}

	var amountField string
	switch v.Type {
	case "invoice":
		amountField = "grandTotal"
	case "receipt":
		amountField = "amount"
	case "payslip":
		amountField = "net"
	default:
		v.Verdict, v.Reason = VerdictUnknown, "unsupported document type"
		return v, nil
	}
	sealedAmount, ok := payload.Float(amountField)
	if v.ID == "" || !ok {
		v.Verdict, v.Reason = VerdictUnknown, "sealed record is incomplete"
		return v, nil
	}
	v.SealedAmount = sealedAmount

	rec, err := s.lookup(ctx, v.Type, v.ID)
	if errors.Is(err, shared.ErrNotFound) {
		v.Verdict, v.Reason = VerdictUnknown, "record not found"
		return v, nil
	}
	if err != nil {
		return Verification{}, err
	}
	v.StoredAmount = rec.amount
	v.Reissued = rec.code != code

	switch {
	case math.Abs(rec.amount-sealedAmount) > 0.005:
		v.Verdict, v.Reason = VerdictMismatch, "amount differs from record"
	case !v.Reissued && rec.signature != "" && !s.signer.Verify(rec.code, rec.signature):
		v.Verdict, v.Reason = VerdictMismatch, "stored signature does not match"
	default:
		v.Verdict = VerdictVerified
	}
	return v, nil
}

func (s *Service) lookup(ctx context.Context, kind, id string) (stored, error) {
	switch kind {
	case "invoice":
		inv, err := store.Get[Invoice](ctx, s.store, store.Invoices, id)
		if err != nil {
			return stored{}, err
		}
		if inv.Status == StatusVoid {
			return stored{}, &shared.NotFoundError{Resource: "invoice", Reason: "invoice is void"}
		}
		return stored{amount: inv.Totals.GrandTotal, code: inv.SealCode, signature: inv.SealSignature}, nil
	case "receipt":
		p, err := store.Get[Payment](ctx, s.store, store.Payments, id)
		if err != nil {
			return stored{}, err
		}
		return stored{amount: p.Amount, code: p.SealCode, signature: p.SealSignature}, nil
	default:
		item, err := store.Get[payroll.Item](ctx, s.store, store.PayrollItems, id)
		if err != nil {
			return stored{}, err
		}
		return stored{amount: item.Net, code: item.SealCode, signature: item.SealSignature}, nil
	}
}
