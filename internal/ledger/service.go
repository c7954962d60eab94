package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// Filter narrows the documents a statement is built from. Empty fields match all.
type Filter struct {
	ClientID string
	BranchID string
}

// ScopedTo narrows f to what p may see. Clients only see their own documents and
// branch-bound staff only their branch; employees see no billing data.
func (f Filter) ScopedTo(p shared.Principal) (Filter, error) {
	switch p.Role {
	case shared.RoleAdmin:
	case shared.RoleClient:
		if f.ClientID != "" && f.ClientID != p.Client.ClientID {
			return Filter{}, fmt.Errorf("%w: client %s", shared.ErrForbidden, f.ClientID)
		}
		f.ClientID = p.Client.ClientID
	case shared.RoleBranchManager, shared.RoleAccountant, shared.RoleHR:
		if p.Branch == nil {
			break
		}
		if f.BranchID != "" && f.BranchID != p.Branch.BranchID {
			return Filter{}, fmt.Errorf("%w: branch %s", shared.ErrForbidden, f.BranchID)
		}
		f.BranchID = p.Branch.BranchID
	default:
		return Filter{}, fmt.Errorf("%w: role %s", shared.ErrForbidden, p.Role)
	}
	return f, nil
}

func (f Filter) key(fy string) string {
	return fy + "|" + f.BranchID + "|" + f.ClientID
}

// Source loads the documents a statement is built from.
type Source interface {
	LedgerInvoices(ctx context.Context, f Filter) ([]Invoice, error)
	LedgerPayments(ctx context.Context, f Filter) ([]Payment, error)
}

// Statement is a full fiscal-year report.
type Statement struct {
	Summary Summary       `json:"summary"`
	Entries []Entry       `json:"entries"`
	Monthly []MonthTotals `json:"monthly"`
}

// Service builds statements from a Source, collapsing identical concurrent requests.
type Service struct {
	source Source
	group  singleflight.Group
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(source Source, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, logger: logger}
}

// Statement loads invoices and payments in parallel and builds the report for the
// fiscal year. Entries are chronological.
func (s *Service) Statement(ctx context.Context, fiscalYearLabel string, f Filter) (Statement, error) {
	fy, err := shared.ParseFiscalYear(fiscalYearLabel)
	if err != nil {
		return Statement{}, err
	}
	label := fy.Label()

	// The shared build outlives any single caller; each caller still stops
	// waiting when its own context ends.
	buildCtx := context.WithoutCancel(ctx)
	results := s.group.DoChan(f.key(label), func() (any, error) {
		return s.build(buildCtx, label, f)
	})
	select {
	case <-ctx.Done():
		return Statement{}, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return Statement{}, res.Err
		}
		if res.Shared {
			s.logger.Debug("ledger statement shared", slog.String("fiscal_year", label))
		}
		return res.Val.(Statement), nil
	}
}

func (s *Service) build(ctx context.Context, label string, f Filter) (Statement, error) {
	var (
		invoices []Invoice
		payments []Payment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invoices, err = s.source.LedgerInvoices(gctx, f)
		if err != nil {
			return fmt.Errorf("ledger: load invoices: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		payments, err = s.source.LedgerPayments(gctx, f)
		if err != nil {
			return fmt.Errorf("ledger: load payments: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Statement{}, err
	}

	entries, err := BuildStatement(invoices, payments, label)
	if err != nil {
		return Statement{}, err
	}
	monthly, err := MonthlyRollup(invoices, payments, label)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Summary: Summarize(label, entries),
		Entries: entries,
		Monthly: monthly,
	}, nil
}
