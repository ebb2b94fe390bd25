// Package statements serves the financial statements built by reports,
// caching results in Redis and collapsing concurrent identical builds.
package statements

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/resolver"
)

// EntrySource reads posted entries.
type EntrySource interface {
	EntriesForStatement(ctx context.Context, filter ledger.StatementFilter) ([]ledger.Entry, error)
}

// ChartSource reads the chart of accounts.
type ChartSource interface {
	List(ctx context.Context, filter accounts.ListFilter) ([]accounts.Account, error)
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
}

// Query carries the common statement parameters.
type Query struct {
	Basis       reports.Basis
	Period      reports.Range
	AsOf        time.Time
	ResidenceID string
}

func (q Query) filter(base ledger.StatementFilter) ledger.StatementFilter {
	base.ResidenceID = q.ResidenceID
	base.CashOnly = q.Basis == reports.BasisCash
	return base
}

// Service builds statements.
type Service struct {
	entries  EntrySource
	chart    ChartSource
	cache    *Cache
	registry *resolver.Registry
	logger   *slog.Logger
	group    singleflight.Group
	now      func() time.Time
}

// NewService constructs the statement service. cache may be nil.
func NewService(entries EntrySource, chart ChartSource, cache *Cache, registry *resolver.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{entries: entries, chart: chart, cache: cache, registry: registry, logger: logger, now: time.Now}
}

// TrialBalance lists gross movements per account up to q.AsOf.
func (s *Service) TrialBalance(ctx context.Context, q Query) (reports.TrialBalance, error) {
	return cached(ctx, s, []string{"tb", string(q.Basis), q.AsOf.Format(reports.DateLayout), q.ResidenceID},
		func(ctx context.Context) (reports.TrialBalance, error) {
			chart, err := s.loadChart(ctx)
			if err != nil {
				return reports.TrialBalance{}, err
			}
			entries, err := s.entries.EntriesForStatement(ctx, q.filter(ledger.StatementFilter{To: q.AsOf}))
			if err != nil {
				return reports.TrialBalance{}, fmt.Errorf("statements: trial balance entries: %w", err)
			}
			return reports.BuildTrialBalance(chart, entries, q.AsOf, q.Basis), nil
		})
}

// IncomeStatement builds the profit and loss for q.Period.
func (s *Service) IncomeStatement(ctx context.Context, q Query) (reports.IncomeStatement, error) {
	return cached(ctx, s, []string{"is", string(q.Basis), q.Period.Label, q.ResidenceID},
		func(ctx context.Context) (reports.IncomeStatement, error) {
			chart, err := s.loadChart(ctx)
			if err != nil {
				return reports.IncomeStatement{}, err
			}
			entries, err := s.entries.EntriesForStatement(ctx, q.filter(q.Period.Filter()))
			if err != nil {
				return reports.IncomeStatement{}, fmt.Errorf("statements: income statement entries: %w", err)
			}
			return reports.BuildIncomeStatement(chart, entries, q.Basis, q.Period), nil
		})
}

// Drilldown lists the entries behind one income statement account for month
// (YYYY-MM).
func (s *Service) Drilldown(ctx context.Context, q Query, code, month string) (reports.Drilldown, error) {
	rng, err := reports.ParsePeriod(month, s.now())
	if err != nil {
		return reports.Drilldown{}, err
	}
	account, err := s.chart.GetByCode(ctx, code)
	if err != nil {
		return reports.Drilldown{}, err
	}
	return cached(ctx, s, []string{"drill", string(q.Basis), code, rng.Label, q.ResidenceID},
		func(ctx context.Context) (reports.Drilldown, error) {
			chart, err := s.loadChart(ctx)
			if err != nil {
				return reports.Drilldown{}, err
			}
			filter := q.filter(rng.Filter())
			if q.Basis != reports.BasisCash {
				filter.AccountCodes = chart.Descendants(code)
			}
			entries, err := s.entries.EntriesForStatement(ctx, filter)
			if err != nil {
				return reports.Drilldown{}, fmt.Errorf("statements: drilldown entries: %w", err)
			}
			key := ""
			if len(rng.Periods) == 1 {
				key = rng.Periods[0].String()
			}
			return reports.BuildDrilldown(chart, account, entries, q.Basis, key), nil
		})
}

// BalanceSheet builds the position as of q.AsOf.
func (s *Service) BalanceSheet(ctx context.Context, q Query) (reports.BalanceSheet, error) {
	return cached(ctx, s, []string{"bs", string(q.Basis), q.AsOf.Format(reports.DateLayout), q.ResidenceID},
		func(ctx context.Context) (reports.BalanceSheet, error) {
			chart, err := s.loadChart(ctx)
			if err != nil {
				return reports.BalanceSheet{}, err
			}
			entries, err := s.entries.EntriesForStatement(ctx, q.filter(ledger.StatementFilter{To: q.AsOf}))
			if err != nil {
				return reports.BalanceSheet{}, fmt.Errorf("statements: balance sheet entries: %w", err)
			}
			return reports.BuildBalanceSheet(chart, entries, q.AsOf, q.Basis), nil
		})
}

// CashFlow buckets cash movements inside q.Period and reconciles them with
// opening and closing cash.
func (s *Service) CashFlow(ctx context.Context, q Query) (reports.CashFlow, error) {
	return cached(ctx, s, []string{"cf", string(q.Basis), q.Period.Label, q.ResidenceID},
		func(ctx context.Context) (reports.CashFlow, error) {
			chart, err := s.loadChart(ctx)
			if err != nil {
				return reports.CashFlow{}, err
			}
			var in reports.CashFlowInput
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() (err error) {
				in.Opening, err = s.entries.EntriesForStatement(gctx, ledger.StatementFilter{
					To: q.Period.From.AddDate(0, 0, -1), ResidenceID: q.ResidenceID,
				})
				return err
			})
			g.Go(func() (err error) {
				in.Period, err = s.entries.EntriesForStatement(gctx, ledger.StatementFilter{
					From: q.Period.From, To: q.Period.To, ResidenceID: q.ResidenceID, CashOnly: true,
				})
				return err
			})
			g.Go(func() (err error) {
				in.Closing, err = s.entries.EntriesForStatement(gctx, ledger.StatementFilter{
					To: q.Period.To, ResidenceID: q.ResidenceID,
				})
				return err
			})
			if err := g.Wait(); err != nil {
				return reports.CashFlow{}, fmt.Errorf("statements: cash flow entries: %w", err)
			}
			return reports.BuildCashFlow(chart, in, q.Basis, q.Period), nil
		})
}

// Warm builds the current month statements and today's positions for both
// bases so the first readers hit the cache.
func (s *Service) Warm(ctx context.Context) error {
	now := s.now()
	rng, err := reports.ParsePeriod("", now)
	if err != nil {
		return err
	}
	asOf := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for _, basis := range []reports.Basis{reports.BasisAccrual, reports.BasisCash} {
		q := Query{Basis: basis, Period: rng, AsOf: asOf}
		if _, err := s.TrialBalance(ctx, q); err != nil {
			return err
		}
		if _, err := s.IncomeStatement(ctx, q); err != nil {
			return err
		}
		if _, err := s.BalanceSheet(ctx, q); err != nil {
			return err
		}
		if _, err := s.CashFlow(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) loadChart(ctx context.Context) (reports.Chart, error) {
	all, err := s.chart.List(ctx, accounts.ListFilter{})
	if err != nil {
		return reports.Chart{}, fmt.Errorf("statements: load chart: %w", err)
	}
	return reports.NewChart(all, s.registry.Code(resolver.RoleMiscExpense)), nil
}

// cached serves a statement from the cache, sharing one build between
// concurrent callers asking for the same key.
func cached[T any](ctx context.Context, s *Service, parts []string, build func(context.Context) (T, error)) (T, error) {
	var zero T
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("statement cache version unavailable", slog.Any("error", err))
		return build(ctx)
	}
	// The shared build outlives any single caller giving up.
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		var out T
		err := s.cache.FetchJSON(detached, key, &out, func(ctx context.Context) (any, error) {
			return build(ctx)
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
