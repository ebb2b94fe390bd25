package income

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/posting"
	"github.com/odyssey-erp/estate-ledger/internal/audit"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// Service coordinates other income receipts and refunds.
type Service struct {
	repo   Repository
	ledger *ledger.Service
	rules  *posting.Rules
	audit  audit.Recorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the income service.
func NewService(repo Repository, ledgerSvc *ledger.Service, rules *posting.Rules, recorder audit.Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledgerSvc, rules: rules, audit: recorder, logger: logger, now: time.Now}
}

// Get returns an income record.
func (s *Service) Get(ctx context.Context, id int64) (OtherIncome, error) {
	return s.repo.Get(ctx, id)
}

// List returns income records matching filter with the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]OtherIncome, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// Create records income. Received income posts immediately; pending income
// posts when it is received.
func (s *Service) Create(ctx context.Context, in CreateInput) (Result, error) {
	status := in.PaymentStatus
	if status == "" {
		status = StatusPending
	}
	method := strings.TrimSpace(in.PaymentMethod)
	if status == StatusReceived && method == "" {
		return Result{}, shared.FieldErrors{"paymentMethod": "is required when the income is received"}
	}
	now := s.now().UTC()
	date, err := dateOr(in.IncomeDate, "incomeDate", now)
	if err != nil {
		return Result{}, err
	}
	actor, _ := shared.ActorFromContext(ctx)
	record := OtherIncome{
		IncomeNo:      shared.NewBusinessNumber("INC", now),
		ResidenceID:   in.ResidenceID,
		Category:      strings.TrimSpace(in.Category),
		Description:   in.Description,
		Amount:        shared.Round2(in.Amount),
		PaymentStatus: status,
		PaymentMethod: method,
		IncomeDate:    date,
		CreatedBy:     actor.ID,
	}
	if status == StatusReceived {
		record.ReceivedAt = &now
	}

	var out Result
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository, w ledger.Writer) error {
		created, err := tx.Insert(ctx, record)
		if err != nil {
			return fmt.Errorf("income: insert: %w", err)
		}
		out.Income = created
		if created.PaymentStatus != StatusReceived {
			return nil
		}
		req, err := s.rules.IncomeReceived(ctx, s.event(created, created.IncomeDate, actor.ID))
		if err != nil {
			return err
		}
		posted, err := s.ledger.Post(ctx, w, req)
		if err != nil {
			return err
		}
		out.Transaction = &posted
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if out.Transaction != nil {
		s.ledger.Committed(ctx)
	}

	entry := audit.NewEntry(ctx, audit.ActionCreate, ResourceType, idString(out.Income.ID))
	entry.After = out.Income
	s.audit.Record(ctx, entry)
	return out, nil
}

// Receive marks pending income as received and posts the receipt.
func (s *Service) Receive(ctx context.Context, id int64, in ReceiveInput) (Result, error) {
	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		return Result{}, shared.FieldErrors{"paymentMethod": "is required"}
	}
	receivedAt, err := dateOr(in.ReceivedAt, "receivedAt", s.now().UTC())
	if err != nil {
		return Result{}, err
	}
	actor, _ := shared.ActorFromContext(ctx)

	var (
		before OtherIncome
		out    Result
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository, w ledger.Writer) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.PaymentStatus != StatusPending {
			return ErrNotPending
		}
		before = current
		current.PaymentMethod = method
		req, err := s.rules.IncomeReceived(ctx, s.event(current, receivedAt, actor.ID))
		if err != nil {
			return err
		}
		posted, err := s.ledger.Post(ctx, w, req)
		if err != nil {
			return err
		}
		current.PaymentStatus = StatusReceived
		current.ReceivedAt = &receivedAt
		updated, err := tx.Update(ctx, current)
		if err != nil {
			return fmt.Errorf("income: update: %w", err)
		}
		out = Result{Income: updated, Transaction: &posted}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	s.ledger.Committed(ctx)

	entry := audit.NewEntry(ctx, audit.ActionReceive, ResourceType, idString(id))
	entry.Before = before
	entry.After = out.Income
	entry.Details = map[string]any{"transactionNo": out.Transaction.TransactionNo, "paymentMethod": method}
	s.audit.Record(ctx, entry)
	return out, nil
}

// Refund returns part or all of received income. The refund is capped at the
// amount not yet refunded; the record becomes Refunded once nothing remains.
func (s *Service) Refund(ctx context.Context, id int64, in RefundInput) (Result, error) {
	amount := shared.Round2(in.Amount)
	if !amount.IsPositive() {
		return Result{}, shared.FieldErrors{"amount": "must be greater than 0"}
	}
	actor, _ := shared.ActorFromContext(ctx)
	refundedAt := s.now().UTC()

	var (
		before OtherIncome
		out    Result
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository, w ledger.Writer) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.PaymentStatus != StatusReceived {
			return ErrNotReceived
		}
		if amount.GreaterThan(current.Refundable()) {
			return ErrRefundExceeds
		}
		before = current

		ev := s.event(current, refundedAt, actor.ID)
		ev.Amount = amount
		ev.Description = fmt.Sprintf("Refund of %s", current.IncomeNo)
		if in.Reason != "" {
			ev.Description += ": " + in.Reason
		}
		if method := strings.TrimSpace(in.PaymentMethod); method != "" {
			ev.PaymentMethod = method
		}
		req, err := s.rules.IncomeRefunded(ctx, ev)
		if err != nil {
			return err
		}
		posted, err := s.ledger.Post(ctx, w, req)
		if err != nil {
			return err
		}
		current.RefundedAmount = current.RefundedAmount.Add(amount)
		if !current.Refundable().IsPositive() {
			current.PaymentStatus = StatusRefunded
		}
		updated, err := tx.Update(ctx, current)
		if err != nil {
			return fmt.Errorf("income: update: %w", err)
		}
		out = Result{Income: updated, Transaction: &posted}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	s.ledger.Committed(ctx)

	entry := audit.NewEntry(ctx, audit.ActionRefund, ResourceType, idString(id))
	entry.Before = before
	entry.After = out.Income
	entry.Details = map[string]any{"amount": amount.StringFixed(2), "reason": in.Reason, "transactionNo": out.Transaction.TransactionNo}
	s.audit.Record(ctx, entry)
	return out, nil
}

func (s *Service) event(i OtherIncome, date time.Time, actor string) posting.Event {
	description := i.Description
	if description == "" {
		description = fmt.Sprintf("Income %s (%s)", i.IncomeNo, i.Category)
	}
	return posting.Event{
		SourceModel:   ledger.ModelOtherIncome,
		SourceID:      idString(i.ID),
		Reference:     i.IncomeNo,
		Description:   description,
		ResidenceID:   i.ResidenceID,
		Category:      i.Category,
		PaymentMethod: i.PaymentMethod,
		Amount:        i.Amount,
		Date:          date,
		AccrualDate:   i.IncomeDate,
		Actor:         actor,
	}
}

func dateOr(raw, field string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return time.Date(fallback.Year(), fallback.Month(), fallback.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, shared.FieldErrors{field: "must be YYYY-MM-DD"}
	}
	return parsed, nil
}
