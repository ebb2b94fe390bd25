package expenses

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

// Service coordinates expense lifecycle and postings.
type Service struct {
	repo   Repository
	ledger *ledger.Service
	rules  *posting.Rules
	audit  audit.Recorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the expense service.
func NewService(repo Repository, ledgerSvc *ledger.Service, rules *posting.Rules, recorder audit.Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledgerSvc, rules: rules, audit: recorder, logger: logger, now: time.Now}
}

// Get returns a live expense.
func (s *Service) Get(ctx context.Context, id int64) (Expense, error) {
	return s.repo.Get(ctx, id)
}

// List returns expenses matching filter with the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Expense, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// Create records an expense. A pending expense accrues a payable; a paid one
// posts straight against the payment account.
func (s *Service) Create(ctx context.Context, in CreateInput) (Result, error) {
	status := in.PaymentStatus
	if status == "" {
		status = StatusPending
	}
	method := strings.TrimSpace(in.PaymentMethod)
	if status == StatusPaid && method == "" {
		return Result{}, shared.FieldErrors{"paymentMethod": "is required when the expense is paid"}
	}
	now := s.now().UTC()
	date := now
	if in.ExpenseDate != "" {
		parsed, err := time.Parse("2006-01-02", in.ExpenseDate)
		if err != nil {
			return Result{}, shared.FieldErrors{"expenseDate": "must be YYYY-MM-DD"}
		}
		date = parsed
	}
	actor, _ := shared.ActorFromContext(ctx)
	expense := Expense{
		ExpenseNo:     shared.NewBusinessNumber("EXP", now),
		ResidenceID:   in.ResidenceID,
		Category:      strings.TrimSpace(in.Category),
		Description:   in.Description,
		Amount:        shared.Round2(in.Amount),
		PaymentStatus: status,
		PaymentMethod: method,
		ExpenseDate:   time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		Accrued:       status == StatusPending,
		CreatedBy:     actor.ID,
	}
	if status == StatusPaid {
		expense.PaidAt = &now
		expense.PaidBy = actor.ID
	}

	var out Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository, w ledger.Writer) error {
		created, err := tx.Insert(ctx, expense)
		if err != nil {
			return fmt.Errorf("expenses: insert: %w", err)
		}
		ev := s.event(created, created.ExpenseDate, actor.ID)
		var req ledger.PostingInput
		if created.Accrued {
			req, err = s.rules.ExpenseAccrued(ctx, ev)
		} else {
			req, err = s.rules.ExpensePaidDirect(ctx, ev)
		}
		if err != nil {
			return err
		}
		posted, err := s.ledger.Post(ctx, w, req)
		if err != nil {
			return err
		}
		out = Result{Expense: created, Transaction: posted}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	s.ledger.Committed(ctx)

	entry := audit.NewEntry(ctx, audit.ActionCreate, ResourceType, idString(out.Expense.ID))
	entry.After = out.Expense
	entry.Details = map[string]any{"transactionNo": out.Transaction.TransactionNo, "accrued": out.Expense.Accrued}
	s.audit.Record(ctx, entry)
	return out, nil
}

// Approve pays a pending expense. An accrued expense settles its payable;
// otherwise the expense posts directly against the payment account.
func (s *Service) Approve(ctx context.Context, id int64, in ApproveInput) (Result, error) {
	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		return Result{}, shared.FieldErrors{"paymentMethod": "is required"}
	}
	paidAt := s.now().UTC()
	if in.PaidAt != "" {
		parsed, err := time.Parse("2006-01-02", in.PaidAt)
		if err != nil {
			return Result{}, shared.FieldErrors{"paidAt": "must be YYYY-MM-DD"}
		}
		paidAt = parsed
	}
	actor, _ := shared.ActorFromContext(ctx)

	var (
		before Expense
		out    Result
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository, w ledger.Writer) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.PaymentStatus != StatusPending {
			return ErrInvalidStatus
		}
		before = current

		current.PaymentMethod = method
		ev := s.event(current, paidAt, actor.ID)
		var req ledger.PostingInput
		if current.Accrued {
			req, err = s.rules.ExpenseSettled(ctx, ev)
		} else {
			req, err = s.rules.ExpensePaidDirect(ctx, ev)
		}
		if err != nil {
			return err
		}
		posted, err := s.ledger.Post(ctx, w, req)
		if err != nil {
			return err
		}
		current.PaymentStatus = StatusPaid
		current.PaidAt = &paidAt
		current.PaidBy = actor.ID
		updated, err := tx.Update(ctx, current)
		if err != nil {
			return fmt.Errorf("expenses: update: %w", err)
		}
		out = Result{Expense: updated, Transaction: posted}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	s.ledger.Committed(ctx)

	entry := audit.NewEntry(ctx, audit.ActionApprove, ResourceType, idString(id))
	entry.Before = before
	entry.After = out.Expense
	entry.Details = map[string]any{"transactionNo": out.Transaction.TransactionNo, "paymentMethod": method}
	s.audit.Record(ctx, entry)
	return out, nil
}

// Delete soft deletes the expense and removes every ledger entry it produced.
func (s *Service) Delete(ctx context.Context, id int64) (DeleteResult, error) {
	var out DeleteResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository, w ledger.Writer) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		cascade, err := s.ledger.DeleteCascade(ctx, w, current.Ref())
		if err != nil {
			return err
		}
		if err := tx.SoftDelete(ctx, id, s.now().UTC()); err != nil {
			return err
		}
		out = DeleteResult{Expense: current, Ledger: cascade}
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	s.ledger.Committed(ctx)

	entry := audit.NewEntry(ctx, audit.ActionDelete, ResourceType, idString(id))
	entry.Before = out.Expense
	entry.Details = out.Ledger
	s.audit.Record(ctx, entry)
	s.logger.Info("expense deleted",
		slog.Int64("id", id),
		slog.Int("entries_deleted", out.Ledger.EntriesDeleted),
		slog.Int("transactions_deleted", out.Ledger.TransactionsDeleted))
	return out, nil
}

func (s *Service) event(e Expense, date time.Time, actor string) posting.Event {
	description := e.Description
	if description == "" {
		description = fmt.Sprintf("Expense %s (%s)", e.ExpenseNo, e.Category)
	}
	return posting.Event{
		SourceModel:   ledger.ModelExpense,
		SourceID:      idString(e.ID),
		Reference:     e.ExpenseNo,
		Description:   description,
		ResidenceID:   e.ResidenceID,
		Category:      e.Category,
		PaymentMethod: e.PaymentMethod,
		Amount:        e.Amount,
		Date:          date,
		AccrualDate:   e.ExpenseDate,
		Actor:         actor,
	}
}
