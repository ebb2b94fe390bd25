package maintenance

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

// Service drives maintenance requests through finance review.
type Service struct {
	repo   Repository
	ledger *ledger.Service
	rules  *posting.Rules
	audit  audit.Recorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the maintenance service.
func NewService(repo Repository, ledgerSvc *ledger.Service, rules *posting.Rules, recorder audit.Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledgerSvc, rules: rules, audit: recorder, logger: logger, now: time.Now}
}

// Get returns a request.
func (s *Service) Get(ctx context.Context, id int64) (Request, error) {
	return s.repo.Get(ctx, id)
}

// List returns requests matching filter with the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Request, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// Create opens a pending request. Nothing is posted until finance approves.
func (s *Service) Create(ctx context.Context, in CreateInput) (Request, error) {
	actor, _ := shared.ActorFromContext(ctx)
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = DefaultCategory
	}
	var created Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository, _ ledger.Writer) error {
		var err error
		created, err = tx.Insert(ctx, Request{
			RequestNo:     shared.NewBusinessNumber("MNT", s.now()),
			ResidenceID:   in.ResidenceID,
			Title:         strings.TrimSpace(in.Title),
			Category:      category,
			Amount:        shared.Round2(in.Amount),
			FinanceStatus: StatusPending,
			CreatedBy:     actor.ID,
		})
		return err
	})
	if err != nil {
		return Request{}, fmt.Errorf("maintenance: create: %w", err)
	}
	entry := audit.NewEntry(ctx, audit.ActionCreate, ResourceType, idString(created.ID))
	entry.After = created
	s.audit.Record(ctx, entry)
	return created, nil
}

// FinanceApprove accrues the maintenance cost against accounts payable.
func (s *Service) FinanceApprove(ctx context.Context, id int64) (Result, error) {
	now := s.now().UTC()
	return s.transition(ctx, id, audit.ActionApprove, func(ctx context.Context, r *Request, actor string) (*ledger.PostingInput, error) {
		if r.FinanceStatus != StatusPending {
			return nil, ErrNotPending
		}
		req, err := s.rules.MaintenanceApproved(ctx, s.event(*r, now, actor))
		if err != nil {
			return nil, err
		}
		r.FinanceStatus = StatusApproved
		r.ApprovedBy = actor
		r.ApprovedAt = &now
		return &req, nil
	})
}

// Reject closes a pending request without posting.
func (s *Service) Reject(ctx context.Context, id int64, in RejectInput) (Result, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return Result{}, shared.FieldErrors{"reason": "is required"}
	}
	return s.transition(ctx, id, audit.ActionReject, func(_ context.Context, r *Request, _ string) (*ledger.PostingInput, error) {
		if r.FinanceStatus != StatusPending {
			return nil, ErrNotPending
		}
		r.FinanceStatus = StatusRejected
		r.RejectionReason = reason
		return nil, nil
	})
}

// Pay settles the payable of an approved request.
func (s *Service) Pay(ctx context.Context, id int64, in PayInput) (Result, error) {
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
	return s.transition(ctx, id, audit.ActionPay, func(ctx context.Context, r *Request, actor string) (*ledger.PostingInput, error) {
		if r.FinanceStatus != StatusApproved {
			return nil, ErrNotApproved
		}
		r.PaymentMethod = method
		req, err := s.rules.MaintenancePaid(ctx, s.event(*r, paidAt, actor))
		if err != nil {
			return nil, err
		}
		r.FinanceStatus = StatusPaid
		r.PaidAt = &paidAt
		return &req, nil
	})
}

type transitionFunc func(ctx context.Context, r *Request, actor string) (*ledger.PostingInput, error)

// transition locks the request, applies fn, posts what fn returns and saves
// the request in one unit of work.
func (s *Service) transition(ctx context.Context, id int64, action string, fn transitionFunc) (Result, error) {
	actor, _ := shared.ActorFromContext(ctx)
	var (
		before Request
		out    Result
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository, w ledger.Writer) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		before = current
		req, err := fn(ctx, &current, actor.ID)
		if err != nil {
			return err
		}
		if req != nil {
			posted, err := s.ledger.Post(ctx, w, *req)
			if err != nil {
				return err
			}
			out.Transaction = &posted
		}
		out.Request, err = tx.Update(ctx, current)
		if err != nil {
			return fmt.Errorf("maintenance: update: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if out.Transaction != nil {
		s.ledger.Committed(ctx)
	}

	entry := audit.NewEntry(ctx, action, ResourceType, idString(id))
	entry.Before = before
	entry.After = out.Request
	if out.Transaction != nil {
		entry.Details = map[string]any{"transactionNo": out.Transaction.TransactionNo}
	}
	s.audit.Record(ctx, entry)
	return out, nil
}

func (s *Service) event(r Request, date time.Time, actor string) posting.Event {
	return posting.Event{
		SourceModel:   ledger.ModelMaintenance,
		SourceID:      idString(r.ID),
		Reference:     r.RequestNo,
		Description:   fmt.Sprintf("Maintenance %s: %s", r.RequestNo, r.Title),
		ResidenceID:   r.ResidenceID,
		Category:      r.Category,
		PaymentMethod: r.PaymentMethod,
		Amount:        r.Amount,
		Date:          date,
		AccrualDate:   date,
		Actor:         actor,
	}
}
