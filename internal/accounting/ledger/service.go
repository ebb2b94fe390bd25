package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// Writer performs ledger writes inside the caller's database transaction.
type Writer interface {
	InsertTransaction(ctx context.Context, tx Transaction) (Transaction, error)
	InsertEntries(ctx context.Context, entries []Entry) ([]Entry, error)
	LinkEntries(ctx context.Context, transactionID int64, entryIDs []int64) error
	DeleteEntriesBySource(ctx context.Context, ref SourceRef) (deleted int, transactionIDs []int64, err error)
	CountEntries(ctx context.Context, transactionID int64) (int, error)
	DeleteTransaction(ctx context.Context, transactionID int64) error
}

// Reader serves queries over committed postings.
type Reader interface {
	EntriesForStatement(ctx context.Context, filter StatementFilter) ([]Entry, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, int, error)
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
}

// Store is a Reader that can open write units of work.
type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(ctx context.Context, w Writer) error) error
}

// PostingObserver receives the outcome of every posting attempt.
type PostingObserver interface {
	ObservePosting(source string, err error)
}

// ChangeNotifier is told when committed ledger data changed.
type ChangeNotifier interface {
	LedgerChanged(ctx context.Context)
}

// Service is the single posting gate of the ledger.
type Service struct {
	store    Store
	observer PostingObserver
	notifier ChangeNotifier
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises Service.
type Option func(*Service)

// WithObserver installs a posting observer.
func WithObserver(o PostingObserver) Option {
	return func(s *Service) { s.observer = o }
}

// WithNotifier installs the notifier called after committed changes.
func WithNotifier(n ChangeNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNow overrides the clock used for transaction numbers, typically in tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the ledger service. store may be nil when the caller
// only posts through externally managed writers.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Post validates the input and writes the header, entries and link-back on w.
func (s *Service) Post(ctx context.Context, w Writer, in PostingInput) (tx Transaction, err error) {
	defer func() {
		if s.observer != nil {
			s.observer.ObservePosting(in.Source, err)
		}
	}()
	if err := in.Validate(); err != nil {
		return Transaction{}, err
	}
	date := truncateDay(in.Date)
	header := Transaction{
		TransactionNo: shared.NewBusinessNumber("TXN", s.now()),
		Date:          date,
		Description:   in.Description,
		Reference:     in.Reference,
		ResidenceID:   in.ResidenceID,
		Type:          in.Type,
		CreatedBy:     in.CreatedBy,
	}
	for _, line := range in.Lines {
		if line.Account.IsCash() {
			header.CashMovement = true
			break
		}
	}
	header, err = w.InsertTransaction(ctx, header)
	if err != nil {
		return Transaction{}, err
	}
	entries := make([]Entry, 0, len(in.Lines))
	for _, line := range in.Lines {
		description := line.Description
		if description == "" {
			description = in.Description
		}
		entries = append(entries, Entry{
			AccountID:    line.Account.ID,
			AccountCode:  line.Account.Code,
			AccountName:  line.Account.Name,
			AccountType:  line.Account.Type,
			Debit:        line.Debit,
			Credit:       line.Credit,
			Description:  description,
			Source:       in.Source,
			SourceRef:    in.SourceRef,
			Status:       StatusPosted,
			ResidenceID:  in.ResidenceID,
			Date:         date,
			Period:       PeriodFor(line.Metadata, date),
			Metadata:     line.Metadata,
			CashMovement: header.CashMovement,
		})
	}
	entries, err = w.InsertEntries(ctx, entries)
	if err != nil {
		return Transaction{}, err
	}
	ids := make([]int64, len(entries))
	for i := range entries {
		ids[i] = entries[i].ID
		entries[i].TransactionID = header.ID
		entries[i].TransactionNo = header.TransactionNo
	}
	if err := w.LinkEntries(ctx, header.ID, ids); err != nil {
		return Transaction{}, err
	}
	header.EntryIDs = ids
	header.Entries = entries
	return header, nil
}

// DeleteCascade removes every entry produced by ref and then every
// transaction left without entries.
func (s *Service) DeleteCascade(ctx context.Context, w Writer, ref SourceRef) (CascadeResult, error) {
	if !ref.Valid() {
		return CascadeResult{}, shared.FieldErrors{"sourceRef": "model and id are required"}
	}
	deleted, txIDs, err := w.DeleteEntriesBySource(ctx, ref)
	if err != nil {
		return CascadeResult{}, err
	}
	result := CascadeResult{EntriesDeleted: deleted}
	for _, id := range txIDs {
		remaining, err := w.CountEntries(ctx, id)
		if err != nil {
			return CascadeResult{}, err
		}
		if remaining > 0 {
			continue
		}
		if err := w.DeleteTransaction(ctx, id); err != nil {
			return CascadeResult{}, err
		}
		result.TransactionsDeleted++
	}
	return result, nil
}

// PostManual writes a manual journal in its own unit of work.
func (s *Service) PostManual(ctx context.Context, in PostingInput) (Transaction, error) {
	if in.Source == "" {
		in.Source = SourceManual
	}
	if in.Type == "" {
		in.Type = "manual"
	}
	var out Transaction
	err := s.store.WithTx(ctx, func(ctx context.Context, w Writer) error {
		tx, err := s.Post(ctx, w, in)
		if err != nil {
			return err
		}
		out = tx
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.Committed(ctx)
	return out, nil
}

// Committed tells the notifier that a unit of work touching the ledger committed.
func (s *Service) Committed(ctx context.Context) {
	if s.notifier != nil {
		s.notifier.LedgerChanged(ctx)
	}
}

// EntriesForStatement proxies the reader.
func (s *Service) EntriesForStatement(ctx context.Context, filter StatementFilter) ([]Entry, error) {
	return s.store.EntriesForStatement(ctx, filter)
}

// ListTransactions proxies the reader.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.store.ListTransactions(ctx, filter)
}

// GetTransaction proxies the reader.
func (s *Service) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
