package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/platform/db"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore is the Postgres backed Store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs the store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// WithTx runs fn with a writer bound to a RepeatableRead transaction.
func (s *PGStore) WithTx(ctx context.Context, fn func(ctx context.Context, w Writer) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewPGWriter(tx))
	})
}

type pgWriter struct {
	tx pgx.Tx
}

// NewPGWriter binds a Writer to an open pgx transaction so ledger writes share
// the caller's unit of work.
func NewPGWriter(tx pgx.Tx) Writer {
	return &pgWriter{tx: tx}
}

func (w *pgWriter) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	err := w.tx.QueryRow(ctx, `INSERT INTO ledger_transactions (transaction_no, date, description, reference, residence_id, type, cash_movement, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`,
		t.TransactionNo, t.Date, t.Description, t.Reference, t.ResidenceID, t.Type, t.CashMovement, t.CreatedBy).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return Transaction{}, fmt.Errorf("ledger: insert transaction: %w", err)
	}
	return t, nil
}

func (w *pgWriter) InsertEntries(ctx context.Context, entries []Entry) ([]Entry, error) {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		meta, err := EncodeMetadata(e.Metadata)
		if err != nil {
			return nil, err
		}
		err = w.tx.QueryRow(ctx, `INSERT INTO ledger_entries (account_id, account_code, account_name, account_type, debit, credit, description,
    source, source_model, source_id, status, residence_id, date, period_year, period_month, metadata)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16) RETURNING id, created_at`,
			e.AccountID, e.AccountCode, e.AccountName, string(e.AccountType), shared.MoneyArg(e.Debit), shared.MoneyArg(e.Credit), e.Description,
			e.Source, e.SourceRef.Model, e.SourceRef.ID, e.Status, e.ResidenceID, e.Date, e.Period.Year, e.Period.Month, meta,
		).Scan(&e.ID, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("ledger: insert entry %s: %w", e.AccountCode, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (w *pgWriter) LinkEntries(ctx context.Context, transactionID int64, entryIDs []int64) error {
	tag, err := w.tx.Exec(ctx, `UPDATE ledger_entries SET transaction_id = $1 WHERE id = ANY($2)`, transactionID, entryIDs)
	if err != nil {
		return fmt.Errorf("ledger: link entries: %w", err)
	}
	if int(tag.RowsAffected()) != len(entryIDs) {
		return fmt.Errorf("ledger: link entries: linked %d of %d", tag.RowsAffected(), len(entryIDs))
	}
	return nil
}

func (w *pgWriter) DeleteEntriesBySource(ctx context.Context, ref SourceRef) (int, []int64, error) {
	rows, err := w.tx.Query(ctx, `DELETE FROM ledger_entries WHERE source_model = $1 AND source_id = $2 RETURNING transaction_id`, ref.Model, ref.ID)
	if err != nil {
		return 0, nil, fmt.Errorf("ledger: delete entries: %w", err)
	}
	defer rows.Close()
	deleted := 0
	seen := make(map[int64]struct{})
	var txIDs []int64
	for rows.Next() {
		var txID *int64
		if err := rows.Scan(&txID); err != nil {
			return 0, nil, err
		}
		deleted++
		if txID == nil {
			continue
		}
		if _, ok := seen[*txID]; !ok {
			seen[*txID] = struct{}{}
			txIDs = append(txIDs, *txID)
		}
	}
	return deleted, txIDs, rows.Err()
}

func (w *pgWriter) CountEntries(ctx context.Context, transactionID int64) (int, error) {
	var n int
	err := w.tx.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE transaction_id = $1`, transactionID).Scan(&n)
	return n, err
}

func (w *pgWriter) DeleteTransaction(ctx context.Context, transactionID int64) error {
	_, err := w.tx.Exec(ctx, `DELETE FROM ledger_transactions WHERE id = $1`, transactionID)
	if err != nil {
		return fmt.Errorf("ledger: delete transaction: %w", err)
	}
	return nil
}

const entryColumns = `e.id, COALESCE(e.transaction_id, 0), COALESCE(t.transaction_no, ''), e.account_id, e.account_code, e.account_name, e.account_type,
    e.debit::text, e.credit::text, e.description, e.source, e.source_model, e.source_id, e.status, e.residence_id, e.date,
    e.period_year, e.period_month, e.metadata, COALESCE(t.cash_movement, FALSE), e.created_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e             Entry
		accountType   string
		debit, credit string
		meta          []byte
	)
	err := row.Scan(&e.ID, &e.TransactionID, &e.TransactionNo, &e.AccountID, &e.AccountCode, &e.AccountName, &accountType,
		&debit, &credit, &e.Description, &e.Source, &e.SourceRef.Model, &e.SourceRef.ID, &e.Status, &e.ResidenceID, &e.Date,
		&e.Period.Year, &e.Period.Month, &meta, &e.CashMovement, &e.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	e.AccountType = accounts.AccountType(accountType)
	if e.Debit, err = shared.ParseMoney(debit); err != nil {
		return Entry{}, err
	}
	if e.Credit, err = shared.ParseMoney(credit); err != nil {
		return Entry{}, err
	}
	if e.Metadata, err = DecodeMetadata(meta); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// EntriesForStatement returns posted entries matching filter ordered by date then id.
func (s *PGStore) EntriesForStatement(ctx context.Context, filter StatementFilter) ([]Entry, error) {
	where, args := statementPredicate(filter)
	query := `SELECT ` + entryColumns + ` FROM ledger_entries e LEFT JOIN ledger_transactions t ON t.id = e.transaction_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY e.date, e.id"
	return queryEntries(ctx, s.pool, query, args...)
}

func statementPredicate(filter StatementFilter) ([]string, []any) {
	where := []string{"e.status = 'posted'"}
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if !filter.From.IsZero() {
		add("e.date >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("e.date <= $%d", filter.To)
	}
	if len(filter.AccountCodes) > 0 {
		add("e.account_code = ANY($%d)", filter.AccountCodes)
	}
	if filter.ResidenceID != "" {
		add("e.residence_id = $%d", filter.ResidenceID)
	}
	if filter.CashOnly {
		where = append(where, "t.cash_movement")
	}
	if len(filter.Periods) > 0 {
		keys := make([]int32, len(filter.Periods))
		for i, p := range filter.Periods {
			keys[i] = int32(p.Year*100 + p.Month)
		}
		add("(e.period_year * 100 + e.period_month) = ANY($%d)", keys)
	}
	if filter.SourceRef != nil {
		add("e.source_model = $%d", filter.SourceRef.Model)
		add("e.source_id = $%d", filter.SourceRef.ID)
	}
	return where, args
}

func queryEntries(ctx context.Context, q querier, query string, args ...any) ([]Entry, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query entries: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListTransactions returns headers newest first plus the total match count.
func (s *PGStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if !filter.From.IsZero() {
		add("t.date >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("t.date <= $%d", filter.To)
	}
	if filter.ResidenceID != "" {
		add("t.residence_id = $%d", filter.ResidenceID)
	}
	if filter.Type != "" {
		add("t.type = $%d", filter.Type)
	}
	if filter.SourceRef != nil {
		args = append(args, filter.SourceRef.Model, filter.SourceRef.ID)
		where = append(where, fmt.Sprintf("EXISTS (SELECT 1 FROM ledger_entries e WHERE e.transaction_id = t.id AND e.source_model = $%d AND e.source_id = $%d)", len(args)-1, len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_transactions t`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ledger: count transactions: %w", err)
	}
	args = append(args, filter.Limit, filter.Offset)
	rows, err := s.pool.Query(ctx, `SELECT t.id, t.transaction_no, t.date, t.description, t.reference, t.residence_id, t.type, t.cash_movement, t.created_by, t.created_at,
    COALESCE((SELECT array_agg(e.id ORDER BY e.id) FROM ledger_entries e WHERE e.transaction_id = t.id), '{}')
FROM ledger_transactions t`+clause+fmt.Sprintf(" ORDER BY t.date DESC, t.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ledger: list transactions: %w", err)
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.TransactionNo, &t.Date, &t.Description, &t.Reference, &t.ResidenceID, &t.Type, &t.CashMovement, &t.CreatedBy, &t.CreatedAt, &t.EntryIDs)
	return t, err
}

// GetTransaction returns one header with its entries.
func (s *PGStore) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	t, err := scanTransaction(s.pool.QueryRow(ctx, `SELECT t.id, t.transaction_no, t.date, t.description, t.reference, t.residence_id, t.type, t.cash_movement, t.created_by, t.created_at,
    COALESCE((SELECT array_agg(e.id ORDER BY e.id) FROM ledger_entries e WHERE e.transaction_id = t.id), '{}')
FROM ledger_transactions t WHERE t.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	t.Entries, err = queryEntries(ctx, s.pool, `SELECT `+entryColumns+` FROM ledger_entries e LEFT JOIN ledger_transactions t ON t.id = e.transaction_id WHERE e.transaction_id = $1 ORDER BY e.id`, id)
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}
