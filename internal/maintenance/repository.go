package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/platform/db"
)

// Repository reads requests and opens units of work.
type Repository interface {
	Get(ctx context.Context, id int64) (Request, error)
	List(ctx context.Context, filter ListFilter) ([]Request, int, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository, w ledger.Writer) error) error
}

// TxRepository mutates requests inside a unit of work.
type TxRepository interface {
	Insert(ctx context.Context, r Request) (Request, error)
	GetForUpdate(ctx context.Context, id int64) (Request, error)
	Update(ctx context.Context, r Request) (Request, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const requestColumns = `id, request_no, residence_id, title, category, amount::text, finance_status, payment_method,
rejection_reason, approved_by, approved_at, paid_at, created_by, created_at, updated_at`

func scanRequest(row pgx.Row) (Request, error) {
	var (
		r      Request
		amount string
	)
	err := row.Scan(&r.ID, &r.RequestNo, &r.ResidenceID, &r.Title, &r.Category, &amount, &r.FinanceStatus, &r.PaymentMethod,
		&r.RejectionReason, &r.ApprovedBy, &r.ApprovedAt, &r.PaidAt, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrRequestNotFound
	}
	if err != nil {
		return Request{}, err
	}
	r.Amount, err = decimal.NewFromString(amount)
	return r, err
}

func (p *repository) Get(ctx context.Context, id int64) (Request, error) {
	return scanRequest(p.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM maintenance_requests WHERE id = $1`, id))
}

func (p *repository) List(ctx context.Context, filter ListFilter) ([]Request, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("finance_status = $%d", len(args)))
	}
	if filter.ResidenceID != "" {
		args = append(args, filter.ResidenceID)
		where = append(where, fmt.Sprintf("residence_id = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}
	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM maintenance_requests`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + requestColumns + ` FROM maintenance_requests` + clause +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (p *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository, w ledger.Writer) error) error {
	return db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx}, ledger.NewPGWriter(tx))
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) Insert(ctx context.Context, r Request) (Request, error) {
	return scanRequest(t.tx.QueryRow(ctx, `INSERT INTO maintenance_requests (request_no, residence_id, title, category, amount,
finance_status, created_by) VALUES ($1,$2,$3,$4,$5::numeric,$6,$7) RETURNING `+requestColumns,
		r.RequestNo, r.ResidenceID, r.Title, r.Category, r.Amount.StringFixed(2), r.FinanceStatus, r.CreatedBy))
}

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (Request, error) {
	return scanRequest(t.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM maintenance_requests WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepository) Update(ctx context.Context, r Request) (Request, error) {
	return scanRequest(t.tx.QueryRow(ctx, `UPDATE maintenance_requests SET finance_status = $2, payment_method = $3,
rejection_reason = $4, approved_by = $5, approved_at = $6, paid_at = $7, updated_at = NOW() WHERE id = $1 RETURNING `+requestColumns,
		r.ID, r.FinanceStatus, r.PaymentMethod, r.RejectionReason, r.ApprovedBy, r.ApprovedAt, r.PaidAt))
}
