package income

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

// Repository reads income records and opens units of work.
type Repository interface {
	Get(ctx context.Context, id int64) (OtherIncome, error)
	List(ctx context.Context, filter ListFilter) ([]OtherIncome, int, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository, w ledger.Writer) error) error
}

// TxRepository mutates income inside a unit of work.
type TxRepository interface {
	Insert(ctx context.Context, i OtherIncome) (OtherIncome, error)
	GetForUpdate(ctx context.Context, id int64) (OtherIncome, error)
	Update(ctx context.Context, i OtherIncome) (OtherIncome, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const incomeColumns = `id, income_no, residence_id, category, description, amount::text, refunded_amount::text,
payment_status, payment_method, income_date, received_at, created_by, created_at, updated_at`

func scanIncome(row pgx.Row) (OtherIncome, error) {
	var (
		i                OtherIncome
		amount, refunded string
	)
	err := row.Scan(&i.ID, &i.IncomeNo, &i.ResidenceID, &i.Category, &i.Description, &amount, &refunded,
		&i.PaymentStatus, &i.PaymentMethod, &i.IncomeDate, &i.ReceivedAt, &i.CreatedBy, &i.CreatedAt, &i.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OtherIncome{}, ErrIncomeNotFound
	}
	if err != nil {
		return OtherIncome{}, err
	}
	if i.Amount, err = decimal.NewFromString(amount); err != nil {
		return OtherIncome{}, err
	}
	i.RefundedAmount, err = decimal.NewFromString(refunded)
	return i, err
}

func (r *repository) Get(ctx context.Context, id int64) (OtherIncome, error) {
	return scanIncome(r.pool.QueryRow(ctx, `SELECT `+incomeColumns+` FROM other_incomes WHERE id = $1`, id))
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]OtherIncome, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if filter.ResidenceID != "" {
		args = append(args, filter.ResidenceID)
		where = append(where, fmt.Sprintf("residence_id = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("lower(category) = lower($%d)", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM other_incomes`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + incomeColumns + ` FROM other_incomes` + clause +
		fmt.Sprintf(" ORDER BY income_date DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []OtherIncome
	for rows.Next() {
		i, err := scanIncome(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, i)
	}
	return out, total, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository, w ledger.Writer) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx}, ledger.NewPGWriter(tx))
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Insert(ctx context.Context, i OtherIncome) (OtherIncome, error) {
	return scanIncome(r.tx.QueryRow(ctx, `INSERT INTO other_incomes (income_no, residence_id, category, description, amount,
payment_status, payment_method, income_date, received_at, created_by)
VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8,$9,$10) RETURNING `+incomeColumns,
		i.IncomeNo, i.ResidenceID, i.Category, i.Description, i.Amount.StringFixed(2),
		i.PaymentStatus, i.PaymentMethod, i.IncomeDate, i.ReceivedAt, i.CreatedBy))
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (OtherIncome, error) {
	return scanIncome(r.tx.QueryRow(ctx, `SELECT `+incomeColumns+` FROM other_incomes WHERE id = $1 FOR UPDATE`, id))
}

func (r *txRepository) Update(ctx context.Context, i OtherIncome) (OtherIncome, error) {
	return scanIncome(r.tx.QueryRow(ctx, `UPDATE other_incomes SET payment_status = $2, payment_method = $3, received_at = $4,
refunded_amount = $5::numeric, updated_at = NOW() WHERE id = $1 RETURNING `+incomeColumns,
		i.ID, i.PaymentStatus, i.PaymentMethod, i.ReceivedAt, i.RefundedAmount.StringFixed(2)))
}
