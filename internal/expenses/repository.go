package expenses

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/platform/db"
)

// Repository reads expenses and opens units of work.
type Repository interface {
	Get(ctx context.Context, id int64) (Expense, error)
	List(ctx context.Context, filter ListFilter) ([]Expense, int, error)
	// WithTx runs fn with an expense writer and a ledger writer bound to the
	// same transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository, w ledger.Writer) error) error
}

// TxRepository mutates expenses inside a unit of work.
type TxRepository interface {
	Insert(ctx context.Context, e Expense) (Expense, error)
	GetForUpdate(ctx context.Context, id int64) (Expense, error)
	Update(ctx context.Context, e Expense) (Expense, error)
	SoftDelete(ctx context.Context, id int64, at time.Time) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const expenseColumns = `id, expense_no, residence_id, category, description, amount::text, payment_status, payment_method,
expense_date, paid_at, paid_by, accrued, created_by, deleted_at, created_at, updated_at`

func scanExpense(row pgx.Row) (Expense, error) {
	var (
		e      Expense
		amount string
	)
	err := row.Scan(&e.ID, &e.ExpenseNo, &e.ResidenceID, &e.Category, &e.Description, &amount, &e.PaymentStatus, &e.PaymentMethod,
		&e.ExpenseDate, &e.PaidAt, &e.PaidBy, &e.Accrued, &e.CreatedBy, &e.DeletedAt, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, ErrExpenseNotFound
	}
	if err != nil {
		return Expense{}, err
	}
	e.Amount, err = decimal.NewFromString(amount)
	return e, err
}

func (r *repository) Get(ctx context.Context, id int64) (Expense, error) {
	return scanExpense(r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Expense, int, error) {
	where := []string{"deleted_at IS NULL"}
	var args []any
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
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM expenses`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + expenseColumns + ` FROM expenses` + clause +
		fmt.Sprintf(" ORDER BY expense_date DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
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

func (r *txRepository) Insert(ctx context.Context, e Expense) (Expense, error) {
	return scanExpense(r.tx.QueryRow(ctx, `INSERT INTO expenses (expense_no, residence_id, category, description, amount, payment_status,
payment_method, expense_date, paid_at, paid_by, accrued, created_by)
VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8,$9,$10,$11,$12) RETURNING `+expenseColumns,
		e.ExpenseNo, e.ResidenceID, e.Category, e.Description, e.Amount.StringFixed(2), e.PaymentStatus,
		e.PaymentMethod, e.ExpenseDate, e.PaidAt, e.PaidBy, e.Accrued, e.CreatedBy))
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Expense, error) {
	return scanExpense(r.tx.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id))
}

func (r *txRepository) Update(ctx context.Context, e Expense) (Expense, error) {
	return scanExpense(r.tx.QueryRow(ctx, `UPDATE expenses SET payment_status = $2, payment_method = $3, paid_at = $4, paid_by = $5,
accrued = $6, updated_at = NOW() WHERE id = $1 RETURNING `+expenseColumns,
		e.ID, e.PaymentStatus, e.PaymentMethod, e.PaidAt, e.PaidBy, e.Accrued))
}

func (r *txRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE expenses SET deleted_at = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
