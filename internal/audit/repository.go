package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the Postgres backed audit store.
func NewRepository(db *pgxpool.Pool) Store {
	return &repository{db: db}
}

func encodeJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (r *repository) Insert(ctx context.Context, e Entry) (Entry, error) {
	before, err := encodeJSON(e.Before)
	if err != nil {
		return Entry{}, err
	}
	after, err := encodeJSON(e.After)
	if err != nil {
		return Entry{}, err
	}
	details, err := encodeJSON(e.Details)
	if err != nil {
		return Entry{}, err
	}
	err = r.db.QueryRow(ctx, `INSERT INTO audit_logs (action, resource_type, record_id, actor_id, actor_role, before, after, details, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		e.Action, e.ResourceType, e.RecordID, e.ActorID, e.ActorRole, before, after, details, e.OccurredAt,
	).Scan(&e.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: insert: %w", err)
	}
	return e, nil
}

func (r *repository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if filter.ResourceType != "" {
		args = append(args, filter.ResourceType)
		where = append(where, fmt.Sprintf("resource_type = $%d", len(args)))
	}
	if filter.RecordID != "" {
		args = append(args, filter.RecordID)
		where = append(where, fmt.Sprintf("record_id = $%d", len(args)))
	}
	query := `SELECT id, action, resource_type, record_id, actor_id, actor_role, before, after, details, occurred_at FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e                      Entry
			before, after, details []byte
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.ResourceType, &e.RecordID, &e.ActorID, &e.ActorRole, &before, &after, &details, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Before, e.After, e.Details = rawJSON(before), rawJSON(after), rawJSON(details)
		out = append(out, e)
	}
	return out, rows.Err()
}

func rawJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
