package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"ledger/internal/core"
)

const transactionColumns = `id, type, category, amount, date, description`

// CreateTransaction inserts one row and returns it with the assigned id.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (type, category, amount, date, description) VALUES (?, ?, ?, ?, ?)`,
		inputArgs(in)...)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", classify(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("read inserted id: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite", "id", id)
	return in.Record(id), nil
}

// ListTransactions returns every row in insertion (id) order.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", classify(err))
	}
	defer rows.Close()

	txs := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return txs, nil
}

// GetTransaction returns core.ErrNotFound when no row has the id.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, classify(err))
	}
	return tx, nil
}

// UpdateTransaction overwrites all five fields of the row. Absent optional fields
// are written as NULL. The returned record is built from the input, not re-read.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error) {
	args := append(inputArgs(in), id)
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET type = ?, category = ?, amount = ?, date = ?, description = ? WHERE id = ?`,
		args...)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, classify(err))
	}

	if err := requireAffected(res); err != nil {
		return core.Transaction{}, err
	}

	slog.DebugContext(ctx, "Transaction updated in SQLite", "id", id)
	return in.Record(id), nil
}

// DeleteTransaction removes the row, or returns core.ErrNotFound.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, classify(err))
	}

	if err := requireAffected(res); err != nil {
		return err
	}

	slog.DebugContext(ctx, "Transaction deleted from SQLite", "id", id)
	return nil
}

// Summarize aggregates the whole table in one grouped query.
func (r *SQLiteRepository) Summarize(ctx context.Context) (core.Summary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, COALESCE(SUM(amount), 0) AS total FROM transactions GROUP BY type`)
	if err != nil {
		return core.Summary{}, fmt.Errorf("summarize transactions: %w", classify(err))
	}
	defer rows.Close()

	var totals []core.TypeTotal
	for rows.Next() {
		var tt core.TypeTotal
		if err := rows.Scan(&tt.Type, &tt.Total); err != nil {
			return core.Summary{}, fmt.Errorf("scan total: %w", err)
		}
		totals = append(totals, tt)
	}
	if err := rows.Err(); err != nil {
		return core.Summary{}, fmt.Errorf("iterate totals: %w", err)
	}

	return core.NewSummary(totals), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx          core.Transaction
		category    sql.NullInt64
		description sql.NullString
	)
	if err := s.Scan(&tx.ID, &tx.Type, &category, &tx.Amount, &tx.Date, &description); err != nil {
		return core.Transaction{}, err
	}
	if category.Valid {
		tx.Category = &category.Int64
	}
	if description.Valid {
		tx.Description = &description.String
	}
	return tx, nil
}

// inputArgs converts the input to statement arguments, nil pointers becoming NULL.
func inputArgs(in core.TransactionInput) []any {
	var txType sql.NullString
	if in.Type != nil {
		txType = sql.NullString{String: string(*in.Type), Valid: true}
	}
	var category sql.NullInt64
	if in.Category != nil {
		category = sql.NullInt64{Int64: *in.Category, Valid: true}
	}
	var amount sql.NullFloat64
	if in.Amount != nil {
		amount = sql.NullFloat64{Float64: *in.Amount, Valid: true}
	}
	var date sql.NullString
	if in.Date != nil {
		date = sql.NullString{String: *in.Date, Valid: true}
	}
	var description sql.NullString
	if in.Description != nil {
		description = sql.NullString{String: *in.Description, Valid: true}
	}
	return []any{txType, category, amount, date, description}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
