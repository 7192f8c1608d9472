package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stemstr/arweave-upload/internal/quote"
)

type quoteRow struct {
	ID             string `db:"id"`
	UserAddress    string `db:"user_address"`
	ChainID        int64  `db:"chain_id"`
	TokenAddress   string `db:"token_address"`
	TokenAmount    string `db:"token_amount"`
	ApproveAddress string `db:"approve_address"`
	Status         int    `db:"status"`
	Created        int64  `db:"created"`
}

const quoteColumns = `id, user_address, chain_id, token_address, token_amount, approve_address, status, created`

func (row quoteRow) toQuote() quote.Quote {
	return quote.Quote{
		ID:             row.ID,
		UserAddress:    row.UserAddress,
		ChainID:        row.ChainID,
		TokenAddress:   row.TokenAddress,
		TokenAmount:    row.TokenAmount,
		ApproveAddress: row.ApproveAddress,
		Status:         quote.Status(row.Status),
		Created:        time.UnixMilli(row.Created),
	}
}

// CreateQuote stores q and one file row per quoted length in a single
// transaction.
func (r *Repo) CreateQuote(ctx context.Context, q *quote.Quote) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db.Begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO quote (`+quoteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		q.ID,
		q.UserAddress,
		q.ChainID,
		q.TokenAddress,
		q.TokenAmount,
		q.ApproveAddress,
		int(q.Status),
		q.Created.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}

	insertFile := tx.Rebind(`INSERT INTO quote_file (quote_id, idx, length) VALUES (?, ?, ?)`)
	for i, length := range q.Files {
		if _, err := tx.ExecContext(ctx, insertFile, q.ID, i, length); err != nil {
			return fmt.Errorf("insert file %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetQuote returns nil, nil when no quote with id exists.
func (r *Repo) GetQuote(ctx context.Context, id string) (*quote.Quote, error) {
	var row quoteRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+quoteColumns+` FROM quote WHERE id=?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.Get quote: %w", err)
	}

	q := row.toQuote()
	if err := r.loadLengths(ctx, &q); err != nil {
		return nil, err
	}

	return &q, nil
}

// UpdateStatus moves quote id from status from to status to. It fails with
// ErrStatusConflict if the stored status is not from.
func (r *Repo) UpdateStatus(ctx context.Context, id string, from, to quote.Status) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE quote SET status=? WHERE id=? AND status=?`), int(to), id, int(from))
	if err != nil {
		return fmt.Errorf("db.Exec update status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrStatusConflict
	}

	return nil
}

// ListQuotesByUser returns the most recent quotes for userAddress, newest first.
func (r *Repo) ListQuotesByUser(ctx context.Context, userAddress string, limit int) ([]quote.Quote, error) {
	const query = `SELECT ` + quoteColumns + ` FROM quote WHERE user_address=? ORDER BY created DESC LIMIT ?`
	return r.listQuotes(ctx, query, userAddress, limit)
}

// ListQuotesByStatus returns quotes currently in status, newest first.
func (r *Repo) ListQuotesByStatus(ctx context.Context, status quote.Status, limit int) ([]quote.Quote, error) {
	const query = `SELECT ` + quoteColumns + ` FROM quote WHERE status=? ORDER BY created DESC LIMIT ?`
	return r.listQuotes(ctx, query, int(status), limit)
}

func (r *Repo) listQuotes(ctx context.Context, query string, args ...any) ([]quote.Quote, error) {
	var rows []quoteRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("db.Select quotes: %w", err)
	}

	quotes := make([]quote.Quote, 0, len(rows))
	for _, row := range rows {
		q := row.toQuote()
		if err := r.loadLengths(ctx, &q); err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}

	return quotes, nil
}

func (r *Repo) loadLengths(ctx context.Context, q *quote.Quote) error {
	var lengths []int64
	err := r.db.SelectContext(ctx, &lengths, r.db.Rebind(`SELECT length FROM quote_file WHERE quote_id=? ORDER BY idx`), q.ID)
	if err != nil {
		return fmt.Errorf("db.Select lengths: %w", err)
	}
	q.Files = lengths
	return nil
}
