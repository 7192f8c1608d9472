package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stemstr/arweave-upload/internal/quote"
)

type fileRow struct {
	QuoteID   string         `db:"quote_id"`
	Index     int            `db:"idx"`
	Length    int64          `db:"length"`
	ReceiptID sql.NullString `db:"receipt_id"`
}

func (row fileRow) toFile() quote.File {
	return quote.File{
		QuoteID:   row.QuoteID,
		Index:     row.Index,
		Length:    row.Length,
		ReceiptID: row.ReceiptID.String,
	}
}

// GetFile returns nil, nil when the quote has no file at index.
func (r *Repo) GetFile(ctx context.Context, quoteID string, index int) (*quote.File, error) {
	var row fileRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT quote_id, idx, length, receipt_id FROM quote_file WHERE quote_id=? AND idx=?`), quoteID, index)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.Get file: %w", err)
	}

	f := row.toFile()
	return &f, nil
}

func (r *Repo) ListFiles(ctx context.Context, quoteID string) ([]quote.File, error) {
	var rows []fileRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT quote_id, idx, length, receipt_id FROM quote_file WHERE quote_id=? ORDER BY idx`), quoteID)
	if err != nil {
		return nil, fmt.Errorf("db.Select files: %w", err)
	}

	files := make([]quote.File, 0, len(rows))
	for _, row := range rows {
		files = append(files, row.toFile())
	}
	return files, nil
}

// SetReceipt records the storage receipt for a file. A receipt is written at
// most once.
func (r *Repo) SetReceipt(ctx context.Context, quoteID string, index int, receiptID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE quote_file SET receipt_id=? WHERE quote_id=? AND idx=? AND receipt_id IS NULL`), receiptID, quoteID, index)
	if err != nil {
		return fmt.Errorf("db.Exec set receipt: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		f, err := r.GetFile(ctx, quoteID, index)
		if err != nil {
			return err
		}
		if f == nil {
			return fmt.Errorf("file %s/%d not found", quoteID, index)
		}
		return ErrReceiptExists
	}

	return nil
}
