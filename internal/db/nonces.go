package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stemstr/arweave-upload/internal/quote"
)

// GetNonce returns nil, nil when userAddress has no stored nonce.
func (r *Repo) GetNonce(ctx context.Context, userAddress string) (*quote.Nonce, error) {
	n := quote.Nonce{UserAddress: userAddress}
	err := r.db.GetContext(ctx, &n.Value, r.db.Rebind(`SELECT nonce FROM nonce WHERE user_address=?`), userAddress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.Get nonce: %w", err)
	}

	return &n, nil
}

// SwapNonce stores next for userAddress only if the stored nonce is still
// prev. An empty prev means no nonce is stored yet. It reports whether the
// write happened.
func (r *Repo) SwapNonce(ctx context.Context, userAddress, prev, next string) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if prev == "" {
		const insert = `INSERT INTO nonce (user_address, nonce) VALUES (?, ?)
ON CONFLICT (user_address) DO NOTHING`
		res, err = r.db.ExecContext(ctx, r.db.Rebind(insert), userAddress, next)
	} else {
		res, err = r.db.ExecContext(ctx, r.db.Rebind(`UPDATE nonce SET nonce=? WHERE user_address=? AND nonce=?`), next, userAddress, prev)
	}
	if err != nil {
		return false, fmt.Errorf("db.Exec swap nonce: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
