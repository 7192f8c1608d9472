package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stemstr/arweave-upload/internal/quote"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrStaleNonce       = errors.New("invalid nonce")
	ErrInvalidNonce     = errors.New("nonce must be numeric")
)

type nonceStore interface {
	GetNonce(ctx context.Context, userAddress string) (*quote.Nonce, error)
	SwapNonce(ctx context.Context, userAddress, prev, next string) (bool, error)
}

type recoverer interface {
	RecoverAddress(message []byte, signature string) (string, error)
}

// Guard authenticates signed requests and rejects replayed nonces.
type Guard struct {
	nonces    nonceStore
	recoverer recoverer
}

func New(nonces nonceStore, r recoverer) *Guard {
	return &Guard{
		nonces:    nonces,
		recoverer: r,
	}
}

// Authenticate checks that signature over message was produced by
// userAddress and that nonce is greater than the last nonce the user spent.
// On success nonce is stored before returning, so it is spent even if the
// caller's operation later fails.
func (g *Guard) Authenticate(ctx context.Context, userAddress, nonce, signature string, message []byte) error {
	n, err := ParseNonce(nonce)
	if err != nil {
		return err
	}

	signer, err := g.recoverer.RecoverAddress(message, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !strings.EqualFold(signer, userAddress) {
		return ErrInvalidSignature
	}

	for {
		spent, err := g.spend(ctx, userAddress, nonce, n)
		if err != nil || spent {
			return err
		}
		// Another request moved the stored nonce. Check against the new value.
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// spend stores nonce if it is greater than the stored one and nobody else
// changed the stored one in between.
func (g *Guard) spend(ctx context.Context, userAddress, nonce string, n float64) (bool, error) {
	prev, err := g.nonces.GetNonce(ctx, userAddress)
	if err != nil {
		return false, fmt.Errorf("nonces.GetNonce: %w", err)
	}

	var (
		stored    float64
		prevValue string
	)
	if prev != nil {
		// A corrupt stored value must not let any nonce through.
		stored, err = ParseNonce(prev.Value)
		if err != nil {
			return false, fmt.Errorf("stored nonce for %s: %w", userAddress, err)
		}
		prevValue = prev.Value
	}
	if n <= stored {
		return false, ErrStaleNonce
	}

	spent, err := g.nonces.SwapNonce(ctx, userAddress, prevValue, nonce)
	if err != nil {
		return false, fmt.Errorf("nonces.SwapNonce: %w", err)
	}
	return spent, nil
}

// ParseNonce parses a decimal nonce. Clients send unix timestamps, sometimes
// with a fractional part.
func ParseNonce(nonce string) (float64, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(nonce), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, ErrInvalidNonce
	}
	return n, nil
}

// QuoteMessage is the message a user signs to act on a quote.
func QuoteMessage(quoteID, nonce string) []byte {
	return digest(quoteID + nonce)
}

// NonceMessage is the message a user signs for requests not tied to a quote.
func NonceMessage(nonce string) []byte {
	return digest(nonce)
}

// digest returns the 0x prefixed hex sha256 of s. Wallets sign the hex
// string itself, not the raw hash bytes.
func digest(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return []byte("0x" + hex.EncodeToString(sum[:]))
}
