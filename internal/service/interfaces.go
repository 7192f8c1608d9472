package service

import (
	"context"

	"github.com/stemstr/arweave-upload/internal/backend"
	"github.com/stemstr/arweave-upload/internal/fetcher"
	"github.com/stemstr/arweave-upload/internal/quote"
	"github.com/stemstr/arweave-upload/internal/tokens"
)

type quoteRepo interface {
	CreateQuote(ctx context.Context, q *quote.Quote) error
	GetQuote(ctx context.Context, id string) (*quote.Quote, error)
	UpdateStatus(ctx context.Context, id string, from, to quote.Status) error
	ListQuotesByUser(ctx context.Context, userAddress string, limit int) ([]quote.Quote, error)
	GetFile(ctx context.Context, quoteID string, index int) (*quote.File, error)
	ListFiles(ctx context.Context, quoteID string) ([]quote.File, error)
	SetReceipt(ctx context.Context, quoteID string, index int, receiptID string) error
}

type authenticator interface {
	Authenticate(ctx context.Context, userAddress, nonce, signature string, message []byte) error
}

type tokenList interface {
	Get(chainID int64, address string) (tokens.Token, bool)
}

type connector interface {
	Connect(ctx context.Context, t tokens.Token) (*backend.Backend, error)
}

type objectFetcher interface {
	Validate(ref string) error
	Fetch(ctx context.Context, ref string) (*fetcher.Object, error)
}

type notifier interface {
	Send(ctx context.Context, content string) error
}
