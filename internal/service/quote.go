package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/stemstr/arweave-upload/internal/auth"
	"github.com/stemstr/arweave-upload/internal/chain"
	"github.com/stemstr/arweave-upload/internal/quote"
)

type CreateQuoteRequest struct {
	Type         string
	UserAddress  string
	Files        []int64
	ChainID      int64
	TokenAddress string
}

func (r CreateQuoteRequest) validate() error {
	if r.Type == "" {
		return validationError("Missing type.")
	}
	if r.Type != quote.StorageType {
		return validationError("Invalid type.")
	}
	if !chain.ValidAddress(r.UserAddress) {
		return validationError("Invalid userAddress.")
	}
	if len(r.Files) == 0 {
		return validationError("Empty files field.")
	}
	if len(r.Files) > MaxFiles {
		return validationError(fmt.Sprintf("Too many files. Max %d.", MaxFiles))
	}

	var total int64
	for _, l := range r.Files {
		if l <= 0 {
			return validationError("Files length too small.")
		}
		if l > MaxFileLength {
			return validationError("Individual files may not exceed 1 TB")
		}
		total += l
	}
	if total > MaxFileLength {
		return validationError("Total file length may not exceed 1 TB")
	}

	if r.ChainID <= 0 {
		return validationError("chainId too small.")
	}
	if !chain.ValidAddress(r.TokenAddress) {
		return validationError("Invalid tokenAddress format.")
	}

	return nil
}

// CreateQuote prices the requested files and stores a quote awaiting
// payment. The quoted amount carries a 10% buffer over the current price.
func (s *Service) CreateQuote(ctx context.Context, req CreateQuoteRequest) (*quote.Quote, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	token, ok := s.tokens.Get(req.ChainID, req.TokenAddress)
	if !ok {
		return nil, validationError("Payment token not accepted.")
	}

	be, err := s.backends.Connect(ctx, token)
	if err != nil {
		return nil, internalError("Error connecting to payment backend.", err)
	}

	q := &quote.Quote{
		UserAddress:  chain.NormalizeAddress(req.UserAddress),
		ChainID:      req.ChainID,
		TokenAddress: chain.NormalizeAddress(req.TokenAddress),
		Files:        append([]int64(nil), req.Files...),
		Status:       quote.StatusWaiting,
	}

	price, err := be.Storage.Price(ctx, q.TotalLength())
	if err != nil {
		return nil, internalError("Error occurred while pricing the quote.", err)
	}

	q.ID = quote.NewID()
	q.TokenAmount = withBuffer(price).String()
	q.ApproveAddress = be.Chain.Address()
	q.Created = time.Now().UTC().Truncate(time.Millisecond)

	if err := s.repo.CreateQuote(ctx, q); err != nil {
		return nil, internalError("Error occurred while creating the quote.", fmt.Errorf("repo.CreateQuote: %w", err))
	}
	quotesCreated.Inc()

	s.log.Infow("quote created",
		"quote_id", q.ID,
		"user", q.UserAddress,
		"chain_id", q.ChainID,
		"files", len(q.Files),
		"bytes", q.TotalLength(),
		"token_amount", q.TokenAmount,
	)

	return q, nil
}

// withBuffer returns price plus a tenth of price, rounded down.
func withBuffer(price *big.Int) *big.Int {
	buffer := new(big.Int).Quo(price, big.NewInt(10))
	return buffer.Add(buffer, price)
}

// GetStatus returns the current status of a quote.
func (s *Service) GetStatus(ctx context.Context, quoteID string) (quote.Status, error) {
	q, err := s.lookupQuote(ctx, quoteID)
	if err != nil {
		return 0, err
	}
	return q.Status, nil
}

type LinkRequest struct {
	QuoteID   string
	Nonce     string
	Signature string
}

type Link struct {
	Type            string `json:"type"`
	TransactionHash string `json:"transactionHash"`
}

// GetLink returns the storage receipts of a completed quote to its owner.
func (s *Service) GetLink(ctx context.Context, req LinkRequest) ([]Link, error) {
	if err := validateAuthFields(req.Nonce, req.Signature); err != nil {
		return nil, err
	}

	q, err := s.lookupQuote(ctx, req.QuoteID)
	if err != nil {
		return nil, err
	}
	if q.Status != quote.StatusUploadEnd {
		return nil, newError(KindNotReady, "Upload not completed yet.", nil)
	}

	if err := s.authenticate(ctx, q.UserAddress, req.Nonce, req.Signature, auth.QuoteMessage(req.QuoteID, req.Nonce)); err != nil {
		return nil, err
	}

	files, err := s.repo.ListFiles(ctx, q.ID)
	if err != nil {
		return nil, internalError("Error occurred while looking up link.", fmt.Errorf("repo.ListFiles: %w", err))
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Index < files[j].Index })

	links := make([]Link, 0, len(files))
	for _, f := range files {
		if f.ReceiptID == "" {
			return nil, newError(KindNotFound, "Link(s) not found.", fmt.Errorf("file %d has no receipt", f.Index))
		}
		links = append(links, Link{Type: quote.StorageType, TransactionHash: f.ReceiptID})
	}
	if len(links) == 0 {
		return nil, newError(KindNotFound, "Link(s) not found.", nil)
	}

	return links, nil
}

type HistoryRequest struct {
	UserAddress string
	Nonce       string
	Signature   string
}

// GetHistory returns the user's most recent quotes, newest first.
func (s *Service) GetHistory(ctx context.Context, req HistoryRequest) ([]quote.Quote, error) {
	if req.UserAddress == "" {
		return nil, validationError("Error, userAddress required.")
	}
	if !chain.ValidAddress(req.UserAddress) {
		return nil, validationError("Invalid userAddress.")
	}
	if err := validateAuthFields(req.Nonce, req.Signature); err != nil {
		return nil, err
	}

	user := chain.NormalizeAddress(req.UserAddress)
	if err := s.authenticate(ctx, user, req.Nonce, req.Signature, auth.NonceMessage(req.Nonce)); err != nil {
		return nil, err
	}

	quotes, err := s.repo.ListQuotesByUser(ctx, user, HistoryLimit)
	if err != nil {
		return nil, internalError("Error occurred while looking up history.", fmt.Errorf("repo.ListQuotesByUser: %w", err))
	}
	if quotes == nil {
		quotes = []quote.Quote{}
	}

	return quotes, nil
}

func (s *Service) lookupQuote(ctx context.Context, quoteID string) (*quote.Quote, error) {
	if quoteID == "" {
		return nil, validationError("Error, quoteId required.")
	}
	if !quote.ValidID(quoteID) {
		return nil, validationError("Invalid quoteId format.")
	}

	q, err := s.repo.GetQuote(ctx, quote.NormalizeID(quoteID))
	if err != nil {
		return nil, internalError("Error occurred while looking up quote.", fmt.Errorf("repo.GetQuote: %w", err))
	}
	if q == nil {
		return nil, newError(KindNotFound, "Quote not found.", nil)
	}
	return q, nil
}

func validateAuthFields(nonce, signature string) error {
	if nonce == "" {
		return validationError("Missing nonce.")
	}
	if _, err := auth.ParseNonce(nonce); err != nil {
		return validationError("Invalid nonce.")
	}
	if signature == "" {
		return validationError("Missing signature.")
	}
	return nil
}

// authenticate maps guard failures onto caller facing errors.
func (s *Service) authenticate(ctx context.Context, user, nonce, signature string, message []byte) error {
	err := s.auth.Authenticate(ctx, user, nonce, signature, message)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrInvalidSignature):
		return newError(KindAuth, "Invalid signature.", err)
	case errors.Is(err, auth.ErrStaleNonce), errors.Is(err, auth.ErrInvalidNonce):
		return newError(KindAuth, "Invalid nonce.", err)
	default:
		return internalError("Error occurred while validating nonce.", err)
	}
}
