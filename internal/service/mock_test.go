package service

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"

	"github.com/stemstr/arweave-upload/internal/backend"
	"github.com/stemstr/arweave-upload/internal/chain"
	"github.com/stemstr/arweave-upload/internal/db"
	"github.com/stemstr/arweave-upload/internal/fetcher"
	"github.com/stemstr/arweave-upload/internal/quote"
	"github.com/stemstr/arweave-upload/internal/tokens"
)

type mockRepo struct {
	mu       sync.Mutex
	quotes   map[string]quote.Quote
	files    map[string][]quote.File
	statuses map[string][]quote.Status

	CreateQuoteErr      error
	GetQuoteErr         error
	ListQuotesByUserErr error
	SetReceiptErr       error
	// UpdateStatusErr fails updates into the given status.
	UpdateStatusErr map[quote.Status]error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		quotes:          map[string]quote.Quote{},
		files:           map[string][]quote.File{},
		statuses:        map[string][]quote.Status{},
		UpdateStatusErr: map[quote.Status]error{},
	}
}

func (m *mockRepo) CreateQuote(ctx context.Context, q *quote.Quote) error {
	if m.CreateQuoteErr != nil {
		return m.CreateQuoteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[q.ID] = *q
	for i, l := range q.Files {
		m.files[q.ID] = append(m.files[q.ID], quote.File{QuoteID: q.ID, Index: i, Length: l})
	}
	m.statuses[q.ID] = []quote.Status{q.Status}
	return nil
}
func (m *mockRepo) GetQuote(ctx context.Context, id string) (*quote.Quote, error) {
	if m.GetQuoteErr != nil {
		return nil, m.GetQuoteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok {
		return nil, nil
	}
	return &q, nil
}
func (m *mockRepo) UpdateStatus(ctx context.Context, id string, from, to quote.Status) error {
	if err := m.UpdateStatusErr[to]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok || q.Status != from {
		return db.ErrStatusConflict
	}
	q.Status = to
	m.quotes[id] = q
	m.statuses[id] = append(m.statuses[id], to)
	return nil
}
func (m *mockRepo) ListQuotesByUser(ctx context.Context, userAddress string, limit int) ([]quote.Quote, error) {
	if m.ListQuotesByUserErr != nil {
		return nil, m.ListQuotesByUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []quote.Quote
	for _, q := range m.quotes {
		if q.UserAddress == userAddress && len(out) < limit {
			out = append(out, q)
		}
	}
	return out, nil
}
func (m *mockRepo) GetFile(ctx context.Context, quoteID string, index int) (*quote.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files[quoteID] {
		if f.Index == index {
			return &f, nil
		}
	}
	return nil, nil
}
func (m *mockRepo) ListFiles(ctx context.Context, quoteID string) ([]quote.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]quote.File(nil), m.files[quoteID]...), nil
}
func (m *mockRepo) SetReceipt(ctx context.Context, quoteID string, index int, receiptID string) error {
	if m.SetReceiptErr != nil {
		return m.SetReceiptErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, f := range m.files[quoteID] {
		if f.Index == index {
			if f.ReceiptID != "" {
				return db.ErrReceiptExists
			}
			m.files[quoteID][i].ReceiptID = receiptID
			return nil
		}
	}
	return fmt.Errorf("file %d not found", index)
}

func (m *mockRepo) status(id string) quote.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quotes[id].Status
}

func (m *mockRepo) history(id string) []quote.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]quote.Status(nil), m.statuses[id]...)
}

func (m *mockRepo) receipts(id string) map[int]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int]string{}
	for _, f := range m.files[id] {
		if f.ReceiptID != "" {
			out[f.Index] = f.ReceiptID
		}
	}
	return out
}

type mockAuth struct {
	mu    sync.Mutex
	Err   error
	Calls []string
}

func (m *mockAuth) Authenticate(ctx context.Context, userAddress, nonce, signature string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, userAddress+"/"+nonce+"/"+string(message))
	return m.Err
}

type transferCall struct {
	From, To string
	Amount   *big.Int
	Fees     chain.Fees
}

type mockChain struct {
	mu sync.Mutex

	AddressValue   string
	AllowanceValue *big.Int
	AllowanceErr   error
	BalanceValue   *big.Int
	BalanceErr     error
	NativeValue    *big.Int
	Fees           chain.Fees
	FeesErr        error
	TransferErr    error
	WithdrawErr    error
	Gas            uint64
	GasErr         error

	Transfers   []transferCall
	Withdrawals []*big.Int
}

func (m *mockChain) Address() string { return m.AddressValue }
func (m *mockChain) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	return m.AllowanceValue, m.AllowanceErr
}
func (m *mockChain) BalanceOf(ctx context.Context, owner string) (*big.Int, error) {
	return m.BalanceValue, m.BalanceErr
}
func (m *mockChain) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	return m.NativeValue, nil
}
func (m *mockChain) FeeData(ctx context.Context) (chain.Fees, error) {
	return m.Fees, m.FeesErr
}
func (m *mockChain) TransferFrom(ctx context.Context, from, to string, amount *big.Int, fees chain.Fees) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transfers = append(m.Transfers, transferCall{From: from, To: to, Amount: amount, Fees: fees})
	return "0xpull", m.TransferErr
}
func (m *mockChain) Withdraw(ctx context.Context, amount *big.Int, fees chain.Fees) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Withdrawals = append(m.Withdrawals, amount)
	return "0xunwrap", m.WithdrawErr
}
func (m *mockChain) EstimateSettlementGas(ctx context.Context, user string, amount *big.Int, fundAddress string) (uint64, error) {
	return m.Gas, m.GasErr
}

type mockStorage struct {
	mu sync.Mutex

	PriceValue *big.Int
	PriceErr   error
	FundErr    error
	UploadErr  error
	VerifyErr  error

	Funded   []*big.Int
	Uploaded map[string]string
	Verified []string
}

func (m *mockStorage) Price(ctx context.Context, bytes int64) (*big.Int, error) {
	if m.PriceErr != nil {
		return nil, m.PriceErr
	}
	return new(big.Int).Set(m.PriceValue), nil
}
func (m *mockStorage) FundAddress(ctx context.Context) (string, error) {
	return "0xfund", nil
}
func (m *mockStorage) Fund(ctx context.Context, amount *big.Int, fees chain.Fees) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Funded = append(m.Funded, amount)
	return "0xfundtx", m.FundErr
}

// Upload names receipts after the uploaded content.
func (m *mockStorage) Upload(ctx context.Context, r io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Uploaded == nil {
		m.Uploaded = map[string]string{}
	}
	receipt := "rcpt-" + string(data)
	m.Uploaded[receipt] = contentType
	return receipt, nil
}
func (m *mockStorage) Verify(ctx context.Context, receipt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Verified = append(m.Verified, receipt)
	return m.VerifyErr
}

func (m *mockStorage) uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Uploaded)
}

type mockConnector struct {
	Backend *backend.Backend
	Err     error
}

func (m *mockConnector) Connect(ctx context.Context, t tokens.Token) (*backend.Backend, error) {
	return m.Backend, m.Err
}

type mockObject struct {
	Data string
	// Length overrides the reported content length when non zero.
	Length      int64
	ContentType string
	Err         error
}

type mockFetcher struct {
	Objects map[string]mockObject
}

func (m *mockFetcher) Validate(ref string) error {
	if !strings.HasPrefix(ref, "ipfs://") {
		return fetcher.ErrUnsupportedScheme
	}
	return nil
}
func (m *mockFetcher) Fetch(ctx context.Context, ref string) (*fetcher.Object, error) {
	o, ok := m.Objects[ref]
	if !ok {
		return nil, fetcher.ErrNotFound
	}
	if o.Err != nil {
		return nil, o.Err
	}
	length := int64(len(o.Data))
	if o.Length != 0 {
		length = o.Length
	}
	return &fetcher.Object{
		Body:          io.NopCloser(strings.NewReader(o.Data)),
		ContentType:   o.ContentType,
		ContentLength: length,
	}, nil
}

type mockNotifier struct {
	mu       sync.Mutex
	Messages []string
}

func (m *mockNotifier) Send(ctx context.Context, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, content)
	return nil
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

type nonceRepo struct {
	mu     sync.Mutex
	nonces map[string]string
}

func (m *nonceRepo) GetNonce(ctx context.Context, userAddress string) (*quote.Nonce, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.nonces[userAddress]
	if !ok {
		return nil, nil
	}
	return &quote.Nonce{UserAddress: userAddress, Value: v}, nil
}
func (m *nonceRepo) SwapNonce(ctx context.Context, userAddress, prev, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nonces[userAddress] != prev {
		return false, nil
	}
	m.nonces[userAddress] = next
	return true, nil
}
