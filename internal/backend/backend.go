package backend

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/stemstr/arweave-upload/internal/chain"
	"github.com/stemstr/arweave-upload/internal/storage/bundlr"
	"github.com/stemstr/arweave-upload/internal/tokens"
)

// ChainClient is the payment side of a backend.
type ChainClient interface {
	Address() string
	Allowance(ctx context.Context, owner, spender string) (*big.Int, error)
	BalanceOf(ctx context.Context, owner string) (*big.Int, error)
	NativeBalance(ctx context.Context, address string) (*big.Int, error)
	FeeData(ctx context.Context) (chain.Fees, error)
	TransferFrom(ctx context.Context, from, to string, amount *big.Int, fees chain.Fees) (string, error)
	Withdraw(ctx context.Context, amount *big.Int, fees chain.Fees) (string, error)
	EstimateSettlementGas(ctx context.Context, user string, amount *big.Int, fundAddress string) (uint64, error)
}

// StorageClient is the storage side of a backend.
type StorageClient interface {
	Price(ctx context.Context, bytes int64) (*big.Int, error)
	FundAddress(ctx context.Context) (string, error)
	Fund(ctx context.Context, amount *big.Int, fees chain.Fees) (string, error)
	Upload(ctx context.Context, r io.Reader, contentType string) (string, error)
	Verify(ctx context.Context, receipt string) error
}

// Backend pairs the chain and storage clients serving one token.
type Backend struct {
	Chain   ChainClient
	Storage StorageClient
	close   func()
}

func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

type Config struct {
	PrivateKey string
	BundlrURL  string
	ChunkSize  int
	BatchSize  int
	CacheSize  int
}

type dialFunc func(ctx context.Context, t tokens.Token) (*Backend, error)

// Connector hands out backends per token, dialing on first use.
type Connector struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *Backend]
	dial  dialFunc
}

func New(cfg Config) (*Connector, error) {
	return newConnector(cfg.CacheSize, func(ctx context.Context, t tokens.Token) (*Backend, error) {
		return dial(ctx, cfg, t)
	})
}

func newConnector(size int, dial dialFunc) (*Connector, error) {
	if size <= 0 {
		size = 16
	}
	cache, err := lru.NewWithEvict[string, *Backend](size, func(_ string, b *Backend) {
		b.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("lru.New: %w", err)
	}
	return &Connector{
		cache: cache,
		dial:  dial,
	}, nil
}

// Connect returns the backend for t.
func (c *Connector) Connect(ctx context.Context, t tokens.Token) (*Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.cache.Get(t.Key()); ok {
		return b, nil
	}

	b, err := c.dial(ctx, t)
	if err != nil {
		return nil, err
	}
	c.cache.Add(t.Key(), b)
	return b, nil
}

// Close closes every cached backend.
func (c *Connector) Close() {
	c.cache.Purge()
}

func dial(ctx context.Context, cfg Config, t tokens.Token) (*Backend, error) {
	cc, err := chain.Dial(ctx, t.ProviderURL, cfg.PrivateKey, t.Address)
	if err != nil {
		return nil, fmt.Errorf("chain.Dial %d: %w", t.ChainID, err)
	}

	sc, err := bundlr.New(bundlr.Config{
		URL:       cfg.BundlrURL,
		Currency:  t.Currency,
		ChunkSize: cfg.ChunkSize,
		BatchSize: cfg.BatchSize,
	}, cc, http.DefaultClient)
	if err != nil {
		cc.Close()
		return nil, fmt.Errorf("bundlr.New: %w", err)
	}

	return &Backend{
		Chain:   cc,
		Storage: sc,
		close:   cc.Close,
	}, nil
}
