package bundlr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/sync/errgroup"

	"github.com/stemstr/arweave-upload/internal/chain"
)

const (
	DefaultChunkSize = 512 * 1024
	DefaultBatchSize = 1
)

var (
	ErrChunkFailed     = errors.New("chunk upload failed")
	ErrUnknownCurrency = errors.New("currency not supported by node")
	ErrNotConfirmed    = errors.New("transaction not confirmed")
)

// nativeSender sends native currency on the chain the node is funded from.
type nativeSender interface {
	SendNative(ctx context.Context, to string, amount *big.Int, fees chain.Fees) (string, error)
}

type Config struct {
	URL       string
	Currency  string
	ChunkSize int
	BatchSize int
}

// Client talks to a bundling node for one funding currency.
type Client struct {
	cfg    Config
	http   *http.Client
	sender nativeSender
}

func New(cfg Config, sender nativeSender, client *http.Client) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("missing node url")
	}
	if cfg.Currency == "" {
		return nil, fmt.Errorf("missing currency")
	}
	cfg.URL = strings.TrimSuffix(cfg.URL, "/")
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	return &Client{
		cfg:    cfg,
		http:   client,
		sender: sender,
	}, nil
}

// Price returns the cost in atomic units of the funding currency to store
// bytes.
func (c *Client) Price(ctx context.Context, bytes int64) (*big.Int, error) {
	body, err := c.get(ctx, fmt.Sprintf("/price/%s/%d", c.cfg.Currency, bytes))
	if err != nil {
		return nil, err
	}

	price, ok := new(big.Int).SetString(strings.TrimSpace(string(body)), 10)
	if !ok {
		return nil, fmt.Errorf("invalid price %q", body)
	}
	return price, nil
}

type infoResponse struct {
	Addresses map[string]string `json:"addresses"`
}

// FundAddress returns the node's deposit address for the currency.
func (c *Client) FundAddress(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/info")
	if err != nil {
		return "", err
	}

	var info infoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("decode info: %w", err)
	}
	addr, ok := info.Addresses[c.cfg.Currency]
	if !ok || addr == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownCurrency, c.cfg.Currency)
	}
	return addr, nil
}

// Fund sends amount to the node's deposit address and registers the
// transaction with the node.
func (c *Client) Fund(ctx context.Context, amount *big.Int, fees chain.Fees) (string, error) {
	to, err := c.FundAddress(ctx)
	if err != nil {
		return "", err
	}

	txID, err := c.sender.SendNative(ctx, to, amount, fees)
	if err != nil {
		return "", fmt.Errorf("chain.SendNative: %w", err)
	}

	payload, err := json.Marshal(map[string]string{"tx_id": txID})
	if err != nil {
		return "", err
	}
	if _, err := c.post(ctx, "/account/balance/"+c.cfg.Currency, "application/json", payload); err != nil {
		return txID, fmt.Errorf("register fund tx %s: %w", txID, err)
	}

	return txID, nil
}

type chunkSession struct {
	ID string `json:"id"`
}

type tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type finishRequest struct {
	Tags []tag `json:"tags"`
}

type finishResponse struct {
	ID string `json:"id"`
}

// Upload streams r to the node in chunks and returns the receipt id. Up to
// BatchSize chunks are in flight at once.
func (c *Client) Upload(ctx context.Context, r io.Reader, contentType string) (string, error) {
	body, err := c.get(ctx, fmt.Sprintf("/chunks/%s/-1/-1", c.cfg.Currency))
	if err != nil {
		return "", fmt.Errorf("start chunk session: %w", err)
	}
	var session chunkSession
	if err := json.Unmarshal(body, &session); err != nil || session.ID == "" {
		return "", fmt.Errorf("invalid chunk session %q", body)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.BatchSize)

	var offset int64
	for {
		buf := make([]byte, c.cfg.ChunkSize)
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			chunk, at := buf[:n], offset
			g.Go(func() error {
				path := fmt.Sprintf("/chunks/%s/%s/%d", c.cfg.Currency, session.ID, at)
				if _, err := c.post(gctx, path, "application/octet-stream", chunk); err != nil {
					return fmt.Errorf("%w: offset %d: %v", ErrChunkFailed, at, err)
				}
				return nil
			})
			offset += int64(n)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			_ = g.Wait()
			return "", fmt.Errorf("read source: %w", rerr)
		}
		if gctx.Err() != nil {
			break
		}
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var req finishRequest
	if contentType != "" {
		req.Tags = append(req.Tags, tag{Name: "Content-Type", Value: contentType})
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	body, err = c.post(ctx, fmt.Sprintf("/chunks/%s/%s/-1", c.cfg.Currency, session.ID), "application/json", payload)
	if err != nil {
		return "", fmt.Errorf("finish upload: %w", err)
	}

	var res finishResponse
	if err := json.Unmarshal(body, &res); err != nil || res.ID == "" {
		return "", fmt.Errorf("invalid finish response %q", body)
	}
	return res.ID, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

// Verify polls the node until it reports the receipt, or ctx is done.
func (c *Client) Verify(ctx context.Context, receipt string) error {
	b := &backoff.Backoff{
		Min:    250 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
	}

	for {
		body, err := c.get(ctx, "/tx/"+receipt+"/status")
		if err == nil {
			var st statusResponse
			if err := json.Unmarshal(body, &st); err == nil && st.Status != "" {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrNotConfirmed, receipt, err)
			}
			return fmt.Errorf("%w: %s", ErrNotConfirmed, receipt)
		case <-time.After(b.Duration()):
		}
	}
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path, contentType string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
