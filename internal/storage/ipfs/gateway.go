package ipfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/stemstr/arweave-upload/internal/fetcher"
)

// Gateway fetches ipfs://<CID> references through an HTTP gateway.
type Gateway struct {
	base   string
	client *http.Client
}

// New returns a gateway source. base is the gateway prefix the CID is
// appended to, e.g. https://ipfs.io/ipfs/.
func New(base string, client *http.Client) (*Gateway, error) {
	if base == "" {
		return nil, fmt.Errorf("missing gateway url")
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{
		base:   base,
		client: client,
	}, nil
}

func (g *Gateway) Fetch(ctx context.Context, ref fetcher.Ref) (*fetcher.Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.base+ref.Host, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway get: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", fetcher.ErrNotFound, ref)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return &fetcher.Object{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}
