package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemstr/arweave-upload/internal/tokens"
)

func TestConnect(t *testing.T) {
	var (
		dials  int
		closed int
	)
	c, err := newConnector(1, func(ctx context.Context, tok tokens.Token) (*Backend, error) {
		dials++
		if tok.Currency == "broken" {
			return nil, errors.New("dial failed")
		}
		return &Backend{close: func() { closed++ }}, nil
	})
	require.NoError(t, err)

	matic := tokens.Token{ChainID: 137, Address: "0xAbC", Currency: "matic"}
	eth := tokens.Token{ChainID: 1, Address: "0xdef", Currency: "ethereum"}

	b1, err := c.Connect(context.Background(), matic)
	require.NoError(t, err)
	b2, err := c.Connect(context.Background(), tokens.Token{ChainID: 137, Address: "0xabc", Currency: "matic"})
	require.NoError(t, err)
	assert.Same(t, b1, b2)
	assert.Equal(t, 1, dials)

	// Cache holds one backend, so eth evicts and closes matic.
	_, err = c.Connect(context.Background(), eth)
	require.NoError(t, err)
	assert.Equal(t, 2, dials)
	assert.Equal(t, 1, closed)

	_, err = c.Connect(context.Background(), tokens.Token{ChainID: 5, Currency: "broken"})
	assert.Error(t, err)

	c.Close()
	assert.Equal(t, 2, closed)
}
