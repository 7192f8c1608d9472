package ipfs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemstr/arweave-upload/internal/fetcher"
)

const testCID = "QmZ4tDuvesekSs4qM5ZBKpXiZGun7S2CYtEZRB3DYXkjGx"

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ipfs/" + testCID:
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("pngdata"))
		case "/ipfs/missing":
			http.NotFound(w, r)
		default:
			http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
		}
	}))
	defer srv.Close()

	g, err := New(srv.URL+"/ipfs", srv.Client())
	require.NoError(t, err)

	obj, err := g.Fetch(context.Background(), fetcher.Ref{Scheme: "ipfs", Host: testCID})
	require.NoError(t, err)
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "pngdata", string(data))
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, int64(7), obj.ContentLength)

	_, err = g.Fetch(context.Background(), fetcher.Ref{Scheme: "ipfs", Host: "missing"})
	assert.ErrorIs(t, err, fetcher.ErrNotFound)

	_, err = g.Fetch(context.Background(), fetcher.Ref{Scheme: "ipfs", Host: "other"})
	assert.ErrorContains(t, err, "504")
}

func TestNew(t *testing.T) {
	_, err := New("", nil)
	assert.Error(t, err)

	g, err := New("https://ipfs.io/ipfs/", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://ipfs.io/ipfs/", g.base)
}
