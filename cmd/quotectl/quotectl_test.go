package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemstr/arweave-upload/internal/chain"
	"github.com/stemstr/arweave-upload/internal/db"
	"github.com/stemstr/arweave-upload/internal/quote"
)

const testUser = "0x9c3C9283D3e44854697Cd22D3Faa240Cfb032889"

func seedDB(t *testing.T) (string, *quote.Quote) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quotes.db")
	repo, err := db.NewSQLite(path)
	require.NoError(t, err)
	defer repo.Close()

	q := &quote.Quote{
		ID:             quote.NewID(),
		UserAddress:    chain.NormalizeAddress(testUser),
		ChainID:        137,
		TokenAddress:   "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270",
		TokenAmount:    "110",
		ApproveAddress: "0x00000000000000000000000000000000000000a1",
		Files:          []int64{10, 20},
		Status:         quote.StatusWaiting,
		Created:        time.UnixMilli(time.Now().UnixMilli()),
	}
	ctx := context.Background()
	require.NoError(t, repo.CreateQuote(ctx, q))
	require.NoError(t, repo.UpdateStatus(ctx, q.ID, quote.StatusWaiting, quote.StatusPaymentStart))
	require.NoError(t, repo.SetReceipt(ctx, q.ID, 1, "receipt-1"))
	return path, q
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dbType, dbURL = db.TypeSQLite, "quotes.db"
	listStatus, listUser, listLimit = "", "", 50

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	path, q := seedDB(t)

	out, err := execute(t, "list", "--dburl", path, "--status", "PAYMENT_START")
	require.NoError(t, err)
	assert.Contains(t, out, q.ID)
	assert.Contains(t, out, "PAYMENT_START")

	out, err = execute(t, "list", "--dburl", path, "--status", "0")
	require.NoError(t, err)
	assert.NotContains(t, out, q.ID)

	out, err = execute(t, "list", "--dburl", path, "--user", "0x9c3c9283d3e44854697cd22d3faa240cfb032889")
	require.NoError(t, err)
	assert.Contains(t, out, q.ID)
}

func TestListErrors(t *testing.T) {
	path, _ := seedDB(t)

	var tests = []struct {
		name string
		args []string
	}{
		{"no filter", []string{"list", "--dburl", path}},
		{"both filters", []string{"list", "--dburl", path, "--status", "1", "--user", testUser}},
		{"bad status", []string{"list", "--dburl", path, "--status", "DONE"}},
		{"bad user", []string{"list", "--dburl", path, "--user", "0x123"}},
		{"bad limit", []string{"list", "--dburl", path, "--status", "1", "-n", "0"}},
		{"bad db", []string{"list", "--db", "mysql", "--status", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestShow(t *testing.T) {
	path, q := seedDB(t)

	out, err := execute(t, "show", "--db", db.TypeSQLite, "--dburl", path, q.ID, quote.NewID())
	require.NoError(t, err)
	assert.Contains(t, out, "status:   PAYMENT_START (1)")
	assert.Contains(t, out, "file 0: 10 bytes, receipt -")
	assert.Contains(t, out, "file 1: 20 bytes, receipt receipt-1")
	assert.Contains(t, out, "not found")

	_, err = execute(t, "show", "--dburl", path, "nope")
	assert.Error(t, err)
}
