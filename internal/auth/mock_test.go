package auth

import (
	"context"

	"github.com/stemstr/arweave-upload/internal/quote"
)

type mockNonceStore struct {
	nonces map[string]string
	GetErr error
	SetErr error
}

func (m *mockNonceStore) GetNonce(ctx context.Context, userAddress string) (*quote.Nonce, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	v, ok := m.nonces[userAddress]
	if !ok {
		return nil, nil
	}
	return &quote.Nonce{UserAddress: userAddress, Value: v}, nil
}
func (m *mockNonceStore) SwapNonce(ctx context.Context, userAddress, prev, next string) (bool, error) {
	if m.SetErr != nil {
		return false, m.SetErr
	}
	if m.nonces == nil {
		m.nonces = map[string]string{}
	}
	if m.nonces[userAddress] != prev {
		return false, nil
	}
	m.nonces[userAddress] = next
	return true, nil
}

type mockRecoverer struct {
	Address string
	Err     error
}

func (m *mockRecoverer) RecoverAddress(message []byte, signature string) (string, error) {
	return m.Address, m.Err
}
