package chain

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Recoverer recovers signers of EIP-191 personal messages.
type Recoverer struct{}

// RecoverAddress returns the checksummed address that produced signature over
// message, where message is hashed with the personal message prefix.
func (Recoverer) RecoverAddress(message []byte, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("invalid signature length: %d", len(sig))
	}

	v := sig[crypto.RecoveryIDOffset]
	if v == 27 || v == 28 {
		v -= 27
	}
	if v != 0 && v != 1 {
		return "", fmt.Errorf("invalid signature v: %d", sig[crypto.RecoveryIDOffset])
	}
	sig[crypto.RecoveryIDOffset] = v

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// SignMessage produces an EIP-191 personal signature with a 27/28 v byte,
// the format wallets return.
func SignMessage(key *ecdsa.PrivateKey, message []byte) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// AddressFromKey returns the account address of a hex encoded private key.
func AddressFromKey(privateKeyHex string) (string, error) {
	key, err := parseKey(privateKeyHex)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func parseKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(trimHexPrefix(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

func trimHexPrefix(s string) string {
	return strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
}
