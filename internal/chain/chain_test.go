package chain

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey).Hex()

	msg := []byte("0x1b4f0e9851971998e732078544c96b36c3d01cedf7caa332359d6f1d83567014")
	sig, err := SignMessage(key, msg)
	require.NoError(t, err)

	var r Recoverer
	got, err := r.RecoverAddress(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = r.RecoverAddress([]byte("other message"), sig)
	require.NoError(t, err)
	assert.NotEqual(t, want, got)

	_, err = r.RecoverAddress(msg, "0x1234")
	assert.Error(t, err)

	_, err = r.RecoverAddress(msg, "not hex")
	assert.Error(t, err)
}

func TestAddressFromKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hex.EncodeToString(crypto.FromECDSA(key))

	addr, err := AddressFromKey(keyHex)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), addr)

	addr, err = AddressFromKey("0x" + keyHex)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), addr)

	addr, err = AddressFromKey("0X" + keyHex)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), addr)

	_, err = AddressFromKey("zz")
	assert.Error(t, err)
}

func TestTrimHexPrefix(t *testing.T) {
	var tests = []struct {
		in       string
		expected string
	}{
		{"0xabcd", "abcd"},
		{"0Xabcd", "abcd"},
		{"abcd", "abcd"},
		{"0x", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, trimHexPrefix(tt.in))
		})
	}
}

func TestAddresses(t *testing.T) {
	var tests = []struct {
		addr     string
		expected bool
	}{
		{"0x9c3C9283D3e44854697Cd22D3Faa240Cfb032889", true},
		{"0x9c3c9283d3e44854697cd22d3faa240cfb032889", true},
		{"9c3c9283d3e44854697cd22d3faa240cfb032889", true},
		{"0x9c3c9283d3e44854697cd22d3faa240cfb03288", false},
		{"0xzz3c9283d3e44854697cd22d3faa240cfb032889", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ValidAddress(tt.addr), tt.addr)
	}

	assert.Equal(t, "0x9c3C9283D3e44854697Cd22D3Faa240Cfb032889", NormalizeAddress("0x9c3c9283d3e44854697cd22d3faa240cfb032889"))
	assert.True(t, SameAddress("0x9c3C9283D3e44854697Cd22D3Faa240Cfb032889", "0x9c3c9283d3e44854697cd22d3faa240cfb032889"))
	assert.False(t, SameAddress("0x9c3C9283D3e44854697Cd22D3Faa240Cfb032889", "0x0000000000000000000000000000000000000001"))
	assert.False(t, SameAddress("", ""))
}

func TestFeesClamp(t *testing.T) {
	floor := big.NewInt(30_000_000_000)

	f := Fees{GasTipCap: big.NewInt(1_500_000_000), GasFeeCap: big.NewInt(90_000_000_000)}.Clamp(floor)
	assert.Equal(t, floor, f.GasTipCap)
	assert.Equal(t, big.NewInt(90_000_000_000), f.GasFeeCap)

	f = Fees{}.Clamp(floor)
	assert.Equal(t, floor, f.GasTipCap)
	assert.Equal(t, floor, f.GasFeeCap)

	f = FloorFees(floor)
	assert.Equal(t, big.NewInt(21_000*30_000_000_000), f.Cost(21_000))
	assert.Zero(t, Fees{}.Cost(21_000).Sign())
}
