package chain

import (
	"github.com/ethereum/go-ethereum/common"
)

// ValidAddress reports whether s is a 20 byte hex account address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// NormalizeAddress returns the EIP-55 checksummed form of s.
func NormalizeAddress(s string) string {
	return common.HexToAddress(s).Hex()
}

// SameAddress compares two addresses ignoring checksum casing.
func SameAddress(a, b string) bool {
	if !ValidAddress(a) || !ValidAddress(b) {
		return false
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}
