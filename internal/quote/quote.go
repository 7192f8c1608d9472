package quote

import (
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StorageType is the only storage backend quotes are issued for.
const StorageType = "arweave"

var idPattern = regexp.MustCompile(`^[a-fA-F0-9]{32}$`)

type Quote struct {
	ID             string    `json:"quoteId"`
	UserAddress    string    `json:"userAddress"`
	ChainID        int64     `json:"chainId"`
	TokenAddress   string    `json:"tokenAddress"`
	TokenAmount    string    `json:"tokenAmount"`
	ApproveAddress string    `json:"approveAddress"`
	Files          []int64   `json:"files"`
	Status         Status    `json:"status"`
	Created        time.Time `json:"created"`
}

// TotalLength is the sum of the quoted file lengths.
func (q *Quote) TotalLength() int64 {
	var n int64
	for _, l := range q.Files {
		n += l
	}
	return n
}

type File struct {
	QuoteID   string
	Index     int
	Length    int64
	ReceiptID string
}

type Nonce struct {
	UserAddress string
	Value       string
}

// NewID returns 128 random bits as 32 hex characters.
func NewID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// NormalizeID lowercases id so lookups are case insensitive.
func NormalizeID(id string) string {
	return strings.ToLower(id)
}
