package tokens

import (
	"strconv"
	"strings"
)

// Token is an accepted payment token and the storage currency it funds.
type Token struct {
	ChainID     int64  `yaml:"chain_id"`
	Address     string `yaml:"token_address"`
	Currency    string `yaml:"currency"`
	ProviderURL string `yaml:"provider_url"`
	// Unwrap marks a wrapped native token. After a settlement the pulled
	// balance is unwrapped with withdraw.
	Unwrap bool `yaml:"unwrap"`
}

// Key identifies a token regardless of address case.
func (t Token) Key() string {
	return key(t.ChainID, t.Address)
}

// List is the allow-list of accepted tokens.
type List struct {
	tokens map[string]Token
	order  []Token
}

func New(tokens []Token) *List {
	l := &List{tokens: make(map[string]Token, len(tokens))}
	for _, t := range tokens {
		if _, ok := l.tokens[t.Key()]; ok {
			continue
		}
		l.tokens[t.Key()] = t
		l.order = append(l.order, t)
	}
	return l
}

// Get returns the accepted token for chainID and address.
func (l *List) Get(chainID int64, address string) (Token, bool) {
	t, ok := l.tokens[key(chainID, address)]
	return t, ok
}

// All returns accepted tokens in configuration order.
func (l *List) All() []Token {
	out := make([]Token, len(l.order))
	copy(out, l.order)
	return out
}

func key(chainID int64, address string) string {
	return strconv.FormatInt(chainID, 10) + ":" + strings.ToLower(strings.TrimSpace(address))
}
