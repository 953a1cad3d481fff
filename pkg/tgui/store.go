package tgui

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TokenStore keeps payloads server-side and hands out short tokens for
// callback data. Entries expire after the TTL; the least recently used entry
// is evicted when the store is full.
//
// Tokens start with '~' and never contain ':'.
type TokenStore struct {
	lru *expirable.LRU[string, string]
}

// NewTokenStore creates a store. Zero values default to 5000 entries and a
// 15 minute TTL.
func NewTokenStore(size int, ttl time.Duration) *TokenStore {
	if size <= 0 {
		size = 5000
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenStore{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

// Put stores v and returns its token.
func (s *TokenStore) Put(v string) string {
	var buf [6]byte
	for {
		_, _ = rand.Read(buf[:])
		tok := "~" + base64.RawURLEncoding.EncodeToString(buf[:])
		if s.lru.Contains(tok) {
			continue
		}
		s.lru.Add(tok, v)
		return tok
	}
}

// Get returns the value stored under tok.
func (s *TokenStore) Get(tok string) (string, bool) {
	return s.lru.Get(tok)
}

// IsToken reports whether payload looks like a token from Put.
func IsToken(payload string) bool {
	return len(payload) > 1 && payload[0] == '~'
}

// Len is the number of live entries.
func (s *TokenStore) Len() int { return s.lru.Len() }
