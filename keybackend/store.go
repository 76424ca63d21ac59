// Package keybackend verifies bearer tokens against a static key set loaded
// from configuration or a JSON file.
package keybackend

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
)

// KeysConfig holds configuration for loading bearer tokens.
type KeysConfig struct {
	Inline []Key  `mapstructure:"inline"` // Inline keys from config
	File   string `mapstructure:"file"`   // Path to JSON file containing keys
}

// Enabled reports whether any token source is configured.
func (c KeysConfig) Enabled() bool {
	return len(c.Inline) > 0 || c.File != ""
}

type entry struct {
	name   string
	digest [sha256.Size]byte
}

// TokenStore holds SHA-256 digests of the accepted tokens.
type TokenStore struct {
	entries []entry
}

// NewTokenStore creates a TokenStore from the given configuration. Inline and
// file keys are merged; a key name that appears in both takes the file token.
func NewTokenStore(cfg KeysConfig) (*TokenStore, error) {
	keys := make([]Key, 0, len(cfg.Inline))
	for _, k := range cfg.Inline {
		if k.Token != "" {
			keys = append(keys, k)
		}
	}

	if cfg.File != "" {
		fileKeys, err := LoadKeysFromFile(cfg.File)
		if err != nil {
			return nil, err
		}
		keys = mergeKeys(keys, fileKeys)
	}

	return NewStaticTokenStore(keys), nil
}

// NewStaticTokenStore creates a TokenStore accepting exactly the given keys.
func NewStaticTokenStore(keys []Key) *TokenStore {
	s := &TokenStore{entries: make([]entry, 0, len(keys))}
	for _, k := range keys {
		s.entries = append(s.entries, entry{name: k.Name, digest: sha256.Sum256([]byte(k.Token))})
	}
	return s
}

// Len returns the number of accepted tokens.
func (s *TokenStore) Len() int { return len(s.entries) }

// Lookup returns the name of the key matching token. Every entry is compared
// so the time taken does not depend on which key matched.
func (s *TokenStore) Lookup(token string) (string, error) {
	digest := sha256.Sum256([]byte(token))

	name, found := "", false
	for _, e := range s.entries {
		if subtle.ConstantTimeCompare(digest[:], e.digest[:]) == 1 && !found {
			name, found = e.name, true
		}
	}

	if !found {
		return "", fmt.Errorf("lookup token: %w", ErrUnknownToken)
	}
	return name, nil
}

// VerifyToken implements the gateway's token verifier hook.
func (s *TokenStore) VerifyToken(_ context.Context, token string) error {
	_, err := s.Lookup(token)
	return err
}

func mergeKeys(base, override []Key) []Key {
	byName := make(map[string]int, len(base))
	for i, k := range base {
		if k.Name != "" {
			byName[k.Name] = i
		}
	}

	for _, k := range override {
		if i, ok := byName[k.Name]; ok && k.Name != "" {
			base[i] = k
			continue
		}
		base = append(base, k)
	}
	return base
}
