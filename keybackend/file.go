package keybackend

import (
	"encoding/json"
	"fmt"
	"os"
)

// Key is a named static bearer token.
type Key struct {
	Name  string `json:"name" mapstructure:"name"`
	Token string `json:"token" mapstructure:"token"`
}

// LoadKeysFromFile loads bearer tokens from a JSON file.
// The file should contain an array of keys:
//
//	[
//	  {"name": "ci", "token": "3f9c0d..."},
//	  {"name": "admin-ui", "token": "b71e44..."}
//	]
//
// Entries with an empty token are ignored.
func LoadKeysFromFile(path string) ([]Key, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return nil, fmt.Errorf("read keys file: %w", err)
	}

	var keys []Key
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parse keys file: %w", err)
	}

	out := keys[:0]
	for _, k := range keys {
		if k.Token != "" {
			out = append(out, k)
		}
	}

	return out, nil
}
