// Package backup dumps every persisted slot into a bundle, restores bundles,
// and schedules at most one automatic export per calendar day.
package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Version is written into every bundle.
const Version = "1.0"

var ErrInvalidBundle = errors.New("invalid backup bundle")

// Bundle is a full-state dump: every persisted key with its JSON value.
type Bundle struct {
	Timestamp time.Time                  `json:"timestamp"`
	Version   string                     `json:"version"`
	Data      map[string]json.RawMessage `json:"data"`
}

// Filename names a bundle file after its creation time.
func Filename(t time.Time) string {
	return "bilant_backup_" + t.UTC().Format("20060102T150405") + ".json"
}

// Encode renders the bundle as compact JSON.
func (b Bundle) Encode() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	return data, nil
}

// Decode parses raw and checks it carries a data object. Null values are
// dropped and the rest are compacted. Nothing is written.
func Decode(raw []byte) (Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return Bundle{}, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if b.Data == nil {
		return Bundle{}, fmt.Errorf("%w: missing data", ErrInvalidBundle)
	}

	clean := make(map[string]json.RawMessage, len(b.Data))
	for key, value := range b.Data {
		if len(value) == 0 || string(value) == "null" {
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, value); err != nil {
			return Bundle{}, fmt.Errorf("%w: key %s: %v", ErrInvalidBundle, key, err)
		}
		clean[key] = buf.Bytes()
	}
	b.Data = clean
	return b, nil
}
