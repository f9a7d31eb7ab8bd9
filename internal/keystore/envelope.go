package keystore

import (
	"encoding/json"
	"errors"
	"time"
)

// Version is stamped on every envelope written by this package.
const Version = "1.0.0"

var (
	ErrMissingData      = errors.New("envelope has no data")
	ErrMissingTimestamp = errors.New("envelope has no timestamp")
	ErrMissingVersion   = errors.New("envelope has no version")
	ErrMalformedData    = errors.New("envelope data is not valid JSON")
)

// Envelope wraps every value held in the store.
// Timestamp and Expiry are milliseconds since the Unix epoch.
type Envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Version   string          `json:"version"`
	Expiry    *int64          `json:"expiry,omitempty"`
}

// Expired reports whether the envelope carries an expiry that is not after now.
func (e *Envelope) Expired(now time.Time) bool {
	return e.Expiry != nil && *e.Expiry <= now.UnixMilli()
}

// Validate checks the envelope shape. It does not look inside Data.
func (e *Envelope) Validate() error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return ErrMissingData
	}
	if e.Timestamp <= 0 {
		return ErrMissingTimestamp
	}
	if e.Version == "" {
		return ErrMissingVersion
	}
	if !json.Valid(e.Data) {
		return ErrMalformedData
	}
	return nil
}

func millis(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}
