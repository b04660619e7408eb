// Package idempotency contains the write-once record that deduplicates
// retried mutating requests. A client supplies an opaque key with a mutating
// request; the first execution's response is captured and every replay of the
// same key returns it verbatim without re-executing the operation.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Record maps a client-supplied idempotency key to the response produced by
// the first request bearing it. Records are write-once (first writer wins)
// and never expire.
type Record struct {
	// Key is the client-supplied opaque idempotency key.
	Key string

	// StatusCode is the captured HTTP status of the original response.
	StatusCode int

	// Response is the captured response body (JSON).
	Response []byte

	// RequestHash is a sha256 of the original request body. Recorded for
	// observability only: replays are NOT verified against it, so a key
	// reused with a different payload silently returns the stored result.
	RequestHash string

	// CreatedAt is when the record was written.
	CreatedAt time.Time
}

// ErrKeyExists is returned by Put when another writer already stored a record
// for the key. Callers fall back to the stored record.
var ErrKeyExists = errors.New("idempotency key already recorded")

// NewRecord builds a record for the given key and captured response.
func NewRecord(key string, statusCode int, response, requestBody []byte) *Record {
	return &Record{
		Key:         key,
		StatusCode:  statusCode,
		Response:    response,
		RequestHash: HashRequest(requestBody),
		CreatedAt:   time.Now().UTC(),
	}
}

// HashRequest returns the hex sha256 of a request body.
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Store defines the durable storage contract for idempotency records.
type Store interface {
	// Get returns the record for a key, or (nil, nil) if none exists.
	Get(ctx context.Context, key string) (*Record, error)

	// Put stores the record if the key is unused. Returns ErrKeyExists when
	// a concurrent first writer won; the caller should re-Get and replay.
	Put(ctx context.Context, r *Record) error
}
