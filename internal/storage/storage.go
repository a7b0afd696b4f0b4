// Package storage provides the object storage boundary for document bytes
// and extraction artifacts.
package storage

import "context"

// ObjectStore is the contract for blob storage implementations.
//
// Keys used by the pipeline are derived deterministically from document
// identifiers, so repeated Puts to the same key are overwrite-idempotent.
type ObjectStore interface {
	// Put writes data under bucket/key and returns a locator string.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)

	// Get reads the object and its response headers.
	Get(ctx context.Context, bucket, key string) ([]byte, map[string]string, error)

	// EnsureBucket creates the bucket if it does not already exist.
	EnsureBucket(ctx context.Context, name string) error
}

// Error wraps an underlying storage failure with operation context.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	bucket := e.Bucket
	if bucket == "" {
		bucket = "<unknown>"
	}
	key := e.Key
	if key == "" {
		key = "<unknown>"
	}
	return e.Op + " failed for bucket=" + bucket + " key=" + key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func wrapError(op, bucket, key string, err error) *Error {
	return &Error{Op: op, Bucket: bucket, Key: key, Err: err}
}
