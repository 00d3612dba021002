package port

import "context"

type IdempotencyStore interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
	// ReleaseIdempotency deletes a key so the same request can be sent again
	ReleaseIdempotency(ctx context.Context, key string) error
}
