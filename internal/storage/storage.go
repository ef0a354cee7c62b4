package storage

import (
	"context"
	"io"
	"time"
)

// Uploader stores consultation audio chunks. The returned path is what the
// transcript archive records next to each entry.
type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}

// Signer mints short-lived read URLs for archived audio; objects themselves
// stay private.
type Signer interface {
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}
