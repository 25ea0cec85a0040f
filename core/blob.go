package core

import (
	"context"
	"io"
)

// BlobStore is any service able to store files and serve them back from a public URL.
type BlobStore interface {
	// Upload writes r at objectPath and returns its public retrieval URL.
	Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) (string, error)
	// Delete removes the object behind a URL previously returned by Upload. Missing objects are ignored.
	Delete(ctx context.Context, fileURL string) error
}
