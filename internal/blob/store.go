package blob

import (
	"context"
	"io"
)

// Store is the blob side of the order repository: image bytes live here,
// the order record only keeps the path and retrieval URL.
type Store interface {
	// Put writes the content under path and returns the retrieval URL.
	Put(ctx context.Context, path string, content io.Reader) (string, error)
	// Delete removes the blob at path. Deleting a missing blob is not an error.
	Delete(ctx context.Context, path string) error
}
