// Package storage provides the durable object-storage sink for kept
// artifacts. Keys are deterministic (configured prefix + artifact file
// name) and puts overwrite, so re-uploading the same artifact is safe.
package storage

import "context"

// ObjectStore is the destination for kept artifacts.
type ObjectStore interface {
	// Put uploads the local file at path under the given artifact name.
	// The store derives the final object key from the name; putting the
	// same name twice overwrites.
	Put(ctx context.Context, name, path string) error
}
