// Package docstore defines the boundary to the managed document store.
package docstore

import (
	"context"
)

// Document is a read result: an existence flag plus the raw field map
type Document struct {
	Exists bool
	Fields map[string]any
}

// Store is the document store capability surface. No retries are performed
// at this layer; callers decide how to react to failures.
type Store interface {
	GetDocument(ctx context.Context, collection, key string) (Document, error)
	SetDocument(ctx context.Context, collection, key string, fields map[string]any) error
}
