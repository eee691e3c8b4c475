// Package source reads document metadata and blobs from the configured
// relational tables. The pipeline and handlers depend only on the Gateway
// contract, not on the SQL behind it.
package source

import (
	"context"

	"github.com/shipops/docsearch/internal/document"
)

// Gateway is the source-store boundary: listing documents across the
// configured tables and fetching a single row's blob or metadata.
type Gateway interface {
	// ListDocuments enumerates ingestible rows across every configured table,
	// in per-table update order. Order across tables is unspecified.
	ListDocuments(ctx context.Context) ([]document.Meta, error)
	// FetchBlob returns the binary content of one row.
	FetchBlob(ctx context.Context, table, rowID string) ([]byte, error)
	// FetchMeta returns one row's metadata, or ErrDocumentNotFound.
	FetchMeta(ctx context.Context, table, rowID string) (*document.Meta, error)
	// Ping verifies source-store connectivity.
	Ping(ctx context.Context) error
}
