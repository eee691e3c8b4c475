// Package identity implements the composite document identity scheme that
// lets one flat index hold rows from several source tables without collision.
// An identity is "<table>:<rowID>", e.g. "VESSEL_CERTIFICATES:456".
package identity

import (
	"fmt"
	"strings"

	apperrors "github.com/shipops/docsearch/pkg/errors"
)

// Delimiter separates the table name from the row ID. Neither component may
// contain it.
const Delimiter = ":"

// Codec encodes and decodes composite identities against a fixed set of
// configured source tables.
type Codec struct {
	tables map[string]struct{}
}

// NewCodec creates a Codec restricted to the given table names.
func NewCodec(tables []string) *Codec {
	set := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		set[t] = struct{}{}
	}
	return &Codec{tables: set}
}

// Encode builds the composite identity for a row. It fails fast when either
// component contains the delimiter or is empty, rather than producing an
// ambiguous identity.
func (c *Codec) Encode(table, rowID string) (string, error) {
	if table == "" || rowID == "" {
		return "", fmt.Errorf("%w: table and row id must be non-empty", apperrors.ErrMalformedIdentity)
	}
	if _, ok := c.tables[table]; !ok {
		return "", fmt.Errorf("%w: unknown source table %q", apperrors.ErrMalformedIdentity, table)
	}
	if strings.Contains(table, Delimiter) || strings.Contains(rowID, Delimiter) {
		return "", fmt.Errorf("%w: components must not contain %q", apperrors.ErrMalformedIdentity, Delimiter)
	}
	return table + Delimiter + rowID, nil
}

// Decode splits a composite identity back into table and row ID. A
// syntactically broken identity is malformed; a well-formed identity naming a
// table that is not configured refers to a document that cannot exist, so it
// decodes to not-found.
func (c *Codec) Decode(id string) (table, rowID string, err error) {
	idx := strings.Index(id, Delimiter)
	if idx <= 0 || idx == len(id)-1 {
		return "", "", fmt.Errorf("%w: %q is not of the form table%srow",
			apperrors.ErrMalformedIdentity, id, Delimiter)
	}
	table, rowID = id[:idx], id[idx+1:]
	if _, ok := c.tables[table]; !ok {
		return "", "", fmt.Errorf("%w: unknown source table %q", apperrors.ErrDocumentNotFound, table)
	}
	return table, rowID, nil
}

// MustEncode is Encode for inputs already validated by the caller; it panics
// on error and exists for test fixtures.
func (c *Codec) MustEncode(table, rowID string) string {
	id, err := c.Encode(table, rowID)
	if err != nil {
		panic(fmt.Sprintf("identity: %v", err))
	}
	return id
}
