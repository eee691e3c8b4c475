package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/shipops/docsearch/internal/document"
	"github.com/shipops/docsearch/pkg/config"
	apperrors "github.com/shipops/docsearch/pkg/errors"
	"github.com/shipops/docsearch/pkg/postgres"
)

// PostgresGateway implements Gateway over the configured PostgreSQL tables.
// Column names come from per-table config, so every identifier is quoted
// before it reaches SQL.
type PostgresGateway struct {
	client *postgres.Client
	cfg    config.SourceConfig
	logger *slog.Logger
}

// NewPostgresGateway creates a gateway over the given connection and table
// schemas.
func NewPostgresGateway(client *postgres.Client, cfg config.SourceConfig) *PostgresGateway {
	return &PostgresGateway{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "source-gateway"),
	}
}

func (g *PostgresGateway) Ping(ctx context.Context) error {
	return g.client.Ping(ctx)
}

// ListDocuments enumerates ingestible rows from every configured table. A
// failure on one table fails the listing: a partial enumeration would make
// run statistics meaningless.
func (g *PostgresGateway) ListDocuments(ctx context.Context) ([]document.Meta, error) {
	var all []document.Meta
	for _, schema := range g.cfg.Tables {
		metas, err := g.listTable(ctx, schema)
		if err != nil {
			return nil, fmt.Errorf("%w: listing documents from %s: %w", apperrors.ErrConnectivity, schema.Name, err)
		}
		g.logger.Info("listed source table", "table", schema.Name, "documents", len(metas))
		all = append(all, metas...)
	}
	return all, nil
}

func (g *PostgresGateway) listTable(ctx context.Context, schema config.TableSchema) ([]document.Meta, error) {
	cols := []string{
		castText(schema.IDColumn),
		quoted(schema.NameColumn),
		textOrEmpty(schema.MimeColumn),
		textOrEmpty(schema.TitleColumn),
		textOrEmpty(schema.FormNoColumn),
		timestampOrNull(schema.UpdatedColumn),
		fmt.Sprintf("octet_length(%s)", quoted(schema.ContentColumn)),
	}
	extras := append(append([]string{}, schema.PathColumns...), schema.MetadataColumns...)
	for _, c := range extras {
		cols = append(cols, castText(c))
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s IS NOT NULL AND %s IS NOT NULL%s%s",
		strings.Join(cols, ", "),
		quoted(schema.Name),
		quoted(schema.ContentColumn),
		quoted(schema.NameColumn),
		activeClause(schema),
		orderClause(schema),
	)

	rows, err := g.client.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []document.Meta
	for rows.Next() {
		meta, err := scanMeta(rows, schema)
		if err != nil {
			return nil, err
		}
		metas = append(metas, *meta)
	}
	return metas, rows.Err()
}

// FetchBlob returns the binary content of one row, or ErrDocumentNotFound.
func (g *PostgresGateway) FetchBlob(ctx context.Context, table, rowID string) ([]byte, error) {
	schema, ok := g.cfg.Table(table)
	if !ok {
		return nil, fmt.Errorf("%w: table %q not configured", apperrors.ErrDocumentNotFound, table)
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 AND %s IS NOT NULL%s",
		quoted(schema.ContentColumn),
		quoted(schema.Name),
		castText(schema.IDColumn),
		quoted(schema.ContentColumn),
		activeClause(schema),
	)
	var blob []byte
	err := g.client.DB.QueryRowContext(ctx, query, rowID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s:%s", apperrors.ErrDocumentNotFound, table, rowID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching blob %s:%s: %w", table, rowID, err)
	}
	return blob, nil
}

// FetchMeta returns one row's metadata, or ErrDocumentNotFound.
func (g *PostgresGateway) FetchMeta(ctx context.Context, table, rowID string) (*document.Meta, error) {
	schema, ok := g.cfg.Table(table)
	if !ok {
		return nil, fmt.Errorf("%w: table %q not configured", apperrors.ErrDocumentNotFound, table)
	}
	cols := []string{
		castText(schema.IDColumn),
		quoted(schema.NameColumn),
		textOrEmpty(schema.MimeColumn),
		textOrEmpty(schema.TitleColumn),
		textOrEmpty(schema.FormNoColumn),
		timestampOrNull(schema.UpdatedColumn),
		fmt.Sprintf("octet_length(%s)", quoted(schema.ContentColumn)),
	}
	extras := append(append([]string{}, schema.PathColumns...), schema.MetadataColumns...)
	for _, c := range extras {
		cols = append(cols, castText(c))
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1%s",
		strings.Join(cols, ", "),
		quoted(schema.Name),
		castText(schema.IDColumn),
		activeClause(schema),
	)
	row := g.client.DB.QueryRowContext(ctx, query, rowID)
	meta, err := scanMeta(row, schema)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s:%s", apperrors.ErrDocumentNotFound, table, rowID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching metadata %s:%s: %w", table, rowID, err)
	}
	return meta, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanMeta scans the fixed columns plus the schema's path and metadata
// columns into a document.Meta.
func scanMeta(row rowScanner, schema config.TableSchema) (*document.Meta, error) {
	var (
		id      string
		name    string
		mime    sql.NullString
		title   sql.NullString
		formNo  sql.NullString
		updated sql.NullTime
		size    sql.NullInt64
	)
	dest := []any{&id, &name, &mime, &title, &formNo, &updated, &size}

	extras := append(append([]string{}, schema.PathColumns...), schema.MetadataColumns...)
	extraVals := make([]sql.NullString, len(extras))
	for i := range extraVals {
		dest = append(dest, &extraVals[i])
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	byColumn := make(map[string]string, len(extras))
	for i, col := range extras {
		if extraVals[i].Valid {
			byColumn[col] = extraVals[i].String
		}
	}

	meta := &document.Meta{
		SourceTable: schema.Name,
		RowID:       id,
		Name:        name,
		Title:       title.String,
		FormNo:      formNo.String,
		MimeType:    mime.String,
		SizeBytes:   size.Int64,
		Path:        derivePath(schema, byColumn, name),
	}
	if meta.Title == "" {
		meta.Title = name
	}
	if meta.MimeType == "" {
		meta.MimeType = "application/octet-stream"
	}
	if updated.Valid {
		meta.ModifiedTime = updated.Time
	}
	if len(schema.MetadataColumns) > 0 {
		md := make(map[string]any, len(schema.MetadataColumns))
		for _, col := range schema.MetadataColumns {
			if v, ok := byColumn[col]; ok {
				md[col] = v
			}
		}
		if len(md) > 0 {
			meta.Metadata = md
		}
	}
	return meta, nil
}

// derivePath joins the configured path column values with "/" and appends the
// filename, producing the human-readable category string shown in results.
func derivePath(schema config.TableSchema, byColumn map[string]string, name string) string {
	parts := make([]string, 0, len(schema.PathColumns)+2)
	parts = append(parts, schema.Name)
	for _, col := range schema.PathColumns {
		if v := byColumn[col]; v != "" {
			parts = append(parts, v)
		}
	}
	parts = append(parts, name)
	return strings.Join(parts, "/")
}

func quoted(ident string) string {
	return pq.QuoteIdentifier(ident)
}

func castText(col string) string {
	return quoted(col) + "::text"
}

func textOrEmpty(col string) string {
	if col == "" {
		return "''"
	}
	return fmt.Sprintf("COALESCE(%s::text, '')", quoted(col))
}

func timestampOrNull(col string) string {
	if col == "" {
		return "NULL::timestamptz"
	}
	return quoted(col)
}

func activeClause(schema config.TableSchema) string {
	if schema.ActiveColumn == "" {
		return ""
	}
	return fmt.Sprintf(" AND %s", quoted(schema.ActiveColumn))
}

func orderClause(schema config.TableSchema) string {
	if schema.UpdatedColumn == "" {
		return ""
	}
	return fmt.Sprintf(" ORDER BY %s DESC", quoted(schema.UpdatedColumn))
}
