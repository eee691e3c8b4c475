package source

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipops/docsearch/pkg/config"
)

var formsSchema = config.TableSchema{
	Name:            "FORMS_MASTER",
	IDColumn:        "form_id",
	NameColumn:      "file_name",
	MimeColumn:      "mime_type",
	TitleColumn:     "title",
	ContentColumn:   "file_content",
	UpdatedColumn:   "updated_at",
	FormNoColumn:    "form_no",
	ActiveColumn:    "is_active",
	PathColumns:     []string{"department", "category"},
	MetadataColumns: []string{"department", "form_no"},
}

// fakeRow feeds canned column values through the rowScanner interface.
type fakeRow struct {
	values []any
}

func (r *fakeRow) Scan(dest ...any) error {
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *sql.NullString:
			if v == nil {
				*d = sql.NullString{}
			} else {
				*d = sql.NullString{String: v.(string), Valid: true}
			}
		case *sql.NullTime:
			if v == nil {
				*d = sql.NullTime{}
			} else {
				*d = sql.NullTime{Time: v.(time.Time), Valid: true}
			}
		case *sql.NullInt64:
			*d = sql.NullInt64{Int64: v.(int64), Valid: true}
		}
	}
	return nil
}

func TestScanMeta(t *testing.T) {
	updated := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	row := &fakeRow{values: []any{
		"42", "safety-form.pdf", "application/pdf", "Safety Form", "F-042",
		updated, int64(2048),
		// path columns, then metadata columns
		"HSE", "Forms", "HSE", "F-042",
	}}

	meta, err := scanMeta(row, formsSchema)
	require.NoError(t, err)

	assert.Equal(t, "FORMS_MASTER", meta.SourceTable)
	assert.Equal(t, "42", meta.RowID)
	assert.Equal(t, "safety-form.pdf", meta.Name)
	assert.Equal(t, "Safety Form", meta.Title)
	assert.Equal(t, "F-042", meta.FormNo)
	assert.Equal(t, "application/pdf", meta.MimeType)
	assert.Equal(t, int64(2048), meta.SizeBytes)
	assert.Equal(t, updated, meta.ModifiedTime)
	assert.Equal(t, "FORMS_MASTER/HSE/Forms/safety-form.pdf", meta.Path)
	assert.Equal(t, map[string]any{"department": "HSE", "form_no": "F-042"}, meta.Metadata)
}

func TestScanMetaFallbacks(t *testing.T) {
	row := &fakeRow{values: []any{
		"7", "untitled.txt", nil, nil, nil,
		nil, int64(10),
		nil, nil, nil, nil,
	}}

	meta, err := scanMeta(row, formsSchema)
	require.NoError(t, err)

	assert.Equal(t, "untitled.txt", meta.Title)
	assert.Equal(t, "application/octet-stream", meta.MimeType)
	assert.True(t, meta.ModifiedTime.IsZero())
	assert.Equal(t, "FORMS_MASTER/untitled.txt", meta.Path)
	assert.Nil(t, meta.Metadata)
}

func TestColumnExpressions(t *testing.T) {
	assert.Equal(t, `"form_id"::text`, castText("form_id"))
	assert.Equal(t, `COALESCE("title"::text, '')`, textOrEmpty("title"))
	assert.Equal(t, "''", textOrEmpty(""))
	assert.Equal(t, "NULL::timestamptz", timestampOrNull(""))
	assert.Equal(t, `"updated_at"`, timestampOrNull("updated_at"))

	// identifiers from config are always quoted
	assert.Equal(t, `"drop table users"`, quoted("drop table users"))
}

func TestActiveAndOrderClauses(t *testing.T) {
	assert.Equal(t, ` AND "is_active"`, activeClause(formsSchema))
	assert.Equal(t, ` ORDER BY "updated_at" DESC`, orderClause(formsSchema))

	bare := config.TableSchema{Name: "T"}
	assert.Empty(t, activeClause(bare))
	assert.Empty(t, orderClause(bare))
}
