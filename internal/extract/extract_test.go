package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDispatch_UnsupportedExtension(t *testing.T) {
	d := NewDispatcher(0)
	res := d.Dispatch("archive.zip", []byte("PK\x03\x04"))
	assert.Equal(t, OutcomeUnsupported, res.Outcome)
	assert.NoError(t, res.Err)

	res = d.Dispatch("noextension", nil)
	assert.Equal(t, OutcomeUnsupported, res.Outcome)
}

func TestDispatch_PlainText(t *testing.T) {
	d := NewDispatcher(0)
	res := d.Dispatch("notes.TXT", []byte("invoice total 500\n\n  trailing  \n"))
	require.Equal(t, OutcomeExtracted, res.Outcome)
	assert.Equal(t, "invoice total 500\ntrailing", res.Text)
	assert.Empty(t, res.Pages)
}

func TestDispatch_TextEncodings(t *testing.T) {
	d := NewDispatcher(0)

	// UTF-16 little endian with BOM.
	utf16 := []byte{0xff, 0xfe, 'h', 0, 'i', 0}
	res := d.Dispatch("a.txt", utf16)
	require.Equal(t, OutcomeExtracted, res.Outcome)
	assert.Equal(t, "hi", res.Text)

	// Latin-1 bytes that are not valid UTF-8.
	res = d.Dispatch("b.txt", []byte{'c', 'a', 'f', 0xe9})
	require.Equal(t, OutcomeExtracted, res.Outcome)
	assert.Equal(t, "café", res.Text)
}

func TestDispatch_ImageIsMetadataOnly(t *testing.T) {
	d := NewDispatcher(0)
	res := d.Dispatch("scan.png", []byte{0x89, 'P', 'N', 'G'})
	require.Equal(t, OutcomeExtracted, res.Outcome)
	assert.Empty(t, res.Text)
	assert.Empty(t, res.Pages)
}

func TestDispatch_CorruptPDFFails(t *testing.T) {
	d := NewDispatcher(0)
	res := d.Dispatch("broken.pdf", []byte("this is not a pdf"))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Error(t, res.Err)
}

func TestDispatch_LegacyDocFails(t *testing.T) {
	// A genuine pre-2007 .doc is an OLE compound file, not a zip; the word
	// extractor rejects it as failed rather than crashing.
	d := NewDispatcher(0)
	res := d.Dispatch("old.doc", []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1})
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestDispatch_Docx(t *testing.T) {
	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Safety procedure</w:t></w:r></w:p>
    <w:p><w:r><w:t>Step one: </w:t></w:r><w:r><w:t>do not panic</w:t></w:r></w:p>
  </w:body>
</w:document>`
	blob := buildZip(t, map[string]string{"word/document.xml": docXML})

	d := NewDispatcher(0)
	res := d.Dispatch("procedure.docx", blob)
	require.Equal(t, OutcomeExtracted, res.Outcome, "err: %v", res.Err)
	assert.Contains(t, res.Text, "Safety procedure")
	assert.Contains(t, res.Text, "Step one: do not panic")
	assert.Empty(t, res.Pages)
}

func TestDispatch_Pptx(t *testing.T) {
	slide := func(text string) string {
		return `<?xml version="1.0"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
       xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld><p:spTree><p:sp><p:txBody>
    <a:p><a:r><a:t>` + text + `</a:t></a:r></a:p>
  </p:txBody></p:sp></p:spTree></p:cSld>
</p:sld>`
	}
	blob := buildZip(t, map[string]string{
		"ppt/slides/slide2.xml": slide("second slide"),
		"ppt/slides/slide1.xml": slide("first slide"),
	})

	d := NewDispatcher(0)
	res := d.Dispatch("deck.pptx", blob)
	require.Equal(t, OutcomeExtracted, res.Outcome, "err: %v", res.Err)
	assert.Contains(t, res.Text, "[Slide 1]\nfirst slide")
	assert.Contains(t, res.Text, "[Slide 2]\nsecond slide")
	assert.Less(t, bytes.Index([]byte(res.Text), []byte("first")),
		bytes.Index([]byte(res.Text), []byte("second")))
}

func TestDispatch_Xlsx(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "certificate"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "expiry"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "SOLAS"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	d := NewDispatcher(0)
	res := d.Dispatch("certs.xlsx", buf.Bytes())
	require.Equal(t, OutcomeExtracted, res.Outcome, "err: %v", res.Err)
	assert.Contains(t, res.Text, "[Sheet: Sheet1]")
	assert.Contains(t, res.Text, "certificate | expiry")
	assert.Contains(t, res.Text, "SOLAS")
}

func TestDispatch_Truncation(t *testing.T) {
	d := NewDispatcher(10)
	res := d.Dispatch("big.txt", []byte("aaaaaaaaaaaaaaaaaaaaaaaa"))
	require.Equal(t, OutcomeExtracted, res.Outcome)
	assert.Equal(t, "aaaaaaaaaa"+TruncationMarker, res.Text)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "", CleanText(""))
	assert.Equal(t, "a\nb", CleanText("  a  \n\n\x00\n\tb\t\n"))
	assert.Equal(t, "ab", CleanText("a\x01\x02b"))
}

func TestTruncate_DoesNotSplitRune(t *testing.T) {
	s := "日本語テキスト"
	out := Truncate(s, 4)
	assert.True(t, len(out) >= len(TruncationMarker))
	assert.Contains(t, out, TruncationMarker)
	// The kept prefix must still be valid UTF-8.
	assert.Equal(t, "日", out[:3])
}

func buildZip(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
