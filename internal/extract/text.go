package extract

import (
	"bytes"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/shipops/docsearch/internal/document"
)

// textExtractor handles plain text blobs. Encoding is guessed in order:
// UTF-16 byte order mark, valid UTF-8, Latin-1 fallback.
type textExtractor struct{}

func (textExtractor) Extract(blob []byte) (string, []document.PageEntry, error) {
	return decodeText(blob), nil, nil
}

func decodeText(blob []byte) string {
	switch {
	case bytes.HasPrefix(blob, []byte{0xfe, 0xff}):
		return decodeUTF16(blob[2:], true)
	case bytes.HasPrefix(blob, []byte{0xff, 0xfe}):
		return decodeUTF16(blob[2:], false)
	case utf8.Valid(blob):
		return string(blob)
	default:
		// Latin-1: every byte maps to the code point of the same value.
		runes := make([]rune, len(blob))
		for i, b := range blob {
			runes[i] = rune(b)
		}
		return string(runes)
	}
}

func decodeUTF16(blob []byte, bigEndian bool) string {
	units := make([]uint16, 0, len(blob)/2)
	for i := 0; i+1 < len(blob); i += 2 {
		if bigEndian {
			units = append(units, uint16(blob[i])<<8|uint16(blob[i+1]))
		} else {
			units = append(units, uint16(blob[i+1])<<8|uint16(blob[i]))
		}
	}
	return string(utf16.Decode(units))
}
