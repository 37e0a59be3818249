package document

import (
	"bytes"
	"context"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ExtractText decodes a plain-text file. A BOM selects UTF-8 or UTF-16;
// input that is not valid UTF-8 is read as Windows-1252.
func ExtractText(_ context.Context, data []byte) (string, error) {
	if hasBOM(data) {
		dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return "", eris.Wrapf(ErrCorruptDocument, "text: decode: %v", err)
		}
		return string(out), nil
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return "", eris.Wrapf(ErrCorruptDocument, "text: decode windows-1252: %v", err)
	}
	return string(out), nil
}

func hasBOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(data, []byte{0xFE, 0xFF}) ||
		bytes.HasPrefix(data, []byte{0xFF, 0xFE})
}
