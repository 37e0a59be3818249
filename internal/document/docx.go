package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

const docxBody = "word/document.xml"

// ExtractDOCX returns the paragraph text of a Word document, one paragraph
// per line.
func ExtractDOCX(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "docx: extract")
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", eris.Wrapf(ErrCorruptDocument, "docx: open zip: %v", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", eris.Wrapf(ErrCorruptDocument, "docx: missing %s", docxBody)
	}

	rc, err := body.Open()
	if err != nil {
		return "", eris.Wrapf(ErrCorruptDocument, "docx: open %s: %v", docxBody, err)
	}
	defer rc.Close() //nolint:errcheck

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", eris.Wrapf(ErrCorruptDocument, "docx: parse xml: %v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteString("\t")
			case "br", "cr":
				current.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return strings.Join(paragraphs, "\n"), nil
}
