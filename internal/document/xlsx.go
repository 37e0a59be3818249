package document

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ExtractXLSX renders every sheet as a "--- Sheet: <name> ---" header
// followed by tab-separated rows.
func ExtractXLSX(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "xlsx: extract")
	}

	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return "", eris.Wrapf(ErrCorruptDocument, "xlsx: open: %v", err)
	}

	var lines []string
	for _, sheet := range f.Sheets {
		lines = append(lines, "--- Sheet: "+sheet.Name+" ---")
		for _, row := range sheet.Rows {
			lines = append(lines, strings.Join(rowToStrings(row), "\t"))
		}
	}
	return strings.Join(lines, "\n"), nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
