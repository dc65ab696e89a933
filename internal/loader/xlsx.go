package loader

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/referral-cli/internal/table"
)

// readXLSX parses the first sheet with tealeg/xlsx. Numeric cells stay
// float64 so serial dates reach the date normalizer unformatted.
func readXLSX(data []byte) (*table.Table, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("xlsx: sheet %q is empty", sheet.Name)
	}

	header := rowToStrings(sheet.Rows[0])
	t := table.New(header...)
	for _, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		vals := make([]any, len(t.Columns))
		blank := true
		for j, cell := range row.Cells {
			if j >= len(vals) || cell == nil {
				break
			}
			v := cellValue(cell)
			if v != nil {
				blank = false
			}
			vals[j] = v
		}
		if !blank {
			t.Rows = append(t.Rows, vals)
		}
	}
	return t, nil
}

func cellValue(cell *xlsx.Cell) any {
	raw := strings.TrimSpace(cell.Value)
	if raw == "" {
		return nil
	}
	switch cell.Type() {
	case xlsx.CellTypeNumeric:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case xlsx.CellTypeBool:
		return raw == "1"
	}
	s := strings.TrimSpace(cell.String())
	if s == "" {
		return nil
	}
	return s
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell != nil {
			cells[j] = cell.String()
		}
	}
	return cells
}

// readExcelize is the alternate XLSX engine; it tolerates workbooks whose
// styles or shared strings tealeg rejects. Raw cell values are requested so
// date cells come back as serials.
func readExcelize(data []byte) (*table.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "excelize: open")
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, eris.New("excelize: workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, eris.Wrapf(err, "excelize: read sheet %q", sheets[0])
	}
	t, err := fromRows(rows)
	if err != nil {
		return nil, eris.Wrap(err, "excelize")
	}
	return t, nil
}

// readXLS parses legacy compound-file workbooks.
func readXLS(data []byte) (*table.Table, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, eris.Wrap(err, "xls: open")
	}
	if wb.NumSheets() == 0 {
		return nil, eris.New("xls: workbook has no sheets")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, eris.New("xls: first sheet unreadable")
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	// Leading empty rows precede the header in some exports.
	for len(rows) > 0 && isBlank(rows[0]) {
		rows = rows[1:]
	}
	t, err := fromRows(rows)
	if err != nil {
		return nil, eris.Wrap(err, "xls")
	}
	return t, nil
}
