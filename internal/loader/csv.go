package loader

import (
	"bytes"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/referral-cli/internal/table"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV parses comma-separated data. Input that is not valid UTF-8 is
// decoded as Windows-1252, which is what spreadsheet "Save as CSV" emits.
func readCSV(data []byte) (*table.Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, eris.New("csv: empty input")
	}
	if bytes.IndexByte(data, 0) >= 0 || bytes.HasPrefix(data, sigZIP) || bytes.HasPrefix(data, sigCompound) {
		return nil, eris.New("csv: binary content")
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, eris.Wrap(err, "csv: decode windows-1252")
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		rows = append(rows, record)
	}
	return fromRows(rows)
}
