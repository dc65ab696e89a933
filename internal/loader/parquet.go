package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/rotisserie/eris"

	"github.com/sells-group/referral-cli/internal/table"
)

// ColumnOrderKey is the Parquet key/value metadata entry holding the
// original column order as a JSON array. Parquet groups sort their fields
// by name, so without it the canonical order would be lost on read.
const ColumnOrderKey = "column_order"

const parquetBatch = 128

func readParquet(data []byte) (*table.Table, error) {
	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "parquet: open")
	}

	leaves := pf.Schema().Columns()
	names := make([]string, len(leaves))
	for i, path := range leaves {
		names[i] = strings.Join(path, ".")
	}

	order := names
	if raw, ok := pf.Lookup(ColumnOrderKey); ok {
		var stored []string
		if err := json.Unmarshal([]byte(raw), &stored); err == nil && len(stored) == len(names) {
			order = stored
		}
	}

	t := table.New(order...)
	pos := make([]int, len(names)) // leaf index -> table column
	for i, n := range names {
		pos[i] = t.Index(n)
	}

	buf := make([]parquet.Row, parquetBatch)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, r := range buf[:n] {
				out := make([]any, len(order))
				for _, v := range r {
					c := v.Column()
					if c < 0 || c >= len(pos) || pos[c] < 0 {
						continue
					}
					out[pos[c]] = parquetValue(v)
				}
				t.Rows = append(t.Rows, out)
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_ = rows.Close()
				return nil, eris.Wrap(err, "parquet: read rows")
			}
		}
		if err := rows.Close(); err != nil {
			return nil, eris.Wrap(err, "parquet: close row group")
		}
	}
	return t, nil
}

func parquetValue(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return nil
	}
}
