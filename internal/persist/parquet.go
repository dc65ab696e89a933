package persist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/referral-cli/internal/loader"
	"github.com/sells-group/referral-cli/internal/model"
	"github.com/sells-group/referral-cli/internal/resilience"
	"github.com/sells-group/referral-cli/internal/table"
)

type columnKind int

const (
	kindString columnKind = iota
	kindDouble
	kindInt64
	kindBool
)

// fixedKinds pins the physical type of canonical numeric columns so that an
// all-missing column keeps its type.
var fixedKinds = map[string]columnKind{
	model.ColLatitude:             kindDouble,
	model.ColLongitude:            kindDouble,
	model.ColProjectID:            kindInt64,
	model.ColReferralCount:        kindInt64,
	model.ColInboundReferralCount: kindInt64,
	model.ColPreferred:            kindBool,
}

// inferKind picks the narrowest type holding every non-missing value.
func inferKind(t *table.Table, j int) columnKind {
	if k, ok := fixedKinds[t.Columns[j]]; ok {
		return k
	}
	var floats, ints, bools, others int
	for _, row := range t.Rows {
		if j >= len(row) || table.IsMissing(row[j]) {
			continue
		}
		switch row[j].(type) {
		case float64:
			floats++
		case int64, int:
			ints++
		case bool:
			bools++
		default:
			others++
		}
	}
	switch {
	case others > 0 || (bools > 0 && floats+ints > 0):
		return kindString
	case bools > 0:
		return kindBool
	case floats > 0:
		return kindDouble
	case ints > 0:
		return kindInt64
	}
	return kindString
}

func (k columnKind) node() parquet.Node {
	switch k {
	case kindDouble:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType))
	case kindInt64:
		return parquet.Optional(parquet.Int(64))
	case kindBool:
		return parquet.Optional(parquet.Leaf(parquet.BooleanType))
	}
	return parquet.Optional(parquet.String())
}

func (k columnKind) value(v any) parquet.Value {
	if table.IsMissing(v) {
		return parquet.NullValue()
	}
	switch k {
	case kindDouble:
		if f, ok := table.AsFloat(v); ok {
			return parquet.ValueOf(f)
		}
	case kindInt64:
		if f, ok := table.AsFloat(v); ok {
			return parquet.ValueOf(int64(f))
		}
	case kindBool:
		if b, ok := v.(bool); ok {
			return parquet.ValueOf(b)
		}
	default:
		return parquet.ValueOf(table.AsString(v))
	}
	return parquet.NullValue()
}

// EncodeParquet writes t to w. The column order is stored under
// loader.ColumnOrderKey.
func EncodeParquet(w io.Writer, t *table.Table) error {
	if len(t.Columns) == 0 {
		return eris.New("persist: table has no columns")
	}

	group := make(parquet.Group, len(t.Columns))
	kinds := make([]columnKind, len(t.Columns))
	for j, c := range t.Columns {
		if _, dup := group[c]; dup {
			return eris.Errorf("persist: duplicate column %q", c)
		}
		kinds[j] = inferKind(t, j)
		group[c] = kinds[j].node()
	}
	schema := parquet.NewSchema("referrals", group)

	// Leaf order follows the schema, which sorts fields by name.
	leaf := make([]int, len(t.Columns))
	for i, path := range schema.Columns() {
		leaf[t.Index(path[0])] = i
	}

	order, err := json.Marshal(t.Columns)
	if err != nil {
		return eris.Wrap(err, "persist: encode column order")
	}

	pw := parquet.NewWriter(w, schema, parquet.KeyValueMetadata(loader.ColumnOrderKey, string(order)))
	rows := make([]parquet.Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make(parquet.Row, len(t.Columns))
		for j := range t.Columns {
			var v any
			if j < len(r) {
				v = r[j]
			}
			pv := kinds[j].value(v)
			def := 1
			if pv.IsNull() {
				def = 0
			}
			row[leaf[j]] = pv.Level(0, def, leaf[j])
		}
		rows = append(rows, row)
	}
	if _, err := pw.WriteRows(rows); err != nil {
		return eris.Wrap(err, "persist: write rows")
	}
	if err := pw.Close(); err != nil {
		return eris.Wrap(err, "persist: close parquet writer")
	}
	return nil
}

// Writer replaces canonical datasets atomically.
type Writer struct {
	retry  resilience.RetryConfig
	rename func(oldpath, newpath string) error
}

// NewWriter returns a Writer that retries a contended rename up to
// maxAttempts times, waiting step, 2*step, ... between attempts.
func NewWriter(maxAttempts int, step time.Duration) *Writer {
	cfg := resilience.LinearRetryConfig(maxAttempts, step)
	cfg.OnRetry = resilience.RetryLogger("persist", "replace")
	return &Writer{retry: cfg, rename: os.Rename}
}

// WriteTable writes t as Parquet to path+".tmp" and renames it over path.
// A stale temp file from an earlier crash is removed first. Renames that
// fail with lock contention are retried; the last error is returned once
// attempts run out.
func (w *Writer) WriteTable(ctx context.Context, path string, t *table.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "persist: create dir for %s", path)
	}
	tmp := path + ".tmp"

	err := resilience.Do(ctx, w.retry, func(_ context.Context) error {
		return w.writeOnce(tmp, path, t)
	})
	if err != nil {
		return eris.Wrapf(err, "persist: replace %s", path)
	}
	zap.L().Debug("persist: dataset written",
		zap.String("path", path),
		zap.Int("rows", t.Len()),
		zap.Int("columns", len(t.Columns)),
	)
	return nil
}

// WriteReferrals converts recs and writes them with WriteTable.
func (w *Writer) WriteReferrals(ctx context.Context, path string, recs []model.Referral) error {
	return w.WriteTable(ctx, path, ReferralsToTable(recs))
}

func (w *Writer) writeOnce(tmp, path string, t *table.Table) error {
	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := EncodeParquet(f, t); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := w.rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
