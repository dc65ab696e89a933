// Package loader reads referral exports (CSV, XLS, XLSX, Parquet) into
// tables, detecting the format from the file name or the leading bytes and
// falling back across engines when the first choice cannot parse the input.
package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/referral-cli/internal/table"
)

// Format is a tabular file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatXLS     Format = "xls"
	FormatParquet Format = "parquet"
)

// Engine names, reported in FormatError attempts.
const (
	EngineCSV      = "encoding/csv"
	EngineTealeg   = "tealeg/xlsx"
	EngineExcelize = "excelize"
	EngineLegacy   = "extrame/xls"
	EngineParquet  = "parquet-go"
)

var (
	sigZIP      = []byte{'P', 'K', 0x03, 0x04}
	sigCompound = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// Source is one input to Load. Exactly one of Table, Data or Path is used,
// in that order of precedence. Filename is a hint for in-memory data.
type Source struct {
	Path     string
	Data     []byte
	Filename string
	Table    *table.Table
}

type attemptFn func(data []byte) (*table.Table, error)

type plannedAttempt struct {
	format Format
	engine string
	read   attemptFn
}

// Load reads src into a table with whitespace-trimmed column names.
func Load(src Source) (*table.Table, error) {
	if src.Table != nil {
		t := src.Table.Clone()
		t.NormalizeColumns()
		return t, nil
	}

	data := src.Data
	name := src.Filename
	if data == nil {
		if src.Path == "" {
			return nil, eris.New("loader: empty source")
		}
		b, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: read %s", src.Path)
		}
		data = b
		if name == "" {
			name = src.Path
		}
	}

	format := DetectFormat(name, data)
	log := zap.L().With(zap.String("component", "loader"), zap.String("file", name))

	ferr := &FormatError{Name: name}
	for _, a := range plan(format) {
		t, err := a.read(data)
		if err != nil {
			log.Debug("loader: attempt failed",
				zap.String("format", string(a.format)),
				zap.String("engine", a.engine),
				zap.Error(err),
			)
			ferr.Attempts = append(ferr.Attempts, Attempt{Format: a.format, Engine: a.engine, Err: err})
			continue
		}
		t.NormalizeColumns()
		if a.format != format {
			log.Info("loader: parsed with fallback format",
				zap.String("detected", string(format)),
				zap.String("format", string(a.format)),
				zap.String("engine", a.engine),
			)
		}
		return t, nil
	}
	return nil, ferr
}

// LoadFile reads the file at path.
func LoadFile(path string) (*table.Table, error) {
	return Load(Source{Path: path})
}

// LoadBytes reads an in-memory buffer; filename may be empty.
func LoadBytes(data []byte, filename string) (*table.Table, error) {
	return Load(Source{Data: data, Filename: filename})
}

// DetectFormat resolves the format from the file extension, then from the
// first four bytes. Anything unrecognized is treated as CSV.
func DetectFormat(filename string, head []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	case ".parquet":
		return FormatParquet
	}
	switch {
	case bytes.HasPrefix(head, sigZIP):
		return FormatXLSX
	case bytes.HasPrefix(head, sigCompound):
		return FormatXLS
	}
	return FormatCSV
}

// plan returns the ordered engine attempts for a detected format.
func plan(f Format) []plannedAttempt {
	csvAttempt := plannedAttempt{FormatCSV, EngineCSV, readCSV}
	tealeg := plannedAttempt{FormatXLSX, EngineTealeg, readXLSX}
	excel := plannedAttempt{FormatXLSX, EngineExcelize, readExcelize}
	legacy := plannedAttempt{FormatXLS, EngineLegacy, readXLS}

	switch f {
	case FormatXLSX:
		return []plannedAttempt{tealeg, excel, csvAttempt}
	case FormatXLS:
		return []plannedAttempt{legacy, tealeg, csvAttempt}
	case FormatParquet:
		return []plannedAttempt{{FormatParquet, EngineParquet, readParquet}}
	default:
		return []plannedAttempt{csvAttempt, tealeg, excel}
	}
}

// Attempt records one failed parse.
type Attempt struct {
	Format Format
	Engine string
	Err    error
}

// FormatError is returned when no engine could parse the input.
type FormatError struct {
	Name     string
	Attempts []Attempt
}

func (e *FormatError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s (%s): %v", a.Format, a.Engine, a.Err)
	}
	name := e.Name
	if name == "" {
		name = "<buffer>"
	}
	return fmt.Sprintf("loader: could not parse %s; tried %s", name, strings.Join(parts, "; "))
}

// fromRows builds a table from a header row and data rows of strings.
// Empty cells become missing; ragged rows are padded.
func fromRows(rows [][]string) (*table.Table, error) {
	if len(rows) == 0 {
		return nil, eris.New("no header row")
	}
	t := table.New(rows[0]...)
	for _, rec := range rows[1:] {
		if isBlank(rec) {
			continue
		}
		row := make([]any, len(t.Columns))
		for j := 0; j < len(row) && j < len(rec); j++ {
			if s := strings.TrimSpace(rec[j]); s != "" {
				row[j] = s
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
