// Package persist deduplicates canonical referral records and writes them
// as Parquet datasets with atomic replacement.
package persist

import (
	"strconv"
	"strings"

	"github.com/sells-group/referral-cli/internal/model"
	"github.com/sells-group/referral-cli/internal/table"
)

const keySep = "\x1f"

// Dedup drops duplicate records, keeping the first occurrence. When any
// record carries a person id, duplicates are decided by id; records without
// one are compared whole-record among themselves. Otherwise whole records
// are compared. It returns the kept records and the number dropped.
func Dedup(recs []model.Referral) ([]model.Referral, int) {
	byID := false
	for i := range recs {
		if recs[i].PersonID != "" {
			byID = true
			break
		}
	}

	seen := make(map[string]bool, len(recs))
	out := make([]model.Referral, 0, len(recs))
	for i := range recs {
		var key string
		if byID && recs[i].PersonID != "" {
			key = "id" + keySep + recs[i].PersonID
		} else {
			key = "row" + keySep + recordKey(&recs[i])
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, recs[i])
	}
	return out, len(recs) - len(out)
}

func recordKey(r *model.Referral) string {
	parts := []string{
		r.FullName,
		r.WorkPhone,
		r.WorkAddress,
		floatKey(r.Latitude),
		floatKey(r.Longitude),
		string(r.Type),
		r.PersonID,
		r.Specialty,
	}
	if r.ReferralDate != nil {
		parts = append(parts, r.ReferralDate.Format("2006-01-02"))
	} else {
		parts = append(parts, "")
	}
	if r.ProjectID != nil {
		parts = append(parts, strconv.FormatInt(*r.ProjectID, 10))
	} else {
		parts = append(parts, "")
	}
	return strings.Join(parts, keySep)
}

func floatKey(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}

// DedupTable is Dedup for tables, keyed on idColumn when the table has it
// with at least one non-missing value.
func DedupTable(t *table.Table, idColumn string) (*table.Table, int) {
	idx := t.Index(idColumn)
	byID := false
	if idx >= 0 {
		for _, row := range t.Rows {
			if idx < len(row) && !table.IsMissing(row[idx]) {
				byID = true
				break
			}
		}
	}

	out := table.New(t.Columns...)
	seen := make(map[string]bool, len(t.Rows))
	for _, row := range t.Rows {
		var key string
		if byID && idx < len(row) && !table.IsMissing(row[idx]) {
			key = "id" + keySep + table.AsString(row[idx])
		} else {
			key = "row" + keySep + rowKey(row)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Rows = append(out.Rows, row)
	}
	return out, len(t.Rows) - len(out.Rows)
}

func rowKey(row []any) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = table.AsString(v)
	}
	return strings.Join(parts, keySep)
}
