package ingest

import (
	"context"

	"github.com/sells-group/referral-cli/internal/model"
	"github.com/sells-group/referral-cli/internal/table"
)

// IntegrityReport summarizes the health of one dataset.
type IntegrityReport struct {
	Source                 Source   `json:"source"`
	Path                   string   `json:"path,omitempty"`
	Cleaned                bool     `json:"cleaned"`
	Rows                   int      `json:"rows"`
	Columns                int      `json:"columns"`
	MissingRequiredColumns []string `json:"missing_required_columns"`
	DuplicateIdentifiers   int      `json:"duplicate_identifiers"`
	OutOfRangeCoordinates  int      `json:"out_of_range_coordinates"`
	MissingValuePercent    float64  `json:"missing_value_percent"`
}

// OK reports whether the dataset has every required column and no
// duplicate identifiers or invalid coordinates.
func (r *IntegrityReport) OK() bool {
	return len(r.MissingRequiredColumns) == 0 && r.DuplicateIdentifiers == 0 && r.OutOfRangeCoordinates == 0
}

var requiredColumns = map[Source][]string{
	SourceInbound:   {model.ColFullName, model.ColLatitude, model.ColLongitude, model.ColReferralType},
	SourceOutbound:  {model.ColFullName, model.ColLatitude, model.ColLongitude, model.ColReferralType},
	SourceCombined:  {model.ColFullName, model.ColLatitude, model.ColLongitude, model.ColReferralType},
	SourceProviders: {model.ColFullName, model.ColLatitude, model.ColLongitude, model.ColReferralCount},
	SourcePreferred: {model.ColFullName},
}

// ValidateDataIntegrity loads src and reports on its shape and quality.
func (m *Manager) ValidateDataIntegrity(ctx context.Context, src Source) (*IntegrityReport, error) {
	r, err := m.resolve(src)
	if err != nil {
		return nil, err
	}
	t, err := m.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	report := CheckIntegrity(src, t)
	report.Path = r.path
	report.Cleaned = r.cleaned && src != SourceProviders
	return report, nil
}

// CheckIntegrity builds the report of an already loaded dataset.
func CheckIntegrity(src Source, t *table.Table) *IntegrityReport {
	r := &IntegrityReport{
		Source:                 src,
		Rows:                   t.Len(),
		Columns:                len(t.Columns),
		MissingRequiredColumns: []string{},
	}
	for _, c := range requiredColumns[src] {
		if !t.Has(c) {
			r.MissingRequiredColumns = append(r.MissingRequiredColumns, c)
		}
	}
	r.DuplicateIdentifiers = duplicateIdentifiers(t)
	r.OutOfRangeCoordinates = outOfRangeCoordinates(t)
	if cells := r.Rows * r.Columns; cells > 0 {
		r.MissingValuePercent = float64(t.MissingCount()) / float64(cells) * 100
	}
	return r
}

// duplicateIdentifiers counts rows whose person id repeats an earlier row of
// the same referral type.
func duplicateIdentifiers(t *table.Table) int {
	if !t.Has(model.ColPersonID) {
		return 0
	}
	seen := make(map[string]bool)
	n := 0
	for i := 0; i < t.Len(); i++ {
		row := t.At(i)
		id := row.String(model.ColPersonID)
		if id == "" {
			continue
		}
		key := row.String(model.ColReferralType) + "|" + id
		if seen[key] {
			n++
			continue
		}
		seen[key] = true
	}
	return n
}

// outOfRangeCoordinates counts rows with a present latitude or longitude
// that is unparseable or outside its valid range.
func outOfRangeCoordinates(t *table.Table) int {
	return t.Filter(func(r table.Row) bool {
		return badCoordinate(r.Value(model.ColLatitude), 90) || badCoordinate(r.Value(model.ColLongitude), 180)
	}).Len()
}

func badCoordinate(v any, limit float64) bool {
	if table.IsMissing(v) {
		return false
	}
	f, ok := table.AsFloat(v)
	return !ok || f < -limit || f > limit
}
