package extract

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/referral-cli/internal/clean"
	"github.com/sells-group/referral-cli/internal/model"
	"github.com/sells-group/referral-cli/internal/table"
)

// Options tunes an extraction run.
type Options struct {
	// Now anchors the future-date cutoff of date normalization. Zero means
	// time.Now().
	Now time.Time
}

// Result holds the canonical records of one raw export, split by type.
// Combined is Inbound followed by Outbound.
type Result struct {
	Inbound  []model.Referral
	Outbound []model.Referral
	Combined []model.Referral
	Summary  *Summary
}

// Extract applies each mapping to raw and returns the cleaned records. A nil
// or empty mappings slice uses DefaultMappings. Data quality problems never
// fail the run; they are collected in the summary.
func Extract(raw *table.Table, mappings []Mapping, opts Options) (*Result, error) {
	if raw == nil {
		return nil, eris.New("extract: nil table")
	}
	if len(mappings) == 0 {
		mappings = DefaultMappings()
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	log := zap.L().With(zap.String("component", "extract"))
	sum := NewSummary()
	res := &Result{Summary: sum}

	for i := range mappings {
		m := &mappings[i]
		if err := m.Validate(); err != nil {
			return nil, err
		}

		if reason := skipReason(raw, m); reason != "" {
			sum.SkippedConfigs = append(sum.SkippedConfigs, m.Name)
			sum.addWarning(fmt.Sprintf("%s: skipped, %s", m.Name, reason))
			log.Warn("extract: mapping skipped", zap.String("mapping", m.Name), zap.String("reason", reason))
			continue
		}

		recs := extractMapping(raw, m, now, sum, log)
		sum.ConfigCounts[m.Name] = len(recs)
		log.Debug("extract: mapping applied",
			zap.String("mapping", m.Name),
			zap.String("type", string(m.Type)),
			zap.Int("records", len(recs)),
		)

		switch m.Type {
		case model.ReferralInbound:
			res.Inbound = append(res.Inbound, recs...)
		case model.ReferralOutbound:
			res.Outbound = append(res.Outbound, recs...)
		}
	}

	res.Combined = make([]model.Referral, 0, len(res.Inbound)+len(res.Outbound))
	res.Combined = append(res.Combined, res.Inbound...)
	res.Combined = append(res.Combined, res.Outbound...)
	sum.SetCounts(len(res.Inbound), len(res.Outbound))
	return res, nil
}

// skipReason returns a non-empty reason when m cannot be applied to raw:
// a filter depends on an absent column, or no mapped column is present.
func skipReason(raw *table.Table, m *Mapping) string {
	for _, f := range m.Filters {
		switch f.Kind {
		case FilterEquals:
			if !raw.Has(f.Column) {
				return fmt.Sprintf("filter column %q absent", f.Column)
			}
		case FilterPresent:
			if src := m.sourceFor(f.Column); !raw.Has(src) {
				return fmt.Sprintf("filter column %q absent", src)
			}
		case FilterCoordinates:
			for _, c := range []string{model.ColLatitude, model.ColLongitude} {
				if src := m.sourceFor(c); !raw.Has(src) {
					return fmt.Sprintf("filter column %q absent", src)
				}
			}
		}
	}
	for src := range m.Columns {
		if raw.Has(src) {
			return ""
		}
	}
	return "no mapped columns present"
}

func extractMapping(raw *table.Table, m *Mapping, now time.Time, sum *Summary, log *zap.Logger) []model.Referral {
	pairs := m.pairs()
	sources := make([]string, len(pairs))
	rename := make(map[string]string, len(pairs))
	for i, p := range pairs {
		sources[i] = p.Source
		rename[p.Source] = p.Canonical
		if raw.Has(p.Source) {
			continue
		}
		sum.MissingSourceColumns[m.Name] = append(sum.MissingSourceColumns[m.Name], p.Source)
		if p.Source == m.Identifier {
			log.Debug("extract: optional identifier column absent",
				zap.String("mapping", m.Name),
				zap.String("column", p.Source),
			)
			continue
		}
		sum.addWarning(fmt.Sprintf("%s: missing column %q (%s)", m.Name, p.Source, p.Canonical))
		log.Warn("extract: missing source column",
			zap.String("mapping", m.Name),
			zap.String("column", p.Source),
		)
	}

	canon := raw.Select(sources...)
	canon.Rename(rename)

	reportAddress := raw.Has(m.sourceFor(model.ColWorkAddress))
	reportPhone := raw.Has(m.sourceFor(model.ColWorkPhone))
	reportCoordinates := raw.Has(m.sourceFor(model.ColLatitude)) && raw.Has(m.sourceFor(model.ColLongitude))

	var out []model.Referral
	for i := range canon.Rows {
		if !matchesEquals(raw.At(i), m.Filters) {
			continue
		}
		row := canon.At(i)
		rec := cleanRecord(row, m.Type, now)

		if category := failedFilter(&rec, m.Filters); category != "" {
			sum.addIssue(category, m.Name, canon.Columns, canon.Rows[i])
			continue
		}
		if reportAddress && rec.WorkAddress == "" {
			sum.addIssue(IssueMissingAddress, m.Name, canon.Columns, canon.Rows[i])
		}
		if reportPhone && rec.WorkPhone == "" {
			sum.addIssue(IssueMissingPhone, m.Name, canon.Columns, canon.Rows[i])
		}
		if reportCoordinates && !rec.HasCoordinates() {
			sum.addIssue(IssueMissingCoordinates, m.Name, canon.Columns, canon.Rows[i])
		}
		out = append(out, rec)
	}
	return out
}

func matchesEquals(r table.Row, filters []Filter) bool {
	for _, f := range filters {
		if f.Kind != FilterEquals {
			continue
		}
		if !strings.EqualFold(collapse(r.String(f.Column)), collapse(f.Value)) {
			return false
		}
	}
	return true
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// failedFilter returns the issue category of the first present or
// coordinates filter rec fails, or "".
func failedFilter(rec *model.Referral, filters []Filter) string {
	for _, f := range filters {
		switch f.Kind {
		case FilterPresent:
			if !fieldPresent(rec, f.Column) {
				return issueForColumn(f.Column)
			}
		case FilterCoordinates:
			if !rec.HasCoordinates() {
				return IssueMissingCoordinates
			}
		}
	}
	return ""
}

func fieldPresent(rec *model.Referral, canonical string) bool {
	switch canonical {
	case model.ColFullName:
		return rec.FullName != ""
	case model.ColWorkPhone:
		return rec.WorkPhone != ""
	case model.ColWorkAddress:
		return rec.WorkAddress != ""
	case model.ColLatitude:
		return rec.Latitude != nil
	case model.ColLongitude:
		return rec.Longitude != nil
	case model.ColProjectID:
		return rec.ProjectID != nil
	case model.ColReferralDate:
		return rec.ReferralDate != nil
	case model.ColPersonID:
		return rec.PersonID != ""
	case model.ColSpecialty:
		return rec.Specialty != ""
	}
	return false
}

// cleanRecord runs the field cleaners over one canonical row.
func cleanRecord(row table.Row, typ model.ReferralType, now time.Time) model.Referral {
	rec := model.Referral{
		FullName:  clean.Name(row.Value(model.ColFullName)),
		Type:      typ,
		PersonID:  row.String(model.ColPersonID),
		Specialty: clean.Name(row.Value(model.ColSpecialty)),
	}
	if phone, ok := clean.Phone(row.Value(model.ColWorkPhone)); ok {
		rec.WorkPhone = phone
	}
	if addr, ok := clean.Address(row.Value(model.ColWorkAddress)); ok {
		rec.WorkAddress = addr
	}

	lat := clean.Latitude(row.Value(model.ColLatitude))
	lon := clean.Longitude(row.Value(model.ColLongitude))
	if !math.IsNaN(lat) && !math.IsNaN(lon) {
		rec.Latitude = clean.FloatPtr(lat)
		rec.Longitude = clean.FloatPtr(lon)
	}

	rec.ReferralDate = clean.NormalizeDate(row.Value(model.ColReferralDate), now)
	rec.ProjectID = projectID(row.Value(model.ColProjectID))
	return rec
}

func projectID(v any) *int64 {
	f, ok := table.AsFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64/2 {
		return nil
	}
	id := int64(f)
	return &id
}
