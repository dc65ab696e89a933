package persist

import (
	"math"
	"time"

	"github.com/sells-group/referral-cli/internal/clean"
	"github.com/sells-group/referral-cli/internal/model"
	"github.com/sells-group/referral-cli/internal/table"
)

// ReferralColumns is the fixed part of the canonical referral schema.
// Person ID and Specialty follow when any record carries them.
var ReferralColumns = []string{
	model.ColFullName,
	model.ColWorkPhone,
	model.ColWorkAddress,
	model.ColLatitude,
	model.ColLongitude,
	model.ColProjectID,
	model.ColReferralType,
	model.ColReferralDate,
}

// ReferralsToTable renders records with canonical column names.
func ReferralsToTable(recs []model.Referral) *table.Table {
	cols := append([]string(nil), ReferralColumns...)
	var withID, withSpecialty bool
	for i := range recs {
		withID = withID || recs[i].PersonID != ""
		withSpecialty = withSpecialty || recs[i].Specialty != ""
	}
	if withID {
		cols = append(cols, model.ColPersonID)
	}
	if withSpecialty {
		cols = append(cols, model.ColSpecialty)
	}

	t := table.New(cols...)
	t.Rows = make([][]any, 0, len(recs))
	for i := range recs {
		r := &recs[i]
		row := []any{
			str(r.FullName),
			str(r.WorkPhone),
			str(r.WorkAddress),
			deref(r.Latitude),
			deref(r.Longitude),
			nil,
			string(r.Type),
			nil,
		}
		if r.ProjectID != nil {
			row[5] = *r.ProjectID
		}
		if r.ReferralDate != nil {
			row[7] = *r.ReferralDate
		}
		if withID {
			row = append(row, str(r.PersonID))
		}
		if withSpecialty {
			row = append(row, str(r.Specialty))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// TableToReferrals reads canonical records back from a table. Rows without a
// valid referral_type take fallback.
func TableToReferrals(t *table.Table, fallback model.ReferralType) []model.Referral {
	out := make([]model.Referral, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		row := t.At(i)
		rec := model.Referral{
			FullName:    row.String(model.ColFullName),
			WorkPhone:   row.String(model.ColWorkPhone),
			WorkAddress: row.String(model.ColWorkAddress),
			PersonID:    row.String(model.ColPersonID),
			Specialty:   row.String(model.ColSpecialty),
			Type:        model.ReferralType(row.String(model.ColReferralType)),
		}
		if !rec.Type.Valid() {
			rec.Type = fallback
		}
		rec.Latitude = clean.FloatPtr(clean.Latitude(row.Value(model.ColLatitude)))
		rec.Longitude = clean.FloatPtr(clean.Longitude(row.Value(model.ColLongitude)))
		if f, ok := table.AsFloat(row.Value(model.ColProjectID)); ok && f == math.Trunc(f) {
			id := int64(f)
			rec.ProjectID = &id
		}
		rec.ReferralDate = dateValue(row.Value(model.ColReferralDate))
		out = append(out, rec)
	}
	return out
}

func dateValue(v any) *time.Time {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return nil
		}
		d := x.UTC()
		return &d
	case string:
		if d, err := time.Parse("2006-01-02", x); err == nil {
			return &d
		}
	}
	return clean.NormalizeDate(v, time.Now())
}

func str(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// ProviderColumns is the column order of a provider roll-up table.
var ProviderColumns = []string{
	model.ColProviderKey,
	model.ColFullName,
	model.ColPersonID,
	model.ColWorkPhone,
	model.ColWorkAddress,
	model.ColLatitude,
	model.ColLongitude,
	model.ColSpecialty,
	model.ColReferralCount,
	model.ColInboundReferralCount,
	model.ColPreferred,
}

// ProvidersToTable renders a roll-up with ProviderColumns.
func ProvidersToTable(ps []model.Provider) *table.Table {
	t := table.New(ProviderColumns...)
	t.Rows = make([][]any, 0, len(ps))
	for i := range ps {
		p := &ps[i]
		t.Rows = append(t.Rows, []any{
			p.Key,
			str(p.FullName),
			str(p.PersonID),
			str(p.WorkPhone),
			str(p.WorkAddress),
			deref(p.Latitude),
			deref(p.Longitude),
			str(p.Specialty),
			int64(p.ReferralCount),
			int64(p.InboundReferralCount),
			p.Preferred,
		})
	}
	return t
}
