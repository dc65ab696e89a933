// Package extract maps raw referral exports onto the canonical referral
// schema, one mapping per source layout and referral type.
package extract

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/referral-cli/internal/model"
)

// FilterKind selects the row predicate a Filter applies.
type FilterKind string

const (
	// FilterEquals keeps rows whose raw Column equals Value, ignoring case
	// and surrounding whitespace.
	FilterEquals FilterKind = "equals"
	// FilterPresent keeps rows whose canonical Column is non-missing after
	// cleaning.
	FilterPresent FilterKind = "present"
	// FilterCoordinates keeps rows whose latitude and longitude clean to
	// valid ranges.
	FilterCoordinates FilterKind = "coordinates"
)

// Filter is one row predicate of a Mapping.
type Filter struct {
	Kind   FilterKind `yaml:"kind"`
	Column string     `yaml:"column,omitempty"`
	Value  string     `yaml:"value,omitempty"`
}

// Mapping describes how one source layout maps onto the canonical schema.
type Mapping struct {
	Name string             `yaml:"name"`
	Type model.ReferralType `yaml:"type"`
	// Columns maps source column names to canonical column names.
	Columns map[string]string `yaml:"columns"`
	// Identifier is the source column carrying the upstream person id. Its
	// absence is expected for some exports and is not a schema warning.
	Identifier string   `yaml:"identifier,omitempty"`
	Filters    []Filter `yaml:"filters,omitempty"`
}

// canonicalOrder fixes the column order of extracted tables.
var canonicalOrder = []string{
	model.ColFullName,
	model.ColWorkPhone,
	model.ColWorkAddress,
	model.ColLatitude,
	model.ColLongitude,
	model.ColProjectID,
	model.ColReferralDate,
	model.ColPersonID,
	model.ColSpecialty,
}

func canonicalRank(name string) int {
	for i, c := range canonicalOrder {
		if c == name {
			return i
		}
	}
	return -1
}

// columnPair is one source->canonical entry.
type columnPair struct {
	Source    string
	Canonical string
}

// pairs returns the column mapping in canonical order.
func (m *Mapping) pairs() []columnPair {
	out := make([]columnPair, 0, len(m.Columns))
	for src, canon := range m.Columns {
		out = append(out, columnPair{Source: src, Canonical: canon})
	}
	sort.Slice(out, func(i, j int) bool {
		return canonicalRank(out[i].Canonical) < canonicalRank(out[j].Canonical)
	})
	return out
}

// sourceFor returns the source column mapped to canonical, or "".
func (m *Mapping) sourceFor(canonical string) string {
	for src, canon := range m.Columns {
		if canon == canonical {
			return src
		}
	}
	return ""
}

// Validate checks a mapping for structural errors.
func (m *Mapping) Validate() error {
	if m.Name == "" {
		return eris.New("extract: mapping has no name")
	}
	if !m.Type.Valid() {
		return eris.Errorf("extract: mapping %s: invalid type %q", m.Name, m.Type)
	}
	if len(m.Columns) == 0 {
		return eris.Errorf("extract: mapping %s: no columns", m.Name)
	}
	seen := make(map[string]string, len(m.Columns))
	for src, canon := range m.Columns {
		if canonicalRank(canon) < 0 {
			return eris.Errorf("extract: mapping %s: unknown canonical column %q", m.Name, canon)
		}
		if prev, dup := seen[canon]; dup {
			return eris.Errorf("extract: mapping %s: %q and %q both map to %q", m.Name, prev, src, canon)
		}
		seen[canon] = src
	}
	if m.Identifier != "" && m.Columns[m.Identifier] != model.ColPersonID {
		return eris.Errorf("extract: mapping %s: identifier %q must map to %q", m.Name, m.Identifier, model.ColPersonID)
	}
	for _, f := range m.Filters {
		switch f.Kind {
		case FilterEquals:
			if f.Column == "" {
				return eris.Errorf("extract: mapping %s: equals filter needs a column", m.Name)
			}
		case FilterPresent:
			if _, ok := seen[f.Column]; !ok {
				return eris.Errorf("extract: mapping %s: present filter on unmapped column %q", m.Name, f.Column)
			}
		case FilterCoordinates:
			if _, ok := seen[model.ColLatitude]; !ok {
				return eris.Errorf("extract: mapping %s: coordinates filter without latitude", m.Name)
			}
			if _, ok := seen[model.ColLongitude]; !ok {
				return eris.Errorf("extract: mapping %s: coordinates filter without longitude", m.Name)
			}
		default:
			return eris.Errorf("extract: mapping %s: unknown filter kind %q", m.Name, f.Kind)
		}
	}
	return nil
}

// Source column names of the default export layouts.
const (
	colReferralSource = "Referral Source"
	valDoctorsOffice  = "Doctor's Office"
	colIntakeDate     = "Date of Intake"
)

// DefaultMappings returns the built-in layouts: primary inbound, secondary
// inbound and outbound.
func DefaultMappings() []Mapping {
	return []Mapping{
		{
			Name: "inbound_primary",
			Type: model.ReferralInbound,
			Columns: map[string]string{
				"Referred From Full Name":            model.ColFullName,
				"Referred From's Work Phone":         model.ColWorkPhone,
				"Referred From's Work Address":       model.ColWorkAddress,
				"Referred From's Details: Latitude":  model.ColLatitude,
				"Referred From's Details: Longitude": model.ColLongitude,
				"Referred From's Details: Person ID": model.ColPersonID,
				"Referred From's Details: Specialty": model.ColSpecialty,
				"Project ID":                         model.ColProjectID,
				colIntakeDate:                        model.ColReferralDate,
			},
			Identifier: "Referred From's Details: Person ID",
			Filters: []Filter{
				{Kind: FilterEquals, Column: colReferralSource, Value: valDoctorsOffice},
				{Kind: FilterPresent, Column: model.ColFullName},
			},
		},
		{
			Name: "inbound_secondary",
			Type: model.ReferralInbound,
			Columns: map[string]string{
				"Dr/Facility Referred From Name":      model.ColFullName,
				"Dr/Facility Referred From Phone":     model.ColWorkPhone,
				"Dr/Facility Referred From Address":   model.ColWorkAddress,
				"Dr/Facility Referred From Latitude":  model.ColLatitude,
				"Dr/Facility Referred From Longitude": model.ColLongitude,
				"Project ID":                          model.ColProjectID,
				colIntakeDate:                         model.ColReferralDate,
			},
			Filters: []Filter{
				{Kind: FilterPresent, Column: model.ColFullName},
			},
		},
		{
			Name: "outbound",
			Type: model.ReferralOutbound,
			Columns: map[string]string{
				"Referred To Full Name":            model.ColFullName,
				"Referred To's Work Phone":         model.ColWorkPhone,
				"Referred To's Work Address":       model.ColWorkAddress,
				"Referred To's Details: Latitude":  model.ColLatitude,
				"Referred To's Details: Longitude": model.ColLongitude,
				"Referred To's Details: Person ID": model.ColPersonID,
				"Referred To's Details: Specialty": model.ColSpecialty,
				"Project ID":                       model.ColProjectID,
				"Date Referred Out":                model.ColReferralDate,
			},
			Identifier: "Referred To's Details: Person ID",
			Filters: []Filter{
				{Kind: FilterPresent, Column: model.ColFullName},
				{Kind: FilterCoordinates},
			},
		},
	}
}

// LoadMappings reads mappings from a YAML file with a top-level
// "mappings" list. Each mapping is validated.
func LoadMappings(path string) ([]Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read mappings %s", path)
	}
	return ParseMappings(data)
}

// ParseMappings decodes and validates a YAML mapping document.
func ParseMappings(data []byte) ([]Mapping, error) {
	var wrapper struct {
		Mappings []Mapping `yaml:"mappings"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "extract: parse mappings")
	}
	if len(wrapper.Mappings) == 0 {
		return nil, eris.New("extract: no mappings defined")
	}
	for i := range wrapper.Mappings {
		if err := wrapper.Mappings[i].Validate(); err != nil {
			return nil, err
		}
	}
	return wrapper.Mappings, nil
}
