package extract

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/referral-cli/internal/model"
	"github.com/sells-group/referral-cli/internal/table"
)

// Issue categories collected during extraction.
const (
	IssueMissingName        = "missing_name"
	IssueMissingAddress     = "missing_address"
	IssueMissingPhone       = "missing_phone"
	IssueMissingCoordinates = "missing_coordinates"
)

// ColConfiguration names the mapping a record came from in issue tables.
const ColConfiguration = "Configuration"

func issueForColumn(canonical string) string {
	switch canonical {
	case model.ColFullName:
		return IssueMissingName
	case model.ColWorkAddress:
		return IssueMissingAddress
	case model.ColWorkPhone:
		return IssueMissingPhone
	case model.ColLatitude, model.ColLongitude:
		return IssueMissingCoordinates
	case model.ColPersonID:
		return "missing_person_id"
	case model.ColProjectID:
		return "missing_project_id"
	case model.ColReferralDate:
		return "missing_referral_date"
	case model.ColSpecialty:
		return "missing_specialty"
	}
	return "missing_value"
}

// Summary is the operator-facing report of one preparation run.
type Summary struct {
	RunID      string `json:"run_id,omitempty"`
	SourcePath string `json:"source_path,omitempty"`

	Inbound  int `json:"inbound"`
	Outbound int `json:"outbound"`
	Combined int `json:"combined"`
	// DuplicatesRemoved counts rows dropped by deduplication, per type.
	DuplicatesRemoved map[model.ReferralType]int `json:"duplicates_removed,omitempty"`

	ConfigCounts         map[string]int      `json:"config_counts"`
	SkippedConfigs       []string            `json:"skipped_configs"`
	Warnings             []string            `json:"warnings"`
	MissingSourceColumns map[string][]string `json:"missing_source_columns,omitempty"`

	// IssueRecords maps an issue category to the offending rows, in
	// canonical column names plus the Configuration column.
	IssueRecords map[string]*table.Table `json:"-"`
}

// NewSummary returns an empty summary with initialized maps.
func NewSummary() *Summary {
	return &Summary{
		DuplicatesRemoved:    make(map[model.ReferralType]int),
		ConfigCounts:         make(map[string]int),
		SkippedConfigs:       []string{},
		Warnings:             []string{},
		MissingSourceColumns: make(map[string][]string),
		IssueRecords:         make(map[string]*table.Table),
	}
}

// SetCounts records per-type counts; Combined is their sum.
func (s *Summary) SetCounts(inbound, outbound int) {
	s.Inbound = inbound
	s.Outbound = outbound
	s.Combined = inbound + outbound
}

// IssueCounts returns the number of records per issue category.
func (s *Summary) IssueCounts() map[string]int {
	out := make(map[string]int, len(s.IssueRecords))
	for k, t := range s.IssueRecords {
		out[k] = t.Len()
	}
	return out
}

// HasIssues reports whether any issue record was collected.
func (s *Summary) HasIssues() bool {
	for _, t := range s.IssueRecords {
		if t.Len() > 0 {
			return true
		}
	}
	return false
}

// Run converts the summary into its persisted digest.
func (s *Summary) Run() model.PreparationRun {
	return model.PreparationRun{
		ID:             s.RunID,
		SourcePath:     s.SourcePath,
		InboundCount:   s.Inbound,
		OutboundCount:  s.Outbound,
		CombinedCount:  s.Combined,
		ConfigCounts:   s.ConfigCounts,
		SkippedConfigs: s.SkippedConfigs,
		Warnings:       s.Warnings,
		IssueCounts:    s.IssueCounts(),
	}
}

func (s *Summary) addWarning(w string) {
	s.Warnings = append(s.Warnings, w)
}

// addIssue appends one canonical row, tagged with its mapping, to the
// category's issue table. Columns missing from the table are added.
func (s *Summary) addIssue(category, mapping string, columns []string, row []any) {
	t := s.IssueRecords[category]
	if t == nil {
		t = table.New(ColConfiguration)
		s.IssueRecords[category] = t
	}
	for _, c := range columns {
		t.AddColumn(c)
	}
	out := make([]any, len(t.Columns))
	out[0] = mapping
	for j, c := range columns {
		if j < len(row) {
			out[t.Index(c)] = row[j]
		}
	}
	t.Rows = append(t.Rows, out)
}

// WriteIssueWorkbook writes one sheet per issue category, sorted by name,
// to path.
func (s *Summary) WriteIssueWorkbook(path string) error {
	categories := make([]string, 0, len(s.IssueRecords))
	for k, t := range s.IssueRecords {
		if t.Len() > 0 {
			categories = append(categories, k)
		}
	}
	if len(categories) == 0 {
		return eris.New("extract: no issue records to write")
	}
	sort.Strings(categories)

	f := xlsx.NewFile()
	for _, cat := range categories {
		t := s.IssueRecords[cat]
		sheet, err := f.AddSheet(sheetName(cat))
		if err != nil {
			return eris.Wrapf(err, "extract: add sheet %s", cat)
		}
		header := sheet.AddRow()
		for _, c := range t.Columns {
			header.AddCell().SetString(c)
		}
		for _, r := range t.Rows {
			row := sheet.AddRow()
			for _, v := range r {
				setCell(row.AddCell(), v)
			}
		}
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "extract: save issue workbook %s", path)
	}
	return nil
}

func setCell(c *xlsx.Cell, v any) {
	if table.IsMissing(v) {
		return
	}
	switch x := v.(type) {
	case float64:
		c.SetFloat(x)
	case int64:
		c.SetInt64(x)
	case bool:
		c.SetBool(x)
	default:
		c.SetString(table.AsString(v))
	}
}

// sheetName clips a category to the 31 characters a worksheet name allows.
func sheetName(category string) string {
	if len(category) > 31 {
		return category[:31]
	}
	return category
}
