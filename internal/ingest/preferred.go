package ingest

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/referral-cli/internal/clean"
	"github.com/sells-group/referral-cli/internal/model"
	"github.com/sells-group/referral-cli/internal/persist"
	"github.com/sells-group/referral-cli/internal/table"
)

// Header aliases accepted in a raw preferred provider list, in priority
// order. Matching ignores case.
var (
	preferredNameColumns = []string{model.ColFullName, "Provider Name", "Preferred Provider", "Name", "Provider"}
	preferredIDColumns   = []string{model.ColPersonID, "Provider ID", "ID"}
)

// PreparePreferred maps a raw preferred provider list onto Full Name and,
// when present, Person ID. Names are cleaned; rows with neither a name nor
// an id are dropped. Repeats are removed by id when the list carries ids,
// else by whole row.
func PreparePreferred(raw *table.Table) (*table.Table, error) {
	nameCol := findColumn(raw, preferredNameColumns)
	idCol := findColumn(raw, preferredIDColumns)
	if nameCol == "" && idCol == "" {
		return nil, eris.Errorf("ingest: preferred list has no name or id column (have %s)", strings.Join(raw.Columns, ", "))
	}

	cols := []string{model.ColFullName}
	if idCol != "" {
		cols = append(cols, model.ColPersonID)
	}
	out := table.New(cols...)
	for i := 0; i < raw.Len(); i++ {
		row := raw.At(i)
		var name, id string
		if nameCol != "" {
			name = clean.Name(row.Value(nameCol))
		}
		if idCol != "" {
			id = table.AsString(row.Value(idCol))
		}
		if name == "" && id == "" {
			continue
		}

		rec := []any{str(name)}
		if idCol != "" {
			rec = append(rec, str(id))
		}
		out.Append(rec)
	}
	deduped, _ := persist.DedupTable(out, model.ColPersonID)
	return deduped, nil
}

func findColumn(t *table.Table, aliases []string) string {
	for _, alias := range aliases {
		for _, c := range t.Columns {
			if strings.EqualFold(c, alias) {
				return c
			}
		}
	}
	return ""
}

// preferredSet matches providers against the preferred list.
type preferredSet struct {
	ids   map[string]bool
	names map[string]bool
}

func newPreferredSet(t *table.Table) preferredSet {
	s := preferredSet{ids: make(map[string]bool), names: make(map[string]bool)}
	for i := 0; i < t.Len(); i++ {
		row := t.At(i)
		if id := row.String(model.ColPersonID); id != "" {
			s.ids[id] = true
		}
		if k := clean.NameKey(row.String(model.ColFullName)); k != "" {
			s.names[k] = true
		}
	}
	return s
}

func (s preferredSet) contains(p *model.Provider) bool {
	if p.PersonID != "" && s.ids[p.PersonID] {
		return true
	}
	return s.names[clean.NameKey(p.FullName)]
}

// apply sets the Preferred flag on ps and returns how many are preferred.
func (s preferredSet) apply(ps []model.Provider) int {
	n := 0
	for i := range ps {
		ps[i].Preferred = s.contains(&ps[i])
		if ps[i].Preferred {
			n++
		}
	}
	return n
}

func str(s string) any {
	if s == "" {
		return nil
	}
	return s
}
