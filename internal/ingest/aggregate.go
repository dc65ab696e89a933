package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/referral-cli/internal/clean"
	"github.com/sells-group/referral-cli/internal/model"
	"github.com/sells-group/referral-cli/internal/persist"
	"github.com/sells-group/referral-cli/internal/table"
)

// Window bounds referral dates, inclusive. A nil bound is open.
type Window struct {
	Since *time.Time `json:"since,omitempty"`
	Until *time.Time `json:"until,omitempty"`
}

// IsZero reports whether the window has no bounds.
func (w Window) IsZero() bool {
	return w.Since == nil && w.Until == nil
}

// Contains reports whether d falls inside the window. Undated referrals
// fall inside only an unbounded window.
func (w Window) Contains(d *time.Time) bool {
	if w.IsZero() {
		return true
	}
	if d == nil {
		return false
	}
	if w.Since != nil && d.Before(*w.Since) {
		return false
	}
	if w.Until != nil && d.After(*w.Until) {
		return false
	}
	return true
}

// ProviderOptions tunes a provider roll-up.
type ProviderOptions struct {
	// Window recounts referrals inside the window only. The set of
	// providers does not change.
	Window Window
}

// Rollup is the provider roll-up with its preferred-fraction check.
type Rollup struct {
	Providers         []model.Provider `json:"providers"`
	PreferredCount    int              `json:"preferred_count"`
	PreferredFraction float64          `json:"preferred_fraction"`
	// Warning is set when the preferred fraction exceeds the configured
	// threshold.
	Warning string `json:"warning,omitempty"`
}

// Providers rolls the outbound referrals up into providers, joining inbound
// counts and the preferred list when those datasets exist.
func (m *Manager) Providers(ctx context.Context, opts ProviderOptions) (*Rollup, error) {
	var outbound, inbound, preferred *table.Table

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := m.load(SourceOutbound)
		outbound = t
		return err
	})
	g.Go(func() error {
		t, err := m.optional(SourceInbound)
		inbound = t
		return err
	})
	g.Go(func() error {
		t, err := m.optional(SourcePreferred)
		preferred = t
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var in []model.Referral
	if inbound != nil {
		in = persist.TableToReferrals(inbound, model.ReferralInbound)
	}
	ps := Aggregate(persist.TableToReferrals(outbound, model.ReferralOutbound), in, opts.Window)

	rollup := &Rollup{Providers: ps}
	if preferred != nil {
		rollup.PreferredCount = newPreferredSet(preferred).apply(ps)
	}
	if len(ps) > 0 {
		rollup.PreferredFraction = float64(rollup.PreferredCount) / float64(len(ps))
	}
	if rollup.PreferredFraction > m.opts.PreferredWarnFraction {
		rollup.Warning = fmt.Sprintf("%d of %d providers (%.0f%%) are marked preferred; check the preferred provider list",
			rollup.PreferredCount, len(ps), rollup.PreferredFraction*100)
		m.log.Warn("ingest: preferred fraction above threshold",
			zap.Int("preferred", rollup.PreferredCount),
			zap.Int("providers", len(ps)),
			zap.Float64("fraction", rollup.PreferredFraction),
			zap.Float64("threshold", m.opts.PreferredWarnFraction),
		)
	}
	return rollup, nil
}

// Identity returns the provider key of a referral: the person id when set,
// else the normalized name. It is empty when the record has neither.
func Identity(r *model.Referral) string {
	if r.PersonID != "" {
		return "id:" + r.PersonID
	}
	if k := clean.NameKey(r.FullName); k != "" {
		return "name:" + k
	}
	return ""
}

// nameAliases maps a normalized name to the single person id it was seen
// with. Names seen with more than one id map to "".
type nameAliases map[string]string

func newNameAliases(recs []model.Referral) nameAliases {
	aliases := make(nameAliases)
	for i := range recs {
		r := &recs[i]
		k := clean.NameKey(r.FullName)
		if r.PersonID == "" || k == "" {
			continue
		}
		if id, ok := aliases[k]; ok && id != r.PersonID {
			aliases[k] = ""
			continue
		}
		aliases[k] = r.PersonID
	}
	return aliases
}

// key is Identity, except that a record without a person id takes the id
// its name is unambiguously aliased to.
func (a nameAliases) key(r *model.Referral) string {
	if r.PersonID == "" {
		if id := a[clean.NameKey(r.FullName)]; id != "" {
			return "id:" + id
		}
	}
	return Identity(r)
}

// Aggregate groups outbound referrals by identity in first-seen order.
// Records missing a person id join the provider their name is aliased to.
// Each provider takes the first non-missing contact, location and specialty
// values of its referrals. Counts include only referrals inside w. Inbound
// counts are joined by person id, then by normalized name.
func Aggregate(outbound, inbound []model.Referral, w Window) []model.Provider {
	aliases := newNameAliases(outbound)
	index := make(map[string]int)
	var ps []model.Provider

	for i := range outbound {
		r := &outbound[i]
		key := aliases.key(r)
		if key == "" {
			continue
		}
		j, ok := index[key]
		if !ok {
			j = len(ps)
			index[key] = j
			ps = append(ps, model.Provider{Key: key})
		}
		p := &ps[j]
		fillFirst(p, r)
		if w.Contains(r.ReferralDate) {
			p.ReferralCount++
		}
	}

	byID := make(map[string]int)
	byName := make(map[string]int)
	for i := range inbound {
		r := &inbound[i]
		if !w.Contains(r.ReferralDate) {
			continue
		}
		if r.PersonID != "" {
			byID[r.PersonID]++
		}
		if k := clean.NameKey(r.FullName); k != "" {
			byName[k]++
		}
	}
	for i := range ps {
		p := &ps[i]
		if n, ok := byID[p.PersonID]; ok && p.PersonID != "" {
			p.InboundReferralCount = n
			continue
		}
		p.InboundReferralCount = byName[clean.NameKey(p.FullName)]
	}
	return ps
}

func fillFirst(p *model.Provider, r *model.Referral) {
	if p.FullName == "" {
		p.FullName = r.FullName
	}
	if p.PersonID == "" {
		p.PersonID = r.PersonID
	}
	if p.WorkPhone == "" {
		p.WorkPhone = r.WorkPhone
	}
	if p.WorkAddress == "" {
		p.WorkAddress = r.WorkAddress
	}
	if !p.HasCoordinates() && r.HasCoordinates() {
		lat, lon := *r.Latitude, *r.Longitude
		p.Latitude, p.Longitude = &lat, &lon
	}
	if p.Specialty == "" {
		p.Specialty = r.Specialty
	}
}

// ParseWindow builds a window from optional YYYY-MM-DD bounds.
func ParseWindow(since, until string) (Window, error) {
	var w Window
	for _, b := range []struct {
		name  string
		value string
		dst   **time.Time
	}{
		{"since", since, &w.Since},
		{"until", until, &w.Until},
	} {
		if b.value == "" {
			continue
		}
		d, err := time.Parse("2006-01-02", b.value)
		if err != nil {
			return Window{}, eris.Errorf("ingest: %s must be YYYY-MM-DD, got %q", b.name, b.value)
		}
		*b.dst = &d
	}
	if w.Since != nil && w.Until != nil && w.Since.After(*w.Until) {
		return Window{}, eris.New("ingest: since is after until")
	}
	return w, nil
}
