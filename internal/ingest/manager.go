// Package ingest owns the canonical datasets: it resolves the best backing
// file for each logical source, memoizes loads, rolls referrals up into
// providers and runs the preparation pipeline that writes the datasets.
package ingest

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/referral-cli/internal/config"
	"github.com/sells-group/referral-cli/internal/extract"
	"github.com/sells-group/referral-cli/internal/loader"
	"github.com/sells-group/referral-cli/internal/model"
	"github.com/sells-group/referral-cli/internal/persist"
	"github.com/sells-group/referral-cli/internal/store"
	"github.com/sells-group/referral-cli/internal/table"
)

// Source names a logical dataset.
type Source string

const (
	SourceInbound   Source = "inbound"
	SourceOutbound  Source = "outbound"
	SourceCombined  Source = "combined"
	SourceProviders Source = "providers"
	SourcePreferred Source = "preferred"
)

// Sources lists every logical dataset.
var Sources = []Source{SourceInbound, SourceOutbound, SourceCombined, SourceProviders, SourcePreferred}

// ParseSource validates a source name.
func ParseSource(s string) (Source, error) {
	for _, src := range Sources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", eris.Errorf("ingest: unknown source %q", s)
}

// ErrNoData is returned when no backing file exists for a source.
var ErrNoData = eris.New("ingest: no backing file")

// IssueWorkbookName is the file name of the issue workbook in the data dir.
const IssueWorkbookName = "issue_records.xlsx"

// Options configures a Manager.
type Options struct {
	// Dir holds the raw exports and the canonical datasets.
	Dir           string
	RawFile       string
	PreferredFile string
	// Mappings overrides extract.DefaultMappings when non-empty.
	Mappings              []extract.Mapping
	CacheTTL              time.Duration
	PreferredWarnFraction float64
	IssueWorkbook         bool
	Writer                *persist.Writer
	// Runs records preparation runs. Nil disables run history.
	Runs store.Store
	Now  func() time.Time
}

// OptionsFromConfig builds manager options from the application config,
// reading the mapping file when one is configured.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := Options{
		Dir:                   cfg.Data.Dir,
		RawFile:               cfg.Data.RawFile,
		PreferredFile:         cfg.Data.PreferredFile,
		CacheTTL:              cfg.Data.CacheTTL(),
		PreferredWarnFraction: cfg.Scoring.PreferredWarnFraction,
		IssueWorkbook:         cfg.Data.IssueWorkbook,
		Writer:                persist.NewWriter(cfg.Persist.MaxAttempts, cfg.Persist.RetryStep()),
	}
	if cfg.Data.MappingsFile != "" {
		mappings, err := extract.LoadMappings(cfg.Data.MappingsFile)
		if err != nil {
			return Options{}, err
		}
		opts.Mappings = mappings
	}
	return opts, nil
}

// Manager is the only writer of the canonical datasets.
type Manager struct {
	opts Options
	memo *memo
	log  *zap.Logger
}

// NewManager creates a Manager, filling unset options with defaults.
func NewManager(opts Options) *Manager {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.PreferredWarnFraction <= 0 {
		opts.PreferredWarnFraction = 0.8
	}
	if opts.Writer == nil {
		opts.Writer = persist.NewWriter(5, 200*time.Millisecond)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		opts: opts,
		memo: newMemo(opts.CacheTTL, opts.Now),
		log:  zap.L().With(zap.String("component", "ingest")),
	}
}

// CleanedPath returns the canonical dataset path of src.
func (m *Manager) CleanedPath(src Source) string {
	return filepath.Join(m.opts.Dir, "cleaned_"+string(src)+".parquet")
}

// RawPath returns the configured raw export path.
func (m *Manager) RawPath() string {
	return filepath.Join(m.opts.Dir, m.opts.RawFile)
}

func (m *Manager) preferredPath() string {
	return filepath.Join(m.opts.Dir, m.opts.PreferredFile)
}

// resolved is the backing file chosen for a source.
type resolved struct {
	path    string
	cleaned bool
}

// resolve picks the pre-cleaned dataset when present, else the raw file.
func (m *Manager) resolve(src Source) (resolved, error) {
	var raw string
	switch src {
	case SourceInbound, SourceOutbound, SourceCombined:
		raw = m.RawPath()
	case SourcePreferred:
		raw = m.preferredPath()
	case SourceProviders:
		return m.resolve(SourceOutbound)
	default:
		return resolved{}, eris.Errorf("ingest: unknown source %q", src)
	}

	if cleaned := m.CleanedPath(src); fileExists(cleaned) {
		return resolved{path: cleaned, cleaned: true}, nil
	}
	if fileExists(raw) && !isDir(raw) {
		return resolved{path: raw}, nil
	}
	return resolved{}, eris.Wrapf(ErrNoData, "%s", src)
}

// Load returns the dataset of src. Loads are memoized per resolved file for
// the cache TTL. The provider roll-up is recomputed on every call from the
// memoized referral datasets. The caller owns the returned table.
func (m *Manager) Load(ctx context.Context, src Source) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if src == SourceProviders {
		rollup, err := m.Providers(ctx, ProviderOptions{})
		if err != nil {
			return nil, err
		}
		return persist.ProvidersToTable(rollup.Providers), nil
	}

	t, err := m.load(src)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// load returns the shared memoized table of src.
func (m *Manager) load(src Source) (*table.Table, error) {
	r, err := m.resolve(src)
	if err != nil {
		return nil, err
	}
	key := string(src) + "|" + r.path
	return m.memo.get(key, func() (*table.Table, error) {
		m.log.Debug("ingest: loading source",
			zap.String("source", string(src)),
			zap.String("path", r.path),
			zap.Bool("cleaned", r.cleaned),
		)
		if r.cleaned {
			return loader.LoadFile(r.path)
		}
		return m.derive(src, r.path)
	})
}

// derive applies the source-specific post-processing to a raw file.
func (m *Manager) derive(src Source, path string) (*table.Table, error) {
	raw, err := m.memo.get("raw|"+path, func() (*table.Table, error) {
		return loader.LoadFile(path)
	})
	if err != nil {
		return nil, err
	}

	if src == SourcePreferred {
		return PreparePreferred(raw)
	}

	res, err := extract.Extract(raw, m.opts.Mappings, extract.Options{Now: m.opts.Now()})
	if err != nil {
		return nil, err
	}
	in, out, _ := dedupResult(res)
	switch src {
	case SourceInbound:
		return persist.ReferralsToTable(in), nil
	case SourceOutbound:
		return persist.ReferralsToTable(out), nil
	default:
		return table.Concat(persist.ReferralsToTable(in), persist.ReferralsToTable(out)), nil
	}
}

// dedupResult deduplicates each referral type of res and records the number
// of removed rows in its summary.
func dedupResult(res *extract.Result) (in, out, combined []model.Referral) {
	in, nIn := persist.Dedup(res.Inbound)
	out, nOut := persist.Dedup(res.Outbound)
	res.Summary.DuplicatesRemoved[model.ReferralInbound] = nIn
	res.Summary.DuplicatesRemoved[model.ReferralOutbound] = nOut
	res.Summary.SetCounts(len(in), len(out))

	combined = make([]model.Referral, 0, len(in)+len(out))
	combined = append(combined, in...)
	combined = append(combined, out...)
	return in, out, combined
}

// Refresh drops every memoized load so the next Load re-resolves the best
// backing file.
func (m *Manager) Refresh() {
	m.memo.invalidate()
	m.log.Info("ingest: cache refreshed")
}

// CacheStats returns memo statistics.
func (m *Manager) CacheStats() CacheStats {
	return m.memo.stats()
}

// optional loads src, returning nil without error when it has no backing
// file.
func (m *Manager) optional(src Source) (*table.Table, error) {
	t, err := m.load(src)
	if errors.Is(err, ErrNoData) {
		return nil, nil
	}
	return t, err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
