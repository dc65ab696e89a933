package ingest

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/referral-cli/internal/extract"
	"github.com/sells-group/referral-cli/internal/loader"
	"github.com/sells-group/referral-cli/internal/model"
)

// Prepare normalizes a raw referral export into the canonical inbound,
// outbound and combined datasets. An empty rawPath uses the configured raw
// file. Data quality problems are reported in the summary; load, mapping
// and write failures abort the run. Every run is recorded in the run store
// when one is configured.
func (m *Manager) Prepare(ctx context.Context, rawPath string) (*extract.Summary, error) {
	if rawPath == "" {
		rawPath = m.RawPath()
	}
	run := model.PreparationRun{
		ID:         uuid.New().String(),
		SourcePath: rawPath,
		Status:     model.RunStatusRunning,
		StartedAt:  m.opts.Now().UTC(),
	}
	log := m.log.With(zap.String("run_id", run.ID), zap.String("source", rawPath))
	log.Info("ingest: preparation started")
	m.recordStart(ctx, log, run)

	sum, err := m.prepare(ctx, rawPath, run.ID, log)

	if sum != nil {
		digest := sum.Run()
		digest.Status, digest.StartedAt = run.Status, run.StartedAt
		run = digest
	}
	run.FinishedAt = m.opts.Now().UTC()
	if err != nil {
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		log.Error("ingest: preparation failed", zap.Error(err))
	} else {
		run.Status = model.RunStatusComplete
		m.Refresh()
		log.Info("ingest: preparation complete",
			zap.Int("inbound", sum.Inbound),
			zap.Int("outbound", sum.Outbound),
			zap.Int("combined", sum.Combined),
			zap.Int("warnings", len(sum.Warnings)),
		)
	}
	m.recordFinish(ctx, log, run)
	return sum, err
}

func (m *Manager) prepare(ctx context.Context, rawPath, runID string, log *zap.Logger) (*extract.Summary, error) {
	raw, err := loader.LoadFile(rawPath)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: load raw export")
	}

	res, err := extract.Extract(raw, m.opts.Mappings, extract.Options{Now: m.opts.Now()})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: extract")
	}
	sum := res.Summary
	sum.RunID = runID
	sum.SourcePath = rawPath

	in, out, combined := dedupResult(res)
	datasets := []struct {
		src  Source
		recs []model.Referral
	}{
		{SourceInbound, in},
		{SourceOutbound, out},
		{SourceCombined, combined},
	}
	for _, d := range datasets {
		if err := m.opts.Writer.WriteReferrals(ctx, m.CleanedPath(d.src), d.recs); err != nil {
			return sum, eris.Wrapf(err, "ingest: persist %s", d.src)
		}
	}

	if m.opts.IssueWorkbook && sum.HasIssues() {
		path := filepath.Join(m.opts.Dir, IssueWorkbookName)
		if err := sum.WriteIssueWorkbook(path); err != nil {
			log.Warn("ingest: issue workbook not written", zap.String("path", path), zap.Error(err))
			sum.Warnings = append(sum.Warnings, "issue workbook not written: "+err.Error())
		} else {
			log.Info("ingest: issue workbook written", zap.String("path", path), zap.Any("issues", sum.IssueCounts()))
		}
	}
	return sum, nil
}

// recordStart records a new run. Store failures are logged and never fail
// the preparation.
func (m *Manager) recordStart(ctx context.Context, log *zap.Logger, run model.PreparationRun) {
	if m.opts.Runs == nil {
		return
	}
	if err := m.opts.Runs.CreateRun(ctx, run); err != nil {
		log.Warn("ingest: record run start", zap.Error(err))
	}
}

func (m *Manager) recordFinish(ctx context.Context, log *zap.Logger, run model.PreparationRun) {
	if m.opts.Runs == nil {
		return
	}
	if err := m.opts.Runs.FinishRun(ctx, run); err != nil {
		log.Warn("ingest: record run finish", zap.Error(err))
	}
}
