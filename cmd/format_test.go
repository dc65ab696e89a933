package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/referral-cli/internal/extract"
	"github.com/sells-group/referral-cli/internal/ingest"
	"github.com/sells-group/referral-cli/internal/model"
	"github.com/sells-group/referral-cli/internal/scorer"
)

func TestFormatSummary(t *testing.T) {
	s := extract.NewSummary()
	s.RunID = "run-1"
	s.SourcePath = "data/referrals.xlsx"
	s.SetCounts(2, 4)
	s.DuplicatesRemoved[model.ReferralInbound] = 1
	s.ConfigCounts["outbound"] = 4
	s.ConfigCounts["inbound_doctor"] = 2
	s.SkippedConfigs = []string{"inbound_self"}
	s.Warnings = []string{"column Referral Source missing"}

	var buf bytes.Buffer
	formatSummary(&buf, s)

	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "Combined:")
	assert.Contains(t, out, "6")
	assert.Contains(t, out, "Duplicates removed (inbound):")
	assert.NotContains(t, out, "Duplicates removed (outbound)")
	assert.Contains(t, out, "inbound_doctor")
	assert.Contains(t, out, "Skipped:")
	assert.Contains(t, out, "warning: column Referral Source missing")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("inbound_doctor")), bytes.Index(buf.Bytes(), []byte("  outbound")))
}

func TestBuildQuery(t *testing.T) {
	defaults := scorer.DefaultWeights()

	q, err := buildQuery(recommendOptions{lat: 39.3, lon: -76.6, specialties: []string{"Spine"}, since: "2024-02-01", limit: 3}, defaults)
	require.NoError(t, err)
	assert.Nil(t, q.Weights, "no weight flags keeps recommender defaults")
	assert.Equal(t, []string{"Spine"}, q.Filters.Specialties)
	require.NotNil(t, q.Window.Since)
	assert.Equal(t, 3, q.Limit)

	q, err = buildQuery(recommendOptions{lat: 39.3, lon: -76.6, weights: map[string]float64{"outbound": 2}}, defaults)
	require.NoError(t, err)
	require.NotNil(t, q.Weights)
	assert.InDelta(t, 2.0, q.Weights.Outbound, 1e-9)
	assert.InDelta(t, defaults.Distance, q.Weights.Distance, 1e-9)
}

func TestBuildQuery_Invalid(t *testing.T) {
	defaults := scorer.DefaultWeights()
	tests := []struct {
		name string
		opts recommendOptions
		want string
	}{
		{"negative referrals", recommendOptions{minReferrals: -1}, "--min-referrals"},
		{"negative radius", recommendOptions{radius: -5}, "--radius"},
		{"bad since", recommendOptions{since: "01/02/2024"}, "since must be YYYY-MM-DD"},
		{"inverted window", recommendOptions{since: "2024-05-01", until: "2024-01-01"}, "since is after until"},
		{"all zero weights", recommendOptions{weights: map[string]float64{"distance": 0, "outbound": 0, "inbound": 0, "preferred": 0}}, "at least one weight"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildQuery(tt.opts, defaults)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFormatRecommendation(t *testing.T) {
	near := 1.2
	rec := &scorer.Recommendation{
		Ranked: []model.ScoredProvider{
			{Provider: model.Provider{FullName: "Clinic A", Specialty: "Orthopedics", ReferralCount: 3, Preferred: true}, DistanceMiles: &near, Score: 0.95, Rank: 1},
			{Provider: model.Provider{FullName: "Remote Practice With A Very Long Registered Name", ReferralCount: 1}, Score: 0.1, Rank: 2},
		},
		Total: 5,
	}

	var buf bytes.Buffer
	formatRecommendation(&buf, rec)

	out := buf.String()
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "Clinic A")
	assert.Contains(t, out, "1.2")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "0.950")
	assert.Contains(t, out, "Remote Practice With A Very...")
	assert.Contains(t, out, "showing 2 of 5 providers")
}

func TestFormatIntegrity(t *testing.T) {
	rows := []integrityRow{
		{source: ingest.SourceOutbound, report: &ingest.IntegrityReport{Rows: 4, Columns: 11}},
		{source: ingest.SourceInbound, report: &ingest.IntegrityReport{Rows: 3, Columns: 11, DuplicateIdentifiers: 1}},
		{source: ingest.SourcePreferred},
	}

	var buf bytes.Buffer
	failed := formatIntegrity(&buf, rows)

	assert.Equal(t, 1, failed)
	out := buf.String()
	assert.Contains(t, out, "outbound")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "no data")
}

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.PreparationRun{
		{
			ID:            "abc12345-6789-0000-0000-000000000000",
			SourcePath:    "data/referrals.xlsx",
			Status:        model.RunStatusComplete,
			InboundCount:  2,
			OutboundCount: 4,
			IssueCounts:   map[string]int{"missing_phone": 1, "missing_coordinates": 2},
			StartedAt:     now,
			FinishedAt:    now.Add(3 * time.Second),
		},
		{
			ID:         "def12345-6789-0000-0000-000000000000",
			SourcePath: "/very/long/path/to/an/export/directory/referrals.xlsx",
			Status:     model.RunStatusRunning,
			StartedAt:  now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-6789")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "2025-06-15 10:30")
	assert.Contains(t, out, "3s")
	assert.Contains(t, out, "...")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefgh-1234"))
	assert.Equal(t, "short", truncateID("short"))
}
