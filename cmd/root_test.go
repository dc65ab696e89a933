package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/referral-cli/internal/extract"
	"github.com/sells-group/referral-cli/internal/scorer"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"prepare", "recommend", "validate", "runs", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "referral-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestPrepareCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "json"} {
		assert.NotNil(t, prepareCmd.Flags().Lookup(name), "prepare should have --%s flag", name)
	}
}

func TestRecommendCommand_Flags(t *testing.T) {
	for _, name := range []string{
		"lat", "lon", "distance-weight", "outbound-weight", "inbound-weight", "preferred-weight",
		"specialty", "min-referrals", "radius", "since", "until", "limit", "json",
	} {
		assert.NotNil(t, recommendCmd.Flags().Lookup(name), "recommend should have --%s flag", name)
	}
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])

	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

const rawExport = `Project ID,Referral Source,Referred From Full Name,Referred From's Details: Latitude,Referred From's Details: Longitude,Referred From's Details: Person ID,Date of Intake,Referred To Full Name,Referred To's Work Phone,Referred To's Work Address,Referred To's Details: Latitude,Referred To's Details: Longitude,Referred To's Details: Specialty,Date Referred Out
1,Doctor's Office,Clinic A,39.30,-76.60,A1,2024-01-10,Clinic A,4105550101,"1 Main St, Baltimore",39.30,-76.60,Orthopedics,2024-01-15
2,Self,,,,,2024-02-01,Clinic A,4105550101,"1 Main St, Baltimore",39.30,-76.60,Orthopedics,2024-03-01
3,Doctor's Office,Spine Center,38.90,-77.03,S1,2024-02-05,Spine Center,2025550123,"9 K St, Washington",38.90,-77.03,"Neurology, Spine",2024-02-10
4,Doctor's Office,Spine Center,38.90,-77.03,S1,2024-02-05,Clinic A,4105550101,"1 Main St, Baltimore",39.30,-76.60,Orthopedics,2024-04-01
5,Web,,,,,2024-05-01,Far Clinic,,,,,Pediatrics,2024-05-02
`

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute(), strings.Join(args, " "))
	return out.String()
}

func TestPrepareRecommendRuns_EndToEnd(t *testing.T) {
	dir := chdirTemp(t)
	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "referrals.csv"), []byte(rawExport), 0o644))

	t.Setenv("REFERRAL_DATA_DIR", dataDir)
	t.Setenv("REFERRAL_DATA_RAW_FILE", "referrals.csv")
	t.Setenv("REFERRAL_STORE_DATABASE_URL", filepath.Join(dir, "runs.db"))
	t.Setenv("REFERRAL_LOG_LEVEL", "error")

	var summary extract.Summary
	require.NoError(t, json.Unmarshal([]byte(execute(t, "prepare", "--json")), &summary))
	assert.Equal(t, 2, summary.Inbound)
	assert.Equal(t, 4, summary.Outbound)
	assert.Equal(t, 6, summary.Combined)
	assert.FileExists(t, filepath.Join(dataDir, "cleaned_outbound.parquet"))
	assert.FileExists(t, filepath.Join(dataDir, "cleaned_inbound.parquet"))
	assert.FileExists(t, filepath.Join(dataDir, "cleaned_combined.parquet"))

	var rec scorer.Recommendation
	require.NoError(t, json.Unmarshal([]byte(execute(t, "recommend", "--lat", "39.29", "--lon", "-76.61", "--json")), &rec))
	require.NotNil(t, rec.Best)
	assert.Equal(t, "Clinic A", rec.Best.FullName)
	assert.Equal(t, 3, rec.Best.ReferralCount)
	assert.Equal(t, 2, rec.Total)

	runs := execute(t, "runs", "list")
	assert.Contains(t, runs, "complete")
	assert.Contains(t, runs, "referrals.csv")
}
