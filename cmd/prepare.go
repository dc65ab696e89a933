package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/referral-cli/internal/extract"
	"github.com/sells-group/referral-cli/internal/model"
)

var (
	prepareInput string
	prepareJSON  bool
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Normalize a raw referral export into canonical datasets",
	Long:  "Loads a raw export (CSV, XLSX, XLS or Parquet), extracts inbound and outbound referrals, deduplicates them and replaces the canonical datasets.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "prepare", true)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Manager.Prepare(ctx, prepareInput)
		if err != nil {
			return eris.Wrap(err, "prepare")
		}

		out := cmd.OutOrStdout()
		if prepareJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}
		formatSummary(out, summary)
		return nil
	},
}

func init() {
	prepareCmd.Flags().StringVar(&prepareInput, "input", "", "raw export to normalize (default: data.dir/data.raw_file)")
	prepareCmd.Flags().BoolVar(&prepareJSON, "json", false, "print the summary as JSON")
	rootCmd.AddCommand(prepareCmd)
}

// formatSummary writes an operator-facing preparation summary to out.
func formatSummary(out io.Writer, s *extract.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if s.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", s.RunID)
	}
	_, _ = fmt.Fprintf(w, "Source:\t%s\n", s.SourcePath)
	_, _ = fmt.Fprintf(w, "Inbound:\t%d\n", s.Inbound)
	_, _ = fmt.Fprintf(w, "Outbound:\t%d\n", s.Outbound)
	_, _ = fmt.Fprintf(w, "Combined:\t%d\n", s.Combined)
	for _, t := range []model.ReferralType{model.ReferralInbound, model.ReferralOutbound} {
		if n := s.DuplicatesRemoved[t]; n > 0 {
			_, _ = fmt.Fprintf(w, "Duplicates removed (%s):\t%d\n", t, n)
		}
	}

	if len(s.ConfigCounts) > 0 {
		_, _ = fmt.Fprintln(w, "Configurations:\t")
		for _, name := range sortedKeys(s.ConfigCounts) {
			_, _ = fmt.Fprintf(w, "  %s\t%d\n", name, s.ConfigCounts[name])
		}
	}
	if len(s.SkippedConfigs) > 0 {
		_, _ = fmt.Fprintf(w, "Skipped:\t%s\n", strings.Join(s.SkippedConfigs, ", "))
	}

	issues := s.IssueCounts()
	if len(issues) > 0 {
		_, _ = fmt.Fprintln(w, "Issues:\t")
		for _, cat := range sortedKeys(issues) {
			_, _ = fmt.Fprintf(w, "  %s\t%d\n", cat, issues[cat])
		}
	}
	_ = w.Flush()

	for _, warn := range s.Warnings {
		_, _ = fmt.Fprintf(out, "warning: %s\n", warn)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
