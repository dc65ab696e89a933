package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/referral-cli/internal/ingest"
)

var validateSource string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check dataset integrity",
	Long:  "Reports row counts, missing required columns, duplicate identifiers, invalid coordinates and missing values for one or all datasets.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		sources := ingest.Sources
		if validateSource != "" {
			src, err := ingest.ParseSource(validateSource)
			if err != nil {
				return err
			}
			sources = []ingest.Source{src}
		}

		env, err := initEnv(ctx, "validate", false)
		if err != nil {
			return err
		}
		defer env.Close()

		var reports []integrityRow
		for _, src := range sources {
			report, err := env.Manager.ValidateDataIntegrity(ctx, src)
			if errors.Is(err, ingest.ErrNoData) {
				reports = append(reports, integrityRow{source: src})
				continue
			}
			if err != nil {
				return eris.Wrapf(err, "validate %s", src)
			}
			reports = append(reports, integrityRow{source: src, report: report})
		}

		failed := formatIntegrity(cmd.OutOrStdout(), reports)
		if failed > 0 {
			return eris.Errorf("validate: %d dataset(s) failed integrity checks", failed)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateSource, "source", "", "dataset to check (inbound, outbound, combined, providers, preferred; default all)")
	rootCmd.AddCommand(validateCmd)
}

// integrityRow is one validated source. report is nil when the source has
// no backing file.
type integrityRow struct {
	source ingest.Source
	report *ingest.IntegrityReport
}

// formatIntegrity writes a table of reports and returns how many failed.
func formatIntegrity(out io.Writer, rows []integrityRow) int {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tROWS\tCOLS\tMISSING_COLUMNS\tDUP_IDS\tBAD_COORDS\tMISSING_%\tSTATUS")
	_, _ = fmt.Fprintln(w, "------\t----\t----\t---------------\t-------\t----------\t---------\t------")

	failed := 0
	for _, row := range rows {
		r := row.report
		if r == nil {
			_, _ = fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\t-\tno data\n", row.source)
			continue
		}
		status := "ok"
		if !r.OK() {
			status = "FAIL"
			failed++
		}
		missing := strings.Join(r.MissingRequiredColumns, ", ")
		if missing == "" {
			missing = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%d\t%d\t%.1f\t%s\n",
			row.source,
			r.Rows,
			r.Columns,
			missing,
			r.DuplicateIdentifiers,
			r.OutOfRangeCoordinates,
			r.MissingValuePercent,
			status,
		)
	}
	_ = w.Flush()
	return failed
}
