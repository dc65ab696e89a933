package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/referral-cli/internal/ingest"
	"github.com/sells-group/referral-cli/internal/scorer"
)

// recommendOptions carries the recommend flags. weights holds only the
// weight flags the user set.
type recommendOptions struct {
	lat, lon     float64
	weights      map[string]float64
	specialties  []string
	minReferrals int
	radius       float64
	since, until string
	limit        int
	asJSON       bool
}

var recOpts recommendOptions

var weightFlags = map[string]string{
	"distance-weight":  "distance",
	"outbound-weight":  "outbound",
	"inbound-weight":   "inbound",
	"preferred-weight": "preferred",
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank providers for a location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		recOpts.weights = map[string]float64{}
		for flag, factor := range weightFlags {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetFloat64(flag)
				recOpts.weights[factor] = v
			}
		}

		defaults := scorer.WeightsFromConfig(cfg.Scoring)
		q, err := buildQuery(recOpts, defaults)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "recommend", false)
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := scorer.NewRecommender(env.Manager, defaults, cfg.Scoring.DefaultLimit).Recommend(ctx, q)
		if err != nil {
			return eris.Wrap(err, "recommend")
		}

		out := cmd.OutOrStdout()
		if recOpts.asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}
		if rec.Warning != "" {
			fmt.Fprintf(os.Stderr, "warning: %s\n", rec.Warning)
		}
		if rec.Best == nil {
			fmt.Fprintln(os.Stderr, "No providers matched.")
			return nil
		}
		formatRecommendation(out, rec)
		return nil
	},
}

func init() {
	f := recommendCmd.Flags()
	f.Float64Var(&recOpts.lat, "lat", 0, "query latitude")
	f.Float64Var(&recOpts.lon, "lon", 0, "query longitude")
	f.Float64("distance-weight", 0, "distance weight (default from config)")
	f.Float64("outbound-weight", 0, "outbound referral weight (default from config)")
	f.Float64("inbound-weight", 0, "inbound referral weight (default from config)")
	f.Float64("preferred-weight", 0, "preferred provider weight (default from config)")
	f.StringSliceVar(&recOpts.specialties, "specialty", nil, "keep providers with any of these specialties")
	f.IntVar(&recOpts.minReferrals, "min-referrals", 0, "minimum outbound referrals")
	f.Float64Var(&recOpts.radius, "radius", 0, "maximum distance in miles (0 = unlimited)")
	f.StringVar(&recOpts.since, "since", "", "count referrals on or after this date (YYYY-MM-DD)")
	f.StringVar(&recOpts.until, "until", "", "count referrals on or before this date (YYYY-MM-DD)")
	f.IntVar(&recOpts.limit, "limit", 0, "number of providers to show (default from config, -1 = all)")
	f.BoolVar(&recOpts.asJSON, "json", false, "print the recommendation as JSON")
	_ = recommendCmd.MarkFlagRequired("lat")
	_ = recommendCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(recommendCmd)
}

// buildQuery turns flags into a scorer query. Weight flags override the
// matching defaults; with none set the recommender defaults apply.
func buildQuery(o recommendOptions, defaults scorer.Weights) (scorer.Query, error) {
	if o.minReferrals < 0 {
		return scorer.Query{}, eris.New("--min-referrals must be >= 0")
	}
	if o.radius < 0 {
		return scorer.Query{}, eris.New("--radius must be >= 0")
	}
	window, err := ingest.ParseWindow(o.since, o.until)
	if err != nil {
		return scorer.Query{}, err
	}

	q := scorer.Query{
		Lat: o.lat,
		Lon: o.lon,
		Filters: scorer.Filters{
			Specialties:    o.specialties,
			MinReferrals:   o.minReferrals,
			MaxRadiusMiles: o.radius,
		},
		Window: window,
		Limit:  o.limit,
	}
	if len(o.weights) > 0 {
		w := defaults
		for factor, v := range o.weights {
			switch factor {
			case "distance":
				w.Distance = v
			case "outbound":
				w.Outbound = v
			case "inbound":
				w.Inbound = v
			case "preferred":
				w.Preferred = v
			}
		}
		if err := scorer.ValidateWeights(w); err != nil {
			return scorer.Query{}, err
		}
		q.Weights = &w
	}
	return q, nil
}

// formatRecommendation writes the ranked providers as a table.
func formatRecommendation(out io.Writer, rec *scorer.Recommendation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tPROVIDER\tSPECIALTY\tMILES\tOUT\tIN\tPREFERRED\tSCORE")
	_, _ = fmt.Fprintln(w, "----\t--------\t---------\t-----\t---\t--\t---------\t-----")
	for _, p := range rec.Ranked {
		miles := "-"
		if p.DistanceMiles != nil {
			miles = fmt.Sprintf("%.1f", *p.DistanceMiles)
		}
		preferred := ""
		if p.Preferred {
			preferred = "yes"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%s\t%.3f\n",
			p.Rank,
			truncate(p.FullName, 30),
			truncate(p.Specialty, 24),
			miles,
			p.ReferralCount,
			p.InboundReferralCount,
			preferred,
			p.Score,
		)
	}
	_ = w.Flush()
	if rec.Total > len(rec.Ranked) {
		_, _ = fmt.Fprintf(out, "showing %d of %d providers\n", len(rec.Ranked), rec.Total)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
