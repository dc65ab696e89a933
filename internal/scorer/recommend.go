package scorer

import (
	"context"

	"github.com/sells-group/referral-cli/internal/ingest"
	"github.com/sells-group/referral-cli/internal/model"
)

// ProviderSource supplies the provider roll-up. *ingest.Manager implements it.
type ProviderSource interface {
	Providers(ctx context.Context, opts ingest.ProviderOptions) (*ingest.Rollup, error)
}

// Query is one recommendation request.
type Query struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	// Weights overrides the recommender defaults when set.
	Weights *Weights      `json:"weights,omitempty"`
	Filters Filters       `json:"filters"`
	Window  ingest.Window `json:"window"`
	// Limit caps the ranked list. Zero uses the recommender default; a
	// negative value returns every provider.
	Limit int `json:"limit,omitempty"`
}

// Recommendation is the answer to a Query. Best is nil when no provider
// survived the filters.
type Recommendation struct {
	Best    *model.ScoredProvider  `json:"best"`
	Ranked  []model.ScoredProvider `json:"ranked"`
	Total   int                    `json:"total"`
	Weights Weights                `json:"weights"`
	Warning string                 `json:"warning,omitempty"`
}

// Recommender scores the current provider roll-up for queries.
type Recommender struct {
	src      ProviderSource
	defaults Weights
	limit    int
}

// NewRecommender creates a Recommender. Invalid default weights fall back
// to DefaultWeights.
func NewRecommender(src ProviderSource, defaults Weights, limit int) *Recommender {
	if ValidateWeights(defaults) != nil {
		defaults = DefaultWeights()
	}
	return &Recommender{src: src, defaults: defaults, limit: limit}
}

// Recommend loads the roll-up for the query window and ranks it.
func (r *Recommender) Recommend(ctx context.Context, q Query) (*Recommendation, error) {
	w := r.defaults
	if q.Weights != nil {
		w = *q.Weights
	}
	if err := ValidateWeights(w); err != nil {
		return nil, err
	}

	rollup, err := r.src.Providers(ctx, ingest.ProviderOptions{Window: q.Window})
	if err != nil {
		return nil, err
	}

	best, ranked, err := Score(rollup.Providers, q.Lat, q.Lon, w, q.Filters)
	if err != nil {
		return nil, err
	}

	rec := &Recommendation{
		Best:    best,
		Ranked:  ranked,
		Total:   len(ranked),
		Weights: w,
		Warning: rollup.Warning,
	}
	if rec.Ranked == nil {
		rec.Ranked = []model.ScoredProvider{}
	}
	limit := q.Limit
	if limit == 0 {
		limit = r.limit
	}
	if limit > 0 && len(rec.Ranked) > limit {
		rec.Ranked = rec.Ranked[:limit]
	}
	return rec, nil
}
