package scorer

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/referral-cli/internal/geo"
	"github.com/sells-group/referral-cli/internal/model"
)

// Score filters candidates, computes the distance from (lat, lon), and ranks
// the survivors by the weighted sum of their normalized factors. It returns
// the best provider and the full ranking. An empty candidate set at any
// filter stage yields (nil, nil, nil). Candidates are not modified.
func Score(candidates []model.Provider, lat, lon float64, w Weights, f Filters) (*model.ScoredProvider, []model.ScoredProvider, error) {
	if err := ValidateWeights(w); err != nil {
		return nil, nil, err
	}
	if math.IsNaN(lat) || lat < -90 || lat > 90 || math.IsNaN(lon) || lon < -180 || lon > 180 {
		return nil, nil, eris.Errorf("scorer: query location (%v, %v) out of range", lat, lon)
	}

	log := zap.L().With(zap.String("component", "scorer"))

	pool := filterSpecialty(candidates, f.Specialties)
	if len(pool) == 0 {
		log.Debug("scorer: no candidates after specialty filter")
		return nil, nil, nil
	}
	pool = FilterMinReferrals(pool, f.MinReferrals)
	if len(pool) == 0 {
		log.Debug("scorer: no candidates after min referrals filter")
		return nil, nil, nil
	}

	lats := make([]*float64, len(pool))
	lons := make([]*float64, len(pool))
	for i := range pool {
		lats[i], lons[i] = pool[i].Latitude, pool[i].Longitude
	}
	dist := geo.DistancesMiles(geo.Point(lat, lon), lats, lons)

	ranked := make([]model.ScoredProvider, 0, len(pool))
	for i := range pool {
		d := dist[i]
		if f.MaxRadiusMiles > 0 && (math.IsNaN(d) || d > f.MaxRadiusMiles) {
			continue
		}
		sp := model.ScoredProvider{Provider: pool[i]}
		if !math.IsNaN(d) {
			dd := d
			sp.DistanceMiles = &dd
		}
		ranked = append(ranked, sp)
	}
	if len(ranked) == 0 {
		log.Debug("scorer: no candidates within radius", zap.Float64("radius_miles", f.MaxRadiusMiles))
		return nil, nil, nil
	}

	applyScores(ranked, w)
	SortRanked(ranked, w)
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return &ranked[0], ranked, nil
}

// applyScores normalizes each weighted factor across the set and stores the
// components and the weighted sum.
func applyScores(ranked []model.ScoredProvider, w Weights) {
	n := len(ranked)
	raw := map[string][]float64{
		model.FactorDistance:  make([]float64, n),
		model.FactorOutbound:  make([]float64, n),
		model.FactorInbound:   make([]float64, n),
		model.FactorPreferred: make([]float64, n),
	}
	for i := range ranked {
		p := &ranked[i]
		raw[model.FactorDistance][i] = math.NaN()
		if p.DistanceMiles != nil {
			raw[model.FactorDistance][i] = *p.DistanceMiles
		}
		raw[model.FactorOutbound][i] = float64(p.ReferralCount)
		raw[model.FactorInbound][i] = float64(p.InboundReferralCount)
		if p.Preferred {
			raw[model.FactorPreferred][i] = 1
		}
	}

	for i := range ranked {
		ranked[i].Components = make(map[string]float64)
	}
	weights := w.byFactor()
	for _, factor := range factorOrder {
		if weights[factor] == 0 {
			continue
		}
		norm := Normalize(raw[factor], factor == model.FactorDistance)
		for i := range ranked {
			ranked[i].Components[factor] = norm[i]
		}
	}
	for i := range ranked {
		var s float64
		for _, factor := range factorOrder {
			s += weights[factor] * ranked[i].Components[factor]
		}
		ranked[i].Score = s
	}
}

// Normalize min-max scales values to [0, 1]. With inverse, the smallest
// value maps to 1. NaN entries map to 0 and are ignored for the range. A
// zero range maps every entry to 0.
func Normalize(values []float64, inverse bool) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]float64, len(values))
	span := hi - lo
	if math.IsInf(lo, 1) || span == 0 {
		return out
	}
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if inverse {
			out[i] = (hi - v) / span
		} else {
			out[i] = (v - lo) / span
		}
	}
	return out
}

// SortRanked orders providers by descending score with a total tie-break:
// raw distance then outbound count when distance carries more weight than
// volume, the reverse otherwise, then inbound count, name and key. Missing
// distances sort last.
func SortRanked(ranked []model.ScoredProvider, w Weights) {
	distanceFirst := w.DistanceFirst()
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := &ranked[i], &ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if distanceFirst {
			if c := compareDistance(a, b); c != 0 {
				return c < 0
			}
			if a.ReferralCount != b.ReferralCount {
				return a.ReferralCount < b.ReferralCount
			}
		} else {
			if a.ReferralCount != b.ReferralCount {
				return a.ReferralCount < b.ReferralCount
			}
			if c := compareDistance(a, b); c != 0 {
				return c < 0
			}
		}
		if a.InboundReferralCount != b.InboundReferralCount {
			return a.InboundReferralCount < b.InboundReferralCount
		}
		if a.FullName != b.FullName {
			return a.FullName < b.FullName
		}
		return a.Key < b.Key
	})
}

func compareDistance(a, b *model.ScoredProvider) int {
	switch {
	case a.DistanceMiles == nil && b.DistanceMiles == nil:
		return 0
	case a.DistanceMiles == nil:
		return 1
	case b.DistanceMiles == nil:
		return -1
	case *a.DistanceMiles < *b.DistanceMiles:
		return -1
	case *a.DistanceMiles > *b.DistanceMiles:
		return 1
	}
	return 0
}
