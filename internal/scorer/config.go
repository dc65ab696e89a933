// Package scorer ranks providers for a query location by weighted,
// min-max normalized factors.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/referral-cli/internal/config"
	"github.com/sells-group/referral-cli/internal/model"
)

// Weights scales each normalized factor. They need not sum to 1.
type Weights struct {
	Distance  float64 `json:"distance"`
	Outbound  float64 `json:"outbound"`
	Inbound   float64 `json:"inbound"`
	Preferred float64 `json:"preferred"`
}

// DefaultWeights returns the weights used when a caller supplies none.
func DefaultWeights() Weights {
	return Weights{Distance: 0.5, Outbound: 0.3, Inbound: 0.1, Preferred: 0.1}
}

// WeightsFromConfig reads the configured default weights.
func WeightsFromConfig(c config.ScoringConfig) Weights {
	return Weights{
		Distance:  c.DistanceWeight,
		Outbound:  c.OutboundWeight,
		Inbound:   c.InboundWeight,
		Preferred: c.PreferredWeight,
	}
}

// Sum returns the sum of all weights.
func (w Weights) Sum() float64 {
	return w.Distance + w.Outbound + w.Inbound + w.Preferred
}

// DistanceFirst reports whether ties break on distance before referral
// volume.
func (w Weights) DistanceFirst() bool {
	return w.Distance > w.Outbound
}

// factorOrder fixes the summation order so scores are reproducible.
var factorOrder = []string{model.FactorDistance, model.FactorOutbound, model.FactorInbound, model.FactorPreferred}

func (w Weights) byFactor() map[string]float64 {
	return map[string]float64{
		model.FactorDistance:  w.Distance,
		model.FactorOutbound:  w.Outbound,
		model.FactorInbound:   w.Inbound,
		model.FactorPreferred: w.Preferred,
	}
}

// ValidateWeights checks that every weight is a non-negative finite number
// and at least one is positive.
func ValidateWeights(w Weights) error {
	var errs []string

	weights := w.byFactor()
	for _, name := range factorOrder {
		v := weights[name]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Sprintf("%s weight must be finite", name))
		} else if v < 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", name))
		}
	}
	if !(w.Sum() > 0) {
		errs = append(errs, "at least one weight must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: invalid weights: %s", strings.Join(errs, "; "))
	}
	return nil
}
