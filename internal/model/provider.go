package model

// Provider column names used when a roll-up is exposed as a table.
const (
	ColProviderKey          = "Provider Key"
	ColReferralCount        = "Referral Count"
	ColInboundReferralCount = "Inbound Referral Count"
	ColPreferred            = "Preferred"
)

// Provider is a roll-up of referrals keyed by identity.
type Provider struct {
	Key                  string   `json:"key"`
	FullName             string   `json:"full_name"`
	PersonID             string   `json:"person_id,omitempty"`
	WorkPhone            string   `json:"work_phone,omitempty"`
	WorkAddress          string   `json:"work_address,omitempty"`
	Latitude             *float64 `json:"latitude"`
	Longitude            *float64 `json:"longitude"`
	Specialty            string   `json:"specialty,omitempty"`
	ReferralCount        int      `json:"referral_count"`
	InboundReferralCount int      `json:"inbound_referral_count"`
	Preferred            bool     `json:"preferred"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (p *Provider) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Score component names.
const (
	FactorDistance  = "distance"
	FactorOutbound  = "outbound"
	FactorInbound   = "inbound"
	FactorPreferred = "preferred"
)

// ScoredProvider is a provider ranked for one query. It is never persisted.
type ScoredProvider struct {
	Provider
	DistanceMiles *float64           `json:"distance_miles"`
	Score         float64            `json:"score"`
	Components    map[string]float64 `json:"components"`
	Rank          int                `json:"rank"`
}
