// Package model defines the canonical referral, provider and run types
// shared across the ingestion and recommendation layers.
package model

import (
	"time"
)

// ReferralType is the direction of a referral relative to the firm.
type ReferralType string

const (
	// ReferralInbound: a provider referred a case to the firm.
	ReferralInbound ReferralType = "inbound"
	// ReferralOutbound: the firm referred a case to a provider.
	ReferralOutbound ReferralType = "outbound"
)

// Valid reports whether t is a known referral type.
func (t ReferralType) Valid() bool {
	return t == ReferralInbound || t == ReferralOutbound
}

// Canonical column names of persisted referral datasets.
const (
	ColFullName     = "Full Name"
	ColWorkPhone    = "Work Phone"
	ColWorkAddress  = "Work Address"
	ColLatitude     = "Latitude"
	ColLongitude    = "Longitude"
	ColProjectID    = "Project ID"
	ColReferralType = "referral_type"
	ColReferralDate = "Referral Date"
	ColPersonID     = "Person ID"
	ColSpecialty    = "Specialty"
)

// Referral is one normalized referral record.
type Referral struct {
	FullName     string       `json:"full_name"`
	WorkPhone    string       `json:"work_phone,omitempty"`
	WorkAddress  string       `json:"work_address,omitempty"`
	Latitude     *float64     `json:"latitude"`
	Longitude    *float64     `json:"longitude"`
	ReferralDate *time.Time   `json:"referral_date,omitempty"`
	Type         ReferralType `json:"referral_type"`
	PersonID     string       `json:"person_id,omitempty"`
	ProjectID    *int64       `json:"project_id,omitempty"`
	Specialty    string       `json:"specialty,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (r *Referral) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}
