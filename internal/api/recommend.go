package api

import (
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/referral-cli/internal/ingest"
	"github.com/sells-group/referral-cli/internal/scorer"
)

type recommendRequest struct {
	Lat            *float64        `json:"lat"`
	Lon            *float64        `json:"lon"`
	Weights        *scorer.Weights `json:"weights,omitempty"`
	Specialties    []string        `json:"specialties,omitempty"`
	MinReferrals   int             `json:"min_referrals,omitempty"`
	MaxRadiusMiles float64         `json:"max_radius_miles,omitempty"`
	Since          string          `json:"since,omitempty"`
	Until          string          `json:"until,omitempty"`
	Limit          int             `json:"limit,omitempty"`
}

func (req *recommendRequest) query() (scorer.Query, error) {
	if req.Lat == nil || req.Lon == nil {
		return scorer.Query{}, eris.New("bad request: lat and lon are required")
	}
	if *req.Lat < -90 || *req.Lat > 90 || *req.Lon < -180 || *req.Lon > 180 {
		return scorer.Query{}, eris.New("bad request: lat/lon out of range")
	}
	if req.Weights != nil {
		if err := scorer.ValidateWeights(*req.Weights); err != nil {
			return scorer.Query{}, eris.Wrap(err, "bad request")
		}
	}
	if req.MinReferrals < 0 || req.MaxRadiusMiles < 0 {
		return scorer.Query{}, eris.New("bad request: min_referrals and max_radius_miles must be >= 0")
	}
	window, err := ingest.ParseWindow(req.Since, req.Until)
	if err != nil {
		return scorer.Query{}, eris.Wrap(err, "bad request")
	}
	return scorer.Query{
		Lat:     *req.Lat,
		Lon:     *req.Lon,
		Weights: req.Weights,
		Filters: scorer.Filters{
			Specialties:    req.Specialties,
			MinReferrals:   req.MinReferrals,
			MaxRadiusMiles: req.MaxRadiusMiles,
		},
		Window: window,
		Limit:  req.Limit,
	}, nil
}

func (s *server) recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q, err := req.query()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.rec.Recommend(r.Context(), q)
	if err != nil {
		s.fail(w, "recommend", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
