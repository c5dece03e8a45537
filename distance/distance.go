// Package distance decides which listings sit close enough to a transit
// station to merit a notification.
package distance

import (
	"math"

	"rentwatch/models"
)

const earthRadiusM = 6371000.0

// Filter evaluates listings against a configured station set.
type Filter struct {
	stations   []models.Station
	byID       map[string]models.Station
	thresholdM float64
	walkSpeed  float64 // meters per minute
}

// NewFilter builds a filter. walkingSpeedMPerMin <= 0 falls back to 80 m/min,
// the planning convention for walking pace.
func NewFilter(stations []models.Station, thresholdMeters int, walkingSpeedMPerMin float64) *Filter {
	if walkingSpeedMPerMin <= 0 {
		walkingSpeedMPerMin = 80
	}
	byID := make(map[string]models.Station, len(stations))
	for _, s := range stations {
		byID[s.ID] = s
	}
	return &Filter{
		stations:   stations,
		byID:       byID,
		thresholdM: float64(thresholdMeters),
		walkSpeed:  walkingSpeedMPerMin,
	}
}

// Filter returns one decision per listing, in input order. A listing without
// coordinates never qualifies and is reported with the unknown-location
// reason instead of silently failing the threshold check.
func (f *Filter) Filter(listings []models.Listing) []models.DistanceDecision {
	decisions := make([]models.DistanceDecision, 0, len(listings))
	for _, l := range listings {
		decisions = append(decisions, f.Decide(l))
	}
	return decisions
}

// Decide evaluates one listing. When the listing is annotated with the
// stations its search matched, only those stations are considered; otherwise
// the nearest configured station wins.
func (f *Filter) Decide(listing models.Listing) models.DistanceDecision {
	decision := models.DistanceDecision{Listing: listing}

	if !listing.HasLocation() {
		decision.Reason = models.ReasonUnknownLocation
		return decision
	}

	candidates := f.candidatesFor(listing)
	if len(candidates) == 0 {
		decision.Reason = models.ReasonUnknownLocation
		return decision
	}

	best := candidates[0]
	bestDist := haversineM(*listing.Lat, *listing.Lng, best.Lat, best.Lng)
	for _, s := range candidates[1:] {
		if d := haversineM(*listing.Lat, *listing.Lng, s.Lat, s.Lng); d < bestDist {
			best, bestDist = s, d
		}
	}

	decision.Station = best.ID
	decision.DistanceM = bestDist
	decision.WalkMinutes = bestDist / f.walkSpeed

	if bestDist <= f.thresholdM {
		decision.Qualifies = true
		decision.Reason = models.ReasonWithinThreshold
	} else {
		decision.Reason = models.ReasonBeyondThreshold
	}
	return decision
}

func (f *Filter) candidatesFor(listing models.Listing) []models.Station {
	if len(listing.Stations) > 0 {
		var scoped []models.Station
		for _, id := range listing.Stations {
			if s, ok := f.byID[id]; ok {
				scoped = append(scoped, s)
			}
		}
		if len(scoped) > 0 {
			return scoped
		}
	}
	return f.stations
}

func haversineM(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(a))
}
