// Package searchurl validates rental search URLs and splits multi-station
// searches into the per-station URLs the crawler actually fetches.
package searchurl

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	supportedHost = "rent.591.com.tw"
	stationParam  = "station"
	regionParam   = "region"
)

// ErrInvalidURL is returned for anything that is not a supported rental
// search URL. It is fatal: the caller aborts instead of retrying.
type ErrInvalidURL struct {
	Raw    string
	Reason string
}

func (e *ErrInvalidURL) Error() string {
	return fmt.Sprintf("invalid search url %q: %s", e.Raw, e.Reason)
}

// SearchURL is an immutable validated search URL plus its derived fields.
type SearchURL struct {
	raw      string
	parsed   *url.URL
	region   string
	stations []string
}

// Parse validates raw against the supported search shape. The host must be
// the rental site and the path must be the search-result page; anything else
// fails with *ErrInvalidURL.
func Parse(raw string) (*SearchURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &ErrInvalidURL{Raw: raw, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ErrInvalidURL{Raw: raw, Reason: "scheme must be http or https"}
	}
	if !strings.EqualFold(u.Host, supportedHost) {
		return nil, &ErrInvalidURL{Raw: raw, Reason: "unsupported host " + u.Host}
	}
	switch strings.TrimSuffix(u.Path, "/") {
	case "", "/list":
	default:
		return nil, &ErrInvalidURL{Raw: raw, Reason: "unsupported path " + u.Path}
	}

	q := u.Query()
	s := &SearchURL{
		raw:    raw,
		parsed: u,
		region: q.Get(regionParam),
	}
	if tokens := q.Get(stationParam); tokens != "" {
		for _, t := range strings.Split(tokens, ",") {
			t = strings.TrimSpace(t)
			if t == "" {
				return nil, &ErrInvalidURL{Raw: raw, Reason: "empty station token"}
			}
			s.stations = append(s.stations, t)
		}
	}
	return s, nil
}

// String returns the original validated URL.
func (s *SearchURL) String() string { return s.raw }

// Region returns the region query parameter, if any.
func (s *SearchURL) Region() string { return s.region }

// Stations returns the station tokens in declaration order.
func (s *SearchURL) Stations() []string {
	out := make([]string, len(s.stations))
	copy(out, s.stations)
	return out
}

// MultiStation reports whether the URL searches more than one station.
func (s *SearchURL) MultiStation() bool { return len(s.stations) > 1 }

// Decompose splits a multi-station URL into one single-station URL per token,
// keeping every other query parameter and the original token order. A
// single-station (or station-less) URL decomposes to itself.
func (s *SearchURL) Decompose() []*SearchURL {
	if len(s.stations) <= 1 {
		return []*SearchURL{s}
	}

	out := make([]*SearchURL, 0, len(s.stations))
	for _, station := range s.stations {
		u := *s.parsed
		q := u.Query()
		q.Set(stationParam, station)
		u.RawQuery = q.Encode()

		single, err := Parse(u.String())
		if err != nil {
			// Cannot happen: we started from a validated URL and only
			// narrowed the station parameter.
			continue
		}
		out = append(out, single)
	}
	return out
}

// Station returns the single station this URL is scoped to, or "" when the
// URL is not station-scoped.
func (s *SearchURL) Station() string {
	if len(s.stations) == 1 {
		return s.stations[0]
	}
	return ""
}
