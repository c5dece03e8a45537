package crawler

import (
	"fmt"
	"strings"
)

// ParseError is a failure turning a fetched page into listings. It is fatal
// for that one URL; sibling stations in the same batch are unaffected.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StationFailure records one station's failure inside a multi-station crawl.
type StationFailure struct {
	Station string
	URL     string
	Err     error
}

func (f StationFailure) String() string {
	return fmt.Sprintf("station %s (%s): %v", f.Station, f.URL, f.Err)
}

// AllStationsFailedError means every station of a multi-station crawl failed.
// Partial failure never produces this; it is only returned when there are no
// usable listings at all.
type AllStationsFailedError struct {
	Failures []StationFailure
}

func (e *AllStationsFailedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return fmt.Sprintf("all %d station(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}
