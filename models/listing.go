package models

import (
	"time"

	"github.com/google/uuid"
)

// Listing is one scraped rental property. A Listing is never mutated after a
// crawl produces it; a later crawl of the same property yields a fresh Listing
// that is compared against the stored fingerprint.
type Listing struct {
	Title     string   `json:"title" db:"title"`
	Price     int      `json:"price" db:"price"` // monthly rent, NTD
	Link      string   `json:"link" db:"link"`
	Location  string   `json:"location" db:"location"`
	HouseType string   `json:"house_type" db:"house_type"` // whole flat, suite, studio...
	RoomType  string   `json:"room_type" db:"room_type"`   // e.g. "2房1廳"
	SizePing  float64  `json:"size_ping,omitempty" db:"size_ping"`
	Floor     string   `json:"floor,omitempty" db:"floor"`
	Features  []string `json:"features,omitempty"`

	Lat *float64 `json:"lat,omitempty" db:"lat"`
	Lng *float64 `json:"lng,omitempty" db:"lng"`

	// Stations this listing matched during a multi-station crawl. Populated
	// by the orchestrator when merging is enabled.
	Stations []string `json:"stations,omitempty"`

	// Derived by the identity package when the crawler emits the listing.
	PrimaryKey  string `json:"primary_key" db:"primary_key"`
	Fingerprint string `json:"fingerprint" db:"fingerprint"`
}

// HasLocation reports whether the listing carries usable coordinates.
func (l *Listing) HasLocation() bool {
	return l.Lat != nil && l.Lng != nil
}

type StationState string

const (
	StationPending  StationState = "pending"
	StationFetching StationState = "fetching"
	StationParsing  StationState = "parsing"
	StationDone     StationState = "done"
	StationFailed   StationState = "failed"
)

// StationResult records the outcome of crawling one station-scoped URL.
type StationResult struct {
	Station  string       `json:"station"`
	URL      string       `json:"url"`
	State    StationState `json:"state"`
	Listings int          `json:"listings"`
	Error    string       `json:"error,omitempty"`
}

func (r *StationResult) Failed() bool {
	return r.State == StationFailed
}

type BatchState string

const (
	BatchRunning         BatchState = "running"
	BatchSucceeded       BatchState = "succeeded"
	BatchPartiallyFailed BatchState = "partially_failed"
	BatchAllFailed       BatchState = "all_failed"
)

// CrawlBatch is the merged result of one orchestration run. Listings are
// ordered by station declaration order, never by fetch completion order, and
// contain no duplicate primary keys.
type CrawlBatch struct {
	ID         uuid.UUID       `json:"id"`
	SourceURL  string          `json:"source_url"`
	Listings   []Listing       `json:"listings"`
	Stations   []StationResult `json:"stations"`
	State      BatchState      `json:"state"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// FailedStations returns the per-station failure records of the batch.
func (b *CrawlBatch) FailedStations() []StationResult {
	var failed []StationResult
	for _, s := range b.Stations {
		if s.Failed() {
			failed = append(failed, s)
		}
	}
	return failed
}

type Classification string

const (
	ClassNew       Classification = "new"
	ClassChanged   Classification = "changed"
	ClassUnchanged Classification = "unchanged"
)

// ClassifiedListing pairs a crawled listing with its dedup classification.
type ClassifiedListing struct {
	Listing        Listing        `json:"listing"`
	Class          Classification `json:"class"`
	OldFingerprint string         `json:"old_fingerprint,omitempty"`
}

// DedupResult is the classification of a whole batch against the previously
// known identity set. Computed fresh per run, never persisted by the core.
type DedupResult struct {
	Listings  []ClassifiedListing `json:"listings"`
	New       int                 `json:"new"`
	Changed   int                 `json:"changed"`
	Unchanged int                 `json:"unchanged"`
}

// Identities returns the (primaryKey, fingerprint) pairs of the classified
// batch, in the shape the storage collaborator persists.
func (r *DedupResult) Identities() map[string]string {
	out := make(map[string]string, len(r.Listings))
	for _, cl := range r.Listings {
		out[cl.Listing.PrimaryKey] = cl.Listing.Fingerprint
	}
	return out
}

// Distance-filter reasons.
const (
	ReasonWithinThreshold = "within_threshold"
	ReasonBeyondThreshold = "beyond_threshold"
	ReasonUnknownLocation = "unknown_location"
)

// DistanceDecision is the per-listing outcome of the distance filter.
type DistanceDecision struct {
	Listing     Listing `json:"listing"`
	Qualifies   bool    `json:"qualifies"`
	Station     string  `json:"station,omitempty"` // nearest configured station
	DistanceM   float64 `json:"distance_m,omitempty"`
	WalkMinutes float64 `json:"walk_minutes,omitempty"`
	Reason      string  `json:"reason"`
}
