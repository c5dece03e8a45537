package crawler

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"rentwatch/models"
	"rentwatch/searchurl"
)

// Options controls one multi-station orchestration run. It is validated once
// at entry; zero values fall back to the documented defaults.
type Options struct {
	MaxConcurrent        int           // simultaneous fetches, default 2
	DelayBetweenRequests time.Duration // pacing between fetch starts, default 0
	EnableMerging        bool          // accumulate matched stations on duplicates
	ShowStationInfo      bool          // annotate listings with station tokens
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 2
	}
	if o.DelayBetweenRequests < 0 {
		o.DelayBetweenRequests = 0
	}
	return o
}

// StationCrawler crawls one station-scoped URL. Satisfied by *PageCrawler.
type StationCrawler interface {
	Crawl(ctx context.Context, url string) ([]models.Listing, error)
}

// Orchestrator fans a multi-station search out across station crawls under a
// concurrency limit and merges the partial results deterministically.
type Orchestrator struct {
	crawler StationCrawler
}

func NewOrchestrator(crawler StationCrawler) *Orchestrator {
	return &Orchestrator{crawler: crawler}
}

// CrawlSingle crawls one URL with no fan-out.
func (o *Orchestrator) CrawlSingle(ctx context.Context, raw string) ([]models.Listing, error) {
	return o.crawler.Crawl(ctx, raw)
}

type stationOutcome struct {
	station  string
	url      string
	listings []models.Listing
	err      error
}

// CrawlMultiStation decomposes raw into station-scoped URLs, crawls them with
// at most opts.MaxConcurrent in flight, and merges the results in station
// declaration order. A station failure is recorded, not fatal; only all
// stations failing returns *AllStationsFailedError.
func (o *Orchestrator) CrawlMultiStation(ctx context.Context, raw string, opts Options) (*models.CrawlBatch, error) {
	opts = opts.withDefaults()

	source, err := searchurl.Parse(raw)
	if err != nil {
		return nil, err
	}

	parts := source.Decompose()
	outcomes := make([]stationOutcome, len(parts))

	batch := &models.CrawlBatch{
		ID:        uuid.New(),
		SourceURL: source.String(),
		State:     models.BatchRunning,
		StartedAt: time.Now(),
		Stations:  make([]models.StationResult, len(parts)),
	}
	for i, part := range parts {
		batch.Stations[i] = models.StationResult{
			Station: stationLabel(part),
			URL:     part.String(),
			State:   models.StationPending,
		}
	}

	limiter := NewLimiter(opts.MaxConcurrent, opts.DelayBetweenRequests)
	for i, part := range parts {
		i, part := i, part
		if err := limiter.Submit(ctx, func() {
			batch.Stations[i].State = models.StationFetching
			listings, err := o.crawler.Crawl(ctx, part.String())
			outcomes[i] = stationOutcome{
				station:  stationLabel(part),
				url:      part.String(),
				listings: listings,
				err:      err,
			}
		}); err != nil {
			outcomes[i] = stationOutcome{station: stationLabel(part), url: part.String(), err: err}
		}
	}
	limiter.Wait()

	// Merge deferred until all tasks settle: output order follows station
	// declaration order regardless of completion order.
	var failures []StationFailure
	seen := make(map[string]int) // primaryKey -> index in batch.Listings
	for i, out := range outcomes {
		if out.err != nil {
			batch.Stations[i].State = models.StationFailed
			batch.Stations[i].Error = out.err.Error()
			failures = append(failures, StationFailure{Station: out.station, URL: out.url, Err: out.err})
			log.Printf("[crawl] station %s failed: %v", out.station, out.err)
			continue
		}
		batch.Stations[i].State = models.StationDone
		batch.Stations[i].Listings = len(out.listings)

		for _, listing := range out.listings {
			if at, dup := seen[listing.PrimaryKey]; dup {
				if opts.EnableMerging {
					batch.Listings[at].Stations = appendStation(batch.Listings[at].Stations, out.station)
				}
				continue
			}
			if opts.ShowStationInfo {
				listing.Stations = []string{out.station}
			} else {
				listing.Stations = nil
			}
			seen[listing.PrimaryKey] = len(batch.Listings)
			batch.Listings = append(batch.Listings, listing)
		}
	}

	if !opts.ShowStationInfo {
		for i := range batch.Listings {
			batch.Listings[i].Stations = nil
		}
	}

	batch.FinishedAt = time.Now()
	switch {
	case len(failures) == len(parts):
		batch.State = models.BatchAllFailed
		return nil, &AllStationsFailedError{Failures: failures}
	case len(failures) > 0:
		batch.State = models.BatchPartiallyFailed
	default:
		batch.State = models.BatchSucceeded
	}

	return batch, nil
}

func stationLabel(u *searchurl.SearchURL) string {
	if s := u.Station(); s != "" {
		return s
	}
	return "all"
}

func appendStation(stations []string, station string) []string {
	for _, s := range stations {
		if s == station {
			return stations
		}
	}
	return append(stations, station)
}
