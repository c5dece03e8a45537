package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"rentwatch/config"
	"rentwatch/crawler"
	"rentwatch/dedup"
	"rentwatch/distance"
	"rentwatch/models"
	"rentwatch/notify"
	"rentwatch/searchurl"
	"rentwatch/storage"
)

// WatchService runs one stored watch query end to end: crawl, classify
// against the known identity set, distance-filter, notify, save.
type WatchService struct {
	cfg      *config.Config
	fetcher  crawler.Fetcher
	parser   crawler.Parser
	store    storage.IdentityStore
	notifier notify.Notifier
	filter   *distance.Filter

	ops      *storage.SQLiteStore      // optional run log
	archiver *storage.SnapshotArchiver // optional raw-page archive
}

func NewWatchService(cfg *config.Config, fetcher crawler.Fetcher, store storage.IdentityStore, notifier notify.Notifier) *WatchService {
	return &WatchService{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    store,
		notifier: notifier,
		filter:   distance.NewFilter(cfg.Stations, cfg.Filter.MRTDistanceThreshold, cfg.Filter.WalkingSpeedMPerMin),
	}
}

// SetOperationalStore wires the local run log.
func (s *WatchService) SetOperationalStore(ops *storage.SQLiteStore) {
	s.ops = ops
}

// SetArchiver enables raw-page snapshots for every fetch.
func (s *WatchService) SetArchiver(archiver *storage.SnapshotArchiver) {
	s.archiver = archiver
}

// SetParser overrides the production parser (tests).
func (s *WatchService) SetParser(p crawler.Parser) {
	s.parser = p
}

// RunQuery executes one watch query. A partially failed crawl still proceeds
// to classification and notification on the listings it did get.
func (s *WatchService) RunQuery(ctx context.Context, q models.WatchQuery) (*models.SessionSummary, error) {
	s.log(nil, models.LogLevelInfo, fmt.Sprintf("starting crawl for %s", q.Name), q.ID)

	batch, err := s.crawl(ctx, q)
	if err != nil {
		s.log(nil, models.LogLevelError, fmt.Sprintf("crawl failed: %v", err), q.ID)
		return nil, err
	}

	sessionID := batch.ID.String()
	for _, failure := range batch.FailedStations() {
		s.log(&sessionID, models.LogLevelWarn,
			fmt.Sprintf("station %s failed: %s", failure.Station, failure.Error), q.ID)
	}

	known, err := s.store.GetExistingIdentities(ctx, q.ID)
	if err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}

	result := dedup.Classify(batch, known)
	s.log(&sessionID, models.LogLevelInfo,
		fmt.Sprintf("%d listings: %d new, %d changed, %d unchanged",
			len(batch.Listings), result.New, result.Changed, result.Unchanged), q.ID)

	items := s.decide(result)
	opts := notify.Options{
		NotifyMode:     s.cfg.Notify.NotifyMode,
		FilteredMode:   s.cfg.Notify.FilteredMode,
		NotifyOnChange: s.cfg.Notify.NotifyOnChange,
	}
	if err := s.notifier.SendNotifications(ctx, items, opts); err != nil {
		// Notification failure must not lose the crawl results.
		s.log(&sessionID, models.LogLevelError, fmt.Sprintf("notify failed: %v", err), q.ID)
	}

	summary, err := s.store.SaveResults(ctx, q.ID, batch, &result)
	if err != nil {
		return nil, fmt.Errorf("save results: %w", err)
	}

	s.log(&sessionID, models.LogLevelInfo,
		fmt.Sprintf("completed: %d saved, %d new, %d changed", summary.Saved, summary.New, summary.Changed), q.ID)
	return summary, nil
}

// RunAll runs every query best-effort: one query's failure never cancels the
// others.
func (s *WatchService) RunAll(ctx context.Context, queries []models.WatchQuery) error {
	var g errgroup.Group
	g.SetLimit(2)

	for _, q := range queries {
		q := q
		g.Go(func() error {
			qctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()

			if _, err := s.RunQuery(qctx, q); err != nil {
				log.Printf("[watch] query %s failed: %v", q.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *WatchService) crawl(ctx context.Context, q models.WatchQuery) (*models.CrawlBatch, error) {
	fetcher := s.fetcher
	if s.archiver != nil {
		fetcher = &archivingFetcher{inner: fetcher, archiver: s.archiver, queryID: q.ID}
	}

	pc := crawler.NewPageCrawler(fetcher, s.parser)
	orch := crawler.NewOrchestrator(pc)

	return orch.CrawlMultiStation(ctx, q.URL, crawler.Options{
		MaxConcurrent:        s.cfg.Crawl.MaxConcurrent,
		DelayBetweenRequests: s.cfg.Crawl.DelayBetweenRequests,
		EnableMerging:        s.cfg.Crawl.EnableMerging,
		ShowStationInfo:      s.cfg.Crawl.ShowStationInfo,
	})
}

// decide pairs every new or changed listing with its distance decision.
// Unchanged listings are carried through so the notifier's selection logic
// sees the full picture.
func (s *WatchService) decide(result models.DedupResult) []notify.Item {
	items := make([]notify.Item, 0, len(result.Listings))
	for _, cl := range result.Listings {
		items = append(items, notify.Item{
			Decision: s.filter.Decide(cl.Listing),
			Class:    cl.Class,
		})
	}
	return items
}

func (s *WatchService) log(sessionID *string, level models.LogLevel, message, queryID string) {
	log.Printf("[%s] %s: %s", level, queryID, message)
	if s.ops != nil {
		s.ops.Log(sessionID, level, message, queryID)
	}
}

// archivingFetcher mirrors every fetched body into the snapshot archive
// before handing it to the parser.
type archivingFetcher struct {
	inner    crawler.Fetcher
	archiver *storage.SnapshotArchiver
	queryID  string
}

func (f *archivingFetcher) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	body, err := f.inner.Get(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	if key, aerr := f.archiver.ArchivePage(ctx, f.queryID, stationOf(url), body); aerr != nil {
		log.Printf("[archive] %s: %v", url, aerr)
	} else {
		log.Printf("[archive] stored %s", key)
	}
	return body, nil
}

func stationOf(rawURL string) string {
	u, err := searchurl.Parse(rawURL)
	if err != nil || u.Station() == "" {
		return "page"
	}
	return u.Station()
}
