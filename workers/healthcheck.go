package workers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"rentwatch/storage"
)

// HealthcheckWorker periodically HEAD-checks known listing links and marks
// delisted ones inactive, so the known-identity set does not grow without
// bound and dead listings stop matching future dedup runs.
type HealthcheckWorker struct {
	store      *storage.PostgresStore
	httpClient *http.Client
	triggerCh  chan struct{}
}

func NewHealthcheckWorker(store *storage.PostgresStore, httpClient *http.Client) *HealthcheckWorker {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &HealthcheckWorker{
		store:      store,
		httpClient: httpClient,
		triggerCh:  make(chan struct{}, 1),
	}
}

// Trigger causes the worker to run a batch immediately.
func (w *HealthcheckWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run checks batchSize listings not seen since maxAge, every interval, until
// ctx is cancelled.
func (w *HealthcheckWorker) Run(ctx context.Context, maxAge time.Duration, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.runBatch(ctx, maxAge, batchSize)
		case <-w.triggerCh:
			w.runBatch(ctx, maxAge, batchSize)
		case <-ctx.Done():
			return
		}
	}
}

func (w *HealthcheckWorker) runBatch(ctx context.Context, maxAge time.Duration, batchSize int) {
	links, err := w.store.ActiveListingLinks(ctx, time.Now().Add(-maxAge), batchSize)
	if err != nil {
		log.Printf("[healthcheck] loading links: %v", err)
		return
	}
	if len(links) == 0 {
		return
	}

	checked, delisted := 0, 0
	for key, link := range links {
		live, err := w.checkLink(ctx, link)
		if err != nil {
			log.Printf("[healthcheck] %s: %v", link, err)
			// Bump anyway so one flaky link cannot wedge the cycle.
			w.store.TouchListing(ctx, key, time.Now())
			continue
		}
		checked++

		if live {
			w.store.TouchListing(ctx, key, time.Now())
		} else {
			delisted++
			if err := w.store.MarkListingInactive(ctx, key); err != nil {
				log.Printf("[healthcheck] marking %s inactive: %v", key, err)
			}
		}
	}

	log.Printf("[healthcheck] checked %d listing(s), %d delisted", checked, delisted)
}

func (w *HealthcheckWorker) checkLink(ctx context.Context, link string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound, http.StatusGone:
		return false, nil
	case http.StatusMovedPermanently, http.StatusFound:
		// Delisted rentals redirect back to the search page.
		return !isDelistRedirect(resp.Header.Get("Location")), nil
	default:
		return true, nil
	}
}

func isDelistRedirect(location string) bool {
	if location == "" {
		return false
	}
	return !strings.Contains(location, "rent-detail")
}
