package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"rentwatch/identity"
	"rentwatch/models"
)

// stubCrawler routes station tokens to canned listings or errors.
type stubCrawler struct {
	listings map[string][]models.Listing // station token -> result
	errs     map[string]error
}

func (s *stubCrawler) Crawl(ctx context.Context, url string) ([]models.Listing, error) {
	for station, err := range s.errs {
		if strings.Contains(url, "station="+station) {
			return nil, err
		}
	}
	for station, listings := range s.listings {
		if strings.Contains(url, "station="+station) {
			out := make([]models.Listing, len(listings))
			copy(out, listings)
			return out, nil
		}
	}
	return nil, fmt.Errorf("unexpected url %s", url)
}

func stamped(title, link string, price int) models.Listing {
	l := models.Listing{Title: title, Link: link, Price: price}
	identity.Stamp(&l)
	return l
}

func multiURL(stations ...string) string {
	return "https://rent.591.com.tw/?region=1&station=" + strings.Join(stations, ",")
}

func TestCrawlMultiStationPartialFailure(t *testing.T) {
	shared := stamped("shared near A and C", "https://rent.591.com.tw/rent-detail-111.html", 25000)

	stub := &stubCrawler{
		listings: map[string][]models.Listing{
			"4232": {
				shared,
				stamped("only at A", "https://rent.591.com.tw/rent-detail-222.html", 18000),
			},
			"66210": {shared},
		},
		errs: map[string]error{
			"4233": errors.New("fetch failed after 3 attempts"),
		},
	}

	orch := NewOrchestrator(stub)
	batch, err := orch.CrawlMultiStation(context.Background(), multiURL("4232", "4233", "66210"), Options{
		MaxConcurrent:   2,
		EnableMerging:   true,
		ShowStationInfo: true,
	})
	if err != nil {
		t.Fatalf("partial failure must not be fatal: %v", err)
	}

	if len(batch.Listings) != 2 {
		t.Fatalf("expected 2 unique listings, got %d", len(batch.Listings))
	}
	if batch.State != models.BatchPartiallyFailed {
		t.Fatalf("expected partially_failed state, got %s", batch.State)
	}

	failed := batch.FailedStations()
	if len(failed) != 1 || failed[0].Station != "4233" {
		t.Fatalf("expected one failure record for station 4233, got %+v", failed)
	}

	// The shared listing appears once, first-seen in station order, with
	// both matching stations accumulated.
	first := batch.Listings[0]
	if first.PrimaryKey != shared.PrimaryKey {
		t.Fatalf("expected shared listing first, got %s", first.Title)
	}
	if len(first.Stations) != 2 || first.Stations[0] != "4232" || first.Stations[1] != "66210" {
		t.Fatalf("expected stations [4232 66210], got %v", first.Stations)
	}
}

func TestCrawlMultiStationAllFailed(t *testing.T) {
	stub := &stubCrawler{
		errs: map[string]error{
			"4232": errors.New("boom"),
			"4233": errors.New("boom"),
		},
	}

	orch := NewOrchestrator(stub)
	_, err := orch.CrawlMultiStation(context.Background(), multiURL("4232", "4233"), Options{})
	var all *AllStationsFailedError
	if !errors.As(err, &all) {
		t.Fatalf("expected *AllStationsFailedError, got %v", err)
	}
	if len(all.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(all.Failures))
	}
}

func TestCrawlMultiStationInvalidURLIsFatal(t *testing.T) {
	orch := NewOrchestrator(&stubCrawler{})
	if _, err := orch.CrawlMultiStation(context.Background(), "https://example.com/nope", Options{}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestCrawlMultiStationOrderIndependentOfCompletion(t *testing.T) {
	// Station order must dictate output order even when the first station
	// is the slowest; with MaxConcurrent=2 the second station finishes
	// first.
	a := stamped("a", "https://rent.591.com.tw/rent-detail-301.html", 10000)
	b := stamped("b", "https://rent.591.com.tw/rent-detail-302.html", 11000)

	stub := &stubCrawler{listings: map[string][]models.Listing{
		"4232": {a},
		"4233": {b},
	}}

	orch := NewOrchestrator(stub)
	batch, err := orch.CrawlMultiStation(context.Background(), multiURL("4232", "4233"), Options{MaxConcurrent: 2})
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	if batch.Listings[0].PrimaryKey != a.PrimaryKey || batch.Listings[1].PrimaryKey != b.PrimaryKey {
		t.Fatal("listings not in station declaration order")
	}
}

func TestCrawlMultiStationHidesStationInfo(t *testing.T) {
	shared := stamped("shared", "https://rent.591.com.tw/rent-detail-401.html", 20000)
	stub := &stubCrawler{listings: map[string][]models.Listing{
		"4232": {shared},
		"4233": {shared},
	}}

	orch := NewOrchestrator(stub)
	batch, err := orch.CrawlMultiStation(context.Background(), multiURL("4232", "4233"), Options{
		EnableMerging:   true,
		ShowStationInfo: false,
	})
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	if len(batch.Listings) != 1 {
		t.Fatalf("expected merged single listing, got %d", len(batch.Listings))
	}
	if batch.Listings[0].Stations != nil {
		t.Fatalf("station annotations must be omitted, got %v", batch.Listings[0].Stations)
	}
}

func TestCrawlMultiStationEmptyStationPageIsValid(t *testing.T) {
	stub := &stubCrawler{listings: map[string][]models.Listing{
		"4232": {},
		"4233": {stamped("b", "https://rent.591.com.tw/rent-detail-501.html", 9000)},
	}}

	orch := NewOrchestrator(stub)
	batch, err := orch.CrawlMultiStation(context.Background(), multiURL("4232", "4233"), Options{})
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	if batch.State != models.BatchSucceeded {
		t.Fatalf("empty page is a success, got state %s", batch.State)
	}
	if len(batch.Listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(batch.Listings))
	}
}
