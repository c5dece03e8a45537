package crawler

import (
	"context"
	"errors"
	"testing"

	"rentwatch/models"
)

type stubFetcher struct {
	body []byte
	err  error
	got  string
}

func (f *stubFetcher) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	f.got = url
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

type panicParser struct{}

func (panicParser) Parse(body []byte) ([]models.Listing, error) {
	panic("selector blew up")
}

func TestPageCrawlerStampsIdentity(t *testing.T) {
	fetcher := &stubFetcher{body: loadFixture(t, "list_basic.html")}
	pc := NewPageCrawler(fetcher, nil)

	listings, err := pc.Crawl(context.Background(), "https://rent.591.com.tw/?region=1&station=4232")
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
	for i, l := range listings {
		if l.PrimaryKey == "" || l.Fingerprint == "" {
			t.Fatalf("listing %d missing derived identity", i)
		}
	}
	// Tracking params on the link must not leak into the key.
	if listings[0].PrimaryKey != "https://rent.591.com.tw/rent-detail-12345678.html" {
		t.Fatalf("unexpected primary key %q", listings[0].PrimaryKey)
	}
}

func TestPageCrawlerRejectsInvalidURL(t *testing.T) {
	pc := NewPageCrawler(&stubFetcher{}, nil)
	if _, err := pc.Crawl(context.Background(), "https://evil.example.com/"); err == nil {
		t.Fatal("expected validation error before any fetch")
	}
}

func TestPageCrawlerPropagatesFetchError(t *testing.T) {
	wantErr := errors.New("connection refused")
	pc := NewPageCrawler(&stubFetcher{err: wantErr}, nil)
	_, err := pc.Crawl(context.Background(), "https://rent.591.com.tw/?station=4232")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestPageCrawlerIsolatesParserPanic(t *testing.T) {
	pc := NewPageCrawler(&stubFetcher{body: []byte("<html></html>")}, panicParser{})
	_, err := pc.Crawl(context.Background(), "https://rent.591.com.tw/?station=4232")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError from panic, got %v", err)
	}
}
