package crawler

import (
	"context"
	"fmt"

	"rentwatch/identity"
	"rentwatch/models"
	"rentwatch/searchurl"
)

// Fetcher is the network capability the page crawler depends on. Production
// wiring supplies *fetch.Client; tests supply stubs.
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "zh-TW,zh;q=0.9,en;q=0.8",
	"Referer":         "https://rent.591.com.tw/",
}

// PageCrawler fetches one search-result URL and parses it into listings.
type PageCrawler struct {
	fetcher Fetcher
	parser  Parser
}

func NewPageCrawler(fetcher Fetcher, parser Parser) *PageCrawler {
	if parser == nil {
		parser = NewListParser()
	}
	return &PageCrawler{fetcher: fetcher, parser: parser}
}

// Crawl validates raw, fetches it and parses the body. Every returned listing
// carries its derived primary key and fingerprint. Zero listings is a valid
// result; a parse failure is reported as *ParseError.
func (c *PageCrawler) Crawl(ctx context.Context, raw string) ([]models.Listing, error) {
	u, err := searchurl.Parse(raw)
	if err != nil {
		return nil, err
	}

	body, err := c.fetcher.Get(ctx, u.String(), defaultHeaders)
	if err != nil {
		return nil, err
	}

	listings, err := c.parse(u.String(), body)
	if err != nil {
		return nil, err
	}

	for i := range listings {
		identity.Stamp(&listings[i])
	}
	return listings, nil
}

// parse isolates parser panics on malformed markup into a *ParseError so one
// broken page cannot take down a whole batch.
func (c *PageCrawler) parse(url string, body []byte) (listings []models.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			listings = nil
			err = &ParseError{URL: url, Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	listings, perr := c.parser.Parse(body)
	if perr != nil {
		return nil, &ParseError{URL: url, Err: perr}
	}
	return listings, nil
}
