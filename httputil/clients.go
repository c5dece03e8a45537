package httputil

import (
	"net/http"
	"net/url"
	"time"
)

type Clients struct {
	Scraping *http.Client // for the rental site
	API      *http.Client // for the chat webhook and S3 endpoint
}

// NewClients builds the two shared HTTP clients. proxyURL may be empty; when
// set, only the scraping client is routed through it.
func NewClients(fetchTimeout time.Duration, proxyURL string) *Clients {
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	}

	scraping := &http.Client{
		Timeout:   fetchTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 30 * time.Second},
	}
}
