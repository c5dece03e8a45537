package storage

import (
	"context"

	"rentwatch/models"
)

// IdentityStore is the persistence collaborator the crawl engine consumes.
// The engine only ever needs the known identity set up front and a place to
// save what it found; everything else is the store's business.
type IdentityStore interface {
	// GetExistingIdentities returns primaryKey -> last-known fingerprint
	// for every listing previously seen under the query.
	GetExistingIdentities(ctx context.Context, queryID string) (map[string]string, error)

	// SaveResults persists a classified batch and its session record.
	SaveResults(ctx context.Context, queryID string, batch *models.CrawlBatch, dedup *models.DedupResult) (*models.SessionSummary, error)
}
