// Package dedup classifies crawled listings against the previously known
// identity set. It is pure: no I/O, no clock, deterministic for its inputs.
// Fetching and persisting identities is the storage collaborator's job.
package dedup

import "rentwatch/models"

// Classify compares every listing in the batch against known, a mapping from
// primary key to last-known fingerprint. Absent key → New; present with a
// different fingerprint → Changed; equal fingerprint → Unchanged.
func Classify(batch *models.CrawlBatch, known map[string]string) models.DedupResult {
	result := models.DedupResult{
		Listings: make([]models.ClassifiedListing, 0, len(batch.Listings)),
	}

	for _, listing := range batch.Listings {
		cl := models.ClassifiedListing{Listing: listing}

		old, seen := known[listing.PrimaryKey]
		switch {
		case !seen:
			cl.Class = models.ClassNew
			result.New++
		case old != listing.Fingerprint:
			cl.Class = models.ClassChanged
			cl.OldFingerprint = old
			result.Changed++
		default:
			cl.Class = models.ClassUnchanged
			result.Unchanged++
		}

		result.Listings = append(result.Listings, cl)
	}

	return result
}
