package dedup

import (
	"testing"

	"rentwatch/identity"
	"rentwatch/models"
)

func batchOf(listings ...models.Listing) *models.CrawlBatch {
	for i := range listings {
		identity.Stamp(&listings[i])
	}
	return &models.CrawlBatch{Listings: listings}
}

func TestClassifyNewChangedUnchanged(t *testing.T) {
	unchanged := models.Listing{Title: "known", Link: "https://rent.591.com.tw/rent-detail-1.html", Price: 10000}
	identity.Stamp(&unchanged)

	repriced := models.Listing{Title: "repriced", Link: "https://rent.591.com.tw/rent-detail-6.html", Price: 12000}
	identity.Stamp(&repriced)
	oldVersion := repriced
	oldVersion.Price = 11000
	identity.Stamp(&oldVersion)

	fresh := models.Listing{Title: "fresh", Link: "https://rent.591.com.tw/rent-detail-2.html", Price: 8000}

	batch := batchOf(fresh, repriced, unchanged)
	result := Classify(batch, map[string]string{
		unchanged.PrimaryKey:  unchanged.Fingerprint,
		oldVersion.PrimaryKey: oldVersion.Fingerprint,
	})

	if result.New != 1 || result.Changed != 1 || result.Unchanged != 1 {
		t.Fatalf("counts new=%d changed=%d unchanged=%d", result.New, result.Changed, result.Unchanged)
	}

	want := map[string]models.Classification{
		"fresh":    models.ClassNew,
		"repriced": models.ClassChanged,
		"known":    models.ClassUnchanged,
	}
	for _, cl := range result.Listings {
		if cl.Class != want[cl.Listing.Title] {
			t.Errorf("%s classified %s, want %s", cl.Listing.Title, cl.Class, want[cl.Listing.Title])
		}
	}
}

func TestClassifyChangedCarriesOldFingerprint(t *testing.T) {
	l := models.Listing{Title: "x", Link: "https://rent.591.com.tw/rent-detail-3.html", Price: 20000}
	identity.Stamp(&l)

	batch := batchOf(l)
	result := Classify(batch, map[string]string{l.PrimaryKey: "deadbeefdeadbeefdeadbeefdeadbeef"})

	if result.Changed != 1 {
		t.Fatalf("expected 1 changed, got %d", result.Changed)
	}
	if result.Listings[0].OldFingerprint != "deadbeefdeadbeefdeadbeefdeadbeef" {
		t.Fatalf("old fingerprint not carried: %q", result.Listings[0].OldFingerprint)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	batch := batchOf(
		models.Listing{Title: "a", Link: "https://rent.591.com.tw/rent-detail-4.html", Price: 15000},
		models.Listing{Title: "b", Link: "https://rent.591.com.tw/rent-detail-5.html", Price: 16000},
	)

	first := Classify(batch, nil)
	if first.New != 2 {
		t.Fatalf("expected 2 new on empty known set, got %d", first.New)
	}

	// Re-running against the first run's own identities yields Unchanged
	// across the board.
	second := Classify(batch, first.Identities())
	if second.Unchanged != 2 || second.New != 0 || second.Changed != 0 {
		t.Fatalf("not idempotent: new=%d changed=%d unchanged=%d", second.New, second.Changed, second.Unchanged)
	}
}

func TestClassifyEmptyBatch(t *testing.T) {
	result := Classify(&models.CrawlBatch{}, map[string]string{"k": "v"})
	if len(result.Listings) != 0 {
		t.Fatalf("expected empty result, got %d", len(result.Listings))
	}
}
