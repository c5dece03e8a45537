package identity

import (
	"testing"

	"rentwatch/models"
)

func sampleListing() models.Listing {
	return models.Listing{
		Title:     "大安站2分鐘 全新兩房",
		Price:     32000,
		Link:      "https://rent.591.com.tw/rent-detail-12345678.html",
		Location:  "台北市大安區信義路三段",
		HouseType: "整層住家",
		RoomType:  "2房1廳",
		SizePing:  18.5,
		Floor:     "3F/12F",
		Features:  []string{"冷氣", "洗衣機", "可養寵物"},
	}
}

func TestPrimaryKeyStable(t *testing.T) {
	link := "https://rent.591.com.tw/rent-detail-12345678.html"
	if PrimaryKey(link) != PrimaryKey(link) {
		t.Fatal("primary key not stable across calls")
	}
}

func TestPrimaryKeyIgnoresTrackingParams(t *testing.T) {
	base := "https://rent.591.com.tw/rent-detail-12345678.html"
	tracked := base + "?utm_source=line&fbclid=abc123"
	if PrimaryKey(base) != PrimaryKey(tracked) {
		t.Fatalf("tracking params changed key: %q vs %q", PrimaryKey(base), PrimaryKey(tracked))
	}
}

func TestPrimaryKeyNormalizesTrailingSlashAndHost(t *testing.T) {
	a := PrimaryKey("https://RENT.591.com.tw/rent-detail-12345678.html/")
	b := PrimaryKey("https://rent.591.com.tw/rent-detail-12345678.html")
	if a != b {
		t.Fatalf("expected equal keys, got %q vs %q", a, b)
	}
}

func TestPrimaryKeyDiffersForDifferentListings(t *testing.T) {
	a := PrimaryKey("https://rent.591.com.tw/rent-detail-12345678.html")
	b := PrimaryKey("https://rent.591.com.tw/rent-detail-87654321.html")
	if a == b {
		t.Fatal("different links produced the same key")
	}
}

func TestFingerprintIdenticalListings(t *testing.T) {
	l1 := sampleListing()
	l2 := sampleListing()
	if Fingerprint(&l1) != Fingerprint(&l2) {
		t.Fatal("identical listings produced different fingerprints")
	}
}

func TestFingerprintChangesOnPriceChange(t *testing.T) {
	l1 := sampleListing()
	l2 := sampleListing()
	l2.Price = 33000
	if Fingerprint(&l1) == Fingerprint(&l2) {
		t.Fatal("price change did not change fingerprint")
	}
}

func TestFingerprintIgnoresFeatureOrder(t *testing.T) {
	l1 := sampleListing()
	l2 := sampleListing()
	l2.Features = []string{"可養寵物", "冷氣", "洗衣機"}
	if Fingerprint(&l1) != Fingerprint(&l2) {
		t.Fatal("feature order changed fingerprint")
	}
}

func TestStamp(t *testing.T) {
	l := sampleListing()
	Stamp(&l)
	if l.PrimaryKey == "" || l.Fingerprint == "" {
		t.Fatal("stamp left derived fields empty")
	}
	if len(l.Fingerprint) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(l.Fingerprint))
	}
}
