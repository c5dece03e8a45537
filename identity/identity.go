package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"rentwatch/models"
)

// Query parameters that vary between crawls of the same listing page and must
// not affect the primary key.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"ref":          {},
	"referer":      {},
	"from":         {},
	"t":            {},
}

// PrimaryKey derives the stable listing identifier from its link. The link is
// canonicalized first so the same property crawled through different entry
// points keys identically.
func PrimaryKey(link string) string {
	return CanonicalLink(link)
}

// CanonicalLink strips tracking query parameters, drops the fragment,
// lowercases the host and normalizes the trailing slash.
func CanonicalLink(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(link)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	q := u.Query()
	for param := range q {
		if _, tracked := trackingParams[param]; tracked {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// Fingerprint hashes the mutable fields of a listing into a short stable
// digest. Field order is fixed and features are sorted, so two listings with
// identical content always hash identically.
func Fingerprint(listing *models.Listing) string {
	features := append([]string(nil), listing.Features...)
	sort.Strings(features)

	input := fmt.Sprintf("%d|%s|%s|%s|%.1f|%s|%s",
		listing.Price,
		strings.TrimSpace(listing.Title),
		strings.TrimSpace(listing.RoomType),
		strings.ToLower(strings.TrimSpace(listing.HouseType)),
		listing.SizePing,
		strings.TrimSpace(listing.Floor),
		strings.Join(features, ","),
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// Stamp fills in the derived PrimaryKey and Fingerprint fields of a freshly
// parsed listing.
func Stamp(listing *models.Listing) {
	listing.PrimaryKey = PrimaryKey(listing.Link)
	listing.Fingerprint = Fingerprint(listing)
}
