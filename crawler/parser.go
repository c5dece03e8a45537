package crawler

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rentwatch/models"
)

// Parser turns a search-result page body into listings. Tests supply stubs;
// production uses the goquery-backed ListParser.
type Parser interface {
	Parse(body []byte) ([]models.Listing, error)
}

// ListParser parses the rental search-result page markup.
type ListParser struct{}

func NewListParser() *ListParser {
	return &ListParser{}
}

var (
	priceDigits = regexp.MustCompile(`[\d,]+`)
	sizePattern = regexp.MustCompile(`([\d.]+)\s*坪`)
)

// Parse extracts zero or more listings. An empty result page is valid and
// returns an empty slice with no error.
func (p *ListParser) Parse(body []byte) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var listings []models.Listing
	doc.Find(".list-wrapper .vue-list-rent-item, .list-wrapper .rent-item").Each(func(i int, s *goquery.Selection) {
		listing := p.parseItem(s)
		if listing.Link == "" || listing.Title == "" {
			return // skeleton / ad slot, skip
		}
		listings = append(listings, listing)
	})

	return listings, nil
}

func (p *ListParser) parseItem(s *goquery.Selection) models.Listing {
	listing := models.Listing{
		Title:    text(s, ".item-title"),
		Location: text(s, ".item-area"),
		Price:    parsePrice(text(s, ".item-price")),
	}

	if href, ok := s.Find("a.item-link").Attr("href"); ok {
		listing.Link = href
	} else if href, ok := s.Find(".item-title a").Attr("href"); ok {
		listing.Link = href
	}

	// The style list carries house type, room layout, size and floor in
	// positional order; entries may be missing on some items.
	s.Find(".item-style li").Each(func(i int, li *goquery.Selection) {
		v := strings.TrimSpace(li.Text())
		switch {
		case v == "":
		case strings.Contains(v, "坪"):
			if m := sizePattern.FindStringSubmatch(v); m != nil {
				listing.SizePing, _ = strconv.ParseFloat(m[1], 64)
			}
		case strings.Contains(v, "F") || strings.Contains(v, "樓"):
			listing.Floor = v
		case strings.Contains(v, "房") || strings.Contains(v, "廳") || strings.Contains(v, "衛"):
			listing.RoomType = v
		case listing.HouseType == "":
			listing.HouseType = v
		}
	})

	s.Find(".item-tags .tag, .item-feature li").Each(func(i int, tag *goquery.Selection) {
		if v := strings.TrimSpace(tag.Text()); v != "" {
			listing.Features = append(listing.Features, v)
		}
	})

	if lat, ok := parseCoord(s, "data-lat"); ok {
		if lng, ok := parseCoord(s, "data-lng"); ok {
			listing.Lat = &lat
			listing.Lng = &lng
		}
	}

	return listing
}

func text(s *goquery.Selection, selector string) string {
	return strings.Join(strings.Fields(s.Find(selector).First().Text()), " ")
}

func parsePrice(v string) int {
	m := priceDigits.FindString(v)
	if m == "" {
		return 0
	}
	n, _ := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	return n
}

func parseCoord(s *goquery.Selection, attr string) (float64, bool) {
	raw, ok := s.Attr(attr)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
