// Package service contains catalog workflows
package service

import (
	"strings"
	"time"
	"unicode"

	"animabook/internal/adapters/upstream"
	ptime "animabook/internal/platform/time"
	"animabook/internal/services/catalog/domain"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// mapFields projects an upstream payload into the derived columns.
// Every field defaults safely when the payload omits or mangles it
func mapFields(entityType string, payload map[string]any) domain.Fields {
	doc := upstream.Document(payload)

	f := domain.Fields{}
	f.Title = doc.Str("title")
	if f.Title == "" {
		// characters, people, producers and clubs carry name instead
		f.Title = doc.Str("name")
	}
	f.TitleNormalized = normalizeTitle(f.Title)

	if v, ok := doc.Float("score"); ok {
		f.Score = &v
	}
	f.Rank = intField(doc, "rank")
	f.Popularity = intField(doc, "popularity")
	f.Members = intField(doc, "members")
	f.Favorites = intField(doc, "favorites")

	f.Year = intField(doc, "year")
	if f.Year == nil {
		f.Year = yearFromDates(doc, entityType)
	}
	f.Season = doc.Str("season")
	f.Status = doc.Str("status")

	img := doc.Dig("images", "jpg")
	if img == nil {
		img = doc.Dig("images", "webp")
	}
	if img != nil {
		f.ImageURL = img.Str("image_url")
		f.ThumbnailURL = img.Str("small_image_url")
	}
	if f.ThumbnailURL == "" {
		f.ThumbnailURL = f.ImageURL
	}

	for _, l := range doc.Slice("external_links") {
		if u := l.Str("url"); u != "" {
			f.ExternalLinks = append(f.ExternalLinks, domain.Link{Name: l.Str("name"), URL: u})
		}
	}
	return f
}

// yearFromDates falls back to the start date when the payload has no year field
func yearFromDates(doc upstream.Document, entityType string) *int {
	span := "aired"
	if entityType == domain.TypeManga {
		span = "published"
	}
	from := doc.Dig(span, "prop", "from")
	if from == nil {
		return nil
	}
	if v, ok := from.Float("year"); ok && v > 0 {
		y := int(v)
		return &y
	}
	return nil
}

func intField(doc upstream.Document, key string) *int {
	if v, ok := doc.Float(key); ok {
		n := int(v)
		return &n
	}
	return nil
}

// normalizeTitle lowercases, strips combining accents and collapses
// whitespace so lookups match across romanization variants
func normalizeTitle(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// nextRefresh computes the refresh horizon for a fetched entity.
// Static resource types never age out; airing and publishing titles
// come back on the short horizon, everything else on the long one
func nextRefresh(cc CadenceConfig, entityType, status string, now time.Time) *time.Time {
	switch entityType {
	case domain.TypeAnime, domain.TypeManga:
	default:
		return nil
	}

	st := strings.ToLower(status)
	var cadence time.Duration
	switch {
	case strings.Contains(st, "finished") || strings.Contains(st, "complete") || strings.Contains(st, "discontinued"):
		cadence = cc.FinishedEvery
	case strings.Contains(st, "airing") || strings.Contains(st, "publishing"):
		cadence = cc.ActiveEvery
	default:
		cadence = cc.FinishedEvery
	}
	return ptime.Ptr(now.Add(cadence))
}
