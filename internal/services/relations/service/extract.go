// Package service contains relation graph workflows
package service

import (
	"hash/fnv"

	"animabook/internal/adapters/upstream"
	cat "animabook/internal/services/catalog/domain"
	"animabook/internal/services/relations/domain"
)

// subDocs carries the list-shaped sub-resources fetched alongside a payload
type subDocs struct {
	Characters []upstream.Document
	Staff      []upstream.Document
	News       []upstream.Document
}

// extractEdges walks the relation-bearing sections of one entity payload
// and its sub-resources and returns the typed edges found. Fragments
// without a usable target id are skipped, never errors
func extractEdges(fromType string, fromID int64, payload upstream.Document, subs subDocs) []domain.Edge {
	var out []domain.Edge
	add := func(toType string, toID int64, rel string, weight int, meta map[string]any) {
		if toID == 0 || toType == "" {
			return
		}
		out = append(out, domain.Edge{
			FromType:     fromType,
			FromID:       fromID,
			ToType:       toType,
			ToID:         toID,
			RelationType: rel,
			Weight:       weight,
			Meta:         meta,
		})
	}

	// franchise structure: sequels, prequels, adaptations and the like
	for _, rel := range payload.Slice("relations") {
		kind := rel.Str("relation")
		for _, entry := range rel.Slice("entry") {
			add(entry.Str("type"), entry.ID(), domain.RelRelated, 0, map[string]any{
				"relation": kind,
				"name":     entry.Str("name"),
			})
		}
	}

	// user recommendations, weighted by vote count
	for _, rec := range payload.Slice("recommendations") {
		entry := rec.Child("entry")
		if entry == nil {
			continue
		}
		toType := entry.Str("type")
		if toType == "" {
			// recommendation entries default to the parent family
			toType = fromType
		}
		add(toType, entry.ID(), domain.RelRecommendation, int(rec.Int("votes")), map[string]any{
			"title": entry.Str("title"),
		})
	}

	// reviews, weighted by reviewer score; review targets are edge
	// endpoints only and never fan out
	out = appendReviews(out, fromType, fromID, payload)

	for _, g := range genreSections(payload) {
		add(cat.TypeGenre, g.ID(), domain.RelGenre, 0, map[string]any{"name": g.Str("name")})
	}

	for _, ch := range subs.Characters {
		c := ch.Child("character")
		if c == nil {
			continue
		}
		add(cat.TypeCharacter, c.ID(), domain.RelCharacter, 0, map[string]any{
			"name": c.Str("name"),
			"role": ch.Str("role"),
		})
		for _, va := range ch.Slice("voice_actors") {
			p := va.Child("person")
			if p == nil {
				continue
			}
			add(cat.TypePerson, p.ID(), domain.RelVoice, 0, map[string]any{
				"name":     p.Str("name"),
				"language": va.Str("language"),
			})
		}
	}

	for _, st := range subs.Staff {
		p := st.Child("person")
		if p == nil {
			continue
		}
		add(cat.TypePerson, p.ID(), domain.RelStaff, 0, map[string]any{
			"name":      p.Str("name"),
			"positions": st["positions"],
		})
	}

	for _, n := range subs.News {
		id := n.ID()
		if id == 0 {
			id = syntheticNewsID(n)
		}
		add(cat.TypeNews, id, domain.RelNews, int(n.Int("comments")), map[string]any{
			"title": n.Str("title"),
			"url":   n.Str("url"),
		})
	}

	return out
}

func appendReviews(out []domain.Edge, fromType string, fromID int64, payload upstream.Document) []domain.Edge {
	for _, rev := range payload.Slice("reviews") {
		id := rev.ID()
		if id == 0 {
			continue
		}
		out = append(out, domain.Edge{
			FromType:     fromType,
			FromID:       fromID,
			ToType:       "review",
			ToID:         id,
			RelationType: domain.RelReview,
			Weight:       int(rev.Int("score")),
			Meta:         map[string]any{"user": rev.Dig("user").Str("username")},
		})
	}
	return out
}

// genreSections gathers the genre-flavored payload arrays
func genreSections(payload upstream.Document) []upstream.Document {
	var out []upstream.Document
	for _, key := range []string{"genres", "explicit_genres", "themes", "demographics"} {
		out = append(out, payload.Slice(key)...)
	}
	return out
}

// syntheticNewsID derives a stable id for news items upstream serves
// without one, hashing the URL when present and the title otherwise.
// Masked to 63 bits so it fits a signed bigint
func syntheticNewsID(n upstream.Document) int64 {
	key := n.Str("url")
	if key == "" {
		key = n.Str("title")
	}
	if key == "" {
		return 0
	}
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64() & (1<<63 - 1))
}
