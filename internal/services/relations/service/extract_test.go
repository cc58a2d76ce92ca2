package service

import (
	"testing"

	"animabook/internal/adapters/upstream"
	"animabook/internal/services/relations/domain"
)

func edgesByType(edges []domain.Edge, rel string) []domain.Edge {
	var out []domain.Edge
	for _, e := range edges {
		if e.RelationType == rel {
			out = append(out, e)
		}
	}
	return out
}

func TestExtractRelatedAndRecommendations(t *testing.T) {
	payload := upstream.Document{
		"relations": []any{
			map[string]any{
				"relation": "Sequel",
				"entry": []any{
					map[string]any{"mal_id": float64(30), "type": "anime", "name": "Season 2"},
				},
			},
			map[string]any{
				"relation": "Adaptation",
				"entry": []any{
					map[string]any{"mal_id": float64(11), "type": "manga", "name": "The Manga"},
				},
			},
		},
		"recommendations": []any{
			map[string]any{
				"entry": map[string]any{"mal_id": float64(2), "title": "Also Good"},
				"votes": float64(10),
			},
		},
	}

	edges := extractEdges("anime", 1, payload, subDocs{})

	related := edgesByType(edges, domain.RelRelated)
	if len(related) != 2 {
		t.Fatalf("related = %+v", related)
	}
	if related[0].ToType != "anime" || related[0].ToID != 30 || related[0].Meta["relation"] != "Sequel" {
		t.Fatalf("sequel edge = %+v", related[0])
	}
	if related[1].ToType != "manga" || related[1].ToID != 11 {
		t.Fatalf("adaptation edge = %+v", related[1])
	}

	recs := edgesByType(edges, domain.RelRecommendation)
	if len(recs) != 1 || recs[0].Weight != 10 {
		t.Fatalf("recommendation = %+v", recs)
	}
	// recommendation entries without a type default to the parent family
	if recs[0].ToType != "anime" || recs[0].ToID != 2 {
		t.Fatalf("recommendation target = %+v", recs[0])
	}
}

func TestExtractCastStaffAndGenres(t *testing.T) {
	payload := upstream.Document{
		"genres": []any{map[string]any{"mal_id": float64(1), "name": "Action"}},
		"themes": []any{map[string]any{"mal_id": float64(50), "name": "Space"}},
	}
	subs := subDocs{
		Characters: []upstream.Document{
			{
				"character": map[string]any{"mal_id": float64(100), "name": "Spike"},
				"role":      "Main",
				"voice_actors": []any{
					map[string]any{
						"person":   map[string]any{"mal_id": float64(200), "name": "Yamadera"},
						"language": "Japanese",
					},
				},
			},
			{"role": "broken, no character object"},
		},
		Staff: []upstream.Document{
			{"person": map[string]any{"mal_id": float64(300), "name": "Watanabe"}, "positions": []any{"Director"}},
		},
	}

	edges := extractEdges("anime", 1, payload, subs)

	if got := edgesByType(edges, domain.RelGenre); len(got) != 2 || got[1].ToID != 50 {
		t.Fatalf("genres = %+v", got)
	}
	chars := edgesByType(edges, domain.RelCharacter)
	if len(chars) != 1 || chars[0].ToType != "character" || chars[0].ToID != 100 || chars[0].Meta["role"] != "Main" {
		t.Fatalf("characters = %+v", chars)
	}
	voices := edgesByType(edges, domain.RelVoice)
	if len(voices) != 1 || voices[0].ToType != "person" || voices[0].ToID != 200 {
		t.Fatalf("voices = %+v", voices)
	}
	staff := edgesByType(edges, domain.RelStaff)
	if len(staff) != 1 || staff[0].Weight != 0 || staff[0].ToID != 300 {
		t.Fatalf("staff = %+v", staff)
	}
}

func TestExtractNewsSyntheticIDs(t *testing.T) {
	subs := subDocs{
		News: []upstream.Document{
			{"mal_id": float64(77), "title": "Has an id", "comments": float64(3)},
			{"url": "https://news/x", "title": "No id", "comments": float64(5)},
			{"title": "Only a title"},
			{"comments": float64(9)}, // nothing stable to hash, skipped
		},
	}

	edges := edgesByType(extractEdges("anime", 1, upstream.Document{}, subs), domain.RelNews)
	if len(edges) != 3 {
		t.Fatalf("news = %+v", edges)
	}
	if edges[0].ToID != 77 || edges[0].Weight != 3 {
		t.Fatalf("numeric id edge = %+v", edges[0])
	}
	if edges[1].ToID <= 0 || edges[2].ToID <= 0 {
		t.Fatalf("synthetic ids must be positive: %+v", edges[1:])
	}

	// same url hashes to the same id across runs
	again := edgesByType(extractEdges("anime", 1, upstream.Document{}, subs), domain.RelNews)
	if again[1].ToID != edges[1].ToID {
		t.Fatalf("synthetic id not stable: %d vs %d", again[1].ToID, edges[1].ToID)
	}
	// url wins over title when both are present
	withBoth := subDocs{News: []upstream.Document{{"url": "https://news/x", "title": "Different title"}}}
	other := edgesByType(extractEdges("anime", 1, upstream.Document{}, withBoth), domain.RelNews)
	if other[0].ToID != edges[1].ToID {
		t.Fatalf("url-keyed hash must ignore the title")
	}
}

func TestExtractReviews(t *testing.T) {
	payload := upstream.Document{
		"reviews": []any{
			map[string]any{
				"mal_id": float64(900),
				"score":  float64(8),
				"user":   map[string]any{"username": "alice"},
			},
			map[string]any{"score": float64(4)}, // no id, skipped
		},
	}
	revs := edgesByType(extractEdges("anime", 1, payload, subDocs{}), domain.RelReview)
	if len(revs) != 1 || revs[0].Weight != 8 || revs[0].Meta["user"] != "alice" {
		t.Fatalf("reviews = %+v", revs)
	}
}

func TestSyncableTargetAllowList(t *testing.T) {
	for _, ok := range []string{"anime", "manga", "character", "person", "producer", "magazine"} {
		if !domain.SyncableTarget(ok) {
			t.Fatalf("%s must fan out", ok)
		}
	}
	for _, no := range []string{"news", "review", "genre", "club", ""} {
		if domain.SyncableTarget(no) {
			t.Fatalf("%s must not fan out", no)
		}
	}
}
