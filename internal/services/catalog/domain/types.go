// Package domain defines the catalog service types and ports
package domain

import "time"

// Entity type names, matching the upstream resource families
const (
	TypeAnime     = "anime"
	TypeManga     = "manga"
	TypeCharacter = "character"
	TypePerson    = "person"
	TypeProducer  = "producer"
	TypeMagazine  = "magazine"
	TypeClub      = "club"
	TypeGenre     = "genre"
	TypeWatch     = "watch"
	TypeNews      = "news"
)

// GraphBearing reports whether entityType carries relation sections worth syncing
func GraphBearing(entityType string) bool {
	return entityType == TypeAnime || entityType == TypeManga
}

// Ref identifies one catalog entity
type Ref struct {
	EntityType string
	EntityID   int64
}

// Link is one external link extracted from the payload
type Link struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Fields are the derived indexable columns recomputed on every upsert
// every member defaults safely when the upstream payload omits it
type Fields struct {
	Title           string
	TitleNormalized string
	Score           *float64
	Rank            *int
	Popularity      *int
	Members         *int
	Favorites       *int
	Year            *int
	Season          string
	Status          string
	ImageURL        string
	ThumbnailURL    string
	ExternalLinks   []Link
}

// Entity is one persisted catalog row
type Entity struct {
	EntityType    string
	EntityID      int64
	Fields        Fields
	Payload       []byte
	Extended      []byte
	FetchFailures int
	LastError     *string
	NextRefreshAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UpsertInput carries one fetched snapshot into storage
// Payload and Fields replace wholesale; Extended merges additively by key
type UpsertInput struct {
	EntityType    string
	EntityID      int64
	Payload       []byte
	Extended      []byte
	Fields        Fields
	NextRefreshAt *time.Time
}
