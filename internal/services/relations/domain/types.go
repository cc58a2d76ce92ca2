// Package domain defines the relation graph types and ports
package domain

// Relation type names on stored edges
const (
	RelRelated        = "related"
	RelRecommendation = "recommendation"
	RelReview         = "review"
	RelNews           = "news"
	RelCharacter      = "character"
	RelVoice          = "voice"
	RelStaff          = "staff"
	RelGenre          = "genre"
)

// syncableTargets is the fan-out allow-list: only these target types get a
// follow-up sync enqueued when discovered on an edge. Everything else is
// stored as an edge endpoint only
var syncableTargets = map[string]bool{
	"anime":     true,
	"manga":     true,
	"character": true,
	"person":    true,
	"producer":  true,
	"magazine":  true,
}

// SyncableTarget reports whether a discovered entity type may fan out
func SyncableTarget(entityType string) bool { return syncableTargets[entityType] }

// Edge is one directed, typed relation between two entities.
// Weight carries the upstream signal strength (votes, score, comments)
// and stays zero for structural edges
type Edge struct {
	FromType     string
	FromID       int64
	ToType       string
	ToID         int64
	RelationType string
	Weight       int
	Meta         map[string]any
}
