// Package domain defines the seed dispatcher port
package domain

import "context"

// SeederPort sweeps one named upstream listing and converts its entries
// into entity-sync requests
type SeederPort interface {
	SeedListing(ctx context.Context, listing string) error
}
