// Package domain defines the scheduler port
package domain

import "context"

// TickerPort drives the periodic enqueue loop until the context ends
type TickerPort interface {
	Run(ctx context.Context) error
}
