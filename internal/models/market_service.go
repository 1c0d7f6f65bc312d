package models

import "context"

// MarketService fetches token pair data for a chain. Failures surface as
// *GatewayError so callers can distinguish timeouts from malformed payloads.
type MarketService interface {
	// TokenPairs returns the current snapshots for the configured chain.
	TokenPairs(ctx context.Context, chainID string) ([]*TokenSnapshot, error)
	// Search looks up pairs matching a free-text query on the chain.
	Search(ctx context.Context, chainID, query string) ([]*TokenSnapshot, error)
}
