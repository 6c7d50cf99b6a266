package graphql

import (
	"fmt"

	"github.com/dd0wney/gridcascade/pkg/ranking"
)

// LimitConfig bounds list fields.
type LimitConfig struct {
	DefaultLimit int // used when no limit is given
	MaxLimit     int
	MaxDepth     int // maximum selection depth of a query
}

// DefaultLimitConfig matches the REST candidate endpoint.
func DefaultLimitConfig() *LimitConfig {
	return &LimitConfig{
		DefaultLimit: ranking.DefaultLimit,
		MaxLimit:     ranking.MaxLimit,
		MaxDepth:     DefaultMaxDepth,
	}
}

// ValidateLimitConfig validates the limit configuration
func ValidateLimitConfig(config *LimitConfig) error {
	if config.MaxLimit <= 0 {
		return fmt.Errorf("max limit must be greater than 0, got %d", config.MaxLimit)
	}
	if config.DefaultLimit > config.MaxLimit {
		return fmt.Errorf("default limit (%d) cannot exceed max limit (%d)", config.DefaultLimit, config.MaxLimit)
	}
	if config.DefaultLimit <= 0 {
		return fmt.Errorf("default limit must be greater than 0, got %d", config.DefaultLimit)
	}
	if config.MaxDepth <= 0 {
		return fmt.Errorf("max depth must be greater than 0, got %d", config.MaxDepth)
	}
	return nil
}

// applyLimit maps a requested limit onto config: negative means default,
// zero means empty and anything above the maximum is capped.
func applyLimit(requestedLimit int, config *LimitConfig) int {
	switch {
	case requestedLimit < 0:
		return config.DefaultLimit
	case requestedLimit > config.MaxLimit:
		return config.MaxLimit
	default:
		return requestedLimit
	}
}
