package model

import "time"

// UsageKind names a metered feature.
type UsageKind string

const (
	UsageResearch    UsageKind = "research"
	UsageNegotiation UsageKind = "negotiation"
)

// UsageCounter is a versioned per-user counter. Version increases on every
// successful increment and is the compare-and-swap token.
type UsageCounter struct {
	UserID     string     `json:"user_id"`
	Kind       UsageKind  `json:"kind"`
	UsageCount int        `json:"usage_count"`
	Version    int        `json:"version"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}
