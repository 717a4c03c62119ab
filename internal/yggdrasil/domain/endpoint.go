package domain

import "time"

// FallbackEndpoint describes one externally operated, protocol-compatible
// service consulted when local data cannot answer a lookup. Endpoints are
// ordered ascending by Priority; ties break on configuration order.
type FallbackEndpoint struct {
	Name        string
	Priority    int
	SessionURL  string // sessionserver base, e.g. https://sessionserver.example.com
	AccountURL  string // authserver/api base for name lookups
	ServicesURL string // services API base
	Timeout     time.Duration
	CacheTTL    time.Duration
	SkinDomains []string
}

// FallbackStrategy selects how the orchestrator walks the endpoint list.
type FallbackStrategy string

const (
	StrategySerial   FallbackStrategy = "serial"
	StrategyParallel FallbackStrategy = "parallel"
)
