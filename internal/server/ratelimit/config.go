package ratelimit

import (
	"strings"
	"time"
)

// EndpointConfig overrides the default limit for one endpoint.
type EndpointConfig struct {
	Path              string // exact path, or a prefix when it ends with "/"
	Method            string
	RequestsPerSecond float64
	Burst             int
	Unlimited         bool
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
	IdleTTL           time.Duration
	Whitelist         map[string]bool
	Blacklist         map[string]bool
	EndpointConfigs   []EndpointConfig
}

// DefaultConfig returns a permissive limit suitable for a read-only API.
func DefaultConfig() *Config {
	return NewConfig(10, 20)
}

// NewConfig builds a Config with the given default per-client rate.
// A non-positive rps disables limiting.
func NewConfig(rps float64, burst int) *Config {
	return &Config{
		Enabled:           rps > 0,
		RequestsPerSecond: rps,
		Burst:             burst,
		CleanupInterval:   5 * time.Minute,
		IdleTTL:           time.Hour,
		Whitelist:         make(map[string]bool),
		Blacklist:         make(map[string]bool),
		EndpointConfigs:   DefaultEndpointConfigs(rps, burst),
	}
}

// DefaultEndpointConfigs returns the endpoint-specific overrides. Full
// projections scan the whole posting table, so they get a tighter budget.
func DefaultEndpointConfigs(rps float64, burst int) []EndpointConfig {
	return []EndpointConfig{
		{Path: "/postings/", Method: "GET", RequestsPerSecond: rps / 4, Burst: max(burst/4, 1)},
	}
}

// ParseIPList parses a comma-separated list of IP addresses into a set.
func ParseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			result[ip] = true
		}
	}
	return result
}
