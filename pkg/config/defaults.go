// Package config provides configuration types and defaults for convgate services
// Centralized management of all constants and default values

package config

import (
	"os"
	"path/filepath"
	"time"
)

// ===== Paths =====

// DefaultDataDir returns the default data directory
func DefaultDataDir() string {
	if d := os.Getenv("CONVGATE_DATA_DIR"); d != "" {
		return d
	}
	// Default to <binary-dir>/data
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "data")
}

// DefaultDBPath returns the default conversation database path
func DefaultDBPath() string {
	if p := os.Getenv("CONVGATE_DB_PATH"); p != "" {
		return p
	}
	return filepath.Join(DefaultDataDir(), "convgate.db")
}

// DefaultEndpointsPath returns the default endpoints.yaml path
func DefaultEndpointsPath() string {
	if p := os.Getenv("CONVGATE_ENDPOINTS"); p != "" {
		return p
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "config", "endpoints.yaml")
}

// ===== Completion =====

const (
	// DefaultModel is used when an endpoint does not name one
	DefaultModel = "gpt-4o"

	// DefaultBaseURL is the OpenAI-compatible completion endpoint
	DefaultBaseURL = "https://api.openai.com/v1"

	// MaxToolPasses bounds the tool execution loop
	MaxToolPasses = 5

	// HistoryTokenBudget caps the token estimate of outbound history.
	// Older messages are dropped (system prompt kept) once exceeded.
	HistoryTokenBudget = 8192
)

// ===== Tool response cache =====

const (
	// ToolCacheTTL is how long tool outputs stay retrievable
	ToolCacheTTL = 24 * time.Hour

	// ToolCacheSweepInterval is how often stale entries are swept
	ToolCacheSweepInterval = 60 * time.Second
)

// ===== Delivery delay =====
// The humanizing delay keeps multi-kilobyte replies from landing instantly.
// msPerChar assumes ~300 words/minute at 5 chars per word.

const (
	DeliveryBaseDelay   = 300 * time.Millisecond
	DeliveryMsPerChar   = 40 * time.Millisecond
	DeliveryTypingCap   = 6700 * time.Millisecond
	DeliveryTotalCap    = 2000 * time.Millisecond
	DeliveryJitterRange = 300 * time.Millisecond
)

// ===== RTM =====

const (
	// RTMReconnectMin/Max bound the reconnect backoff
	RTMReconnectMin = time.Second
	RTMReconnectMax = 30 * time.Second

	// RTMWriteTimeout bounds a single publish
	RTMWriteTimeout = 10 * time.Second
)

// DefaultRTMURL returns the default RTM broker URL
func DefaultRTMURL() string {
	if u := os.Getenv("CONVGATE_RTM_URL"); u != "" {
		return u
	}
	return "ws://127.0.0.1:55010/rtm"
}
