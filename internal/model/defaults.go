package model

import "time"

// Defaults shared by the agent and the watch binaries: ping every 30s,
// interface counters every 10s, one report per minute.
const (
	DefaultInterface       = "eth0"
	DefaultTarget          = "8.8.8.8"
	DefaultPingInterval    = 30 * time.Second
	DefaultPingCount       = 5
	DefaultPingTimeout     = time.Second
	DefaultNetworkInterval = 10 * time.Second
	DefaultReportInterval  = 60 * time.Second
	DefaultRetryAttempts   = 3
	DefaultSendTimeout     = time.Second
	DefaultMaxBackoff      = 30 * time.Second
	DefaultCollectorIP     = "127.0.0.1"
	DefaultCollectorPort   = 8080
	DefaultStatusInterval  = 30 * time.Second

	// MaxDatagramSize is the largest UDP payload over IPv4.
	MaxDatagramSize = 65507
)
