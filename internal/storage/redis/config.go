package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// KeyPrefix namespaces every key written by linkguard
	KeyPrefix string

	// BanRetention expires ban progress this long after its last write.
	// Zero keeps ban progress until it is reset.
	BanRetention time.Duration

	// ActivateRetries bounds optimistic transaction retries on link activation
	ActivateRetries int
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:             "redis://localhost:6379",
		PoolSize:        10,
		MinIdleConns:    2,
		KeyPrefix:       "linkguard",
		BanRetention:    0,
		ActivateRetries: 5,
	}
}
