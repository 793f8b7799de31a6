package config

import "time"

// RateLimitConfig describes one Redis token bucket.  Two buckets are
// used: a general one for every /v1 route and a tighter one for booking
// confirmation, keyed per caller.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string // ip, user, ip_user, user_route or ip_user_route
    Prefix         string
}

// LoadRateLimitConfig reads the general RATE_LIMIT_* bucket.
func LoadRateLimitConfig() RateLimitConfig {
    return normalize(RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
    })
}

// LoadConfirmRateLimitConfig reads the CONFIRM_RATE_LIMIT_* bucket that
// protects the verification service from token spraying.
func LoadConfirmRateLimitConfig() RateLimitConfig {
    return normalize(RateLimitConfig{
        Enabled:        envBool("CONFIRM_RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("CONFIRM_RATE_LIMIT_CAPACITY", 5),
        RefillTokens:   1,
        RefillInterval: envDur("CONFIRM_RATE_LIMIT_REFILL_INTERVAL", 10*time.Second),
        TTL:            envDur("CONFIRM_RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    "user",
        Prefix:         envStr("CONFIRM_RATE_LIMIT_PREFIX", "rl:confirm"),
    })
}

func normalize(cfg RateLimitConfig) RateLimitConfig {
    if cfg.Capacity < 1 {
        cfg.Capacity = 1
    }
    if cfg.RefillTokens < 1 {
        cfg.RefillTokens = 1
    }
    if cfg.RefillInterval <= 0 {
        cfg.RefillInterval = time.Second
    }
    if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
        cfg.TTL = minTTL
    }
    return cfg
}
