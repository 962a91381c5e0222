// Package ratelimit limits requests per client and endpoint with token buckets.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonathan/resume-screener/internal/config"
)

// EndpointConfig overrides the default limit for one route.
type EndpointConfig struct {
	Path   string        // exact path, or a prefix when it ends in "/"
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // requests per Window; 0 means unlimited
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	DefaultBurst    int
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// FromConfig builds the limiter configuration for the HTTP server. Writes
// are limited per minute; the webhook and health routes are unlimited.
func FromConfig(cfg config.ServerConfig) Config {
	if cfg.RateLimit <= 0 {
		return Config{}
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = cfg.RateLimit
	}
	return Config{
		Enabled:         true,
		DefaultLimit:    cfg.RateLimit * 10,
		DefaultWindow:   time.Minute,
		DefaultBurst:    burst * 10,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		EndpointConfigs: DefaultEndpointConfigs(cfg.RateLimit, burst),
	}
}

// DefaultEndpointConfigs returns the per-route limits for writes.
func DefaultEndpointConfigs(perMinute, burst int) []EndpointConfig {
	bulk := max(perMinute/10, 1)
	return []EndpointConfig{
		// the mail provider retries on its own schedule
		{Path: "/webhooks/inbound-email", Method: "POST", Limit: 0},
		{Path: "/health", Method: "GET", Limit: 0},

		{Path: "/uploads", Method: "POST", Limit: perMinute, Window: time.Minute, Burst: burst},
		{Path: "/screenings/bulk", Method: "POST", Limit: bulk, Window: time.Minute, Burst: max(burst/10, 1)},
		{Path: "/applications/", Method: "POST", Limit: perMinute, Window: time.Minute, Burst: burst},
	}
}

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter manages rate limiting for multiple clients.
type Limiter struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(cfg Config) *Limiter {
	l := &Limiter{
		config:  cfg,
		now:     time.Now,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go l.cleanup(cfg.CleanupInterval)
	}
	return l
}

// Allow reports whether a request from clientID to the endpoint may proceed
// and consumes a token if so.
func (l *Limiter) Allow(clientID string, endpoint string, method string) Info {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return Info{Allowed: true}
	}

	ec := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	key := clientID + ":" + endpoint + ":" + method
	if ec == nil {
		ec = &EndpointConfig{
			Limit:  l.config.DefaultLimit,
			Window: l.config.DefaultWindow,
			Burst:  l.config.DefaultBurst,
		}
		// all unmatched routes of a client share one bucket
		key = clientID + ":*"
	} else if ec.Path != endpoint {
		key = clientID + ":" + ec.Path + ":" + method
	}
	if ec.Limit <= 0 || ec.Window <= 0 {
		return Info{Allowed: true}
	}

	now := l.now()
	lim := l.limiter(key, ec, now)

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return Info{Limit: ec.Limit}
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Info{Limit: ec.Limit, RetryAfter: delay}
	}
	return Info{
		Allowed:   true,
		Limit:     ec.Limit,
		Remaining: max(int(lim.TokensAt(now)), 0),
	}
}

func (l *Limiter) limiter(key string, ec *EndpointConfig, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		burst := ec.Burst
		if burst <= 0 {
			burst = ec.Limit
		}
		every := rate.Every(ec.Window / time.Duration(ec.Limit))
		e = &entry{limiter: rate.NewLimiter(every, burst)}
		l.entries[key] = e
	}
	e.lastAccess = now
	return e.limiter
}

func (l *Limiter) cleanup(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.evictIdle()
		case <-l.stop:
			return
		}
	}
}

// evictIdle drops buckets not used within IdleTTL
func (l *Limiter) evictIdle() {
	ttl := l.config.IdleTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	cutoff := l.now().Add(-ttl)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if e.lastAccess.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// MatchEndpoint returns the config for path and method, or nil. An exact
// path wins over a prefix; among prefixes the longest wins.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method {
			continue
		}
		if c.Path == path {
			return c
		}
		if strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) &&
			(best == nil || len(c.Path) > len(best.Path)) {
			best = c
		}
	}
	return best
}
