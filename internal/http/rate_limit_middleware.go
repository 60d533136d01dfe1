package httpx

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const rateLimiterCleanupInterval = 5 * time.Minute

// RateLimiter counts hits per key in fixed windows.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	count     int
	windowEnd time.Time
}

// rateRule is one named budget. The route doubles as the limiter key namespace
// and the metric label.
type rateRule struct {
	route  string
	limit  int
	window time.Duration
}

var (
	ruleRequestIP    = rateRule{route: "request-creation", limit: 5, window: time.Minute}
	ruleRequestEmail = rateRule{route: "request-creation-email", limit: 3, window: 15 * time.Minute}
	ruleConfirm      = rateRule{route: "confirm-creation", limit: 20, window: time.Minute}
	ruleGeocode      = rateRule{route: "reverse-geocode", limit: 60, window: time.Minute}
	ruleAdmin        = rateRule{route: "admin", limit: 30, window: time.Minute}
)

// windowCounter is the go-cache value; the cache entry expires with the window.
type windowCounter struct {
	count     int
	windowEnd time.Time
}

type memoryRateLimiter struct {
	mu    sync.Mutex
	cache *gocache.Cache
	now   func() time.Time
}

// NewMemoryRateLimiter returns a fixed-window limiter local to this process.
func NewMemoryRateLimiter() RateLimiter {
	return &memoryRateLimiter{
		cache: gocache.New(time.Minute, rateLimiterCleanupInterval),
		now:   time.Now,
	}
}

func (rl *memoryRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	counter := windowCounter{windowEnd: now.Add(window)}
	if v, ok := rl.cache.Get(key); ok {
		if prev := v.(windowCounter); now.Before(prev.windowEnd) {
			counter = prev
		}
	}
	if counter.count >= limit {
		return rateDecision{allowed: false, count: counter.count, windowEnd: counter.windowEnd}
	}
	counter.count++
	rl.cache.Set(key, counter, counter.windowEnd.Sub(now))
	return rateDecision{allowed: true, count: counter.count, windowEnd: counter.windowEnd}
}

// Close drops all counters. go-cache stops its janitor once the cache is collected.
func (rl *memoryRateLimiter) Close() {
	rl.cache.Flush()
}

// limited wraps next with rule, keyed by keyFn or the client address when keyFn yields nothing.
func (r *Router) limited(rule rateRule, keyFn func(*http.Request) string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		key := ""
		if keyFn != nil {
			key = keyFn(req)
		}
		if key == "" {
			key = r.ipKey(req)
		}
		if !r.allow(w, rule, key) {
			return
		}
		next(w, req)
	}
}

// allow charges one hit against rule for key and writes the 429 itself when the budget is spent.
func (r *Router) allow(w http.ResponseWriter, rule rateRule, key string) bool {
	if rule.limit <= 0 || r.limiter == nil {
		return true
	}
	decision := r.limiter.Allow(rule.route+"|"+key, rule.limit, rule.window)
	r.applyRateHeaders(w, rule.limit, decision)
	if decision.allowed {
		return true
	}
	kind, _, _ := strings.Cut(key, ":")
	r.recordRateLimitHit(rule.route, kind)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	return false
}

func (r *Router) ipKey(req *http.Request) string {
	ip := r.clientIP(req)
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// emailKey buckets intake requests by the address the confirmation mail goes to.
func emailKey(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	return "email:" + email
}

// clientIP is the TCP peer unless the peer is a trusted proxy, in which case
// X-Forwarded-For is walked right to left past every trusted hop.
func (r *Router) clientIP(req *http.Request) string {
	peer := remoteHost(req.RemoteAddr)
	if len(r.trustedProxies) == 0 || !r.trusted(peer) {
		return peer
	}
	hops := strings.Split(req.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			break
		}
		if !r.trusted(hop) {
			return hop
		}
	}
	return peer
}

func (r *Router) trusted(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range r.trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// ParseTrustedProxies accepts CIDRs or bare addresses.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
