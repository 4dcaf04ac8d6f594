package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/libgen-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained requests per second per client.
	defaultRateLimit = 10
	// defaultRateBurst lets a client queue a few searches around a generation.
	defaultRateBurst = 20
	// defaultLimiterIdle is how long a client bucket survives without traffic.
	defaultLimiterIdle = 5 * time.Minute
)

// limiterConfig tunes a clientLimiter.
type limiterConfig struct {
	// RPS is the sustained request rate per client.
	RPS float64
	// Burst is the bucket size per client.
	Burst int
	// Idle is how long an unused bucket is kept. Zero means defaultLimiterIdle.
	Idle time.Duration
	// OnReject, when set, is called for every request answered with 429.
	OnReject func(r *http.Request)
}

// bucket is one client's token bucket and when it was last used.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter throttles generation and context routes per client address.
// Generation streams are expensive, so a single client cannot monopolise the
// model backend.
type clientLimiter struct {
	cfg limiterConfig
	log *slog.Logger

	mu      sync.Mutex
	buckets map[string]*bucket
}

// newRateLimiter builds a clientLimiter and starts its sweeper. The returned
// func stops the sweeper.
func newRateLimiter(cfg limiterConfig, log *slog.Logger) (*clientLimiter, func()) {
	if cfg.Idle <= 0 {
		cfg.Idle = defaultLimiterIdle
	}
	cl := &clientLimiter{cfg: cfg, log: log, buckets: make(map[string]*bucket)}

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(cfg.Idle / 5)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-t.C:
				cl.sweep(now)
			}
		}
	}()

	var once sync.Once
	return cl, func() { once.Do(func() { close(done) }) }
}

// take reports whether the client may proceed now. When it may not, wait is
// how long until a token is available.
func (cl *clientLimiter) take(client string, now time.Time) (ok bool, wait time.Duration) {
	cl.mu.Lock()
	b, found := cl.buckets[client]
	if !found {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(cl.cfg.RPS), cl.cfg.Burst)}
		cl.buckets[client] = b
	}
	b.lastSeen = now
	cl.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

// sweep drops buckets idle since before now minus the idle window.
func (cl *clientLimiter) sweep(now time.Time) {
	cutoff := now.Add(-cl.cfg.Idle)
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for client, b := range cl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(cl.buckets, client)
		}
	}
}

// tracked returns the number of client buckets held.
func (cl *clientLimiter) tracked() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.buckets)
}

// middleware answers 429 with a Retry-After in whole seconds when the client
// is over its rate.
func (cl *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		ok, wait := cl.take(client, time.Now())
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		retry := retryAfterSeconds(wait)
		logging.FromContext(r.Context()).Warn("server: rate limited",
			slog.String("client", client),
			slog.Int("retry_after_s", retry),
		)
		if cl.cfg.OnReject != nil {
			cl.cfg.OnReject(r)
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeJSONError(w, "rate limit exceeded", http.StatusTooManyRequests)
	})
}

// retryAfterSeconds rounds d up to whole seconds, at least 1.
func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}

// clientIP returns the host part of RemoteAddr. Forwarding headers are not
// trusted; put a proxy that rewrites RemoteAddr in front if needed.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
