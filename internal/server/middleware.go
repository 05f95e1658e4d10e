package server

import (
	crand "crypto/rand"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	mylog "labmatch/internal/log"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	nbytes int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.nbytes += n
	return n, err
}

// newRequestID returns a short, unique request identifier.
func newRequestID() string {
	var b [12]byte
	if _, err := crand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 24)
	for i, v := range b {
		out[i*2] = hexdigits[v>>4]
		out[i*2+1] = hexdigits[v&0x0f]
	}
	return string(out)
}

// clientIP extracts the best-effort client IP from headers or RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		return rip
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i > 0 {
		return host[:i]
	}
	return host
}

// rateLimiter provides token-bucket rate limiting by key.
type rateLimiter struct {
	mu      sync.Mutex
	rps     float64
	buckets map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rps float64) *rateLimiter {
	return &rateLimiter{rps: rps, buckets: make(map[string]*bucket)}
}

// allow reports whether a request with key is allowed now and, if not, the
// seconds until the next token.
func (rl *rateLimiter) allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.rps <= 0 {
		return true, 0
	}
	b := rl.buckets[key]
	now := time.Now()
	if b == nil {
		b = &bucket{tokens: rl.rps, last: now}
		rl.buckets[key] = b
	}
	elapsed := now.Sub(b.last).Seconds()
	b.tokens = minFloat(b.tokens+elapsed*rl.rps, rl.rps)
	b.last = now
	if b.tokens >= 1 {
		b.tokens -= 1
		return true, 0
	}
	need := 1 - b.tokens
	wait := int(need/rl.rps + 0.999)
	if wait < 1 {
		wait = 1
	}
	return false, wait
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// rateLimitMiddleware enforces RPS limits across global, path and client
// scopes. Unset limits disable the corresponding scope.
func rateLimitMiddleware(next http.Handler) http.Handler {
	var once sync.Once
	var gLimiter, pLimiter, iLimiter *rateLimiter
	setup := func() {
		base := parseFloatEnv("LABMATCH_RATE_LIMIT_RPS")
		g := parseFloatEnv("LABMATCH_RATE_LIMIT_GLOBAL_RPS")
		p := parseFloatEnv("LABMATCH_RATE_LIMIT_PATH_RPS")
		i := parseFloatEnv("LABMATCH_RATE_LIMIT_IP_RPS")
		if g == -1 {
			g = base
		}
		if p == -1 {
			p = base
		}
		if i == -1 {
			i = base
		}
		gLimiter = newRateLimiter(g)
		pLimiter = newRateLimiter(p)
		iLimiter = newRateLimiter(i)
	}
	deny := func(w http.ResponseWriter, wait int) {
		w.Header().Set("Retry-After", strconv.Itoa(wait))
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limit exceeded"))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(setup)
		if gLimiter.rps <= 0 && pLimiter.rps <= 0 && iLimiter.rps <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		if gLimiter.rps > 0 {
			if ok, wait := gLimiter.allow("global"); !ok {
				deny(w, wait)
				return
			}
		}
		if pLimiter.rps > 0 {
			if ok, wait := pLimiter.allow("path:" + normalizePath(r.URL.Path)); !ok {
				deny(w, wait)
				return
			}
		}
		if iLimiter.rps > 0 {
			if ok, wait := iLimiter.allow("ip:" + clientIP(r)); !ok {
				deny(w, wait)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func parseFloatEnv(key string) float64 {
	v := os.Getenv(key)
	if v == "" {
		return -1
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
		return f
	}
	return -1
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if reqID == "" {
			reqID = newRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		lg := mylog.New()
		lg.Info("http.req",
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"remoteIP", clientIP(r),
			"status", rec.status,
			"duration_ms", int(dur/time.Millisecond),
			"bytes", rec.nbytes,
		)
		if shouldSample() {
			path := normalizePath(r.URL.Path)
			mkey := r.Method + "|" + path + "|" + strconv.Itoa(rec.status)
			dkey := r.Method + "|" + path
			metrics.mu.Lock()
			metrics.reqTotal[mkey]++
			metrics.durSum[dkey] += dur.Seconds()
			metrics.durCount[dkey]++
			metrics.mu.Unlock()
		}
	})
}

// normalizePath collapses variable path segments for metrics labels.
func normalizePath(p string) string {
	for _, prefix := range []string{
		"/opportunities/", "/embeddings/users/", "/embeddings/opportunities/",
		"/outreach/", "/matches/",
	} {
		if strings.HasPrefix(p, prefix) {
			rest := p[len(prefix):]
			if rest != "" && !strings.Contains(rest, "/") &&
				rest != "search" && rest != "sweep" && rest != "generate" && rest != "stats" {
				return prefix + ":id"
			}
		}
	}
	return p
}

// lightweight in-process metrics collector
type metricsCollector struct {
	mu sync.Mutex
	// counters keyed by method|path|status
	reqTotal map[string]int
	// duration sum/count keyed by method|path
	durSum   map[string]float64
	durCount map[string]int
	// domain counters
	searches        int
	searchFallbacks int
	embedsGenerated int
	outreachDrafts  int
}

func newMetrics() *metricsCollector {
	return &metricsCollector{
		reqTotal: make(map[string]int),
		durSum:   make(map[string]float64),
		durCount: make(map[string]int),
	}
}

var metrics = newMetrics()

// sampling for metrics recording (0..1)
var (
	metricsSampleRate = 1.0
	samplerOnce       sync.Once
)

func shouldSample() bool {
	samplerOnce.Do(func() {
		if v := os.Getenv("LABMATCH_METRICS_SAMPLE_RATE"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
				metricsSampleRate = f
			}
		}
	})
	if metricsSampleRate >= 1 {
		return true
	}
	return rand.Float64() < metricsSampleRate
}
