package router

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

func HttpRealIP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		xForwardedFor := c.Get(http.CanonicalHeaderKey("X-Forwarded-For"))
		if xForwardedFor != "" {
			parts := strings.Split(xForwardedFor, ",")
			c.Locals("remote_ip", strings.TrimSpace(parts[0]))
		} else if xRealIP := c.Get(http.CanonicalHeaderKey("X-Real-IP")); xRealIP != "" {
			c.Locals("remote_ip", strings.TrimSpace(xRealIP))
		}
		return c.Next()
	}
}

// HttpRequestID tags every request with an id echoed in X-Request-ID and logs.
func HttpRequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		Generator:  uuid.NewString,
		ContextKey: "request_id",
	})
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle is a token bucket per caller, keyed by API key or client IP.
type Throttle struct {
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	visitors map[string]*visitor
}

func NewThrottle(rps float64, burst int) *Throttle {
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
	}
}

func (t *Throttle) allow(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(t.rps, t.burst)}
		// header values alias the request buffer
		t.visitors[utils.CopyString(key)] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Prune forgets callers not seen for idle and returns how many remain.
func (t *Throttle) Prune(idle time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	for key, v := range t.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(t.visitors, key)
		}
	}
	return len(t.visitors)
}

// Handler rejects callers exceeding their bucket with 429. A non-positive
// rate disables throttling.
func (t *Throttle) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if t.rps <= 0 {
			return c.Next()
		}

		key := c.Get("X-API-Key")
		if key == "" {
			key = c.IP()
			if ip, ok := c.Locals("remote_ip").(string); ok && ip != "" {
				key = ip
			}
		}
		if !t.allow(key, time.Now()) {
			c.Set(fiber.HeaderRetryAfter, "1")
			return ResponseTooManyRequests(c, "too many requests, slow down")
		}
		return c.Next()
	}
}
