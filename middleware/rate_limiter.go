// middleware/rate_limiter.go
package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/shopsy-store/shopsy_backend/models"
)

// RouteClass names a group of endpoints that share a throttle budget.
type RouteClass string

const (
	ClassLogin        RouteClass = "login"
	ClassRegister     RouteClass = "register"
	ClassOTPVerify    RouteClass = "otp_verify"
	ClassOTPResend    RouteClass = "otp_resend"
	ClassResetRequest RouteClass = "reset_request"
	ClassResetResend  RouteClass = "reset_resend"
)

type routePolicy struct {
	Limit  int
	Window time.Duration
}

// routePolicies caps requests per source IP per window. Registration and
// the resend classes are tightest because each request costs an outbound
// email or SMS.
var routePolicies = map[RouteClass]routePolicy{
	ClassLogin:        {Limit: 10, Window: 10 * time.Minute},
	ClassRegister:     {Limit: 5, Window: time.Hour},
	ClassOTPVerify:    {Limit: 10, Window: 10 * time.Minute},
	ClassOTPResend:    {Limit: 3, Window: 10 * time.Minute},
	ClassResetRequest: {Limit: 3, Window: 15 * time.Minute},
	ClassResetResend:  {Limit: 3, Window: 15 * time.Minute},
}

// RateLimiter throttles by source IP. Per-route budgets are counted in
// Redis so every instance shares one window; a coarse in-process token
// bucket backstops the whole API on top of that.
type RateLimiter struct {
	redis  *redis.Client
	logger *log.Logger

	mu           sync.Mutex
	ips          map[string]*rate.Limiter
	defaultLimit rate.Limit
	defaultBurst int
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	rl := &RateLimiter{
		redis:        redisClient,
		logger:       log.New(os.Stdout, "[RATE] ", log.LstdFlags),
		ips:          make(map[string]*rate.Limiter),
		defaultLimit: rate.Limit(20),
		defaultBurst: 40,
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.ips[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.defaultLimit, rl.defaultBurst)
		rl.ips[ip] = limiter
	}
	return limiter
}

// cleanupLoop drops idle per-IP buckets so the map cannot grow forever.
func (rl *RateLimiter) cleanupLoop() {
	for {
		time.Sleep(10 * time.Minute)
		rl.mu.Lock()
		rl.ips = make(map[string]*rate.Limiter)
		rl.mu.Unlock()
	}
}

// RateLimit is the global in-process backstop applied to every route.
func (rl *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.getLimiter(c.RealIP()).Allow() {
				return c.JSON(http.StatusTooManyRequests, models.Response{
					Success: false,
					Message: "Too many requests. Please slow down.",
				})
			}
			return next(c)
		}
	}
}

// LimitRoute enforces the shared Redis fixed-window budget for one route
// class. The counter key is INCRed and given its window TTL on the first
// hit; once over the limit the remaining TTL becomes the Retry-After.
// An unavailable Redis refuses the request: admitting unmetered traffic
// to endpoints that send OTPs is worse than a brief outage.
func (rl *RateLimiter) LimitRoute(class RouteClass) echo.MiddlewareFunc {
	policy, ok := routePolicies[class]
	if !ok {
		policy = routePolicy{Limit: 10, Window: 10 * time.Minute}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if rl.redis == nil {
				return c.JSON(http.StatusServiceUnavailable, models.Response{
					Success: false,
					Message: "Service temporarily unavailable. Please try again later.",
				})
			}

			ctx := c.Request().Context()
			key := fmt.Sprintf("rl:%s:%s", class, c.RealIP())

			count, err := rl.redis.Incr(ctx, key).Result()
			if err != nil {
				rl.logger.Printf("Redis INCR failed for %s: %v", key, err)
				return c.JSON(http.StatusServiceUnavailable, models.Response{
					Success: false,
					Message: "Service temporarily unavailable. Please try again later.",
				})
			}
			if count == 1 {
				if err := rl.redis.Expire(ctx, key, policy.Window).Err(); err != nil {
					rl.logger.Printf("Redis EXPIRE failed for %s: %v", key, err)
				}
			}

			if count > int64(policy.Limit) {
				retryAfter := rl.retryAfter(ctx, key, policy.Window)
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
				return c.JSON(http.StatusTooManyRequests, models.Response{
					Success: false,
					Message: fmt.Sprintf("Too many requests. Please try again in %s.", formatWait(retryAfter)),
				})
			}

			return next(c)
		}
	}
}

func (rl *RateLimiter) retryAfter(ctx context.Context, key string, window time.Duration) time.Duration {
	ttl, err := rl.redis.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		return window
	}
	return ttl
}

func formatWait(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	minutes := int(d.Round(time.Minute).Minutes())
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
