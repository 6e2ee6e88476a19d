// Package ginlimit provides rate limiting and quota gating middleware for
// the Gin framework.
package ginlimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	quotaengine "github.com/stackmint/quotaengine"
	"github.com/stackmint/quotaengine/quota"
)

// IdentityFunc resolves the caller's identity, plan, and role from a Gin
// context, typically from values set by the authentication middleware.
type IdentityFunc func(c *gin.Context) (identity string, plan quota.Plan, role quota.Role, err error)

// RateLimiter creates a new Gin middleware handler.
//
// It uses the provided Limiter instance (the core rate-limiting logic) to
// check if a request should be allowed or denied. The behavior of the
// middleware can be customized by passing functional options, such as
// changing how a client is identified (WithKeyFunc) or how rate limit
// rejections are rendered (WithErrorHandler).
//
// Example:
//
//	limiter := registry.For("rl:api", 100, time.Minute)
//	router := gin.Default()
//	router.Use(ginlimit.RateLimiter(limiter))
func RateLimiter(limiter quotaengine.Limiter, options ...quotaengine.Option) gin.HandlerFunc {
	cfg := quotaengine.NewConfig(options...)

	return func(c *gin.Context) {
		key, err := cfg.KeyFunc(c.Request)
		if err != nil {
			cfg.Logger.Errorf("Failed to extract key: %v", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		result, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			cfg.Logger.Errorf("Limiter failed for key '%s': %v", key, err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

		resetTimestamp := time.Now().Add(result.ResetAfter).Unix()
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTimestamp, 10))

		if !result.Allowed {
			cfg.Logger.Debugf(
				"Request denied for key '%s'. Remaining: %d, Limit: %d",
				key, result.Remaining, result.Limit,
			)
			cfg.ErrorHandler(c.Writer, c.Request, quotaengine.ErrExceeded, result)
			c.Abort()
			return
		}

		cfg.Logger.Debugf(
			"Request allowed for key '%s'. Remaining: %d, Limit: %d",
			key, result.Remaining, result.Limit,
		)

		c.Next()
	}
}

// MonthlyQuota creates a middleware that rejects requests whose caller has
// no remaining monthly allowance for the given resource.
//
// The gate only checks. Handlers record consumption after the costly action
// succeeds (Tracker.RecordConsumption), or call a quota.Enforcer and render
// its rejections with AbortWithQuotaError when the cap must be hard.
func MonthlyQuota(tracker *quota.Tracker, res quota.Resource, identify IdentityFunc, onErr quota.OnError) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, plan, role, err := identify(c)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		decision := tracker.CanConsume(c.Request.Context(), identity, res, plan, role, onErr)
		if !decision.Allowed {
			status := http.StatusTooManyRequests
			msg := "monthly quota exceeded"
			if decision.Limit <= 0 {
				status = http.StatusForbidden
				msg = "feature not available on this plan"
			}
			c.AbortWithStatusJSON(status, gin.H{
				"error":     msg,
				"feature":   res,
				"limit":     decision.Limit,
				"remaining": decision.Remaining,
			})
			return
		}
		c.Next()
	}
}

// AbortWithQuotaError maps a quota.Enforcer rejection to its user-facing
// response: 429 naming the feature, usage, and limit for quota exhaustion so
// the client can render a precise upgrade prompt, 403 for plans that lack
// the feature, 500 otherwise. It reports whether err was a quota rejection.
func AbortWithQuotaError(c *gin.Context, err error) bool {
	if qe := quota.AsQuotaExceeded(err); qe != nil {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "monthly quota exceeded",
			"feature": qe.Feature,
			"used":    qe.Used,
			"limit":   qe.Limit,
		})
		return true
	}
	if ne := quota.AsNotEntitled(err); ne != nil {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "feature not available on this plan",
			"feature": ne.Feature,
			"plan":    ne.Plan,
		})
		return true
	}
	c.AbortWithStatus(http.StatusInternalServerError)
	return false
}
