// Package nethttp provides rate limiting and quota gating middleware for the
// standard net/http stack.
package nethttp

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	quotaengine "github.com/stackmint/quotaengine"
	"github.com/stackmint/quotaengine/quota"
)

// IdentityFunc resolves the caller's identity, plan, and role from a
// request. Typically it reads whatever the authentication middleware stored
// on the request context.
type IdentityFunc func(r *http.Request) (identity string, plan quota.Plan, role quota.Role, err error)

// Middleware creates a new rate limiting middleware handler.
//
// It wraps an existing http.Handler and checks incoming requests against the
// provided Limiter instance. On every request, allowed or not, it adds the
// standard `X-RateLimit-*` headers to the response so clients can
// self-throttle. The behavior can be customized using functional options.
//
// Example:
//
//	limiter := registry.For("rl:leads", 5, time.Minute)
//	mux := http.NewServeMux()
//	mux.HandleFunc("/", myHandler)
//
//	rateLimit := nethttp.Middleware(limiter)
//	http.ListenAndServe(":8080", rateLimit(mux))
func Middleware(limiter quotaengine.Limiter, options ...quotaengine.Option) func(http.Handler) http.Handler {
	cfg := quotaengine.NewConfig(options...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := cfg.KeyFunc(r)
			if err != nil {
				cfg.Logger.Errorf("Failed to extract key: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			result, err := limiter.Allow(r.Context(), key)
			if err != nil {
				cfg.Logger.Errorf("Limiter failed for key '%s': %v", key, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			setRateLimitHeaders(w.Header().Set, result)

			if !result.Allowed {
				cfg.Logger.Debugf(
					"Request denied for key '%s'. Remaining: %d, Limit: %d",
					key, result.Remaining, result.Limit,
				)
				cfg.ErrorHandler(w, r, quotaengine.ErrExceeded, result)
				return
			}

			cfg.Logger.Debugf(
				"Request allowed for key '%s'. Remaining: %d, Limit: %d",
				key, result.Remaining, result.Limit,
			)
			next.ServeHTTP(w, r)
		})
	}
}

// QuotaGate creates a middleware that rejects requests whose caller has no
// remaining monthly allowance for the given resource.
//
// The gate only checks; it never records consumption. Handlers record via
// Tracker.RecordConsumption after the costly action actually succeeds, or
// use a quota.Enforcer when the cap must be hard.
func QuotaGate(tracker *quota.Tracker, res quota.Resource, identify IdentityFunc, onErr quota.OnError) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, plan, role, err := identify(r)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			decision := tracker.CanConsume(r.Context(), identity, res, plan, role, onErr)
			if !decision.Allowed {
				WriteQuotaDenied(w, res, decision)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteQuotaDenied writes the structured rejection body for a failed soft
// quota check: 403 when the plan lacks the feature entirely, 429 when the
// monthly limit is used up.
func WriteQuotaDenied(w http.ResponseWriter, res quota.Resource, decision quota.Decision) {
	w.Header().Set("Content-Type", "application/json")
	status := http.StatusTooManyRequests
	msg := "monthly quota exceeded"
	if decision.Limit <= 0 {
		status = http.StatusForbidden
		msg = "feature not available on this plan"
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":     msg,
		"feature":   res,
		"limit":     decision.Limit,
		"remaining": decision.Remaining,
	})
}

// WriteQuotaError maps a quota.Enforcer rejection to its user-facing
// response: 429 naming the feature, usage, and limit for quota exhaustion,
// 403 for plans that lack the feature. Other errors get a plain 500. It
// reports whether err was handled as a quota rejection.
func WriteQuotaError(w http.ResponseWriter, err error) bool {
	if qe := quota.AsQuotaExceeded(err); qe != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error":   "monthly quota exceeded",
			"feature": qe.Feature,
			"used":    qe.Used,
			"limit":   qe.Limit,
		})
		return true
	}
	if ne := quota.AsNotEntitled(err); ne != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error":   "feature not available on this plan",
			"feature": ne.Feature,
			"plan":    ne.Plan,
		})
		return true
	}
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	return false
}

func setRateLimitHeaders(set func(key, value string), result quotaengine.Result) {
	set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	resetTimestamp := time.Now().Add(result.ResetAfter).Unix()
	set("X-RateLimit-Reset", strconv.FormatInt(resetTimestamp, 10))
}
