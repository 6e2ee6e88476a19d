package ginlimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	quotaengine "github.com/stackmint/quotaengine"
	"github.com/stackmint/quotaengine/quota"
	"github.com/stackmint/quotaengine/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, limit int64) *gin.Engine {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	adapter := store.NewAdapter(nil, store.WithFallback(store.NewMemoryCounter(ctx, 0)))
	limiter := quotaengine.NewSlidingWindow(adapter, "rl:gin", limit, time.Minute)

	router := gin.New()
	router.Use(RateLimiter(limiter))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return router
}

func TestRateLimiter_EnforcesBudget(t *testing.T) {
	router := newTestRouter(t, 2)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "1.2.3.4:5678"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "1.2.3.4:5678"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the budget is spent, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on denial")
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", got)
	}
}

func TestRateLimiter_CustomKeyFunc(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	adapter := store.NewAdapter(nil, store.WithFallback(store.NewMemoryCounter(ctx, 0)))
	limiter := quotaengine.NewSlidingWindow(adapter, "rl:key", 1, time.Minute)

	router := gin.New()
	router.Use(RateLimiter(limiter, quotaengine.WithKeyFunc(func(r *http.Request) (string, error) {
		return r.Header.Get("X-API-Key"), nil
	})))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	send := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-API-Key", key)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("alpha"); code != http.StatusOK {
		t.Fatalf("expected 200 for alpha, got %d", code)
	}
	if code := send("alpha"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for alpha's second request, got %d", code)
	}
	if code := send("beta"); code != http.StatusOK {
		t.Fatalf("expected 200 for beta's independent budget, got %d", code)
	}
}

func TestMonthlyQuota(t *testing.T) {
	table := quota.NewTable(map[quota.Plan]quota.Limits{
		"basic": {"ai_generation": 1},
	})
	tracker := quota.NewTracker(quota.NewMemoryUsageStore(), table)

	identify := func(c *gin.Context) (string, quota.Plan, quota.Role, error) {
		return "user-1", quota.Plan(c.GetHeader("X-Plan")), "member", nil
	}

	router := gin.New()
	router.POST("/generate",
		MonthlyQuota(tracker, "ai_generation", identify, quota.OnErrorAllow),
		func(c *gin.Context) {
			tracker.RecordConsumption(c.Request.Context(), "user-1", "ai_generation", "basic", "member", 1)
			c.Status(http.StatusOK)
		},
	)

	send := func(plan string) int {
		req := httptest.NewRequest(http.MethodPost, "/generate", nil)
		req.Header.Set("X-Plan", plan)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("basic"); code != http.StatusOK {
		t.Fatalf("expected 200 within budget, got %d", code)
	}
	if code := send("basic"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the month's budget is spent, got %d", code)
	}
	if code := send("unknown"); code != http.StatusForbidden {
		t.Fatalf("expected 403 for an unentitled plan, got %d", code)
	}
}

func TestAbortWithQuotaError(t *testing.T) {
	router := gin.New()
	router.POST("/exceeded", func(c *gin.Context) {
		AbortWithQuotaError(c, &quota.QuotaExceededError{Feature: "strategy", Limit: 2, Used: 2})
	})
	router.POST("/unentitled", func(c *gin.Context) {
		AbortWithQuotaError(c, &quota.NotEntitledError{Feature: "strategy", Plan: "free"})
	})
	router.POST("/other", func(c *gin.Context) {
		if AbortWithQuotaError(c, context.DeadlineExceeded) {
			t.Error("expected an unknown error not to be treated as a quota rejection")
		}
	})

	cases := []struct {
		path string
		want int
	}{
		{"/exceeded", http.StatusTooManyRequests},
		{"/unentitled", http.StatusForbidden},
		{"/other", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, tc.path, nil))
		if rr.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.path, tc.want, rr.Code)
		}
	}
}
