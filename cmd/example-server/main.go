// Example server wiring the full engine: Redis-backed window counters with
// in-process fallback, a soft monthly quota on AI generations, and a
// hard-capped strategy feature enforced transactionally.
//
// Identity is taken from the X-User-ID / X-Plan / X-Role headers for demo
// purposes; a real deployment resolves these from its auth middleware.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	quotaengine "github.com/stackmint/quotaengine"
	"github.com/stackmint/quotaengine/adapters/promrecorder"
	zerologadapter "github.com/stackmint/quotaengine/adapters/zerolog"
	"github.com/stackmint/quotaengine/middleware/ginlimit"
	"github.com/stackmint/quotaengine/quota"
	"github.com/stackmint/quotaengine/store"
)

const (
	resGeneration quota.Resource = "ai_generation"
	resStrategy   quota.Resource = "strategy"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logBridge := zerologadapter.New(&logger)

	var durable store.Counter
	var redisClient *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: addr})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error().Err(err).Msg("redis unreachable, running on in-process counters only")
		} else {
			durable = store.NewRedisCounter(redisClient)
		}
		cancel()
	}

	recorder := promrecorder.New(nil, "quotaengine")
	adapter := store.NewAdapter(durable,
		store.WithTimeout(500*time.Millisecond),
		store.WithLogger(logBridge),
		store.WithRecorder(recorder),
	)
	registry := quotaengine.NewRegistry(adapter, 0)

	table := quota.NewTable(map[quota.Plan]quota.Limits{
		"free":  {resGeneration: 3, resStrategy: 0},
		"basic": {resGeneration: 20, resStrategy: 2},
		"pro":   {resGeneration: 100, resStrategy: 5},
	},
		quota.WithAlias("pro-promo", "pro"),
		quota.WithDefaultPlan("free"),
	)

	var tracker *quota.Tracker
	var enforcer *quota.Enforcer
	if redisClient != nil {
		tracker = quota.NewTracker(quota.NewRedisUsageStore(redisClient), table, quota.WithTrackerLogger(logBridge))
		enforcer = quota.NewEnforcer(quota.NewRedisDocStore(redisClient), table, quota.WithEnforcerLogger(logBridge))
	} else {
		tracker = quota.NewTracker(quota.NewMemoryUsageStore(), table, quota.WithTrackerLogger(logBridge))
		enforcer = quota.NewEnforcer(quota.NewMemoryDocStore(), table, quota.WithEnforcerLogger(logBridge))
	}

	identify := func(c *gin.Context) (string, quota.Plan, quota.Role, error) {
		id := c.GetHeader("X-User-ID")
		if id == "" {
			return "", "", "", errors.New("missing X-User-ID")
		}
		return id, quota.Plan(c.GetHeader("X-Plan")), quota.Role(c.GetHeader("X-Role")), nil
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Anonymous endpoint: coarse per-IP burst protection only.
	router.GET("/ping",
		ginlimit.RateLimiter(registry.For("rl:ping", 5, time.Minute), quotaengine.WithLogger(logBridge)),
		func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

	// Soft-budget feature: gate on remaining allowance, record after the
	// action succeeds. A storage hiccup fails open.
	router.POST("/generate",
		ginlimit.RateLimiter(registry.For("rl:generate", 30, time.Minute), quotaengine.WithLogger(logBridge)),
		ginlimit.MonthlyQuota(tracker, resGeneration, identify, quota.OnErrorAllow),
		func(c *gin.Context) {
			identity, plan, role, _ := identify(c)

			// The expensive call would happen here.

			tracker.RecordConsumption(c.Request.Context(), identity, resGeneration, plan, role, 1)
			c.JSON(http.StatusOK, tracker.GetStats(c.Request.Context(), identity, resGeneration, plan, role))
		})

	// Hard-capped feature: check and record are one transaction.
	router.POST("/strategies", func(c *gin.Context) {
		identity, plan, role, err := identify(c)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		receipt, err := enforcer.EnforceAndRecord(c.Request.Context(), identity, resStrategy, plan, role)
		if err != nil {
			ginlimit.AbortWithQuotaError(c, err)
			return
		}
		c.JSON(http.StatusOK, receipt)
	})

	router.GET("/usage", func(c *gin.Context) {
		identity, plan, role, err := identify(c)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			string(resGeneration): tracker.GetStats(c.Request.Context(), identity, resGeneration, plan, role),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	logger.Info().Str("addr", addr).Msg("listening")
	if err := router.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
