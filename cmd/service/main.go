package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/musekit/internal/config"
	mw "github.com/dropDatabas3/musekit/internal/http/middlewares"
	"github.com/dropDatabas3/musekit/internal/http/router"
	appmetrics "github.com/dropDatabas3/musekit/internal/metrics"
	"github.com/dropDatabas3/musekit/internal/musickit"
	"github.com/dropDatabas3/musekit/internal/observability/logger"
	"github.com/dropDatabas3/musekit/internal/rate"
)

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func printConfigSummary(c *config.Config) {
	// Mask sensitive values for logging
	hashMasked := "***masked***"
	if c.Security.RefreshKeyHash == "" {
		hashMasked = "NOT_SET"
	}

	log.Printf(`CONFIG:
  app(env=%s, log_level=%s)
  server.addr=%s
  cors=%v

  cache.kind=%s
  redis.addr=%s db=%d prefix=%s

  rate(enabled=%t, window=%s, max=%d)
  rate.refresh(limit=%d, window=%s)

  security(refresh_key_hash=%s)
`,
		c.App.Env, c.App.LogLevel,
		c.Server.Addr, c.Server.CORSAllowedOrigins,
		c.Cache.Kind, c.Cache.Redis.Addr, c.Cache.Redis.DB, c.Cache.Redis.Prefix,
		c.Rate.Enabled, c.Rate.Window, c.Rate.MaxRequests,
		c.Rate.Refresh.Limit, c.Rate.Refresh.Window,
		hashMasked,
	)
}

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (fallback: $CONFIG_PATH o configs/config.yaml)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (si existe, se carga)")
		flagPrint      = flag.Bool("print-config", false, "imprime config efectiva y termina")
	)
	flag.Parse()

	if *flagEnvFile != "" && fileExists(*flagEnvFile) {
		if err := godotenv.Load(*flagEnvFile); err == nil {
			log.Printf("dotenv: cargado %s", *flagEnvFile)
		}
	}

	cfgPath := *flagConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" {
		if fileExists("configs/config.yaml") {
			cfgPath = "configs/config.yaml"
		} else {
			cfgPath = "configs/config.example.yaml"
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *flagPrint {
		printConfigSummary(cfg)
		return
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "musekit",
		Version:     os.Getenv("SERVICE_VERSION"),
	})
	defer func() { _ = logger.Sync() }()

	// ─── Métricas ───
	metricsHandler, err := mw.RegisterMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}
	if err := appmetrics.RegisterTokens(prometheus.DefaultRegisterer); err != nil {
		log.Fatalf("metrics: %v", err)
	}

	// ─── Rate limiting (memory | redis) ───
	var (
		globalLimiter  rate.Limiter
		refreshLimiter rate.Limiter
		checkRedis     func(ctx context.Context) error
	)
	if cfg.Rate.Enabled {
		switch cfg.Cache.Kind {
		case "redis":
			client := rdb.NewClient(&rdb.Options{
				Addr: cfg.Cache.Redis.Addr,
				DB:   cfg.Cache.Redis.DB,
			})
			prefix := cfg.Cache.Redis.Prefix + ":rl:"
			globalLimiter = rate.NewRedisLimiter(client, prefix, cfg.Rate.MaxRequests, cfg.RateWindow())
			refreshLimiter = rate.NewRedisLimiter(client, prefix+"refresh:", cfg.Rate.Refresh.Limit, cfg.RefreshWindow())
			checkRedis = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		default:
			globalLimiter = rate.NewMemoryLimiter("rl:", cfg.Rate.MaxRequests, cfg.RateWindow())
			refreshLimiter = rate.NewMemoryLimiter("rl:refresh:", cfg.Rate.Refresh.Limit, cfg.RefreshWindow())
		}
	}

	// ─── Servicio de tokens ───
	service := musickit.NewService(musickit.Resolver{}, musickit.Issuer{}, logger.Named("musickit"))

	if !service.Configured() {
		log.Println("⚠️  Credenciales de Apple incompletas: se servirá el token demo")
		log.Println("   Defina APPLE_TEAM_ID, APPLE_KEY_ID y APPLE_PRIVATE_KEY o APPLE_PRIVATE_KEY_PATH")
	}
	if cfg.Security.RefreshKeyHash == "" {
		log.Println("⚠️  REFRESH_KEY_HASH vacío: POST /v1/token/refresh queda sin guardia (solo dev)")
	}

	handler := router.New(router.Deps{
		Service:            service,
		Resolver:           musickit.Resolver{},
		Issuer:             musickit.Issuer{},
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		GlobalLimiter:      globalLimiter,
		RefreshLimiter:     refreshLimiter,
		RefreshKeyHash:     cfg.Security.RefreshKeyHash,
		CheckRedis:         checkRedis,
		MetricsHandler:     metricsHandler,
	})

	log.Printf("🚀 musekit up. addr=%s cache=%s rate=%t time=%s",
		cfg.Server.Addr, cfg.Cache.Kind, cfg.Rate.Enabled, time.Now().Format(time.RFC3339))
	log.Println("📋 Endpoints:")
	log.Println("   • Token:   GET  /v1/token")
	log.Println("   • Refresh: POST /v1/token/refresh")
	log.Println("   • Status:  GET  /v1/token/status")
	log.Println("   • Health:  GET  /healthz | GET /readyz")
	log.Println("   • Metrics: GET  /metrics")

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("❌ server failed: %v", err)
	}
}
