/**
 * @description
 * This is the main entry point for the portal-service. It is responsible for
 * initializing all components of the service, including configuration, the
 * database connection, the message broker, the identity provider, the stats
 * scheduler, and the HTTP server. It wires everything together and starts
 * the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Redis client for rate limiting.
 * - internal/api, internal/app, internal/config, internal/identity, internal/store
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/unitymfi/portal-service/internal/api"
	"github.com/unitymfi/portal-service/internal/app"
	"github.com/unitymfi/portal-service/internal/config"
	"github.com/unitymfi/portal-service/internal/domain"
	"github.com/unitymfi/portal-service/internal/identity"
	"github.com/unitymfi/portal-service/internal/store"
	"github.com/unitymfi/portal-service/pkg/rabbitmq"
)

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found, using environment variables\"")
	}

	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting portal-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Ensure required tables exist (idempotent).
	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureSchema(schemaCtx, dbpool); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"schema bootstrap failed (may already exist)\" err=%v", err)
	}
	cancelSchema()

	repository := store.NewPostgresRepository(dbpool)

	// Initialize the RabbitMQ producer used to publish portal events. The
	// service keeps running without a broker; live streams degrade to the
	// initial snapshot only.
	var producer rabbitmq.Publisher
	eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		producer = eventProducer
		defer eventProducer.Close()
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Identity provider for client and staff sessions.
	idp := identity.NewProvider(repository, cfg.JWTSecret, cfg.LoginDomain, time.Duration(cfg.SessionTTLHours)*time.Hour)

	// Seed the bootstrap admin identity so the back office is reachable on a
	// fresh deployment.
	if strings.TrimSpace(cfg.AdminEmail) != "" && strings.TrimSpace(cfg.AdminPassword) != "" {
		seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
		if err := idp.EnsureIdentity(seedCtx, cfg.AdminEmail, cfg.AdminPassword, domain.RoleAdmin); err != nil {
			log.Printf("level=warn component=bootstrap msg=\"admin identity seed failed\" err=%v", err)
		}
		cancelSeed()
	} else {
		log.Println("level=warn component=bootstrap msg=\"admin credentials not configured; back office login unavailable\" env=ADMIN_EMAIL,ADMIN_PASSWORD")
	}

	// Redis-backed rate limiting for the public auth endpoints. Optional:
	// without Redis the endpoints are simply unthrottled.
	var rateLimiter app.RateLimiter
	if cfg.RedisURL != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; auth rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; auth rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				rateLimiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	} else {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; auth rate limiting disabled\" env=REDIS_URL")
	}

	// Initialize the core application service with its dependencies.
	portalService := app.NewService(repository, idp, producer)

	// The watch hub fans account events out to open dashboard streams.
	watchHub := app.NewWatchHub()

	accountBindings := map[string]func([]byte) bool{
		domain.AccountCreatedKey: watchHub.HandleAccountEvent,
		domain.AccountUpdatedKey: watchHub.HandleAccountEvent,
	}

	rabbitConsumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; live streams degraded\" err=%v", err)
	} else {
		defer rabbitConsumer.Close()
		if err := rabbitConsumer.ConsumeWithBindings(domain.PortalEventsExchange, cfg.PortalEventQueue, accountBindings); err != nil {
			log.Printf("level=warn component=bootstrap msg=\"account event consumer start failed; live streams degraded\" err=%v", err)
		}
	}

	// Hourly stats snapshots for the back office dashboard.
	jobsLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	scheduler := app.NewScheduler(app.NewJobs(repository, jobsLogger), jobsLogger, cfg.StatsSnapshotSchedule)
	scheduler.Start()

	// Initialize the API handlers and router.
	portalHandlers := api.NewPortalHandlers(portalService, watchHub, rateLimiter, cfg.LoginRateLimitPerMinute, cfg.RegisterRateLimitPerMinute)

	allowedOrigins := strings.Split(cfg.AllowedOrigins, ",")
	for i := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
	}

	router := api.PortalRoutes(portalHandlers, idp, allowedOrigins)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	<-scheduler.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
