package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/splax/onboard/internal/app/migrate"
	"github.com/splax/onboard/internal/geocode"
	httpx "github.com/splax/onboard/internal/http"
	"github.com/splax/onboard/internal/mail"
	"github.com/splax/onboard/internal/repository"
	"github.com/splax/onboard/internal/repository/memory"
	"github.com/splax/onboard/internal/repository/mongo"
	"github.com/splax/onboard/internal/repository/postgres"
	"github.com/splax/onboard/internal/repository/redisstore"
	"github.com/splax/onboard/internal/service/provision"
	"github.com/splax/onboard/internal/service/registration"
	"github.com/splax/onboard/internal/servicenow"
	"github.com/splax/onboard/pkg/config"
	"github.com/splax/onboard/pkg/crypto"
	"github.com/splax/onboard/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("api server failed", "error", err)
		os.Exit(1)
	}
	log.Info("api server stopped")
}

func run(ctx context.Context, cfg config.APIConfig, log *slog.Logger) error {
	policy, err := provision.ParsePolicy(cfg.PartialFailurePolicy)
	if err != nil {
		return err
	}
	proxies, err := httpx.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("configure trusted proxies: %w", err)
	}
	sealer, err := crypto.NewSealer(cfg.PendingSealKey)
	if err != nil {
		return fmt.Errorf("configure pending encryption: %w", err)
	}

	store, redisClient, err := openStore(ctx, cfg, repository.NewCodec(sealer), log)
	if err != nil {
		return err
	}
	defer store.Close()

	health := []httpx.HealthCheck{{Name: "pending_store", Check: store.Ping}}
	deps := registration.Deps{Store: store}

	if cfg.ServiceNowConfigured() {
		client, err := servicenow.New(cfg.ServiceNowURL, cfg.ServiceNowUser, cfg.ServiceNowPassword,
			servicenow.WithTimeout(cfg.ServiceNowTimeout))
		if err != nil {
			return fmt.Errorf("configure servicenow client: %w", err)
		}
		provisioner := provision.New(client, policy, log, provision.NewMetrics(prometheus.DefaultRegisterer))
		log.Info("servicenow provisioning enabled", "url", cfg.ServiceNowURL, "partial_failure_policy", provisioner.Policy())
		deps.Directory = client
		deps.Provisioner = provisioner
	} else {
		log.Warn("servicenow not configured; registration requests will be rejected")
	}

	if cfg.MailConfigured() {
		deps.Mailer = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			Timeout:  cfg.SMTPTimeout,
		})
	} else {
		log.Warn("smtp not configured; confirmation emails cannot be sent")
	}

	geocoder := geocode.New(cfg.GeocodeURL, geocode.UserAgent(cfg.AppName, cfg.GeocodeContact), cfg.GeocodeTimeout, log)
	deps.Geocoder = geocoder

	if cfg.MongoURI != "" {
		mirror, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Warn("mongo mirror unavailable", "error", err)
		} else {
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = mirror.Close(closeCtx)
			}()
			deps.Mirror = mirror
		}
	}

	svc := registration.New(deps, log, cfg)
	defer svc.Close()

	limiter := newLimiter(cfg, redisClient, log)
	if redisClient != nil {
		health = append(health, httpx.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	router := httpx.NewRouter(log, svc, geocoder, httpx.Options{
		AppName:     cfg.AppName,
		LoginURL:    cfg.LoginURL(),
		AdminSecret: cfg.AdminJWTSecret,
		Limiter:     limiter,
		Health:      health,

		TrustedProxies: proxies,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api server starting", "addr", cfg.Addr, "store", cfg.PendingStore, "policy", policy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return svc.RunSweeper(gctx, cfg.PendingSweepEvery)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		return nil
	})
	return g.Wait()
}

// openStore builds the configured pending store. The redis client is returned for reuse when
// the store is redis backed.
func openStore(ctx context.Context, cfg config.APIConfig, codec repository.Codec, log *slog.Logger) (repository.PendingRegistrationStore, *redis.Client, error) {
	switch cfg.PendingStore {
	case config.StoreMemory, "":
		log.Warn("using in-memory pending store; pending registrations are lost on restart")
		return memory.New(memory.DefaultCleanupInterval), nil, nil
	case config.StoreRedis:
		store, err := redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, codec)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return store, store.Client(), nil
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		runner, err := migrate.New(pool, cfg.MigrationsDir, log)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("configure migrations: %w", err)
		}
		if err := runner.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := runner.Ensure(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.New(pool, codec), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown pending store %q", cfg.PendingStore)
	}
}

func newLimiter(cfg config.APIConfig, redisClient *redis.Client, log *slog.Logger) httpx.RateLimiter {
	if !cfg.RateLimitRedis {
		return httpx.NewMemoryRateLimiter()
	}
	if redisClient != nil {
		return httpx.NewRedisRateLimiterFromClient(redisClient, log)
	}
	if cfg.RedisAddr == "" {
		log.Warn("RATE_LIMIT_REDIS set without REDIS_ADDR; using in-memory limiter")
		return httpx.NewMemoryRateLimiter()
	}
	limiter, err := httpx.NewRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		log.Warn("redis rate limiter unavailable", "error", err)
		return httpx.NewMemoryRateLimiter()
	}
	return limiter
}
