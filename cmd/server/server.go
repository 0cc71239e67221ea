package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	gormlogger "gorm.io/gorm/logger"

	"caremesh/services/agent-guard/internal/config"
	"caremesh/services/agent-guard/internal/domain/audit"
	"caremesh/services/agent-guard/internal/domain/executor"
	"caremesh/services/agent-guard/internal/domain/intent"
	"caremesh/services/agent-guard/internal/domain/memory"
	"caremesh/services/agent-guard/internal/domain/modelregistry"
	"caremesh/services/agent-guard/internal/domain/pipeline"
	"caremesh/services/agent-guard/internal/domain/plan"
	"caremesh/services/agent-guard/internal/domain/policy"
	"caremesh/services/agent-guard/internal/domain/promptregistry"
	"caremesh/services/agent-guard/internal/domain/retry"
	"caremesh/services/agent-guard/internal/domain/tool"
	"caremesh/services/agent-guard/internal/domain/usage"
	"caremesh/services/agent-guard/internal/infrastructure/breaker"
	"caremesh/services/agent-guard/internal/infrastructure/database"
	"caremesh/services/agent-guard/internal/infrastructure/killswitch"
	"caremesh/services/agent-guard/internal/infrastructure/logger"
	"caremesh/services/agent-guard/internal/infrastructure/metrics"
	"caremesh/services/agent-guard/internal/infrastructure/modelclient"
	"caremesh/services/agent-guard/internal/infrastructure/observability"
	"caremesh/services/agent-guard/internal/infrastructure/ratelimit"
	agentrequestrepo "caremesh/services/agent-guard/internal/infrastructure/repository/agentrequest"
	auditlogrepo "caremesh/services/agent-guard/internal/infrastructure/repository/auditlog"
	planrepo "caremesh/services/agent-guard/internal/infrastructure/repository/plan"
	tenantusagerepo "caremesh/services/agent-guard/internal/infrastructure/repository/tenantusage"
	"caremesh/services/agent-guard/internal/infrastructure/scheduler"
	"caremesh/services/agent-guard/internal/infrastructure/toolbackend"
	"caremesh/services/agent-guard/internal/interfaces/httpserver"
	"caremesh/services/agent-guard/internal/interfaces/httpserver/handlers"
	"caremesh/services/agent-guard/internal/webhook"
	"caremesh/services/agent-guard/internal/worker"
)

type Application struct {
	httpServer *httpserver.HttpServer
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		log:        log,
	}
}

func (a *Application) Start(ctx context.Context) error {
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	var limiterStore ratelimit.Store
	var switchStore killswitch.Store
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("connect redis")
		}
		limiterStore = ratelimit.NewRedisStore(redisClient)
		switchStore = killswitch.NewRedisStore(redisClient)
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis backed guard stores")
	} else {
		limiterStore = ratelimit.NewMemoryStore()
		switchStore = killswitch.NewMemoryStore()
		log.Info().Msg("using in-process guard stores")
	}

	auditRecorder := audit.NewRecorder(auditlogrepo.NewPostgresRepository(db), log)

	breakerManager := breaker.NewManager(breaker.Config{
		FailureThreshold:  cfg.BreakerFailureThreshold,
		Cooldown:          cfg.BreakerCooldown,
		HalfOpenSuccesses: cfg.BreakerHalfOpenSuccess,
	}, log, func(resource string, from, to gobreaker.State) {
		metrics.BreakerTransitionsTotal.WithLabelValues(resource, to.String()).Inc()
		if to == gobreaker.StateOpen {
			auditRecorder.Record(ctx, audit.Event{
				Stage: "breaker",
				Type:  audit.EventBreakerOpened,
				Tag:   audit.TagReliability,
				Detail: map[string]any{
					"resource": resource,
					"from":     from.String(),
				},
			})
		}
	})

	limiter := ratelimit.NewLimiter(limiterStore, map[string]ratelimit.Config{
		pipeline.RateLimitCapability: {
			Capacity: cfg.RateLimitCapacity,
			Window:   cfg.RateLimitWindow,
			PerUser:  cfg.RateLimitPerUser,
		},
	})

	gate := killswitch.NewGate(switchStore, cfg.KillSwitchCacheTTL, log)

	registry := tool.NewRegistry()
	clinicBackend := toolbackend.NewClinic(log)
	if err := tool.RegisterClinicCatalog(registry, clinicBackend); err != nil {
		log.Fatal().Err(err).Msg("register tool catalog")
	}

	prompts := promptregistry.NewRegistry()
	if err := promptregistry.LoadDefaults(ctx, prompts); err != nil {
		log.Fatal().Err(err).Msg("load prompt templates")
	}

	models := modelregistry.NewRegistry()
	if err := models.RegisterVersion(modelregistry.ModelVersion{
		ID:     cfg.ModelName,
		Type:   "intent-refiner",
		Name:   cfg.ModelName,
		Status: modelregistry.StatusActive,
	}); err != nil {
		log.Fatal().Err(err).Msg("register model version")
	}
	if err := models.RegisterExperiment(modelregistry.ABTestConfig{
		ExperimentID: intent.RefineExperimentID,
		Variants:     []modelregistry.Variant{{VersionID: cfg.ModelName, Percent: 100}},
	}); err != nil {
		log.Fatal().Err(err).Msg("register model experiment")
	}

	conversationMemory, err := memory.NewStore(cfg.MemorySize)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize conversation memory")
	}

	usageService := usage.NewService(tenantusagerepo.NewPostgresRepository(db))

	refiner := intent.NewRefiner(
		prompts,
		models,
		modelclient.New(cfg.ModelAPIKey, cfg.ModelBaseURL, log),
		breakerManager,
		conversationMemory,
		auditRecorder,
		log,
	)

	planner := plan.NewPlanner(registry, auditRecorder, cfg.ApprovalTimeout, log)
	planRepository := planrepo.NewPostgresRepository(db)
	requestRepository := agentrequestrepo.NewPostgresRepository(db)

	planExecutor := executor.New(
		planRepository,
		registry,
		breakerManager,
		auditRecorder,
		retry.DefaultPolicy(),
		log,
	)

	var webhookService webhook.Service = webhook.Noop{}
	if cfg.WebhookURL != "" {
		webhookService = webhook.NewHTTPService(cfg.WebhookURL, log)
	}

	pipelineService := pipeline.NewService(pipeline.Deps{
		Gate:     gate,
		Limiter:  limiter,
		Requests: requestRepository,
		Refiner:  refiner,
		Policies: policy.NewEngine(policy.DefaultRuleSet()),
		Planner:  planner,
		Plans:    planRepository,
		Executor: planExecutor,
		Registry: registry,
		Audit:    auditRecorder,
		Usage:    usageService,
		Webhooks: webhookService,
		Secret:   cfg.EncryptionSecret,
	}, log)

	expirySweeper := worker.NewExpirySweeper(planRepository, planner, webhookService, time.Minute, log)
	expirySweeper.Start(ctx)
	defer expirySweeper.Stop()

	jobs := scheduler.New(conversationMemory, usageService, cfg.MemoryMaxIdle, log)
	if err := jobs.Start(); err != nil {
		log.Fatal().Err(err).Msg("start scheduled jobs")
	}
	defer jobs.Stop()

	handlerProvider := handlers.NewProvider(pipelineService, auditRecorder, gate, breakerManager, limiter, log)
	httpServer := httpserver.New(cfg, log, handlerProvider)
	app := NewApplication(httpServer, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
