package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"autoapply/internal/cache"
	"autoapply/internal/config"
	"autoapply/internal/database"
	dbpostgres "autoapply/internal/database/postgres"
	"autoapply/internal/domain"
	"autoapply/internal/executor"
	"autoapply/internal/governor"
	"autoapply/internal/llm"
	"autoapply/internal/pkg/jwt"
	"autoapply/internal/repository"
	"autoapply/internal/retry"
	"autoapply/internal/scheduler"
	"autoapply/internal/session"
	"autoapply/internal/usecase"
	ucauth "autoapply/internal/usecase/auth"
	"autoapply/internal/ws"
)

// Container owns every long-lived component and the order they shut
// down in.
type Container struct {
	Config config.Config
	Logger *log.Logger

	DB    *dbpostgres.Pool
	Cache *cache.Redis

	Governor  *governor.Governor
	Sessions  *session.Pool
	Scheduler *scheduler.Scheduler
	Hub       *ws.Hub

	Orchestrator usecase.Orchestrator
	Auth         ucauth.Usecase
	JWT          jwt.Service
}

func NewContainer(ctx context.Context, cfg config.Config, logger *log.Logger) (*Container, error) {
	if logger == nil {
		logger = log.Default()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(connectCtx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := database.EnsureSchema(connectCtx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	redisCache := cache.NewRedis(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, logger)

	jobs := repository.NewPostgresJobRepository(db)
	resumes := repository.NewPostgresResumeRepository(db)
	apps := repository.NewPostgresApplicationRepository(db)
	events := repository.NewPostgresEventRepository(db)
	users := repository.NewPostgresUserRepository(db)

	gov := governor.New(logger)
	gov.Configure(scheduler.ResourceLLM, governor.Limits{
		Capacity:      cfg.Governor.LLMCapacity,
		Window:        cfg.Governor.LLMWindow,
		MaxConcurrent: cfg.Governor.LLMMaxConcurrent,
		LeaseTTL:      cfg.Governor.LeaseTTL,
	})
	for _, p := range []domain.Platform{
		domain.PlatformLinkedIn,
		domain.PlatformIndeed,
		domain.PlatformCompany,
		domain.PlatformOther,
	} {
		gov.Configure(scheduler.SubmitResource(p), governor.Limits{
			Capacity:      cfg.Governor.SubmitDailyBudget,
			Window:        cfg.Governor.SubmitWindow,
			MaxConcurrent: cfg.Governor.SubmitMaxConcurrent,
			LeaseTTL:      cfg.Governor.LeaseTTL,
		})
	}

	provider := session.NewChromeProvider(cfg.Session.Headless)
	if ua := cfg.Session.UserAgent; ua != "" {
		provider.UserAgent = ua
	}
	sessions := session.NewPool(provider, cfg.Session.MaxPerPlatform, logger)

	policy := retry.NewPolicy(
		cfg.Scheduler.MaxAttempts,
		cfg.Scheduler.BackoffBase,
		cfg.Scheduler.BackoffCap,
		cfg.Scheduler.RateLimitDelay,
	)

	llmClient, err := llm.NewClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		sessions.Close()
		_ = db.Close()
		return nil, fmt.Errorf("llm client: %w", err)
	}

	var submission executor.Submission = executor.NewBrowserSubmission(executor.DefaultScripts())
	if cfg.App.TestMode {
		logger.Printf("Scheduler | test_mode=on submissions=dry_run")
		submission = executor.DryRunSubmission{}
	}

	execs := scheduler.Executors{
		Analysis:   executor.NewLLMAnalysis(llmClient, cfg.LLM.Model),
		Tailoring:  executor.NewLLMTailoring(llmClient, cfg.LLM.Model),
		Submission: submission,
		DryRun:     executor.DryRunSubmission{},
	}

	hub := ws.NewHub(logger)
	notifier := ws.NewBroadcaster(hub)

	sched := scheduler.New(
		scheduler.Config{
			Workers:         cfg.Scheduler.Workers,
			QueueSize:       cfg.Scheduler.QueueSize,
			StageTimeout:    cfg.Scheduler.StageTimeout,
			DeferDelay:      cfg.Scheduler.DeferDelay,
			RequireApproval: cfg.Scheduler.RequireApproval,
			TailoringMode:   domain.TailoringMode(cfg.Scheduler.TailoringMode),
			ReviewTTL:       cfg.Scheduler.ReviewTTL,
		},
		gov, sessions, policy,
		apps, jobs, resumes, events,
		execs, notifier, logger,
	)

	orchestrator := usecase.NewOrchestratorService(sched, jobs, resumes, apps, events, redisCache)

	jwtSvc := jwt.NewHMACService(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiresIn,
		cfg.JWT.RefreshExpiresIn,
	)
	authSvc := ucauth.NewService(users, jwtSvc)

	return &Container{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		Cache:        redisCache,
		Governor:     gov,
		Sessions:     sessions,
		Scheduler:    sched,
		Hub:          hub,
		Orchestrator: orchestrator,
		Auth:         authSvc,
		JWT:          jwtSvc,
	}, nil
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.Sessions != nil {
		c.Sessions.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
