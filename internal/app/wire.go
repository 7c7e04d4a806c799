package app

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oddsmith/platform/internal/audit"
	"github.com/oddsmith/platform/internal/auth"
	"github.com/oddsmith/platform/internal/decision"
	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/handler"
	"github.com/oddsmith/platform/internal/infra"
	"github.com/oddsmith/platform/internal/integrity"
	"github.com/oddsmith/platform/internal/orchestrator"
	"github.com/oddsmith/platform/internal/parlay"
	"github.com/oddsmith/platform/internal/provider"
	"github.com/oddsmith/platform/internal/repository"
	"github.com/oddsmith/platform/internal/settlement"
	"github.com/oddsmith/platform/internal/signal"
	"github.com/oddsmith/platform/internal/sim"
)

// Deps holds everything NewApp needs that is owned by the caller.
type Deps struct {
	Pool   *pgxpool.Pool
	Config *infra.Config
	JWTMgr *auth.JWTManager
	Logger *slog.Logger
}

// App is the assembled engine: the HTTP router plus the orchestrator that
// drives polling, waves, settlement, and the sentinel.
type App struct {
	Router       chi.Router
	Orchestrator *orchestrator.Orchestrator
	Producer     *infra.KafkaProducer
	Metrics      *integrity.Metrics
}

// NewApp wires repositories, engines, and handlers into a runnable unit.
func NewApp(deps Deps) *App {
	pool := deps.Pool
	cfg := deps.Config
	logger := deps.Logger

	// Writer matrix and repositories
	matrix := guard.NewWriterMatrix()
	eventRepo := repository.NewEventRepository(matrix)
	snapshotRepo := repository.NewSnapshotRepository(matrix)
	simRunRepo := repository.NewSimRunRepository(matrix)
	decisionRepo := repository.NewDecisionRepository(matrix)
	signalRepo := repository.NewSignalRepository(matrix)
	gradingRepo := repository.NewGradingRepository(matrix)
	_ = repository.NewPublishLogRepository(matrix)
	alertRepo := repository.NewAlertRepository(matrix)
	flagRepo := repository.NewFlagRepository(matrix)
	parlayRepo := repository.NewParlayAttemptRepository(matrix)
	auditRepo := repository.NewAuditRepository(matrix)

	// Metrics
	registry := prometheus.NewRegistry()
	metrics := integrity.NewMetrics(registry)

	// External providers
	oddsClient := provider.NewOddsAPIClient(cfg.OddsAPIKey, logger)

	// Engines
	simEngine := sim.NewEngine(time.Duration(cfg.SimWallClockSeconds) * time.Second)
	computer := decision.NewComputer()
	validator := integrity.NewValidator(alertRepo, metrics, integrity.DefaultForbiddenPhrases, logger)
	pipeline := signal.NewPipeline(pool, eventRepo, snapshotRepo, simRunRepo, decisionRepo,
		simEngine, computer, validator, cfg.DefaultIterations, logger)

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	machine := signal.NewMachine(pool, signalRepo, pipeline, producer, logger)

	settler := settlement.NewEngine(pool, signalRepo, eventRepo, snapshotRepo, gradingRepo,
		alertRepo, oddsClient, logger)

	parlaySvc := parlay.NewService(pool, decisionRepo, parlayRepo, flagRepo, logger)
	auditor := audit.NewService(pool, auditRepo, logger)

	// Sentinel with the flag-gated rollback controller
	rollbacker := orchestrator.NewRollbacker(pool, flagRepo, alertRepo, logger)
	sentinel := integrity.NewSentinel(pool, flagRepo, alertRepo, metrics, matrix, rollbacker, logger)

	orch := orchestrator.NewOrchestrator(pool, eventRepo, snapshotRepo, signalRepo, gradingRepo,
		oddsClient, machine, settler, sentinel, auditor,
		time.Duration(cfg.OddsPollSeconds)*time.Second,
		time.Duration(cfg.SettlementSweepMins)*time.Minute,
		logger)

	// Handlers
	decisionHandler := handler.NewDecisionHandler(pool, decisionRepo, eventRepo, auditor)
	simHandler := handler.NewSimulationHandler(pool, eventRepo, pipeline)
	parlayHandler := handler.NewParlayHandler(parlaySvc)
	adminHandler := handler.NewAdminHandler(pool, settler, flagRepo, eventRepo, alertRepo)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS(cfg.CORSAllowedOrigins))
	r.Use(handler.JSONContentType)

	// Health and metrics (no auth)
	r.Get("/health", handler.HealthHandler(pool))
	r.Method("GET", "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Public read surface
	r.Route("/api", func(r chi.Router) {
		r.Get("/games", decisionHandler.ListUpcoming)
		r.Get("/games/{league}/{eventID}/decisions", decisionHandler.GetGame)
		r.Post("/simulations/run", simHandler.Run)
		r.Post("/parlay/generate", parlayHandler.Generate)
		r.Get("/parlay/stats", parlayHandler.Stats)

		// Admin-scoped grading lives on the public prefix.
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthenticateAdmin(deps.JWTMgr))
			r.Use(auth.RequireRole(auth.WriteRoles()...))
			r.Post("/grading/pick/{pickID}", adminHandler.GradePick)
		})
	})

	// Operator surface
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.AuthenticateAdmin(deps.JWTMgr))
		r.Use(auth.RequireRole(auth.WriteRoles()...))

		r.Patch("/flags/{name}", adminHandler.SetFlag)
		r.Post("/events/{eventID}/reconcile", adminHandler.ReconcileEvent)
	})

	return &App{
		Router:       r,
		Orchestrator: orch,
		Producer:     producer,
		Metrics:      metrics,
	}
}
