package api

import (
	"github.com/aretelabs/arete/internal/api/handlers"
	mw "github.com/aretelabs/arete/internal/api/middleware"
	"github.com/aretelabs/arete/internal/config"
	"github.com/aretelabs/arete/internal/llm"
	"github.com/aretelabs/arete/internal/service"
	"github.com/aretelabs/arete/internal/store"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App bundles the HTTP router with the background workers the server
// lifecycle owns.
type App struct {
	Router  *chi.Mux
	Sweeper *service.SweeperService
}

// NewApp wires the full service graph from configuration and returns the
// ready-to-serve application.
func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	docs := store.NewDocumentStore(db)
	namespace := config.Namespace()

	facts := service.NewFactService(docs, namespace, logger)
	facts.SetHalfLife(config.HalfLifeDays())

	registry := service.NewRegistryService(facts, docs, namespace, logger)
	registry.SetTTL(config.CandidateTTL())

	// The classifier is optional: without a key the service still runs on
	// heuristic categorization and pattern inference alone.
	client, err := llm.NewClient(config.ClassifierProvider(), config.ClassifierAPIKey())
	if err != nil {
		logger.Warn("classifier unavailable, inference degrades to heuristics", zap.Error(err))
		client = nil
	}

	categorizer := service.NewCategorizerChain(logger,
		service.NewStaticTableCategorizer(),
		service.NewKeywordCategorizer(),
		service.NewClassifierCategorizer(client, logger),
	)

	patterns := service.NewPatternService(registry, categorizer, logger)

	crossSignal := service.NewCrossSignalService(registry, facts, client, logger)
	crossSignal.SetTimeout(config.ClassifierTimeout())

	projection := service.NewProjectionService(facts, logger)

	sweeper := service.NewSweeperService(facts, logger)
	sweeper.SetThreshold(config.ArchiveThreshold())
	sweeper.SetInterval(config.SweepInterval())

	rememberHandler := handlers.NewRememberHandler(facts, logger)
	inferHandler := handlers.NewInferHandler(patterns, crossSignal, registry, logger)
	projectHandler := handlers.NewProjectHandler(projection, logger)
	archiveHandler := handlers.NewArchiveHandler(sweeper, logger)
	factsHandler := handlers.NewFactsHandler(facts, logger)
	healthHandler := handlers.NewHealthHandler(db)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(mw.RequestID)
	r.Use(mw.Logging(logger))
	r.Use(chimw.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/remember", rememberHandler.Remember)
		r.Post("/infer", inferHandler.Infer)
		r.Post("/project", projectHandler.Project)
		r.Post("/archive", archiveHandler.Archive)
		r.Get("/facts", factsHandler.List)
	})

	return &App{Router: r, Sweeper: sweeper}
}
