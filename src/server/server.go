package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julienschmidt/httprouter"

	"hive/src/lib"
	"hive/src/services"
	"hive/src/storage"
)

// Server wires the engine services and their HTTP handlers.
type Server struct {
	cfg        lib.Config
	logger     *slog.Logger
	metrics    *lib.Metrics
	db         *pgxpool.Pool
	httpServer *http.Server
}

func NewServer(ctx context.Context, cfg lib.Config) (*Server, error) {
	logger := lib.NewLogger(cfg.LogLevel)
	metrics := lib.NewMetrics()

	if err := storage.Migrate(cfg.DatabaseURL); err != nil {
		return nil, err
	}

	db, err := storage.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	api, err := NewAPI(cfg, storage.NewGroupRepo(db), storage.NewEventsRepo(db), storage.NewFeedRepo(db), storage.NewTxManager(db), metrics, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(api),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		db:         db,
		httpServer: httpServer,
	}, nil
}

// NewAPI builds the service graph over the given stores.
func NewAPI(cfg lib.Config, groups services.GroupStore, events services.EventStore, feed services.FeedStore, tx services.TxRunner, metrics *lib.Metrics, logger *slog.Logger) (*API, error) {
	system, err := services.NewSystemActor(cfg.SystemPrivKey)
	if err != nil {
		return nil, fmt.Errorf("system actor: %w", err)
	}

	roles := services.NewRoleClassifier(groups, logger)
	gate := services.NewPermissionGate(roles, metrics)

	return &API{
		Identity: services.NewIdentityResolver(cfg.JWTSecret),
		Roles:    roles,
		Joins:    services.NewJoinPolicyService(groups, tx, roles, metrics, logger),
		Events: services.NewEventPublicationService(services.EventPublicationDeps{
			Events:  events,
			Feed:    feed,
			Tx:      tx,
			Gate:    gate,
			Roles:   roles,
			System:  system,
			Loc:     cfg.AnnouncementTZ,
			Metrics: metrics,
			Logger:  logger,
		}),
		Feed:     services.NewFeedModerationService(feed, roles, gate, metrics, logger),
		Throttle: services.NewThrottle(cfg.RateLimitBurst, cfg.RateLimitPerMinute),
		System:   system,
		Metrics:  metrics,
		Logger:   logger,
	}, nil
}

// NewRouter registers every route on a fresh httprouter.
func NewRouter(api *API) http.Handler {
	router := httprouter.New()
	router.GET("/health", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.GET("/metrics", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, api.Metrics.Snapshot())
	})
	api.registerGroupRoutes(router)
	api.registerEventRoutes(router)
	api.registerFeedRoutes(router)
	return router
}

func (s *Server) Start() error {
	s.logger.Info("hive server starting", "addr", s.cfg.HTTPAddr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	defer s.db.Close()
	return s.httpServer.Shutdown(ctx)
}
