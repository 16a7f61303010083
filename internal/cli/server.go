package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-progress-service/internal/app"
	"course-progress-service/internal/config"
	"course-progress-service/internal/domain"
	"course-progress-service/internal/infra/catalog"
	"course-progress-service/internal/infra/memory"
	pginfra "course-progress-service/internal/infra/postgres"
	redisinfra "course-progress-service/internal/infra/redis"
	"course-progress-service/internal/infra/remote"
	"course-progress-service/internal/platform/logger"
	transport "course-progress-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the progress server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func loadConfig(path string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

// backends holds the connections opened for the configured stores.
type backends struct {
	courses app.CourseRepository
	store   app.ProgressStore
	loader  memory.CourseLoader
	pool    *pgxpool.Pool
	redis   *redis.Client
}

func (b *backends) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

// openBackends selects the progress store and course source from configuration.
func openBackends(ctx context.Context, cfg config.Config, log *zap.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.pool = pool
	}

	var client *remote.Client
	if cfg.Remote.BaseURL != "" {
		client = remote.NewClient(cfg.Remote.BaseURL, config.TTLDuration(cfg.Remote.Timeout, 10*time.Second))
	}

	switch {
	case client != nil:
		b.loader = client
	case b.pool != nil:
		b.loader = pginfra.NewCourseLoader(b.pool)
	default:
		b.loader = memory.NewStaticCourseLoader(loadCatalog(cfg, log)...)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	if b.redis != nil {
		b.courses = redisinfra.NewCourseRepository(b.redis, b.loader, catalogTTL)
	} else {
		b.courses = memory.NewCourseRepository(b.loader, catalogTTL)
	}

	backend := cfg.ProgressBackend()
	switch backend {
	case config.BackendRemote:
		b.store = client
	case config.BackendPostgres:
		b.store = pginfra.NewProgressStore(b.pool)
	case config.BackendRedis:
		b.store = redisinfra.NewProgressStore(b.redis)
	default:
		b.store = memory.NewProgressStore()
	}
	log.Info("progress store selected", zap.String("backend", string(backend)))
	return b, nil
}

func loadCatalog(cfg config.Config, log *zap.Logger) []domain.Course {
	if cfg.Catalog.Path == "" {
		log.Warn("no course catalog configured")
		return nil
	}
	courses, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		log.Warn("course catalog loaded with errors", zap.String("path", cfg.Catalog.Path), zap.Int("courses", len(courses)), zap.Error(err))
	}
	return courses
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.ProgressBackend() == config.BackendPostgres {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	engine := app.NewCertificationEngine(b.store, b.courses, log.Named("certification"))
	quizzes := app.NewQuizService(b.store, b.courses, engine, log.Named("quiz"))
	rest := transport.NewRESTHandler(transport.Services{
		Courses:    b.courses,
		Store:      b.store,
		Topics:     app.NewTopicTracker(b.store, b.courses, log.Named("topics")),
		Quizzes:    quizzes,
		Certifier:  engine,
		Aggregator: app.NewProgressAggregator(b.store, b.courses, log.Named("dashboard")),
	}, log.Named("http"))
	wsHandler := transport.NewQuizWSHandler(quizzes, log.Named("ws"))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	rest.Register(mux)
	mux.HandleFunc("/ws/quiz", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting progress service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
