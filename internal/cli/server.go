package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mindquest-service/internal/app"
	"mindquest-service/internal/auth"
	"mindquest-service/internal/config"
	"mindquest-service/internal/infra/filestore"
	"mindquest-service/internal/infra/memory"
	"mindquest-service/internal/infra/postgres"
	redisinfra "mindquest-service/internal/infra/redis"
	"mindquest-service/internal/logging"
	transport "mindquest-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the MindQuest API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func loadConfig(path string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	log := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Color)
	slog.SetDefault(log)
	return cfg, log, nil
}

// backends are the storage adapters selected by configuration.
type backends struct {
	store       app.Store
	loader      app.PoolLoader
	pools       app.PoolRepository
	sessions    app.SessionRepository
	leaderboard app.LeaderboardRepository
	closers     []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg config.Config, log *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Postgres.URL != "" {
		db, err := openDB(cfg)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = db.Close() })
		if err := migrateDB(ctx, db, log); err != nil {
			b.close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		b.store = postgres.NewStore(db)
		b.loader = postgres.NewPoolLoader(pool)
		log.Info("using postgres store")
	} else {
		store := memory.NewStore()
		if err := seedCatalog(ctx, store, log); err != nil {
			return nil, err
		}
		b.store = store
		b.loader = app.NewStorePoolLoader(store)
		log.Warn("DATABASE_URL not set, using in-memory store")
	}

	poolTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	sessionTTL := config.TTLDuration(cfg.Quiz.SessionTTL, 2*time.Hour)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.pools = redisinfra.NewPoolCache(client, b.loader, poolTTL)
		b.sessions = redisinfra.NewSessionStore(client, sessionTTL)
		b.leaderboard = redisinfra.NewLeaderboard(client)
		log.Info("using redis cache", "addr", cfg.Redis.Addr)
	} else {
		b.pools = memory.NewPoolCache(b.loader, poolTTL)
		b.sessions = memory.NewSessionStore(sessionTTL)
		b.leaderboard = memory.NewLeaderboard()
	}
	return b, nil
}

// warmLeaderboard copies current balances into the ranking, which may be
// empty after a restart.
func warmLeaderboard(ctx context.Context, store app.Store, repo app.LeaderboardRepository, size int) error {
	users, err := store.TopUsers(ctx, size)
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := repo.Record(ctx, u.ID, u.Name, u.Points); err != nil {
			return err
		}
	}
	return nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
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
	defer b.close()

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("JWT_SECRET not set, tokens will not survive a restart")
	}
	tokens, err := auth.NewTokens(secret, cfg.Auth.RefreshSecret,
		config.TTLDuration(cfg.Auth.AccessTTL, 0), config.TTLDuration(cfg.Auth.RefreshTTL, 0))
	if err != nil {
		return err
	}
	files, err := filestore.NewLocal(cfg.Uploads.Dir, cfg.Uploads.PublicPrefix, cfg.Uploads.AvatarSize)
	if err != nil {
		return err
	}

	feed := app.NewLeaderboardFeed(b.leaderboard, b.store, cfg.Leaderboard.Size, log)
	if err := warmLeaderboard(ctx, b.store, b.leaderboard, 100); err != nil {
		log.Warn("leaderboard warm-up failed", "err", err)
	}
	ledger := app.NewLedger()

	svc := transport.Services{
		Auth:        app.NewAuthService(b.store, tokens, auth.NewHasher(0), auth.NewGoogleVerifier(cfg.Auth.GoogleClientID), cfg.Auth.AdminEmails, log),
		Quiz:        app.NewQuizService(b.store, b.pools, b.sessions, ledger, feed, log, app.WithQuestionsPerAttempt(cfg.Quiz.QuestionsPerAttempt)),
		Points:      app.NewPointsService(b.store, ledger, feed, log),
		Rewards:     app.NewRewardService(b.store, ledger, feed, log),
		Community:   app.NewCommunityService(b.store),
		Users:       app.NewUserService(b.store, files),
		Leaderboard: feed,
	}
	api := transport.NewApp(svc, tokens, log, transport.Options{
		UploadsDir:    files.Dir(),
		UploadsPrefix: cfg.Uploads.PublicPrefix,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewHandler(api, transport.NewLeaderboardWS(feed, log)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting mindquest service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
