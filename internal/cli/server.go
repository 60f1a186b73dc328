package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"team-duel-service/internal/app"
	"team-duel-service/internal/config"
	"team-duel-service/internal/domain"
	inframemory "team-duel-service/internal/infra/memory"
	infrapostgres "team-duel-service/internal/infra/postgres"
	infraredis "team-duel-service/internal/infra/redis"
	"team-duel-service/internal/logger"
	transport "team-duel-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the duel server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Server.LogLevel)

	if cfg.Postgres.URL != "" {
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var repo app.MatchRepository
	var sink app.RewardSink
	switch {
	case pool != nil:
		repo = infrapostgres.NewMatchStore(pool)
		sink = infrapostgres.NewRewardSink(pool)
	case redisClient != nil:
		repo = infraredis.NewMatchRepository(redisClient)
		sink = inframemory.NewRewardSink(log)
	default:
		repo = inframemory.NewMatchRepository()
		sink = inframemory.NewRewardSink(log)
	}

	directoryTTL := config.DurationOr(cfg.Directory.TTL, 10*time.Minute)
	directory := inframemory.NewMemberDirectory(
		inframemory.NewStaticMemberLoader(cfg.Directory.Names), directoryTTL)

	// With Redis, all transitions travel through the event channel and
	// the bridge is the single feed into the hub, so views produced on
	// other instances reach local websocket clients the same way.
	hub := transport.NewHub()
	var notifier app.Notifier = hub
	if redisClient != nil {
		notifier = infraredis.NewEventPublisher(redisClient, log)
		bridge := infraredis.NewEventBridge(redisClient, hub, log)
		if err := bridge.Start(ctx); err != nil {
			return err
		}
		defer bridge.Stop()
	}

	rewards := app.NewRewardDistributor(sink, log)
	manager := app.NewCompetitionManager(repo, rewards, directory, notifier, log)

	sweepInterval := config.DurationOr(cfg.Competition.SweepInterval, 15*time.Second)
	sweeper := app.NewTurnSweeper(manager, repo, sweepInterval, log)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	if pool == nil && redisClient == nil {
		seedDemoMatch(ctx, manager, log)
	}

	wsHandler := transport.NewWSHandler(manager, hub, log)
	apiHandler := transport.NewAPIHandler(manager, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	apiHandler.Register(mux)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting duel service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedDemoMatch creates a small in-memory duel so the service is
// playable out of the box; real matches come from the authoring step
// through POST /api/matches.
func seedDemoMatch(ctx context.Context, manager *app.CompetitionManager, log zerolog.Logger) {
	view, err := manager.CreateMatch(ctx, app.MatchParams{
		TeamA:            []string{"u1", "u2"},
		TeamB:            []string{"u3", "u4"},
		StartingTurn:     domain.TeamA,
		RewardPoints:     50,
		DrawPoints:       20,
		TimeLimitSeconds: 60,
		Questions: []app.QuestionSpec{
			{
				AssignedTeam: domain.TeamA,
				Prompt:       "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "o1", Text: "3"},
					{ID: "o2", Text: "4"},
					{ID: "o3", Text: "5"},
				},
				CorrectOption: "o2",
			},
			{
				AssignedTeam: domain.TeamB,
				Prompt:       "What is 3 x 3?",
				Options: []domain.Option{
					{ID: "o1", Text: "6"},
					{ID: "o2", Text: "9"},
				},
				CorrectOption: "o2",
			},
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("seed demo match")
		return
	}
	log.Info().Str("matchID", view.MatchID).Msg("seeded demo match")
}
