package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"team-duel-service/internal/app"
	"team-duel-service/internal/domain"
	"team-duel-service/internal/infra/memory"
	"team-duel-service/internal/infra/postgres"
	pgmigrations "team-duel-service/internal/infra/postgres/migrations"
	infraredis "team-duel-service/internal/infra/redis"
)

func duelParams() app.MatchParams {
	return app.MatchParams{
		TeamA:        []string{"a1", "a2"},
		TeamB:        []string{"b1"},
		RewardPoints: 50,
		DrawPoints:   20,
		Questions: []app.QuestionSpec{
			{AssignedTeam: domain.TeamA, Prompt: "2+2?", Options: []domain.Option{{ID: "o1", Text: "4"}, {ID: "o2", Text: "5"}}, CorrectOption: "o1"},
			{AssignedTeam: domain.TeamB, Prompt: "3+3?", Options: []domain.Option{{ID: "o1", Text: "6"}, {ID: "o2", Text: "7"}}, CorrectOption: "o1"},
		},
	}
}

// playOut drives the duel to completion: team A answers correctly, team
// B answers wrong, so A wins 1-0.
func playOut(t *testing.T, manager *app.CompetitionManager, matchID string) domain.MatchView {
	t.Helper()
	ctx := context.Background()

	view, err := manager.GetMatch(ctx, matchID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	view, err = manager.SubmitAnswer(ctx, matchID, domain.TeamA, "a1", view.NextQuestion.QuestionID, "o1")
	if err != nil {
		t.Fatalf("team A answer: %v", err)
	}
	if view.ScoreA != 1 || view.Turn != domain.TeamB {
		t.Fatalf("expected 1-0 with team B on turn, got %+v", view)
	}
	view, err = manager.SubmitAnswer(ctx, matchID, domain.TeamB, "b1", view.NextQuestion.QuestionID, "o2")
	if err != nil {
		t.Fatalf("team B answer: %v", err)
	}
	if view.Status != domain.MatchCompleted || view.Winner != domain.WinnerTeamA {
		t.Fatalf("expected team A win, got %+v", view)
	}
	return view
}

func TestDuelOnPostgresEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	dsn, cleanup := startPostgres(t, ctx)
	defer cleanup()
	migrateDB(t, ctx, dsn)

	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	log := zerolog.Nop()
	store := postgres.NewMatchStore(pool)
	sink := postgres.NewRewardSink(pool)
	manager := app.NewCompetitionManager(store, app.NewRewardDistributor(sink, log), nil, nil, log)

	created, err := manager.CreateMatch(ctx, duelParams())
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	playOut(t, manager, created.MatchID)

	// Settlement must land exactly one row per winning member.
	rows, err := pool.Query(ctx, `SELECT member_id, points FROM member_points WHERE match_id = $1 ORDER BY member_id`, created.MatchID)
	if err != nil {
		t.Fatalf("query points: %v", err)
	}
	defer rows.Close()
	credits := map[string]int{}
	for rows.Next() {
		var memberID string
		var points int
		if err := rows.Scan(&memberID, &points); err != nil {
			t.Fatalf("scan: %v", err)
		}
		credits[memberID] = points
	}
	if len(credits) != 2 || credits["a1"] != 50 || credits["a2"] != 50 {
		t.Fatalf("expected both team A members credited 50, got %+v", credits)
	}

	// Reloading shows the settled, closed match.
	final, err := manager.GetMatch(ctx, created.MatchID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if final.Status != domain.MatchCompleted || final.Winner != domain.WinnerTeamA {
		t.Fatalf("expected persisted completion, got %+v", final)
	}
}

func TestDuelOnRedisEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, cleanup := startRedis(t, ctx)
	defer cleanup()

	client, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	log := zerolog.Nop()
	repo := infraredis.NewMatchRepository(client)
	sink := memory.NewRewardSink(log)
	manager := app.NewCompetitionManager(repo, app.NewRewardDistributor(sink, log), nil, nil, log)

	created, err := manager.CreateMatch(ctx, duelParams())
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	playOut(t, manager, created.MatchID)

	if got := sink.Credited("a1", created.MatchID); got != 50 {
		t.Fatalf("expected a1 credited 50, got %d", got)
	}

	active, err := repo.ListActiveMatches(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("completed duel must leave the active set, got %d", len(active))
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "duel", "POSTGRES_PASSWORD": "duelpass", "POSTGRES_DB": "dueldb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://duel:duelpass@%s:%s/dueldb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
