package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"celeb-trivia-service/internal/app"
	"celeb-trivia-service/internal/catalog"
	"celeb-trivia-service/internal/infra/memory"
	"celeb-trivia-service/internal/infra/postgres"
	pgmigrations "celeb-trivia-service/internal/infra/postgres/migrations"
	infraredis "celeb-trivia-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestPlayThroughOnPostgres(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateUp(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	seedCatalog(t, ctx, pool, "2026.10.1", sampleCatalog())
	loader := postgres.NewCatalogLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	store := postgres.NewProgressStore(pool)
	service, err := app.NewGameService(app.Dependencies{
		Catalog:     memory.NewCatalogRepository(loader, time.Minute),
		Progress:    store,
		Leaderboard: infraredis.NewLeaderboardCache(redisClient, store, time.Minute),
		Assets:      staticAssets{},
		Rand:        zeroRand{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ann, err := service.CreateUser(ctx, "ann")
	if err != nil {
		t.Fatalf("create ann: %v", err)
	}
	ben, err := service.CreateUser(ctx, "ben")
	if err != nil {
		t.Fatalf("create ben: %v", err)
	}
	if _, err := service.CreateUser(ctx, "ann"); err == nil {
		t.Fatalf("expected duplicate username to fail")
	}

	q, ok, err := service.GetQuestion(ctx, app.QuestionRequest{Category: "actors", Level: "level_1", GuessedNames: []string{"bob"}})
	if err != nil || !ok {
		t.Fatalf("get question: ok=%v err=%v", ok, err)
	}
	if q.Target != "alice" || len(q.DistractorNames) != 1 || q.DistractorNames[0] != "bob" {
		t.Fatalf("unexpected question %+v", q)
	}

	// Warm the cached leaderboard so the reward has to invalidate it.
	if _, err := service.Leaderboard(ctx, ""); err != nil {
		t.Fatalf("leaderboard: %v", err)
	}

	res, err := service.ApplyReward(ctx, app.RewardRequest{UserID: ann.ID, Category: "actors", Level: "1", Points: 20, GuessedNames: []string{"alice", "BOB"}})
	if err != nil {
		t.Fatalf("apply reward: %v", err)
	}
	if !res.LevelUp || res.EndGame {
		t.Fatalf("expected level up, got %+v", res)
	}
	res, err = service.ApplyReward(ctx, app.RewardRequest{UserID: ann.ID, Category: "actors", Level: "2", Points: 15, GuessedNames: []string{"carol"}})
	if err != nil {
		t.Fatalf("apply reward level 2: %v", err)
	}
	if res.LevelUp || !res.EndGame {
		t.Fatalf("expected end game, got %+v", res)
	}
	// A lower score never replaces the best one.
	if _, err := service.ApplyReward(ctx, app.RewardRequest{UserID: ann.ID, Category: "actors", Level: "1", Points: 5}); err != nil {
		t.Fatalf("apply lower reward: %v", err)
	}
	if _, err := service.ApplyReward(ctx, app.RewardRequest{UserID: ben.ID, Category: "actors", Level: "2", Points: 0}); err != nil {
		t.Fatalf("apply zero reward ben: %v", err)
	}
	if benProgress, err := service.UserProgress(ctx, ben.ID); err != nil || len(benProgress.Categories) != 0 {
		t.Fatalf("expected a 0-point reward to store nothing, got %+v err=%v", benProgress, err)
	}
	if _, err := service.ApplyReward(ctx, app.RewardRequest{UserID: ben.ID, Category: "actors", Level: "1", Points: 10, GuessedNames: []string{"alice"}}); err != nil {
		t.Fatalf("apply reward ben: %v", err)
	}

	progress, err := service.UserProgress(ctx, ann.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.User.TotalPoints != 35 {
		t.Fatalf("expected total 35, got %d", progress.User.TotalPoints)
	}
	if levels := progress.Categories["actors"]; len(levels) != 2 || levels[0].Points != 20 || len(levels[0].GuessedNames) != 2 {
		t.Fatalf("unexpected actors progress %+v", levels)
	}

	board, err := service.Leaderboard(ctx, ben.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board.Entries) != 2 || board.Entries[0].UserID != ann.ID || board.Entries[0].Points != 35 {
		t.Fatalf("expected ann leading with 35, got %+v", board.Entries)
	}
	if board.UserRank == nil || board.UserRank.Rank != 2 {
		t.Fatalf("expected ben ranked 2, got %+v", board.UserRank)
	}

	if err := service.DeleteUser(ctx, ann.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := service.UserProgress(ctx, ann.ID); err == nil {
		t.Fatalf("expected deleted user to be gone")
	}
	board, err = service.Leaderboard(ctx, "")
	if err != nil {
		t.Fatalf("leaderboard after delete: %v", err)
	}
	if len(board.Entries) != 1 || board.Entries[0].UserID != ben.ID || board.Entries[0].Rank != 1 {
		t.Fatalf("expected only ben after delete, got %+v", board.Entries)
	}
}

func TestLatestCatalogArtifactWins(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateUp(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := postgres.NewCatalogLoader(pool)
	if _, err := loader.LoadCatalog(ctx); err == nil {
		t.Fatalf("expected an error before any artifact is stored")
	}

	first := sampleCatalog()
	seedCatalog(t, ctx, pool, "v1", first)
	second := sampleCatalog()
	second.Names["1"]["actors"] = append(second.Names["1"]["actors"], "dora")
	second.Records["1"]["dora"] = catalog.RecordData{Facts: []string{"d"}, Categories: []string{"actors"}}
	seedCatalog(t, ctx, pool, "v2", second)

	doc, err := loader.LoadCatalog(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Version != "v2" || len(doc.Names["1"]["actors"]) != 3 {
		t.Fatalf("expected v2 with three actors, got %s %v", doc.Version, doc.Names["1"]["actors"])
	}
}

// seedCatalog stores doc the way the content pipeline ships artifacts.
func seedCatalog(t *testing.T, ctx context.Context, pool *pgxpool.Pool, version string, doc catalog.Document) {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal catalog: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO catalog_artifacts (version, data, created_at) VALUES ($1, $2::jsonb, clock_timestamp())`,
		version, string(data),
	); err != nil {
		t.Fatalf("insert catalog %s: %v", version, err)
	}
}

func sampleCatalog() catalog.Document {
	record := func(category string, facts ...string) catalog.RecordData {
		return catalog.RecordData{Facts: facts, Categories: []string{category}}
	}
	return catalog.Document{
		Names: map[string]map[string][]string{
			"1": {"actors": {"alice", "bob"}},
			"2": {"actors": {"carol"}},
		},
		Records: map[string]map[string]catalog.RecordData{
			"1": {"alice": record("actors", "a1", "a2"), "bob": record("actors", "b1")},
			"2": {"carol": record("actors", "c1")},
		},
		Categories: map[string]catalog.CategoryData{"actors": {Levels: 2}},
	}
}

type staticAssets struct{}

func (staticAssets) ImageURL(name string) string { return "/images/" + name + ".jpg" }

type zeroRand struct{}

func (zeroRand) Intn(int) int { return 0 }

func migrateUp(t *testing.T, ctx context.Context, dsn string) {
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
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "trivia"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
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
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/trivia?sslmode=disable", host, port.Port())
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
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
