package integration

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"course-progress-service/internal/app"
	"course-progress-service/internal/domain"
	pginfra "course-progress-service/internal/infra/postgres"
	pgmigrations "course-progress-service/internal/infra/postgres/migrations"
	infraredis "course-progress-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestCourseLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pginfra.NewCourseLoader(pool)
	if err := loader.UpsertCourse(ctx, sampleCourse()); err != nil {
		t.Fatalf("seed course: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	courses := infraredis.NewCourseRepository(redisClient, loader, 5*time.Minute)
	store := pginfra.NewProgressStore(pool)
	tracker := app.NewTopicTracker(store, courses, nil)
	engine := app.NewCertificationEngine(store, courses, nil)
	quizzes := app.NewQuizService(store, courses, engine, nil)
	aggregator := app.NewProgressAggregator(store, courses, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if _, err := tracker.Set(ctx, "u1", "go-101", idx, true); err != nil {
				t.Errorf("set topic %d: %v", idx, err)
			}
		}(i)
	}
	wg.Wait()

	record, ratio, err := tracker.Progress(ctx, "u1", "go-101")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if ratio != 1 || !reflect.DeepEqual(record.CompletedTopics, []int{0, 1, 2, 3, 4}) {
		t.Fatalf("expected all topics complete, got %v (%v)", record.CompletedTopics, ratio)
	}

	passed := takeQuiz(t, ctx, quizzes, 3)
	if !passed.Passed || passed.Certificate == nil {
		t.Fatalf("expected 3/5 to pass, got %+v", passed)
	}

	session, err := quizzes.Start(ctx, "u1", "go-101")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !session.State().Locked {
		t.Fatalf("expected previous attempt restored as locked")
	}
	session.Retake()
	failed := answerAll(t, ctx, session, 2)
	if failed.Passed || failed.Certificate != nil {
		t.Fatalf("expected 2/5 to fail, got %+v", failed)
	}

	rows, err := aggregator.Dashboard(ctx, "u1")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(rows) != 1 || rows[0].Score != 2 || !rows[0].CertificateAvailable {
		t.Fatalf("expected certificate kept after failed retake, got %+v", rows)
	}

	cert, err := engine.Certificate(ctx, "u1", "go-101")
	if err != nil {
		t.Fatalf("certificate: %v", err)
	}
	if cert.VerificationID != passed.Certificate.VerificationID || !cert.IssuedAt.Equal(passed.Certificate.IssuedAt) {
		t.Fatalf("certificate changed after retake: %+v vs %+v", cert, passed.Certificate)
	}
}

func TestPostgresProgressStoreWrites(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	store := pginfra.NewProgressStore(pool)

	type step struct {
		topic    int
		complete bool
		score    int
		passed   bool
		quiz     bool
	}
	cases := []struct {
		name        string
		steps       []step
		topics      []int
		score       *int
		certified   bool
		keepFirstAt bool
	}{
		{name: "unset on fresh row", steps: []step{{topic: 3}}, topics: []int{}},
		{name: "unset missing index", steps: []step{{topic: 1, complete: true}, {topic: 4}}, topics: []int{1}},
		{name: "set is idempotent", steps: []step{{topic: 2, complete: true}, {topic: 2, complete: true}}, topics: []int{2}},
		{name: "unset after set", steps: []step{{topic: 0, complete: true}, {topic: 2, complete: true}, {topic: 0}}, topics: []int{2}},
		{name: "quiz keeps topics", steps: []step{{topic: 0, complete: true}, {quiz: true, score: 1}}, topics: []int{0}, score: intPtr(1)},
		{name: "topic keeps quiz", steps: []step{{quiz: true, score: 4, passed: true}, {topic: 1, complete: true}}, topics: []int{1}, score: intPtr(4), certified: true},
		{name: "fail after pass", steps: []step{{quiz: true, score: 3, passed: true}, {quiz: true, score: 1}}, topics: []int{}, score: intPtr(1), certified: true},
		{name: "second pass keeps first time", steps: []step{{quiz: true, score: 3, passed: true}, {quiz: true, score: 5, passed: true}}, topics: []int{}, score: intPtr(5), certified: true, keepFirstAt: true},
	}
	for i, tc := range cases {
		userID := fmt.Sprintf("writer-%d", i)
		var firstCertifiedAt *time.Time
		for _, st := range tc.steps {
			var (
				record domain.ProgressRecord
				err    error
			)
			if st.quiz {
				record, err = store.SaveQuizResult(ctx, userID, "go-101", st.score, st.passed)
			} else {
				record, err = store.SaveTopicCompletion(ctx, userID, "go-101", st.topic, st.complete)
			}
			if err != nil {
				t.Fatalf("%s: save: %v", tc.name, err)
			}
			if firstCertifiedAt == nil && record.CertifiedAt != nil {
				at := *record.CertifiedAt
				firstCertifiedAt = &at
			}
		}

		record, err := store.Load(ctx, userID, "go-101")
		if err != nil {
			t.Fatalf("%s: load: %v", tc.name, err)
		}
		if !reflect.DeepEqual(record.CompletedTopics, tc.topics) {
			t.Fatalf("%s: expected topics %v, got %v", tc.name, tc.topics, record.CompletedTopics)
		}
		if (tc.score == nil) != (record.LatestQuizScore == nil) || (tc.score != nil && *tc.score != *record.LatestQuizScore) {
			t.Fatalf("%s: expected score %v, got %v", tc.name, tc.score, record.LatestQuizScore)
		}
		if tc.certified != (record.CertifiedAt != nil) {
			t.Fatalf("%s: expected certified=%v, got %v", tc.name, tc.certified, record.CertifiedAt)
		}
		if tc.keepFirstAt && !record.CertifiedAt.Equal(*firstCertifiedAt) {
			t.Fatalf("%s: certification time moved from %v to %v", tc.name, firstCertifiedAt, record.CertifiedAt)
		}
	}
}

func intPtr(v int) *int { return &v }

func takeQuiz(t *testing.T, ctx context.Context, quizzes *app.QuizService, correct int) *app.AttemptResult {
	t.Helper()
	session, err := quizzes.Start(ctx, "u1", "go-101")
	if err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	return answerAll(t, ctx, session, correct)
}

func answerAll(t *testing.T, ctx context.Context, session *app.QuizSession, correct int) *app.AttemptResult {
	t.Helper()
	var result *app.AttemptResult
	for i := 0; i < session.TotalQuestions(); i++ {
		choice := "wrong"
		if i < correct {
			choice = "right"
		}
		var err error
		if _, result, err = session.Answer(ctx, choice); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}
	return result
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "progress", "POSTGRES_PASSWORD": "progresspass", "POSTGRES_DB": "progressdb"},
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
	dsn := fmt.Sprintf("postgres://progress:progresspass@%s:%s/progressdb?sslmode=disable", host, port.Port())
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

func sampleCourse() domain.Course {
	course := domain.Course{ID: "go-101", Title: "Go Basics", Duration: "2h"}
	for i := 0; i < 5; i++ {
		course.Topics = append(course.Topics, domain.Topic{Title: fmt.Sprintf("Topic %d", i)})
		course.Quiz = append(course.Quiz, domain.QuizQuestion{
			Question:      fmt.Sprintf("Question %d", i),
			Options:       []string{"right", "wrong"},
			CorrectAnswer: "right",
		})
	}
	return course
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
