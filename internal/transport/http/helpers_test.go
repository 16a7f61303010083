package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"course-progress-service/internal/app"
	"course-progress-service/internal/domain"
	"course-progress-service/internal/infra/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.ProgressStore) {
	t.Helper()
	store := memory.NewProgressStore()
	courses := memory.NewCourseRepository(memory.NewStaticCourseLoader(sampleCourse()), time.Minute)
	engine := app.NewCertificationEngine(store, courses, nil)
	quizzes := app.NewQuizService(store, courses, engine, nil)

	mux := http.NewServeMux()
	NewRESTHandler(Services{
		Courses:    courses,
		Store:      store,
		Topics:     app.NewTopicTracker(store, courses, nil),
		Quizzes:    quizzes,
		Certifier:  engine,
		Aggregator: app.NewProgressAggregator(store, courses, nil),
	}, nil).Register(mux)
	mux.HandleFunc("/ws/quiz", NewQuizWSHandler(quizzes, nil).ServeWS)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store
}

func sampleCourse() domain.Course {
	return domain.Course{
		ID:       "go-101",
		Title:    "Go Basics",
		Duration: "2h",
		Topics: []domain.Topic{
			{Title: "Packages"},
			{Title: "Types"},
		},
		Quiz: []domain.QuizQuestion{
			{Question: "Keyword that starts a goroutine?", Options: []string{"go", "async"}, CorrectAnswer: "go"},
			{Question: "What connects goroutines?", Options: []string{"Channels", "Pipes"}, CorrectAnswer: "Channels"},
		},
	}
}
