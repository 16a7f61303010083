package app_test

import (
	"context"
	"fmt"
	"time"

	"course-progress-service/internal/app"
	"course-progress-service/internal/domain"
	"course-progress-service/internal/infra/memory"
)

type fixture struct {
	store      *flakyStore
	courses    *memory.CourseRepository
	topics     *app.TopicTracker
	engine     *app.CertificationEngine
	quizzes    *app.QuizService
	aggregator *app.ProgressAggregator
}

func newFixture(courses ...domain.Course) *fixture {
	if len(courses) == 0 {
		courses = []domain.Course{fiveByFive()}
	}
	store := &flakyStore{ProgressStore: memory.NewProgressStore()}
	repo := memory.NewCourseRepository(memory.NewStaticCourseLoader(courses...), time.Minute)
	engine := app.NewCertificationEngine(store, repo, nil)
	return &fixture{
		store:      store,
		courses:    repo,
		topics:     app.NewTopicTracker(store, repo, nil),
		engine:     engine,
		quizzes:    app.NewQuizService(store, repo, engine, nil),
		aggregator: app.NewProgressAggregator(store, repo, nil),
	}
}

// flakyStore fails every call while down is set, and fails Load for courses in failLoad.
type flakyStore struct {
	*memory.ProgressStore
	down     bool
	failLoad map[string]bool
}

func (s *flakyStore) Load(ctx context.Context, userID, courseID string) (domain.ProgressRecord, error) {
	if s.down || s.failLoad[courseID] {
		return domain.ProgressRecord{}, fmt.Errorf("%w: backend offline", domain.ErrPersistenceUnavailable)
	}
	return s.ProgressStore.Load(ctx, userID, courseID)
}

func (s *flakyStore) SaveTopicCompletion(ctx context.Context, userID, courseID string, topicIndex int, completed bool) (domain.ProgressRecord, error) {
	if s.down {
		return domain.ProgressRecord{}, fmt.Errorf("%w: backend offline", domain.ErrPersistenceUnavailable)
	}
	return s.ProgressStore.SaveTopicCompletion(ctx, userID, courseID, topicIndex, completed)
}

func (s *flakyStore) SaveQuizResult(ctx context.Context, userID, courseID string, score int, passed bool) (domain.ProgressRecord, error) {
	if s.down {
		return domain.ProgressRecord{}, fmt.Errorf("%w: backend offline", domain.ErrPersistenceUnavailable)
	}
	return s.ProgressStore.SaveQuizResult(ctx, userID, courseID, score, passed)
}

// fiveByFive has five topics and five questions whose correct answer is always "a".
func fiveByFive() domain.Course {
	course := domain.Course{ID: "course-5", Title: "Five Topics", Duration: "1h"}
	for i := 0; i < 5; i++ {
		course.Topics = append(course.Topics, domain.Topic{Title: fmt.Sprintf("Topic %d", i)})
		course.Quiz = append(course.Quiz, domain.QuizQuestion{
			Question:      fmt.Sprintf("Question %d", i),
			Options:       []string{"a", "b", "c"},
			CorrectAnswer: "a",
		})
	}
	return course
}

func completeAllTopics(f *fixture, userID, courseID string, n int) {
	for i := 0; i < n; i++ {
		if _, err := f.store.SaveTopicCompletion(context.Background(), userID, courseID, i, true); err != nil {
			panic(err)
		}
	}
}

// answers returns k correct answers followed by wrong ones, n in total.
func answers(k, n int) []string {
	out := make([]string, n)
	for i := range out {
		if i < k {
			out[i] = "a"
		} else {
			out[i] = "b"
		}
	}
	return out
}
