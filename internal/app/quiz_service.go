package app

import (
	"context"
	"sync"

	"course-progress-service/internal/domain"
	"go.uber.org/zap"
)

// QuizService starts quiz attempts for learners who finished a course's topics.
type QuizService struct {
	store   ProgressStore
	courses CourseRepository
	engine  *CertificationEngine
	log     *zap.Logger
}

func NewQuizService(store ProgressStore, courses CourseRepository, engine *CertificationEngine, log *zap.Logger) *QuizService {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuizService{store: store, courses: courses, engine: engine, log: log}
}

// Start opens a quiz session. A previously scored attempt is restored as a locked result;
// the caller must Retake to answer again.
func (s *QuizService) Start(ctx context.Context, userID, courseID string) (*QuizSession, error) {
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := validateQuiz(course); err != nil {
		return nil, err
	}
	record, err := s.store.Load(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if !QuizUnlocked(record, course) {
		return nil, domain.ErrQuizNotUnlocked
	}

	session := &QuizSession{
		userID:   userID,
		courseID: courseID,
		course:   course,
		engine:   s.engine,
	}
	if record.HasAttempt() {
		score := *record.LatestQuizScore
		session.state = domain.QuizAttemptState{QuestionIndex: len(course.Quiz) - 1, Score: score, Locked: true}
		session.result = restoredResult(record, course)
	}
	s.log.Debug("quiz session started",
		zap.String("user_id", userID),
		zap.String("course_id", courseID),
		zap.Bool("locked", session.state.Locked))
	return session, nil
}

// Advance applies one answer to an attempt state. It reports whether the answer completed the attempt.
// A locked state is returned unchanged.
func Advance(course domain.Course, state domain.QuizAttemptState, chosen string) (domain.QuizAttemptState, bool) {
	if state.Locked || state.QuestionIndex < 0 || state.QuestionIndex >= len(course.Quiz) {
		return state, false
	}
	next := state
	if chosen == course.Quiz[state.QuestionIndex].CorrectAnswer {
		next.Score++
	}
	if state.QuestionIndex+1 < len(course.Quiz) {
		next.QuestionIndex++
		return next, false
	}
	next.Locked = true
	return next, true
}

// QuizSession drives one learner's attempt at a course quiz. It is safe for concurrent use;
// duplicate answers after completion are ignored.
type QuizSession struct {
	userID   string
	courseID string
	course   domain.Course
	engine   *CertificationEngine

	mu     sync.Mutex
	state  domain.QuizAttemptState
	result *AttemptResult
}

// State returns the current attempt state.
func (q *QuizSession) State() domain.QuizAttemptState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Result returns the completed attempt's outcome, or nil while in progress.
func (q *QuizSession) Result() *AttemptResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.result
}

// Current returns the question awaiting an answer. ok is false once the attempt is locked.
func (q *QuizSession) Current() (domain.QuizQuestion, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state.Locked {
		return domain.QuizQuestion{}, false
	}
	return q.course.Quiz[q.state.QuestionIndex], true
}

// TotalQuestions is the number of questions in the attempt.
func (q *QuizSession) TotalQuestions() int {
	return len(q.course.Quiz)
}

// Answer scores the chosen option for the current question. Answering the last question records the
// attempt; if that write fails the session stays on the last question so the answer can be resubmitted.
func (q *QuizSession) Answer(ctx context.Context, chosen string) (domain.QuizAttemptState, *AttemptResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	next, completed := Advance(q.course, q.state, chosen)
	if !completed {
		q.state = next
		return q.state, q.result, nil
	}

	result, err := q.engine.RecordAttempt(ctx, q.userID, q.courseID, next.Score, len(q.course.Quiz))
	if err != nil {
		return q.state, nil, err
	}
	q.state = next
	q.result = &result
	return q.state, q.result, nil
}

// Retake discards the transient attempt. The stored score stays until the next attempt completes.
func (q *QuizSession) Retake() domain.QuizAttemptState {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.state = domain.QuizAttemptState{}
	q.result = nil
	return q.state
}

func restoredResult(record domain.ProgressRecord, course domain.Course) *AttemptResult {
	score := *record.LatestQuizScore
	total := len(course.Quiz)
	result := &AttemptResult{
		Score:          score,
		TotalQuestions: total,
		Percentage:     Percentage(score, total),
		Passed:         Passed(score, total),
	}
	if QuizPassed(record, total) {
		cert := certificateFor(record, course)
		result.Certificate = &cert
	}
	return result
}
