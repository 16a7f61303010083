package app

import (
	"context"

	"course-progress-service/internal/domain"
)

// ProgressStore abstracts durable progress persistence (remote service, Postgres, Redis, in-memory).
// Load returns the empty default record when nothing is stored; absence is not an error.
// Backend failures are reported as domain.ErrPersistenceUnavailable and leave stored state untouched.
type ProgressStore interface {
	Load(ctx context.Context, userID, courseID string) (domain.ProgressRecord, error)
	// SaveTopicCompletion sets or clears a single topic index. Writes to different indices never clobber each other.
	SaveTopicCompletion(ctx context.Context, userID, courseID string, topicIndex int, completed bool) (domain.ProgressRecord, error)
	// SaveQuizResult replaces the latest score. When passed is true the certification time is set if absent.
	SaveQuizResult(ctx context.Context, userID, courseID string, score int, passed bool) (domain.ProgressRecord, error)
}

// CourseRepository loads course content (from cache/backing store).
type CourseRepository interface {
	GetCourse(ctx context.Context, courseID string) (domain.Course, error)
	// ListCourses may return a partial catalog together with an error.
	ListCourses(ctx context.Context) ([]domain.Course, error)
}
