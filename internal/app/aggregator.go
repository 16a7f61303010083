package app

import (
	"context"

	"course-progress-service/internal/domain"
	"go.uber.org/zap"
)

// ProgressAggregator joins the course catalog with a learner's progress for dashboards. It never writes.
type ProgressAggregator struct {
	store   ProgressStore
	courses CourseRepository
	log     *zap.Logger
}

func NewProgressAggregator(store ProgressStore, courses CourseRepository, log *zap.Logger) *ProgressAggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProgressAggregator{store: store, courses: courses, log: log}
}

// Dashboard returns one row per available course. A catalog error is returned alongside
// whatever courses did load; a progress failure for one course yields an unattempted row for it.
func (a *ProgressAggregator) Dashboard(ctx context.Context, userID string) ([]domain.DashboardRow, error) {
	courses, catalogErr := a.courses.ListCourses(ctx)
	if catalogErr != nil {
		a.log.Warn("course catalog incomplete", zap.Int("loaded", len(courses)), zap.Error(catalogErr))
	}

	rows := make([]domain.DashboardRow, 0, len(courses))
	for _, course := range courses {
		row := domain.DashboardRow{
			CourseID:       course.ID,
			CourseTitle:    course.Title,
			TotalQuestions: len(course.Quiz),
		}
		record, err := a.store.Load(ctx, userID, course.ID)
		if err != nil {
			a.log.Warn("progress unavailable for dashboard row",
				zap.String("user_id", userID),
				zap.String("course_id", course.ID),
				zap.Error(err))
			rows = append(rows, row)
			continue
		}
		row.CompletionRatio = CompletionRatio(record, course)
		if record.HasAttempt() {
			row.Attempted = true
			row.Score = *record.LatestQuizScore
			row.Percentage = Percentage(row.Score, row.TotalQuestions)
		}
		row.CertificateAvailable = QuizPassed(record, row.TotalQuestions)
		rows = append(rows, row)
	}
	return rows, catalogErr
}

// Completed returns only the courses with a recorded quiz attempt.
func (a *ProgressAggregator) Completed(ctx context.Context, userID string) ([]domain.DashboardRow, error) {
	rows, err := a.Dashboard(ctx, userID)
	completed := make([]domain.DashboardRow, 0, len(rows))
	for _, row := range rows {
		if row.Attempted {
			completed = append(completed, row)
		}
	}
	return completed, err
}
