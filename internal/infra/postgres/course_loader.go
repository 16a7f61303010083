package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"course-progress-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CourseLoader loads course JSONB from Postgres.
type CourseLoader struct {
	pool *pgxpool.Pool
}

func NewCourseLoader(pool *pgxpool.Pool) *CourseLoader {
	return &CourseLoader{pool: pool}
}

func (l *CourseLoader) LoadCourse(ctx context.Context, courseID string) (domain.Course, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM courses WHERE id=$1`, courseID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Course{}, fmt.Errorf("%w: %s", domain.ErrCourseNotFound, courseID)
	}
	if err != nil {
		return domain.Course{}, fmt.Errorf("load course: %w", err)
	}
	return decodeCourse(courseID, raw)
}

// ListCourses returns courses in creation order. Rows that fail to decode are skipped
// and reported in the returned error alongside the rest of the catalog.
func (l *CourseLoader) ListCourses(ctx context.Context) ([]domain.Course, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, data FROM courses ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var (
		courses []domain.Course
		errs    []error
	)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			errs = append(errs, err)
			continue
		}
		course, err := decodeCourse(id, raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		errs = append(errs, err)
	}
	return courses, errors.Join(errs...)
}

// UpsertCourse stores course content, keeping the original creation time.
func (l *CourseLoader) UpsertCourse(ctx context.Context, course domain.Course) error {
	data, err := json.Marshal(course)
	if err != nil {
		return fmt.Errorf("marshal course: %w", err)
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO courses (id, data) VALUES ($1, $2::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`,
		course.ID, string(data))
	if err != nil {
		return fmt.Errorf("upsert course %s: %w", course.ID, err)
	}
	return nil
}

func decodeCourse(courseID string, raw []byte) (domain.Course, error) {
	var course domain.Course
	if err := json.Unmarshal(raw, &course); err != nil {
		return domain.Course{}, fmt.Errorf("unmarshal course %s: %w", courseID, err)
	}
	if course.ID == "" {
		course.ID = courseID
	}
	return course, nil
}
