package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"course-progress-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const progressColumns = `completed_topics, quiz_score, certified_at, last_updated`

// ProgressStore is the authoritative app.ProgressStore backed by the progress table.
// Topic writes add or remove one array element under the row lock, so concurrent toggles of different topics both land.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

func (s *ProgressStore) Load(ctx context.Context, userID, courseID string) (domain.ProgressRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+progressColumns+` FROM progress WHERE user_id=$1 AND course_id=$2`,
		userID, courseID)
	record, err := scanRecord(userID, courseID, row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewProgressRecord(userID, courseID), nil
	}
	if err != nil {
		return domain.ProgressRecord{}, unavailable(err)
	}
	return record, nil
}

func (s *ProgressStore) SaveTopicCompletion(ctx context.Context, userID, courseID string, topicIndex int, completed bool) (domain.ProgressRecord, error) {
	query := `
INSERT INTO progress (user_id, course_id, completed_topics, last_updated)
VALUES ($1, $2, ARRAY[$3::int], now())
ON CONFLICT (user_id, course_id) DO UPDATE
SET completed_topics = array_append(array_remove(progress.completed_topics, $3::int), $3::int),
    last_updated = now()
RETURNING ` + progressColumns
	if !completed {
		query = `
INSERT INTO progress (user_id, course_id, completed_topics, last_updated)
VALUES ($1, $2, array_remove(ARRAY[$3::int], $3::int), now())
ON CONFLICT (user_id, course_id) DO UPDATE
SET completed_topics = array_remove(progress.completed_topics, $3::int),
    last_updated = now()
RETURNING ` + progressColumns
	}
	record, err := scanRecord(userID, courseID, s.pool.QueryRow(ctx, query, userID, courseID, topicIndex))
	if err != nil {
		return domain.ProgressRecord{}, unavailable(err)
	}
	return record, nil
}

func (s *ProgressStore) SaveQuizResult(ctx context.Context, userID, courseID string, score int, passed bool) (domain.ProgressRecord, error) {
	const query = `
INSERT INTO progress (user_id, course_id, quiz_score, certified_at, last_updated)
VALUES ($1, $2, $3, CASE WHEN $4::bool THEN now() END, now())
ON CONFLICT (user_id, course_id) DO UPDATE
SET quiz_score = EXCLUDED.quiz_score,
    certified_at = COALESCE(progress.certified_at, EXCLUDED.certified_at),
    last_updated = now()
RETURNING ` + progressColumns
	record, err := scanRecord(userID, courseID, s.pool.QueryRow(ctx, query, userID, courseID, score, passed))
	if err != nil {
		return domain.ProgressRecord{}, unavailable(err)
	}
	return record, nil
}

func scanRecord(userID, courseID string, row pgx.Row) (domain.ProgressRecord, error) {
	var (
		topics      []int32
		score       *int32
		certifiedAt *time.Time
		lastUpdated time.Time
	)
	if err := row.Scan(&topics, &score, &certifiedAt, &lastUpdated); err != nil {
		return domain.ProgressRecord{}, err
	}
	record := domain.NewProgressRecord(userID, courseID)
	completed := make([]int, 0, len(topics))
	for _, idx := range topics {
		completed = append(completed, int(idx))
	}
	record.CompletedTopics = domain.NormalizeTopics(completed)
	if score != nil {
		s := int(*score)
		record.LatestQuizScore = &s
	}
	if certifiedAt != nil {
		t := certifiedAt.UTC()
		record.CertifiedAt = &t
	}
	record.LastUpdated = lastUpdated.UTC()
	return record, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: postgres: %v", domain.ErrPersistenceUnavailable, err)
}
