package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"course-progress-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	fieldScore       = "score"
	fieldCertifiedAt = "certifiedAt"
	fieldLastUpdated = "lastUpdated"
	topicPrefix      = "topic:"
)

// ProgressStore keeps each learner's course progress in one Redis hash at progress-{userId}-{courseId}:
//
//	topic:{index}  "1" while the topic is completed
//	score          latest final quiz score
//	certifiedAt    first passing attempt (RFC3339), set with HSETNX
//	lastUpdated    time of the last write
//
// Every write runs in MULTI/EXEC and reads the hash back in the same transaction.
type ProgressStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client, now: time.Now}
}

func (s *ProgressStore) Load(ctx context.Context, userID, courseID string) (domain.ProgressRecord, error) {
	fields, err := s.client.HGetAll(ctx, domain.ProgressKey(userID, courseID)).Result()
	if err != nil {
		return domain.ProgressRecord{}, unavailable(err)
	}
	return decodeRecord(userID, courseID, fields), nil
}

func (s *ProgressStore) SaveTopicCompletion(ctx context.Context, userID, courseID string, topicIndex int, completed bool) (domain.ProgressRecord, error) {
	key := domain.ProgressKey(userID, courseID)
	var all *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if completed {
			pipe.HSet(ctx, key, domain.TopicField(topicIndex), "1")
		} else {
			pipe.HDel(ctx, key, domain.TopicField(topicIndex))
		}
		pipe.HSet(ctx, key, fieldLastUpdated, s.timestamp())
		all = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return domain.ProgressRecord{}, unavailable(err)
	}
	return decodeRecord(userID, courseID, all.Val()), nil
}

func (s *ProgressStore) SaveQuizResult(ctx context.Context, userID, courseID string, score int, passed bool) (domain.ProgressRecord, error) {
	key := domain.ProgressKey(userID, courseID)
	now := s.timestamp()
	var all *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldScore, score, fieldLastUpdated, now)
		if passed {
			pipe.HSetNX(ctx, key, fieldCertifiedAt, now)
		}
		all = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return domain.ProgressRecord{}, unavailable(err)
	}
	return decodeRecord(userID, courseID, all.Val()), nil
}

func (s *ProgressStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func decodeRecord(userID, courseID string, fields map[string]string) domain.ProgressRecord {
	record := domain.NewProgressRecord(userID, courseID)
	topics := make([]int, 0, len(fields))
	for field, value := range fields {
		switch {
		case strings.HasPrefix(field, topicPrefix):
			if idx, err := strconv.Atoi(strings.TrimPrefix(field, topicPrefix)); err == nil {
				topics = append(topics, idx)
			}
		case field == fieldScore:
			if score, err := strconv.Atoi(value); err == nil {
				record.LatestQuizScore = &score
			}
		case field == fieldCertifiedAt:
			if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
				record.CertifiedAt = &t
			}
		case field == fieldLastUpdated:
			if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
				record.LastUpdated = t
			}
		}
	}
	record.CompletedTopics = domain.NormalizeTopics(topics)
	return record
}

func unavailable(err error) error {
	return fmt.Errorf("%w: redis: %v", domain.ErrPersistenceUnavailable, err)
}
