package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"course-progress-service/internal/domain"
)

// ProgressStore is the client-local fallback implementation of app.ProgressStore.
// Records are kept as JSON documents under progress-{userId}-{courseId}, like a browser key-value store.
type ProgressStore struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string][]byte
}

func NewProgressStore() *ProgressStore {
	return NewProgressStoreWithClock(time.Now)
}

// NewProgressStoreWithClock allows deterministic timestamps in tests.
func NewProgressStoreWithClock(now func() time.Time) *ProgressStore {
	return &ProgressStore{now: now, items: make(map[string][]byte)}
}

func (s *ProgressStore) Load(_ context.Context, userID, courseID string) (domain.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(userID, courseID)
}

func (s *ProgressStore) SaveTopicCompletion(_ context.Context, userID, courseID string, topicIndex int, completed bool) (domain.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.loadLocked(userID, courseID)
	if err != nil {
		return domain.ProgressRecord{}, err
	}
	record.CompletedTopics = record.WithTopic(topicIndex, completed)
	return s.storeLocked(record)
}

func (s *ProgressStore) SaveQuizResult(_ context.Context, userID, courseID string, score int, passed bool) (domain.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.loadLocked(userID, courseID)
	if err != nil {
		return domain.ProgressRecord{}, err
	}
	record.LatestQuizScore = &score
	if passed && record.CertifiedAt == nil {
		certifiedAt := s.now().UTC()
		record.CertifiedAt = &certifiedAt
	}
	return s.storeLocked(record)
}

func (s *ProgressStore) loadLocked(userID, courseID string) (domain.ProgressRecord, error) {
	raw, ok := s.items[domain.ProgressKey(userID, courseID)]
	if !ok {
		return domain.NewProgressRecord(userID, courseID), nil
	}
	var doc domain.ProgressDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.ProgressRecord{}, fmt.Errorf("%w: decode %s: %v", domain.ErrPersistenceUnavailable, domain.ProgressKey(userID, courseID), err)
	}
	return domain.RecordFromDocument(userID, courseID, doc), nil
}

func (s *ProgressStore) storeLocked(record domain.ProgressRecord) (domain.ProgressRecord, error) {
	record.LastUpdated = s.now().UTC()
	raw, err := json.Marshal(record.Document())
	if err != nil {
		return domain.ProgressRecord{}, fmt.Errorf("%w: encode progress: %v", domain.ErrPersistenceUnavailable, err)
	}
	s.items[domain.ProgressKey(record.UserID, record.CourseID)] = raw
	return record, nil
}
