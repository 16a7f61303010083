package app

import (
	"context"
	"fmt"

	"course-progress-service/internal/domain"
	"go.uber.org/zap"
)

// Toggle flips membership of topicIndex in the record's completed set.
func Toggle(record domain.ProgressRecord, topicIndex int) []int {
	return record.WithTopic(topicIndex, !record.HasCompleted(topicIndex))
}

// CompletionRatio is the share of the course's current topics the record has completed.
// Indices beyond the current topic list are ignored. A course without topics is fully complete.
func CompletionRatio(record domain.ProgressRecord, course domain.Course) float64 {
	total := len(course.Topics)
	if total == 0 {
		return 1
	}
	done := 0
	for _, idx := range domain.NormalizeTopics(record.CompletedTopics) {
		if idx >= 0 && idx < total {
			done++
		}
	}
	return float64(done) / float64(total)
}

// QuizUnlocked reports whether every topic of the course is complete.
func QuizUnlocked(record domain.ProgressRecord, course domain.Course) bool {
	return CompletionRatio(record, course) == 1.0
}

// TopicTracker persists topic completion through the ProgressStore.
type TopicTracker struct {
	store   ProgressStore
	courses CourseRepository
	log     *zap.Logger
}

func NewTopicTracker(store ProgressStore, courses CourseRepository, log *zap.Logger) *TopicTracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &TopicTracker{store: store, courses: courses, log: log}
}

// Toggle flips one topic for the learner and returns the stored record.
// The flip is persisted as an explicit set/unset of that index, so toggles of other topics racing with it still land.
func (t *TopicTracker) Toggle(ctx context.Context, userID, courseID string, topicIndex int) (domain.ProgressRecord, error) {
	if err := t.checkTopic(ctx, courseID, topicIndex); err != nil {
		return domain.ProgressRecord{}, err
	}

	record, err := t.store.Load(ctx, userID, courseID)
	if err != nil {
		t.log.Warn("load progress failed", zap.String("user_id", userID), zap.String("course_id", courseID), zap.Error(err))
		return domain.ProgressRecord{}, err
	}
	return t.save(ctx, userID, courseID, topicIndex, !record.HasCompleted(topicIndex))
}

// Set marks one topic completed or not completed.
func (t *TopicTracker) Set(ctx context.Context, userID, courseID string, topicIndex int, completed bool) (domain.ProgressRecord, error) {
	if err := t.checkTopic(ctx, courseID, topicIndex); err != nil {
		return domain.ProgressRecord{}, err
	}
	return t.save(ctx, userID, courseID, topicIndex, completed)
}

func (t *TopicTracker) save(ctx context.Context, userID, courseID string, topicIndex int, completed bool) (domain.ProgressRecord, error) {
	saveCtx, cancel := detach(ctx)
	defer cancel()
	record, err := t.store.SaveTopicCompletion(saveCtx, userID, courseID, topicIndex, completed)
	if err != nil {
		t.log.Warn("save topic failed",
			zap.String("user_id", userID),
			zap.String("course_id", courseID),
			zap.Int("topic", topicIndex),
			zap.Error(err))
		return domain.ProgressRecord{}, err
	}
	return record, nil
}

func (t *TopicTracker) checkTopic(ctx context.Context, courseID string, topicIndex int) error {
	course, err := t.courses.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if topicIndex < 0 || topicIndex >= len(course.Topics) {
		return fmt.Errorf("%w: topic index %d out of range [0,%d)", domain.ErrValidation, topicIndex, len(course.Topics))
	}
	return nil
}

// Progress returns the learner's record for a course together with its completion ratio.
func (t *TopicTracker) Progress(ctx context.Context, userID, courseID string) (domain.ProgressRecord, float64, error) {
	course, err := t.courses.GetCourse(ctx, courseID)
	if err != nil {
		return domain.ProgressRecord{}, 0, err
	}
	record, err := t.store.Load(ctx, userID, courseID)
	if err != nil {
		return domain.ProgressRecord{}, 0, err
	}
	return record, CompletionRatio(record, course), nil
}
