package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"course-progress-service/internal/domain"
	"course-progress-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const catalogKey = "courses:catalog"

// CourseRepository caches course documents in Redis and falls back to a loader on cache miss.
// Courses are stored as JSON strings: SET course:{courseID} {json} EX ttl
// The catalog is stored as one JSON array under courses:catalog.
// Cache errors are treated as misses.
type CourseRepository struct {
	client *redis.Client
	loader memory.CourseLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewCourseRepository(client *redis.Client, loader memory.CourseLoader, ttl time.Duration) *CourseRepository {
	return &CourseRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CourseRepository) GetCourse(ctx context.Context, courseID string) (domain.Course, error) {
	var course domain.Course
	if r.readCache(ctx, r.courseKey(courseID), &course) {
		return course, nil
	}

	result, err, _ := r.sf.Do(courseID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		var course domain.Course
		if r.readCache(ctx, r.courseKey(courseID), &course) {
			return course, nil
		}

		course, err := r.loader.LoadCourse(ctx, courseID)
		if err != nil {
			return domain.Course{}, err
		}
		r.writeCache(ctx, r.courseKey(courseID), course)
		return course, nil
	})
	if err != nil {
		return domain.Course{}, err
	}
	return result.(domain.Course), nil
}

// ListCourses returns the catalog. A partial catalog from the loader is passed through with its error but not cached.
func (r *CourseRepository) ListCourses(ctx context.Context) ([]domain.Course, error) {
	var courses []domain.Course
	if r.readCache(ctx, catalogKey, &courses) {
		return courses, nil
	}

	type listing struct {
		courses []domain.Course
		err     error
	}
	result, _, _ := r.sf.Do(catalogKey, func() (interface{}, error) {
		courses, err := r.loader.ListCourses(ctx)
		if err != nil {
			return listing{courses: courses, err: err}, nil
		}
		r.writeCache(ctx, catalogKey, courses)
		for _, course := range courses {
			r.writeCache(ctx, r.courseKey(course.ID), course)
		}
		return listing{courses: courses}, nil
	})
	out := result.(listing)
	return out.courses, out.err
}

func (r *CourseRepository) courseKey(courseID string) string {
	return "course:" + courseID
}

func (r *CourseRepository) readCache(ctx context.Context, key string, dst any) bool {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func (r *CourseRepository) writeCache(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
}

func (r *CourseRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
