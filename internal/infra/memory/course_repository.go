package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"course-progress-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// CourseLoader fetches course content from a backing store (Postgres, YAML catalog, remote service).
type CourseLoader interface {
	LoadCourse(ctx context.Context, courseID string) (domain.Course, error)
	ListCourses(ctx context.Context) ([]domain.Course, error)
}

const catalogKey = "\x00catalog"

// CourseRepository caches courses with TTL to avoid repeated loader hits.
type CourseRepository struct {
	loader CourseLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand

	mu      sync.RWMutex
	cache   map[string]cachedCourse
	catalog cachedCatalog
}

type cachedCourse struct {
	course    domain.Course
	expiresAt time.Time
}

type cachedCatalog struct {
	courses   []domain.Course
	expiresAt time.Time
}

func NewCourseRepository(loader CourseLoader, ttl time.Duration) *CourseRepository {
	return &CourseRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedCourse),
	}
}

func (r *CourseRepository) GetCourse(ctx context.Context, courseID string) (domain.Course, error) {
	if course, ok := r.cached(courseID); ok {
		return course, nil
	}

	result, err, _ := r.sf.Do(courseID, func() (interface{}, error) {
		if course, ok := r.cached(courseID); ok {
			return course, nil
		}

		course, err := r.loader.LoadCourse(ctx, courseID)
		if err != nil {
			return domain.Course{}, err
		}

		expiresAt := r.clock().Add(r.ttlWithJitter())
		r.mu.Lock()
		r.cache[courseID] = cachedCourse{course: course, expiresAt: expiresAt}
		r.mu.Unlock()
		return course, nil
	})
	if err != nil {
		return domain.Course{}, err
	}
	return result.(domain.Course), nil
}

// ListCourses returns the catalog. A partial catalog from the loader is passed through with its error but not cached.
func (r *CourseRepository) ListCourses(ctx context.Context) ([]domain.Course, error) {
	r.mu.RLock()
	if r.catalog.expiresAt.After(r.clock()) {
		courses := cloneCourses(r.catalog.courses)
		r.mu.RUnlock()
		return courses, nil
	}
	r.mu.RUnlock()

	type listing struct {
		courses []domain.Course
		err     error
	}
	result, _, _ := r.sf.Do(catalogKey, func() (interface{}, error) {
		courses, err := r.loader.ListCourses(ctx)
		if err != nil {
			return listing{courses: courses, err: err}, nil
		}

		expiresAt := r.clock().Add(r.ttlWithJitter())
		r.mu.Lock()
		r.catalog = cachedCatalog{courses: courses, expiresAt: expiresAt}
		for _, course := range courses {
			r.cache[course.ID] = cachedCourse{course: course, expiresAt: expiresAt}
		}
		r.mu.Unlock()
		return listing{courses: courses}, nil
	})
	out := result.(listing)
	return cloneCourses(out.courses), out.err
}

// cloneCourses keeps callers from mutating the cached catalog.
func cloneCourses(courses []domain.Course) []domain.Course {
	if courses == nil {
		return nil
	}
	out := make([]domain.Course, len(courses))
	copy(out, courses)
	return out
}

func (r *CourseRepository) cached(courseID string) (domain.Course, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[courseID]; ok && entry.expiresAt.After(r.clock()) {
		return entry.course, true
	}
	return domain.Course{}, false
}

// StaticCourseLoader is a simple loader backed by an ordered slice (useful for tests/demos).
type StaticCourseLoader struct {
	courses []domain.Course
}

func NewStaticCourseLoader(courses ...domain.Course) *StaticCourseLoader {
	return &StaticCourseLoader{courses: courses}
}

func (l *StaticCourseLoader) LoadCourse(_ context.Context, courseID string) (domain.Course, error) {
	for _, course := range l.courses {
		if course.ID == courseID {
			return course, nil
		}
	}
	return domain.Course{}, domain.ErrCourseNotFound
}

func (l *StaticCourseLoader) ListCourses(_ context.Context) ([]domain.Course, error) {
	out := make([]domain.Course, len(l.courses))
	copy(out, l.courses)
	return out, nil
}

func (r *CourseRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
