package catalog

import (
	"errors"
	"fmt"
	"os"

	"course-progress-service/internal/app"
	"course-progress-service/internal/domain"
	"gopkg.in/yaml.v3"
)

type file struct {
	Courses []domain.Course `yaml:"courses"`
}

// Load reads a YAML course catalog. Courses that fail validation are left out and
// reported in the returned error; the valid ones are still returned.
func Load(path string) ([]domain.Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes catalog YAML. See Load.
func Parse(data []byte) ([]domain.Course, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	var (
		courses []domain.Course
		errs    []error
		seen    = make(map[string]struct{}, len(f.Courses))
	)
	for _, course := range f.Courses {
		if err := app.ValidateCourse(course); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[course.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate course id %q", domain.ErrConfiguration, course.ID))
			continue
		}
		seen[course.ID] = struct{}{}
		courses = append(courses, course)
	}
	return courses, errors.Join(errs...)
}
