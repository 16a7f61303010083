package app

import (
	"errors"
	"fmt"
	"strings"

	"course-progress-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

var courseValidator = validator.New()

// ValidateCourse checks the authored content an operation is about to rely on.
// Failures are reported as domain.ErrConfiguration.
func ValidateCourse(course domain.Course) error {
	if err := courseValidator.Struct(course); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
			}
			return fmt.Errorf("%w: course %q: %s", domain.ErrConfiguration, course.ID, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: course %q: %v", domain.ErrConfiguration, course.ID, err)
	}
	for i, q := range course.Quiz {
		if !containsOption(q.Options, q.CorrectAnswer) {
			return fmt.Errorf("%w: course %q: question %d answer is not one of its options", domain.ErrConfiguration, course.ID, i)
		}
	}
	return nil
}

// validateQuiz additionally requires at least one question.
func validateQuiz(course domain.Course) error {
	if err := ValidateCourse(course); err != nil {
		return err
	}
	if len(course.Quiz) == 0 {
		return fmt.Errorf("%w: course %q has no quiz questions", domain.ErrConfiguration, course.ID)
	}
	return nil
}

func containsOption(options []string, answer string) bool {
	for _, opt := range options {
		if opt == answer {
			return true
		}
	}
	return false
}
