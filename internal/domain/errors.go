package domain

import "errors"

var (
	// ErrPersistenceUnavailable means the durable backend could not be reached; the write did not happen.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrCourseNotFound indicates the course content could not be loaded.
	ErrCourseNotFound = errors.New("course not found")
	// ErrCertificateNotFound is returned when no passing attempt exists for a learner and course.
	ErrCertificateNotFound = errors.New("certificate not found")
	// ErrConfiguration marks course content that cannot drive the requested operation.
	ErrConfiguration = errors.New("invalid course configuration")
	// ErrValidation indicates a request argument is out of range.
	ErrValidation = errors.New("validation failed")
	// ErrQuizNotUnlocked is returned when a quiz is started before every topic is complete.
	ErrQuizNotUnlocked = errors.New("quiz not unlocked")
)
