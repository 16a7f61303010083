package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"course-progress-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PassThreshold is the correct-answer ratio a quiz attempt needs to earn a certificate.
const PassThreshold = 0.60

// saveTimeout bounds writes that outlive the caller's context.
var saveTimeout = 10 * time.Second

var certificateNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("course-progress-service/certificates"))

// Passed applies PassThreshold. A quiz without questions never passes.
func Passed(score, totalQuestions int) bool {
	if totalQuestions <= 0 {
		return false
	}
	return float64(score)/float64(totalQuestions) >= PassThreshold
}

// Percentage is the rounded score percentage shown to learners.
func Percentage(score, totalQuestions int) int {
	if totalQuestions <= 0 {
		return 0
	}
	return (score*100 + totalQuestions/2) / totalQuestions
}

// QuizPassed derives the pass flag from a stored record. Certification is monotonic,
// so an earlier pass keeps the flag set after a failed retake.
func QuizPassed(record domain.ProgressRecord, totalQuestions int) bool {
	if record.CertifiedAt != nil {
		return true
	}
	return record.LatestQuizScore != nil && Passed(*record.LatestQuizScore, totalQuestions)
}

// VerificationID derives the stable certificate identifier for a learner and course.
func VerificationID(userID, courseID, courseTitle string) string {
	id := uuid.NewSHA1(certificateNamespace, []byte("certificate|"+userID+"|"+courseID+"|"+courseTitle))
	return strings.ToUpper(id.String())
}

// AttemptResult is the outcome of one scored quiz attempt.
type AttemptResult struct {
	Score          int                   `json:"score"`
	TotalQuestions int                   `json:"totalQuestions"`
	Percentage     int                   `json:"percentage"`
	Passed         bool                  `json:"passed"`
	Certificate    *domain.Certificate   `json:"certificate,omitempty"`
	Record         domain.ProgressRecord `json:"-"` // stored progress after the attempt
}

// CertificationEngine scores attempts and derives certificates from stored progress.
type CertificationEngine struct {
	store   ProgressStore
	courses CourseRepository
	log     *zap.Logger
}

func NewCertificationEngine(store ProgressStore, courses CourseRepository, log *zap.Logger) *CertificationEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &CertificationEngine{store: store, courses: courses, log: log}
}

// RecordAttempt persists a final score and, when it passes, returns the learner's certificate.
// The learner must have completed every topic; otherwise domain.ErrQuizNotUnlocked is returned and nothing is written.
// The score and the certification mark are written in one store call; a failed attempt never revokes an earlier certificate.
func (e *CertificationEngine) RecordAttempt(ctx context.Context, userID, courseID string, finalScore, totalQuestions int) (AttemptResult, error) {
	if totalQuestions <= 0 {
		return AttemptResult{}, fmt.Errorf("%w: course %q has no quiz questions", domain.ErrConfiguration, courseID)
	}
	if finalScore < 0 || finalScore > totalQuestions {
		return AttemptResult{}, fmt.Errorf("%w: score %d out of range [0,%d]", domain.ErrValidation, finalScore, totalQuestions)
	}
	course, err := e.courses.GetCourse(ctx, courseID)
	if err != nil {
		return AttemptResult{}, err
	}
	saveCtx, cancel := detach(ctx)
	defer cancel()
	current, err := e.store.Load(saveCtx, userID, courseID)
	if err != nil {
		return AttemptResult{}, err
	}
	if !QuizUnlocked(current, course) {
		e.log.Warn("quiz result rejected, topics incomplete",
			zap.String("user_id", userID),
			zap.String("course_id", courseID))
		return AttemptResult{}, domain.ErrQuizNotUnlocked
	}

	passed := Passed(finalScore, totalQuestions)
	record, err := e.store.SaveQuizResult(saveCtx, userID, courseID, finalScore, passed)
	if err != nil {
		e.log.Warn("save quiz result failed",
			zap.String("user_id", userID),
			zap.String("course_id", courseID),
			zap.Int("score", finalScore),
			zap.Error(err))
		return AttemptResult{}, err
	}

	result := AttemptResult{
		Score:          finalScore,
		TotalQuestions: totalQuestions,
		Percentage:     Percentage(finalScore, totalQuestions),
		Passed:         passed,
		Record:         record,
	}
	if passed {
		cert := certificateFor(record, course)
		result.Certificate = &cert
		e.log.Info("certificate issued",
			zap.String("user_id", userID),
			zap.String("course_id", courseID),
			zap.String("verification_id", cert.VerificationID))
	}
	return result, nil
}

// Certificate derives the learner's certificate for a course, or domain.ErrCertificateNotFound when none was earned.
func (e *CertificationEngine) Certificate(ctx context.Context, userID, courseID string) (domain.Certificate, error) {
	course, err := e.courses.GetCourse(ctx, courseID)
	if err != nil {
		return domain.Certificate{}, err
	}
	record, err := e.store.Load(ctx, userID, courseID)
	if err != nil {
		return domain.Certificate{}, err
	}
	if !QuizPassed(record, len(course.Quiz)) {
		return domain.Certificate{}, domain.ErrCertificateNotFound
	}
	return certificateFor(record, course), nil
}

func certificateFor(record domain.ProgressRecord, course domain.Course) domain.Certificate {
	issuedAt := record.LastUpdated
	if record.CertifiedAt != nil {
		issuedAt = *record.CertifiedAt
	}
	return domain.Certificate{
		UserID:         record.UserID,
		CourseID:       course.ID,
		CourseTitle:    course.Title,
		VerificationID: VerificationID(record.UserID, course.ID, course.Title),
		IssuedAt:       issuedAt,
	}
}

// detach lets a save finish after the caller goes away, bounded by saveTimeout.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
}
