package domain

import (
	"sort"
	"strconv"
	"time"
)

// AttemptKey is the single quiz-results key a final attempt is stored under.
const AttemptKey = "final"

// Topic is one unit of course content, addressed by its position in Course.Topics.
type Topic struct {
	Title   string `json:"title" yaml:"title" validate:"required"`
	Content string `json:"content" yaml:"content"`
}

// QuizQuestion models a multiple-choice question with exactly one correct option.
type QuizQuestion struct {
	Question      string   `json:"question" yaml:"question" validate:"required"`
	Options       []string `json:"options" yaml:"options" validate:"min=2,unique,dive,required"`
	CorrectAnswer string   `json:"answer" yaml:"answer" validate:"required"`
}

// Course is read-only content owned by the authoring side.
type Course struct {
	ID          string         `json:"id" yaml:"id" validate:"required"`
	Title       string         `json:"title" yaml:"title" validate:"required"`
	Description string         `json:"description" yaml:"description"`
	Duration    string         `json:"duration" yaml:"duration" validate:"required"`
	Image       string         `json:"image,omitempty" yaml:"image"`
	Topics      []Topic        `json:"topics" yaml:"topics" validate:"dive"`
	Quiz        []QuizQuestion `json:"quiz" yaml:"quiz" validate:"dive"`
}

// ProgressRecord is a learner's state for one course.
// CertifiedAt is set by the first passing attempt and never cleared.
type ProgressRecord struct {
	UserID          string     `json:"userId"`
	CourseID        string     `json:"courseId"`
	CompletedTopics []int      `json:"completedTopics"`
	LatestQuizScore *int       `json:"latestQuizScore,omitempty"`
	CertifiedAt     *time.Time `json:"certifiedAt,omitempty"`
	LastUpdated     time.Time  `json:"lastUpdated,omitempty"`
}

// NewProgressRecord returns the empty default record for a pair.
func NewProgressRecord(userID, courseID string) ProgressRecord {
	return ProgressRecord{
		UserID:          userID,
		CourseID:        courseID,
		CompletedTopics: []int{},
	}
}

// HasCompleted reports whether topicIndex is in the completed set.
func (r ProgressRecord) HasCompleted(topicIndex int) bool {
	for _, idx := range r.CompletedTopics {
		if idx == topicIndex {
			return true
		}
	}
	return false
}

// HasAttempt reports whether a final quiz score has been recorded.
func (r ProgressRecord) HasAttempt() bool {
	return r.LatestQuizScore != nil
}

// WithTopic returns a copy of the completed set with topicIndex added or removed.
func (r ProgressRecord) WithTopic(topicIndex int, completed bool) []int {
	out := make([]int, 0, len(r.CompletedTopics)+1)
	for _, idx := range r.CompletedTopics {
		if idx != topicIndex {
			out = append(out, idx)
		}
	}
	if completed {
		out = append(out, topicIndex)
	}
	return NormalizeTopics(out)
}

// NormalizeTopics sorts and deduplicates a set of topic indices.
func NormalizeTopics(topics []int) []int {
	out := make([]int, 0, len(topics))
	seen := make(map[int]struct{}, len(topics))
	for _, idx := range topics {
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// ProgressKey is the key-value key for a learner's course progress.
func ProgressKey(userID, courseID string) string {
	return "progress-" + userID + "-" + courseID
}

// ProgressDocument is the wire shape served by the progress service.
type ProgressDocument struct {
	CompletedTopics []int          `json:"completedTopics"`
	QuizResults     map[string]int `json:"quizResults"`
	CertifiedAt     *time.Time     `json:"certifiedAt,omitempty"`
	LastUpdated     *time.Time     `json:"lastUpdated,omitempty"`
}

// Document converts a record into its wire shape.
func (r ProgressRecord) Document() ProgressDocument {
	doc := ProgressDocument{
		CompletedTopics: NormalizeTopics(r.CompletedTopics),
		QuizResults:     map[string]int{},
		CertifiedAt:     r.CertifiedAt,
	}
	if r.LatestQuizScore != nil {
		doc.QuizResults[AttemptKey] = *r.LatestQuizScore
	}
	if !r.LastUpdated.IsZero() {
		updated := r.LastUpdated
		doc.LastUpdated = &updated
	}
	return doc
}

// RecordFromDocument rebuilds a record from the wire shape. Only AttemptKey is read from QuizResults.
func RecordFromDocument(userID, courseID string, doc ProgressDocument) ProgressRecord {
	record := NewProgressRecord(userID, courseID)
	record.CompletedTopics = NormalizeTopics(doc.CompletedTopics)
	if score, ok := doc.QuizResults[AttemptKey]; ok {
		s := score
		record.LatestQuizScore = &s
	}
	record.CertifiedAt = doc.CertifiedAt
	if doc.LastUpdated != nil {
		record.LastUpdated = *doc.LastUpdated
	}
	return record
}

// Certificate is derived from a ProgressRecord; it is never stored on its own.
type Certificate struct {
	UserID         string    `json:"userId"`
	CourseID       string    `json:"courseId"`
	CourseTitle    string    `json:"courseTitle"`
	VerificationID string    `json:"verificationId"`
	IssuedAt       time.Time `json:"issuedAt"`
}

// QuizAttemptState is the transient position of one quiz attempt.
type QuizAttemptState struct {
	QuestionIndex int  `json:"questionIndex"`
	Score         int  `json:"score"`
	Locked        bool `json:"locked"`
}

// DashboardRow is one course line of a learner's dashboard.
type DashboardRow struct {
	CourseID             string  `json:"courseId"`
	CourseTitle          string  `json:"courseTitle"`
	Attempted            bool    `json:"attempted"`
	Score                int     `json:"score"`
	TotalQuestions       int     `json:"totalQuestions"`
	Percentage           int     `json:"percentage"`
	CompletionRatio      float64 `json:"completionRatio"`
	CertificateAvailable bool    `json:"certificateAvailable"`
}

// TopicField is the hash field a completed topic index is stored under.
func TopicField(topicIndex int) string {
	return "topic:" + strconv.Itoa(topicIndex)
}
