package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"course-progress-service/internal/app"
	"course-progress-service/internal/domain"
	"go.uber.org/zap"
)

// Services bundles the use cases the HTTP layer exposes.
type Services struct {
	Courses    app.CourseRepository
	Store      app.ProgressStore
	Topics     *app.TopicTracker
	Quizzes    *app.QuizService
	Certifier  *app.CertificationEngine
	Aggregator *app.ProgressAggregator
}

// RESTHandler serves the course and progress endpoints.
type RESTHandler struct {
	svc Services
	log *zap.Logger
}

func NewRESTHandler(svc Services, log *zap.Logger) *RESTHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RESTHandler{svc: svc, log: log}
}

type topicRequest struct {
	TopicIndex *int  `json:"topicIndex"`
	Completed  *bool `json:"completed"`
}

type quizRequest struct {
	AttemptKey string `json:"attemptKey"`
	Score      *int   `json:"score"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Register mounts the routes on mux.
func (h *RESTHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /courses", h.listCourses)
	mux.HandleFunc("GET /courses/{courseId}", h.getCourse)
	mux.HandleFunc("GET /progress/{userId}/{courseId}", h.getProgress)
	mux.HandleFunc("POST /progress/{userId}/{courseId}/topic", h.postTopic)
	mux.HandleFunc("POST /progress/{userId}/{courseId}/quiz", h.postQuiz)
	mux.HandleFunc("GET /users/{userId}/dashboard", h.dashboard)
	mux.HandleFunc("GET /users/{userId}/certificates/{courseId}", h.certificate)
}

func (h *RESTHandler) listCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.svc.Courses.ListCourses(r.Context())
	if err != nil && len(courses) == 0 {
		h.writeError(w, err)
		return
	}
	if courses == nil {
		courses = []domain.Course{}
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *RESTHandler) getCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.svc.Courses.GetCourse(r.Context(), r.PathValue("courseId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *RESTHandler) getProgress(w http.ResponseWriter, r *http.Request) {
	record, err := h.svc.Store.Load(r.Context(), r.PathValue("userId"), r.PathValue("courseId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record.Document())
}

// postTopic sets the topic when completed is given and toggles it otherwise.
func (h *RESTHandler) postTopic(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TopicIndex == nil {
		h.writeError(w, fmt.Errorf("%w: body must contain topicIndex", domain.ErrValidation))
		return
	}
	userID, courseID := r.PathValue("userId"), r.PathValue("courseId")

	var (
		record domain.ProgressRecord
		err    error
	)
	if req.Completed != nil {
		record, err = h.svc.Topics.Set(r.Context(), userID, courseID, *req.TopicIndex, *req.Completed)
	} else {
		record, err = h.svc.Topics.Toggle(r.Context(), userID, courseID, *req.TopicIndex)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record.Document())
}

func (h *RESTHandler) postQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Score == nil {
		h.writeError(w, fmt.Errorf("%w: body must contain attemptKey and score", domain.ErrValidation))
		return
	}
	if req.AttemptKey != domain.AttemptKey {
		h.writeError(w, fmt.Errorf("%w: attemptKey must be %q", domain.ErrValidation, domain.AttemptKey))
		return
	}
	userID, courseID := r.PathValue("userId"), r.PathValue("courseId")
	course, err := h.svc.Courses.GetCourse(r.Context(), courseID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.svc.Certifier.RecordAttempt(r.Context(), userID, courseID, *req.Score, len(course.Quiz))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Record.Document())
}

// dashboard lists every course; ?view=completed keeps only attempted ones.
func (h *RESTHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	var (
		rows []domain.DashboardRow
		err  error
	)
	if r.URL.Query().Get("view") == "completed" {
		rows, err = h.svc.Aggregator.Completed(r.Context(), userID)
	} else {
		rows, err = h.svc.Aggregator.Dashboard(r.Context(), userID)
	}
	if err != nil {
		// Rows for the courses that did load are still served.
		h.log.Warn("dashboard partially loaded", zap.String("user_id", userID), zap.Error(err))
		w.Header().Set("X-Partial-Content", "true")
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *RESTHandler) certificate(w http.ResponseWriter, r *http.Request) {
	cert, err := h.svc.Certifier.Certificate(r.Context(), r.PathValue("userId"), r.PathValue("courseId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cert)
}

func (h *RESTHandler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorPayload{Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrCourseNotFound), errors.Is(err, domain.ErrCertificateNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrQuizNotUnlocked):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
