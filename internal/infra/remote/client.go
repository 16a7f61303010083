package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"course-progress-service/internal/domain"
	"github.com/cenkalti/backoff/v4"
)

// Client talks to the remote progress/content service. It serves as both the course loader and
// the authoritative progress store when a base URL is configured.
type Client struct {
	baseURL    string
	http       *http.Client
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		maxRetries: 3,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

type topicRequest struct {
	TopicIndex int   `json:"topicIndex"`
	Completed  *bool `json:"completed,omitempty"`
}

type quizRequest struct {
	AttemptKey string `json:"attemptKey"`
	Score      int    `json:"score"`
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("remote status %d: %s", e.code, e.body)
}

func (c *Client) LoadCourse(ctx context.Context, courseID string) (domain.Course, error) {
	var course domain.Course
	err := c.get(ctx, "/courses/"+url.PathEscape(courseID), &course)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return domain.Course{}, fmt.Errorf("%w: %s", domain.ErrCourseNotFound, courseID)
	}
	if err != nil {
		return domain.Course{}, fmt.Errorf("load course: %w", err)
	}
	return course, nil
}

func (c *Client) ListCourses(ctx context.Context) ([]domain.Course, error) {
	var courses []domain.Course
	if err := c.get(ctx, "/courses", &courses); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

func (c *Client) Load(ctx context.Context, userID, courseID string) (domain.ProgressRecord, error) {
	var doc domain.ProgressDocument
	err := c.get(ctx, progressPath(userID, courseID), &doc)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return domain.NewProgressRecord(userID, courseID), nil
	}
	if err != nil {
		return domain.ProgressRecord{}, unavailable(err)
	}
	return domain.RecordFromDocument(userID, courseID, doc), nil
}

func (c *Client) SaveTopicCompletion(ctx context.Context, userID, courseID string, topicIndex int, completed bool) (domain.ProgressRecord, error) {
	var doc domain.ProgressDocument
	err := c.post(ctx, progressPath(userID, courseID)+"/topic", topicRequest{TopicIndex: topicIndex, Completed: &completed}, &doc)
	if err != nil {
		return domain.ProgressRecord{}, c.writeError(err)
	}
	return domain.RecordFromDocument(userID, courseID, doc), nil
}

// SaveQuizResult posts the final score. The service derives certification from its own copy of the course,
// so passed is not sent.
func (c *Client) SaveQuizResult(ctx context.Context, userID, courseID string, score int, _ bool) (domain.ProgressRecord, error) {
	var doc domain.ProgressDocument
	err := c.post(ctx, progressPath(userID, courseID)+"/quiz", quizRequest{AttemptKey: domain.AttemptKey, Score: score}, &doc)
	if err != nil {
		return domain.ProgressRecord{}, c.writeError(err)
	}
	return domain.RecordFromDocument(userID, courseID, doc), nil
}

// get retries transport failures and 5xx responses with exponential backoff.
func (c *Client) get(ctx context.Context, path string, dst any) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	return backoff.Retry(func() error {
		err := c.do(ctx, http.MethodGet, path, nil, dst)
		var se *statusError
		if errors.As(err, &se) && se.code < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func (c *Client) post(ctx context.Context, path string, body, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, payload, dst)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, dst any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if dst == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func (c *Client) writeError(err error) error {
	var se *statusError
	if errors.As(err, &se) {
		switch se.code {
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s", domain.ErrValidation, se.body)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", domain.ErrCourseNotFound, se.body)
		}
	}
	return unavailable(err)
}

func progressPath(userID, courseID string) string {
	return "/progress/" + url.PathEscape(userID) + "/" + url.PathEscape(courseID)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: remote: %v", domain.ErrPersistenceUnavailable, err)
}
