package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"course-progress-service/internal/app"
	"course-progress-service/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// QuizWSHandler runs one quiz attempt per websocket connection. Closing the socket abandons the attempt;
// only completed attempts are stored.
type QuizWSHandler struct {
	quizzes  *app.QuizService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewQuizWSHandler(quizzes *app.QuizService, log *zap.Logger) *QuizWSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuizWSHandler{
		quizzes: quizzes,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type questionView struct {
	Index    int      `json:"index"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type statePayload struct {
	State          domain.QuizAttemptState `json:"state"`
	TotalQuestions int                     `json:"totalQuestions"`
	Question       *questionView           `json:"question,omitempty"`
	Result         *app.AttemptResult      `json:"result,omitempty"`
}

type wsErrorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// ServeWS upgrades HTTP requests to websockets and drives a quiz session.
//
// Client messages: {"type":"answer","payload":{"option":"..."}} and {"type":"retake"}.
// Server messages: "state" after every transition and "error".
func (h *QuizWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	courseID := r.URL.Query().Get("courseId")
	if userID == "" || courseID == "" {
		http.Error(w, "missing userId or courseId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	session, err := h.quizzes.Start(r.Context(), userID, courseID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	if err := conn.WriteJSON(stateMessage(session)); err != nil {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		var out any
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				out = outboundMessage[wsErrorPayload]{Type: "error", Payload: wsErrorPayload{Message: "invalid answer payload"}}
				break
			}
			if _, _, err := session.Answer(r.Context(), payload.Option); err != nil {
				out = errorMessage(err)
				break
			}
			out = stateMessage(session)
		case "retake":
			session.Retake()
			out = stateMessage(session)
		default:
			out = outboundMessage[wsErrorPayload]{Type: "error", Payload: wsErrorPayload{Message: "unsupported message type"}}
		}

		if err := conn.WriteJSON(out); err != nil {
			h.log.Warn("ws write error", zap.Error(err))
			return
		}
	}
}

func stateMessage(session *app.QuizSession) outboundMessage[statePayload] {
	payload := statePayload{
		State:          session.State(),
		TotalQuestions: session.TotalQuestions(),
		Result:         session.Result(),
	}
	if q, ok := session.Current(); ok {
		payload.Question = &questionView{Index: payload.State.QuestionIndex, Question: q.Question, Options: q.Options}
	}
	return outboundMessage[statePayload]{Type: "state", Payload: payload}
}

func errorMessage(err error) outboundMessage[wsErrorPayload] {
	return outboundMessage[wsErrorPayload]{Type: "error", Payload: wsErrorPayload{
		Message:   err.Error(),
		Retryable: errors.Is(err, domain.ErrPersistenceUnavailable),
	}}
}
