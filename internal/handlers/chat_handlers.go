package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"deadlineTracker/internal/command"
	"deadlineTracker/internal/handlers/dto"
	"deadlineTracker/internal/logger"
	"deadlineTracker/internal/models/deadline"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const SessionHeader = "X-Session-ID"

type ChatHandler struct {
	interp   *command.Interpreter
	sessions *command.SessionStore
	today    func() deadline.Date
}

func NewChatHandler(interp *command.Interpreter, sessions *command.SessionStore, today func() deadline.Date) ChatHandler {
	return ChatHandler{
		interp:   interp,
		sessions: sessions,
		today:    today,
	}
}

// session берёт сессию по заголовку; без заголовка заводится новая
func (h *ChatHandler) session(w http.ResponseWriter, r *http.Request) *command.Session {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		id = uuid.New().String()
	}
	w.Header().Set(SessionHeader, id)
	return h.sessions.Get(id)
}

func (h *ChatHandler) respond(w http.ResponseWriter, s *command.Session, reply command.Reply, err error) {
	if err != nil {
		handleError(w, err)
		return
	}
	responseWithBody(w, http.StatusOK, dto.FromReply(s.ID, reply, h.today()))
}

// View - GET /chat
func (h *ChatHandler) View(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	s := h.session(w, r)
	reply, err := h.interp.View(r.Context(), s)
	h.respond(w, s, reply, err)
}

// Message - POST /chat
func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return
	}

	var request dto.ChatRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	s := h.session(w, r)
	reply, err := h.interp.Handle(r.Context(), s, request.Message)

	logger.Info("HTTP_OUT: Команда обработана",
		zap.String("session", s.ID),
		zap.String("mode", string(reply.Mode)),
		zap.Duration("ms", time.Since(start)))

	h.respond(w, s, reply, err)
}

// Confirm - POST /chat/confirm/{id}
func (h *ChatHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, err := parseID(r)
	if err != nil {
		logger.Warn("HTTP: Не удалось получить id",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверный id")
		return
	}

	s := h.session(w, r)
	reply, err := h.interp.Confirm(r.Context(), s, id)
	h.respond(w, s, reply, err)
}

// Cancel - POST /chat/cancel
func (h *ChatHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	s := h.session(w, r)
	reply, err := h.interp.Cancel(r.Context(), s)
	h.respond(w, s, reply, err)
}
