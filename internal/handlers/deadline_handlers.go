package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"deadlineTracker/internal/export"
	"deadlineTracker/internal/handlers/dto"
	"deadlineTracker/internal/logger"
	"deadlineTracker/internal/models/deadline"
	"deadlineTracker/internal/query"
	"deadlineTracker/internal/service"

	"go.uber.org/zap"
)

const serviceName = "deadline-tracker"

type Service interface {
	HealthCheck(context.Context) error
	Today() deadline.Date
	List(context.Context, string) (query.Filter, []*deadline.Deadline, error)
	UpdateStatus(context.Context, int64, string) error
	Delete(context.Context, int64) error
	Summary(context.Context) (service.Summary, error)
}

type DeadlineHandler struct {
	Service Service
}

func NewDeadlineHandler(svc Service) DeadlineHandler {
	return DeadlineHandler{
		Service: svc,
	}
}

func (h *DeadlineHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := h.Service.HealthCheck(r.Context()); err != nil {
		logger.Warn("HTTP: Хранилище недоступно", zap.Error(err))
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("status", "unavailable"),
			toPayload("service", serviceName),
			toPayload("error", err.Error()),
		)
		return
	}

	responseWithJSON(w, http.StatusOK,
		toPayload("status", "ok"),
		toPayload("service", serviceName),
		toPayload("time", time.Now().Format(time.RFC3339)),
	)
}

// GetDeadlines - GET /deadlines?filter=
func (h *DeadlineHandler) GetDeadlines(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	f, rows, err := h.Service.List(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		handleError(w, err)
		return
	}

	logger.Info("HTTP_OUT: Дедлайны получены",
		zap.String("filter", f.Name),
		zap.Int("count", len(rows)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK,
		toPayload("filter", f.Name),
		toPayload("deadlines", dto.FromDeadlineList(rows, h.Service.Today())),
	)
}

// UpdateStatus - PUT /deadlines/{id}/status
func (h *DeadlineHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, err := parseID(r)
	if err != nil {
		logger.Warn("HTTP: Не удалось получить id",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверный id")
		return
	}

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return
	}

	var request dto.UpdateStatusRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	if err := h.Service.UpdateStatus(r.Context(), id, request.Status); err != nil {
		handleError(w, err)
		return
	}

	logger.Info("HTTP_OUT: Статус обновлён",
		zap.Int64("id", id),
		zap.String("status", request.Status),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK,
		toPayload("id", id),
		toPayload("status", request.Status),
	)
}

// DeleteDeadline - DELETE /deadlines/{id}
func (h *DeadlineHandler) DeleteDeadline(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, err := parseID(r)
	if err != nil {
		logger.Warn("HTTP: Не удалось получить id",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверный id")
		return
	}

	if err := h.Service.Delete(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	logger.Info("HTTP_OUT: Дедлайн удалён",
		zap.Int64("id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusNoContent))

	w.WriteHeader(http.StatusNoContent)
}

// GetSummary - GET /deadlines/summary
func (h *DeadlineHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	summary, err := h.Service.Summary(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	responseWithBody(w, http.StatusOK, dto.FromSummary(summary.PendingCount, summary.NextUpcoming, h.Service.Today()))
}

// Export - GET /deadlines/export?filter=
func (h *DeadlineHandler) Export(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	f, rows, err := h.Service.List(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		handleError(w, err)
		return
	}

	today := h.Service.Today()
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="deadlines-%s-%s.xlsx"`, f.Name, today))

	if err := export.WriteXLSX(w, rows, today); err != nil {
		// заголовки уже могли уйти клиенту
		logger.Error("HTTP: Ошибка выгрузки xlsx", err, zap.String("filter", f.Name))
		return
	}

	logger.Info("HTTP_OUT: Выгрузка отправлена",
		zap.String("filter", f.Name),
		zap.Int("rows", len(rows)),
		zap.Duration("ms", time.Since(start)))
}
