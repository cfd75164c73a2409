package handlers

import (
	"errors"
	"net/http"

	"deadlineTracker/internal/command"
	"deadlineTracker/internal/logger"
	"deadlineTracker/internal/service"

	"go.uber.org/zap"
)

// asBusinessError приводит ошибку команды к BusinessError с кодом COMMAND_ERROR
func asBusinessError(err error) (*service.BusinessError, bool) {
	var cmdErr *command.CommandError
	if errors.As(err, &cmdErr) {
		return service.NewCommandFailure(cmdErr.Message, cmdErr), true
	}
	return service.AsBusinessError(err)
}

func handleBusinessError(w http.ResponseWriter, err error) bool {
	businessErr, ok := asBusinessError(err)
	if !ok {
		return false
	}
	statusCode := mapBusinessErrorToHTTP(businessErr.Code)

	logger.Warn("HTTP: Бизнес-ошибка",
		zap.String("error_code", businessErr.Code),
		zap.Int("http_status", statusCode))

	responseWithJSON(w, statusCode,
		toPayload("error", businessErr.Code),
		toPayload("message", businessErr.Message),
		toPayload("details", businessErr.Details),
	)
	return true
}

// handleError отвечает бизнес-ошибкой или 500
func handleError(w http.ResponseWriter, err error) {
	if handleBusinessError(w, err) {
		return
	}
	logger.Error("HTTP: Необработанная ошибка", err)
	responseWithError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation, service.CodeCommand:
		return http.StatusBadRequest
	case service.CodeStorage:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
