package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"deadlineTracker/internal/command"
	"deadlineTracker/internal/export"
	"deadlineTracker/internal/handlers"
	"deadlineTracker/internal/handlers/dto"
	"deadlineTracker/internal/models/deadline"
	"deadlineTracker/internal/query"
	"deadlineTracker/internal/repository/deadline/inmemory"
	"deadlineTracker/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var today = deadline.MustParseDate("2025-11-01")

// MockService - мок сервиса
type MockService struct {
	mock.Mock
}

func (m *MockService) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockService) Today() deadline.Date {
	return today
}

func (m *MockService) List(ctx context.Context, text string) (query.Filter, []*deadline.Deadline, error) {
	args := m.Called(ctx, text)
	if args.Get(1) == nil {
		return args.Get(0).(query.Filter), nil, args.Error(2)
	}
	return args.Get(0).(query.Filter), args.Get(1).([]*deadline.Deadline), args.Error(2)
}

func (m *MockService) UpdateStatus(ctx context.Context, id int64, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockService) Summary(ctx context.Context) (service.Summary, error) {
	args := m.Called(ctx)
	return args.Get(0).(service.Summary), args.Error(1)
}

var _ handlers.Service = (*MockService)(nil)

func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func sampleRows() []*deadline.Deadline {
	course := "CS410"
	return []*deadline.Deadline{
		{ID: 1, TaskName: "Homework 3", CourseName: &course, DueDate: deadline.MustParseDate("2025-11-10"), Status: deadline.StatusPending},
		{ID: 2, TaskName: "Quiz 1", DueDate: deadline.MustParseDate("2025-11-02"), Status: deadline.StatusPending},
	}
}

// TestDeadlineHandler_HealthCheck тестирует HealthCheck
func TestDeadlineHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(*MockService)
		expectedStatus int
	}{
		{
			name: "success - healthy",
			setupMock: func(m *MockService) {
				m.On("HealthCheck", mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "error - unhealthy",
			setupMock: func(m *MockService) {
				m.On("HealthCheck", mock.Anything).Return(errors.New("database is locked"))
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := handlers.NewDeadlineHandler(mockService)
			req := httptest.NewRequest("GET", "/health", nil)
			w := httptest.NewRecorder()

			handler.HealthCheck(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), "deadline-tracker")
			mockService.AssertExpectations(t)
		})
	}
}

// TestDeadlineHandler_GetDeadlines тестирует выборку по фильтру
func TestDeadlineHandler_GetDeadlines(t *testing.T) {
	mockService := new(MockService)
	mockService.On("List", mock.Anything, "quiz").Return(query.Resolve("quiz"), sampleRows()[1:], nil)

	handler := handlers.NewDeadlineHandler(mockService)
	req := httptest.NewRequest("GET", "/deadlines?filter=quiz", nil)
	w := httptest.NewRecorder()

	handler.GetDeadlines(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Filter    string                 `json:"filter"`
		Deadlines []dto.DeadlineResponse `json:"deadlines"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, query.NameQuiz, body.Filter)
	require.Len(t, body.Deadlines, 1)
	assert.Equal(t, "Quiz 1", body.Deadlines[0].TaskName)
	assert.Nil(t, body.Deadlines[0].CourseName)
	assert.Equal(t, "tomorrow", body.Deadlines[0].DueIn)
	assert.False(t, body.Deadlines[0].IsOverdue)
	mockService.AssertExpectations(t)
}

func TestDeadlineHandler_GetDeadlines_StorageError(t *testing.T) {
	mockService := new(MockService)
	mockService.On("List", mock.Anything, "").
		Return(query.Latest(), nil, service.NewStorageFailure("выборка", errors.New("disk I/O error")))

	handler := handlers.NewDeadlineHandler(mockService)
	w := httptest.NewRecorder()
	handler.GetDeadlines(w, httptest.NewRequest("GET", "/deadlines", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), service.CodeStorage)
}

// TestDeadlineHandler_UpdateStatus тестирует смену статуса
func TestDeadlineHandler_UpdateStatus(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		requestBody    string
		contentType    string
		setupMock      func(*MockService)
		expectedStatus int
	}{
		{
			name:        "success - mark done",
			id:          "1",
			requestBody: `{"status":"done"}`,
			contentType: "application/json",
			setupMock: func(m *MockService) {
				m.On("UpdateStatus", mock.Anything, int64(1), "done").Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:        "error - not found",
			id:          "99",
			requestBody: `{"status":"done"}`,
			contentType: "application/json",
			setupMock: func(m *MockService) {
				m.On("UpdateStatus", mock.Anything, int64(99), "done").Return(service.NewNotFound("дедлайн", 99))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:        "error - invalid status",
			id:          "1",
			requestBody: `{"status":"archived"}`,
			contentType: "application/json",
			setupMock: func(m *MockService) {
				m.On("UpdateStatus", mock.Anything, int64(1), "archived").
					Return(service.NewValidationError("status", "ожидается pending или done"))
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error - bad id",
			id:             "abc",
			requestBody:    `{"status":"done"}`,
			contentType:    "application/json",
			setupMock:      func(m *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "error - invalid content type",
			id:             "1",
			requestBody:    `{"status":"done"}`,
			contentType:    "text/plain",
			setupMock:      func(m *MockService) {},
			expectedStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:           "error - invalid JSON",
			id:             "1",
			requestBody:    `{invalid json}`,
			contentType:    "application/json",
			setupMock:      func(m *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := handlers.NewDeadlineHandler(mockService)
			req := httptest.NewRequest("PUT", "/deadlines/"+tt.id+"/status", strings.NewReader(tt.requestBody))
			req.Header.Set("Content-Type", tt.contentType)
			req = withID(req, tt.id)
			w := httptest.NewRecorder()

			handler.UpdateStatus(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestDeadlineHandler_DeleteDeadline(t *testing.T) {
	mockService := new(MockService)
	mockService.On("Delete", mock.Anything, int64(7)).Return(nil)

	handler := handlers.NewDeadlineHandler(mockService)
	w := httptest.NewRecorder()
	handler.DeleteDeadline(w, withID(httptest.NewRequest("DELETE", "/deadlines/7", nil), "7"))

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockService.AssertExpectations(t)

	w = httptest.NewRecorder()
	handler.DeleteDeadline(w, withID(httptest.NewRequest("DELETE", "/deadlines/0", nil), "0"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestDeadlineHandler_GetSummary тестирует сводку
func TestDeadlineHandler_GetSummary(t *testing.T) {
	mockService := new(MockService)
	mockService.On("Summary", mock.Anything).Return(service.Summary{
		PendingCount: 2,
		NextUpcoming: sampleRows()[1],
	}, nil)

	handler := handlers.NewDeadlineHandler(mockService)
	w := httptest.NewRecorder()
	handler.GetSummary(w, httptest.NewRequest("GET", "/deadlines/summary", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body dto.SummaryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, 2, body.PendingCount)
	require.NotNil(t, body.NextUpcoming)
	assert.Equal(t, "Quiz 1", body.NextUpcoming.TaskName)

	empty := new(MockService)
	empty.On("Summary", mock.Anything).Return(service.Summary{}, nil)
	handler = handlers.NewDeadlineHandler(empty)
	w = httptest.NewRecorder()
	handler.GetSummary(w, httptest.NewRequest("GET", "/deadlines/summary", nil))
	assert.JSONEq(t, `{"pending_count":0,"next_upcoming":null}`, w.Body.String())
}

// TestDeadlineHandler_Export тестирует выгрузку в xlsx
func TestDeadlineHandler_Export(t *testing.T) {
	mockService := new(MockService)
	mockService.On("List", mock.Anything, "").Return(query.Latest(), sampleRows(), nil)

	handler := handlers.NewDeadlineHandler(mockService)
	w := httptest.NewRecorder()
	handler.Export(w, httptest.NewRequest("GET", "/deadlines/export", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "deadlines-latest-2025-11-01.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

// newRouter собирает роутер поверх настоящего сервиса в памяти
func newRouter(t *testing.T) (http.Handler, *inmemory.DeadlineStorage) {
	t.Helper()
	storage := inmemory.NewDeadlineStorage()
	svc := service.NewDeadlineService(storage, service.WithClock(func() time.Time {
		return today.Time()
	}))

	_, err := svc.Reconcile(context.Background(), []deadline.Candidate{
		{TaskName: "Quiz 1", DueDate: "2025-11-12"},
		{TaskName: "Quiz 1 retake", DueDate: "2025-11-19"},
		{TaskName: "Assignment 2", DueDate: "2025-11-15"},
	})
	require.NoError(t, err)

	interp := command.NewInterpreter(svc)
	router := handlers.NewRouter(
		handlers.NewDeadlineHandler(svc),
		handlers.NewChatHandler(interp, command.NewSessionStore(), svc.Today),
		handlers.RouterConfig{AllowedOrigins: []string{"*"}, RequestTimeout: 5 * time.Second},
	)
	return router, storage
}

func chat(t *testing.T, router http.Handler, method, path, session, body string) (*httptest.ResponseRecorder, dto.ChatResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(handlers.SessionHeader, session)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp dto.ChatResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

// TestChat_DeleteFlow тестирует удаление через подтверждение
func TestChat_DeleteFlow(t *testing.T) {
	router, storage := newRouter(t)

	w, resp := chat(t, router, "POST", "/chat", "", `{"message":"delete quiz"}`)
	require.Equal(t, http.StatusOK, w.Code)
	session := w.Header().Get(handlers.SessionHeader)
	require.NotEmpty(t, session)
	assert.Equal(t, session, resp.SessionID)
	assert.Equal(t, string(command.ModeConfirmingDelete), resp.Mode)
	require.Len(t, resp.Candidates, 2)

	target := resp.Candidates[0].ID
	w, resp = chat(t, router, "POST", fmt.Sprintf("/chat/confirm/%d", target), session, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(command.ModeViewing), resp.Mode)
	assert.Empty(t, resp.Candidates)

	count, err := storage.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// повторное подтверждение уже не в режиме удаления
	w, _ = chat(t, router, "POST", fmt.Sprintf("/chat/confirm/%d", target), session, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errBody struct {
		Error   string         `json:"error"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errBody))
	assert.Equal(t, service.CodeCommand, errBody.Error)
	assert.NotEmpty(t, errBody.Message)
	assert.NotNil(t, errBody.Details)
}

func TestChat_FilterAndCancel(t *testing.T) {
	router, storage := newRouter(t)

	w, resp := chat(t, router, "POST", "/chat", "s-1", `{"message":"show assignment"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, query.NameAssignment, resp.Filter)
	assert.Equal(t, "Filtering for: show assignment", resp.Notice)
	require.Len(t, resp.Deadlines, 1)

	_, resp = chat(t, router, "POST", "/chat", "s-1", `{"message":"delete Quiz"}`)
	assert.Equal(t, string(command.ModeConfirmingDelete), resp.Mode)

	w, resp = chat(t, router, "POST", "/chat/cancel", "s-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Deletion cancelled.", resp.Notice)
	assert.Equal(t, query.NameAssignment, resp.Filter)

	// другая сессия видит свой фильтр
	_, resp = chat(t, router, "GET", "/chat", "s-2", "")
	assert.Equal(t, query.NameLatest, resp.Filter)
	assert.Len(t, resp.Deadlines, 3)

	count, err := storage.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestChat_Rejected(t *testing.T) {
	router, _ := newRouter(t)

	w, _ := chat(t, router, "POST", "/chat", "s-1", `{"message":"delete "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "specify a task")

	req := httptest.NewRequest("POST", "/chat", strings.NewReader(`{"message":"quiz"}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// TestRouter_Deadlines тестирует маршруты дашборда целиком
func TestRouter_Deadlines(t *testing.T) {
	router, _ := newRouter(t)

	req := httptest.NewRequest("GET", "/deadlines?filter=quiz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var body struct {
		Deadlines []dto.DeadlineResponse `json:"deadlines"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Deadlines, 2)

	id := body.Deadlines[0].ID
	req = httptest.NewRequest("PUT", fmt.Sprintf("/deadlines/%d/status", id), strings.NewReader(`{"status":"done"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/deadlines?filter=done", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Deadlines, 1)
	assert.Equal(t, id, body.Deadlines[0].ID)

	req = httptest.NewRequest("PUT", "/deadlines/999/status", strings.NewReader(`{"status":"done"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest("GET", "/health", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
