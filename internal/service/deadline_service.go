package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deadlineTracker/internal/logger"
	"deadlineTracker/internal/models/deadline"
	"deadlineTracker/internal/query"
	repo "deadlineTracker/internal/repository"

	"go.uber.org/zap"
)

// здесь происходит проверка ошибок бизнес-логики

const resourceDeadline = "дедлайн"

type DeadlineService struct {
	repo     DeadlineRepository
	repoName string
	now      func() time.Time
}

type ReconcileSummary struct {
	Validated  int `json:"validated"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Rejected   int `json:"rejected"`
}

func (r ReconcileSummary) String() string {
	return fmt.Sprintf("%d validated, %d inserted, %d duplicates, %d rejected",
		r.Validated, r.Inserted, r.Duplicates, r.Rejected)
}

type Summary struct {
	PendingCount int                `json:"pending_count"`
	NextUpcoming *deadline.Deadline `json:"next_upcoming"`
}

func NewDeadlineService(repo DeadlineRepository, opts ...ServiceOption) *DeadlineService {
	s := &DeadlineService{
		repo:     repo,
		repoName: "storage",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DeadlineService) Today() deadline.Date {
	return deadline.DateOf(s.now())
}

func (s *DeadlineService) Initialize(ctx context.Context) error {
	if err := s.repo.Initialize(ctx); err != nil {
		return fmt.Errorf("инициализация %s: %w", s.repoName, err)
	}
	return nil
}

func (s *DeadlineService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		logger.Error("Service: Хранилище недоступно", err, zap.String("repo", s.repoName))
		return NewStorageFailure("проверка соединения", err)
	}
	return nil
}

// Reconcile проверяет кандидатов и сохраняет новые записи.
// Невалидные пропускаются, ошибка хранилища прерывает пакет.
func (s *DeadlineService) Reconcile(ctx context.Context, candidates []deadline.Candidate) (ReconcileSummary, error) {
	var summary ReconcileSummary

	for i, c := range candidates {
		d, err := deadline.Normalize(c)
		if err != nil {
			summary.Rejected++
			logger.Warn("Service: Кандидат отклонён",
				zap.Int("index", i),
				zap.Any("task_name", c.TaskName),
				zap.Error(err))
			continue
		}
		summary.Validated++

		created, err := s.repo.InsertIfAbsent(ctx, d)
		if err != nil {
			return summary, fmt.Errorf("сохранение дедлайна %q: %w", d.TaskName, err)
		}
		if created {
			summary.Inserted++
			logger.Info("Service: Новый дедлайн",
				zap.Int64("id", d.ID),
				zap.String("task_name", d.TaskName),
				zap.String("due_date", d.DueDate.String()))
		} else {
			summary.Duplicates++
		}
	}

	return summary, nil
}

// PurgeExpiredPending удаляет незавершённые записи со сроком до сегодняшнего дня
func (s *DeadlineService) PurgeExpiredPending(ctx context.Context) (int, error) {
	today := s.Today()
	removed, err := s.repo.PurgeExpiredPending(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("очистка просроченных: %w", err)
	}
	if removed > 0 {
		logger.Info("Service: Удалены просроченные дедлайны",
			zap.Int("removed", removed),
			zap.String("today", today.String()))
	}
	return removed, nil
}

func (s *DeadlineService) UpdateStatus(ctx context.Context, id int64, status string) error {
	st := deadline.Status(strings.ToLower(strings.TrimSpace(status)))
	if !st.Valid() {
		return NewValidationError("status", "ожидается pending или done")
	}

	err := s.repo.UpdateStatus(ctx, id, st)
	if err != nil {
		return s.mapRepoError("смена статуса", id, err)
	}
	logger.Info("Service: Статус обновлён", zap.Int64("id", id), zap.String("status", string(st)))
	return nil
}

func (s *DeadlineService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapRepoError("удаление", id, err)
	}
	logger.Info("Service: Дедлайн удалён", zap.Int64("id", id))
	return nil
}

// List разбирает текст фильтра и возвращает подходящие записи
func (s *DeadlineService) List(ctx context.Context, text string) (query.Filter, []*deadline.Deadline, error) {
	f := query.Resolve(text)
	rows, err := s.Query(ctx, f)
	return f, rows, err
}

func (s *DeadlineService) Query(ctx context.Context, f query.Filter) ([]*deadline.Deadline, error) {
	rows, err := s.repo.Query(ctx, f)
	if err != nil {
		return nil, s.mapRepoError("выборка", 0, err)
	}
	return rows, nil
}

func (s *DeadlineService) Summary(ctx context.Context) (Summary, error) {
	count, err := s.repo.CountPending(ctx)
	if err != nil {
		return Summary{}, s.mapRepoError("подсчёт", 0, err)
	}
	next, err := s.repo.NextUpcoming(ctx, s.Today())
	if err != nil {
		return Summary{}, s.mapRepoError("ближайший дедлайн", 0, err)
	}
	return Summary{PendingCount: count, NextUpcoming: next}, nil
}

func (s *DeadlineService) mapRepoError(op string, id int64, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		logger.Info("Service: Дедлайн не найден", zap.Int64("target_id", id))
		return NewNotFound(resourceDeadline, id)
	}
	logger.Error("Service: Ошибка хранилища", err, zap.String("op", op))
	return NewStorageFailure(op, err)
}
