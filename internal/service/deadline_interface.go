package service

import (
	"context"

	"deadlineTracker/internal/models/deadline"
	"deadlineTracker/internal/query"
)

type DeadlineRepository interface {
	Initialize(context.Context) error
	HealthCheck(context.Context) error
	InsertIfAbsent(context.Context, *deadline.Deadline) (bool, error)
	UpdateStatus(context.Context, int64, deadline.Status) error
	Delete(context.Context, int64) error
	Query(context.Context, query.Filter) ([]*deadline.Deadline, error)
	CountPending(context.Context) (int, error)
	NextUpcoming(context.Context, deadline.Date) (*deadline.Deadline, error)
	PurgeExpiredPending(context.Context, deadline.Date) (int, error)
}
