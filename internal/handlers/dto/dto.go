package dto

import (
	"deadlineTracker/internal/command"
	"deadlineTracker/internal/export"
	"deadlineTracker/internal/models/deadline"
)

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type DeadlineResponse struct {
	ID         int64   `json:"id"`
	TaskName   string  `json:"task_name"`
	CourseName *string `json:"course_name"`
	DueDate    string  `json:"due_date"`
	Status     string  `json:"status"`
	DueIn      string  `json:"due_in"`
	IsOverdue  bool    `json:"is_overdue"`
}

type SummaryResponse struct {
	PendingCount int               `json:"pending_count"`
	NextUpcoming *DeadlineResponse `json:"next_upcoming"`
}

type ChatResponse struct {
	SessionID  string             `json:"session_id"`
	Mode       string             `json:"mode"`
	Filter     string             `json:"filter"`
	Notice     string             `json:"notice,omitempty"`
	Deadlines  []DeadlineResponse `json:"deadlines"`
	Candidates []DeadlineResponse `json:"candidates,omitempty"`
}

func FromDeadline(d *deadline.Deadline, today deadline.Date) DeadlineResponse {
	return DeadlineResponse{
		ID:         d.ID,
		TaskName:   d.TaskName,
		CourseName: d.CourseName,
		DueDate:    d.DueDate.String(),
		Status:     string(d.Status),
		DueIn:      export.DueIn(d.DueDate, today),
		IsOverdue:  d.Status == deadline.StatusPending && d.DueDate.Before(today),
	}
}

func FromDeadlineList(rows []*deadline.Deadline, today deadline.Date) []DeadlineResponse {
	result := make([]DeadlineResponse, len(rows))
	for i, d := range rows {
		result[i] = FromDeadline(d, today)
	}
	return result
}

func FromSummary(count int, next *deadline.Deadline, today deadline.Date) SummaryResponse {
	resp := SummaryResponse{PendingCount: count}
	if next != nil {
		n := FromDeadline(next, today)
		resp.NextUpcoming = &n
	}
	return resp
}

func FromReply(sessionID string, reply command.Reply, today deadline.Date) ChatResponse {
	resp := ChatResponse{
		SessionID: sessionID,
		Mode:      string(reply.Mode),
		Filter:    reply.Filter,
		Notice:    reply.Notice,
		Deadlines: FromDeadlineList(reply.Deadlines, today),
	}
	if len(reply.Candidates) > 0 {
		resp.Candidates = FromDeadlineList(reply.Candidates, today)
	}
	return resp
}
