package deadline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Candidate - сырая запись от модели, типам полей не доверяем
type Candidate struct {
	TaskName   any `json:"task_name"`
	DueDate    any `json:"due_date"`
	CourseName any `json:"course_name"`
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
}

// Normalize проверяет кандидата и приводит его к каноническому виду
func Normalize(c Candidate) (*Deadline, error) {
	name, err := normalizeTaskName(c.TaskName)
	if err != nil {
		return nil, err
	}

	due, err := normalizeDueDate(c.DueDate)
	if err != nil {
		return nil, err
	}

	course, err := normalizeCourse(c.CourseName)
	if err != nil {
		return nil, err
	}

	return &Deadline{
		TaskName:   name,
		CourseName: course,
		DueDate:    due,
		Status:     StatusPending,
	}, nil
}

func normalizeTaskName(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		if raw == nil {
			return "", &ValidationError{Field: "task_name", Reason: "missing"}
		}
		return "", &ValidationError{Field: "task_name", Reason: fmt.Sprintf("expected text, got %T", raw)}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &ValidationError{Field: "task_name", Reason: "empty"}
	}
	return s, nil
}

func normalizeDueDate(raw any) (Date, error) {
	due, err := parseDueDate(raw)
	if err != nil {
		return Date{}, err
	}
	if !due.InRange() {
		return Date{}, &ValidationError{Field: "due_date", Reason: fmt.Sprintf("year %d out of range", due.Time().Year())}
	}
	return due, nil
}

func parseDueDate(raw any) (Date, error) {
	switch v := raw.(type) {
	case nil:
		return Date{}, &ValidationError{Field: "due_date", Reason: "missing"}
	case Date:
		if v.IsZero() {
			return Date{}, &ValidationError{Field: "due_date", Reason: "missing"}
		}
		return v, nil
	case time.Time:
		if v.IsZero() {
			return Date{}, &ValidationError{Field: "due_date", Reason: "missing"}
		}
		return DateOf(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return Date{}, &ValidationError{Field: "due_date", Reason: "empty"}
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return DateOf(t), nil
			}
		}
		return Date{}, &ValidationError{Field: "due_date", Reason: fmt.Sprintf("unparsable date %q", s)}
	default:
		return Date{}, &ValidationError{Field: "due_date", Reason: fmt.Sprintf("expected text, got %T", raw)}
	}
}

func normalizeCourse(raw any) (*string, error) {
	var s string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		s = v
	case *string:
		if v == nil {
			return nil, nil
		}
		s = *v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case json.Number:
		s = v.String()
	default:
		return nil, &ValidationError{Field: "course_name", Reason: fmt.Sprintf("expected text, got %T", raw)}
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	return &s, nil
}
