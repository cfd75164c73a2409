package command

import (
	"context"
	"fmt"

	"deadlineTracker/internal/logger"
	"deadlineTracker/internal/models/deadline"
	"deadlineTracker/internal/query"

	"go.uber.org/zap"
)

// DeadlineStore - то, что интерпретатору нужно от сервиса
type DeadlineStore interface {
	Query(context.Context, query.Filter) ([]*deadline.Deadline, error)
	Delete(context.Context, int64) error
}

type Reply struct {
	Mode       Mode                 `json:"mode"`
	Filter     string               `json:"filter"`
	Notice     string               `json:"notice,omitempty"`
	Deadlines  []*deadline.Deadline `json:"deadlines"`
	Candidates []*deadline.Deadline `json:"candidates,omitempty"`
}

type Interpreter struct {
	store DeadlineStore
}

func NewInterpreter(store DeadlineStore) *Interpreter {
	return &Interpreter{store: store}
}

// Handle разбирает ввод и переводит сессию в нужный режим
func (i *Interpreter) Handle(ctx context.Context, s *Session, text string) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, err := Interpret(text)
	if err != nil {
		logger.Info("Command: Отклонён ввод", zap.String("session", s.ID), zap.String("text", text))
		return i.reply(s, err.Error(), nil), err
	}

	switch intent.Kind {
	case IntentDelete:
		return i.lookupForDelete(ctx, s, intent.Term)
	default:
		return i.applyFilter(ctx, s, intent.Filter)
	}
}

func (i *Interpreter) applyFilter(ctx context.Context, s *Session, text string) (Reply, error) {
	s.Filter = text
	s.toViewing()

	f := query.Resolve(text)
	rows, err := i.store.Query(ctx, f)
	if err != nil {
		return Reply{}, fmt.Errorf("фильтр %q: %w", f.Name, err)
	}

	shown := text
	if shown == "" {
		shown = f.Name
	}
	return i.reply(s, fmt.Sprintf("Filtering for: %s", shown), rows), nil
}

func (i *Interpreter) lookupForDelete(ctx context.Context, s *Session, term string) (Reply, error) {
	found, err := i.store.Query(ctx, query.TaskSearch(term))
	if err != nil {
		return Reply{}, fmt.Errorf("поиск задачи %q: %w", term, err)
	}

	if len(found) == 0 {
		s.toViewing()
		rows, err := i.view(ctx, s)
		if err != nil {
			return Reply{}, err
		}
		return i.reply(s, fmt.Sprintf("No pending task matching '%s' was found.", term), rows), nil
	}

	s.Mode = ModeConfirmingDelete
	s.Candidates = found
	logger.Info("Command: Ожидание подтверждения удаления",
		zap.String("session", s.ID),
		zap.Int("candidates", len(found)))
	return i.reply(s, fmt.Sprintf("Found %d task(s) matching '%s'. Confirm which one to delete.", len(found), term), nil), nil
}

// Confirm удаляет ровно одну выбранную запись из списка кандидатов
func (i *Interpreter) Confirm(ctx context.Context, s *Session, id int64) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Mode != ModeConfirmingDelete {
		err := &CommandError{Message: "There is nothing to confirm."}
		return i.reply(s, err.Message, nil), err
	}
	target, ok := s.candidate(id)
	if !ok {
		err := &CommandError{Message: fmt.Sprintf("Task %d is not awaiting deletion.", id)}
		return i.reply(s, err.Message, nil), err
	}

	if err := i.store.Delete(ctx, id); err != nil {
		return Reply{}, fmt.Errorf("удаление %d: %w", id, err)
	}
	s.toViewing()

	rows, err := i.view(ctx, s)
	if err != nil {
		return Reply{}, err
	}
	return i.reply(s, fmt.Sprintf("Deleted '%s'.", target.TaskName), rows), nil
}

func (i *Interpreter) Cancel(ctx context.Context, s *Session) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.toViewing()
	rows, err := i.view(ctx, s)
	if err != nil {
		return Reply{}, err
	}
	return i.reply(s, "Deletion cancelled.", rows), nil
}

// View возвращает записи по текущему фильтру сессии
func (i *Interpreter) View(ctx context.Context, s *Session) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := i.view(ctx, s)
	if err != nil {
		return Reply{}, err
	}
	return i.reply(s, "", rows), nil
}

func (i *Interpreter) view(ctx context.Context, s *Session) ([]*deadline.Deadline, error) {
	rows, err := i.store.Query(ctx, query.Resolve(s.Filter))
	if err != nil {
		return nil, fmt.Errorf("выборка для сессии %s: %w", s.ID, err)
	}
	return rows, nil
}

func (i *Interpreter) reply(s *Session, notice string, rows []*deadline.Deadline) Reply {
	r := Reply{
		Mode:      s.Mode,
		Filter:    query.Resolve(s.Filter).Name,
		Notice:    notice,
		Deadlines: rows,
	}
	if s.Mode == ModeConfirmingDelete {
		r.Candidates = append([]*deadline.Deadline(nil), s.Candidates...)
	}
	return r
}
