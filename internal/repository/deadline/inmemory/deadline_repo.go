package inmemory

import (
	"context"
	"sort"
	"sync"

	"deadlineTracker/internal/logger"
	"deadlineTracker/internal/models/deadline"
	"deadlineTracker/internal/query"
	repo "deadlineTracker/internal/repository"
)

type DeadlineStorage struct {
	storage map[int64]*deadline.Deadline
	keys    map[string]int64
	mtx     *sync.RWMutex
	nextID  int64
}

func NewDeadlineStorage() *DeadlineStorage {
	return &DeadlineStorage{
		storage: make(map[int64]*deadline.Deadline),
		keys:    make(map[string]int64),
		mtx:     &sync.RWMutex{},
		nextID:  1,
	}
}

func (s *DeadlineStorage) Initialize(ctx context.Context) error {
	return nil
}

func (s *DeadlineStorage) HealthCheck(ctx context.Context) error {
	logger.Info("Repository: Соединение стабильно")
	return nil
}

// проверка и вставка под одной блокировкой
func (s *DeadlineStorage) InsertIfAbsent(ctx context.Context, d *deadline.Deadline) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if !d.DueDate.InRange() {
		return false, repo.NewStorageError("вставка", deadline.ErrUnsetDate)
	}

	key := d.Key()
	if _, ok := s.keys[key]; ok {
		d.ID = 0
		return false, nil
	}

	if d.Status == "" {
		d.Status = deadline.StatusPending
	}
	d.ID = s.nextID
	s.nextID++

	stored := *d
	s.storage[d.ID] = &stored
	s.keys[key] = d.ID
	return true, nil
}

func (s *DeadlineStorage) UpdateStatus(ctx context.Context, id int64, status deadline.Status) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	d, ok := s.storage[id]
	if !ok {
		return repo.ErrNotFound
	}
	d.Status = status
	return nil
}

func (s *DeadlineStorage) Delete(ctx context.Context, id int64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.deleteLocked(id)
	return nil
}

func (s *DeadlineStorage) deleteLocked(id int64) {
	d, ok := s.storage[id]
	if !ok {
		return
	}
	delete(s.keys, d.Key())
	delete(s.storage, id)
}

func (s *DeadlineStorage) Query(ctx context.Context, f query.Filter) ([]*deadline.Deadline, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*deadline.Deadline{}
	for _, d := range s.storage {
		if f.Match(d) {
			found := *d
			res = append(res, &found)
		}
	}

	sort.Slice(res, func(i, j int) bool {
		return f.Less(res[i], res[j])
	})
	return res, nil
}

func (s *DeadlineStorage) CountPending(ctx context.Context) (int, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	count := 0
	for _, d := range s.storage {
		if d.Status == deadline.StatusPending {
			count++
		}
	}
	return count, nil
}

func (s *DeadlineStorage) NextUpcoming(ctx context.Context, today deadline.Date) (*deadline.Deadline, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	order := query.Latest()
	var next *deadline.Deadline
	for _, d := range s.storage {
		if d.Status != deadline.StatusPending || d.DueDate.Before(today) {
			continue
		}
		if next == nil || order.Less(d, next) {
			next = d
		}
	}

	if next == nil {
		return nil, nil
	}
	found := *next
	return &found, nil
}

// удаление просроченных незавершённых задач
func (s *DeadlineStorage) PurgeExpiredPending(ctx context.Context, today deadline.Date) (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	removed := 0
	for id, d := range s.storage {
		if d.Status == deadline.StatusPending && d.DueDate.Before(today) {
			s.deleteLocked(id)
			removed++
		}
	}
	return removed, nil
}
