package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"deadlineTracker/internal/models/deadline"
	"deadlineTracker/internal/query"
	"deadlineTracker/internal/repository"
	"deadlineTracker/internal/repository/deadline/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type SQLiteTestSuite struct {
	suite.Suite
	storage *sqlite.Storage
	path    string
	ctx     context.Context
}

func strPtr(s string) *string { return &s }

func newDeadline(name string, course *string, due string) *deadline.Deadline {
	return &deadline.Deadline{
		TaskName:   name,
		CourseName: course,
		DueDate:    deadline.MustParseDate(due),
		Status:     deadline.StatusPending,
	}
}

// SetupTest открывает свежий файл БД для каждого теста
func (s *SQLiteTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.path = filepath.Join(s.T().TempDir(), "nested", "deadlines.db")

	var err error
	s.storage, err = sqlite.New(s.path)
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.storage.Initialize(s.ctx))
}

func (s *SQLiteTestSuite) TearDownTest() {
	if s.storage != nil {
		s.storage.Close()
	}
}

func TestSQLiteTestSuite(t *testing.T) {
	suite.Run(t, new(SQLiteTestSuite))
}

func (s *SQLiteTestSuite) insert(d *deadline.Deadline) bool {
	created, err := s.storage.InsertIfAbsent(s.ctx, d)
	require.NoError(s.T(), err)
	return created
}

// TestStorage_InsertIfAbsent тестирует уникальность тройки, в том числе без курса
func (s *SQLiteTestSuite) TestStorage_InsertIfAbsent() {
	first := newDeadline("Homework 3", strPtr("CS410"), "2025-11-10")
	assert.True(s.T(), s.insert(first))
	assert.NotZero(s.T(), first.ID)

	dup := newDeadline("Homework 3", strPtr("CS410"), "2025-11-10")
	dup.ID = 77
	assert.False(s.T(), s.insert(dup))
	assert.Zero(s.T(), dup.ID)
	assert.True(s.T(), s.insert(newDeadline("Homework 3", strPtr("CS411"), "2025-11-10")))

	assert.True(s.T(), s.insert(newDeadline("Essay", nil, "2025-11-10")))
	assert.False(s.T(), s.insert(newDeadline("Essay", nil, "2025-11-10")))

	count, err := s.storage.CountPending(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 3, count)
}

// TestStorage_Reopen проверяет, что данные и индекс переживают повторное открытие
func (s *SQLiteTestSuite) TestStorage_Reopen() {
	assert.True(s.T(), s.insert(newDeadline("Lab 2", nil, "2025-12-01")))
	s.storage.Close()

	var err error
	s.storage, err = sqlite.New(s.path)
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.storage.Initialize(s.ctx))

	assert.False(s.T(), s.insert(newDeadline("Lab 2", nil, "2025-12-01")))
	rows, err := s.storage.Query(s.ctx, query.Latest())
	require.NoError(s.T(), err)
	require.Len(s.T(), rows, 1)
	assert.Equal(s.T(), "2025-12-01", rows[0].DueDate.String())
	assert.Nil(s.T(), rows[0].CourseName)
}

// TestStorage_ConcurrentInsert проверяет гонку одинаковых вставок
func (s *SQLiteTestSuite) TestStorage_ConcurrentInsert() {
	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.storage.InsertIfAbsent(s.ctx, newDeadline("Quiz 1", strPtr("PHY101"), "2025-11-12"))
			assert.NoError(s.T(), err)
			if created {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(s.T(), 1, inserted)
}

// TestStorage_Query тестирует фильтры по ключевым словам и порядок
func (s *SQLiteTestSuite) TestStorage_Query() {
	s.insert(newDeadline("Quiz 2", strPtr("PHY101"), "2025-11-20"))
	s.insert(newDeadline("Weekly test", strPtr("Quiz club"), "2025-11-05"))
	s.insert(newDeadline("Assignment 1", nil, "2025-11-12"))
	s.insert(newDeadline("P-Set 4", strPtr("MTH102"), "2025-11-08"))
	s.insert(newDeadline("100% attendance_form", nil, "2025-11-09"))

	rows, err := s.storage.Query(s.ctx, query.Resolve("quiz"))
	require.NoError(s.T(), err)
	require.Len(s.T(), rows, 2)
	assert.Equal(s.T(), "Weekly test", rows[0].TaskName)
	assert.Equal(s.T(), "Quiz 2", rows[1].TaskName)

	rows, err = s.storage.Query(s.ctx, query.Resolve("assignment"))
	require.NoError(s.T(), err)
	require.Len(s.T(), rows, 2)
	assert.Equal(s.T(), "P-Set 4", rows[0].TaskName)
	assert.Equal(s.T(), "Assignment 1", rows[1].TaskName)

	// спецсимволы LIKE трактуются буквально
	rows, err = s.storage.Query(s.ctx, query.TaskSearch("0% a"))
	require.NoError(s.T(), err)
	require.Len(s.T(), rows, 1)
	rows, err = s.storage.Query(s.ctx, query.TaskSearch("y_t"))
	require.NoError(s.T(), err)
	assert.Empty(s.T(), rows)

	rows, err = s.storage.Query(s.ctx, query.Latest())
	require.NoError(s.T(), err)
	assert.Len(s.T(), rows, 5)
	assert.Equal(s.T(), "Weekly test", rows[0].TaskName)
}

// TestStorage_UpdateStatus тестирует смену статуса и отсутствие записи
func (s *SQLiteTestSuite) TestStorage_UpdateStatus() {
	d := newDeadline("Lab 1", nil, "2025-11-10")
	s.insert(d)
	s.insert(newDeadline("Lab 0", nil, "2025-11-01"))

	require.NoError(s.T(), s.storage.UpdateStatus(s.ctx, d.ID, deadline.StatusDone))
	// повторная установка того же статуса не ошибка
	require.NoError(s.T(), s.storage.UpdateStatus(s.ctx, d.ID, deadline.StatusDone))

	done, err := s.storage.Query(s.ctx, query.Resolve("done"))
	require.NoError(s.T(), err)
	require.Len(s.T(), done, 1)
	assert.Equal(s.T(), d.ID, done[0].ID)

	err = s.storage.UpdateStatus(s.ctx, 9999, deadline.StatusDone)
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)
}

// TestStorage_Delete тестирует идемпотентное удаление
func (s *SQLiteTestSuite) TestStorage_Delete() {
	d := newDeadline("Lab 1", nil, "2025-11-10")
	s.insert(d)

	require.NoError(s.T(), s.storage.Delete(s.ctx, d.ID))
	require.NoError(s.T(), s.storage.Delete(s.ctx, d.ID))

	rows, err := s.storage.Query(s.ctx, query.Latest())
	require.NoError(s.T(), err)
	assert.Empty(s.T(), rows)
}

// TestStorage_PurgeExpiredPending тестирует очистку: выполненные остаются
func (s *SQLiteTestSuite) TestStorage_PurgeExpiredPending() {
	expired := newDeadline("P-Set 4", strPtr("PHY101"), "2020-01-01")
	history := newDeadline("Old quiz", nil, "2020-01-01")
	dueToday := newDeadline("Essay", nil, "2025-01-01")
	for _, d := range []*deadline.Deadline{expired, history, dueToday} {
		s.insert(d)
	}
	require.NoError(s.T(), s.storage.UpdateStatus(s.ctx, history.ID, deadline.StatusDone))

	removed, err := s.storage.PurgeExpiredPending(s.ctx, deadline.MustParseDate("2025-01-01"))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, removed)

	removed, err = s.storage.PurgeExpiredPending(s.ctx, deadline.MustParseDate("2025-01-01"))
	require.NoError(s.T(), err)
	assert.Zero(s.T(), removed)

	count, err := s.storage.CountPending(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, count)
}

// TestStorage_NextUpcoming тестирует выбор ближайшего незавершённого
func (s *SQLiteTestSuite) TestStorage_NextUpcoming() {
	today := deadline.MustParseDate("2025-11-01")

	next, err := s.storage.NextUpcoming(s.ctx, today)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), next)

	s.insert(newDeadline("Old", nil, "2025-10-01"))
	s.insert(newDeadline("Later", nil, "2025-11-20"))
	soon := newDeadline("Soon", nil, "2025-11-03")
	s.insert(soon)

	next, err = s.storage.NextUpcoming(s.ctx, today)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), next)
	assert.Equal(s.T(), "Soon", next.TaskName)

	require.NoError(s.T(), s.storage.UpdateStatus(s.ctx, soon.ID, deadline.StatusDone))
	next, err = s.storage.NextUpcoming(s.ctx, today)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), next)
	assert.Equal(s.T(), "Later", next.TaskName)
}

// TestStorage_DateBoundaries проверяет, что пустая дата не попадает в таблицу,
// а 0001-01-01 читается обратно и не ломает выборку
func (s *SQLiteTestSuite) TestStorage_DateBoundaries() {
	good := newDeadline("Good", nil, "2025-11-10")
	s.insert(good)

	_, err := s.storage.InsertIfAbsent(s.ctx, &deadline.Deadline{TaskName: "Unset", Status: deadline.StatusPending})
	assert.Error(s.T(), err)

	yearOne, err := deadline.Normalize(deadline.Candidate{TaskName: "Bad", DueDate: "0001-01-01"})
	require.NoError(s.T(), err)
	assert.True(s.T(), s.insert(yearOne))

	rows, err := s.storage.Query(s.ctx, query.Latest())
	require.NoError(s.T(), err)
	require.Len(s.T(), rows, 2)
	assert.Equal(s.T(), "0001-01-01", rows[0].DueDate.String())
	assert.Equal(s.T(), "Good", rows[1].TaskName)

	removed, err := s.storage.PurgeExpiredPending(s.ctx, deadline.MustParseDate("2025-01-01"))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, removed)
}

func (s *SQLiteTestSuite) TestStorage_HealthCheck() {
	assert.NoError(s.T(), s.storage.HealthCheck(s.ctx))
}
