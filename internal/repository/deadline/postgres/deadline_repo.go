package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"deadlineTracker/internal/logger"
	"deadlineTracker/internal/models/deadline"
	"deadlineTracker/internal/query"
	repo "deadlineTracker/internal/repository"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

const selectColumns = `SELECT id, task_name, course_name, due_date, status FROM deadlines`

type Storage struct {
	pool *pgxpool.Pool
}

type PoolOption func(*pgxpool.Config)

// WithPoolSize задаёт размеры пула; нулевые значения оставляют умолчания
func WithPoolSize(maxConns, minConns int) PoolOption {
	return func(c *pgxpool.Config) {
		if maxConns > 0 {
			c.MaxConns = clampInt32(maxConns)
		}
		if minConns > 0 {
			c.MinConns = clampInt32(minConns)
		}
	}
}

func clampInt32(n int) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(n)
}

func New(ctx context.Context, connString string, opts ...PoolOption) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5
	for _, opt := range opts {
		opt(config)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool}, nil
}

// Initialize применяет встроенные миграции
func (s *Storage) Initialize(ctx context.Context) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return repo.NewStorageError("источник миграций", err)
	}

	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		logger.Error("Repository: Ошибка драйвера миграций", err)
		return repo.NewStorageError("драйвер миграций", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return repo.NewStorageError("миграции", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("Repository: Ошибка закрытия миграций",
				zap.NamedError("source", srcErr),
				zap.NamedError("database", dbErr))
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Ошибка применения миграций", err)
		return repo.NewStorageError("миграции", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Repository: Миграции применены", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	err := s.pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return repo.NewStorageError("проверка соединения ping", err)
	}
	logger.Info("Repository: Соединение стабильно")
	return nil
}

// вставка; при конфликте по тройке ничего не возвращается
func (s *Storage) InsertIfAbsent(ctx context.Context, d *deadline.Deadline) (bool, error) {
	start := time.Now()

	if d.Status == "" {
		d.Status = deadline.StatusPending
	}

	query := `INSERT INTO deadlines
				(task_name, course_name, due_date, status)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT DO NOTHING
				RETURNING id`

	err := s.pool.QueryRow(ctx, query,
		d.TaskName,
		d.CourseName,
		d.DueDate,
		d.Status,
	).Scan(&d.ID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			d.ID = 0
			return false, nil
		}
		logger.Error("Repository: Не удалось добавить дедлайн", err, zap.Duration("ms", time.Since(start)))
		return false, repo.NewStorageError("добавление дедлайна", err)
	}

	if time.Since(start) > time.Millisecond*50 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return true, nil
}

func (s *Storage) UpdateStatus(ctx context.Context, id int64, status deadline.Status) error {
	start := time.Now()

	query := `UPDATE deadlines
			SET status = $1
			WHERE id = $2`

	tag, err := s.pool.Exec(ctx, query, status, id)
	if err != nil {
		logger.Error("Repository: Не удалось обновить статус", err, zap.Int64("id", id))
		return repo.NewStorageError("обновление статуса", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, id int64) error {
	start := time.Now()

	query := `DELETE FROM deadlines
				WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		logger.Error("Repository: Удаление дедлайна", err, zap.Duration("ms", time.Since(start)))
		return repo.NewStorageError("удаление", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

// buildQuery собирает WHERE и ORDER BY по фильтру
func buildQuery(f query.Filter) (string, []any) {
	args := []any{f.Status}
	var sb strings.Builder
	sb.WriteString(selectColumns)
	sb.WriteString(" WHERE status = $1")

	if f.HasTerms() {
		var conds []string
		for _, term := range f.TaskTerms {
			args = append(args, query.LikePattern(term))
			conds = append(conds, fmt.Sprintf(`LOWER(task_name) LIKE $%d ESCAPE '\'`, len(args)))
		}
		for _, term := range f.CourseTerms {
			args = append(args, query.LikePattern(term))
			conds = append(conds, fmt.Sprintf(`LOWER(course_name) LIKE $%d ESCAPE '\'`, len(args)))
		}
		sb.WriteString(" AND (" + strings.Join(conds, " OR ") + ")")
	}

	if f.Order == query.OrderDueDesc {
		sb.WriteString(" ORDER BY due_date DESC, id ASC")
	} else {
		sb.WriteString(" ORDER BY due_date ASC, id ASC")
	}
	return sb.String(), args
}

func (s *Storage) Query(ctx context.Context, f query.Filter) ([]*deadline.Deadline, error) {
	start := time.Now()

	sql, args := buildQuery(f)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		logger.Error("Repository: Не удалось получить дедлайны", err, zap.Duration("ms", time.Since(start)))
		return nil, repo.NewStorageError("получение дедлайнов", err)
	}
	defer rows.Close()

	deadlines := []*deadline.Deadline{}
	for rows.Next() {
		d, err := scanDeadline(rows)
		if err != nil {
			logger.Error("Repository: Ошибка сканирования дедлайна", err)
			return nil, repo.NewStorageError("сканирование", err)
		}
		deadlines = append(deadlines, d)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, repo.NewStorageError("итерация по строкам", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return deadlines, nil
}

func (s *Storage) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deadlines WHERE status = $1`, deadline.StatusPending).Scan(&count)
	if err != nil {
		logger.Error("Repository: Ошибка подсчёта", err)
		return 0, repo.NewStorageError("подсчёт", err)
	}
	return count, nil
}

func (s *Storage) NextUpcoming(ctx context.Context, today deadline.Date) (*deadline.Deadline, error) {
	query := selectColumns + `
				WHERE status = $1 AND due_date >= $2
				ORDER BY due_date ASC, id ASC
				LIMIT 1`

	d, err := scanDeadline(s.pool.QueryRow(ctx, query, deadline.StatusPending, today))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		logger.Error("Repository: Ошибка поиска ближайшего дедлайна", err)
		return nil, repo.NewStorageError("ближайший дедлайн", err)
	}
	return d, nil
}

// удаление просроченных незавершённых в одной транзакции
func (s *Storage) PurgeExpiredPending(ctx context.Context, today deadline.Date) (int, error) {
	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		logger.Error("Repository: Не удалось начать транзакцию", err)
		return 0, repo.NewStorageError("начало транзакции", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM deadlines WHERE status = $1 AND due_date < $2`,
		deadline.StatusPending, today)
	if err != nil {
		logger.Error("Repository: Ошибка очистки просроченных", err)
		return 0, repo.NewStorageError("очистка", err)
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error("Repository: Ошибка фиксации транзакции", err)
		return 0, repo.NewStorageError("фиксация транзакции", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)))
	}
	return int(tag.RowsAffected()), nil
}

func scanDeadline(row pgx.Row) (*deadline.Deadline, error) {
	d := &deadline.Deadline{}
	err := row.Scan(
		&d.ID,
		&d.TaskName,
		&d.CourseName,
		&d.DueDate,
		&d.Status,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}
