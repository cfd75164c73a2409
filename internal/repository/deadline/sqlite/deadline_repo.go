package sqlite

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deadlineTracker/internal/logger"
	"deadlineTracker/internal/models/deadline"
	"deadlineTracker/internal/query"
	repo "deadlineTracker/internal/repository"

	"go.uber.org/zap"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const slowQuery = time.Millisecond * 100

// NULL в course_name сравнивается как пустая строка
const identityIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_deadlines_identity
	ON deadlines(task_name, IFNULL(course_name, ''), due_date)`

type Storage struct {
	db *gorm.DB
}

func New(path string) (*Storage, error) {
	if path == "" {
		path = "deadlines.db"
	}

	if err := ensureDir(path); err != nil {
		logger.Error("Repository: Не удалось создать каталог для БД", err)
		return nil, err
	}

	dbLogger := gormlogger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{Logger: dbLogger})
	if err != nil {
		logger.Error("Repository: Ошибка открытия SQLite", err)
		return nil, fmt.Errorf("открытие БД: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("получение пула: %w", err)
	}
	// один писатель: вставки и очистка не пересекаются
	sqlDB.SetMaxOpenConns(1)

	logger.Info("Repository: Успешное подключение к SQLite", zap.String("path", path))
	return &Storage{db: db}, nil
}

// ensureDir создаёт родительский каталог файла БД
func ensureDir(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("создание каталога %q: %w", dir, err)
	}
	return nil
}

func (s *Storage) Initialize(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&deadline.Deadline{}); err != nil {
		logger.Error("Repository: Ошибка миграции", err)
		return repo.NewStorageError("миграция", err)
	}
	if err := db.Exec(identityIndex).Error; err != nil {
		logger.Error("Repository: Ошибка создания индекса", err)
		return repo.NewStorageError("индекс уникальности", err)
	}
	return nil
}

func (s *Storage) Close() {
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	_ = sqlDB.Close()
	logger.Info("Repository: Закрытие SQLite")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return repo.NewStorageError("проверка соединения", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return repo.NewStorageError("проверка соединения", err)
	}
	logger.Info("Repository: Соединение стабильно")
	return nil
}

func (s *Storage) InsertIfAbsent(ctx context.Context, d *deadline.Deadline) (bool, error) {
	start := time.Now()
	defer warnSlow("вставка", start)

	if d.Status == "" {
		d.Status = deadline.StatusPending
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(d)
	if res.Error != nil {
		logger.Error("Repository: Не удалось сохранить дедлайн", res.Error,
			zap.String("task_name", d.TaskName))
		return false, repo.NewStorageError("вставка", res.Error)
	}
	if res.RowsAffected == 0 {
		d.ID = 0
		return false, nil
	}
	return true, nil
}

func (s *Storage) UpdateStatus(ctx context.Context, id int64, status deadline.Status) error {
	start := time.Now()
	defer warnSlow("смена статуса", start)

	res := s.db.WithContext(ctx).
		Model(&deadline.Deadline{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		logger.Error("Repository: Не удалось обновить статус", res.Error, zap.Int64("id", id))
		return repo.NewStorageError("смена статуса", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	defer warnSlow("удаление", start)

	err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&deadline.Deadline{}).Error
	if err != nil {
		logger.Error("Repository: Не удалось удалить дедлайн", err, zap.Int64("id", id))
		return repo.NewStorageError("удаление", err)
	}
	return nil
}

func (s *Storage) Query(ctx context.Context, f query.Filter) ([]*deadline.Deadline, error) {
	start := time.Now()
	defer warnSlow("выборка", start)

	tx := s.db.WithContext(ctx).Where("status = ?", f.Status)

	if f.HasTerms() {
		var conds []string
		var args []any
		for _, term := range f.TaskTerms {
			conds = append(conds, `LOWER(task_name) LIKE ? ESCAPE '\'`)
			args = append(args, query.LikePattern(term))
		}
		for _, term := range f.CourseTerms {
			conds = append(conds, `LOWER(course_name) LIKE ? ESCAPE '\'`)
			args = append(args, query.LikePattern(term))
		}
		tx = tx.Where("("+strings.Join(conds, " OR ")+")", args...)
	}

	if f.Order == query.OrderDueDesc {
		tx = tx.Order("due_date DESC, id ASC")
	} else {
		tx = tx.Order("due_date ASC, id ASC")
	}

	rows := []*deadline.Deadline{}
	if err := tx.Find(&rows).Error; err != nil {
		logger.Error("Repository: Ошибка выборки", err, zap.String("filter", f.Name))
		return nil, repo.NewStorageError("выборка", err)
	}
	return rows, nil
}

func (s *Storage) CountPending(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&deadline.Deadline{}).
		Where("status = ?", deadline.StatusPending).
		Count(&count).Error
	if err != nil {
		logger.Error("Repository: Ошибка подсчёта", err)
		return 0, repo.NewStorageError("подсчёт", err)
	}
	return int(count), nil
}

func (s *Storage) NextUpcoming(ctx context.Context, today deadline.Date) (*deadline.Deadline, error) {
	var rows []*deadline.Deadline
	err := s.db.WithContext(ctx).
		Where("status = ? AND due_date >= ?", deadline.StatusPending, today).
		Order("due_date ASC, id ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		logger.Error("Repository: Ошибка поиска ближайшего дедлайна", err)
		return nil, repo.NewStorageError("ближайший дедлайн", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *Storage) PurgeExpiredPending(ctx context.Context, today deadline.Date) (int, error) {
	start := time.Now()
	defer warnSlow("очистка", start)

	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("status = ? AND due_date < ?", deadline.StatusPending, today).
			Delete(&deadline.Deadline{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	if err != nil {
		logger.Error("Repository: Ошибка очистки просроченных", err)
		return 0, repo.NewStorageError("очистка", err)
	}
	return int(removed), nil
}

func warnSlow(op string, start time.Time) {
	if time.Since(start) > slowQuery {
		logger.Warn("Repository: Медленная операция",
			zap.String("op", op),
			zap.Duration("ms", time.Since(start)))
	}
}
