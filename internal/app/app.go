package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"deadlineTracker/internal/bot"
	"deadlineTracker/internal/command"
	"deadlineTracker/internal/config"
	"deadlineTracker/internal/extract"
	"deadlineTracker/internal/handlers"
	"deadlineTracker/internal/logger"
	"deadlineTracker/internal/mailbox"
	"deadlineTracker/internal/repository/deadline/inmemory"
	"deadlineTracker/internal/repository/deadline/postgres"
	"deadlineTracker/internal/repository/deadline/sqlite"
	"deadlineTracker/internal/service"
	"deadlineTracker/internal/worker"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config    *config.Config
	service   *service.DeadlineService
	worker    *worker.IngestWorker
	sessions  *command.SessionStore
	interp    *command.Interpreter
	shutdowns []func() // функции для graceful shutdown
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

// Init поднимает логгер, хранилище и сервисный слой
func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}
	a.shutdowns = append(a.shutdowns, logger.Sync)

	repo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}

	a.service = service.NewDeadlineService(repo, service.WithRepoName(a.config.Database.Type))
	if err := a.service.Initialize(ctx); err != nil {
		return err
	}

	source := mailbox.NewIMAPSource(mailbox.Config{
		Host:        a.config.Mail.Host,
		Port:        a.config.Mail.Port,
		Username:    a.config.Mail.Username,
		Password:    a.config.Mail.Password,
		Mailbox:     a.config.Mail.Mailbox,
		Days:        a.config.Mail.Days,
		MaxMessages: a.config.Mail.MaxMessages,
		DialTimeout: a.config.Mail.DialTimeout,
	})
	client := extract.NewClient(extract.Config{
		APIKey:     a.config.Extractor.APIKey,
		BaseURL:    a.config.Extractor.BaseURL,
		Timeout:    a.config.Extractor.Timeout,
		MaxRetries: a.config.Extractor.MaxRetries,
	})
	a.worker = worker.NewIngestWorker(a.service, source, extract.NewExtractor(client, a.config.Extractor.Model))

	a.sessions = command.NewSessionStore(
		command.WithIdleTTL(a.config.Server.SessionTTL),
		command.WithMaxSessions(a.config.Server.MaxSessions),
	)
	a.interp = command.NewInterpreter(a.service)

	logger.Info("App: Инициализация завершена", zap.String("repo", a.config.Database.Type))
	return nil
}

func (a *App) openRepository(ctx context.Context) (service.DeadlineRepository, error) {
	switch a.config.Database.Type {
	case config.RepoPostgres:
		storage, err := postgres.New(ctx, a.config.Database.URL,
			postgres.WithPoolSize(a.config.Database.MaxConnections, a.config.Database.MinConnections))
		if err != nil {
			return nil, fmt.Errorf("подключение к postgres: %w", err)
		}
		a.shutdowns = append(a.shutdowns, storage.Close)
		return storage, nil
	case config.RepoInMemory:
		logger.Warn("App: Хранилище в памяти, данные не сохранятся после выхода")
		return inmemory.NewDeadlineStorage(), nil
	default:
		storage, err := sqlite.New(a.config.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("открытие sqlite %s: %w", a.config.Database.Path, err)
		}
		a.shutdowns = append(a.shutdowns, storage.Close)
		return storage, nil
	}
}

func (a *App) Service() *service.DeadlineService {
	return a.service
}

// RunIngest - один цикл загрузки для команды ingest
func (a *App) RunIngest(ctx context.Context) (worker.Report, error) {
	return a.worker.RunCycle(ctx)
}

// Serve запускает HTTP, бота и планировщик до отмены контекста
func (a *App) Serve(ctx context.Context) error {
	router := handlers.NewRouter(
		handlers.NewDeadlineHandler(a.service),
		handlers.NewChatHandler(a.interp, a.sessions, a.service.Today),
		handlers.RouterConfig{
			AllowedOrigins: a.config.Server.AllowedOrigins,
			RateLimit:      a.config.Server.RateLimit,
			RequestTimeout: a.config.Server.RequestTimeout,
		},
	)
	server := &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var b *bot.Bot
	if token := a.config.Telegram.Token; token != "" {
		var err error
		b, err = bot.New(token, a.config.Telegram.Debug, a.interp, a.sessions, a.service.Today)
		if err != nil {
			return err
		}
	} else {
		logger.Info("App: TELEGRAM_TOKEN не задан, бот отключён")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("App: HTTP сервер запущен", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http сервер: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("App: Остановка HTTP сервера")
		return server.Shutdown(shutdownCtx)
	})

	if b != nil {
		g.Go(func() error {
			return b.Start(ctx)
		})
	}

	if schedule := a.config.Ingest.Schedule; schedule != "" {
		g.Go(func() error {
			return a.worker.Start(ctx, schedule)
		})
	}

	return g.Wait()
}

// Close выполняет shutdown-функции в обратном порядке
func (a *App) Close() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
}
