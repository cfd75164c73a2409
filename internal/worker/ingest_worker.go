package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"deadlineTracker/internal/logger"
	"deadlineTracker/internal/mailbox"
	"deadlineTracker/internal/models/deadline"
	"deadlineTracker/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	StageFetch   = "fetch"
	StageExtract = "extract"
)

var ErrCycleRunning = errors.New("цикл загрузки уже выполняется")

// CollaboratorError - сбой почты или модели
type CollaboratorError struct {
	Stage string
	Err   error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

type MailSource interface {
	Fetch(ctx context.Context) ([]mailbox.Message, error)
}

type Extractor interface {
	Extract(ctx context.Context, subject, body string) ([]deadline.Candidate, error)
}

type Reconciler interface {
	PurgeExpiredPending(ctx context.Context) (int, error)
	Reconcile(ctx context.Context, candidates []deadline.Candidate) (service.ReconcileSummary, error)
}

// validator реализуют источники, которым нужны учётные данные
type validator interface {
	Validate() error
}

type Report struct {
	Purged       int                      `json:"purged"`
	Emails       int                      `json:"emails"`
	FailedEmails int                      `json:"failed_emails"`
	Summary      service.ReconcileSummary `json:"summary"`
}

func (r Report) String() string {
	return fmt.Sprintf("%s (purged %d, emails %d, failed %d)",
		r.Summary, r.Purged, r.Emails, r.FailedEmails)
}

type IngestWorker struct {
	svc       Reconciler
	source    MailSource
	extractor Extractor
	running   sync.Mutex
}

func NewIngestWorker(svc Reconciler, source MailSource, extractor Extractor) *IngestWorker {
	return &IngestWorker{
		svc:       svc,
		source:    source,
		extractor: extractor,
	}
}

// RunCycle: очистка, загрузка писем, извлечение, сохранение.
// Сбой одного письма не прерывает цикл.
func (w *IngestWorker) RunCycle(ctx context.Context) (Report, error) {
	if !w.running.TryLock() {
		return Report{}, ErrCycleRunning
	}
	defer w.running.Unlock()

	start := time.Now()
	var report Report

	purged, err := w.svc.PurgeExpiredPending(ctx)
	if err != nil {
		logger.Error("Worker: Ошибка очистки", err)
		return report, fmt.Errorf("очистка: %w", err)
	}
	report.Purged = purged

	if err := w.checkCredentials(); err != nil {
		logger.Error("Worker: Нет учётных данных", err)
		return report, err
	}

	messages, err := w.source.Fetch(ctx)
	if err != nil {
		logger.Error("Worker: Ошибка получения писем", err)
		return report, &CollaboratorError{Stage: StageFetch, Err: err}
	}
	report.Emails = len(messages)

	for _, msg := range messages {
		candidates, err := w.extractor.Extract(ctx, msg.Subject, msg.Body)
		if err != nil {
			report.FailedEmails++
			logger.Warn("Worker: Письмо пропущено",
				zap.String("subject", msg.Subject),
				zap.Error(&CollaboratorError{Stage: StageExtract, Err: err}))
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		summary, err := w.svc.Reconcile(ctx, candidates)
		report.Summary = add(report.Summary, summary)
		if err != nil {
			logger.Error("Worker: Ошибка сохранения", err, zap.String("subject", msg.Subject))
			return report, err
		}
	}

	logger.Info("Worker: Цикл загрузки завершён",
		zap.Duration("ms", time.Since(start)),
		zap.Int("purged", report.Purged),
		zap.Int("emails", report.Emails),
		zap.Int("failed", report.FailedEmails),
		zap.Int("inserted", report.Summary.Inserted),
		zap.Int("duplicates", report.Summary.Duplicates),
		zap.Int("rejected", report.Summary.Rejected))
	return report, nil
}

func (w *IngestWorker) checkCredentials() error {
	if v, ok := w.source.(validator); ok {
		if err := v.Validate(); err != nil {
			return &CollaboratorError{Stage: StageFetch, Err: err}
		}
	}
	if v, ok := w.extractor.(validator); ok {
		if err := v.Validate(); err != nil {
			return &CollaboratorError{Stage: StageExtract, Err: err}
		}
	}
	return nil
}

// Check - запуск по расписанию: ошибки только логируются
func (w *IngestWorker) Check(ctx context.Context) {
	logger.Info("Worker: Плановая загрузка писем", zap.Time("started_at", time.Now()))
	if _, err := w.RunCycle(ctx); err != nil {
		if errors.Is(err, ErrCycleRunning) {
			logger.Warn("Worker: Предыдущий цикл ещё выполняется")
			return
		}
		logger.Warn("Worker: Цикл завершился с ошибкой", zap.Error(err))
	}
}

// Start запускает цикл по cron-расписанию до отмены контекста
func (w *IngestWorker) Start(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() { w.Check(ctx) }); err != nil {
		return fmt.Errorf("расписание %q: %w", schedule, err)
	}

	c.Start()
	logger.Info("Worker: Планировщик запущен", zap.String("schedule", schedule))

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	logger.Info("Worker: Планировщик остановлен")
	return nil
}

func add(a, b service.ReconcileSummary) service.ReconcileSummary {
	return service.ReconcileSummary{
		Validated:  a.Validated + b.Validated,
		Inserted:   a.Inserted + b.Inserted,
		Duplicates: a.Duplicates + b.Duplicates,
		Rejected:   a.Rejected + b.Rejected,
	}
}
