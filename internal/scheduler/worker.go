package scheduler

import (
	"context"
	"fmt"

	"fieldops_backend/internal/automation/processor"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Processor runs one automation. *processor.Processor implements it.
type Processor interface {
	Process(ctx context.Context, accountID, automationID uuid.UUID) (processor.Outcome, error)
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor Processor
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, proc Processor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAutomationConcurrency()
	if concurrency < 1 {
		concurrency = 5
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		Logger:   asynqLogger{log: log},
		LogLevel: asynq.WarnLevel,
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		processor: proc,
		log:       log,
	}
	mux.HandleFunc(TaskAutomationProcess, w.handleAutomationProcess)

	return w, nil
}

// Run serves tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("automation worker stopped", "error", err)
		return err
	}
	return nil
}

func (w *Worker) handleAutomationProcess(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAutomationProcessPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	accountID, automationID, err := payload.IDs()
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	outcome, err := w.processor.Process(ctx, accountID, automationID)
	if err != nil {
		return err
	}
	w.log.Debug("automation task handled",
		"automation_id", automationID.String(),
		"account_id", accountID.String(),
		"outcome", string(outcome),
	)
	return nil
}

// asynqLogger routes asynq's internal logs through the application logger.
type asynqLogger struct {
	log *logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
