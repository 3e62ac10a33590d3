package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fieldops_backend/internal/automation/domain"
	"fieldops_backend/internal/automation/processor"
	"fieldops_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakeSource struct {
	accounts      []uuid.UUID
	stuckAccounts []uuid.UUID
	due           map[uuid.UUID][]domain.WorkItem
	failFor       uuid.UUID
	limits        []int
	reaped        map[uuid.UUID]int
	stuckArg      time.Duration
	listedStuck   time.Duration
}

func (f *fakeSource) ListAccountsWithDueWork(context.Context, int) ([]uuid.UUID, error) {
	return f.accounts, nil
}

func (f *fakeSource) ListAccountsWithStuckWork(_ context.Context, olderThan time.Duration, _ int) ([]uuid.UUID, error) {
	f.listedStuck = olderThan
	return f.stuckAccounts, nil
}

func (f *fakeSource) GetDueAutomations(_ context.Context, accountID uuid.UUID, limit int) ([]domain.WorkItem, error) {
	f.limits = append(f.limits, limit)
	if accountID == f.failFor {
		return nil, errors.New("db down")
	}
	return f.due[accountID], nil
}

func (f *fakeSource) ReapStuckAutomations(_ context.Context, accountID uuid.UUID, olderThan time.Duration) (int, error) {
	f.stuckArg = olderThan
	if accountID == f.failFor {
		return 0, errors.New("db down")
	}
	return f.reaped[accountID], nil
}

// fakeEnqueuer dedups on the automation id like asynq.TaskID does.
type fakeEnqueuer struct {
	mu   sync.Mutex
	seen map[uuid.UUID]bool
	fail uuid.UUID
}

func (f *fakeEnqueuer) EnqueueAutomation(_ context.Context, item domain.WorkItem) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.ID == f.fail {
		return false, errors.New("redis down")
	}
	if f.seen == nil {
		f.seen = make(map[uuid.UUID]bool)
	}
	if f.seen[item.ID] {
		return false, nil
	}
	f.seen[item.ID] = true
	return true, nil
}

func item(accountID uuid.UUID) domain.WorkItem {
	return domain.WorkItem{ID: uuid.New(), AccountID: accountID, Type: domain.TypeReviewRequest, Status: domain.StatusPending}
}

func TestAutomationTaskRoundTrip(t *testing.T) {
	accountID, automationID := uuid.New(), uuid.New()
	task, err := NewAutomationProcessTask(AutomationProcessPayload{AutomationID: automationID.String(), AccountID: accountID.String()})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TaskAutomationProcess {
		t.Fatalf("type = %s", task.Type())
	}

	payload, err := ParseAutomationProcessPayload(task)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	gotAccount, gotAutomation, err := payload.IDs()
	if err != nil || gotAccount != accountID || gotAutomation != automationID {
		t.Fatalf("ids = %s %s %v", gotAccount, gotAutomation, err)
	}
}

func TestAutomationPayloadRejectsBadIDs(t *testing.T) {
	if _, _, err := (AutomationProcessPayload{AccountID: "nope", AutomationID: uuid.NewString()}).IDs(); err == nil {
		t.Fatal("expected error for bad account id")
	}
	if _, _, err := (AutomationProcessPayload{AccountID: uuid.NewString()}).IDs(); err == nil {
		t.Fatal("expected error for missing automation id")
	}
}

func TestDispatcherTickEnqueuesDueItemsOnce(t *testing.T) {
	a, b, broken := uuid.New(), uuid.New(), uuid.New()
	source := &fakeSource{
		accounts: []uuid.UUID{a, broken, b},
		due: map[uuid.UUID][]domain.WorkItem{
			a: {item(a), item(a)},
			b: {item(b)},
		},
		failFor: broken,
	}
	enqueuer := &fakeEnqueuer{}
	d := NewDispatcher(source, enqueuer, DispatcherConfig{BatchSize: 25}, logger.Discard())

	if got := d.Tick(context.Background()); got != 3 {
		t.Fatalf("first tick enqueued %d, want 3", got)
	}
	if got := d.Tick(context.Background()); got != 0 {
		t.Fatalf("second tick enqueued %d, want 0", got)
	}
	for _, limit := range source.limits {
		if limit != 25 {
			t.Fatalf("batch size not passed through: %v", source.limits)
		}
	}
}

func TestDispatcherContinuesAfterEnqueueFailure(t *testing.T) {
	a := uuid.New()
	bad, good := item(a), item(a)
	source := &fakeSource{accounts: []uuid.UUID{a}, due: map[uuid.UUID][]domain.WorkItem{a: {bad, good}}}
	enqueuer := &fakeEnqueuer{fail: bad.ID}

	if got := NewDispatcher(source, enqueuer, DispatcherConfig{}, logger.Discard()).Tick(context.Background()); got != 1 {
		t.Fatalf("enqueued %d, want 1", got)
	}
	if !enqueuer.seen[good.ID] {
		t.Fatal("healthy item should still be enqueued")
	}
}

func TestDispatcherRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(&fakeSource{}, &fakeEnqueuer{}, DispatcherConfig{Interval: time.Millisecond}, logger.Discard())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestReaperSumsAcrossAccounts(t *testing.T) {
	a, b, broken := uuid.New(), uuid.New(), uuid.New()
	source := &fakeSource{
		stuckAccounts: []uuid.UUID{a, broken, b},
		reaped:        map[uuid.UUID]int{a: 2, b: 1},
		failFor:       broken,
	}
	r := NewReaper(source, logger.Discard(), time.Minute, 30*time.Minute, 100)

	if got := r.Reap(context.Background()); got != 3 {
		t.Fatalf("reaped %d, want 3", got)
	}
	if source.stuckArg != 30*time.Minute || source.listedStuck != 30*time.Minute {
		t.Fatalf("stuck threshold = %s, listed with %s", source.stuckArg, source.listedStuck)
	}
}

func TestReaperDisabled(t *testing.T) {
	source := &fakeSource{stuckAccounts: []uuid.UUID{uuid.New()}}
	r := NewReaper(source, logger.Discard(), time.Minute, 0, 100)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if source.stuckArg != 0 {
		t.Fatal("disabled reaper must not reap")
	}
}

type fakeProcessor struct {
	accountID, automationID uuid.UUID
	err                     error
}

func (f *fakeProcessor) Process(_ context.Context, accountID, automationID uuid.UUID) (processor.Outcome, error) {
	f.accountID, f.automationID = accountID, automationID
	return processor.OutcomeCompleted, f.err
}

func TestWorkerHandlesTask(t *testing.T) {
	proc := &fakeProcessor{}
	w := &Worker{processor: proc, log: logger.Discard()}
	accountID, automationID := uuid.New(), uuid.New()
	task, _ := NewAutomationProcessTask(AutomationProcessPayload{AutomationID: automationID.String(), AccountID: accountID.String()})

	if err := w.handleAutomationProcess(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if proc.accountID != accountID || proc.automationID != automationID {
		t.Fatal("processor got the wrong ids")
	}
}

func TestWorkerSkipsRetryForMalformedPayload(t *testing.T) {
	w := &Worker{processor: &fakeProcessor{}, log: logger.Discard()}

	err := w.handleAutomationProcess(context.Background(), asynq.NewTask(TaskAutomationProcess, []byte(`{"accountId":"x"}`)))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestWorkerReturnsInfrastructureErrors(t *testing.T) {
	boom := errors.New("db down")
	w := &Worker{processor: &fakeProcessor{err: boom}, log: logger.Discard()}
	task, _ := NewAutomationProcessTask(AutomationProcessPayload{AutomationID: uuid.NewString(), AccountID: uuid.NewString()})

	if err := w.handleAutomationProcess(context.Background(), task); !errors.Is(err, boom) {
		t.Fatalf("expected processor error to propagate for retry, got %v", err)
	}
}
