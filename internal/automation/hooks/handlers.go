package hooks

import (
	"context"
	"fmt"

	"fieldops_backend/internal/events"
)

// RegisterHandlers subscribes the hooks to the business events that trigger them.
func (h *Hooks) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.EstimateSentName, h)
	bus.Subscribe(events.InvoiceIssuedName, h)
	bus.Subscribe(events.JobCompletedName, h)
	bus.Subscribe(events.LeadCreatedName, h)

	h.log.Info("automation hooks registered event handlers")
}

// Handle routes events to the matching hook.
func (h *Hooks) Handle(ctx context.Context, event events.Event) error {
	var (
		result HookResult
		err    error
	)
	switch e := event.(type) {
	case events.EstimateSent:
		result, err = h.ScheduleEstimateFollowUp(ctx, e.AccountID, e.EstimateID)
	case events.InvoiceIssued:
		result, err = h.ScheduleInvoiceFollowUps(ctx, e.AccountID, e.InvoiceID)
	case events.JobCompleted:
		result, err = h.ScheduleJobCompletion(ctx, e.AccountID, e.JobID)
	case events.LeadCreated:
		result, err = h.ScheduleLeadResponse(ctx, e.AccountID, e.LeadID)
	default:
		return fmt.Errorf("automation hooks: unexpected event %s", event.EventName())
	}
	if err != nil {
		return err
	}

	h.log.WithContext(ctx).Debug("automation hook fired",
		"event", event.EventName(),
		"outcome", result.Outcome,
		"items", len(result.Items),
	)
	return nil
}
