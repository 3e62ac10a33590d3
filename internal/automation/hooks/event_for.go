package hooks

import (
	"fmt"
	"time"

	"fieldops_backend/internal/events"
	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
)

// EventFor builds the business event a hook kind reacts to. Systems that own
// estimates, invoices and leads emit these through the admin event endpoint.
func EventFor(kind Kind, accountID, entityID uuid.UUID, now time.Time) (events.Event, error) {
	base := events.NewBaseEvent()
	switch kind {
	case KindEstimate:
		return events.EstimateSent{BaseEvent: base, AccountID: accountID, EstimateID: entityID}, nil
	case KindInvoice:
		return events.InvoiceIssued{BaseEvent: base, AccountID: accountID, InvoiceID: entityID}, nil
	case KindJob:
		return events.JobCompleted{BaseEvent: base, AccountID: accountID, JobID: entityID, CompletedAt: now}, nil
	case KindLead:
		return events.LeadCreated{BaseEvent: base, AccountID: accountID, LeadID: entityID, Source: "admin"}, nil
	default:
		return nil, apperr.BadRequest(fmt.Sprintf("unknown hook kind %q", kind))
	}
}
