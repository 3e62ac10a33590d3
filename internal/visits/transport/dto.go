package transport

import (
	"time"

	"fieldops_backend/internal/visits/domain"

	"github.com/google/uuid"
)

// TransitionRequest changes a visit or job status.
type TransitionRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled in_progress completed cancelled"`
}

// ListVisitsRequest are the query parameters of GET /visits.
type ListVisitsRequest struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=500"`
}

// AddNoteRequest appends a note to a job.
type AddNoteRequest struct {
	Body string `json:"body" validate:"required,notblank,max=5000"`
}

// LogTimeRequest records minutes worked.
type LogTimeRequest struct {
	Minutes     int    `json:"minutes" validate:"required,min=1,max=1440"`
	Description string `json:"description" validate:"max=1000"`
}

// AddLineItemRequest records a cost. Quantity is a decimal string.
type AddLineItemRequest struct {
	Description    string `json:"description" validate:"required,max=500"`
	Quantity       string `json:"quantity" validate:"omitempty,max=20"`
	UnitPriceCents int64  `json:"unitPriceCents" validate:"min=0"`
}

// VisitListResponse wraps a visit listing.
type VisitListResponse struct {
	Items []domain.Visit `json:"items"`
	Total int            `json:"total"`
}

// NoteResponse is a job note.
type NoteResponse struct {
	ID        uuid.UUID `json:"id"`
	JobID     uuid.UUID `json:"jobId"`
	AuthorID  uuid.UUID `json:"authorId"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// TimeEntryResponse is a time entry.
type TimeEntryResponse struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"jobId"`
	TechnicianID uuid.UUID `json:"technicianId"`
	Minutes      int       `json:"minutes"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"createdAt"`
}

// LineItemResponse is a line item.
type LineItemResponse struct {
	ID             uuid.UUID `json:"id"`
	JobID          uuid.UUID `json:"jobId"`
	Description    string    `json:"description"`
	Quantity       string    `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	CreatedBy      uuid.UUID `json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TimelineEntryResponse is one row of GET /jobs/:id/timeline.
type TimelineEntryResponse struct {
	Type      string             `json:"type"`
	ID        uuid.UUID          `json:"id"`
	ActorID   uuid.UUID          `json:"actorId"`
	CreatedAt time.Time          `json:"createdAt"`
	Note      *NoteResponse      `json:"note,omitempty"`
	TimeEntry *TimeEntryResponse `json:"timeEntry,omitempty"`
	LineItem  *LineItemResponse  `json:"lineItem,omitempty"`
}

// TimelineResponse wraps the merged timeline.
type TimelineResponse struct {
	JobID   uuid.UUID               `json:"jobId"`
	Entries []TimelineEntryResponse `json:"entries"`
}

func ToNoteResponse(n domain.Note) NoteResponse {
	return NoteResponse{ID: n.ID, JobID: n.JobID, AuthorID: n.AuthorID, Kind: string(n.Kind), Body: n.Body, CreatedAt: n.CreatedAt}
}

func ToTimeEntryResponse(e domain.TimeEntry) TimeEntryResponse {
	return TimeEntryResponse{ID: e.ID, JobID: e.JobID, TechnicianID: e.TechnicianID, Minutes: e.Minutes, Description: e.Description, CreatedAt: e.CreatedAt}
}

func ToLineItemResponse(li domain.LineItem) LineItemResponse {
	return LineItemResponse{
		ID:             li.ID,
		JobID:          li.JobID,
		Description:    li.Description,
		Quantity:       li.Quantity,
		UnitPriceCents: li.UnitPriceCents,
		CreatedBy:      li.CreatedBy,
		CreatedAt:      li.CreatedAt,
	}
}

// ToTimelineResponse converts the merged timeline.
func ToTimelineResponse(jobID uuid.UUID, entries []domain.TimelineEntry) TimelineResponse {
	resp := TimelineResponse{JobID: jobID, Entries: make([]TimelineEntryResponse, 0, len(entries))}
	for _, e := range entries {
		row := TimelineEntryResponse{Type: string(e.Type), ID: e.ID, ActorID: e.ActorID, CreatedAt: e.CreatedAt}
		switch {
		case e.Note != nil:
			n := ToNoteResponse(*e.Note)
			row.Note = &n
		case e.TimeEntry != nil:
			te := ToTimeEntryResponse(*e.TimeEntry)
			row.TimeEntry = &te
		case e.LineItem != nil:
			li := ToLineItemResponse(*e.LineItem)
			row.LineItem = &li
		}
		resp.Entries = append(resp.Entries, row)
	}
	return resp
}
