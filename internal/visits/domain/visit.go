package domain

import (
	"time"

	"github.com/google/uuid"
)

// Visit is a technician's attendance against a job.
type Visit struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"accountId"`
	JobID        uuid.UUID  `json:"jobId"`
	TechnicianID uuid.UUID  `json:"technicianId"`
	Status       Status     `json:"status"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	StartAt      *time.Time `json:"startAt,omitempty"`
	EndAt        *time.Time `json:"endAt,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Job is the unit of work visits are booked against.
type Job struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"accountId"`
	Number       string     `json:"number"`
	Title        string     `json:"title"`
	Status       Status     `json:"status"`
	TechnicianID *uuid.UUID `json:"technicianId,omitempty"`
	CustomerID   *uuid.UUID `json:"customerId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
