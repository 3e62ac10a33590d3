package domain

import (
	"time"

	"github.com/google/uuid"
)

// Estimate is the read model hooks need from an estimate.
type Estimate struct {
	ID           uuid.UUID
	Number       string
	Status       string
	SentAt       *time.Time
	CustomerName string
}

// Invoice is the read model hooks need from an invoice with its relations.
type Invoice struct {
	ID           uuid.UUID
	Number       string
	Status       string
	IssuedAt     *time.Time
	DueAt        *time.Time
	CreatedAt    time.Time
	CustomerName string
	JobNumber    string
}

// Settled reports whether the invoice needs no more chasing.
func (i Invoice) Settled() bool {
	return i.Status == "paid" || i.Status == "void"
}

// IssueDate is the anchor of the follow-up sequence. Invoices without an
// issue stamp fall back to their creation time.
func (i Invoice) IssueDate() time.Time {
	if i.IssuedAt != nil {
		return *i.IssuedAt
	}
	return i.CreatedAt
}

// Job is the read model hooks need from a job.
type Job struct {
	ID           uuid.UUID
	Number       string
	Title        string
	Status       string
	UpdatedAt    time.Time
	CustomerName string
}

// Lead is the read model hooks need from a lead.
type Lead struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     string
	Source    string
	Message   string
	CreatedAt time.Time
}
