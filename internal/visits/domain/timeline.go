package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// NoteKind distinguishes free notes from transition records.
type NoteKind string

const (
	NoteKindNote         NoteKind = "note"
	NoteKindStatusChange NoteKind = "status_change"
)

// Note is an entry of the job notes stream.
type Note struct {
	ID        uuid.UUID
	JobID     uuid.UUID
	AuthorID  uuid.UUID
	Kind      NoteKind
	Body      string
	CreatedAt time.Time
}

// TimeEntry is an entry of the time tracking stream.
type TimeEntry struct {
	ID           uuid.UUID
	JobID        uuid.UUID
	TechnicianID uuid.UUID
	Minutes      int
	Description  string
	CreatedAt    time.Time
}

// LineItem is an entry of the cost stream.
type LineItem struct {
	ID             uuid.UUID
	JobID          uuid.UUID
	Description    string
	Quantity       string
	UnitPriceCents int64
	CreatedBy      uuid.UUID
	CreatedAt      time.Time
}

// EntryType names the stream a timeline entry came from. The values sort in
// the tie-break order of the timeline.
type EntryType string

const (
	EntryLineItem  EntryType = "line_item"
	EntryNote      EntryType = "note"
	EntryTimeEntry EntryType = "time_entry"
)

// TimelineEntry is one row of the merged job timeline.
type TimelineEntry struct {
	Type      EntryType  `json:"type"`
	ID        uuid.UUID  `json:"id"`
	ActorID   uuid.UUID  `json:"actorId"`
	CreatedAt time.Time  `json:"createdAt"`
	Note      *Note      `json:"note,omitempty"`
	TimeEntry *TimeEntry `json:"timeEntry,omitempty"`
	LineItem  *LineItem  `json:"lineItem,omitempty"`
}

// MergeTimeline merges the three streams ordered by (createdAt, type). The
// entry id breaks any remaining tie so the order is fully deterministic.
func MergeTimeline(notes []Note, entries []TimeEntry, items []LineItem) []TimelineEntry {
	timeline := make([]TimelineEntry, 0, len(notes)+len(entries)+len(items))
	for i := range notes {
		n := notes[i]
		timeline = append(timeline, TimelineEntry{Type: EntryNote, ID: n.ID, ActorID: n.AuthorID, CreatedAt: n.CreatedAt, Note: &n})
	}
	for i := range entries {
		e := entries[i]
		timeline = append(timeline, TimelineEntry{Type: EntryTimeEntry, ID: e.ID, ActorID: e.TechnicianID, CreatedAt: e.CreatedAt, TimeEntry: &e})
	}
	for i := range items {
		li := items[i]
		timeline = append(timeline, TimelineEntry{Type: EntryLineItem, ID: li.ID, ActorID: li.CreatedBy, CreatedAt: li.CreatedAt, LineItem: &li})
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		a, b := timeline[i], timeline[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.ID.String() < b.ID.String()
	})
	return timeline
}
