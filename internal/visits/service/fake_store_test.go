package service

import (
	"context"
	"sync"

	"fieldops_backend/internal/visits/domain"
	"fieldops_backend/internal/visits/repository"
	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
)

// fakeStore keeps rows per account and applies transitions with the same
// compare-and-swap the SQL uses.
type fakeStore struct {
	mu      sync.Mutex
	visits  map[uuid.UUID]domain.Visit
	jobs    map[uuid.UUID]domain.Job
	notes   []domain.Note
	entries []domain.TimeEntry
	items   []domain.LineItem

	// beforeCAS runs inside TransitionVisit/TransitionJob before the status
	// comparison, letting tests simulate a concurrent writer.
	beforeCAS func()
	lastLimit int
	lastTech  *uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		visits: make(map[uuid.UUID]domain.Visit),
		jobs:   make(map[uuid.UUID]domain.Job),
	}
}

func (f *fakeStore) addJob(j domain.Job) domain.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	f.jobs[j.ID] = j
	return j
}

func (f *fakeStore) addVisit(v domain.Visit) domain.Visit {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	f.visits[v.ID] = v
	return v
}

func (f *fakeStore) setVisitStatus(id uuid.UUID, status domain.Status) {
	v := f.visits[id]
	v.Status = status
	f.visits[id] = v
}

func (f *fakeStore) GetVisit(_ context.Context, accountID, visitID uuid.UUID) (*domain.Visit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.visits[visitID]
	if !ok || v.AccountID != accountID {
		return nil, apperr.NotFound("visit not found")
	}
	return &v, nil
}

func (f *fakeStore) ListVisits(_ context.Context, accountID uuid.UUID, technicianID *uuid.UUID, limit int) ([]domain.Visit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	f.lastTech = technicianID
	out := make([]domain.Visit, 0)
	for _, v := range f.visits {
		if v.AccountID != accountID {
			continue
		}
		if technicianID != nil && v.TechnicianID != *technicianID {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeStore) TransitionVisit(_ context.Context, p repository.TransitionParams) (*domain.Visit, error) {
	if f.beforeCAS != nil {
		f.beforeCAS()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.visits[p.ID]
	if !ok || v.AccountID != p.AccountID || v.Status != p.From {
		return nil, nil
	}
	v.Status = p.To
	switch p.To {
	case domain.StatusInProgress:
		if v.StartAt == nil {
			at := p.At
			v.StartAt = &at
		}
	case domain.StatusCompleted, domain.StatusCancelled:
		at := p.At
		v.EndAt = &at
	}
	v.UpdatedAt = p.At
	f.visits[p.ID] = v
	f.notes = append(f.notes, domain.Note{ID: uuid.New(), JobID: v.JobID, AuthorID: p.ActorID, Kind: domain.NoteKindStatusChange, Body: p.NoteBody, CreatedAt: p.At})
	return &v, nil
}

func (f *fakeStore) GetJob(_ context.Context, accountID, jobID uuid.UUID) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok || j.AccountID != accountID {
		return nil, apperr.NotFound("job not found")
	}
	return &j, nil
}

func (f *fakeStore) TransitionJob(_ context.Context, p repository.TransitionParams) (*domain.Job, error) {
	if f.beforeCAS != nil {
		f.beforeCAS()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[p.ID]
	if !ok || j.AccountID != p.AccountID || j.Status != p.From {
		return nil, nil
	}
	j.Status = p.To
	j.UpdatedAt = p.At
	f.jobs[p.ID] = j
	f.notes = append(f.notes, domain.Note{ID: uuid.New(), JobID: j.ID, AuthorID: p.ActorID, Kind: domain.NoteKindStatusChange, Body: p.NoteBody, CreatedAt: p.At})
	return &j, nil
}

func (f *fakeStore) jobInAccount(accountID, jobID uuid.UUID) bool {
	j, ok := f.jobs[jobID]
	return ok && j.AccountID == accountID
}

func (f *fakeStore) InsertNote(_ context.Context, accountID uuid.UUID, note domain.Note) (*domain.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.jobInAccount(accountID, note.JobID) {
		return nil, apperr.NotFound("job not found")
	}
	note.ID = uuid.New()
	f.notes = append(f.notes, note)
	return &note, nil
}

func (f *fakeStore) InsertTimeEntry(_ context.Context, accountID uuid.UUID, entry domain.TimeEntry) (*domain.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.jobInAccount(accountID, entry.JobID) {
		return nil, apperr.NotFound("job not found")
	}
	entry.ID = uuid.New()
	f.entries = append(f.entries, entry)
	return &entry, nil
}

func (f *fakeStore) InsertLineItem(_ context.Context, accountID uuid.UUID, item domain.LineItem) (*domain.LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.jobInAccount(accountID, item.JobID) {
		return nil, apperr.NotFound("job not found")
	}
	item.ID = uuid.New()
	f.items = append(f.items, item)
	return &item, nil
}

func (f *fakeStore) ListTimelineStreams(_ context.Context, accountID, jobID uuid.UUID) ([]domain.Note, []domain.TimeEntry, []domain.LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var notes []domain.Note
	for _, n := range f.notes {
		if n.JobID == jobID && f.jobInAccount(accountID, jobID) {
			notes = append(notes, n)
		}
	}
	var entries []domain.TimeEntry
	for _, e := range f.entries {
		if e.JobID == jobID && f.jobInAccount(accountID, jobID) {
			entries = append(entries, e)
		}
	}
	var items []domain.LineItem
	for _, li := range f.items {
		if li.JobID == jobID && f.jobInAccount(accountID, jobID) {
			items = append(items, li)
		}
	}
	return notes, entries, items, nil
}

func (f *fakeStore) notesFor(jobID uuid.UUID) []domain.Note {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Note
	for _, n := range f.notes {
		if n.JobID == jobID {
			out = append(out, n)
		}
	}
	return out
}
