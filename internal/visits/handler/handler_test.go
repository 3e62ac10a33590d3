package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fieldops_backend/internal/tenant"
	"fieldops_backend/internal/visits/domain"
	"fieldops_backend/internal/visits/service"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeVisits struct {
	visitID     uuid.UUID
	gotStatus   string
	gotLineItem service.LineItemInput
	timeline    []domain.TimelineEntry
}

func (f *fakeVisits) Transition(_ context.Context, tc tenant.Context, visitID uuid.UUID, newStatus string) (*domain.Visit, error) {
	f.gotStatus = newStatus
	if visitID != f.visitID {
		return nil, apperr.NotFound("visit not found")
	}
	if newStatus == string(domain.StatusCompleted) {
		return nil, apperr.InvalidTransition("scheduled", "completed")
	}
	return &domain.Visit{ID: visitID, AccountID: tc.AccountID, Status: domain.Status(newStatus)}, nil
}

func (f *fakeVisits) TransitionJob(_ context.Context, _ tenant.Context, jobID uuid.UUID, newStatus string) (*domain.Job, error) {
	f.gotStatus = newStatus
	return &domain.Job{ID: jobID, Status: domain.Status(newStatus)}, nil
}

func (f *fakeVisits) ListVisits(_ context.Context, tc tenant.Context, _ int) ([]domain.Visit, error) {
	return []domain.Visit{{ID: f.visitID, AccountID: tc.AccountID, TechnicianID: tc.UserID, Status: domain.StatusScheduled}}, nil
}

func (f *fakeVisits) ListJobTimeline(context.Context, uuid.UUID, uuid.UUID) ([]domain.TimelineEntry, error) {
	return f.timeline, nil
}

func (f *fakeVisits) AddNote(_ context.Context, tc tenant.Context, jobID uuid.UUID, body string) (*domain.Note, error) {
	return &domain.Note{ID: uuid.New(), JobID: jobID, AuthorID: tc.UserID, Kind: domain.NoteKindNote, Body: body}, nil
}

func (f *fakeVisits) LogTime(_ context.Context, tc tenant.Context, jobID uuid.UUID, minutes int, description string) (*domain.TimeEntry, error) {
	return &domain.TimeEntry{ID: uuid.New(), JobID: jobID, TechnicianID: tc.UserID, Minutes: minutes, Description: description}, nil
}

func (f *fakeVisits) AddLineItem(_ context.Context, tc tenant.Context, jobID uuid.UUID, in service.LineItemInput) (*domain.LineItem, error) {
	f.gotLineItem = in
	return &domain.LineItem{ID: uuid.New(), JobID: jobID, Description: in.Description, Quantity: "1.00", UnitPriceCents: in.UnitPriceCents, CreatedBy: tc.UserID}, nil
}

func newTestEngine(svc *fakeVisits) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(svc, validator.New())
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		tenant.Attach(c, tenant.Context{AccountID: uuid.New(), UserID: uuid.New(), Role: tenant.RoleTechnician})
		c.Next()
	})
	engine.GET("/visits", h.ListVisits)
	engine.PATCH("/visits/:id/status", h.TransitionVisit)
	engine.PATCH("/jobs/:id/status", h.TransitionJob)
	engine.GET("/jobs/:id/timeline", h.Timeline)
	engine.POST("/jobs/:id/notes", h.AddNote)
	engine.POST("/jobs/:id/time-entries", h.LogTime)
	engine.POST("/jobs/:id/line-items", h.AddLineItem)
	return engine
}

func do(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestTransitionVisitOK(t *testing.T) {
	svc := &fakeVisits{visitID: uuid.New()}
	rec := do(newTestEngine(svc), http.MethodPatch, "/visits/"+svc.visitID.String()+"/status", `{"status":"in_progress"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var visit domain.Visit
	if err := json.Unmarshal(rec.Body.Bytes(), &visit); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if visit.Status != domain.StatusInProgress {
		t.Fatalf("status = %s", visit.Status)
	}
}

func TestTransitionVisitInvalidTransitionIs400WithDetails(t *testing.T) {
	svc := &fakeVisits{visitID: uuid.New()}
	rec := do(newTestEngine(svc), http.MethodPatch, "/visits/"+svc.visitID.String()+"/status", `{"status":"completed"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Details["current"] != "scheduled" || body.Details["requested"] != "completed" {
		t.Fatalf("unexpected details: %+v", body)
	}
}

func TestTransitionRejectsUnknownStatusBeforeService(t *testing.T) {
	svc := &fakeVisits{visitID: uuid.New()}
	rec := do(newTestEngine(svc), http.MethodPatch, "/visits/"+svc.visitID.String()+"/status", `{"status":"done"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.gotStatus != "" {
		t.Fatal("service should not be called for an unknown status")
	}
}

func TestTransitionVisitMissingIs404(t *testing.T) {
	svc := &fakeVisits{visitID: uuid.New()}
	rec := do(newTestEngine(svc), http.MethodPatch, "/visits/"+uuid.NewString()+"/status", `{"status":"cancelled"}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTransitionBadID(t *testing.T) {
	rec := do(newTestEngine(&fakeVisits{}), http.MethodPatch, "/jobs/not-a-uuid/status", `{"status":"cancelled"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTimelineResponseShape(t *testing.T) {
	at := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	note := domain.Note{ID: uuid.New(), Kind: domain.NoteKindNote, Body: "arrived", CreatedAt: at}
	svc := &fakeVisits{timeline: []domain.TimelineEntry{{Type: domain.EntryNote, ID: note.ID, CreatedAt: at, Note: &note}}}
	jobID := uuid.New()

	rec := do(newTestEngine(svc), http.MethodGet, "/jobs/"+jobID.String()+"/timeline", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		JobID   uuid.UUID `json:"jobId"`
		Entries []struct {
			Type string `json:"type"`
			Note *struct {
				Body string `json:"body"`
			} `json:"note"`
			LineItem *json.RawMessage `json:"lineItem"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.JobID != jobID || len(body.Entries) != 1 || body.Entries[0].Type != "note" || body.Entries[0].Note.Body != "arrived" || body.Entries[0].LineItem != nil {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestTimelineWrites(t *testing.T) {
	svc := &fakeVisits{}
	engine := newTestEngine(svc)
	jobPath := "/jobs/" + uuid.NewString()

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"note", jobPath + "/notes", `{"body":"checked boiler"}`, http.StatusCreated},
		{"blank note", jobPath + "/notes", `{"body":"   "}`, http.StatusBadRequest},
		{"time", jobPath + "/time-entries", `{"minutes":30}`, http.StatusCreated},
		{"zero time", jobPath + "/time-entries", `{"minutes":0}`, http.StatusBadRequest},
		{"line item", jobPath + "/line-items", `{"description":"Filter","quantity":"2","unitPriceCents":450}`, http.StatusCreated},
		{"negative price", jobPath + "/line-items", `{"description":"Filter","unitPriceCents":-1}`, http.StatusBadRequest},
		{"malformed", jobPath + "/notes", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(engine, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
	if svc.gotLineItem.Quantity != "2" || svc.gotLineItem.UnitPriceCents != 450 {
		t.Fatalf("line item input not forwarded: %+v", svc.gotLineItem)
	}
}

func TestListVisits(t *testing.T) {
	svc := &fakeVisits{visitID: uuid.New()}
	rec := do(newTestEngine(svc), http.MethodGet, "/visits?limit=20", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec = do(newTestEngine(svc), http.MethodGet, "/visits?limit=9999", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized limit: status = %d", rec.Code)
	}
}
