package generator

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"

	"fieldops_backend/internal/automation/domain"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

type fakeLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) GenerateContent(_ context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	f.mu.Lock()
	for _, content := range req.Contents {
		for _, part := range content.Parts {
			f.prompts = append(f.prompts, part.Text)
		}
	}
	reply, err := f.reply, f.err
	f.mu.Unlock()

	return func(yield func(*model.LLMResponse, error) bool) {
		if err != nil {
			yield(nil, err)
			return
		}
		yield(&model.LLMResponse{Content: genai.NewContentFromText(reply, genai.RoleModel)}, nil)
	}
}

func TestSanitizeSnapshotStripsPricing(t *testing.T) {
	snapshot := map[string]any{
		"invoice_number": "INV-9",
		"total_cents":    120000,
		"Amount":         "1200.00",
		"unit_price":     10,
		"tax_rate":       0.21,
		"lines": []any{
			map[string]any{"description": "Boiler service", "subtotal": 99},
		},
		"job": map[string]any{"number": "J-1", "price": 5},
	}

	clean := SanitizeSnapshot(snapshot)
	for _, key := range []string{"total_cents", "Amount", "unit_price", "tax_rate"} {
		if _, ok := clean[key]; ok {
			t.Errorf("pricing key %q survived", key)
		}
	}
	if clean["invoice_number"] != "INV-9" {
		t.Errorf("public field dropped")
	}
	line := clean["lines"].([]any)[0].(map[string]any)
	if _, ok := line["subtotal"]; ok || line["description"] != "Boiler service" {
		t.Errorf("nested line not sanitized: %+v", line)
	}
	if _, ok := clean["job"].(map[string]any)["price"]; ok {
		t.Errorf("nested price survived")
	}
	if _, ok := snapshot["total_cents"]; !ok {
		t.Errorf("input snapshot must not be modified")
	}
}

func TestEmbeddedPromptsCoverEveryType(t *testing.T) {
	prompts, err := LoadPrompts()
	if err != nil {
		t.Fatalf("load prompts: %v", err)
	}
	for _, kind := range domain.AllTypes {
		rendered, err := prompts.Render(kind, map[string]any{"status": "sent"})
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if !strings.Contains(rendered, pricingRule) {
			t.Errorf("%s prompt lacks the pricing rule", kind)
		}
	}
}

func TestParsePromptsRequiresEveryType(t *testing.T) {
	_, err := ParsePrompts([]byte("system: hi\nkinds:\n  lead_response:\n    instruction: reply\n"))
	if err == nil {
		t.Fatal("expected error for missing templates")
	}
}

func TestRenderInvoiceToneFollowsSequence(t *testing.T) {
	prompts, err := LoadPrompts()
	if err != nil {
		t.Fatalf("load prompts: %v", err)
	}
	rendered, err := prompts.Render(domain.TypeInvoiceFollowUp, map[string]any{
		"invoice_number": "INV-1",
		"sequence_days":  float64(30),
		"issued_at":      "2026-01-30T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(rendered, "final notice") {
		t.Errorf("expected the 30 day tone, got:\n%s", rendered)
	}
	if !strings.Contains(rendered, "Friday 30 January 2026") {
		t.Errorf("expected a readable issue date, got:\n%s", rendered)
	}
}

func TestAgentGeneratorNeverSendsPricing(t *testing.T) {
	llm := &fakeLLM{reply: "  <p>Thanks for choosing us!</p> "}
	gen, err := NewAgentGenerator(llm)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	text, err := gen.Generate(context.Background(), domain.TypeReviewRequest, map[string]any{
		"job_number":  "J-77",
		"total_cents": 987654,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "Thanks for choosing us!" {
		t.Errorf("text = %q", text)
	}

	llm.mu.Lock()
	defer llm.mu.Unlock()
	sent := strings.Join(llm.prompts, "\n")
	if !strings.Contains(sent, "J-77") {
		t.Errorf("prompt lacks the job number:\n%s", sent)
	}
	if strings.Contains(sent, "987654") {
		t.Errorf("pricing leaked into the prompt:\n%s", sent)
	}
}

func TestAgentGeneratorWrapsFailures(t *testing.T) {
	gen, err := NewAgentGenerator(&fakeLLM{err: errors.New("upstream 503")})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	_, err = gen.Generate(context.Background(), domain.TypeLeadResponse, map[string]any{"name": "Dana"})
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Kind != domain.TypeLeadResponse {
		t.Fatalf("expected GenerationError, got %v", err)
	}
}

func TestUnavailableFails(t *testing.T) {
	_, err := Unavailable{}.Generate(context.Background(), domain.TypeJobCloseout, nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
