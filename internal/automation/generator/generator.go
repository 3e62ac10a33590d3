// Package generator produces automation message text. The core treats it as
// an opaque, possibly slow and possibly failing remote call.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fieldops_backend/internal/automation/domain"
	"fieldops_backend/platform/ai/moonshot"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/sanitize"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const appName = "automation-content-generator"

// Generator renders the message for one work item.
type Generator interface {
	Generate(ctx context.Context, kind domain.Type, snapshot map[string]any) (string, error)
}

// ErrNotConfigured is returned when no text generation backend is set up.
var ErrNotConfigured = errors.New("content generator not configured")

// GenerationError wraps every generation failure with the kind it was for.
type GenerationError struct {
	Kind domain.Type
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// AgentGenerator runs one single-turn ADK agent per call.
type AgentGenerator struct {
	prompts        *Prompts
	runner         *runner.Runner
	sessionService session.Service
}

// NewAgentGenerator creates a generator over llm with the embedded prompts.
func NewAgentGenerator(llm model.LLM) (*AgentGenerator, error) {
	prompts, err := LoadPrompts()
	if err != nil {
		return nil, err
	}

	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        "AutomationContentGenerator",
		Model:       llm,
		Description: "Writes short follow-up messages for scheduled automations.",
		Instruction: strings.TrimSpace(prompts.System),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create content generator agent: %w", err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create content generator runner: %w", err)
	}

	return &AgentGenerator{
		prompts:        prompts,
		runner:         r,
		sessionService: sessionService,
	}, nil
}

// NewFromConfig returns the Moonshot-backed generator, or Unavailable when
// no API key is configured.
func NewFromConfig(cfg config.AIConfig) (Generator, error) {
	if !cfg.IsAIEnabled() {
		return Unavailable{}, nil
	}
	return NewAgentGenerator(moonshot.NewModel(moonshot.Config{
		APIKey:          cfg.GetMoonshotAPIKey(),
		Model:           cfg.GetMoonshotModel(),
		DisableThinking: true,
		MaxTokens:       600,
	}))
}

// Generate renders the prompt from the sanitized snapshot and runs the agent.
func (g *AgentGenerator) Generate(ctx context.Context, kind domain.Type, snapshot map[string]any) (string, error) {
	prompt, err := g.prompts.Render(kind, SanitizeSnapshot(snapshot))
	if err != nil {
		return "", &GenerationError{Kind: kind, Err: err}
	}

	sessionID := uuid.New().String()
	userID := "automation-" + string(kind)

	if _, err := g.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return "", &GenerationError{Kind: kind, Err: fmt.Errorf("create session: %w", err)}
	}
	defer func() {
		_ = g.sessionService.Delete(context.WithoutCancel(ctx), &session.DeleteRequest{
			AppName:   appName,
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	userMessage := genai.NewContentFromText(prompt, genai.RoleUser)
	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeNone}

	var output strings.Builder
	for event, err := range g.runner.Run(ctx, userID, sessionID, userMessage, runConfig) {
		if err != nil {
			return "", &GenerationError{Kind: kind, Err: err}
		}
		if event == nil || event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			output.WriteString(part.Text)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", &GenerationError{Kind: kind, Err: err}
	}

	text := sanitize.Text(output.String())
	if text == "" {
		return "", &GenerationError{Kind: kind, Err: errors.New("empty response from model")}
	}
	return text, nil
}

// Unavailable fails every call; used when AI is switched off so items fail visibly.
type Unavailable struct{}

func (Unavailable) Generate(_ context.Context, kind domain.Type, _ map[string]any) (string, error) {
	return "", &GenerationError{Kind: kind, Err: ErrNotConfigured}
}
