package generator

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"fieldops_backend/internal/automation/domain"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

const pricingRule = "Never mention prices, amounts, totals or any other monetary figure."

// KindPrompt is the prompt template of one automation type.
type KindPrompt struct {
	Instruction string         `yaml:"instruction"`
	Tones       map[int]string `yaml:"tones"`
}

// Prompts holds the system prompt, the shared rules and one template per type.
type Prompts struct {
	System string                     `yaml:"system"`
	Rules  []string                   `yaml:"rules"`
	Kinds  map[domain.Type]KindPrompt `yaml:"kinds"`
}

// LoadPrompts parses the embedded templates.
func LoadPrompts() (*Prompts, error) {
	return ParsePrompts(promptsYAML)
}

// ParsePrompts parses templates from raw YAML. Every automation type needs a
// template and the pricing rule must be present.
func ParsePrompts(raw []byte) (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	for _, t := range domain.AllTypes {
		kp, ok := p.Kinds[t]
		if !ok || strings.TrimSpace(kp.Instruction) == "" {
			return nil, fmt.Errorf("prompts: missing template for %s", t)
		}
	}
	if !containsRule(p.Rules, pricingRule) {
		p.Rules = append([]string{pricingRule}, p.Rules...)
	}
	return &p, nil
}

func containsRule(rules []string, rule string) bool {
	for _, r := range rules {
		if strings.EqualFold(strings.TrimSpace(r), rule) {
			return true
		}
	}
	return false
}

// Render builds the user prompt for kind from an already sanitized snapshot.
func (p *Prompts) Render(kind domain.Type, snapshot map[string]any) (string, error) {
	kp, ok := p.Kinds[kind]
	if !ok {
		return "", fmt.Errorf("no prompt template for %s", kind)
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value := formatValue(snapshot[k])
		if value == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", strings.ReplaceAll(k, "_", " "), value)
	}

	b.WriteString("\nTask:\n")
	b.WriteString(strings.TrimSpace(kp.Instruction))
	if tone := kp.tone(snapshot); tone != "" {
		fmt.Fprintf(&b, "\nTone: %s.", tone)
	}

	b.WriteString("\n\nRules:\n")
	for _, rule := range p.Rules {
		fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(rule))
	}
	return b.String(), nil
}

// tone picks the escalation step named by sequence_days.
func (kp KindPrompt) tone(snapshot map[string]any) string {
	if len(kp.Tones) == 0 {
		return ""
	}
	var days int
	switch v := snapshot["sequence_days"].(type) {
	case int:
		days = v
	case float64:
		days = int(v)
	default:
		return ""
	}
	return kp.Tones[days]
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		trimmed := strings.TrimSpace(value)
		if t, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
			return t.UTC().Format("Monday 2 January 2006")
		}
		return trimmed
	case float64:
		if value == float64(int64(value)) {
			return fmt.Sprintf("%d", int64(value))
		}
		return fmt.Sprintf("%g", value)
	default:
		return fmt.Sprint(value)
	}
}
