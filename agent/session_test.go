package agent

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/glinthq/convgate/pkg/config"
	"github.com/glinthq/convgate/pkg/llm"
	"github.com/glinthq/convgate/tools"
)

type nopCompleter struct{}

func (nopCompleter) Complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{}}}, nil
}

func (nopCompleter) CompleteStream(ctx context.Context, req openai.ChatCompletionRequest, fn func(openai.ChatCompletionStreamResponse)) error {
	return nil
}

func testEndpoints() []config.Endpoint {
	return []config.Endpoint{
		{
			Name:         "stylist",
			Model:        "gpt-4o",
			Channel:      "stylist",
			SystemPrompt: "You are a fashion stylist.",
			Modes:        []string{"chat"},
			Tools:        []string{"search_fashion"},
		},
		{
			Name:    "concierge",
			Model:   "gpt-4o-mini",
			Channel: "front-desk",
			Modes:   []string{"chat", "voice"},
		},
	}
}

func newTestRegistry(t *testing.T) *SessionRegistry {
	t.Helper()
	return NewSessionRegistry(testEndpoints(), tools.NewDefaultRegistry(), func(cfg llm.Config) llm.Completer {
		return nopCompleter{}
	})
}

func TestSessionRegistryLazyInit(t *testing.T) {
	factoryCalls := 0
	reg := NewSessionRegistry(testEndpoints(), tools.NewDefaultRegistry(), func(cfg llm.Config) llm.Completer {
		factoryCalls++
		return nopCompleter{}
	})

	if factoryCalls != 0 {
		t.Errorf("Expected no sessions before first use, factory ran %d times", factoryCalls)
	}

	s1, err := reg.Get("stylist")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if factoryCalls != 1 {
		t.Errorf("Expected 1 factory call, got %d", factoryCalls)
	}
	if s1.Model != "gpt-4o" || s1.Channel != "stylist" {
		t.Errorf("Session fields not resolved: model=%s channel=%s", s1.Model, s1.Channel)
	}

	// Second lookup returns the same session without re-initializing
	s2, err := reg.Get("stylist")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if s1 != s2 {
		t.Error("Expected the same session instance on repeat lookup")
	}
	if factoryCalls != 1 {
		t.Errorf("Expected factory not to run again, got %d calls", factoryCalls)
	}
}

func TestSessionRegistryUnknownEndpoint(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.Get("nope"); err == nil {
		t.Error("Expected error for unknown endpoint")
	}
}

func TestSessionToolSpecsScoped(t *testing.T) {
	reg := newTestRegistry(t)

	stylist, err := reg.Get("stylist")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(stylist.ToolSpecs) != 1 {
		t.Fatalf("Expected 1 scoped tool spec, got %d", len(stylist.ToolSpecs))
	}
	if stylist.ToolSpecs[0].Function.Name != "search_fashion" {
		t.Errorf("Wrong tool exposed: %s", stylist.ToolSpecs[0].Function.Name)
	}

	// Endpoint without a tool list gets the whole registry
	concierge, err := reg.Get("concierge")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(concierge.ToolSpecs) != 3 {
		t.Errorf("Expected all 3 default tools, got %d", len(concierge.ToolSpecs))
	}
}

func TestSystemPromptOverride(t *testing.T) {
	reg := newTestRegistry(t)
	s, err := reg.Get("stylist")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if s.SystemPrompt() != "You are a fashion stylist." {
		t.Errorf("Expected endpoint prompt, got %q", s.SystemPrompt())
	}

	s.SetSystemPrompt("Be extremely brief.")
	if s.SystemPrompt() != "Be extremely brief." {
		t.Errorf("Override not applied: %q", s.SystemPrompt())
	}

	// Empty restores the endpoint default
	s.SetSystemPrompt("")
	if s.SystemPrompt() != "You are a fashion stylist." {
		t.Errorf("Default not restored: %q", s.SystemPrompt())
	}
}

func TestSystemPromptBuiltinDefault(t *testing.T) {
	reg := newTestRegistry(t)
	s, err := reg.Get("concierge")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if s.SystemPrompt() != "You are a helpful assistant." {
		t.Errorf("Expected built-in default, got %q", s.SystemPrompt())
	}
}
