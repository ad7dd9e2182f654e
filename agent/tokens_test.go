package agent

import (
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestTrimToBudgetKeepsSmallHistory(t *testing.T) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "be brief"},
		{Role: openai.ChatMessageRoleUser, Content: "hi"},
	}
	out := trimToBudget(messages, 10000)
	if len(out) != 2 {
		t.Errorf("Expected history untouched, got %d messages", len(out))
	}
}

func TestTrimToBudgetDropsOldestFirst(t *testing.T) {
	big := strings.Repeat("word ", 500)
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "be brief"},
		{Role: openai.ChatMessageRoleUser, Content: big},
		{Role: openai.ChatMessageRoleAssistant, Content: big},
		{Role: openai.ChatMessageRoleUser, Content: "latest question"},
	}

	out := trimToBudget(messages, 200)
	if len(out) >= len(messages) {
		t.Fatalf("Expected trimming, got %d messages", len(out))
	}

	// System prefix survives
	if out[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("System message dropped: first is %s", out[0].Role)
	}
	// Final message survives
	last := out[len(out)-1]
	if last.Content != "latest question" {
		t.Errorf("Final message dropped: last is %q", last.Content)
	}
}

func TestTrimToBudgetZeroBudget(t *testing.T) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: "hi"},
	}
	out := trimToBudget(messages, 0)
	if len(out) != 1 {
		t.Errorf("Zero budget must disable trimming, got %d messages", len(out))
	}
}
