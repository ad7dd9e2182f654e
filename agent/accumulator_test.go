package agent

import (
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func intPtr(i int) *int { return &i }

func TestAccumulatorConcatenatesArguments(t *testing.T) {
	acc := NewAccumulator()

	acc.Add(openai.ToolCall{
		Index: intPtr(0),
		ID:    "call_1",
		Type:  openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      "order_sandwich",
			Arguments: `{"fill`,
		},
	})
	acc.Add(openai.ToolCall{
		Index:    intPtr(0),
		Function: openai.FunctionCall{Arguments: `ing": "Tur`},
	})
	acc.Add(openai.ToolCall{
		Index:    intPtr(0),
		Function: openai.FunctionCall{Arguments: `key"}`},
	})

	calls := acc.Calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(calls))
	}
	if calls[0].ID != "call_1" {
		t.Errorf("Expected id call_1, got %s", calls[0].ID)
	}
	if calls[0].Function.Name != "order_sandwich" {
		t.Errorf("Expected name order_sandwich, got %s", calls[0].Function.Name)
	}
	if calls[0].Function.Arguments != `{"filling": "Turkey"}` {
		t.Errorf("Arguments not concatenated in order: %s", calls[0].Function.Arguments)
	}
}

func TestAccumulatorResetOnNameChange(t *testing.T) {
	acc := NewAccumulator()

	acc.Add(openai.ToolCall{
		Index:    intPtr(0),
		ID:       "call_a",
		Function: openai.FunctionCall{Name: "first_tool", Arguments: `{"x":1}`},
	})
	// Same slot, different function name: a fresh logical call begins
	acc.Add(openai.ToolCall{
		Index:    intPtr(0),
		ID:       "call_b",
		Function: openai.FunctionCall{Name: "second_tool", Arguments: `{"y":`},
	})
	acc.Add(openai.ToolCall{
		Index:    intPtr(0),
		Function: openai.FunctionCall{Arguments: `2}`},
	})

	calls := acc.Calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 call after reset, got %d", len(calls))
	}
	if calls[0].Function.Name != "second_tool" {
		t.Errorf("Expected second_tool, got %s", calls[0].Function.Name)
	}
	if calls[0].Function.Arguments != `{"y":2}` {
		t.Errorf("Stale arguments survived reset: %s", calls[0].Function.Arguments)
	}
}

func TestAccumulatorSynthesizesMissingFields(t *testing.T) {
	acc := NewAccumulator()

	// No ID, no type on the opening fragment
	acc.Add(openai.ToolCall{
		Index:    intPtr(0),
		Function: openai.FunctionCall{Name: "send_photo", Arguments: `{}`},
	})

	calls := acc.Calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(calls))
	}
	if !strings.HasPrefix(calls[0].ID, "call_") {
		t.Errorf("Expected synthesized call_ id, got %q", calls[0].ID)
	}
	if calls[0].Type != openai.ToolTypeFunction {
		t.Errorf("Expected function type default, got %q", calls[0].Type)
	}
}

func TestAccumulatorMultipleSlots(t *testing.T) {
	acc := NewAccumulator()

	acc.Add(openai.ToolCall{
		Index:    intPtr(1),
		ID:       "call_b",
		Function: openai.FunctionCall{Name: "send_photo", Arguments: `{"subject":"cat"}`},
	})
	acc.Add(openai.ToolCall{
		Index:    intPtr(0),
		ID:       "call_a",
		Function: openai.FunctionCall{Name: "order_sandwich", Arguments: `{"filling":"Ham"}`},
	})

	calls := acc.Calls()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 calls, got %d", len(calls))
	}
	if calls[0].ID != "call_a" || calls[1].ID != "call_b" {
		t.Errorf("Calls not ordered by index: %s, %s", calls[0].ID, calls[1].ID)
	}
}

func TestAccumulatorReset(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(openai.ToolCall{
		Index:    intPtr(0),
		ID:       "call_1",
		Function: openai.FunctionCall{Name: "order_sandwich"},
	})
	if acc.Len() != 1 {
		t.Fatalf("Expected 1 slot, got %d", acc.Len())
	}
	acc.Reset()
	if acc.Len() != 0 {
		t.Errorf("Expected empty accumulator after reset, got %d", acc.Len())
	}
}
