package tools

import (
	"strings"
	"testing"
)

func TestRegistryRegisterGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&OrderSandwichTool{})

	tool, ok := r.Get("order_sandwich")
	if !ok {
		t.Fatal("Registered tool not found")
	}
	if tool.Name() != "order_sandwich" {
		t.Errorf("Wrong tool: %s", tool.Name())
	}

	if _, ok := r.Get("nonexistent"); ok {
		t.Error("Unregistered tool found")
	}
}

func TestDefaultRegistryList(t *testing.T) {
	r := NewDefaultRegistry()
	names := r.List()
	if len(names) != 3 {
		t.Fatalf("Expected 3 built-in tools, got %d", len(names))
	}
	// List is sorted
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("List not sorted: %v", names)
		}
	}
}

func TestRegistryCall(t *testing.T) {
	r := NewDefaultRegistry()

	result, err := r.Call("app1", "alice", "front-desk", "order_sandwich", map[string]interface{}{
		"filling": "Turkey",
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(result, "Turkey") || !strings.Contains(result, "alice") {
		t.Errorf("Result missing order details: %s", result)
	}
}

func TestRegistryCallUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Call("a", "u", "c", "ghost", nil); err == nil {
		t.Error("Expected error for unknown tool")
	}
}

func TestRegistryCallToolError(t *testing.T) {
	r := NewDefaultRegistry()
	// Missing required filling
	if _, err := r.Call("a", "u", "c", "order_sandwich", map[string]interface{}{}); err == nil {
		t.Error("Expected error for missing required argument")
	}
}

func TestSpecs(t *testing.T) {
	r := NewDefaultRegistry()

	all := r.Specs(nil)
	if len(all) != 3 {
		t.Fatalf("Expected 3 specs for nil names, got %d", len(all))
	}
	for _, spec := range all {
		if spec.Function == nil || spec.Function.Name == "" {
			t.Errorf("Spec missing function definition: %+v", spec)
		}
	}

	scoped := r.Specs([]string{"send_photo", "ghost"})
	if len(scoped) != 1 {
		t.Fatalf("Expected unknown names skipped, got %d specs", len(scoped))
	}
	if scoped[0].Function.Name != "send_photo" {
		t.Errorf("Wrong scoped spec: %s", scoped[0].Function.Name)
	}
}

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs(`{"filling":"Ham","limit":2,"rush":true}`)
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	if GetString(args, "filling") != "Ham" {
		t.Errorf("GetString wrong: %v", args)
	}
	if GetInt(args, "limit") != 2 {
		t.Errorf("GetInt wrong: %v", args)
	}
	if !GetBool(args, "rush") {
		t.Errorf("GetBool wrong: %v", args)
	}

	if _, err := ParseArgs("not json"); err == nil {
		t.Error("Expected parse error")
	}
}

func TestGetIntFromString(t *testing.T) {
	args := map[string]interface{}{"limit": "7"}
	if GetInt(args, "limit") != 7 {
		t.Errorf("String coercion failed: %v", args)
	}
}

func TestSearchFashionLimit(t *testing.T) {
	tool := &SearchFashionTool{}

	result, err := tool.Execute("a", "u", "c", map[string]interface{}{"query": "linen blazer", "limit": float64(2)})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if strings.Count(result, "linen blazer") != 2 {
		t.Errorf("Limit not honored: %s", result)
	}

	// Out-of-range limit falls back to the default
	result, _ = tool.Execute("a", "u", "c", map[string]interface{}{"query": "scarf", "limit": float64(100)})
	if strings.Count(result, "scarf") != 3 {
		t.Errorf("Default limit not applied: %s", result)
	}
}

func TestSendPhotoSlug(t *testing.T) {
	tool := &SendPhotoTool{}
	result, err := tool.Execute("a", "u", "c", map[string]interface{}{"subject": "Grey Cat"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(result, "grey-cat.jpg") {
		t.Errorf("Subject not slugged: %s", result)
	}
}

func TestTruncate(t *testing.T) {
	if Truncate("short", 10) != "short" {
		t.Error("Short string must pass through")
	}
	long := Truncate(strings.Repeat("x", 20), 10)
	if !strings.HasPrefix(long, "xxxxxxxxxx") || !strings.Contains(long, "truncated") {
		t.Errorf("Truncation wrong: %s", long)
	}
}
