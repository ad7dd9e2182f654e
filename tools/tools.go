// Tools module - tool invocation framework
package tools

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"

	openai "github.com/sashabaranov/go-openai"
)

// Tool defines the tool interface. Execute receives the conversation scope
// so implementations can act on behalf of the right user; it must return
// expected domain errors as error values, never panic.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(appID, userID, channel string, args map[string]interface{}) (string, error)
}

// Registry holds registered tools
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// NewDefaultRegistry returns a registry with the built-in tools
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&OrderSandwichTool{})
	r.Register(&SendPhotoTool{})
	r.Register(&SearchFashionTool{})
	return r
}

// Register a tool
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
	log.Printf("[OK] tool registered: %s", t.Name())
}

// Get returns a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List all tool names, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes a tool by name within the given conversation scope
func (r *Registry) Call(appID, userID, channel, name string, args map[string]interface{}) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("tool not found: %s", name)
	}

	log.Printf("[TOOL] calling tool: %s, args: %v", name, args)
	result, err := t.Execute(appID, userID, channel, args)
	if err != nil {
		log.Printf("[ERROR] tool failed: %s - %v", name, err)
		return "", err
	}

	log.Printf("[OK] tool succeeded: %s", name)
	return result, nil
}

// Specs returns the OpenAI tool definitions for the named tools.
// nil names means all registered tools.
func (r *Registry) Specs(names []string) []openai.Tool {
	if names == nil {
		names = r.List()
	}
	specs := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		t, ok := r.Get(name)
		if !ok {
			log.Printf("[WARN] tool spec requested for unknown tool: %s", name)
			continue
		}
		specs = append(specs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return specs
}

// ParseArgs parses JSON args
func ParseArgs(argsJSON string) (map[string]interface{}, error) {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, fmt.Errorf("failed to parse args: %v", err)
	}
	return args, nil
}

// GetString gets a string arg
func GetString(args map[string]interface{}, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt gets an int arg
func GetInt(args map[string]interface{}, key string) int {
	if v, ok := args[key]; ok {
		switch f := v.(type) {
		case float64:
			return int(f)
		case int:
			return f
		case string:
			var i int
			fmt.Sscanf(f, "%d", &i)
			return i
		}
	}
	return 0
}

// GetBool gets a bool arg
func GetBool(args map[string]interface{}, key string) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// Truncate long text
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...\n(content truncated)"
}
