package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/glinthq/convgate/pkg/config"
	"github.com/glinthq/convgate/pkg/llm"
	"github.com/glinthq/convgate/toolcache"
	"github.com/glinthq/convgate/tools"
)

// Loop drives repeated completion-service invocations, feeding tool results
// back as conversation turns, bounded by a maximum pass count.
//
// Every recoverable tool failure (bad arguments, unknown name, dispatcher
// error) is converted into a textual result the model can react to; the loop
// itself only fails when the completion service does.
type Loop struct {
	completer llm.Completer
	registry  *tools.Registry
	cache     *toolcache.Cache // optional
	maxPasses int
	stream    bool
}

// LoopOptions configure a Loop
type LoopOptions struct {
	MaxPasses int
	Stream    bool
}

// NewLoop creates a loop over the given completer and tool registry
func NewLoop(completer llm.Completer, registry *tools.Registry, cache *toolcache.Cache, opts LoopOptions) *Loop {
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = config.MaxToolPasses
	}
	return &Loop{
		completer: completer,
		registry:  registry,
		cache:     cache,
		maxPasses: opts.MaxPasses,
		stream:    opts.Stream,
	}
}

// LoopRequest is one orchestrated exchange: the assembled message list plus
// the conversation scope tools execute under.
type LoopRequest struct {
	Model    string
	Messages []openai.ChatCompletionMessage
	Tools    []openai.Tool

	AppID   string
	UserID  string
	Channel string
}

// Run executes up to maxPasses round-trips and returns the final assistant
// message. If the bound is reached with tool calls still outstanding, the
// last response is returned as-is; the loop fails open to guarantee forward
// progress.
func (l *Loop) Run(ctx context.Context, req LoopRequest) (openai.ChatCompletionMessage, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	copy(messages, req.Messages)

	var last openai.ChatCompletionMessage
	for pass := 1; pass <= l.maxPasses; pass++ {
		assistant, err := l.invoke(ctx, req.Model, messages, req.Tools)
		if err != nil {
			return openai.ChatCompletionMessage{}, fmt.Errorf("completion pass %d: %w", pass, err)
		}
		last = assistant

		if len(assistant.ToolCalls) == 0 {
			return assistant, nil
		}

		log.Printf("[LOOP] pass %d: %d tool call(s)", pass, len(assistant.ToolCalls))
		results := l.execute(req, assistant.ToolCalls)
		messages = append(messages, assistant)
		messages = append(messages, results...)
	}

	log.Printf("[WARN] tool pass bound (%d) reached, returning last response as-is", l.maxPasses)
	return last, nil
}

func (l *Loop) invoke(ctx context.Context, model string, messages []openai.ChatCompletionMessage, toolDefs []openai.Tool) (openai.ChatCompletionMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Tools:    toolDefs,
	}
	if len(toolDefs) > 0 {
		req.ToolChoice = "auto"
	}

	if !l.stream {
		resp, err := l.completer.Complete(ctx, req)
		if err != nil {
			return openai.ChatCompletionMessage{}, err
		}
		if len(resp.Choices) == 0 {
			return openai.ChatCompletionMessage{}, fmt.Errorf("empty completion response")
		}
		return resp.Choices[0].Message, nil
	}

	// Streaming pass: drive the accumulator across the chunk sequence, then
	// evaluate the merged result exactly like a non-streaming response.
	acc := NewAccumulator()
	var content strings.Builder
	err := l.completer.CompleteStream(ctx, req, func(chunk openai.ChatCompletionStreamResponse) {
		if len(chunk.Choices) == 0 {
			return
		}
		delta := chunk.Choices[0].Delta
		content.WriteString(delta.Content)
		for _, fragment := range delta.ToolCalls {
			acc.Add(fragment)
		}
	})
	if err != nil {
		return openai.ChatCompletionMessage{}, err
	}

	return openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   content.String(),
		ToolCalls: acc.Calls(),
	}, nil
}

// execute runs every requested tool call and returns one tool-role message
// per call, keyed by the call id. Failures become error-description results
// so the model can react in natural language; nothing here aborts the loop.
func (l *Loop) execute(req LoopRequest, calls []openai.ToolCall) []openai.ChatCompletionMessage {
	results := make([]openai.ChatCompletionMessage, 0, len(calls))
	for _, call := range calls {
		name := call.Function.Name
		result := l.executeOne(req, name, call.Function.Arguments)

		if l.cache != nil {
			if err := l.cache.Store(call.ID, name, result); err != nil {
				log.Printf("[WARN] tool cache store for %s failed: %v", call.ID, err)
			}
		}

		results = append(results, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    result,
			Name:       name,
			ToolCallID: call.ID,
		})
	}
	return results
}

func (l *Loop) executeOne(req LoopRequest, name, rawArgs string) string {
	args, err := lenientParseArgs(rawArgs)
	if err != nil {
		log.Printf("[ERROR] tool %s: unparseable arguments: %v", name, err)
		return fmt.Sprintf("error: tool arguments could not be parsed: %v", err)
	}

	if _, ok := l.registry.Get(name); !ok {
		log.Printf("[ERROR] unknown tool requested: %s", name)
		return fmt.Sprintf("error: unknown tool %q", name)
	}

	result, err := l.registry.Call(req.AppID, req.UserID, req.Channel, name, args)
	if err != nil {
		return fmt.Sprintf("error: tool %s failed: %v", name, err)
	}
	return result
}

// lenientParseArgs parses tool-call arguments, tolerating the trailing
// garbage a truncated stream can leave: on failure it retries at each
// closing brace from the end until a well-formed prefix parses.
func lenientParseArgs(raw string) (map[string]interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "{}"
	}

	args, err := tools.ParseArgs(raw)
	if err == nil {
		return args, nil
	}

	for i := strings.LastIndex(raw, "}"); i >= 0; i = strings.LastIndex(raw[:i], "}") {
		if args, perr := tools.ParseArgs(raw[:i+1]); perr == nil {
			return args, nil
		}
	}
	return nil, err
}
