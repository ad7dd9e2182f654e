package agent

import (
	"sort"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// Accumulator merges the partial, index-addressed tool-call fragments of one
// streamed turn into complete, executable tool calls. Slots are keyed by the
// fragment index so concurrent calls within a turn accumulate independently;
// within a slot, a fragment whose function name differs from the accumulated
// name resets that slot.
//
// The accumulator is only correct when the stream delivers fragments for a
// given index in order; that is the upstream contract.
type Accumulator struct {
	slots map[int]*openai.ToolCall
}

// NewAccumulator returns an empty accumulator for a single streamed turn
func NewAccumulator() *Accumulator {
	return &Accumulator{slots: make(map[int]*openai.ToolCall)}
}

// Add consumes one fragment. Any subset of fields may be present; the
// arguments field is an append-only suffix of the final JSON text.
func (a *Accumulator) Add(fragment openai.ToolCall) {
	idx := 0
	if fragment.Index != nil {
		idx = *fragment.Index
	}

	slot, ok := a.slots[idx]
	if !ok || (fragment.Function.Name != "" && fragment.Function.Name != slot.Function.Name) {
		a.slots[idx] = newSlot(idx, fragment)
		return
	}

	if fragment.ID != "" {
		slot.ID = fragment.ID
	}
	if fragment.Function.Name != "" {
		slot.Function.Name = fragment.Function.Name
	}
	// Arguments arrive as substring fragments; append, never replace.
	slot.Function.Arguments += fragment.Function.Arguments
}

func newSlot(idx int, fragment openai.ToolCall) *openai.ToolCall {
	call := fragment
	call.Index = &idx
	if call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}
	if call.Type == "" {
		call.Type = openai.ToolTypeFunction
	}
	return &call
}

// Calls returns the merged tool calls in index order. Callers read this
// after the turn's terminal chunk; the result is a copy.
func (a *Accumulator) Calls() []openai.ToolCall {
	if len(a.slots) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(a.slots))
	for idx := range a.slots {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	calls := make([]openai.ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		calls = append(calls, *a.slots[idx])
	}
	return calls
}

// Len returns the number of in-flight calls
func (a *Accumulator) Len() int { return len(a.slots) }

// Reset discards all accumulated state; used between streamed turns
func (a *Accumulator) Reset() {
	a.slots = make(map[int]*openai.ToolCall)
}
