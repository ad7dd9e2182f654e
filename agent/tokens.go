package agent

import (
	"log"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	openai "github.com/sashabaranov/go-openai"
)

// tokenizer is a package-level tiktoken instance (cl100k_base) for
// estimating outbound history size
var (
	tokenizer     *tiktoken.Tiktoken
	tokenizerErr  error
	tokenizerOnce sync.Once
)

func initTokenizer() {
	tokenizerOnce.Do(func() {
		tokenizer, tokenizerErr = tiktoken.GetEncoding("cl100k_base")
		if tokenizerErr != nil {
			log.Printf("[WARN] tiktoken init failed: %v (falling back to length estimate)", tokenizerErr)
		}
	})
}

// countTokens estimates the token count of a string
func countTokens(s string) int {
	initTokenizer()
	if tokenizer == nil {
		// Rough BPE approximation
		return len(s) / 4
	}
	return len(tokenizer.Encode(s, nil, nil))
}

// trimToBudget drops the oldest non-system messages until the estimated
// token total fits the budget. Leading system messages and the final message
// are always kept.
func trimToBudget(messages []openai.ChatCompletionMessage, budget int) []openai.ChatCompletionMessage {
	if budget <= 0 || len(messages) == 0 {
		return messages
	}

	total := 0
	for _, m := range messages {
		total += countTokens(m.Content) + 4 // per-message overhead
	}
	if total <= budget {
		return messages
	}

	head := 0
	for head < len(messages) && messages[head].Role == openai.ChatMessageRoleSystem {
		head++
	}

	drop := head
	for drop < len(messages)-1 && total > budget {
		total -= countTokens(messages[drop].Content) + 4
		drop++
	}
	if drop == head {
		return messages
	}

	log.Printf("[LOOP] history trimmed: dropped %d message(s) to fit token budget", drop-head)
	trimmed := make([]openai.ChatCompletionMessage, 0, head+len(messages)-drop)
	trimmed = append(trimmed, messages[:head]...)
	trimmed = append(trimmed, messages[drop:]...)
	return trimmed
}
