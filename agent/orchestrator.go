// Agent module - conversational orchestration between the RTM transport and
// the completion service

package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
	openai "github.com/sashabaranov/go-openai"

	"github.com/glinthq/convgate/pkg/config"
	"github.com/glinthq/convgate/rtm"
	"github.com/glinthq/convgate/storage"
	"github.com/glinthq/convgate/toolcache"
)

// Transport is the outbound half of the real-time-messaging contract
type Transport interface {
	Publish(target, payload string, opts rtm.PublishOptions) bool
}

// Subscriber is the inbound half of the real-time-messaging contract
type Subscriber interface {
	SubscribeMessages(appID, fromUser, channel string, handler rtm.MessageHandler)
}

// ConversationStore is the long-term conversation persistence contract
type ConversationStore interface {
	GetOrCreate(appID, userID, channel string) (*storage.Conversation, error)
	Append(appID, userID, channel string, msg storage.Message) error
	Messages(appID, userID, channel string) ([]storage.Message, error)
}

// CustomType values used on outbound publishes
const (
	CustomTypeTyping = "typing_start"
)

// Orchestrator processes inbound messages: load conversation, assemble the
// request, run the tool loop, extract commands, persist, deliver.
//
// Messages for the same (appId, userId, channel) are serialized on a
// single-consumer lane; unrelated conversations proceed concurrently. The
// delayed text delivery is a cancellable timer per conversation, so a
// superseding message replaces a pending one instead of stacking duplicates.
type Orchestrator struct {
	appID     string
	sessions  *SessionRegistry
	store     ConversationStore
	cache     *toolcache.Cache
	transport Transport

	lanesMu sync.Mutex
	lanes   map[string]chan func()

	pendingMu sync.Mutex
	pending   map[string]*time.Timer

	// injectable for tests
	delayFn func(textLen int) time.Duration
	now     func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// OrchestratorConfig wires the orchestrator's collaborators explicitly;
// there are no package-level singletons.
type OrchestratorConfig struct {
	AppID     string
	Sessions  *SessionRegistry
	Store     ConversationStore
	Cache     *toolcache.Cache
	Transport Transport
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		appID:     cfg.AppID,
		sessions:  cfg.Sessions,
		store:     cfg.Store,
		cache:     cfg.Cache,
		transport: cfg.Transport,
		lanes:     make(map[string]chan func()),
		pending:   make(map[string]*time.Timer),
		delayFn:   deliveryDelay,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
}

// Bind subscribes the orchestrator to the endpoint's channel on the
// transport
func (o *Orchestrator) Bind(sub Subscriber, endpoint string) error {
	session, err := o.sessions.Get(endpoint)
	if err != nil {
		return err
	}
	sub.SubscribeMessages(o.appID, "", session.Channel, func(publisher, message string) {
		o.HandleInbound(endpoint, publisher, message, "")
	})
	log.Printf("[OK] orchestrator bound: endpoint=%s channel=%s", endpoint, session.Channel)
	return nil
}

// SetSystemPrompt installs a session-specific system prompt override for the
// endpoint. This is the only sanctioned session mutation.
func (o *Orchestrator) SetSystemPrompt(endpoint, prompt string) error {
	session, err := o.sessions.Get(endpoint)
	if err != nil {
		return err
	}
	session.SetSystemPrompt(prompt)
	return nil
}

// HandleInbound accepts one inbound message and enqueues it on the
// conversation's lane. Messages without a sender are dropped.
func (o *Orchestrator) HandleInbound(endpoint, publisher, text, mode string) {
	if publisher == "" {
		log.Printf("[WARN] inbound message without publisher dropped")
		return
	}

	session, err := o.sessions.Get(endpoint)
	if err != nil {
		log.Printf("[ERROR] inbound for unknown endpoint %s: %v", endpoint, err)
		return
	}

	if !validMode(mode, session.Endpoint.Modes) {
		mode = "chat"
	}

	key := laneKey(o.appID, publisher, session.Channel)
	o.enqueue(key, func() {
		o.process(session, publisher, text, mode)
	})
}

func validMode(mode string, supported []string) bool {
	for _, m := range supported {
		if m == mode {
			return true
		}
	}
	return false
}

func laneKey(appID, userID, channel string) string {
	return appID + "|" + userID + "|" + channel
}

func (o *Orchestrator) enqueue(key string, task func()) {
	o.lanesMu.Lock()
	ch, ok := o.lanes[key]
	if !ok {
		ch = make(chan func(), 16)
		o.lanes[key] = ch
		go o.runLane(ch)
	}
	o.lanesMu.Unlock()

	select {
	case ch <- task:
	default:
		log.Printf("[WARN] lane %s full, message dropped", key)
	}
}

func (o *Orchestrator) runLane(ch chan func()) {
	for {
		select {
		case task := <-ch:
			task()
		case <-o.stop:
			return
		}
	}
}

// process walks one inbound message through assembly, the tool loop, command
// extraction, persistence and delivery. Persistence of the assistant's text
// happens before delivery: a crash in between loses only the delivery,
// never conversation history.
func (o *Orchestrator) process(session *EndpointSession, userID, text, mode string) {
	channel := session.Channel

	// Assembling
	inbound := storage.Message{
		Role:      openai.ChatMessageRoleUser,
		Content:   text,
		Mode:      mode,
		Timestamp: o.now(),
	}
	if err := o.store.Append(o.appID, userID, channel, inbound); err != nil {
		log.Printf("[ERROR] persist inbound message: %v", err)
		return
	}

	history, err := o.store.Messages(o.appID, userID, channel)
	if err != nil {
		log.Printf("[ERROR] load conversation %s/%s/%s: %v", o.appID, userID, channel, err)
		return
	}

	outbound := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	outbound = append(outbound, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: session.SystemPrompt() + modeContext(session.Endpoint.Modes),
	})
	outbound = append(outbound, toProtocol(history)...)
	outbound = trimToBudget(outbound, config.HistoryTokenBudget)

	// Executing
	loop := NewLoop(session.Completer, o.sessions.registry, o.cache, LoopOptions{
		Stream: session.Endpoint.Stream,
	})
	final, err := loop.Run(context.Background(), LoopRequest{
		Model:    session.Model,
		Messages: outbound,
		Tools:    session.ToolSpecs,
		AppID:    o.appID,
		UserID:   userID,
		Channel:  channel,
	})
	if err != nil {
		log.Printf("[ERROR] completion failed for %s/%s: %v", userID, channel, err)
		return
	}

	// Extracting
	cleaned, commands := ExtractCommands(final.Content)

	// Persisting
	if strings.TrimSpace(cleaned) != "" {
		assistant := storage.Message{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   cleaned,
			Mode:      mode,
			Timestamp: o.now(),
		}
		if err := o.store.Append(o.appID, userID, channel, assistant); err != nil {
			log.Printf("[WARN] persist assistant message: %v", err)
		}
	}

	// Delivering
	o.deliver(session, userID, cleaned, commands)
}

// deliver publishes commands and the typing indicator immediately, then the
// cleaned text after the humanizing delay, asynchronously.
func (o *Orchestrator) deliver(session *EndpointSession, userID, cleaned string, commands []string) {
	channelType := session.Channel

	for _, cmd := range commands {
		if !o.transport.Publish(userID, cmd, rtm.PublishOptions{
			CustomType:  commandCustomType(cmd),
			ChannelType: channelType,
		}) {
			log.Printf("[WARN] command publish to %s failed", userID)
		}
	}

	if strings.TrimSpace(cleaned) == "" {
		return
	}

	if !o.transport.Publish(userID, "", rtm.PublishOptions{
		CustomType:  CustomTypeTyping,
		ChannelType: channelType,
	}) {
		log.Printf("[WARN] typing indicator publish to %s failed", userID)
	}

	key := laneKey(o.appID, userID, session.Channel)
	delay := o.delayFn(len(cleaned))

	o.pendingMu.Lock()
	if prev, ok := o.pending[key]; ok {
		prev.Stop()
	}
	o.pending[key] = time.AfterFunc(delay, func() {
		o.pendingMu.Lock()
		delete(o.pending, key)
		o.pendingMu.Unlock()

		if !o.transport.Publish(userID, cleaned, rtm.PublishOptions{ChannelType: channelType}) {
			log.Printf("[WARN] text publish to %s failed", userID)
		}
	})
	o.pendingMu.Unlock()
}

// Stop halts lane processing and cancels pending deliveries
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stop) })
	o.pendingMu.Lock()
	for key, timer := range o.pending {
		timer.Stop()
		delete(o.pending, key)
	}
	o.pendingMu.Unlock()
}

// toProtocol strips stored messages down to the protocol fields before they
// leave the process
func toProtocol(history []storage.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		out = append(out, openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
		})
	}
	return out
}

// modeContext is the system-prompt suffix describing the communication modes
// currently available on this endpoint
func modeContext(modes []string) string {
	if len(modes) == 0 {
		modes = []string{"chat"}
	}
	return fmt.Sprintf("\n\nYou are chatting over a real-time messaging transport. Available communication modes: %s.", strings.Join(modes, ", "))
}

// commandCustomType derives the transport customType from a command's first
// token, e.g. "<order_confirmation turkey>" -> "order_confirmation".
// Unparseable payloads fall back to the generic type.
func commandCustomType(cmd string) string {
	interior := strings.TrimSuffix(strings.TrimPrefix(cmd, "<"), ">")
	fields, err := shlex.Split(interior)
	if err != nil || len(fields) == 0 {
		return "command"
	}
	return fields[0]
}

// Ensure the SQLite store satisfies the persistence contract
var _ ConversationStore = (*storage.Storage)(nil)

// Ensure the RTM client satisfies both transport contracts
var (
	_ Transport  = (*rtm.Client)(nil)
	_ Subscriber = (*rtm.Client)(nil)
)
