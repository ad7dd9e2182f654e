package agent

import (
	"fmt"
	"log"
	"os"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/glinthq/convgate/pkg/config"
	"github.com/glinthq/convgate/pkg/llm"
	"github.com/glinthq/convgate/tools"
)

// EndpointSession is the per-endpoint runtime state: immutable configuration
// resolved once on first use, plus the one mutable field (the system-prompt
// override). Sessions live for the process lifetime and are never destroyed.
type EndpointSession struct {
	Endpoint  config.Endpoint
	Model     string
	BaseURL   string
	Channel   string
	Completer llm.Completer
	ToolSpecs []openai.Tool

	mu             sync.RWMutex
	promptOverride string
}

// SystemPrompt resolves the effective system prompt: the session override if
// set, else the endpoint default, else the built-in default.
func (s *EndpointSession) SystemPrompt() string {
	s.mu.RLock()
	override := s.promptOverride
	s.mu.RUnlock()

	if override != "" {
		return override
	}
	if s.Endpoint.SystemPrompt != "" {
		return s.Endpoint.SystemPrompt
	}
	return "You are a helpful assistant."
}

// SetSystemPrompt installs a session-specific override; empty restores the
// default.
func (s *EndpointSession) SetSystemPrompt(prompt string) {
	s.mu.Lock()
	s.promptOverride = prompt
	s.mu.Unlock()
}

// CompleterFactory builds a completion client for an endpoint; injectable so
// tests can substitute mocks.
type CompleterFactory func(cfg llm.Config) llm.Completer

// SessionRegistry maps logical endpoint names to their sessions, lazily
// populated on first use. It exclusively owns the EndpointSession records.
type SessionRegistry struct {
	mu        sync.Mutex
	sessions  map[string]*EndpointSession
	endpoints map[string]config.Endpoint
	registry  *tools.Registry
	factory   CompleterFactory
}

// NewSessionRegistry creates a registry over the configured endpoints
func NewSessionRegistry(endpoints []config.Endpoint, registry *tools.Registry, factory CompleterFactory) *SessionRegistry {
	if factory == nil {
		factory = func(cfg llm.Config) llm.Completer { return llm.New(cfg) }
	}
	byName := make(map[string]config.Endpoint, len(endpoints))
	for _, ep := range endpoints {
		byName[ep.Name] = ep
	}
	return &SessionRegistry{
		sessions:  make(map[string]*EndpointSession),
		endpoints: byName,
		registry:  registry,
		factory:   factory,
	}
}

// Get returns the session for the named endpoint, initializing it on first
// use: resolve model, base URL and API key, build the completion client,
// and snapshot the endpoint's tool definitions.
func (r *SessionRegistry) Get(name string) (*EndpointSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[name]; ok {
		return session, nil
	}

	ep, ok := r.endpoints[name]
	if !ok {
		return nil, fmt.Errorf("unknown endpoint: %s", name)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if ep.APIKeyEnv != "" {
		if v := os.Getenv(ep.APIKeyEnv); v != "" {
			apiKey = v
		}
	}

	var specs []openai.Tool
	if r.registry != nil {
		if len(ep.Tools) > 0 {
			specs = r.registry.Specs(ep.Tools)
		} else {
			specs = r.registry.Specs(nil)
		}
	}

	session := &EndpointSession{
		Endpoint: ep,
		Model:    ep.Model,
		BaseURL:  ep.BaseURL,
		Channel:  ep.Channel,
		Completer: r.factory(llm.Config{
			APIKey:  apiKey,
			BaseURL: ep.BaseURL,
			Model:   ep.Model,
		}),
		ToolSpecs: specs,
	}
	r.sessions[name] = session
	log.Printf("[SESSION] endpoint %s initialized: model=%s channel=%s tools=%d", name, ep.Model, ep.Channel, len(specs))
	return session, nil
}

// Names returns the configured endpoint names
func (r *SessionRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	return names
}
