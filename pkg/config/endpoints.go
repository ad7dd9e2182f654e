package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Endpoint describes one logical bot endpoint: which model answers, over
// which channel, with which tools and default persona.
type Endpoint struct {
	Name         string   `yaml:"name"`
	Model        string   `yaml:"model,omitempty"`
	BaseURL      string   `yaml:"baseUrl,omitempty"`
	APIKeyEnv    string   `yaml:"apiKeyEnv,omitempty"`
	Channel      string   `yaml:"channel,omitempty"`
	SystemPrompt string   `yaml:"systemPrompt,omitempty"`
	Modes        []string `yaml:"modes,omitempty"` // chat, voice, video
	Tools        []string `yaml:"tools,omitempty"`
	Stream       bool     `yaml:"stream,omitempty"`
}

// EndpointsFile is the on-disk shape of endpoints.yaml
type EndpointsFile struct {
	AppID     string     `yaml:"appId"`
	Endpoints []Endpoint `yaml:"endpoints"`
}

// LoadEndpoints reads and validates endpoints.yaml
func LoadEndpoints(path string) (*EndpointsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read endpoints config: %v", err)
	}

	var f EndpointsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse endpoints config: %v", err)
	}

	if f.AppID == "" {
		f.AppID = "default"
	}
	seen := make(map[string]bool, len(f.Endpoints))
	for i := range f.Endpoints {
		ep := &f.Endpoints[i]
		if ep.Name == "" {
			return nil, fmt.Errorf("endpoint %d: name required", i)
		}
		if seen[ep.Name] {
			return nil, fmt.Errorf("endpoint %q: duplicate name", ep.Name)
		}
		seen[ep.Name] = true
		if ep.Model == "" {
			ep.Model = DefaultModel
		}
		if ep.BaseURL == "" {
			ep.BaseURL = DefaultBaseURL
		}
		if ep.Channel == "" {
			ep.Channel = ep.Name
		}
		if len(ep.Modes) == 0 {
			ep.Modes = []string{"chat"}
		}
	}
	return &f, nil
}
