// Package config implements provider configuration storage: an on-disk YAML
// store with user and workspace levels, and an in-memory store for tests.
package config

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Source identifies where a provider configuration came from. It is runtime
// metadata and never serialized.
type Source string

const (
	SourceVSCodeUser      Source = "vscode:user"
	SourceVSCodeWorkspace Source = "vscode:workspace"
	SourceNativeUser      Source = "native:user"
	SourceNativeWorkspace Source = "native:workspace"
	SourceRuntime         Source = "runtime"
	SourceUnknown         Source = "unknown"
)

// Display returns a human-readable description of the source.
func (s Source) Display() string {
	switch s {
	case SourceVSCodeUser:
		return "VS Code User Settings"
	case SourceVSCodeWorkspace:
		return "VS Code Workspace Settings"
	case SourceNativeUser:
		return "~/.config/openllm/config.yaml"
	case SourceNativeWorkspace:
		return ".config/openllm/config.yaml"
	case SourceRuntime:
		return "Runtime"
	default:
		return "Unknown"
	}
}

// Provider is one configured LLM provider. Enabled defaults to true when the
// field is absent from the serialized form.
type Provider struct {
	Name    string   `yaml:"name" json:"name"`
	Enabled bool     `yaml:"enabled" json:"enabled"`
	APIBase string   `yaml:"api_base,omitempty" json:"api_base,omitempty"`
	Models  []string `yaml:"models" json:"models"`

	// Source is stamped by whichever store loaded the provider.
	Source Source `yaml:"-" json:"-"`
}

// NewProvider creates an enabled provider with no models.
func NewProvider(name string) Provider {
	return Provider{Name: name, Enabled: true, Source: SourceUnknown}
}

// providerAlias breaks the UnmarshalYAML/UnmarshalJSON recursion.
type providerAlias Provider

// UnmarshalYAML decodes a provider, defaulting enabled to true.
func (p *Provider) UnmarshalYAML(value *yaml.Node) error {
	a := providerAlias{Enabled: true}
	if err := value.Decode(&a); err != nil {
		return err
	}
	*p = Provider(a)
	return nil
}

// UnmarshalJSON decodes a provider, defaulting enabled to true.
func (p *Provider) UnmarshalJSON(data []byte) error {
	a := providerAlias{Enabled: true}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = Provider(a)
	return nil
}

// Defaults holds the preferred provider and model.
type Defaults struct {
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model    string `yaml:"model,omitempty" json:"model,omitempty"`
}
