package models

import "strings"

// ============================================================
// Provider kinds
// ============================================================

const (
	ProviderOpenAI        = "openai"
	ProviderAzure         = "azure"
	ProviderGemini        = "gemini"
	ProviderBedrock       = "bedrock"
	ProviderAnthropic     = "anthropic"
	ProviderDeepSeek      = "deepseek"
	ProviderOllama        = "ollama"
	ProviderQwen          = "qwen"
	ProviderArk           = "ark"
	ProviderQianfan       = "qianfan"
	ProviderDeterministic = "deterministic"
)

// SupportedModelProviders supported model providers
var SupportedModelProviders = map[string]struct{}{
	ProviderOpenAI:        {},
	ProviderAzure:         {},
	ProviderGemini:        {},
	ProviderBedrock:       {},
	ProviderAnthropic:     {},
	ProviderDeepSeek:      {},
	ProviderOllama:        {},
	ProviderQwen:          {},
	ProviderArk:           {},
	ProviderQianfan:       {},
	ProviderDeterministic: {},
}

// LanguageModel is one configured model record of the configuration document.
// Provider-specific fields are ignored by providers that don't need them.
type LanguageModel struct {
	ID             string `json:"id" validate:"required"`
	Label          string `json:"label" validate:"required"`
	Provider       string `json:"provider" validate:"required,provider"`
	Model          string `json:"model"`                            // Backing model identifier
	APIKey         string `json:"apiKey,omitempty"`                 // openai, azure, gemini, anthropic, deepseek, qwen, ark, qianfan
	Endpoint       string `json:"endpoint,omitempty"`               // Base URL; required for azure
	DeploymentID   string `json:"deploymentId,omitempty"`           // azure
	APIVersion     string `json:"apiVersion,omitempty"`             // azure
	Region         string `json:"region,omitempty"`                 // bedrock, ark
	AccessKeyID    string `json:"accessKeyId,omitempty"`            // bedrock
	SecretKey      string `json:"secretAccessKey,omitempty"`        // bedrock
	SessionToken   string `json:"sessionToken,omitempty"`           // bedrock
	MaxTokens      int    `json:"maxTokens,omitempty" validate:"min=0"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty" validate:"min=0"`
	SupportsImages bool   `json:"supportsImages"`
	Streaming      bool   `json:"streaming"`
	Disabled       bool   `json:"disabled"`
}

// Enabled reports whether the orchestrator may route a branch to this model.
func (m *LanguageModel) Enabled() bool {
	return m != nil && !m.Disabled
}

// Normalize trims identifiers and lowercases the provider kind.
func (m *LanguageModel) Normalize() {
	m.ID = strings.TrimSpace(m.ID)
	m.Label = strings.TrimSpace(m.Label)
	m.Provider = strings.ToLower(strings.TrimSpace(m.Provider))
	m.Model = strings.TrimSpace(m.Model)
	m.Endpoint = strings.TrimSpace(m.Endpoint)
}

// DisplayName returns the label, falling back to the id.
func (m *LanguageModel) DisplayName() string {
	if m.Label != "" {
		return m.Label
	}
	return m.ID
}
