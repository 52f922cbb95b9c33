package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/utils"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino-ext/components/model/qianfan"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// Builder constructs the chat model backing one provider kind.
type Builder func(ctx context.Context, m *models.LanguageModel) (einoModel.BaseChatModel, error)

const (
	defaultMaxTokens     = 4096
	defaultAzureVersion  = "2024-06-01"
	defaultOllamaBaseURL = "http://localhost:11434"
)

// Factory selects a provider per model record. Selection never fails: anything
// that cannot be built falls back to the deterministic provider.
type Factory struct {
	mu       sync.RWMutex
	builders map[string]Builder
	required map[string][]string
	logger   *slog.Logger
}

// NewFactory returns a factory with all built-in provider kinds registered.
func NewFactory() *Factory {
	f := &Factory{
		builders: map[string]Builder{},
		required: map[string][]string{},
		logger:   utils.GetLogger(),
	}
	f.Register(models.ProviderOpenAI, buildOpenAI, "apiKey")
	f.Register(models.ProviderAzure, buildAzure, "apiKey", "endpoint", "deploymentId")
	f.Register(models.ProviderGemini, buildGemini, "apiKey")
	f.Register(models.ProviderBedrock, buildBedrock, "region", "accessKeyId", "secretAccessKey")
	f.Register(models.ProviderAnthropic, buildAnthropic, "apiKey")
	f.Register(models.ProviderDeepSeek, buildDeepSeek, "apiKey")
	f.Register(models.ProviderOllama, buildOllama)
	f.Register(models.ProviderQwen, buildQwen, "apiKey")
	f.Register(models.ProviderArk, buildArk, "apiKey")
	f.Register(models.ProviderQianfan, buildQianfan, "apiKey")
	return f
}

// Register installs or replaces the builder for a provider kind together with
// the model fields it cannot work without.
func (f *Factory) Register(kind string, b Builder, required ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[kind] = b
	f.required[kind] = required
}

// NewProvider returns the provider for m, or the deterministic provider when
// the kind is unknown, misconfigured, or its builder fails or panics.
func (f *Factory) NewProvider(ctx context.Context, m *models.LanguageModel) (p Provider) {
	if m == nil {
		return NewDeterministicProvider(nil)
	}
	if m.Provider == models.ProviderDeterministic {
		return NewDeterministicProvider(m)
	}

	f.mu.RLock()
	build, ok := f.builders[m.Provider]
	required := f.required[m.Provider]
	f.mu.RUnlock()

	if !ok {
		f.logger.Warn("Unknown provider kind, using deterministic fallback", "provider", m.Provider, "modelID", m.ID)
		return NewDeterministicProvider(m)
	}
	if missing := MissingFields(m, required); len(missing) > 0 {
		f.logger.Warn("Model is missing required fields, using deterministic fallback",
			"provider", m.Provider, "modelID", m.ID, "missing", missing)
		return NewDeterministicProvider(m)
	}

	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("Provider construction panicked, using deterministic fallback",
				"provider", m.Provider, "modelID", m.ID, "panic", r)
			p = NewDeterministicProvider(m)
		}
	}()

	chat, err := build(ctx, m)
	if err != nil || chat == nil {
		f.logger.Warn("Provider construction failed, using deterministic fallback",
			"provider", m.Provider, "modelID", m.ID, "error", err)
		return NewDeterministicProvider(m)
	}
	return NewChatModelProvider(m, chat)
}

// MissingFields lists the JSON names of required fields that are blank on m.
func MissingFields(m *models.LanguageModel, required []string) []string {
	var missing []string
	for _, field := range required {
		var v string
		switch field {
		case "apiKey":
			v = m.APIKey
		case "endpoint":
			v = m.Endpoint
		case "deploymentId":
			v = m.DeploymentID
		case "region":
			v = m.Region
		case "accessKeyId":
			v = m.AccessKeyID
		case "secretAccessKey":
			v = m.SecretKey
		case "model":
			v = m.Model
		}
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

func timeout(m *models.LanguageModel) time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

func maxTokens(m *models.LanguageModel) int {
	if m.MaxTokens > 0 {
		return m.MaxTokens
	}
	return defaultMaxTokens
}

func buildOpenAI(ctx context.Context, m *models.LanguageModel) (einoModel.BaseChatModel, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: m.Endpoint,
		APIKey:  m.APIKey,
		Model:   m.Model,
		Timeout: timeout(m),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
	}
	return chatModel, nil
}

func buildAzure(ctx context.Context, m *models.LanguageModel) (einoModel.BaseChatModel, error) {
	version := m.APIVersion
	if version == "" {
		version = defaultAzureVersion
	}
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		ByAzure:    true,
		BaseURL:    m.Endpoint,
		APIVersion: version,
		APIKey:     m.APIKey,
		Model:      m.DeploymentID,
		Timeout:    timeout(m),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure OpenAI model: %w", err)
	}
	return chatModel, nil
}

func buildGemini(ctx context.Context, m *models.LanguageModel) (einoModel.BaseChatModel, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  m.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client: genaiClient,
		Model:  m.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini model: %w", err)
	}
	return chatModel, nil
}

func buildBedrock(ctx context.Context, m *models.LanguageModel) (einoModel.BaseChatModel, error) {
	chatModel, err := claude.NewChatModel(ctx, &claude.Config{
		ByBedrock:       true,
		AccessKey:       m.AccessKeyID,
		SecretAccessKey: m.SecretKey,
		SessionToken:    m.SessionToken,
		Region:          m.Region,
		Model:           m.Model,
		MaxTokens:       maxTokens(m),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Bedrock model: %w", err)
	}
	return chatModel, nil
}

func buildAnthropic(ctx context.Context, m *models.LanguageModel) (einoModel.BaseChatModel, error) {
	cfg := &claude.Config{
		APIKey:    m.APIKey,
		Model:     m.Model,
		MaxTokens: maxTokens(m),
	}
	if m.Endpoint != "" {
		cfg.BaseURL = &m.Endpoint
	}
	chatModel, err := claude.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Claude model: %w", err)
	}
	return chatModel, nil
}

func buildDeepSeek(ctx context.Context, m *models.LanguageModel) (einoModel.BaseChatModel, error) {
	chatModel, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
		BaseURL: m.Endpoint,
		APIKey:  m.APIKey,
		Model:   m.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DeepSeek model: %w", err)
	}
	return chatModel, nil
}

func buildOllama(ctx context.Context, m *models.LanguageModel) (einoModel.BaseChatModel, error) {
	baseURL := m.Endpoint
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	chatModel, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   m.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama model: %w", err)
	}
	return chatModel, nil
}

func buildQwen(ctx context.Context, m *models.LanguageModel) (einoModel.BaseChatModel, error) {
	chatModel, err := qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
		BaseURL: m.Endpoint,
		APIKey:  m.APIKey,
		Model:   m.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qwen model: %w", err)
	}
	return chatModel, nil
}

func buildArk(ctx context.Context, m *models.LanguageModel) (einoModel.BaseChatModel, error) {
	t := 600 * time.Second
	if m.TimeoutSeconds > 0 {
		t = timeout(m)
	}
	retries := 3
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:    m.Endpoint,
		Region:     m.Region,
		Timeout:    &t,
		RetryTimes: &retries,
		APIKey:     m.APIKey,
		Model:      m.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Ark model: %w", err)
	}
	return chatModel, nil
}

var qianfanMu sync.Mutex

func buildQianfan(ctx context.Context, m *models.LanguageModel) (einoModel.BaseChatModel, error) {
	// The qianfan SDK reads credentials from a process-wide singleton.
	qianfanMu.Lock()
	defer qianfanMu.Unlock()
	qianfanConfig := qianfan.GetQianfanSingletonConfig()
	qianfanConfig.BaseURL = m.Endpoint
	qianfanConfig.BearerToken = m.APIKey
	chatModel, err := qianfan.NewChatModel(ctx, &qianfan.ChatModelConfig{
		Model: m.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qianfan model: %w", err)
	}
	return chatModel, nil
}
