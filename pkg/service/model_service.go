package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/choraleia/thinkbot/pkg/llm"
	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/utils"
	"github.com/google/uuid"
)

const modelTestTimeout = 30 * time.Second

// ModelTestResult reports a connectivity test.
type ModelTestResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	LatencyMs int64  `json:"latencyMs,omitempty"`
	Sample    string `json:"sample,omitempty"`
}

// ModelService manages the model records of the configuration document.
type ModelService struct {
	config  *ConfigService
	factory ProviderFactory
	logger  *slog.Logger
}

func NewModelService(config *ConfigService, factory ProviderFactory) *ModelService {
	return &ModelService{
		config:  config,
		factory: factory,
		logger:  utils.GetLogger(),
	}
}

func maskModel(m models.LanguageModel) models.LanguageModel {
	m.APIKey = utils.MaskSensitiveString(m.APIKey)
	m.SecretKey = utils.MaskSensitiveString(m.SecretKey)
	m.SessionToken = utils.MaskSensitiveString(m.SessionToken)
	return m
}

// List returns all model records with credentials masked.
func (s *ModelService) List(ctx context.Context) ([]models.LanguageModel, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.LanguageModel, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		out = append(out, maskModel(m))
	}
	return out, nil
}

// Get returns one model record with credentials masked.
func (s *ModelService) Get(ctx context.Context, id string) (*models.LanguageModel, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	m := cfg.FindModel(id)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	masked := maskModel(*m)
	return &masked, nil
}

// Add stores a new model record. An empty id gets a generated one.
func (s *ModelService) Add(ctx context.Context, m models.LanguageModel) (*models.LanguageModel, error) {
	m.Normalize()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if err := ValidateModel(&m); err != nil {
		return nil, err
	}
	_, err := s.config.update(ctx, func(cfg *models.ConfigDocument) error {
		if cfg.FindModel(m.ID) != nil {
			return fmt.Errorf("%w: model %q already exists", ErrInvalidConfig, m.ID)
		}
		cfg.Models = append(cfg.Models, m)
		if cfg.General.DefaultModelID == "" {
			cfg.General.DefaultModelID = m.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Model added", "modelID", m.ID, "provider", m.Provider)
	masked := maskModel(m)
	return &masked, nil
}

// Update replaces a model record. Masked credentials sent back by a client
// keep the stored values.
func (s *ModelService) Update(ctx context.Context, id string, m models.LanguageModel) (*models.LanguageModel, error) {
	m.Normalize()
	m.ID = id
	if err := ValidateModel(&m); err != nil {
		return nil, err
	}
	var stored models.LanguageModel
	_, err := s.config.update(ctx, func(cfg *models.ConfigDocument) error {
		cur := cfg.FindModel(id)
		if cur == nil {
			return fmt.Errorf("%w: %s", ErrModelNotFound, id)
		}
		keepSecret(&m.APIKey, cur.APIKey)
		keepSecret(&m.SecretKey, cur.SecretKey)
		keepSecret(&m.SessionToken, cur.SessionToken)
		*cur = m
		stored = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	masked := maskModel(stored)
	return &masked, nil
}

func keepSecret(next *string, prev string) {
	if utils.IsMasked(*next) || (*next != "" && strings.Trim(*next, "*") == "") {
		*next = prev
	}
}

// Delete removes a model record and drops references to it.
func (s *ModelService) Delete(ctx context.Context, id string) error {
	_, err := s.config.update(ctx, func(cfg *models.ConfigDocument) error {
		idx := -1
		for i := range cfg.Models {
			if cfg.Models[i].ID == id {
				idx = i
				break
			}
		}
		if idx == -1 {
			return fmt.Errorf("%w: %s", ErrModelNotFound, id)
		}
		cfg.Models = append(cfg.Models[:idx], cfg.Models[idx+1:]...)
		if cfg.General.DefaultModelID == id {
			cfg.General.DefaultModelID = ""
			if len(cfg.Models) > 0 {
				cfg.General.DefaultModelID = cfg.Models[0].ID
			}
		}
		for i := range cfg.Shortcuts {
			cfg.Shortcuts[i].ModelIDs = removeString(cfg.Shortcuts[i].ModelIDs, id)
		}
		return nil
	})
	if err == nil {
		s.logger.Info("Model deleted", "modelID", id)
	}
	return err
}

func removeString(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

// SetEnabled toggles whether the orchestrator may route to a model.
func (s *ModelService) SetEnabled(ctx context.Context, id string, enabled bool) (*models.LanguageModel, error) {
	var stored models.LanguageModel
	_, err := s.config.update(ctx, func(cfg *models.ConfigDocument) error {
		cur := cfg.FindModel(id)
		if cur == nil {
			return fmt.Errorf("%w: %s", ErrModelNotFound, id)
		}
		cur.Disabled = !enabled
		stored = *cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	masked := maskModel(stored)
	return &masked, nil
}

// Test sends a short prompt through the model. A record that cannot be
// built into a real provider is reported as incomplete instead of being
// answered by the local fallback.
func (s *ModelService) Test(ctx context.Context, m models.LanguageModel) *ModelTestResult {
	m.Normalize()
	if m.ID != "" {
		if stored, err := s.storedModel(ctx, m.ID); err == nil {
			keepSecret(&m.APIKey, stored.APIKey)
			keepSecret(&m.SecretKey, stored.SecretKey)
			keepSecret(&m.SessionToken, stored.SessionToken)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, modelTestTimeout)
	defer cancel()

	provider := s.factory.NewProvider(ctx, &m)
	if _, fallback := provider.(*llm.DeterministicProvider); fallback && m.Provider != models.ProviderDeterministic {
		return &ModelTestResult{Message: "Model configuration is incomplete or the provider is unsupported"}
	}

	start := time.Now()
	out, err := llm.Run(ctx, provider, &llm.Request{Model: m.Model, Prompt: "Hi"}, nil, nil)
	if err != nil {
		s.logger.Warn("Model connection test failed", "modelID", m.ID, "provider", m.Provider, "error", err)
		return &ModelTestResult{Message: "Connection failed: " + err.Error()}
	}
	return &ModelTestResult{
		Success:   true,
		Message:   "Connection successful",
		LatencyMs: time.Since(start).Milliseconds(),
		Sample:    truncate(out, 200),
	}
}

func (s *ModelService) storedModel(ctx context.Context, id string) (*models.LanguageModel, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	m := cfg.FindModel(id)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	return m, nil
}

// Presets returns the embedded provider presets.
func (s *ModelService) Presets() []models.ProviderPreset {
	return models.ProviderPresets()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
