package service

import (
	"context"
	"log/slog"

	"github.com/choraleia/thinkbot/pkg/event"
	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/utils"
)

// ConfigService reads and replaces the user configuration document.
type ConfigService struct {
	storage *StorageService
	emitter *event.Emitter
	logger  *slog.Logger
}

func NewConfigService(storage *StorageService, emitter *event.Emitter) *ConfigService {
	if emitter == nil {
		emitter = event.Global()
	}
	return &ConfigService{storage: storage, emitter: emitter, logger: utils.GetLogger()}
}

// Get returns the current configuration document.
func (s *ConfigService) Get(ctx context.Context) (*models.ConfigDocument, error) {
	cfg, err := s.storage.ReadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// Set validates and stores a whole configuration document.
func (s *ConfigService) Set(ctx context.Context, next *models.ConfigDocument) (*models.ConfigDocument, error) {
	cfg := next.Clone()
	cfg.Normalize()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return s.update(ctx, func(cur *models.ConfigDocument) error {
		*cur = *cfg
		return nil
	})
}

// Reset restores the embedded defaults. Conversations are kept.
func (s *ConfigService) Reset(ctx context.Context) (*models.ConfigDocument, error) {
	cfg, err := s.storage.ResetConfig(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Configuration reset to defaults")
	s.emitter.Emit(event.ConfigChangedEvent{})
	return cfg, nil
}

// update applies fn, validates the result and emits a change notification.
func (s *ConfigService) update(ctx context.Context, fn func(cfg *models.ConfigDocument) error) (*models.ConfigDocument, error) {
	cfg, err := s.storage.UpdateConfig(ctx, func(cur *models.ConfigDocument) error {
		if err := fn(cur); err != nil {
			return err
		}
		cur.Normalize()
		return ValidateConfig(cur)
	})
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(event.ConfigChangedEvent{})
	return cfg, nil
}
