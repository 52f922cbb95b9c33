package service

import (
	"fmt"
	"sync"

	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/go-playground/validator/v10"
)

var (
	documentValidatorOnce sync.Once
	documentValidator     *validator.Validate
)

func configValidator() *validator.Validate {
	documentValidatorOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("provider", func(fl validator.FieldLevel) bool {
			_, ok := models.SupportedModelProviders[fl.Field().String()]
			return ok
		})
		documentValidator = v
	})
	return documentValidator
}

// ValidateConfig checks a configuration document before it is stored.
func ValidateConfig(cfg *models.ConfigDocument) error {
	if err := configValidator().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if id := cfg.General.DefaultModelID; id != "" && cfg.FindModel(id) == nil {
		return fmt.Errorf("%w: default model %q is not configured", ErrInvalidConfig, id)
	}
	for _, sc := range cfg.Shortcuts {
		for _, id := range sc.ModelIDs {
			if cfg.FindModel(id) == nil {
				return fmt.Errorf("%w: shortcut %q references unknown model %q", ErrInvalidConfig, sc.ID, id)
			}
		}
	}
	return nil
}

// ValidateModel checks a single model record.
func ValidateModel(m *models.LanguageModel) error {
	if err := configValidator().Struct(m); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
