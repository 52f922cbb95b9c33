package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/google/uuid"
)

// ShortcutService manages quick-prompt shortcuts stored in the configuration
// document. Their order in the document is the display order.
type ShortcutService struct {
	config *ConfigService
}

func NewShortcutService(config *ConfigService) *ShortcutService {
	return &ShortcutService{config: config}
}

func cloneShortcut(sc models.Shortcut) models.Shortcut {
	sc.ModelIDs = append([]string{}, sc.ModelIDs...)
	return sc
}

func (s *ShortcutService) List(ctx context.Context) ([]models.Shortcut, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.Shortcuts, nil
}

func (s *ShortcutService) Get(ctx context.Context, id string) (*models.Shortcut, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	sc := cfg.FindShortcut(id)
	if sc == nil {
		return nil, fmt.Errorf("%w: %s", ErrShortcutNotFound, id)
	}
	out := cloneShortcut(*sc)
	return &out, nil
}

func (s *ShortcutService) Create(ctx context.Context, req *models.CreateShortcutRequest) (*models.Shortcut, error) {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return nil, fmt.Errorf("%w: label required", ErrInvalidConfig)
	}
	sc := models.Shortcut{
		ID:          uuid.New().String(),
		Label:       label,
		Prompt:      req.Prompt,
		AutoTrigger: req.AutoTrigger,
		ModelIDs:    append([]string{}, req.ModelIDs...),
	}
	_, err := s.config.update(ctx, func(cfg *models.ConfigDocument) error {
		cfg.Shortcuts = append(cfg.Shortcuts, sc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *ShortcutService) Update(ctx context.Context, id string, req *models.UpdateShortcutRequest) (*models.Shortcut, error) {
	var out models.Shortcut
	_, err := s.config.update(ctx, func(cfg *models.ConfigDocument) error {
		sc := cfg.FindShortcut(id)
		if sc == nil {
			return fmt.Errorf("%w: %s", ErrShortcutNotFound, id)
		}
		if req.Label != nil {
			sc.Label = strings.TrimSpace(*req.Label)
		}
		if req.Prompt != nil {
			sc.Prompt = *req.Prompt
		}
		if req.AutoTrigger != nil {
			sc.AutoTrigger = *req.AutoTrigger
		}
		if req.ModelIDs != nil {
			sc.ModelIDs = append([]string{}, (*req.ModelIDs)...)
		}
		out = cloneShortcut(*sc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ShortcutService) Delete(ctx context.Context, id string) error {
	_, err := s.config.update(ctx, func(cfg *models.ConfigDocument) error {
		for i := range cfg.Shortcuts {
			if cfg.Shortcuts[i].ID == id {
				cfg.Shortcuts = append(cfg.Shortcuts[:i], cfg.Shortcuts[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrShortcutNotFound, id)
	})
	return err
}

// Reorder moves the listed shortcuts to the front in the given order.
// Shortcuts not listed keep their relative order after them.
func (s *ShortcutService) Reorder(ctx context.Context, ids []string) ([]models.Shortcut, error) {
	cfg, err := s.config.update(ctx, func(cfg *models.ConfigDocument) error {
		seen := make(map[string]bool, len(ids))
		next := make([]models.Shortcut, 0, len(cfg.Shortcuts))
		for _, id := range ids {
			if seen[id] {
				return fmt.Errorf("%w: duplicate id %q in reorder list", ErrInvalidConfig, id)
			}
			sc := cfg.FindShortcut(id)
			if sc == nil {
				return fmt.Errorf("%w: %s", ErrShortcutNotFound, id)
			}
			seen[id] = true
			next = append(next, *sc)
		}
		for _, sc := range cfg.Shortcuts {
			if !seen[sc.ID] {
				next = append(next, sc)
			}
		}
		cfg.Shortcuts = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cfg.Shortcuts, nil
}
