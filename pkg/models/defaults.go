package models

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed defaults.json
var defaultsFS embed.FS

// ProviderPreset describes a provider kind for the settings screens.
type ProviderPreset struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	BaseURL  string   `json:"base_url"`
	Required []string `json:"required"` // LanguageModel JSON fields that must be set
}

type defaultsFile struct {
	Config    ConfigDocument   `json:"config"`
	Providers []ProviderPreset `json:"providers"`
}

var (
	defaultsOnce   sync.Once
	defaultsParsed defaultsFile
	defaultsErr    error
)

func loadDefaults() (*defaultsFile, error) {
	defaultsOnce.Do(func() {
		data, err := defaultsFS.ReadFile("defaults.json")
		if err != nil {
			defaultsErr = err
			return
		}
		if err := json.Unmarshal(data, &defaultsParsed); err != nil {
			defaultsErr = fmt.Errorf("parse embedded defaults: %w", err)
		}
	})
	if defaultsErr != nil {
		return nil, defaultsErr
	}
	return &defaultsParsed, nil
}

// DefaultConfig returns a fresh copy of the embedded default configuration document.
func DefaultConfig() *ConfigDocument {
	d, err := loadDefaults()
	if err != nil {
		cfg := &ConfigDocument{}
		cfg.Normalize()
		return cfg
	}
	cfg := d.Config.Clone()
	cfg.Normalize()
	return cfg
}

// DefaultSnapshot returns the snapshot used when the store holds no document yet.
func DefaultSnapshot() *StoredSnapshot {
	s := &StoredSnapshot{
		Version:       SnapshotVersion,
		Config:        *DefaultConfig(),
		Conversations: map[string]*Conversation{},
	}
	s.Normalize()
	return s
}

// ProviderPresets lists the supported provider kinds.
func ProviderPresets() []ProviderPreset {
	d, err := loadDefaults()
	if err != nil {
		return nil
	}
	return append([]ProviderPreset{}, d.Providers...)
}
