package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/store"
	"github.com/choraleia/thinkbot/pkg/utils"
)

// StorageService owns the stored snapshot. All mutations go through Update,
// which holds one lock across read, change and write so whole-document
// writes never overwrite each other.
type StorageService struct {
	store  store.DocumentStore
	key    string
	mu     sync.Mutex
	logger *slog.Logger
}

func NewStorageService(st store.DocumentStore, key string) *StorageService {
	return &StorageService{
		store:  st,
		key:    key,
		logger: utils.GetLogger(),
	}
}

// ReadSnapshot performs one store read. A missing document yields the default snapshot.
func (s *StorageService) ReadSnapshot(ctx context.Context) (*models.StoredSnapshot, error) {
	raw, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, persistenceError("read snapshot", err)
	}
	if raw == nil {
		return models.DefaultSnapshot(), nil
	}
	snap := &models.StoredSnapshot{}
	if err := json.Unmarshal(raw, snap); err != nil {
		return nil, persistenceError("decode snapshot", err)
	}
	snap.Normalize()
	return snap, nil
}

// WriteSnapshot performs one store write of the whole document.
func (s *StorageService) WriteSnapshot(ctx context.Context, snap *models.StoredSnapshot) error {
	snap.Normalize()
	raw, err := json.Marshal(snap)
	if err != nil {
		return persistenceError("encode snapshot", err)
	}
	if err := s.store.Set(ctx, s.key, raw); err != nil {
		return persistenceError("write snapshot", err)
	}
	return nil
}

// Update reads the snapshot, applies fn and writes the result back while
// holding the writer lock. When fn reports no change the write is skipped.
// The returned snapshot reflects fn's changes.
func (s *StorageService) Update(ctx context.Context, fn func(snap *models.StoredSnapshot) (bool, error)) (*models.StoredSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.ReadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	changed, err := fn(snap)
	if err != nil {
		return nil, err
	}
	if !changed {
		return snap, nil
	}
	if err := s.WriteSnapshot(ctx, snap); err != nil {
		s.logger.Error("Failed to write snapshot", "error", err)
		return nil, err
	}
	return snap, nil
}

// ReadConfig returns the configuration document of the current snapshot.
func (s *StorageService) ReadConfig(ctx context.Context) (*models.ConfigDocument, error) {
	snap, err := s.ReadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &snap.Config, nil
}

// UpdateConfig applies fn to the configuration document and writes the snapshot.
func (s *StorageService) UpdateConfig(ctx context.Context, fn func(cfg *models.ConfigDocument) error) (*models.ConfigDocument, error) {
	snap, err := s.Update(ctx, func(snap *models.StoredSnapshot) (bool, error) {
		if err := fn(&snap.Config); err != nil {
			return false, err
		}
		snap.Config.Normalize()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return snap.Config.Clone(), nil
}

// ResetConfig replaces the configuration document with the embedded defaults.
// Conversations are kept.
func (s *StorageService) ResetConfig(ctx context.Context) (*models.ConfigDocument, error) {
	return s.UpdateConfig(ctx, func(cfg *models.ConfigDocument) error {
		*cfg = *models.DefaultConfig()
		return nil
	})
}
