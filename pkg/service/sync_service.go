package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/choraleia/thinkbot/pkg/event"
	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/choraleia/thinkbot/pkg/utils"
)

const (
	defaultGistAPIBase = "https://api.github.com"
	syncFileName       = "thinkbot-snapshot.json"
)

// SyncService uploads the stored snapshot to the configured remote.
type SyncService struct {
	storage     *StorageService
	emitter     *event.Emitter
	client      *http.Client
	gistAPIBase string
	now         func() time.Time
	logger      *slog.Logger
}

func NewSyncService(storage *StorageService, emitter *event.Emitter, client *http.Client) *SyncService {
	if emitter == nil {
		emitter = event.Global()
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SyncService{
		storage:     storage,
		emitter:     emitter,
		client:      client,
		gistAPIBase: defaultGistAPIBase,
		now:         time.Now,
		logger:      utils.GetLogger(),
	}
}

// SetGistAPIBase points gist uploads at another GitHub API host.
func (s *SyncService) SetGistAPIBase(base string) {
	s.gistAPIBase = strings.TrimRight(base, "/")
}

// Sync uploads the snapshot and records the time of the last upload. Sync
// credentials are never part of the upload.
func (s *SyncService) Sync(ctx context.Context) (*models.SyncResult, error) {
	snap, err := s.storage.ReadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	settings := snap.Config.Sync
	if settings.Provider == "" || settings.Provider == models.SyncNone {
		return &models.SyncResult{Provider: models.SyncNone, Skipped: true, CompletedAt: s.now().UnixMilli()}, nil
	}

	redactCredentials(&snap.Config)
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	switch settings.Provider {
	case models.SyncGist:
		err = s.uploadGist(ctx, settings.Gist, payload)
	case models.SyncWebDAV:
		err = s.uploadWebDAV(ctx, settings.WebDAV, payload)
	default:
		err = fmt.Errorf("%w: unknown sync provider %q", ErrInvalidConfig, settings.Provider)
	}
	if err != nil {
		s.logger.Error("Sync failed", "provider", settings.Provider, "error", err)
		return nil, err
	}

	completedAt := s.now().UnixMilli()
	if _, err := s.storage.UpdateConfig(ctx, func(cfg *models.ConfigDocument) error {
		cfg.Sync.LastSyncedAt = completedAt
		return nil
	}); err != nil {
		return nil, err
	}
	s.logger.Info("Sync completed", "provider", settings.Provider, "bytes", len(payload))
	s.emitter.Emit(event.SyncCompletedEvent{Provider: settings.Provider, CompletedAt: completedAt})
	return &models.SyncResult{Provider: settings.Provider, CompletedAt: completedAt}, nil
}

// redactCredentials clears every secret in cfg. The snapshot read for an
// upload is a private copy, so it is modified in place.
func redactCredentials(cfg *models.ConfigDocument) {
	for i := range cfg.Models {
		m := &cfg.Models[i]
		m.APIKey = ""
		m.SecretKey = ""
		m.SessionToken = ""
	}
	cfg.Extraction.JinaAPIKey = ""
	cfg.Sync.Gist.Token = ""
	cfg.Sync.WebDAV.Password = ""
}

func (s *SyncService) uploadGist(ctx context.Context, gist models.GistSettings, payload []byte) error {
	if gist.GistID == "" || gist.Token == "" {
		return fmt.Errorf("%w: gist id and token are required", ErrInvalidConfig)
	}
	body, err := json.Marshal(map[string]any{
		"files": map[string]any{
			syncFileName: map[string]string{"content": string(payload)},
		},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.gistAPIBase+"/gists/"+gist.GistID, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+gist.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *SyncService) uploadWebDAV(ctx context.Context, dav models.WebDAVSettings, payload []byte) error {
	if dav.URL == "" {
		return fmt.Errorf("%w: webdav url is required", ErrInvalidConfig)
	}
	target := dav.URL
	if strings.HasSuffix(target, "/") {
		target += syncFileName
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if dav.Username != "" {
		req.SetBasicAuth(dav.Username, dav.Password)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *SyncService) do(req *http.Request) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload snapshot: HTTP status %d", resp.StatusCode)
	}
	return nil
}

// StartAutoSync syncs after conversation changes settle for debounce, when
// the configuration asks for it. The returned function stops it.
func (s *SyncService) StartAutoSync(ctx context.Context, debounce time.Duration) func() {
	var mu sync.Mutex
	var timer *time.Timer
	stopped := false

	fire := func() {
		cfg, err := s.storage.ReadConfig(ctx)
		if err != nil || !cfg.Sync.SaveOnChange || cfg.Sync.Provider == models.SyncNone {
			return
		}
		if _, err := s.Sync(ctx); err != nil {
			s.logger.Warn("Automatic sync failed", "error", err)
		}
	}
	schedule := func(event.Event) {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, fire)
	}

	offChanged := s.emitter.On(event.ConversationChanged, schedule)
	offDeleted := s.emitter.On(event.ConversationDeleted, schedule)
	return func() {
		offChanged()
		offDeleted()
		mu.Lock()
		defer mu.Unlock()
		stopped = true
		if timer != nil {
			timer.Stop()
		}
	}
}
