package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/choraleia/thinkbot/pkg/config"
	"github.com/choraleia/thinkbot/pkg/event"
	"github.com/choraleia/thinkbot/pkg/llm"
	"github.com/choraleia/thinkbot/pkg/service"
	"github.com/choraleia/thinkbot/pkg/store"
	"github.com/choraleia/thinkbot/pkg/utils"
)

const autoSyncDebounce = 2 * time.Second

// App holds the services shared by the server and the CLI commands.
type App struct {
	cfg     *config.AppConfig
	store   store.DocumentStore
	emitter *event.Emitter
	logger  *slog.Logger

	Storage       *service.StorageService
	Conversations *service.ConversationService
	Pages         *service.PageStateService
	Config        *service.ConfigService
	Models        *service.ModelService
	Shortcuts     *service.ShortcutService
	Chat          *service.ChatService
	Extraction    *service.ExtractionService
	Sync          *service.SyncService
}

func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StorageBackend(), err)
	}

	emitter := event.NewEmitter()
	storage := service.NewStorageService(st, cfg.SnapshotKey())
	conversations := service.NewConversationService(storage, emitter)
	pages := service.NewPageStateService(emitter)
	configSvc := service.NewConfigService(storage, emitter)
	factory := llm.NewFactory()
	// Start fetching the token encoding before the first turn needs it.
	service.DefaultTokenCounter()

	var fetcher service.Fetcher = service.NewHTTPFetcher(nil, cfg.UserAgent())
	if cfg.ExtractWithBrowser() {
		fetcher = &service.BrowserFetcher{UserAgent: cfg.UserAgent()}
	}

	a := &App{
		cfg:           cfg,
		store:         st,
		emitter:       emitter,
		logger:        utils.GetLogger(),
		Storage:       storage,
		Conversations: conversations,
		Pages:         pages,
		Config:        configSvc,
		Models:        service.NewModelService(configSvc, factory),
		Shortcuts:     service.NewShortcutService(configSvc),
		Chat: service.NewChatService(storage, conversations, pages, factory, emitter, service.ChatOptions{
			ParallelBranches: cfg.ParallelBranches(),
			MaxParallel:      cfg.MaxParallel(),
			HistoryTokens:    cfg.HistoryTokens(),
			ContextTokens:    cfg.ContextTokens(),
		}),
		Extraction: service.NewExtractionService(configSvc, pages, fetcher,
			time.Duration(cfg.ExtractTimeoutSeconds())*time.Second),
		Sync: service.NewSyncService(storage, emitter, nil),
	}
	a.logger.Debug("Application initialized", "backend", cfg.StorageBackend(), "parallelBranches", cfg.ParallelBranches())
	return a, nil
}

// StartBackground starts the automatic sync; the returned function stops it.
func (a *App) StartBackground(ctx context.Context) func() {
	return a.Sync.StartAutoSync(ctx, autoSyncDebounce)
}

func (a *App) Close() error {
	return a.store.Close()
}
