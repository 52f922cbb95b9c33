package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setSync(t *testing.T, env *testEnv, fn func(s *models.SyncSettings)) {
	t.Helper()
	_, err := env.storage.UpdateConfig(context.Background(), func(cfg *models.ConfigDocument) error {
		fn(&cfg.Sync)
		return nil
	})
	require.NoError(t, err)
}

func TestSync_SkippedWhenDisabled(t *testing.T) {
	env := newTestEnv(t)
	svc := NewSyncService(env.storage, env.emitter, nil)
	res, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, models.SyncNone, res.Provider)
}

func TestSync_GistUploadsRedactedSnapshot(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	var body map[string]map[string]map[string]string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotAuth = r.Method, r.URL.Path, r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	env := newTestEnv(t)
	_, err := env.convs.Ensure(context.Background(), models.ConversationInit{Title: "synced"})
	require.NoError(t, err)
	setSync(t, env, func(s *models.SyncSettings) {
		s.Provider = models.SyncGist
		s.Gist = models.GistSettings{GistID: "abc123", Token: "ghp_secret"}
	})
	_, err = env.storage.UpdateConfig(context.Background(), func(cfg *models.ConfigDocument) error {
		cfg.Models = append(cfg.Models, models.LanguageModel{
			ID: "claude", Label: "Claude", Provider: models.ProviderBedrock, Region: "us-east-1",
			APIKey: "sk-live-model", AccessKeyID: "AKIA123", SecretKey: "aws-secret-key", SessionToken: "aws-session",
		})
		cfg.Extraction.JinaAPIKey = "jina-secret"
		return nil
	})
	require.NoError(t, err)

	svc := NewSyncService(env.storage, env.emitter, api.Client())
	svc.SetGistAPIBase(api.URL)
	svc.now = func() time.Time { return time.UnixMilli(99) }

	res, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SyncGist, res.Provider)
	assert.Equal(t, int64(99), res.CompletedAt)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/gists/abc123", gotPath)
	assert.Equal(t, "Bearer ghp_secret", gotAuth)

	content := body["files"][syncFileName]["content"]
	require.NotEmpty(t, content)
	for _, secret := range []string{"ghp_secret", "sk-live-model", "aws-secret-key", "aws-session", "jina-secret"} {
		assert.NotContains(t, content, secret)
	}
	var uploaded models.StoredSnapshot
	require.NoError(t, json.Unmarshal([]byte(content), &uploaded))
	assert.Len(t, uploaded.Conversations, 1)

	cfg, err := env.storage.ReadConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(99), cfg.Sync.LastSyncedAt)
	assert.Equal(t, "ghp_secret", cfg.Sync.Gist.Token)
	assert.Equal(t, "sk-live-model", cfg.FindModel("claude").APIKey)
	assert.Equal(t, "jina-secret", cfg.Extraction.JinaAPIKey)

	var claude *models.LanguageModel
	for i := range uploaded.Config.Models {
		if uploaded.Config.Models[i].ID == "claude" {
			claude = &uploaded.Config.Models[i]
		}
	}
	require.NotNil(t, claude)
	assert.Equal(t, "AKIA123", claude.AccessKeyID)
	assert.Empty(t, claude.SecretKey)
}

func TestSync_WebDAV(t *testing.T) {
	var gotPath, gotUser, gotPass string
	dav := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		w.WriteHeader(http.StatusCreated)
	}))
	defer dav.Close()

	env := newTestEnv(t)
	setSync(t, env, func(s *models.SyncSettings) {
		s.Provider = models.SyncWebDAV
		s.WebDAV = models.WebDAVSettings{URL: dav.URL + "/backup/", Username: "me", Password: "pw"}
	})

	_, err := NewSyncService(env.storage, env.emitter, dav.Client()).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/backup/"+syncFileName, gotPath)
	assert.Equal(t, "me", gotUser)
	assert.Equal(t, "pw", gotPass)
}

func TestSync_Failures(t *testing.T) {
	env := newTestEnv(t)
	setSync(t, env, func(s *models.SyncSettings) { s.Provider = models.SyncGist })
	_, err := NewSyncService(env.storage, env.emitter, nil).Sync(context.Background())
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer api.Close()
	setSync(t, env, func(s *models.SyncSettings) { s.Gist = models.GistSettings{GistID: "g", Token: "t"} })
	svc := NewSyncService(env.storage, env.emitter, api.Client())
	svc.SetGistAPIBase(api.URL)
	_, err = svc.Sync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	cfg, _ := env.storage.ReadConfig(context.Background())
	assert.Zero(t, cfg.Sync.LastSyncedAt)
}

func TestStartAutoSync_Debounces(t *testing.T) {
	var uploads atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	env := newTestEnv(t)
	setSync(t, env, func(s *models.SyncSettings) {
		s.Provider = models.SyncGist
		s.SaveOnChange = true
		s.Gist = models.GistSettings{GistID: "g", Token: "t"}
	})
	svc := NewSyncService(env.storage, env.emitter, api.Client())
	svc.SetGistAPIBase(api.URL)
	stop := svc.StartAutoSync(context.Background(), 50*time.Millisecond)
	defer stop()

	ctx := context.Background()
	conv, err := env.convs.Ensure(ctx, models.ConversationInit{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := env.convs.AppendMessage(ctx, conv.ID, models.ConversationMessage{Role: models.RoleUser, Content: "x"})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return uploads.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), uploads.Load())
}
