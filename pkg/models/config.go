package models

// Extraction modes
const (
	ExtractionReadability = "readability"
	ExtractionJina        = "jina"
)

// Sync providers
const (
	SyncNone   = "none"
	SyncGist   = "gist"
	SyncWebDAV = "webdav"
)

// ConfigDocument is the user configuration stored inside the snapshot.
// The orchestrator only reads it.
type ConfigDocument struct {
	General    GeneralSettings    `json:"general"`
	Extraction ExtractionSettings `json:"extraction"`
	Sync       SyncSettings       `json:"sync"`
	Blacklist  []string           `json:"blacklist" validate:"dive,required"`
	Shortcuts  []Shortcut         `json:"shortcuts" validate:"dive"`
	Models     []LanguageModel    `json:"models" validate:"unique=ID,dive"`
}

type GeneralSettings struct {
	Language          string `json:"language" validate:"required"`
	Theme             string `json:"theme" validate:"omitempty,oneof=system light dark"`
	DefaultModelID    string `json:"defaultModelId,omitempty"`
	AttachPageContent bool   `json:"attachPageContent"`
	SystemPrompt      string `json:"systemPrompt,omitempty"`
	SidebarHeight     int    `json:"sidebarHeight,omitempty" validate:"min=0"`
}

type ExtractionSettings struct {
	DefaultMode string `json:"defaultMode" validate:"oneof=readability jina"`
	JinaAPIKey  string `json:"jinaApiKey,omitempty"`
}

type SyncSettings struct {
	Provider     string         `json:"provider" validate:"oneof=none gist webdav"`
	SaveOnChange bool           `json:"saveOnChange"`
	Gist         GistSettings   `json:"gist"`
	WebDAV       WebDAVSettings `json:"webdav"`
	LastSyncedAt int64          `json:"lastSyncedAt,omitempty"` // Unix ms
}

type GistSettings struct {
	GistID string `json:"gistId,omitempty"`
	Token  string `json:"token,omitempty"`
}

type WebDAVSettings struct {
	URL      string `json:"url,omitempty" validate:"omitempty,url"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// FindModel returns the model record with the given id.
func (c *ConfigDocument) FindModel(id string) *LanguageModel {
	for i := range c.Models {
		if c.Models[i].ID == id {
			return &c.Models[i]
		}
	}
	return nil
}

// FindShortcut returns the shortcut with the given id.
func (c *ConfigDocument) FindShortcut(id string) *Shortcut {
	if id == "" {
		return nil
	}
	for i := range c.Shortcuts {
		if c.Shortcuts[i].ID == id {
			return &c.Shortcuts[i]
		}
	}
	return nil
}

// Clone returns a deep copy.
func (c *ConfigDocument) Clone() *ConfigDocument {
	if c == nil {
		return nil
	}
	cc := *c
	cc.Blacklist = append([]string{}, c.Blacklist...)
	cc.Models = append([]LanguageModel{}, c.Models...)
	cc.Shortcuts = make([]Shortcut, len(c.Shortcuts))
	for i, s := range c.Shortcuts {
		s.ModelIDs = append([]string{}, s.ModelIDs...)
		cc.Shortcuts[i] = s
	}
	return &cc
}

// Normalize fills nil collections so the document always serializes with arrays.
func (c *ConfigDocument) Normalize() {
	if c.Blacklist == nil {
		c.Blacklist = []string{}
	}
	if c.Shortcuts == nil {
		c.Shortcuts = []Shortcut{}
	}
	if c.Models == nil {
		c.Models = []LanguageModel{}
	}
	for i := range c.Shortcuts {
		if c.Shortcuts[i].ModelIDs == nil {
			c.Shortcuts[i].ModelIDs = []string{}
		}
	}
	for i := range c.Models {
		c.Models[i].Normalize()
	}
	if c.General.Language == "" {
		c.General.Language = "en"
	}
	if c.Extraction.DefaultMode == "" {
		c.Extraction.DefaultMode = ExtractionReadability
	}
	if c.Sync.Provider == "" {
		c.Sync.Provider = SyncNone
	}
}
