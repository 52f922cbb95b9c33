package models

// Shortcut is a reusable quick prompt. ModelIDs is the ordered list of models
// it fans out to; an empty list means the request's model.
type Shortcut struct {
	ID          string   `json:"id" validate:"required"`
	Label       string   `json:"label" validate:"required"`
	Prompt      string   `json:"prompt"`
	AutoTrigger bool     `json:"autoTrigger"`
	ModelIDs    []string `json:"modelIds"`
}

type CreateShortcutRequest struct {
	Label       string   `json:"label" binding:"required"`
	Prompt      string   `json:"prompt"`
	AutoTrigger bool     `json:"autoTrigger"`
	ModelIDs    []string `json:"modelIds"`
}

type UpdateShortcutRequest struct {
	Label       *string   `json:"label"`
	Prompt      *string   `json:"prompt"`
	AutoTrigger *bool     `json:"autoTrigger"`
	ModelIDs    *[]string `json:"modelIds"`
}

type ReorderShortcutsRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

type ShortcutListResponse struct {
	Shortcuts []Shortcut `json:"shortcuts"`
	Total     int        `json:"total"`
}
