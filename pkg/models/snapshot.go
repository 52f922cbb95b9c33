package models

// SnapshotVersion is the schema version written with every snapshot.
const SnapshotVersion = 1

// StoredSnapshot is the single document held by the document store.
// Every write replaces it wholly.
type StoredSnapshot struct {
	Version       int                      `json:"version"`
	Config        ConfigDocument           `json:"config"`
	Conversations map[string]*Conversation `json:"conversations"`
}

// Normalize fills nil collections and drops nil entries.
func (s *StoredSnapshot) Normalize() {
	if s.Version == 0 {
		s.Version = SnapshotVersion
	}
	if s.Conversations == nil {
		s.Conversations = map[string]*Conversation{}
	}
	for id, c := range s.Conversations {
		if c == nil {
			delete(s.Conversations, id)
			continue
		}
		if c.Messages == nil {
			c.Messages = []ConversationMessage{}
		}
		for i := range c.Messages {
			if c.Messages[i].Attachments == nil {
				c.Messages[i].Attachments = []Attachment{}
			}
		}
	}
	s.Config.Normalize()
}
