package models

import "time"

// Note is a free-text annotation written by an agent. Notes are not part of
// the audit timeline.
type Note struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	AgentID   string     `json:"agentId"`
	AgentName string     `json:"agentName"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
}
