package models

import "time"

type Upload struct {
	Key          string    `json:"key"`
	OriginalName string    `json:"originalName"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	AgentID      string    `json:"agentId"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"createdAt"`
}
