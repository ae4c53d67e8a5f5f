package models

import "encoding/json"

type ChatRole string

const (
	ChatRoleHuman ChatRole = "human"
	ChatRoleAI    ChatRole = "ai"
)

// ChatMessage lives only in one analytics chat session.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

type ChatRequest struct {
	Question    string        `json:"question"`
	ChatHistory []ChatMessage `json:"chat_history"`
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

// DashboardMetrics holds the pipeline and score aggregates. Sections the
// portal does not interpret are kept raw.
type DashboardMetrics struct {
	Pipeline          json.RawMessage `json:"pipeline,omitempty"`
	ScoreDistribution json.RawMessage `json:"score_distribution,omitempty"`
	Totals            json.RawMessage `json:"totals,omitempty"`
}
