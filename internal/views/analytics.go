package views

import (
	"context"
	"sync"

	"recruit-portal/internal/common/errors"
	"recruit-portal/internal/models"
	"recruit-portal/pkg/registry"
)

const chatGreeting = "Hello! I'm the database analyst. Ask me questions about your candidates, jobs, or feedback. (e.g., 'How many candidates applied for job ID 1?')"

// ChatSession is one analytics conversation. It lives only in memory for
// the lifetime of the browser session that opened it.
type ChatSession struct {
	mu       sync.Mutex
	messages []models.ChatMessage
	pending  bool
}

func NewChatSession() *ChatSession {
	return &ChatSession{
		messages: []models.ChatMessage{{Role: models.ChatRoleAI, Content: chatGreeting}},
	}
}

type ChatView struct {
	Messages []models.ChatMessage `json:"messages"`
	Pending  bool                 `json:"pending"`
}

func (c *ChatSession) View() ChatView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ChatView{Messages: append([]models.ChatMessage(nil), c.messages...), Pending: c.pending}
}

// Chat returns the conversation bound to sessionID, starting one if needed.
func (s *Service) Chat(sessionID string) *ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[sessionID]
	if !ok {
		c = NewChatSession()
		s.chats[sessionID] = c
	}
	return c
}

// EndChat forgets the conversation bound to sessionID.
func (s *Service) EndChat(sessionID string) {
	s.mu.Lock()
	delete(s.chats, sessionID)
	s.mu.Unlock()
}

// Ask sends question with the history that preceded it. Blank questions are
// ignored. A failure is answered in the conversation itself.
func (s *Service) Ask(ctx context.Context, chat *ChatSession, question string) (ChatView, error) {
	if blank(question) {
		return chat.View(), nil
	}

	chat.mu.Lock()
	if chat.pending {
		chat.mu.Unlock()
		return chat.View(), errors.NewValidationError("a question is already being answered")
	}
	history := append([]models.ChatMessage(nil), chat.messages...)
	chat.messages = append(chat.messages, models.ChatMessage{Role: models.ChatRoleHuman, Content: question})
	chat.pending = true
	chat.mu.Unlock()

	res := mutate(ctx, s, registry.OpChatAnalytics, nil, func(ctx context.Context) (*models.ChatResponse, error) {
		return s.api.ChatAnalytics(ctx, models.ChatRequest{Question: question, ChatHistory: history})
	})

	reply := models.ChatMessage{Role: models.ChatRoleAI}
	if res.OK() {
		reply.Content = res.Value.Answer
	} else {
		s.logger.WithError(res.Err).Warn("Analytics chat failed", nil)
		reply.Content = "Sorry, I encountered an error: " + res.Message()
	}

	chat.mu.Lock()
	chat.messages = append(chat.messages, reply)
	chat.pending = false
	chat.mu.Unlock()
	return chat.View(), nil
}

func (s *Service) DashboardMetrics(ctx context.Context) Panel[*models.DashboardMetrics] {
	m, err := fetch(ctx, s, registry.OpGetDashboardMetrics, nil, s.api.GetDashboardMetrics)
	return panel(m, err)
}

func (s *Service) CandidateAnalysis(ctx context.Context, candidateID string) Panel[*models.CandidateAnalysis] {
	params := map[string]string{"candidateId": candidateID}
	a, err := fetch(ctx, s, registry.OpGetAnalysis, params, func(ctx context.Context) (*models.CandidateAnalysis, error) {
		return s.api.GetAnalysis(ctx, candidateID)
	})
	return panel(a, err)
}

type ExamResultRow struct {
	JobTitle    string   `json:"jobTitle,omitempty"`
	Score       *float64 `json:"score,omitempty"`
	Status      string   `json:"status,omitempty"`
	SubmittedAt string   `json:"submittedAt,omitempty"`
}

func (s *Service) ExamResults(ctx context.Context, candidateID string) Panel[[]ExamResultRow] {
	params := map[string]string{"candidateId": candidateID}
	results, err := fetch(ctx, s, registry.OpGetCandidateExamResults, params, func(ctx context.Context) ([]models.ExamResult, error) {
		return s.api.GetCandidateExamResults(ctx, candidateID)
	})
	rows := make([]ExamResultRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, ExamResultRow{
			JobTitle:    r.JobTitle,
			Score:       r.Score,
			Status:      r.Status,
			SubmittedAt: s.formatDateTime(r.SubmittedAt.Time),
		})
	}
	return panel(rows, err)
}
