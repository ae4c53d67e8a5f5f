package models

import "fmt"

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionShortAnswer    QuestionType = "short-answer"
	QuestionCoding         QuestionType = "coding"
)

// Exam is the token-addressed assessment fetched by the exam page.
type Exam struct {
	JobTitle  string         `json:"job_title"`
	Questions []ExamQuestion `json:"questions"`
}

type ExamQuestion struct {
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	Options      []string     `json:"options,omitempty"`
}

// ExamAnswers maps question_<index> to the answer text.
type ExamAnswers map[string]string

// AnswerKey returns the answer key for the question at index.
func AnswerKey(index int) string {
	return fmt.Sprintf("question_%d", index)
}

type ExamSubmission struct {
	Answers ExamAnswers `json:"answers"`
}
