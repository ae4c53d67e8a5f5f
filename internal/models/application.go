// internal/models/application.go
package models

import (
	"encoding/json"
	"strings"
)

type CandidateStatus string

const (
	CandidateStatusPending   CandidateStatus = "pending"
	CandidateStatusApproved  CandidateStatus = "approved"
	CandidateStatusRejected  CandidateStatus = "rejected"
	CandidateStatusScheduled CandidateStatus = "scheduled"
)

// ParseCandidateStatus normalises case. Unknown values are kept as sent.
func ParseCandidateStatus(s string) CandidateStatus {
	switch st := CandidateStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case CandidateStatusPending, CandidateStatusApproved, CandidateStatusRejected, CandidateStatusScheduled:
		return st
	}
	return CandidateStatus(s)
}

// Candidate is one application to a job.
type Candidate struct {
	ID        int64           `json:"id"`
	JobID     int64           `json:"job_id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	ResumeURL string          `json:"resume_url,omitempty"`
	FitScore  float64         `json:"fit_score"`
	Status    CandidateStatus `json:"status,omitempty"`
	Interview *Interview      `json:"interview,omitempty"`
}

// UnmarshalJSON accepts the identifier as either candidate_id or id.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	type plain Candidate
	var raw struct {
		plain
		CandidateID *int64 `json:"candidate_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Candidate(raw.plain)
	if raw.CandidateID != nil {
		c.ID = *raw.CandidateID
	}
	c.Status = ParseCandidateStatus(string(c.Status))
	return nil
}

// FitPercent renders the fit score the way the shortlist shows it.
func (c Candidate) FitPercent() float64 {
	return c.FitScore * 100
}

// FeedbackRequest is the HR decision on a shortlisted candidate.
type FeedbackRequest struct {
	HRDecision string `json:"hr_decision"`
	HRComments string `json:"hr_comments"`
}

const DecisionRejected = "Rejected"

// CandidateAnalysis is the detailed scoring breakdown for one candidate.
type CandidateAnalysis struct {
	CandidateID int64           `json:"candidate_id,omitempty"`
	Skills      json.RawMessage `json:"skills,omitempty"`
	Experience  json.RawMessage `json:"experience,omitempty"`
	Education   json.RawMessage `json:"education,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Score       *float64        `json:"score,omitempty"`
}

// ExamResult is one graded exam attempt for a candidate.
type ExamResult struct {
	ExamID      int64           `json:"exam_id,omitempty"`
	JobTitle    string          `json:"job_title,omitempty"`
	Score       *float64        `json:"score,omitempty"`
	Status      string          `json:"status,omitempty"`
	SubmittedAt Timestamp       `json:"submitted_at"`
	Answers     json.RawMessage `json:"answers,omitempty"`
}

// CandidateStatusReport answers the public status lookup by email.
type CandidateStatusReport struct {
	Status        string     `json:"status"`
	JobTitle      string     `json:"job_title,omitempty"`
	InterviewTime *Timestamp `json:"interview_time,omitempty"`
}

// Ack is a free-form acknowledgement body.
type Ack map[string]interface{}
