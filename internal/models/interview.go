package models

import (
	"encoding/json"
	"strings"
)

type InterviewStatus string

const (
	InterviewStatusPending   InterviewStatus = "pending"
	InterviewStatusApproved  InterviewStatus = "approved"
	InterviewStatusScheduled InterviewStatus = "scheduled"
	InterviewStatusRejected  InterviewStatus = "rejected"
	InterviewStatusError     InterviewStatus = "error"
)

// Interview is proposed by the backend and approved by HR.
type Interview struct {
	ID                int64           `json:"id"`
	CandidateID       int64           `json:"candidate_id,omitempty"`
	JobID             int64           `json:"job_id,omitempty"`
	Summary           string          `json:"summary"`
	ProposedStartTime Timestamp       `json:"proposed_start_time"`
	ProposedEndTime   Timestamp       `json:"proposed_end_time"`
	Status            InterviewStatus `json:"status,omitempty"`
	MeetingLink       string          `json:"meeting_link,omitempty"`
}

// UnmarshalJSON accepts the identifier as either interview_id or id.
func (i *Interview) UnmarshalJSON(data []byte) error {
	type plain Interview
	var raw struct {
		plain
		InterviewID *int64 `json:"interview_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Interview(raw.plain)
	if raw.InterviewID != nil {
		i.ID = *raw.InterviewID
	}
	i.Status = InterviewStatus(strings.ToLower(string(i.Status)))
	return nil
}
