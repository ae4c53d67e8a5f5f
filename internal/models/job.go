package models

import "encoding/json"

// Job is a posting owned by the backend.
type Job struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	DescriptionText string    `json:"description_text"`
	CreatedAt       Timestamp `json:"created_at"`
}

// UnmarshalJSON accepts the identifier as either job_id or id.
func (j *Job) UnmarshalJSON(data []byte) error {
	type plain Job
	var raw struct {
		plain
		JobID *int64 `json:"job_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*j = Job(raw.plain)
	if raw.JobID != nil {
		j.ID = *raw.JobID
	}
	return nil
}

type CreateJobRequest struct {
	Title           string `json:"title"`
	DescriptionText string `json:"description_text"`
}
