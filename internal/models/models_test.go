package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_AcceptsBothIdentifierFields(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int64
	}{
		{"job_id", `{"job_id": 7, "title": "Engineer", "description_text": "Build things", "created_at": "2025-01-01T10:00:00"}`, 7},
		{"id", `{"id": 9, "title": "Engineer"}`, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var job Job
			require.NoError(t, json.Unmarshal([]byte(tt.body), &job))
			assert.Equal(t, tt.want, job.ID)
			assert.Equal(t, "Engineer", job.Title)
		})
	}

	var job Job
	require.NoError(t, json.Unmarshal([]byte(tests[0].body), &job))
	assert.Equal(t, "Build things", job.DescriptionText)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), job.CreatedAt.Time)

	out, err := json.Marshal(job)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"title":"Engineer","description_text":"Build things","created_at":"2025-01-01T10:00:00Z"}`, string(out))
}

func TestCandidate_Decode(t *testing.T) {
	var c Candidate
	body := `{"candidate_id": 3, "job_id": 7, "name": "Ada", "email": "ada@example.com", "fit_score": 0.873, "status": "Scheduled"}`
	require.NoError(t, json.Unmarshal([]byte(body), &c))

	assert.Equal(t, int64(3), c.ID)
	assert.Equal(t, CandidateStatusScheduled, c.Status)
	assert.InDelta(t, 87.3, c.FitPercent(), 0.001)

	assert.Equal(t, CandidateStatus("Withdrawn"), ParseCandidateStatus("Withdrawn"))
}

func TestInterview_Decode(t *testing.T) {
	var iv Interview
	body := `{"interview_id": 11, "summary": "Tech screen", "proposed_start_time": "2025-01-01T10:00:00Z", "status": "PENDING"}`
	require.NoError(t, json.Unmarshal([]byte(body), &iv))

	assert.Equal(t, int64(11), iv.ID)
	assert.Equal(t, InterviewStatusPending, iv.Status)
	assert.True(t, iv.ProposedEndTime.IsZero())
}

func TestTimestamp(t *testing.T) {
	var ts Timestamp
	assert.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`12`), &ts))

	out, err := json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestIdentityName(t *testing.T) {
	assert.Equal(t, "Ada", Identity{DisplayName: "Ada", Email: "ada@example.com"}.Name())
	assert.Equal(t, "ada@example.com", Identity{Email: "ada@example.com"}.Name())
	assert.True(t, RoleHRAdmin.Valid())
	assert.False(t, Role("admin").Valid())
	assert.Equal(t, "question_2", AnswerKey(2))
}
