package backend

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-portal/internal/backend/backendtest"
	"recruit-portal/internal/common/errors"
	transport "recruit-portal/internal/common/http"
	"recruit-portal/internal/common/logger"
	"recruit-portal/internal/models"
	"recruit-portal/pkg/registry"
)

func newTestClient(t *testing.T) (*Client, *backendtest.Server) {
	t.Helper()
	srv := backendtest.NewServer()
	t.Cleanup(srv.Close)

	log := logger.NewTestLogger(t)
	tc, err := transport.NewClient(transport.Config{
		BaseURL:        srv.URL,
		DefaultTimeout: time.Second,
		UploadTimeout:  2 * time.Second,
	}, log)
	require.NoError(t, err)

	c, err := New(tc, registry.Default(), log)
	require.NoError(t, err)
	return c, srv
}

// Scenario A: a created job is returned with a numeric id and appears in the list.
func TestCreateJob_ThenListIncludesIt(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	job, err := c.CreateJob(ctx, "Engineer", "Build things")
	require.NoError(t, err)
	assert.Positive(t, job.ID)
	assert.Equal(t, "Engineer", job.Title)
	assert.Equal(t, "Build things", job.DescriptionText)

	jobs, err := c.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
}

func TestPendingInterviews_ListAndApprove(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()
	srv.AddPending(11, "Tech screen with Ada", time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC))

	pending, err := c.ListPendingInterviews(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(11), pending[0].ID)
	assert.Equal(t, models.InterviewStatusPending, pending[0].Status)

	approved, err := c.ApproveInterview(ctx, "11")
	require.NoError(t, err)
	assert.Equal(t, models.InterviewStatusApproved, approved.Status)

	_, err = c.ApproveInterview(ctx, "11")
	require.Error(t, err)
	se, ok := errors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "Interview not found", se.Details)
	assert.Equal(t, "Failed to approve interview", se.Message)
}

func TestUploadCandidate(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	t.Run("multipart body with writer boundary", func(t *testing.T) {
		cand, err := c.UploadCandidate(ctx, "7", CandidateUpload{
			Name:     "Ada",
			Email:    "ada@example.com",
			FileName: "ada.pdf",
			Resume:   strings.NewReader("%PDF-1.4 resume"),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(7), cand.JobID)
		assert.Equal(t, models.CandidateStatusPending, cand.Status)

		require.Len(t, srv.Uploads, 1)
		up := srv.Uploads[0]
		assert.Equal(t, "Ada", up.Name)
		assert.Equal(t, "ada@example.com", up.Email)
		assert.Equal(t, "ada.pdf", up.FileName)
		assert.Equal(t, "%PDF-1.4 resume", up.Content)
		assert.True(t, strings.HasPrefix(up.ContentType, "multipart/form-data; boundary="))
	})

	t.Run("missing file is a validation error without a request", func(t *testing.T) {
		before := srv.Calls(registry.OpUploadCandidate)
		_, err := c.UploadCandidate(ctx, "7", CandidateUpload{Name: "Ada", Email: "ada@example.com"})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
		assert.Equal(t, before, srv.Calls(registry.OpUploadCandidate))
	})

	t.Run("missing job id is a validation error", func(t *testing.T) {
		_, err := c.UploadCandidate(ctx, "", CandidateUpload{FileName: "a.pdf", Resume: strings.NewReader("x")})
		assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	})
}

func TestShortlistAndFeedback(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()
	srv.AddCandidate("7", 3, "Ada", "ada@example.com", 0.91)
	srv.AddCandidate("7", 4, "Linus", "linus@example.com", 0.42)

	shortlist, err := c.GetShortlist(ctx, "7")
	require.NoError(t, err)
	require.Len(t, shortlist, 2)
	assert.Equal(t, int64(3), shortlist[0].ID)
	assert.InDelta(t, 0.91, shortlist[0].FitScore, 1e-9)

	ack, err := c.SubmitFeedback(ctx, "7", "4", models.FeedbackRequest{HRDecision: models.DecisionRejected, HRComments: "Not enough Go"})
	require.NoError(t, err)
	assert.Equal(t, "Feedback recorded", ack["message"])
	require.Len(t, srv.Feedback, 1)
	assert.Equal(t, "Not enough Go", srv.Feedback[0]["hr_comments"])

	shortlist, err = c.GetShortlist(ctx, "7")
	require.NoError(t, err)
	assert.Len(t, shortlist, 1)

	all, err := c.ListCandidates(ctx, "7")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAnalyticsEndpoints(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	analysis, err := c.GetAnalysis(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, int64(3), analysis.CandidateID)
	assert.JSONEq(t, `["go","sql"]`, string(analysis.Skills))

	resp, err := c.ChatAnalytics(ctx, models.ChatRequest{Question: "How many candidates?"})
	require.NoError(t, err)
	assert.Equal(t, "There are 3 candidates.", resp.Answer)
	require.Len(t, srv.ChatHistory, 1)
	assert.NotNil(t, srv.ChatHistory[0])

	metrics, err := c.GetDashboardMetrics(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, metrics.Pipeline)
	assert.NotEmpty(t, metrics.ScoreDistribution)

	srv.ExamResults["3"] = map[string]interface{}{"exam_id": 1, "job_title": "Engineer", "score": 0.75}
	results, err := c.GetCandidateExamResults(ctx, "3")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Engineer", results[0].JobTitle)

	results, err = c.GetCandidateExamResults(ctx, "4")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCandidateStatus(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()
	srv.SetStatus("x@y.com", map[string]interface{}{
		"status":         "Scheduled",
		"job_title":      "Engineer",
		"interview_time": "2025-01-01T10:00:00Z",
	})

	report, err := c.GetCandidateStatus(ctx, "x@y.com")
	require.NoError(t, err)
	assert.Equal(t, "Scheduled", report.Status)
	require.NotNil(t, report.InterviewTime)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), report.InterviewTime.Time)

	_, err = c.GetCandidateStatus(ctx, "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	_, err = c.GetCandidateStatus(ctx, "nobody@y.com")
	assert.True(t, errors.IsCode(err, errors.ErrCodeRequestFailed))
}

func TestExamFetchAndSubmit(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()
	srv.AddExam("tok-1", "Engineer",
		map[string]interface{}{"question_text": "Pick one", "question_type": "multiple-choice", "options": []string{"A", "B"}},
		map[string]interface{}{"question_text": "Reverse a list", "question_type": "coding"},
	)

	exam, err := c.GetExam(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "Engineer", exam.JobTitle)
	require.Len(t, exam.Questions, 2)
	assert.Equal(t, models.QuestionMultipleChoice, exam.Questions[0].QuestionType)
	assert.Equal(t, []string{"A", "B"}, exam.Questions[0].Options)

	_, err = c.SubmitExam(ctx, "tok-1", models.ExamAnswers{"question_0": "A"})
	require.NoError(t, err)
	assert.Equal(t, 1, srv.SubmissionCount("tok-1"))

	_, err = c.GetExam(ctx, "missing")
	require.Error(t, err)
	se, _ := errors.AsStandard(err)
	assert.Equal(t, "Failed to fetch exam. Link may be invalid or expired.", se.Message)
}

func TestMalformedResponses(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	srv.Fail(registry.OpListJobs, http.StatusOK, `[{"title": "no id"}]`)
	_, err := c.ListJobs(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMalformedResponse))

	srv.Fail(registry.OpListJobs, http.StatusOK, `{not json`)
	_, err = c.ListJobs(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMalformedResponse))

	srv.Fail(registry.OpGetExam, http.StatusOK, `{"questions": [{"question_text": "?", "question_type": "essay"}]}`)
	_, err = c.GetExam(ctx, "tok")
	assert.True(t, errors.IsCode(err, errors.ErrCodeMalformedResponse))
}

func TestTimeoutSurfacesAsRequestTimeout(t *testing.T) {
	srv := backendtest.NewServer()
	defer srv.Close()
	srv.Delay(registry.OpListJobs, time.Second)

	log := logger.NewTestLogger(t)
	tc, err := transport.NewClient(transport.Config{
		BaseURL:        srv.URL,
		DefaultTimeout: 30 * time.Millisecond,
		UploadTimeout:  time.Second,
	}, log)
	require.NoError(t, err)
	c, err := New(tc, nil, log)
	require.NoError(t, err)

	_, err = c.ListJobs(context.Background())
	assert.True(t, errors.IsTimeout(err))
}
