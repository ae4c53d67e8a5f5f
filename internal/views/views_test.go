package views

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-portal/internal/backend"
	"recruit-portal/internal/backend/backendtest"
	"recruit-portal/internal/common/errors"
	transport "recruit-portal/internal/common/http"
	"recruit-portal/internal/common/logger"
	"recruit-portal/internal/models"
	"recruit-portal/internal/query"
	"recruit-portal/pkg/registry"
)

func newTestService(t *testing.T, loc *time.Location) (*Service, *backendtest.Server) {
	t.Helper()
	srv := backendtest.NewServer()
	t.Cleanup(srv.Close)

	log := logger.NewTestLogger(t)
	tc, err := transport.NewClient(transport.Config{
		BaseURL:        srv.URL,
		DefaultTimeout: 250 * time.Millisecond,
		UploadTimeout:  time.Second,
	}, log)
	require.NoError(t, err)
	api, err := backend.New(tc, registry.Default(), log)
	require.NoError(t, err)

	cache := query.New(query.Config{StaleTime: time.Minute, RetryDelay: time.Millisecond}, log)
	t.Cleanup(cache.Close)
	return New(api, cache, Config{Location: loc}, log), srv
}

func TestOverview_StatsAndRecentActivity(t *testing.T) {
	s, srv := newTestService(t, time.UTC)
	srv.AddJob("Engineer", "Build")
	srv.AddJob("Designer", "Draw")
	start := time.Date(2025, 1, 2, 15, 4, 0, 0, time.UTC)
	for i := int64(1); i <= 6; i++ {
		srv.AddPending(i, "Interview", start)
	}

	v := s.Overview(context.Background())
	require.Empty(t, v.Error)
	require.Len(t, v.Stats, 4)
	assert.Equal(t, "Active Jobs", v.Stats[0].Title)
	assert.Equal(t, "2", v.Stats[0].Value)
	assert.Equal(t, "Pending Approvals", v.Stats[1].Title)
	assert.Equal(t, "6", v.Stats[1].Value)
	require.Len(t, v.RecentActivity, recentActivityLimit)
	assert.Equal(t, "Jan 2, 2025, 3:04 PM", v.RecentActivity[0].ScheduledTime)
}

func TestOverview_ErrorMessages(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		s, srv := newTestService(t, time.UTC)
		srv.Delay(registry.OpListJobs, time.Second)

		v := s.Overview(context.Background())
		assert.Equal(t, MsgBackendTimeout, v.Error)
		assert.Equal(t, 2, srv.Calls(registry.OpListJobs), "one retry")
	})

	t.Run("other failure", func(t *testing.T) {
		s, srv := newTestService(t, time.UTC)
		srv.Fail(registry.OpListPendingInterviews, http.StatusInternalServerError, `{"detail":"db down"}`)

		v := s.Overview(context.Background())
		assert.Equal(t, MsgDashboardFailed, v.Error)
		assert.Equal(t, 2, srv.Calls(registry.OpListPendingInterviews))
	})

	t.Run("retry refetches", func(t *testing.T) {
		s, srv := newTestService(t, time.UTC)
		srv.Fail(registry.OpListJobs, http.StatusInternalServerError, `{}`)
		require.NotEmpty(t, s.Overview(context.Background()).Error)

		srv.Reset(registry.OpListJobs)
		v := s.RetryOverview(context.Background())
		assert.Empty(t, v.Error)
		assert.Equal(t, 3, srv.Calls(registry.OpListJobs))
		assert.Equal(t, 2, srv.Calls(registry.OpListPendingInterviews), "fresh pending list refetched on retry")
	})
}

func TestApprove_RefetchesPendingList(t *testing.T) {
	s, srv := newTestService(t, time.UTC)
	srv.AddPending(11, "Tech screen", time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC))
	ctx := context.Background()

	v := s.PendingApprovals(ctx)
	require.Len(t, v.Interviews, 1)
	assert.Equal(t, "11", v.Interviews[0].ID)
	assert.Equal(t, "Jan 2, 2025, 9:30 AM", v.Interviews[0].ScheduledTime)

	res := s.Approve(ctx, "11")
	require.True(t, res.OK)
	assert.Equal(t, "Interview approved successfully", res.Message)

	v = s.PendingApprovals(ctx)
	assert.Empty(t, v.Interviews)
	assert.Equal(t, MsgNoPendingApproval, v.Empty)
	assert.Equal(t, 2, srv.Calls(registry.OpListPendingInterviews))

	res = s.Approve(ctx, "11")
	assert.False(t, res.OK)
	assert.Equal(t, "Failed to approve interview", res.Message)
	require.NotNil(t, res.Error)
	assert.Equal(t, "Interview not found", res.Error.Details)
	assert.Equal(t, 2, srv.Calls(registry.OpListPendingInterviews), "failed mutation leaves cache alone")
	s.PendingApprovals(ctx)
	assert.Equal(t, 2, srv.Calls(registry.OpListPendingInterviews))
}

func TestShortlist(t *testing.T) {
	s, srv := newTestService(t, time.UTC)
	id := srv.AddJob("Engineer", "Build")
	jobID := formatID(id)
	srv.AddCandidate(jobID, 7, "Ada", "ada@example.com", 0.915)
	ctx := context.Background()

	v := s.Shortlist(ctx, "")
	require.Len(t, v.Jobs, 1)
	assert.Equal(t, JobOption{ID: jobID, Title: "Engineer"}, v.Jobs[0])
	assert.Empty(t, v.Candidates)
	assert.Zero(t, srv.Calls(registry.OpGetShortlist), "no job selected, no shortlist query")

	v = s.Shortlist(ctx, jobID)
	require.Len(t, v.Candidates, 1)
	assert.Equal(t, "Ada", v.Candidates[0].Name)
	assert.Equal(t, "91.5%", v.Candidates[0].FitScore)
}

func TestReject(t *testing.T) {
	s, srv := newTestService(t, time.UTC)
	jobID := formatID(srv.AddJob("Engineer", "Build"))
	srv.AddCandidate(jobID, 7, "Ada", "ada@example.com", 0.9)
	ctx := context.Background()
	require.Len(t, s.Shortlist(ctx, jobID).Candidates, 1)

	res := s.Reject(ctx, jobID, "7", "   ")
	assert.False(t, res.OK)
	require.NotNil(t, res.Error)
	assert.Equal(t, string(errors.ErrCodeValidation), res.Error.Code)
	assert.Zero(t, srv.Calls(registry.OpSubmitFeedback))

	res = s.Reject(ctx, jobID, "7", "  not a fit  ")
	require.True(t, res.OK)
	assert.Equal(t, "Your feedback has been recorded", res.Message)
	require.Len(t, srv.Feedback, 1)
	assert.Equal(t, models.DecisionRejected, srv.Feedback[0]["hr_decision"])
	assert.Equal(t, "not a fit", srv.Feedback[0]["hr_comments"])

	assert.Empty(t, s.Shortlist(ctx, jobID).Candidates)
	assert.Equal(t, 2, srv.Calls(registry.OpGetShortlist))

	srv.Fail(registry.OpSubmitFeedback, http.StatusInternalServerError, `{}`)
	res = s.Reject(ctx, jobID, "7", "again")
	assert.Equal(t, "Failed to submit feedback", res.Message)
}

// Scenario A through the views: a created job shows up in the next listing.
func TestCreateJob(t *testing.T) {
	s, srv := newTestService(t, time.UTC)
	ctx := context.Background()
	assert.Empty(t, s.Management(ctx).Jobs)

	res := s.CreateJob(ctx, " ", "desc")
	assert.False(t, res.OK)
	assert.Zero(t, srv.Calls(registry.OpCreateJob))

	res = s.CreateJob(ctx, " Engineer ", " Build things ")
	require.True(t, res.OK)
	assert.Equal(t, "The job posting has been created successfully", res.Message)
	job, ok := res.Data.(*models.Job)
	require.True(t, ok)
	assert.Positive(t, job.ID)
	assert.Equal(t, "Engineer", job.Title)

	jobs := s.Management(ctx).Jobs
	require.Len(t, jobs, 1)
	assert.Equal(t, formatID(job.ID), jobs[0].ID)
	assert.Equal(t, 2, srv.Calls(registry.OpListJobs))

	srv.Fail(registry.OpCreateJob, http.StatusInternalServerError, `{}`)
	assert.Equal(t, "Failed to create job", s.CreateJob(ctx, "a", "b").Message)
}

func TestUploadCandidate(t *testing.T) {
	s, srv := newTestService(t, time.UTC)
	jobID := formatID(srv.AddJob("Engineer", "Build"))
	ctx := context.Background()

	res := s.UploadCandidate(ctx, jobID, "Ada", "ada@example.com", nil)
	assert.False(t, res.OK)
	assert.Equal(t, "No file selected", res.Message)

	res = s.UploadCandidate(ctx, jobID, "", "ada@example.com", &Resume{FileName: "cv.pdf", Content: strings.NewReader("pdf")})
	assert.False(t, res.OK)
	assert.Zero(t, srv.Calls(registry.OpUploadCandidate))

	require.Empty(t, s.Candidates(ctx, jobID).Data)
	res = s.UploadCandidate(ctx, jobID, "Ada", "ada@example.com", &Resume{FileName: "cv.pdf", Content: strings.NewReader("pdf")})
	require.True(t, res.OK)
	assert.Equal(t, "Resume uploaded successfully", res.Message)
	require.Len(t, srv.Uploads, 1)
	assert.Equal(t, "cv.pdf", srv.Uploads[0].FileName)

	p := s.Candidates(ctx, jobID)
	assert.Equal(t, query.StatusSuccess, p.Status)
	assert.Len(t, p.Data, 1)
	assert.Equal(t, 2, srv.Calls(registry.OpListCandidates))
}

func TestAsk(t *testing.T) {
	s, srv := newTestService(t, time.UTC)
	ctx := context.Background()
	chat := s.Chat("sess-1")
	assert.Same(t, chat, s.Chat("sess-1"))

	v := chat.View()
	require.Len(t, v.Messages, 1)
	assert.Equal(t, models.ChatRoleAI, v.Messages[0].Role)
	assert.Equal(t, chatGreeting, v.Messages[0].Content)

	v, err := s.Ask(ctx, chat, "  ")
	require.NoError(t, err)
	assert.Len(t, v.Messages, 1)
	assert.Zero(t, srv.Calls(registry.OpChatAnalytics))

	v, err = s.Ask(ctx, chat, "How many candidates?")
	require.NoError(t, err)
	require.Len(t, v.Messages, 3)
	assert.Equal(t, models.ChatMessage{Role: models.ChatRoleHuman, Content: "How many candidates?"}, v.Messages[1])
	assert.Equal(t, models.ChatMessage{Role: models.ChatRoleAI, Content: "There are 3 candidates."}, v.Messages[2])
	require.Len(t, srv.ChatHistory, 1)
	assert.Len(t, srv.ChatHistory[0], 1, "history excludes the question being asked")

	srv.Fail(registry.OpChatAnalytics, http.StatusInternalServerError, `{"detail":"boom"}`)
	v, err = s.Ask(ctx, chat, "And jobs?")
	require.NoError(t, err)
	require.Len(t, v.Messages, 5)
	assert.Equal(t, "Sorry, I encountered an error: Failed to get chat response", v.Messages[4].Content)
	assert.False(t, v.Pending)

	s.EndChat("sess-1")
	assert.NotSame(t, chat, s.Chat("sess-1"))
}

func TestDashboardMetricsAndAnalysis(t *testing.T) {
	s, _ := newTestService(t, time.UTC)
	ctx := context.Background()

	m := s.DashboardMetrics(ctx)
	require.Equal(t, query.StatusSuccess, m.Status)
	assert.JSONEq(t, `[{"stage":"applied","count":3}]`, string(m.Data.Pipeline))

	a := s.CandidateAnalysis(ctx, "7")
	require.Equal(t, query.StatusSuccess, a.Status)
	assert.Equal(t, int64(7), a.Data.CandidateID)

	r := s.ExamResults(ctx, "7")
	assert.Equal(t, query.StatusSuccess, r.Status)
	assert.Empty(t, r.Data)
}
