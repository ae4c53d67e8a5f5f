package views

import (
	"context"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"recruit-portal/internal/backend"
	"recruit-portal/internal/common/errors"
	"recruit-portal/internal/models"
	"recruit-portal/internal/query"
	"recruit-portal/pkg/registry"
)

const recentActivityLimit = 5

// StatCard is one tile of the HR overview.
type StatCard struct {
	Title       string `json:"title"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

type InterviewRow struct {
	ID            string `json:"id"`
	JobID         string `json:"jobId,omitempty"`
	Summary       string `json:"summary"`
	ScheduledTime string `json:"scheduledTime"`
}

type OverviewView struct {
	Stats          []StatCard     `json:"stats"`
	RecentActivity []InterviewRow `json:"recentActivity"`
	Error          string         `json:"error,omitempty"`
}

// Overview loads jobs and pending interviews concurrently.
func (s *Service) Overview(ctx context.Context) OverviewView {
	var (
		jobs             []models.Job
		pending          []models.Interview
		jobsErr, pendErr error
		g                errgroup.Group
	)
	g.Go(func() error {
		jobs, jobsErr = s.jobs(ctx)
		return nil
	})
	g.Go(func() error {
		pending, pendErr = s.pendingInterviews(ctx)
		return nil
	})
	_ = g.Wait()

	if jobsErr != nil || pendErr != nil {
		err := jobsErr
		if err == nil {
			err = pendErr
		}
		s.logger.WithError(err).Warn("Failed to load HR overview", nil)
		return OverviewView{Error: loadFailure(err, MsgDashboardFailed)}
	}

	v := OverviewView{
		Stats: []StatCard{
			{Title: "Active Jobs", Value: formatID(int64(len(jobs))), Description: "Currently open positions"},
			{Title: "Pending Approvals", Value: formatID(int64(len(pending))), Description: "Interviews awaiting approval"},
			{Title: "Total Candidates", Value: "-", Description: "Across all jobs"},
			{Title: "Avg. Fit Score", Value: "-", Description: "Average candidate match"},
		},
		RecentActivity: []InterviewRow{},
	}
	for i, iv := range pending {
		if i == recentActivityLimit {
			break
		}
		v.RecentActivity = append(v.RecentActivity, s.interviewRow(iv))
	}
	return v
}

// RetryOverview refetches both overview queries.
func (s *Service) RetryOverview(ctx context.Context) OverviewView {
	s.cache.Invalidate(ctx, registry.KeyJobs, registry.KeyPendingInterviews)
	return s.Overview(ctx)
}

func (s *Service) jobs(ctx context.Context) ([]models.Job, error) {
	return fetch(ctx, s, registry.OpListJobs, nil, s.api.ListJobs)
}

func (s *Service) pendingInterviews(ctx context.Context) ([]models.Interview, error) {
	return fetch(ctx, s, registry.OpListPendingInterviews, nil, s.api.ListPendingInterviews)
}

func (s *Service) interviewRow(iv models.Interview) InterviewRow {
	row := InterviewRow{
		ID:            formatID(iv.ID),
		Summary:       iv.Summary,
		ScheduledTime: s.formatDateTime(iv.ProposedStartTime.Time),
	}
	if iv.JobID != 0 {
		row.JobID = formatID(iv.JobID)
	}
	return row
}

type ApprovalsView struct {
	Interviews []InterviewRow `json:"interviews"`
	Empty      string         `json:"empty,omitempty"`
	Error      *ErrorView     `json:"error,omitempty"`
}

func (s *Service) PendingApprovals(ctx context.Context) ApprovalsView {
	pending, err := s.pendingInterviews(ctx)
	if err != nil {
		return ApprovalsView{Interviews: []InterviewRow{}, Error: errorView(err)}
	}
	v := ApprovalsView{Interviews: make([]InterviewRow, 0, len(pending))}
	for _, iv := range pending {
		v.Interviews = append(v.Interviews, s.interviewRow(iv))
	}
	if len(v.Interviews) == 0 {
		v.Empty = MsgNoPendingApproval
	}
	return v
}

// Approve approves a proposed interview; the pending list is refetched on
// success.
func (s *Service) Approve(ctx context.Context, interviewID string) ActionResult {
	params := map[string]string{"interviewId": interviewID}
	res := mutate(ctx, s, registry.OpApproveInterview, params, func(ctx context.Context) (*models.Interview, error) {
		return s.api.ApproveInterview(ctx, interviewID)
	})
	if !res.OK() {
		return failed("Failed to approve interview", res.Err)
	}
	return succeeded("Success!", "Interview approved successfully", res.Value)
}

type JobOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type CandidateRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	FitScore string `json:"fitScore"`
	Status   string `json:"status,omitempty"`
}

type ShortlistView struct {
	Jobs          []JobOption    `json:"jobs"`
	SelectedJobID string         `json:"selectedJobId,omitempty"`
	Candidates    []CandidateRow `json:"candidates"`
	Empty         string         `json:"empty,omitempty"`
	Error         *ErrorView     `json:"error,omitempty"`
}

// Shortlist lists jobs and, once a job is selected, its shortlist.
func (s *Service) Shortlist(ctx context.Context, jobID string) ShortlistView {
	v := ShortlistView{Jobs: []JobOption{}, Candidates: []CandidateRow{}, SelectedJobID: jobID}

	jobs, err := s.jobs(ctx)
	if err != nil {
		v.Error = errorView(err)
		return v
	}
	v.Jobs = jobOptions(jobs)

	if jobID == "" {
		return v
	}
	params := map[string]string{"jobId": jobID}
	list, err := fetch(ctx, s, registry.OpGetShortlist, params, func(ctx context.Context) ([]models.Candidate, error) {
		return s.api.GetShortlist(ctx, jobID)
	})
	if err != nil {
		v.Error = errorView(err)
		return v
	}
	v.Candidates = candidateRows(list)
	if len(v.Candidates) == 0 {
		v.Empty = MsgEmptyShortlist
	}
	return v
}

// Candidates lists every applicant of a job.
func (s *Service) Candidates(ctx context.Context, jobID string) Panel[[]CandidateRow] {
	params := map[string]string{"jobId": jobID}
	list, err := fetch(ctx, s, registry.OpListCandidates, params, func(ctx context.Context) ([]models.Candidate, error) {
		return s.api.ListCandidates(ctx, jobID)
	})
	return panel(candidateRows(list), err)
}

// Reject records a rejection with a mandatory comment. An empty comment is
// refused before any request is made.
func (s *Service) Reject(ctx context.Context, jobID, candidateID, comment string) ActionResult {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return failed("Please provide a comment for rejection", errors.NewValidationError("comment is required"))
	}
	params := map[string]string{"jobId": jobID, "candidateId": candidateID}
	res := mutate(ctx, s, registry.OpSubmitFeedback, params, func(ctx context.Context) (models.Ack, error) {
		return s.api.SubmitFeedback(ctx, jobID, candidateID, models.FeedbackRequest{
			HRDecision: models.DecisionRejected,
			HRComments: comment,
		})
	})
	if !res.OK() {
		return failed("Failed to submit feedback", res.Err)
	}
	return succeeded("Feedback Submitted", "Your feedback has been recorded", nil)
}

type ManagementView struct {
	Jobs  []JobOption `json:"jobs"`
	Error *ErrorView  `json:"error,omitempty"`
}

// Management lists the jobs a resume can be uploaded against.
func (s *Service) Management(ctx context.Context) ManagementView {
	jobs, err := s.jobs(ctx)
	if err != nil {
		return ManagementView{Jobs: []JobOption{}, Error: errorView(err)}
	}
	return ManagementView{Jobs: jobOptions(jobs)}
}

func (s *Service) CreateJob(ctx context.Context, title, description string) ActionResult {
	title, description = strings.TrimSpace(title), strings.TrimSpace(description)
	if title == "" || description == "" {
		return failed("Please fill in all fields", errors.NewValidationError("title and description are required"))
	}
	res := mutate(ctx, s, registry.OpCreateJob, nil, func(ctx context.Context) (*models.Job, error) {
		return s.api.CreateJob(ctx, title, description)
	})
	if !res.OK() {
		return failed("Failed to create job", res.Err)
	}
	return succeeded("Job Created!", "The job posting has been created successfully", res.Value)
}

// Resume is an uploaded resume file.
type Resume struct {
	FileName string
	Content  io.Reader
}

func (r *Resume) missing() bool {
	return r == nil || r.Content == nil || r.FileName == ""
}

// UploadCandidate submits a resume on behalf of a candidate.
func (s *Service) UploadCandidate(ctx context.Context, jobID, name, email string, resume *Resume) ActionResult {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if resume.missing() {
		return failed("No file selected", errors.NewValidationError("No file selected"))
	}
	if jobID == "" || name == "" || email == "" {
		return failed("Please fill in all fields", errors.NewValidationError("job, name and email are required"))
	}
	res := s.upload(ctx, jobID, name, email, resume)
	if !res.OK() {
		return failed("Failed to upload candidate", res.Err)
	}
	return succeeded("Candidate Added!", "Resume uploaded successfully", res.Value)
}

func (s *Service) upload(ctx context.Context, jobID, name, email string, resume *Resume) query.Result[*models.Candidate] {
	params := map[string]string{"jobId": jobID}
	return mutate(ctx, s, registry.OpUploadCandidate, params, func(ctx context.Context) (*models.Candidate, error) {
		return s.api.UploadCandidate(ctx, jobID, backend.CandidateUpload{
			Name:     name,
			Email:    email,
			FileName: resume.FileName,
			Resume:   resume.Content,
		})
	})
}

func jobOptions(jobs []models.Job) []JobOption {
	out := make([]JobOption, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobOption{ID: formatID(j.ID), Title: j.Title})
	}
	return out
}

func candidateRows(list []models.Candidate) []CandidateRow {
	out := make([]CandidateRow, 0, len(list))
	for _, c := range list {
		out = append(out, CandidateRow{
			ID:       formatID(c.ID),
			Name:     c.Name,
			Email:    c.Email,
			FitScore: formatPercent(c.FitScore),
			Status:   string(c.Status),
		})
	}
	return out
}
