package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"

	"recruit-portal/internal/common/errors"
	"recruit-portal/internal/models"
	"recruit-portal/pkg/registry"
)

// === HR Endpoints ===

func (c *Client) ListJobs(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	if err := c.do(ctx, call{op: registry.OpListJobs}, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListJobsRaw returns the job list exactly as the backend sent it, once it
// passed schema validation.
func (c *Client) ListJobsRaw(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{op: registry.OpListJobs}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) CreateJob(ctx context.Context, title, description string) (*models.Job, error) {
	cl, err := jsonCall(registry.OpCreateJob, nil, models.CreateJobRequest{
		Title:           title,
		DescriptionText: description,
	})
	if err != nil {
		return nil, err
	}
	var job models.Job
	if err := c.do(ctx, cl, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) ListPendingInterviews(ctx context.Context) ([]models.Interview, error) {
	var interviews []models.Interview
	if err := c.do(ctx, call{op: registry.OpListPendingInterviews}, &interviews); err != nil {
		return nil, err
	}
	return interviews, nil
}

func (c *Client) ApproveInterview(ctx context.Context, interviewID string) (*models.Interview, error) {
	var interview models.Interview
	cl := call{op: registry.OpApproveInterview, params: map[string]string{"interviewId": interviewID}}
	if err := c.do(ctx, cl, &interview); err != nil {
		return nil, err
	}
	return &interview, nil
}

func (c *Client) ListCandidates(ctx context.Context, jobID string) ([]models.Candidate, error) {
	var candidates []models.Candidate
	cl := call{op: registry.OpListCandidates, params: map[string]string{"jobId": jobID}}
	if err := c.do(ctx, cl, &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

// CandidateUpload is the multipart payload of a resume submission.
type CandidateUpload struct {
	Name     string
	Email    string
	FileName string
	Resume   io.Reader
}

// UploadCandidate posts name, email and resume as multipart/form-data. The
// content type, boundary included, comes from the multipart writer.
func (c *Client) UploadCandidate(ctx context.Context, jobID string, up CandidateUpload) (*models.Candidate, error) {
	if up.Resume == nil || up.FileName == "" {
		return nil, errors.NewValidationError("No file selected")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("name", up.Name); err != nil {
		return nil, errors.NewInternalError(err)
	}
	if err := w.WriteField("email", up.Email); err != nil {
		return nil, errors.NewInternalError(err)
	}
	part, err := w.CreateFormFile("resume", up.FileName)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if _, err := io.Copy(part, up.Resume); err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("read resume: %w", err))
	}
	if err := w.Close(); err != nil {
		return nil, errors.NewInternalError(err)
	}

	var candidate models.Candidate
	cl := call{
		op:          registry.OpUploadCandidate,
		params:      map[string]string{"jobId": jobID},
		body:        &buf,
		contentType: w.FormDataContentType(),
	}
	if err := c.do(ctx, cl, &candidate); err != nil {
		return nil, err
	}
	return &candidate, nil
}

func (c *Client) GetShortlist(ctx context.Context, jobID string) ([]models.Candidate, error) {
	var shortlist []models.Candidate
	cl := call{op: registry.OpGetShortlist, params: map[string]string{"jobId": jobID}}
	if err := c.do(ctx, cl, &shortlist); err != nil {
		return nil, err
	}
	return shortlist, nil
}

func (c *Client) SubmitFeedback(ctx context.Context, jobID, candidateID string, fb models.FeedbackRequest) (models.Ack, error) {
	cl, err := jsonCall(registry.OpSubmitFeedback, map[string]string{"jobId": jobID, "candidateId": candidateID}, fb)
	if err != nil {
		return nil, err
	}
	var ack models.Ack
	if err := c.do(ctx, cl, &ack); err != nil {
		return nil, err
	}
	return ack, nil
}

func (c *Client) GetAnalysis(ctx context.Context, candidateID string) (*models.CandidateAnalysis, error) {
	var analysis models.CandidateAnalysis
	cl := call{op: registry.OpGetAnalysis, params: map[string]string{"candidateId": candidateID}}
	if err := c.do(ctx, cl, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (c *Client) ChatAnalytics(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	if req.ChatHistory == nil {
		req.ChatHistory = []models.ChatMessage{}
	}
	cl, err := jsonCall(registry.OpChatAnalytics, nil, req)
	if err != nil {
		return nil, err
	}
	var resp models.ChatResponse
	if err := c.do(ctx, cl, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetDashboardMetrics(ctx context.Context) (*models.DashboardMetrics, error) {
	var metrics models.DashboardMetrics
	if err := c.do(ctx, call{op: registry.OpGetDashboardMetrics}, &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}

// GetCandidateExamResults accepts either a list of results or a single result.
func (c *Client) GetCandidateExamResults(ctx context.Context, candidateID string) ([]models.ExamResult, error) {
	var raw json.RawMessage
	cl := call{op: registry.OpGetCandidateExamResults, params: map[string]string{"candidateId": candidateID}}
	if err := c.do(ctx, cl, &raw); err != nil {
		return nil, err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var one models.ExamResult
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, errors.NewMalformedResponseError(registry.OpGetCandidateExamResults, err)
		}
		return []models.ExamResult{one}, nil
	}
	var results []models.ExamResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, errors.NewMalformedResponseError(registry.OpGetCandidateExamResults, err)
	}
	return results, nil
}

// === Candidate & Public Endpoints ===

func (c *Client) GetCandidateStatus(ctx context.Context, email string) (*models.CandidateStatusReport, error) {
	if err := required("email", email); err != nil {
		return nil, err
	}
	var report models.CandidateStatusReport
	cl := call{op: registry.OpGetCandidateStatus, query: url.Values{"email": {email}}}
	if err := c.do(ctx, cl, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) GetExam(ctx context.Context, token string) (*models.Exam, error) {
	if err := required("exam token", token); err != nil {
		return nil, err
	}
	var exam models.Exam
	cl := call{op: registry.OpGetExam, params: map[string]string{"token": token}}
	if err := c.do(ctx, cl, &exam); err != nil {
		return nil, err
	}
	return &exam, nil
}

func (c *Client) SubmitExam(ctx context.Context, token string, answers models.ExamAnswers) (models.Ack, error) {
	if err := required("exam token", token); err != nil {
		return nil, err
	}
	if answers == nil {
		answers = models.ExamAnswers{}
	}
	cl, err := jsonCall(registry.OpSubmitExam, map[string]string{"token": token}, models.ExamSubmission{Answers: answers})
	if err != nil {
		return nil, err
	}
	var ack models.Ack
	if err := c.do(ctx, cl, &ack); err != nil {
		return nil, err
	}
	return ack, nil
}
