package views

import (
	"context"
	"fmt"
	"strings"

	"recruit-portal/internal/common/errors"
	"recruit-portal/internal/models"
	"recruit-portal/pkg/registry"
)

const noDescription = "No description available"

type JobCard struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Posted      string `json:"posted,omitempty"`
}

type JobsView struct {
	Jobs  []JobCard `json:"jobs"`
	Empty string    `json:"empty,omitempty"`
	Error string    `json:"error,omitempty"`
}

// Jobs lists open positions for candidates.
func (s *Service) Jobs(ctx context.Context) JobsView {
	jobs, err := s.jobs(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load jobs", nil)
		return JobsView{Jobs: []JobCard{}, Error: loadFailure(err, MsgJobsFailed)}
	}
	v := JobsView{Jobs: make([]JobCard, 0, len(jobs))}
	for _, j := range jobs {
		desc := j.DescriptionText
		if blank(desc) {
			desc = noDescription
		}
		v.Jobs = append(v.Jobs, JobCard{
			ID:          formatID(j.ID),
			Title:       j.Title,
			Description: desc,
			Posted:      s.formatDate(j.CreatedAt.Time),
		})
	}
	if len(v.Jobs) == 0 {
		v.Empty = MsgNoJobs
	}
	return v
}

// Apply submits the signed-in candidate's resume to a job. The name sent is
// the display name, or the email when there is none.
func (s *Service) Apply(ctx context.Context, id *models.Identity, jobID string, resume *Resume) ActionResult {
	if id == nil {
		return failed("Please sign in to apply", errors.NewUnauthorizedError("sign in required"))
	}
	if resume.missing() {
		msg := "Please upload a resume to apply."
		return failed(msg, errors.NewValidationError(msg))
	}
	if jobID == "" {
		return failed("Please select a job", errors.NewValidationError("job is required"))
	}

	res := s.upload(ctx, jobID, id.Name(), id.Email, resume)
	if !res.OK() {
		msg := "Failed to submit application"
		if se, ok := errors.AsStandard(res.Err); ok && se.Details != "" {
			msg = se.Details
		}
		return failed(msg, res.Err)
	}
	return succeeded("Success!", fmt.Sprintf("Application submitted! Fit score: %.2f", res.Value.FitScore), res.Value)
}

type StatusView struct {
	Email         string     `json:"email"`
	Status        string     `json:"status,omitempty"`
	JobTitle      string     `json:"jobTitle,omitempty"`
	InterviewTime string     `json:"interviewTime,omitempty"`
	Message       string     `json:"message,omitempty"`
	Error         *ErrorView `json:"error,omitempty"`
}

// Status looks up an application by email. A scheduled interview is
// confirmed with its time in the configured zone.
func (s *Service) Status(ctx context.Context, email string) StatusView {
	email = strings.TrimSpace(email)
	v := StatusView{Email: email}
	if email == "" {
		v.Error = errorView(errors.NewValidationError("email is required"))
		return v
	}

	params := map[string]string{"email": email}
	report, err := fetch(ctx, s, registry.OpGetCandidateStatus, params, func(ctx context.Context) (*models.CandidateStatusReport, error) {
		return s.api.GetCandidateStatus(ctx, email)
	})
	if err != nil {
		v.Error = errorView(err)
		return v
	}

	v.Status, v.JobTitle = report.Status, report.JobTitle
	if report.InterviewTime != nil {
		v.InterviewTime = s.formatDateTime(report.InterviewTime.Time)
	}

	switch {
	case models.ParseCandidateStatus(report.Status) == models.CandidateStatusScheduled && v.InterviewTime != "":
		v.Message = "Your interview is scheduled for " + v.InterviewTime
	case report.JobTitle != "":
		v.Message = fmt.Sprintf("Your application for %s is %s", report.JobTitle, strings.ToLower(report.Status))
	default:
		v.Message = fmt.Sprintf("Your application status: %s", report.Status)
	}
	return v
}

type ProfileView struct {
	Initials string `json:"initials"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// Profile renders the header and profile card of a signed-in user.
func Profile(id *models.Identity) ProfileView {
	if id == nil {
		return ProfileView{Initials: "U", Name: "Candidate", FullName: "Not provided"}
	}
	v := ProfileView{
		Initials: initials(id),
		Name:     id.DisplayName,
		Email:    id.Email,
		FullName: id.DisplayName,
		Role:     string(id.Role),
	}
	if v.Name == "" {
		v.Name = "Candidate"
	}
	if v.FullName == "" {
		v.FullName = "Not provided"
	}
	return v
}

func initials(id *models.Identity) string {
	var b strings.Builder
	if id.DisplayName != "" {
		for _, part := range strings.Fields(id.DisplayName) {
			b.WriteRune([]rune(part)[0])
		}
	} else {
		b.WriteString(id.Email)
	}
	out := []rune(strings.ToUpper(b.String()))
	if len(out) == 0 {
		return "U"
	}
	if len(out) > 2 {
		out = out[:2]
	}
	return string(out)
}
