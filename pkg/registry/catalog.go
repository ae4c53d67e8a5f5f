package registry

import "time"

const (
	CategoryHR        = "hr"
	CategoryCandidate = "candidate"
	CategoryPublic    = "public"
)

// Operation ids.
const (
	OpListJobs                = "listJobs"
	OpCreateJob               = "createJob"
	OpListPendingInterviews   = "listPendingInterviews"
	OpApproveInterview        = "approveInterview"
	OpListCandidates          = "listCandidates"
	OpUploadCandidate         = "uploadCandidate"
	OpGetShortlist            = "getShortlist"
	OpSubmitFeedback          = "submitFeedback"
	OpGetAnalysis             = "getAnalysis"
	OpChatAnalytics           = "chatAnalytics"
	OpGetDashboardMetrics     = "getDashboardMetrics"
	OpGetCandidateExamResults = "getCandidateExamResults"
	OpGetCandidateStatus      = "getCandidateStatus"
	OpGetExam                 = "getExam"
	OpSubmitExam              = "submitExam"
)

// Cache key families.
const (
	KeyJobs              = "jobs"
	KeyPendingInterviews = "pendingInterviews"
	KeyApplications      = "applications"
	KeyCandidates        = "candidates"
	KeyShortlist         = "shortlist"
	KeyExam              = "exam"
)

func obj(required []string, props map[string]interface{}) map[string]interface{} {
	s := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func arrayOf(item map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": item}
}

var (
	idSchema       = map[string]interface{}{"type": "integer"}
	stringSchema   = map[string]interface{}{"type": "string"}
	nullableString = map[string]interface{}{"type": []interface{}{"string", "null"}}
	anyObject      = map[string]interface{}{"type": "object"}

	jobSchema = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"job_id":           idSchema,
			"id":               idSchema,
			"title":            stringSchema,
			"description_text": nullableString,
			"created_at":       nullableString,
		},
		"required": []interface{}{"title"},
		"anyOf": []interface{}{
			map[string]interface{}{"required": []interface{}{"job_id"}},
			map[string]interface{}{"required": []interface{}{"id"}},
		},
	}

	interviewSchema = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"interview_id":        idSchema,
			"id":                  idSchema,
			"summary":             nullableString,
			"proposed_start_time": nullableString,
			"proposed_end_time":   nullableString,
			"status":              nullableString,
			"meeting_link":        nullableString,
		},
		"anyOf": []interface{}{
			map[string]interface{}{"required": []interface{}{"interview_id"}},
			map[string]interface{}{"required": []interface{}{"id"}},
		},
	}

	candidateSchema = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"candidate_id": idSchema,
			"id":           idSchema,
			"name":         nullableString,
			"email":        nullableString,
			"fit_score":    map[string]interface{}{"type": []interface{}{"number", "null"}},
			"status":       nullableString,
		},
		"anyOf": []interface{}{
			map[string]interface{}{"required": []interface{}{"candidate_id"}},
			map[string]interface{}{"required": []interface{}{"id"}},
		},
	}
)

// Default returns the fixed endpoint catalog.
func Default() *EndpointRegistry {
	return &EndpointRegistry{
		Version:     "1.0.0",
		LastUpdated: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
		Endpoints: []Endpoint{
			{
				ID: OpListJobs, DisplayName: "List jobs", Category: CategoryPublic,
				Method: "GET", Path: "/jobs", Retries: 1, CacheKey: KeyJobs,
				FailureMessage: "Failed to fetch jobs",
				ResponseSchema: arrayOf(jobSchema),
			},
			{
				ID: OpCreateJob, DisplayName: "Create job", Category: CategoryHR,
				Method: "POST", Path: "/jobs", Invalidates: []string{KeyJobs},
				FailureMessage: "Failed to create job",
				ResponseSchema: jobSchema,
			},
			{
				ID: OpListPendingInterviews, DisplayName: "List pending interviews", Category: CategoryHR,
				Method: "GET", Path: "/pending-interviews", Retries: 1, CacheKey: KeyPendingInterviews,
				FailureMessage: "Failed to fetch pending interviews",
				ResponseSchema: arrayOf(interviewSchema),
			},
			{
				ID: OpApproveInterview, DisplayName: "Approve interview", Category: CategoryHR,
				Method: "POST", Path: "/pending-interviews/{interviewId}/approve",
				Invalidates:    []string{KeyPendingInterviews},
				FailureMessage: "Failed to approve interview",
				ResponseSchema: anyObject,
			},
			{
				ID: OpListCandidates, DisplayName: "List candidates", Category: CategoryHR,
				Method: "GET", Path: "/jobs/{jobId}/candidates", CacheKey: KeyCandidates + "/{jobId}",
				FailureMessage: "Failed to fetch candidates",
				ResponseSchema: arrayOf(candidateSchema),
			},
			{
				ID: OpUploadCandidate, DisplayName: "Upload candidate resume", Category: CategoryCandidate,
				Method: "POST", Path: "/jobs/{jobId}/candidates", Upload: true,
				Invalidates: []string{
					KeyCandidates + "/{jobId}",
					KeyShortlist + "/{jobId}",
					KeyApplications,
				},
				FailureMessage: "Failed to upload candidate",
				ResponseSchema: anyObject,
			},
			{
				ID: OpGetShortlist, DisplayName: "Job shortlist", Category: CategoryHR,
				Method: "GET", Path: "/jobs/{jobId}/shortlist", CacheKey: KeyShortlist + "/{jobId}",
				FailureMessage: "Failed to fetch shortlist",
				ResponseSchema: arrayOf(candidateSchema),
			},
			{
				ID: OpSubmitFeedback, DisplayName: "Submit feedback", Category: CategoryHR,
				Method: "POST", Path: "/jobs/{jobId}/candidates/{candidateId}/feedback",
				Invalidates:    []string{KeyShortlist + "/{jobId}", KeyCandidates + "/{jobId}"},
				FailureMessage: "Failed to submit feedback",
				ResponseSchema: anyObject,
			},
			{
				ID: OpGetAnalysis, DisplayName: "Detailed analysis", Category: CategoryHR,
				Method: "GET", Path: "/candidates/{candidateId}/analysis", CacheKey: "analysis/{candidateId}",
				FailureMessage: "Failed to fetch detailed analysis",
				ResponseSchema: anyObject,
			},
			{
				ID: OpChatAnalytics, DisplayName: "Chat analytics", Category: CategoryHR,
				Method: "POST", Path: "/hr/chat-analytics",
				FailureMessage: "Failed to get chat response",
				ResponseSchema: obj([]string{"answer"}, map[string]interface{}{"answer": stringSchema}),
			},
			{
				ID: OpGetDashboardMetrics, DisplayName: "Dashboard metrics", Category: CategoryHR,
				Method: "GET", Path: "/analytics/dashboard", CacheKey: "dashboardMetrics",
				FailureMessage: "Failed to fetch dashboard metrics",
				ResponseSchema: anyObject,
			},
			{
				ID: OpGetCandidateExamResults, DisplayName: "Candidate exam results", Category: CategoryHR,
				Method: "GET", Path: "/hr/candidate-exams/{candidateId}", CacheKey: "examResults/{candidateId}",
				FailureMessage: "Failed to fetch exam results",
				ResponseSchema: map[string]interface{}{"type": []interface{}{"array", "object"}},
			},
			{
				ID: OpGetCandidateStatus, DisplayName: "Candidate status", Category: CategoryPublic,
				Method: "GET", Path: "/candidate-status", Query: []string{"email"}, CacheKey: KeyApplications + "/{email}",
				FailureMessage: "Failed to fetch candidate status",
				ResponseSchema: obj([]string{"status"}, map[string]interface{}{
					"status":         stringSchema,
					"job_title":      nullableString,
					"interview_time": nullableString,
				}),
			},
			{
				ID: OpGetExam, DisplayName: "Exam fetch", Category: CategoryPublic,
				Method: "GET", Path: "/exam/{token}", CacheKey: KeyExam + "/{token}",
				FailureMessage: "Failed to fetch exam. Link may be invalid or expired.",
				ResponseSchema: obj([]string{"questions"}, map[string]interface{}{
					"job_title": nullableString,
					"questions": arrayOf(obj([]string{"question_text", "question_type"}, map[string]interface{}{
						"question_text": stringSchema,
						"question_type": map[string]interface{}{
							"type": "string",
							"enum": []interface{}{"multiple-choice", "short-answer", "coding"},
						},
						"options": map[string]interface{}{
							"type":  []interface{}{"array", "null"},
							"items": stringSchema,
						},
					})),
				}),
			},
			{
				ID: OpSubmitExam, DisplayName: "Exam submit", Category: CategoryPublic,
				Method: "POST", Path: "/exam/{token}/submit",
				FailureMessage: "Failed to submit exam",
				ResponseSchema: anyObject,
			},
		},
	}
}
