// Package backendtest provides an in-memory recruitment backend for tests.
package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"recruit-portal/pkg/registry"
)

// Upload records one multipart candidate submission.
type Upload struct {
	JobID       string
	Name        string
	Email       string
	FileName    string
	Content     string
	ContentType string
}

// Server is an httptest server speaking the backend's REST surface. Routes
// are addressed by catalog operation id for call counting, holds and faults.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	calls     map[string]int
	gates     map[string]chan struct{}
	faults    map[string]fault
	nextJobID int64

	Jobs        []map[string]interface{}
	Pending     []map[string]interface{}
	Candidates  map[string][]map[string]interface{}
	Statuses    map[string]map[string]interface{}
	Exams       map[string]map[string]interface{}
	Submissions map[string][]map[string]string
	Feedback    []map[string]string
	Uploads     []Upload
	ChatHistory [][]map[string]string
	ChatAnswer  string
	Dashboard   map[string]interface{}
	ExamResults map[string]interface{}
}

type fault struct {
	status int
	body   string
	delay  time.Duration
}

// NewServer starts an empty backend. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		calls:       make(map[string]int),
		gates:       make(map[string]chan struct{}),
		faults:      make(map[string]fault),
		nextJobID:   1,
		Candidates:  make(map[string][]map[string]interface{}),
		Statuses:    make(map[string]map[string]interface{}),
		Exams:       make(map[string]map[string]interface{}),
		Submissions: make(map[string][]map[string]string),
		ChatAnswer:  "There are 3 candidates.",
		Dashboard: map[string]interface{}{
			"pipeline":           []interface{}{map[string]interface{}{"stage": "applied", "count": 3}},
			"score_distribution": []interface{}{map[string]interface{}{"bucket": "0.8-1.0", "count": 1}},
		},
		ExamResults: make(map[string]interface{}),
	}

	r := chi.NewRouter()
	route := func(method, pattern, op string, h http.HandlerFunc) {
		r.Method(method, pattern, s.instrument(op, h))
	}

	route(http.MethodGet, "/jobs", registry.OpListJobs, s.listJobs)
	route(http.MethodPost, "/jobs", registry.OpCreateJob, s.createJob)
	route(http.MethodGet, "/pending-interviews", registry.OpListPendingInterviews, s.listPending)
	route(http.MethodPost, "/pending-interviews/{id}/approve", registry.OpApproveInterview, s.approve)
	route(http.MethodGet, "/jobs/{jobId}/candidates", registry.OpListCandidates, s.listCandidates)
	route(http.MethodPost, "/jobs/{jobId}/candidates", registry.OpUploadCandidate, s.uploadCandidate)
	route(http.MethodGet, "/jobs/{jobId}/shortlist", registry.OpGetShortlist, s.shortlist)
	route(http.MethodPost, "/jobs/{jobId}/candidates/{candidateId}/feedback", registry.OpSubmitFeedback, s.feedback)
	route(http.MethodGet, "/candidates/{id}/analysis", registry.OpGetAnalysis, s.analysis)
	route(http.MethodPost, "/hr/chat-analytics", registry.OpChatAnalytics, s.chat)
	route(http.MethodGet, "/analytics/dashboard", registry.OpGetDashboardMetrics, s.dashboard)
	route(http.MethodGet, "/hr/candidate-exams/{id}", registry.OpGetCandidateExamResults, s.examResults)
	route(http.MethodGet, "/candidate-status", registry.OpGetCandidateStatus, s.status)
	route(http.MethodGet, "/exam/{token}", registry.OpGetExam, s.getExam)
	route(http.MethodPost, "/exam/{token}/submit", registry.OpSubmitExam, s.submitExam)

	s.Server = httptest.NewServer(r)
	return s
}

// Calls returns how many requests reached op.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Hold blocks requests to op until the returned release func is called.
func (s *Server) Hold(op string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[op] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gates[op] == gate {
				delete(s.gates, op)
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Fail makes op answer with status and body until Reset.
func (s *Server) Fail(op string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = fault{status: status, body: body}
}

// Delay makes op wait d (or until the client gives up) before answering.
func (s *Server) Delay(op string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.faults[op]
	f.delay = d
	s.faults[op] = f
}

// Reset clears faults and delays for op.
func (s *Server) Reset(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.faults, op)
}

// AddJob seeds a job and returns its id.
func (s *Server) AddJob(title, description string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addJobLocked(title, description)
}

func (s *Server) addJobLocked(title, description string) int64 {
	id := s.nextJobID
	s.nextJobID++
	s.Jobs = append(s.Jobs, map[string]interface{}{
		"job_id":           id,
		"title":            title,
		"description_text": description,
		"created_at":       time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC).Format("2006-01-02T15:04:05"),
	})
	return id
}

// AddPending seeds a pending interview.
func (s *Server) AddPending(id int64, summary string, start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pending = append(s.Pending, map[string]interface{}{
		"interview_id":        id,
		"summary":             summary,
		"proposed_start_time": start.UTC().Format(time.RFC3339),
		"proposed_end_time":   start.Add(time.Hour).UTC().Format(time.RFC3339),
		"job_id":              1,
		"status":              "pending",
	})
}

// SetStatus seeds the status lookup answer for email.
func (s *Server) SetStatus(email string, status map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Statuses[email] = status
}

// AddExam seeds an exam under token.
func (s *Server) AddExam(token, jobTitle string, questions ...map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qs := make([]interface{}, len(questions))
	for i, q := range questions {
		qs[i] = q
	}
	s.Exams[token] = map[string]interface{}{"job_title": jobTitle, "questions": qs}
}

// AddCandidate seeds a candidate for a job.
func (s *Server) AddCandidate(jobID string, id int64, name, email string, fit float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jid, _ := strconv.ParseInt(jobID, 10, 64)
	s.Candidates[jobID] = append(s.Candidates[jobID], map[string]interface{}{
		"candidate_id": id,
		"job_id":       jid,
		"name":         name,
		"email":        email,
		"fit_score":    fit,
		"status":       "pending",
	})
}

func (s *Server) instrument(op string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[op]++
		gate := s.gates[op]
		f, faulty := s.faults[op]
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if faulty && f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-r.Context().Done():
				return
			}
		}
		if faulty && f.status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, f.body)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": detail})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	jobs := append([]map[string]interface{}{}, s.Jobs...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title           string `json:"title"`
		DescriptionText string `json:"description_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "title is required"})
		return
	}
	s.mu.Lock()
	s.addJobLocked(body.Title, body.DescriptionText)
	job := s.Jobs[len(s.Jobs)-1]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	pending := append([]map[string]interface{}{}, s.Pending...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, iv := range s.Pending {
		if toInt64(iv["interview_id"]) == id {
			s.Pending = append(s.Pending[:i], s.Pending[i+1:]...)
			iv["status"] = "approved"
			writeJSON(w, http.StatusOK, iv)
			return
		}
	}
	notFound(w, "Interview not found")
}

func (s *Server) listCandidates(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	list := append([]map[string]interface{}{}, s.Candidates[chi.URLParam(r, "jobId")]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) uploadCandidate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "expected multipart form"})
		return
	}
	file, header, err := r.FormFile("resume")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "resume is required"})
		return
	}
	defer file.Close()
	content, _ := io.ReadAll(file)

	jobID := chi.URLParam(r, "jobId")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Uploads = append(s.Uploads, Upload{
		JobID:       jobID,
		Name:        r.FormValue("name"),
		Email:       r.FormValue("email"),
		FileName:    header.Filename,
		Content:     string(content),
		ContentType: r.Header.Get("Content-Type"),
	})
	jid, _ := strconv.ParseInt(jobID, 10, 64)
	candidate := map[string]interface{}{
		"candidate_id": int64(len(s.Uploads)),
		"job_id":       jid,
		"name":         r.FormValue("name"),
		"email":        r.FormValue("email"),
		"fit_score":    0.82,
		"status":       "pending",
	}
	s.Candidates[jobID] = append(s.Candidates[jobID], candidate)
	writeJSON(w, http.StatusOK, candidate)
}

func (s *Server) shortlist(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var list []map[string]interface{}
	for _, c := range s.Candidates[chi.URLParam(r, "jobId")] {
		if c["status"] != "rejected" {
			list = append(list, c)
		}
	}
	s.mu.Unlock()
	if list == nil {
		list = []map[string]interface{}{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) feedback(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}
	jobID, candidateID := chi.URLParam(r, "jobId"), chi.URLParam(r, "candidateId")
	s.mu.Lock()
	defer s.mu.Unlock()
	body["job_id"], body["candidate_id"] = jobID, candidateID
	s.Feedback = append(s.Feedback, body)
	for _, c := range s.Candidates[jobID] {
		if fmt.Sprint(c["candidate_id"]) == candidateID && body["hr_decision"] == "Rejected" {
			c["status"] = "rejected"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Feedback recorded"})
}

func (s *Server) analysis(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"candidate_id": id,
		"skills":       []string{"go", "sql"},
		"experience":   "5 years",
		"education":    "BSc",
		"score":        0.9,
	})
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Question    string              `json:"question"`
		ChatHistory []map[string]string `json:"chat_history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Question == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "question is required"})
		return
	}
	s.mu.Lock()
	s.ChatHistory = append(s.ChatHistory, body.ChatHistory)
	answer := s.ChatAnswer
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.Dashboard)
}

func (s *Server) examResults(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	res, ok := s.ExamResults[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusOK, []interface{}{})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st, ok := s.Statuses[r.URL.Query().Get("email")]
	s.mu.Unlock()
	if !ok {
		notFound(w, "No application found for this email")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) getExam(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	exam, ok := s.Exams[chi.URLParam(r, "token")]
	s.mu.Unlock()
	if !ok {
		notFound(w, "Exam not found or expired")
		return
	}
	writeJSON(w, http.StatusOK, exam)
}

func (s *Server) submitExam(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	var body struct {
		Answers map[string]string `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Exams[token]; !ok {
		notFound(w, "Exam not found or expired")
		return
	}
	s.Submissions[token] = append(s.Submissions[token], body.Answers)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Exam submitted"})
}

// SubmissionCount returns how many submissions token received.
func (s *Server) SubmissionCount(token string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Submissions[token])
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
