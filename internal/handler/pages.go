package handler

import (
	"encoding/json"
	stderrors "errors"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"recruit-portal/internal/common/errors"
	"recruit-portal/internal/models"
	"recruit-portal/internal/router"
	"recruit-portal/internal/session"
	"recruit-portal/internal/views"
)

type authView struct {
	Status   session.Status   `json:"status"`
	Identity *models.Identity `json:"identity,omitempty"`
}

// pageBody is the envelope of every page response.
type pageBody struct {
	Page router.Page `json:"page"`
	Auth authView    `json:"auth"`
	Data interface{} `json:"data,omitempty"`
}

// gate applies the route table: render, wait for auth, redirect, or 404.
func (h *Handler) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := router.Resolve(r.URL.Path, AuthStateFrom(r.Context()))
		switch d.Outcome {
		case router.Render:
			next.ServeHTTP(w, r)
		case router.Pending:
			h.page(w, r, http.StatusAccepted, d.Page, nil)
		case router.Redirect:
			http.Redirect(w, r, d.Location, http.StatusSeeOther)
		default:
			h.notFound(w, r)
		}
	})
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request, status int, page router.Page, data interface{}) {
	state := AuthStateFrom(r.Context())
	writeJSON(w, status, pageBody{
		Page: page,
		Auth: authView{Status: state.Status, Identity: state.Identity},
		Data: data,
	})
}

func (h *Handler) ok(w http.ResponseWriter, r *http.Request, page router.Page, data interface{}) {
	h.page(w, r, http.StatusOK, page, data)
}

// action writes a form result with the status of its failure.
func (h *Handler) action(w http.ResponseWriter, res views.ActionResult) {
	status := http.StatusOK
	if !res.OK {
		status = errors.HTTPStatus(res.Err())
	}
	writeJSON(w, status, res)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusNotFound, router.PageNotFound, map[string]string{"message": "Oops! Page not found"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	data := map[string]string{}
	if role, ok := AuthStateFrom(r.Context()).Role(); ok {
		data["home"] = router.HomeFor(role)
	}
	h.ok(w, r, router.PageIndex, data)
}

// === HR ===

func (h *Handler) hrOverview(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("retry") {
		h.ok(w, r, router.PageHR, h.views.RetryOverview(r.Context()))
		return
	}
	h.ok(w, r, router.PageHR, h.views.Overview(r.Context()))
}

func (h *Handler) hrApprovals(w http.ResponseWriter, r *http.Request) {
	h.ok(w, r, router.PageHR, h.views.PendingApprovals(r.Context()))
}

func (h *Handler) hrApprove(w http.ResponseWriter, r *http.Request) {
	h.action(w, h.views.Approve(r.Context(), chi.URLParam(r, "interviewId")))
}

func (h *Handler) hrShortlists(w http.ResponseWriter, r *http.Request) {
	h.ok(w, r, router.PageHR, h.views.Shortlist(r.Context(), r.URL.Query().Get("job")))
}

func (h *Handler) hrJobs(w http.ResponseWriter, r *http.Request) {
	h.ok(w, r, router.PageHR, h.views.Management(r.Context()))
}

func (h *Handler) hrCreateJob(w http.ResponseWriter, r *http.Request) {
	h.action(w, h.views.CreateJob(r.Context(), r.FormValue("title"), r.FormValue("description")))
}

func (h *Handler) hrCandidates(w http.ResponseWriter, r *http.Request) {
	h.ok(w, r, router.PageHR, h.views.Candidates(r.Context(), chi.URLParam(r, "jobId")))
}

func (h *Handler) hrUploadCandidate(w http.ResponseWriter, r *http.Request) {
	resume, done, err := h.resume(w, r)
	if err != nil {
		h.errors.WriteError(w, r, err)
		return
	}
	defer done()
	h.action(w, h.views.UploadCandidate(r.Context(), chi.URLParam(r, "jobId"), r.FormValue("name"), r.FormValue("email"), resume))
}

func (h *Handler) hrReject(w http.ResponseWriter, r *http.Request) {
	res := h.views.Reject(r.Context(), chi.URLParam(r, "jobId"), chi.URLParam(r, "candidateId"), r.FormValue("comment"))
	h.action(w, res)
}

func (h *Handler) hrAnalysis(w http.ResponseWriter, r *http.Request) {
	h.ok(w, r, router.PageHR, h.views.CandidateAnalysis(r.Context(), chi.URLParam(r, "candidateId")))
}

func (h *Handler) hrExamResults(w http.ResponseWriter, r *http.Request) {
	h.ok(w, r, router.PageHR, h.views.ExamResults(r.Context(), chi.URLParam(r, "candidateId")))
}

func (h *Handler) hrAnalytics(w http.ResponseWriter, r *http.Request) {
	h.ok(w, r, router.PageHR, map[string]interface{}{
		"dashboard": h.views.DashboardMetrics(r.Context()),
		"chat":      h.views.Chat(sessionIDFrom(r.Context())).View(),
	})
}

func (h *Handler) hrAsk(w http.ResponseWriter, r *http.Request) {
	chat := h.views.Chat(sessionIDFrom(r.Context()))
	v, err := h.views.Ask(r.Context(), chat, r.FormValue("question"))
	if err != nil {
		h.errors.WriteError(w, r, err)
		return
	}
	h.ok(w, r, router.PageHR, v)
}

// === Candidate ===

func (h *Handler) candidateHome(w http.ResponseWriter, r *http.Request) {
	h.ok(w, r, router.PageCandidate, map[string]interface{}{
		"profile": views.Profile(identityFrom(r.Context())),
		"jobs":    h.views.Jobs(r.Context()),
	})
}

func (h *Handler) candidateJobs(w http.ResponseWriter, r *http.Request) {
	h.ok(w, r, router.PageCandidate, h.views.Jobs(r.Context()))
}

func (h *Handler) candidateApply(w http.ResponseWriter, r *http.Request) {
	resume, done, err := h.resume(w, r)
	if err != nil {
		h.errors.WriteError(w, r, err)
		return
	}
	defer done()
	h.action(w, h.views.Apply(r.Context(), identityFrom(r.Context()), chi.URLParam(r, "jobId"), resume))
}

func (h *Handler) candidateStatus(w http.ResponseWriter, r *http.Request) {
	h.ok(w, r, router.PageCandidate, h.views.Status(r.Context(), identityFrom(r.Context()).Email))
}

// status is the public application lookup by email.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.views.Status(r.Context(), r.URL.Query().Get("email")))
}

// === Exam ===

func (h *Handler) examPage(w http.ResponseWriter, r *http.Request) {
	exam := h.views.Exam(chi.URLParam(r, "token"))
	h.ok(w, r, router.PageExam, exam.Load(r.Context()))
}

func (h *Handler) examSubmit(w http.ResponseWriter, r *http.Request) {
	exam := h.views.Exam(chi.URLParam(r, "token"))
	exam.Load(r.Context())

	answers, err := examAnswers(r)
	if err != nil {
		h.errors.WriteError(w, r, err)
		return
	}
	if len(answers) > 0 && exam.State() == views.ExamReady {
		if err := exam.AnswerAll(answers); err != nil {
			h.errors.WriteError(w, r, err)
			return
		}
	}
	if err := exam.Submit(r.Context()); err != nil {
		h.errors.WriteError(w, r, err)
		return
	}
	h.ok(w, r, router.PageExam, exam.View())
}

// examAnswers reads {"answers": {...}} or question_<i> form fields.
func examAnswers(r *http.Request) (models.ExamAnswers, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body models.ExamSubmission
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, errors.NewValidationError("invalid answers body")
		}
		return body.Answers, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, errors.NewValidationError("invalid form body")
	}
	answers := models.ExamAnswers{}
	for k, v := range r.PostForm {
		if strings.HasPrefix(k, "question_") && len(v) > 0 {
			answers[k] = v[0]
		}
	}
	return answers, nil
}

// resume reads the optional "resume" file of a multipart form. A missing
// file is left for the view to report.
func (h *Handler) resume(w http.ResponseWriter, r *http.Request) (*views.Resume, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.config.MaxUploadBytes); err != nil && !stderrors.Is(err, http.ErrNotMultipart) {
		return nil, nil, errors.NewValidationError("invalid upload: " + err.Error())
	}
	file, header, err := r.FormFile("resume")
	if err != nil {
		return nil, func() {}, nil
	}
	return &views.Resume{FileName: header.Filename, Content: file}, func() { _ = file.Close() }, nil
}
