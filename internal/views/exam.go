package views

import (
	"context"
	"sync"
	"time"

	"recruit-portal/internal/common/errors"
	"recruit-portal/internal/models"
	"recruit-portal/pkg/registry"
)

type ExamState string

const (
	ExamLoading    ExamState = "loading"
	ExamError      ExamState = "error"
	ExamReady      ExamState = "ready"
	ExamSubmitting ExamState = "submitting"
	ExamSubmitted  ExamState = "submitted"
)

const (
	MsgExamInvalid   = "This exam link is invalid or has expired. Please contact your recruiter."
	MsgExamSubmitted = "Thank you! Your answers have been submitted. Your recruiter will be in touch soon."
)

var (
	ErrSubmitInFlight   = errors.NewValidationError("exam submission already in progress")
	ErrAlreadySubmitted = errors.NewValidationError("exam already submitted")
	ErrExamNotReady     = errors.NewValidationError("exam is not ready")
)

// ExamSession is the state of one exam page. The token in the link is the
// only credential.
type ExamSession struct {
	svc      *Service
	token    string
	lastUsed time.Time // guarded by svc.mu

	mu      sync.Mutex
	state   ExamState
	exam    *models.Exam
	answers models.ExamAnswers
	err     error
}

// Exam returns the session for token, creating it in the loading state.
// Sessions unused for Config.ExamIdle are dropped.
func (s *Service) Exam(token string) *ExamSession {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.examsSweptAt) >= s.config.ExamIdle/4 {
		s.sweepExamsLocked(now)
	}
	e, ok := s.exams[token]
	if !ok {
		e = &ExamSession{svc: s, token: token, state: ExamLoading, answers: models.ExamAnswers{}}
		s.exams[token] = e
	}
	e.lastUsed = now
	return e
}

func (s *Service) sweepExamsLocked(now time.Time) {
	s.examsSweptAt = now
	for token, e := range s.exams {
		if now.Sub(e.lastUsed) >= s.config.ExamIdle {
			delete(s.exams, token)
		}
	}
}

// forgetExam drops e unless it was already replaced.
func (s *Service) forgetExam(e *ExamSession) {
	s.mu.Lock()
	if s.exams[e.token] == e {
		delete(s.exams, e.token)
	}
	s.mu.Unlock()
}

// Load fetches the exam when the session has not loaded it yet.
func (e *ExamSession) Load(ctx context.Context) ExamView {
	e.mu.Lock()
	if e.state != ExamLoading && e.state != ExamError {
		e.mu.Unlock()
		return e.View()
	}
	e.mu.Unlock()

	params := map[string]string{"token": e.token}
	exam, err := fetch(ctx, e.svc, registry.OpGetExam, params, func(ctx context.Context) (*models.Exam, error) {
		return e.svc.api.GetExam(ctx, e.token)
	})

	e.mu.Lock()
	failed := false
	if e.state == ExamLoading || e.state == ExamError {
		if err != nil {
			e.state, e.err = ExamError, err
			failed = true
			e.svc.logger.WithError(err).Warn("Failed to load exam", nil)
		} else {
			e.state, e.exam, e.err = ExamReady, exam, nil
		}
	}
	e.mu.Unlock()

	// A link that failed to load keeps no state; the next visit starts over.
	if failed {
		e.svc.forgetExam(e)
	}
	return e.View()
}

// Answer records the answer to the question at index.
func (e *ExamSession) Answer(index int, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != ExamReady {
		return ErrExamNotReady
	}
	if index < 0 || index >= len(e.exam.Questions) {
		return errors.NewValidationError("no such question")
	}
	e.answers[models.AnswerKey(index)] = value
	return nil
}

// AnswerAll records answers keyed question_<index>. Unknown keys are
// rejected and nothing is recorded.
func (e *ExamSession) AnswerAll(answers models.ExamAnswers) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != ExamReady {
		return ErrExamNotReady
	}
	valid := make(map[string]bool, len(e.exam.Questions))
	for i := range e.exam.Questions {
		valid[models.AnswerKey(i)] = true
	}
	for k := range answers {
		if !valid[k] {
			return errors.NewValidationError("no such question: " + k)
		}
	}
	for k, v := range answers {
		e.answers[k] = v
	}
	return nil
}

// Submit sends the answers once. It is refused without a request while a
// submission is in flight or after one succeeded. A failed submission
// returns the session to ready with the error kept.
func (e *ExamSession) Submit(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case ExamSubmitting:
		e.mu.Unlock()
		return ErrSubmitInFlight
	case ExamSubmitted:
		e.mu.Unlock()
		return ErrAlreadySubmitted
	case ExamReady:
	default:
		e.mu.Unlock()
		return ErrExamNotReady
	}
	e.state, e.err = ExamSubmitting, nil
	answers := make(models.ExamAnswers, len(e.answers))
	for k, v := range e.answers {
		answers[k] = v
	}
	e.mu.Unlock()

	params := map[string]string{"token": e.token}
	res := mutate(ctx, e.svc, registry.OpSubmitExam, params, func(ctx context.Context) (models.Ack, error) {
		return e.svc.api.SubmitExam(ctx, e.token, answers)
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if !res.OK() {
		e.state, e.err = ExamReady, res.Err
		e.svc.logger.WithError(res.Err).Warn("Exam submission failed", map[string]interface{}{"questions": len(e.exam.Questions)})
		return res.Err
	}
	e.state = ExamSubmitted
	return nil
}

// State reports the current state.
func (e *ExamSession) State() ExamState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

type QuestionView struct {
	Key     string              `json:"key"`
	Number  int                 `json:"number"`
	Text    string              `json:"text"`
	Type    models.QuestionType `json:"type"`
	Options []string            `json:"options,omitempty"`
	Answer  string              `json:"answer"`
}

type ExamView struct {
	State     ExamState      `json:"state"`
	JobTitle  string         `json:"jobTitle,omitempty"`
	Questions []QuestionView `json:"questions,omitempty"`
	Message   string         `json:"message,omitempty"`
	Error     *ErrorView     `json:"error,omitempty"`
}

func (e *ExamSession) View() ExamView {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := ExamView{State: e.state}
	switch e.state {
	case ExamError:
		v.Message, v.Error = MsgExamInvalid, errorView(e.err)
		return v
	case ExamSubmitted:
		v.Message = MsgExamSubmitted
		return v
	case ExamLoading:
		return v
	}

	v.JobTitle = e.exam.JobTitle
	v.Error = errorView(e.err)
	for i, q := range e.exam.Questions {
		key := models.AnswerKey(i)
		v.Questions = append(v.Questions, QuestionView{
			Key:     key,
			Number:  i + 1,
			Text:    q.QuestionText,
			Type:    q.QuestionType,
			Options: q.Options,
			Answer:  e.answers[key],
		})
	}
	return v
}
