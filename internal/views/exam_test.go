package views

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-portal/internal/backend/backendtest"
	"recruit-portal/internal/models"
	"recruit-portal/pkg/registry"
)

func seedExam(srv *backendtest.Server) {
	srv.AddExam("tok-1", "Engineer",
		map[string]interface{}{
			"question_text": "Pick one",
			"question_type": "multiple-choice",
			"options":       []string{"A", "B"},
		},
		map[string]interface{}{
			"question_text": "Explain goroutines",
			"question_type": "short-answer",
		},
	)
}

// Scenario C: a second submit while the first is in flight issues no request.
func TestExam_SubmitIsOneShot(t *testing.T) {
	s, srv := newTestService(t, time.UTC)
	seedExam(srv)
	ctx := context.Background()

	exam := s.Exam("tok-1")
	assert.Same(t, exam, s.Exam("tok-1"))
	assert.Equal(t, ExamLoading, exam.State())

	v := exam.Load(ctx)
	require.Equal(t, ExamReady, v.State)
	assert.Equal(t, "Engineer", v.JobTitle)
	require.Len(t, v.Questions, 2)
	assert.Equal(t, "question_0", v.Questions[0].Key)
	assert.Equal(t, []string{"A", "B"}, v.Questions[0].Options)
	assert.Equal(t, models.QuestionShortAnswer, v.Questions[1].Type)

	require.NoError(t, exam.Answer(0, "B"))
	require.NoError(t, exam.AnswerAll(models.ExamAnswers{"question_1": "cheap threads"}))
	assert.Error(t, exam.Answer(2, "nope"))
	assert.Error(t, exam.AnswerAll(models.ExamAnswers{"question_9": "nope"}))

	release := srv.Hold(registry.OpSubmitExam)
	done := make(chan error, 1)
	go func() { done <- exam.Submit(ctx) }()

	require.Eventually(t, func() bool { return srv.Calls(registry.OpSubmitExam) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, ExamSubmitting, exam.State())
	assert.Equal(t, ErrSubmitInFlight, exam.Submit(ctx))
	assert.Equal(t, ErrExamNotReady, exam.Answer(0, "A"))
	assert.Equal(t, 1, srv.Calls(registry.OpSubmitExam))

	release()
	require.NoError(t, <-done)
	assert.Equal(t, ExamSubmitted, exam.State())
	assert.Equal(t, MsgExamSubmitted, exam.View().Message)

	assert.Equal(t, ErrAlreadySubmitted, exam.Submit(ctx))
	assert.Equal(t, 1, srv.Calls(registry.OpSubmitExam))
	require.Equal(t, 1, srv.SubmissionCount("tok-1"))
	assert.Equal(t, map[string]string{"question_0": "B", "question_1": "cheap threads"}, srv.Submissions["tok-1"][0])
}

func TestExam_InvalidLink(t *testing.T) {
	s, _ := newTestService(t, time.UTC)

	exam := s.Exam("missing")
	v := exam.Load(context.Background())
	assert.Equal(t, ExamError, v.State)
	assert.Equal(t, MsgExamInvalid, v.Message)
	require.NotNil(t, v.Error)
	assert.Equal(t, "Exam not found or expired", v.Error.Details)
	assert.Equal(t, ErrExamNotReady, exam.Submit(context.Background()))
}

func TestExam_InvalidLinksKeepNoState(t *testing.T) {
	s, _ := newTestService(t, time.UTC)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		v := s.Exam(fmt.Sprintf("bogus-%d", i)).Load(ctx)
		require.Equal(t, ExamError, v.State)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.exams)
}

func TestExam_IdleSessionsAreDropped(t *testing.T) {
	s, srv := newTestService(t, time.UTC)
	seedExam(srv)
	ctx := context.Background()
	now := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	first := s.Exam("tok-1")
	first.Load(ctx)
	require.NoError(t, first.Submit(ctx))

	now = now.Add(10 * time.Minute)
	assert.Same(t, first, s.Exam("tok-1"), "a recent session is kept")

	now = now.Add(defaultExamIdle)
	s.Exam("tok-2")
	s.mu.Lock()
	_, kept := s.exams["tok-1"]
	s.mu.Unlock()
	assert.False(t, kept)
}

func TestExam_FailedSubmitReturnsToReady(t *testing.T) {
	s, srv := newTestService(t, time.UTC)
	seedExam(srv)
	ctx := context.Background()
	exam := s.Exam("tok-1")
	exam.Load(ctx)

	srv.Fail(registry.OpSubmitExam, http.StatusInternalServerError, `{"detail":"grader offline"}`)
	err := exam.Submit(ctx)
	require.Error(t, err)
	assert.Equal(t, ExamReady, exam.State())
	v := exam.View()
	require.NotNil(t, v.Error)
	assert.Equal(t, "Failed to submit exam", v.Error.Message)
	assert.Len(t, v.Questions, 2)

	srv.Reset(registry.OpSubmitExam)
	require.NoError(t, exam.Submit(ctx))
	assert.Equal(t, ExamSubmitted, exam.State())
	assert.Equal(t, 2, srv.Calls(registry.OpSubmitExam))
}
