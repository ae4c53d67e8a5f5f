// Package views builds the page view models of the HR dashboard, the
// candidate portal and the exam page on top of the query cache.
package views

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"recruit-portal/internal/backend"
	"recruit-portal/internal/common/errors"
	"recruit-portal/internal/common/logger"
	"recruit-portal/internal/query"
	"recruit-portal/pkg/registry"
)

// User-facing messages.
const (
	MsgBackendTimeout    = "Backend server not responding. Please try again."
	MsgDashboardFailed   = "Failed to load dashboard data. Please check your connection."
	MsgJobsFailed        = "Failed to load jobs. Please check your connection."
	MsgNoPendingApproval = "No pending approvals at the moment"
	MsgEmptyShortlist    = "No candidates in shortlist"
	MsgNoJobs            = "No jobs available at the moment"
)

// dateTimeLayout renders times like "Jan 2, 2025, 3:04 PM".
const (
	dateTimeLayout = "Jan 2, 2006, 3:04 PM"
	dateLayout     = "1/2/2006"
)

type Config struct {
	// Location is the zone interview and posting times are rendered in.
	Location *time.Location

	// ExamIdle is how long an exam page nobody opens keeps its state.
	ExamIdle time.Duration
}

const defaultExamIdle = 30 * time.Minute

func DefaultConfig() Config {
	return Config{Location: time.Local, ExamIdle: defaultExamIdle}
}

// Service renders view models. It holds the ephemeral per-session state of
// the chat and exam views; everything else lives in the query cache.
type Service struct {
	api    *backend.Client
	cache  *query.Cache
	config Config
	logger logger.Logger

	mu           sync.Mutex
	chats        map[string]*ChatSession
	exams        map[string]*ExamSession
	examsSweptAt time.Time
	now          func() time.Time
}

func New(api *backend.Client, cache *query.Cache, cfg Config, log logger.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.ExamIdle <= 0 {
		cfg.ExamIdle = defaultExamIdle
	}
	return &Service{
		api:    api,
		cache:  cache,
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"component": "views"}),
		chats:  make(map[string]*ChatSession),
		exams:  make(map[string]*ExamSession),
		now:    time.Now,
	}
}

// ErrorView is the rendered form of a failed query or mutation.
type ErrorView struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

func errorView(err error) *ErrorView {
	if err == nil {
		return nil
	}
	se := errors.Normalize(err)
	return &ErrorView{
		Code:      string(se.Code),
		Message:   se.Message,
		Details:   se.Details,
		Retryable: se.Retryable,
	}
}

// Panel is one independently loaded region of a page.
type Panel[T any] struct {
	Status query.Status `json:"status"`
	Data   T            `json:"data"`
	Error  *ErrorView   `json:"error,omitempty"`
}

func panel[T any](v T, err error) Panel[T] {
	if err != nil {
		return Panel[T]{Status: query.StatusError, Error: errorView(err)}
	}
	return Panel[T]{Status: query.StatusSuccess, Data: v}
}

// ActionResult is the outcome of a form submission, shaped like a toast.
type ActionResult struct {
	OK      bool        `json:"ok"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
	Error   *ErrorView  `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`

	err error
}

// Err returns the failure behind a result, nil on success.
func (r ActionResult) Err() error {
	return r.err
}

func succeeded(title, message string, data interface{}) ActionResult {
	return ActionResult{OK: true, Title: title, Message: message, Data: data}
}

func failed(message string, err error) ActionResult {
	return ActionResult{Title: "Error", Message: message, Error: errorView(err), err: err}
}

// fetch reads op through the cache with the catalog's key and retry policy.
func fetch[T any](ctx context.Context, s *Service, op string, params map[string]string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	ep := s.api.Catalog().MustLookup(op)
	key, err := registry.Expand(ep.CacheKey, params)
	if err != nil {
		return zero, errors.NewValidationError(err.Error())
	}
	return query.Query(ctx, s.cache, key, query.Options{Retry: ep.Retries}, fn)
}

// mutate runs op and invalidates the catalog's keys for it on success.
func mutate[T any](ctx context.Context, s *Service, op string, params map[string]string, fn func(context.Context) (T, error)) query.Result[T] {
	keys, err := s.api.Catalog().MustLookup(op).InvalidationKeys(params)
	if err != nil {
		return query.Result[T]{Err: errors.NewValidationError(err.Error())}
	}
	return query.Mutate(ctx, s.cache, fn, keys...)
}

// loadFailure picks the message for a failed page load.
func loadFailure(err error, otherwise string) string {
	if errors.IsTimeout(err) {
		return MsgBackendTimeout
	}
	return otherwise
}

func (s *Service) formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(s.config.Location).Format(dateTimeLayout)
}

func (s *Service) formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(s.config.Location).Format(dateLayout)
}

func formatID(id int64) string {
	return fmt.Sprintf("%d", id)
}

func formatPercent(fit float64) string {
	return fmt.Sprintf("%.1f%%", fit*100)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
