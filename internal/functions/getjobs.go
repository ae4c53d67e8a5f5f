// Package functions holds the portal's standalone server functions.
package functions

import (
	"context"
	"encoding/json"
	"net/http"

	"recruit-portal/internal/common/errors"
	"recruit-portal/internal/common/logger"
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type",
}

// JobSource returns the backend job list body.
type JobSource interface {
	ListJobsRaw(ctx context.Context) (json.RawMessage, error)
}

// GetJobs proxies the backend job list to browsers on any origin.
type GetJobs struct {
	jobs   JobSource
	logger logger.Logger
}

func NewGetJobs(jobs JobSource, log logger.Logger) *GetJobs {
	return &GetJobs{
		jobs:   jobs,
		logger: log.WithFields(map[string]interface{}{"function": "get-jobs"}),
	}
}

func (g *GetJobs) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for k, v := range corsHeaders {
		w.Header().Set(k, v)
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	g.logger.Info("Fetching jobs from backend", nil)
	body, err := g.jobs.ListJobsRaw(r.Context())
	if err != nil {
		msg := errors.Normalize(err).Message
		g.logger.WithError(err).Error("Error fetching jobs", nil)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
		return
	}

	var count []json.RawMessage
	if json.Unmarshal(body, &count) == nil {
		g.logger.Info("Fetched jobs", map[string]interface{}{"count": len(count)})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
