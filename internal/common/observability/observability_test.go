package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-portal/internal/common/logger"
)

func TestNew_RecordsIntoRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := New(Config{ServiceName: "portal-test", Registerer: reg}, logger.NewTestLogger(t))
	defer func() { assert.NoError(t, o.Shutdown(context.Background())) }()

	ctx := context.Background()
	o.RecordQuerySettled(ctx, "jobs", "success")
	o.RecordBackendCall(ctx, "listJobs", 40*time.Millisecond, "success")

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "portal_queries_settled_total")
	assert.Contains(t, names, "portal_backend_duration_milliseconds")
	for _, name := range names {
		assert.NotContains(t, name, ".", "metric names must be scrapeable by classic Prometheus")
	}
}

func TestStartSpan_WithoutExporter(t *testing.T) {
	o := New(Config{Registerer: prometheus.NewRegistry()}, logger.NewNoOpLogger())

	ctx, span := o.StartSpan(context.Background(), "backend GET listJobs")
	require.NotNil(t, span)
	assert.NotNil(t, ctx)
	span.End()

	assert.NoError(t, o.Shutdown(context.Background()))
}
