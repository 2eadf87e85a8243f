package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katlego-io/ussdflow/pkg/domain"
	"github.com/katlego-io/ussdflow/pkg/observability"
)

func gatherFamilies(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}
	return byName
}

func TestHooksFeedCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	hooks := observability.NewMetrics(reg).Hooks()
	ctx := context.Background()

	hooks.OnSessionStart(ctx, &domain.SessionEvent{Type: domain.EventSessionStarted, FlowID: "banking"})
	hooks.OnStep(ctx, &domain.SessionEvent{Type: domain.EventStepProcessed, FlowID: "banking", Duration: 40 * time.Millisecond})
	hooks.OnStep(ctx, &domain.SessionEvent{Type: domain.EventInvalidSelection, FlowID: "banking", Duration: 5 * time.Millisecond})
	hooks.OnSessionEnd(ctx, &domain.SessionEvent{Type: domain.EventSessionExpired, FlowID: "banking"})

	byName := gatherFamilies(t, reg)

	assert.Equal(t, float64(1), byName["ussdflow_sessions_started_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, float64(1), byName["ussdflow_steps_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, float64(1), byName["ussdflow_invalid_selections_total"].GetMetric()[0].GetCounter().GetValue())

	ended := byName["ussdflow_sessions_ended_total"].GetMetric()[0]
	assert.Equal(t, float64(1), ended.GetCounter().GetValue())
	labels := map[string]string{}
	for _, l := range ended.GetLabel() {
		labels[l.GetName()] = l.GetValue()
	}
	assert.Equal(t, "expired", labels["status"])

	// Every turn, accepted or re-prompted, lands in the latency histogram.
	hist := byName["ussdflow_step_duration_seconds"].GetMetric()[0].GetHistogram()
	require.NotNil(t, hist)
	assert.Equal(t, uint64(2), hist.GetSampleCount())
	assert.InDelta(t, 0.045, hist.GetSampleSum(), 1e-9)
}
