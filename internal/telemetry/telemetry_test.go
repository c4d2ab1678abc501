package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/generator"
	"github.com/alexanderramin/cadence/internal/service"
)

func newTestProviders(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider, *sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})
	return rec, tp, reader, mp
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestUseCaseObserver_RecordsSpansAndMetrics(t *testing.T) {
	rec, tp, reader, mp := newTestProviders(t)
	obs, err := NewUseCaseObserver(tp, mp)
	require.NoError(t, err)

	start := time.Date(2023, 5, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	obs.ObserveUseCase(ctx, service.UseCaseEvent{
		Name:      "create-recurring-goal",
		StartedAt: start,
		Duration:  40 * time.Millisecond,
		Success:   true,
		Fields:    map[string]any{"created": 13, "goal_id": "g1"},
	})
	obs.ObserveUseCase(ctx, service.UseCaseEvent{
		Name:      "update-rule",
		StartedAt: start,
		Duration:  5 * time.Millisecond,
		Err:       domain.ErrGoalNotFound,
	})

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "service.create-recurring-goal", spans[0].Name())
	assert.Equal(t, start, spans[0].StartTime())
	assert.Equal(t, start.Add(40*time.Millisecond), spans[0].EndTime())
	assert.Contains(t, spans[0].Attributes(), attribute.Int("created", 13))
	assert.Contains(t, spans[0].Attributes(), attribute.String("goal_id", "g1"))
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	metrics := collect(t, reader)
	calls, ok := metrics["cadence.use_case.calls"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range calls.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)

	errs, ok := metrics["cadence.use_case.errors"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, errs.DataPoints, 1)
	assert.Equal(t, int64(1), errs.DataPoints[0].Value)

	_, ok = metrics["cadence.use_case.duration"].Data.(metricdata.Histogram[float64])
	assert.True(t, ok)
}

func TestRegisterCacheMetrics(t *testing.T) {
	_, _, reader, mp := newTestProviders(t)

	cache := generator.NewCache(generator.DefaultCacheConfig)
	exp := generator.NewExpander(generator.DefaultLimits(), cache)
	rule := domain.RecurrenceRule{Frequency: domain.FreqDaily, Interval: 1, Anchor: calendar.MustParse("2023-05-01")}
	window := calendar.NewRange(calendar.MustParse("2023-05-01"), calendar.MustParse("2023-05-31"))
	for range 3 {
		_, err := exp.Expand(context.Background(), rule, window)
		require.NoError(t, err)
	}

	reg, err := RegisterCacheMetrics(mp, cache)
	require.NoError(t, err)
	defer reg.Unregister()

	metrics := collect(t, reader)
	entries, ok := metrics["cadence.expansion_cache.entries"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, entries.DataPoints, 1)
	assert.Equal(t, int64(1), entries.DataPoints[0].Value)

	hits, ok := metrics["cadence.expansion_cache.hits"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(2), hits.DataPoints[0].Value)
}

func TestInit_DisabledInstallsNoop(t *testing.T) {
	p, err := Init(context.Background(), Settings{})
	require.NoError(t, err)
	_, span := p.Tracer().Start(context.Background(), "x")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_StdoutExporters(t *testing.T) {
	var buf bytes.Buffer
	p, err := Init(context.Background(), Settings{Enabled: true, Stdout: true, Writer: &buf, Version: "test"})
	require.NoError(t, err)

	_, span := p.Tracer().Start(context.Background(), "extend-all")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "extend-all")
}

func TestFieldAttr(t *testing.T) {
	assert.Equal(t, attribute.String("window", "[2023-05-01, 2023-05-31]"),
		fieldAttr("window", calendar.NewRange(calendar.MustParse("2023-05-01"), calendar.MustParse("2023-05-31"))))
	assert.Equal(t, attribute.Bool("noop", true), fieldAttr("noop", true))
	assert.Equal(t, attribute.Int64("rows", 12), fieldAttr("rows", int64(12)))
	assert.Equal(t, attribute.String("n", "[1 2]"), fieldAttr("n", []int{1, 2}))
}
