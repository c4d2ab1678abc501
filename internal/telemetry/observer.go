package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/alexanderramin/cadence/internal/generator"
	"github.com/alexanderramin/cadence/internal/service"
)

// UseCaseObserver turns service use-case events into spans and
// cadence.use_case.* metrics.
type UseCaseObserver struct {
	tracer trace.Tracer
	calls  metric.Int64Counter
	errs   metric.Int64Counter
	dur    metric.Float64Histogram
}

var _ service.UseCaseObserver = (*UseCaseObserver)(nil)

func NewUseCaseObserver(tp trace.TracerProvider, mp metric.MeterProvider) (*UseCaseObserver, error) {
	m := mp.Meter(instrumentationScope)
	calls, err := m.Int64Counter("cadence.use_case.calls",
		metric.WithDescription("Service use cases executed"),
	)
	if err != nil {
		return nil, err
	}
	errs, err := m.Int64Counter("cadence.use_case.errors",
		metric.WithDescription("Service use cases that returned an error"),
	)
	if err != nil {
		return nil, err
	}
	dur, err := m.Float64Histogram("cadence.use_case.duration",
		metric.WithDescription("Service use case duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &UseCaseObserver{
		tracer: tp.Tracer(instrumentationScope),
		calls:  calls,
		errs:   errs,
		dur:    dur,
	}, nil
}

// ObserveUseCase records the event after the fact: the span is back-dated to
// the event's start and ended at start+duration.
func (o *UseCaseObserver) ObserveUseCase(ctx context.Context, event service.UseCaseEvent) {
	name := attribute.String("use_case", event.Name)
	attrs := make([]attribute.KeyValue, 0, len(event.Fields)+1)
	attrs = append(attrs, name)
	for k, v := range event.Fields {
		attrs = append(attrs, fieldAttr(k, v))
	}

	_, span := o.tracer.Start(ctx, "service."+event.Name,
		trace.WithTimestamp(event.StartedAt),
		trace.WithAttributes(attrs...),
	)
	if event.Err != nil {
		span.RecordError(event.Err)
		span.SetStatus(codes.Error, event.Err.Error())
		o.errs.Add(ctx, 1, metric.WithAttributes(name))
	}
	span.End(trace.WithTimestamp(event.StartedAt.Add(event.Duration)))

	o.calls.Add(ctx, 1, metric.WithAttributes(name, attribute.Bool("success", event.Success)))
	o.dur.Record(ctx, float64(event.Duration.Microseconds())/1000, metric.WithAttributes(name))
}

func fieldAttr(k string, v any) attribute.KeyValue {
	switch x := v.(type) {
	case string:
		return attribute.String(k, x)
	case bool:
		return attribute.Bool(k, x)
	case int:
		return attribute.Int(k, x)
	case int64:
		return attribute.Int64(k, x)
	case float64:
		return attribute.Float64(k, x)
	case fmt.Stringer:
		return attribute.String(k, x.String())
	default:
		return attribute.String(k, fmt.Sprint(x))
	}
}

// RegisterCacheMetrics exposes the expansion cache counters as observable
// gauges. The returned registration stops the callbacks when unregistered.
func RegisterCacheMetrics(mp metric.MeterProvider, cache *generator.Cache) (metric.Registration, error) {
	m := mp.Meter(instrumentationScope)
	entries, err := m.Int64ObservableGauge("cadence.expansion_cache.entries",
		metric.WithDescription("Expansions currently cached"),
	)
	if err != nil {
		return nil, err
	}
	hits, err := m.Int64ObservableCounter("cadence.expansion_cache.hits",
		metric.WithDescription("Expansion cache hits"),
	)
	if err != nil {
		return nil, err
	}
	misses, err := m.Int64ObservableCounter("cadence.expansion_cache.misses",
		metric.WithDescription("Expansion cache misses"),
	)
	if err != nil {
		return nil, err
	}
	return m.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		st := cache.Stats()
		obs.ObserveInt64(entries, int64(st.Entries))
		obs.ObserveInt64(hits, int64(st.Hits))
		obs.ObserveInt64(misses, int64(st.Misses))
		return nil
	}, entries, hits, misses)
}
