package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName       = "todo-api"
	todosSpanName    = "GET /api/todos"
	todosEventName   = "todo.api.todos.request"
	todosEventDomain = "app"
	todosRoute       = "/api/todos"
	attrPrefix       = "todo.list."
)

// todoRequestMetrics collects timings and result details of a todo listing
// and reports them as a log entry and a span.
type todoRequestMetrics struct {
	logger         *log.Logger
	span           trace.Span
	start          time.Time
	fetchDuration  time.Duration
	encodeDuration time.Duration
	filtered       bool
	page           int
	todosReturned  int
	total          int
	errorStage     string
}

func newTodoRequestMetrics(ctx context.Context, logger *log.Logger) (*todoRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, todosSpanName, trace.WithSpanKind(trace.SpanKindServer))
	return &todoRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
	}, spanCtx
}

func (m *todoRequestMetrics) ObserveFetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fetchDuration = duration
}

func (m *todoRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *todoRequestMetrics) SetFiltered(filtered bool) {
	m.filtered = filtered
}

func (m *todoRequestMetrics) SetResult(page, returned, total int) {
	m.page = page
	m.todosReturned = max(returned, 0)
	m.total = max(total, 0)
}

func (m *todoRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log emits the observability event and ends the span.
func (m *todoRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	severityText, severityNumber := severityForStatus(status, err)

	attrs := map[string]any{
		"http.route":               todosRoute,
		"http.status_code":         status,
		attrPrefix + "total_ms":    durationToMillis(time.Since(m.start)),
		attrPrefix + "filtered":    m.filtered,
		attrPrefix + "page":        m.page,
		attrPrefix + "returned":    m.todosReturned,
		attrPrefix + "total_todos": m.total,
	}
	if m.fetchDuration > 0 {
		attrs[attrPrefix+"fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.encodeDuration > 0 {
		attrs[attrPrefix+"encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		attrs[attrPrefix+"error_stage"] = m.errorStage
	}
	if err != nil {
		attrs["error.message"] = err.Error()
	}

	fields := log.Fields{
		"event.name":      todosEventName,
		"event.domain":    todosEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      attrs,
	}

	if m.span != nil {
		sc := m.span.SpanContext()
		if sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
		if sc.HasSpanID() {
			fields["span_id"] = sc.SpanID().String()
		}

		kvs := toAttributes(attrs)
		m.span.SetAttributes(kvs...)
		m.span.AddEvent("observability.event", trace.WithAttributes(append(kvs,
			attribute.String("event.name", todosEventName),
			attribute.String("event.domain", todosEventDomain),
			attribute.String("severity_text", severityText),
			attribute.Int("severity_number", severityNumber),
		)...))
		if severityNumber >= 17 {
			desc := http.StatusText(status)
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	entry := m.logger.WithFields(fields)
	switch severityText {
	case "ERROR":
		entry.Error("observability.event")
	case "WARN":
		entry.Warn("observability.event")
	default:
		entry.Info("observability.event")
	}
}

// severityForStatus maps a response to OpenTelemetry log severity.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= 500 || (status == 0 && err != nil):
		return "ERROR", 17
	case status >= 400:
		return "WARN", 13
	}
	return "INFO", 9
}

func toAttributes(attrs map[string]any) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			kvs = append(kvs, attribute.String(k, val))
		case bool:
			kvs = append(kvs, attribute.Bool(k, val))
		case int:
			kvs = append(kvs, attribute.Int(k, val))
		case float64:
			kvs = append(kvs, attribute.Float64(k, val))
		}
	}
	return kvs
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
