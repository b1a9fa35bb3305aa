package telemetry

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all custom metrics for the service
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal metric.Int64Counter
	HTTPDurationMs    metric.Float64Histogram

	// Ward metrics
	BedOperationsTotal metric.Int64Counter
	AdmissionsTotal    metric.Int64Counter
	DischargesTotal    metric.Int64Counter

	// Alert metrics
	CriticalAlertsTotal    metric.Int64Counter
	AlertAcknowledgedTotal metric.Int64Counter

	// Auth metrics
	AuthFailuresTotal       metric.Int64Counter
	PermissionCheckDuration metric.Float64Histogram
}

// InitMetrics initializes all custom metrics against the global meter
// provider.
func InitMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter("github.com/hdu-care/hdu-service"))
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counters := []struct {
		dst        *metric.Int64Counter
		name, desc string
		unit       string
	}{
		{&m.HTTPRequestsTotal, "http_server_requests_total", "Total number of HTTP requests", "{request}"},
		{&m.BedOperationsTotal, "hdu_bed_operations_total", "Bed assign and release attempts", "{operation}"},
		{&m.AdmissionsTotal, "hdu_admissions_total", "Patients admitted through bed assignment", "{admission}"},
		{&m.DischargesTotal, "hdu_discharges_total", "Patients discharged", "{discharge}"},
		{&m.CriticalAlertsTotal, "hdu_critical_alerts_total", "Critical vitals alerts raised", "{alert}"},
		{&m.AlertAcknowledgedTotal, "hdu_alerts_acknowledged_total", "Critical vitals alerts acknowledged", "{alert}"},
		{&m.AuthFailuresTotal, "auth_failures_total", "Total number of authentication failures", "{failure}"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit)); err != nil {
			return nil, err
		}
	}

	// HTTP duration histogram
	m.HTTPDurationMs, err = meter.Float64Histogram(
		"http_server_duration_milliseconds",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	// Permission check duration histogram
	m.PermissionCheckDuration, err = meter.Float64Histogram(
		"permission_check_duration_ms",
		metric.WithDescription("Permission check duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("custom metrics initialized")
	return m, nil
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationMs float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http_method", method),
		attribute.String("http_route", route),
		attribute.Int("http_status_code", statusCode),
	}

	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.HTTPDurationMs.Record(ctx, durationMs, metric.WithAttributes(attrs...))
}

// RecordBedOperation counts an assign or release attempt.
func (m *Metrics) RecordBedOperation(ctx context.Context, operation string, success bool) {
	m.BedOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	))
}

func (m *Metrics) RecordAdmission(ctx context.Context, urgent bool) {
	m.AdmissionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("urgent", urgent)))
}

func (m *Metrics) RecordDischarge(ctx context.Context) {
	m.DischargesTotal.Add(ctx, 1)
}

// RecordCriticalAlert counts an alert; source is "record" or "scan".
func (m *Metrics) RecordCriticalAlert(ctx context.Context, source string) {
	m.CriticalAlertsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (m *Metrics) RecordAlertAcknowledged(ctx context.Context) {
	m.AlertAcknowledgedTotal.Add(ctx, 1)
}

// RecordAuthFailure records an authentication failure metric
func (m *Metrics) RecordAuthFailure(ctx context.Context, reason string) {
	m.AuthFailuresTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordPermissionCheck records a permission check duration metric
func (m *Metrics) RecordPermissionCheck(ctx context.Context, permission string, durationMs float64, allowed bool) {
	m.PermissionCheckDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("permission", permission),
		attribute.Bool("allowed", allowed),
	))
}
