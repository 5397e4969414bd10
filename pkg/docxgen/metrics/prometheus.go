// Package metrics provides Prometheus metrics for document generation
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Generation metrics
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docxgen_generations_total",
			Help: "Total number of document generations",
		},
		[]string{"template", "status"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docxgen_generation_duration_seconds",
			Help:    "Time taken to generate a document",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"template"},
	)

	OutputBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docxgen_output_bytes_total",
			Help: "Total bytes of generated documents",
		},
		[]string{"template"},
	)

	// Content metrics
	PartsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docxgen_parts_processed_total",
			Help: "Total number of template parts resolved",
		},
		[]string{"template", "kind"},
	)

	RowsExpanded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docxgen_rows_expanded_total",
			Help: "Total number of table rows produced by loops",
		},
		[]string{"template"},
	)

	ImagesEmbedded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docxgen_images_embedded_total",
			Help: "Total number of images embedded",
		},
		[]string{"template"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docxgen_errors_total",
			Help: "Total number of generation errors",
		},
		[]string{"template", "type"},
	)
)

// Recorder provides a convenient interface for recording metrics of one template
type Recorder struct {
	template string
}

// NewRecorder creates a new metrics recorder for a template
func NewRecorder(template string) *Recorder {
	return &Recorder{template: template}
}

// RecordGeneration records the outcome of a generation
func (m *Recorder) RecordGeneration(status string, outputBytes int, duration time.Duration) {
	GenerationsTotal.WithLabelValues(m.template, status).Inc()
	GenerationDuration.WithLabelValues(m.template).Observe(duration.Seconds())
	if outputBytes > 0 {
		OutputBytes.WithLabelValues(m.template).Add(float64(outputBytes))
	}
}

// RecordPart records a resolved template part
func (m *Recorder) RecordPart(kind string) {
	PartsProcessed.WithLabelValues(m.template, kind).Inc()
}

// RecordContent records rows and images produced by one generation
func (m *Recorder) RecordContent(rows, images int) {
	if rows > 0 {
		RowsExpanded.WithLabelValues(m.template).Add(float64(rows))
	}
	if images > 0 {
		ImagesEmbedded.WithLabelValues(m.template).Add(float64(images))
	}
}

// RecordError records an error
func (m *Recorder) RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(m.template, errorType).Inc()
}

// Timer is a helper for measuring duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
