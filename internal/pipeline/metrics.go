package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus collectors the driver updates as it runs
// (SPEC_FULL §3: "documents processed, pass duration, extraction item
// counts").
type Metrics struct {
	DocumentsProcessed *prometheus.CounterVec
	DocumentErrors     *prometheus.CounterVec
	StepDuration       *prometheus.HistogramVec
	ExtractedItems     prometheus.Counter
}

// NewMetrics builds and registers the driver's collectors against reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DocumentsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docweave",
			Name:      "documents_processed_total",
			Help:      "Documents that completed a pipeline run, by outcome.",
		}, []string{"outcome"}),
		DocumentErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docweave",
			Name:      "document_errors_total",
			Help:      "Document failures by the step or output that produced them.",
		}, []string{"stage"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docweave",
			Name:      "step_duration_seconds",
			Help:      "Wall time spent applying one pipeline step to one document.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		ExtractedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docweave",
			Name:      "extracted_items_total",
			Help:      "Items rendered by extract_json steps across all documents.",
		}),
	}
	reg.MustRegister(m.DocumentsProcessed, m.DocumentErrors, m.StepDuration, m.ExtractedItems)
	return m
}
