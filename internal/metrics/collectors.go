package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ModelStats describes the model a prediction context currently serves
type ModelStats struct {
	Context        string
	Loaded         bool
	Classes        int
	SupportVectors int
	Attributes     int
	Capacity       int
	Probability    bool
}

// StatsSource lists the contexts to report on each scrape
type StatsSource interface {
	ModelStats() []ModelStats
}

// ModelCollector exports per-context model gauges, read at scrape time
type ModelCollector struct {
	source StatsSource

	// Descriptors
	loaded         *prometheus.Desc
	classes        *prometheus.Desc
	supportVectors *prometheus.Desc
	attributes     *prometheus.Desc
	capacity       *prometheus.Desc
	probability    *prometheus.Desc
}

// NewModelCollector creates a new model collector
func NewModelCollector(source StatsSource) *ModelCollector {
	labels := []string{"context"}

	return &ModelCollector{
		source: source,

		loaded: prometheus.NewDesc(
			"svmengine_model_loaded",
			"Whether the context has a model loaded (0|1)",
			labels, nil,
		),
		classes: prometheus.NewDesc(
			"svmengine_model_classes",
			"Number of classes of the loaded model",
			labels, nil,
		),
		supportVectors: prometheus.NewDesc(
			"svmengine_model_support_vectors",
			"Number of support vectors of the loaded model",
			labels, nil,
		),
		attributes: prometheus.NewDesc(
			"svmengine_model_attributes",
			"Largest feature index used by the loaded model",
			labels, nil,
		),
		capacity: prometheus.NewDesc(
			"svmengine_context_capacity",
			"Maximum problems per predict call",
			labels, nil,
		),
		probability: prometheus.NewDesc(
			"svmengine_model_probability",
			"Whether the loaded model carries calibration (0|1)",
			labels, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *ModelCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.loaded
	ch <- c.classes
	ch <- c.supportVectors
	ch <- c.attributes
	ch <- c.capacity
	ch <- c.probability
}

// Collect implements prometheus.Collector
func (c *ModelCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.source.ModelStats() {
		ch <- prometheus.MustNewConstMetric(c.loaded, prometheus.GaugeValue, boolValue(s.Loaded), s.Context)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity), s.Context)

		if !s.Loaded {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.classes, prometheus.GaugeValue, float64(s.Classes), s.Context)
		ch <- prometheus.MustNewConstMetric(c.supportVectors, prometheus.GaugeValue, float64(s.SupportVectors), s.Context)
		ch <- prometheus.MustNewConstMetric(c.attributes, prometheus.GaugeValue, float64(s.Attributes), s.Context)
		ch <- prometheus.MustNewConstMetric(c.probability, prometheus.GaugeValue, boolValue(s.Probability), s.Context)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// RegisterModelCollector registers the model collector
func RegisterModelCollector(collector *ModelCollector) {
	prometheus.MustRegister(collector)
}
