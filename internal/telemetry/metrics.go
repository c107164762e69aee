package telemetry

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one scoring process on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	rows        prometheus.Counter
	runs        *prometheus.CounterVec
	stages      *prometheus.HistogramVec
	predictions *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchscore_rows_scored_total",
			Help: "Dataset rows that received a prediction.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batchscore_runs_total",
			Help: "Scoring runs by result.",
		}, []string{"result"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batchscore_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"stage"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batchscore_predictions_total",
			Help: "Predicted labels by class index.",
		}, []string{"class"}),
	}
	m.reg.MustRegister(m.rows, m.runs, m.stages, m.predictions)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveStage records how long a stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.stages.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) RunFinished(err error) {
	if err != nil {
		m.runs.WithLabelValues("failure").Inc()
		return
	}
	m.runs.WithLabelValues("success").Inc()
}

// Scored counts rows and the class distribution of one prediction vector.
func (m *Metrics) Scored(preds []int) {
	m.rows.Add(float64(len(preds)))
	counts := map[int]int{}
	for _, p := range preds {
		counts[p]++
	}
	for class, n := range counts {
		m.predictions.WithLabelValues(strconv.Itoa(class)).Add(float64(n))
	}
}

// Expose serves /metrics on port in the background. port <= 0 disables it.
func (m *Metrics) Expose(port int) {
	if port <= 0 {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
	}()
}

// WriteTextfile dumps the registry in text exposition format for the
// node-exporter textfile collector. Empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.reg)
}
