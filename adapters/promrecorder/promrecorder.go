// Package promrecorder implements the store.Recorder interface on
// Prometheus, exposing the window store adapter's counters and latency
// histograms through a standard registry.
package promrecorder

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder lazily registers one CounterVec per Add name and one
// HistogramVec per Observe name. Metric names must stay stable per label
// set, which the engine guarantees.
type Recorder struct {
	registerer prometheus.Registerer
	namespace  string

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// New creates a recorder registering against reg, or the default registerer
// when reg is nil.
func New(reg prometheus.Registerer, namespace string) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Recorder{
		registerer: reg,
		namespace:  namespace,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Add increments the named counter.
func (r *Recorder) Add(name string, value float64, tags map[string]string) {
	labels := labelNames(tags)

	r.mu.Lock()
	vec, ok := r.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: r.namespace,
			Name:      name,
		}, labels)
		r.registerer.MustRegister(vec)
		r.counters[name] = vec
	}
	r.mu.Unlock()

	vec.With(prometheus.Labels(tags)).Add(value)
}

// Observe records a sample into the named histogram.
func (r *Recorder) Observe(name string, value float64, tags map[string]string) {
	labels := labelNames(tags)

	r.mu.Lock()
	vec, ok := r.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: r.namespace,
			Name:      name,
			Buckets:   prometheus.DefBuckets,
		}, labels)
		r.registerer.MustRegister(vec)
		r.histograms[name] = vec
	}
	r.mu.Unlock()

	vec.With(prometheus.Labels(tags)).Observe(value)
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
