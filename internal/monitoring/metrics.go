package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/placesfinder/placesfinder/internal/errors"
)

// MetricType represents the type of metric
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric represents a single metric
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Help      string            `json:"help"`
	Labels    map[string]string `json:"labels,omitempty"`
	Value     float64           `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
}

// Counter represents a counter metric
type Counter struct {
	name   string
	help   string
	labels map[string]string
	value  uint64
}

// NewCounter creates a new counter
func NewCounter(name, help string, labels map[string]string) *Counter {
	return &Counter{
		name:   name,
		help:   help,
		labels: labels,
	}
}

// Inc increments the counter by 1
func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

// Add adds the given value to the counter
func (c *Counter) Add(value float64) {
	if value < 0 {
		return
	}
	atomic.AddUint64(&c.value, uint64(value))
}

// Get returns the current value
func (c *Counter) Get() float64 {
	return float64(atomic.LoadUint64(&c.value))
}

// ToMetric converts to a Metric struct
func (c *Counter) ToMetric() Metric {
	return Metric{
		Name:      c.name,
		Type:      MetricTypeCounter,
		Help:      c.help,
		Labels:    c.labels,
		Value:     c.Get(),
		Timestamp: time.Now(),
	}
}

// Gauge represents a gauge metric
type Gauge struct {
	name   string
	help   string
	labels map[string]string
	value  int64 // milli-units
}

// NewGauge creates a new gauge
func NewGauge(name, help string, labels map[string]string) *Gauge {
	return &Gauge{
		name:   name,
		help:   help,
		labels: labels,
	}
}

// Set sets the gauge to the given value
func (g *Gauge) Set(value float64) {
	atomic.StoreInt64(&g.value, int64(value*1000))
}

// Inc increments the gauge by 1
func (g *Gauge) Inc() {
	atomic.AddInt64(&g.value, 1000)
}

// Dec decrements the gauge by 1
func (g *Gauge) Dec() {
	atomic.AddInt64(&g.value, -1000)
}

// Get returns the current value
func (g *Gauge) Get() float64 {
	return float64(atomic.LoadInt64(&g.value)) / 1000
}

// ToMetric converts to a Metric struct
func (g *Gauge) ToMetric() Metric {
	return Metric{
		Name:      g.name,
		Type:      MetricTypeGauge,
		Help:      g.help,
		Labels:    g.labels,
		Value:     g.Get(),
		Timestamp: time.Now(),
	}
}

// Histogram represents a histogram metric
type Histogram struct {
	name    string
	help    string
	labels  map[string]string
	buckets []float64
	counts  []uint64
	sum     uint64 // milli-units
	count   uint64
}

// DefaultBuckets are in seconds.
var DefaultBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// NewHistogram creates a new histogram
func NewHistogram(name, help string, labels map[string]string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	return &Histogram{
		name:    name,
		help:    help,
		labels:  labels,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)+1),
	}
}

// Observe adds an observation to the histogram
func (h *Histogram) Observe(value float64) {
	atomic.AddUint64(&h.count, 1)
	atomic.AddUint64(&h.sum, uint64(value*1000))

	for i, bucket := range h.buckets {
		if value <= bucket {
			atomic.AddUint64(&h.counts[i], 1)
			return
		}
	}
	atomic.AddUint64(&h.counts[len(h.buckets)], 1)
}

// GetCount returns the total count of observations
func (h *Histogram) GetCount() uint64 {
	return atomic.LoadUint64(&h.count)
}

// GetSum returns the sum of all observations
func (h *Histogram) GetSum() float64 {
	return float64(atomic.LoadUint64(&h.sum)) / 1000
}

// GetPercentile returns the upper bound of the bucket holding the percentile.
func (h *Histogram) GetPercentile(percentile float64) float64 {
	count := h.GetCount()
	if count == 0 {
		return 0
	}

	target := float64(count) * percentile / 100.0
	var cumulative uint64
	for i, bucket := range h.buckets {
		cumulative += atomic.LoadUint64(&h.counts[i])
		if float64(cumulative) >= target {
			return bucket
		}
	}
	return h.buckets[len(h.buckets)-1]
}

// GetAverage calculates the average value
func (h *Histogram) GetAverage() float64 {
	count := h.GetCount()
	if count == 0 {
		return 0
	}
	return h.GetSum() / float64(count)
}

// ToMetric converts to a Metric struct
func (h *Histogram) ToMetric() Metric {
	labels := make(map[string]string, len(h.labels)+4)
	for k, v := range h.labels {
		labels[k] = v
	}
	labels["count"] = fmt.Sprintf("%d", h.GetCount())
	labels["average"] = fmt.Sprintf("%.3f", h.GetAverage())
	labels["p95"] = fmt.Sprintf("%.3f", h.GetPercentile(95))
	labels["p99"] = fmt.Sprintf("%.3f", h.GetPercentile(99))

	return Metric{
		Name:      h.name,
		Type:      MetricTypeHistogram,
		Help:      h.help,
		Labels:    labels,
		Value:     float64(h.GetCount()),
		Timestamp: time.Now(),
	}
}

// MetricsCollector manages all metrics
type MetricsCollector struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	startTime  time.Time
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		startTime:  time.Now(),
	}
	mc.updateSystemMetrics()
	return mc
}

// NewCounter creates or gets a counter
func (mc *MetricsCollector) NewCounter(name, help string, labels map[string]string) *Counter {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := metricKey(name, labels)
	if counter, exists := mc.counters[key]; exists {
		return counter
	}

	counter := NewCounter(name, help, labels)
	mc.counters[key] = counter
	return counter
}

// NewGauge creates or gets a gauge
func (mc *MetricsCollector) NewGauge(name, help string, labels map[string]string) *Gauge {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := metricKey(name, labels)
	if gauge, exists := mc.gauges[key]; exists {
		return gauge
	}

	gauge := NewGauge(name, help, labels)
	mc.gauges[key] = gauge
	return gauge
}

// NewHistogram creates or gets a histogram
func (mc *MetricsCollector) NewHistogram(name, help string, labels map[string]string, buckets []float64) *Histogram {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := metricKey(name, labels)
	if histogram, exists := mc.histograms[key]; exists {
		return histogram
	}

	histogram := NewHistogram(name, help, labels, buckets)
	mc.histograms[key] = histogram
	return histogram
}

// metricKey is stable regardless of label map iteration order.
func metricKey(name string, labels map[string]string) string {
	var b strings.Builder
	b.WriteString(name)
	for _, k := range sortedKeys(labels) {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(labels[k])
	}
	return b.String()
}

func sortedKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (mc *MetricsCollector) updateSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	mc.NewGauge("go_memstats_alloc_bytes", "Number of bytes allocated and still in use", nil).Set(float64(memStats.Alloc))
	mc.NewGauge("go_memstats_sys_bytes", "Number of bytes obtained from system", nil).Set(float64(memStats.Sys))
	mc.NewGauge("go_goroutines", "Number of goroutines that currently exist", nil).Set(float64(runtime.NumGoroutine()))
	mc.NewGauge("go_memstats_gc_total", "Number of completed GC cycles", nil).Set(float64(memStats.NumGC))
	mc.NewGauge("process_uptime_seconds", "Seconds since the collector started", nil).Set(time.Since(mc.startTime).Seconds())
}

// GetAllMetrics returns all metrics sorted by name.
func (mc *MetricsCollector) GetAllMetrics() []Metric {
	mc.updateSystemMetrics()

	mc.mu.RLock()
	metrics := make([]Metric, 0, len(mc.counters)+len(mc.gauges)+len(mc.histograms))
	for _, counter := range mc.counters {
		metrics = append(metrics, counter.ToMetric())
	}
	for _, gauge := range mc.gauges {
		metrics = append(metrics, gauge.ToMetric())
	}
	for _, histogram := range mc.histograms {
		metrics = append(metrics, histogram.ToMetric())
	}
	mc.mu.RUnlock()

	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Name != metrics[j].Name {
			return metrics[i].Name < metrics[j].Name
		}
		return metricKey("", metrics[i].Labels) < metricKey("", metrics[j].Labels)
	})
	return metrics
}

// GetMetricsSummary returns a summary of all metrics
func (mc *MetricsCollector) GetMetricsSummary() map[string]interface{} {
	metrics := mc.GetAllMetrics()

	mc.mu.RLock()
	byType := map[string]int{
		"counters":   len(mc.counters),
		"gauges":     len(mc.gauges),
		"histograms": len(mc.histograms),
	}
	mc.mu.RUnlock()

	return map[string]interface{}{
		"timestamp":       time.Now(),
		"uptime":          time.Since(mc.startTime).String(),
		"total_metrics":   len(metrics),
		"metrics_by_type": byType,
		"metrics":         metrics,
	}
}

// PrometheusHandler returns a handler that exports metrics in Prometheus text format
func (mc *MetricsCollector) PrometheusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics := mc.GetAllMetrics()

		c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		c.Status(http.StatusOK)

		lastName := ""
		for _, metric := range metrics {
			if metric.Name != lastName {
				fmt.Fprintf(c.Writer, "# HELP %s %s\n", metric.Name, metric.Help)
				fmt.Fprintf(c.Writer, "# TYPE %s %s\n", metric.Name, metric.Type)
				lastName = metric.Name
			}

			labelStr := ""
			if len(metric.Labels) > 0 {
				pairs := make([]string, 0, len(metric.Labels))
				for _, k := range sortedKeys(metric.Labels) {
					pairs = append(pairs, fmt.Sprintf(`%s=%q`, k, metric.Labels[k]))
				}
				labelStr = "{" + strings.Join(pairs, ",") + "}"
			}

			fmt.Fprintf(c.Writer, "%s%s %g %d\n", metric.Name, labelStr, metric.Value, metric.Timestamp.UnixMilli())
		}
	}
}

// JSONHandler returns a handler that exports metrics in JSON format
func (mc *MetricsCollector) JSONHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, mc.GetMetricsSummary())
	}
}

// RecordHTTPRequest records HTTP request metrics
func (mc *MetricsCollector) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	labels := map[string]string{"method": method, "route": route, "status": status}
	mc.NewCounter("http_requests_total", "Total number of HTTP requests", labels).Inc()
	mc.NewHistogram("http_request_duration_seconds", "HTTP request duration in seconds",
		map[string]string{"method": method, "route": route}, nil).Observe(duration.Seconds())
}

// RecordCacheOperation records detail cache operations
func (mc *MetricsCollector) RecordCacheOperation(operation, result string) {
	labels := map[string]string{"operation": operation, "result": result}
	mc.NewCounter("cache_operations_total", "Total number of cache operations", labels).Inc()
}

// RecordExport records a CSV download
func (mc *MetricsCollector) RecordExport(rows int) {
	mc.NewCounter("csv_exports_total", "Total number of CSV exports", nil).Inc()
	mc.NewHistogram("csv_export_rows", "Rows per CSV export", nil,
		[]float64{0, 10, 20, 40, 60, 100}).Observe(float64(rows))
}

// RecordError records an error by component and type
func (mc *MetricsCollector) RecordError(component, errorType string) {
	labels := map[string]string{"component": component, "type": errorType}
	mc.NewCounter("errors_total", "Total number of errors", labels).Inc()
}

// PageFetched implements search.Observer
func (mc *MetricsCollector) PageFetched(_ context.Context, page, results int, elapsed time.Duration, err error) {
	status := statusLabel(err)
	mc.NewCounter("places_pages_total", "Text Search pages requested", map[string]string{"status": status}).Inc()
	mc.NewHistogram("places_page_duration_seconds", "Text Search page latency in seconds", nil, nil).Observe(elapsed.Seconds())
	if err == nil {
		mc.NewCounter("places_page_results_total", "Summaries returned by Text Search", nil).Add(float64(results))
	}
}

// DetailLookedUp implements search.Observer
func (mc *MetricsCollector) DetailLookedUp(_ context.Context, cached bool, elapsed time.Duration, err error) {
	source := "api"
	if cached {
		source = "cache"
	}
	labels := map[string]string{"source": source, "status": statusLabel(err)}
	mc.NewCounter("places_details_total", "Place Details lookups", labels).Inc()
	if !cached {
		mc.NewHistogram("places_details_duration_seconds", "Place Details latency in seconds", nil, nil).Observe(elapsed.Seconds())
	}
}

// SearchFinished implements search.Observer
func (mc *MetricsCollector) SearchFinished(_ context.Context, rows int, elapsed time.Duration, err error) {
	status := statusLabel(err)
	mc.NewCounter("searches_total", "Completed searches", map[string]string{"status": status}).Inc()
	mc.NewHistogram("search_duration_seconds", "End to end search duration in seconds", nil, nil).Observe(elapsed.Seconds())
	if err != nil {
		errorType, ok := apperrors.GetErrorType(err)
		if !ok {
			errorType = apperrors.ErrorTypeInternal
		}
		mc.RecordError("search", string(errorType))
		return
	}
	mc.NewGauge("search_last_row_count", "Rows produced by the most recent search", nil).Set(float64(rows))
}

// GetSearchSummary returns the search counters used by the dashboard endpoint.
func (mc *MetricsCollector) GetSearchSummary() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return map[string]interface{}{
		"timestamp": time.Now(),
		"searches": map[string]float64{
			"ok":     mc.counterValue("searches_total", map[string]string{"status": "ok"}),
			"failed": mc.counterValue("searches_total", map[string]string{"status": "error"}),
		},
		"details": map[string]float64{
			"api":   mc.counterValue("places_details_total", map[string]string{"source": "api", "status": "ok"}),
			"cache": mc.counterValue("places_details_total", map[string]string{"source": "cache", "status": "ok"}),
		},
		"exports": mc.counterValue("csv_exports_total", nil),
	}
}

// counterValue expects mc.mu to be held.
func (mc *MetricsCollector) counterValue(name string, labels map[string]string) float64 {
	if counter, exists := mc.counters[metricKey(name, labels)]; exists {
		return counter.Get()
	}
	return 0
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
