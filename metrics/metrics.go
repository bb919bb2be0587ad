// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import "net/http"

// Metrics defines the meters the service reports.
// The default implementation is a no-op; cmd/ switches it to prometheus
// when metrics are enabled.
type Metrics interface {
	GetOrCreateCountMeter(name string) CountMeter
	GetOrCreateCountVecMeter(name string, labels []string) CountVecMeter
	GetOrCreateGaugeMeter(name string) GaugeMeter
	GetOrCreateHistogramMeter(name string, buckets []int64) HistogramMeter
	GetOrCreateHistogramVecMeter(name string, labels []string, buckets []int64) HistogramVecMeter
	GetOrCreateHandler() http.Handler
}

// BucketHTTPReqs buckets for measuring HTTP request durations in ms.
var BucketHTTPReqs = []int64{0, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// CountMeter a monotonic counter.
type CountMeter interface {
	Add(int64)
}

// CountVecMeter a monotonic counter with labels.
type CountVecMeter interface {
	AddWithLabel(int64, map[string]string)
}

// GaugeMeter a value that can go up and down.
type GaugeMeter interface {
	Set(int64)
}

// HistogramMeter a distribution of observed values.
type HistogramMeter interface {
	Observe(int64)
}

// HistogramVecMeter a distribution of observed values with labels.
type HistogramVecMeter interface {
	ObserveWithLabels(int64, map[string]string)
}

var metrics Metrics = defaultNoopMetrics()

// Counter returns or creates a counter by name.
func Counter(name string) CountMeter { return metrics.GetOrCreateCountMeter(name) }

// CounterVec returns or creates a labeled counter by name.
func CounterVec(name string, labels []string) CountVecMeter {
	return metrics.GetOrCreateCountVecMeter(name, labels)
}

// Gauge returns or creates a gauge by name.
func Gauge(name string) GaugeMeter { return metrics.GetOrCreateGaugeMeter(name) }

// Histogram returns or creates a histogram by name.
func Histogram(name string, buckets []int64) HistogramMeter {
	return metrics.GetOrCreateHistogramMeter(name, buckets)
}

// HistogramVec returns or creates a labeled histogram by name.
func HistogramVec(name string, labels []string, buckets []int64) HistogramVecMeter {
	return metrics.GetOrCreateHistogramVecMeter(name, labels, buckets)
}

// HTTPHandler returns the exposition handler of the active implementation,
// nil when metrics are disabled.
func HTTPHandler() http.Handler { return metrics.GetOrCreateHandler() }
