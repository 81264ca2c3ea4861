// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package perfmetrics exports the performance counters of executables as Prometheus metrics.
//
// Example:
//
//	collector := perfmetrics.NewCollector()
//	collector.Add("train_step", exec)
//	prometheus.MustRegister(collector)
package perfmetrics

import (
	"slices"
	"sync"

	"github.com/gomlx/runtime/backends"
	"github.com/prometheus/client_golang/prometheus"
)

// Source of performance counters, usually a backends.Executable.
type Source interface {
	PerformanceData() []backends.PerformanceCounter
}

// Collector implements prometheus.Collector over the performance counters of a set of executables.
// Each executable is registered under a label, and each of its counters is reported with the labels
// "executable" and "counter".
type Collector struct {
	mu      sync.Mutex
	sources map[string]Source

	invocations *prometheus.Desc
	seconds     *prometheus.Desc
	registered  *prometheus.Desc
}

// Compile-time check.
var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	labels := []string{"executable", "counter"}
	return &Collector{
		sources: make(map[string]Source),
		invocations: prometheus.NewDesc(
			"gomlx_executable_op_invocations_total",
			"Number of invocations of each performance counter of an executable.",
			labels, nil,
		),
		seconds: prometheus.NewDesc(
			"gomlx_executable_op_seconds_total",
			"Total time in seconds spent in each performance counter of an executable.",
			labels, nil,
		),
		registered: prometheus.NewDesc(
			"gomlx_executables",
			"Number of executables exporting performance counters.",
			nil, nil,
		),
	}
}

// Add registers source under the given label, replacing any previous source with the same label.
func (c *Collector) Add(label string, source Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[label] = source
}

// Remove unregisters the source with the given label. Call it before finalizing the executable.
func (c *Collector) Remove(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sources, label)
}

// Labels returns the labels of the registered sources, sorted.
func (c *Collector) Labels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	labels := make([]string, 0, len(c.sources))
	for label := range c.sources {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	return labels
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.invocations
	ch <- c.seconds
	ch <- c.registered
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch <- prometheus.MustNewConstMetric(c.registered, prometheus.GaugeValue, float64(len(c.sources)))
	for label, source := range c.sources {
		seen := make(map[string]bool)
		for _, counter := range source.PerformanceData() {
			// Prometheus rejects duplicate label sets.
			if seen[counter.Name] {
				continue
			}
			seen[counter.Name] = true
			ch <- prometheus.MustNewConstMetric(c.invocations, prometheus.CounterValue,
				float64(counter.Count), label, counter.Name)
			ch <- prometheus.MustNewConstMetric(c.seconds, prometheus.CounterValue,
				counter.Total.Seconds(), label, counter.Name)
		}
	}
}
