/*
 * Copyright 2026 The Margo Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package prometheus provides a Prometheus metrics exporter.
package prometheus

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/margolab/margo/internal/version"
)

const (
	namespace         = "margo"
	taskTypeLabel     = "task_type"
	opClassLabel      = "op_class"
	actionLabel       = "action"
	eventTypeLabel    = "event_type"
	evictReasonLabel  = "reason"
	flushOutcomeLabel = "outcome"
)

// Metrics manages the metric information that Margo is trying to measure.
type Metrics struct {
	registry *prometheus.Registry

	serverVersion *prometheus.GaugeVec

	backgroundGoroutinesTotal *prometheus.GaugeVec

	syncSessionsTotal    prometheus.Gauge
	deltasAppliedTotal   *prometheus.CounterVec
	deltasDeniedTotal    *prometheus.CounterVec
	broadcastEventsTotal *prometheus.CounterVec
	broadcastDropsTotal  prometheus.Counter

	loadedDocsTotal   prometheus.Gauge
	docEvictionsTotal *prometheus.CounterVec
	flushSeconds      prometheus.Histogram
	flushesTotal      *prometheus.CounterVec
}

// NewMetrics creates a new instance of Metrics.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	metrics := &Metrics{
		registry: reg,
		serverVersion: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		backgroundGoroutinesTotal: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "background",
			Name:      "goroutines_total",
			Help:      "The total number of goroutines attached by background tasks.",
		}, []string{taskTypeLabel}),
		syncSessionsTotal: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "sessions_total",
			Help:      "The number of currently connected synchronization sessions.",
		}),
		deltasAppliedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "deltas_applied_total",
			Help:      "The total count of deltas applied to in-memory document states.",
		}, []string{opClassLabel}),
		deltasDeniedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "deltas_denied_total",
			Help:      "The total count of deltas rejected by permission checks.",
		}, []string{actionLabel}),
		broadcastEventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rooms",
			Name:      "broadcast_events_total",
			Help:      "The total count of events delivered to room members.",
		}, []string{eventTypeLabel}),
		broadcastDropsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rooms",
			Name:      "broadcast_drops_total",
			Help:      "The total count of events dropped because a member could not keep up.",
		}),
		loadedDocsTotal: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "docstate",
			Name:      "loaded_docs_total",
			Help:      "The number of document states currently loaded in memory.",
		}),
		docEvictionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "docstate",
			Name:      "evictions_total",
			Help:      "The total count of document states evicted from memory.",
		}, []string{evictReasonLabel}),
		flushSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "docstate",
			Name:      "flush_seconds",
			Help:      "The time taken to persist a document state snapshot.",
		}),
		flushesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "docstate",
			Name:      "flushes_total",
			Help:      "The total count of document state flushes by outcome.",
		}, []string{flushOutcomeLabel}),
	}

	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics, nil
}

// AddBackgroundGoroutines adds the number of goroutines attached by background tasks.
func (m *Metrics) AddBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Inc()
}

// RemoveBackgroundGoroutines removes the number of goroutines attached by background tasks.
func (m *Metrics) RemoveBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Dec()
}

// AddSyncSession increments the connected session gauge.
func (m *Metrics) AddSyncSession() {
	m.syncSessionsTotal.Inc()
}

// RemoveSyncSession decrements the connected session gauge.
func (m *Metrics) RemoveSyncSession() {
	m.syncSessionsTotal.Dec()
}

// AddAppliedDeltas adds the count of deltas applied to document states.
func (m *Metrics) AddAppliedDeltas(opClass string) {
	m.deltasAppliedTotal.With(prometheus.Labels{
		opClassLabel: opClass,
	}).Inc()
}

// AddDeniedDeltas adds the count of deltas rejected by permission checks.
func (m *Metrics) AddDeniedDeltas(action string) {
	m.deltasDeniedTotal.With(prometheus.Labels{
		actionLabel: action,
	}).Inc()
}

// AddBroadcastEvents adds the count of events delivered to room members.
func (m *Metrics) AddBroadcastEvents(eventType string, count int) {
	m.broadcastEventsTotal.With(prometheus.Labels{
		eventTypeLabel: eventType,
	}).Add(float64(count))
}

// AddBroadcastDrop adds the count of events dropped on slow members.
func (m *Metrics) AddBroadcastDrop() {
	m.broadcastDropsTotal.Inc()
}

// AddLoadedDoc increments the loaded document state gauge.
func (m *Metrics) AddLoadedDoc() {
	m.loadedDocsTotal.Inc()
}

// RemoveLoadedDoc decrements the loaded document state gauge.
func (m *Metrics) RemoveLoadedDoc() {
	m.loadedDocsTotal.Dec()
}

// AddDocEviction adds the count of document states evicted from memory.
func (m *Metrics) AddDocEviction(reason string) {
	m.docEvictionsTotal.With(prometheus.Labels{
		evictReasonLabel: reason,
	}).Inc()
}

// ObserveFlushSeconds records the time taken to persist a state snapshot.
func (m *Metrics) ObserveFlushSeconds(seconds float64) {
	m.flushSeconds.Observe(seconds)
}

// AddFlush adds the count of state flushes with the given outcome.
func (m *Metrics) AddFlush(outcome string) {
	m.flushesTotal.With(prometheus.Labels{
		flushOutcomeLabel: outcome,
	}).Inc()
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
