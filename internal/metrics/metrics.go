// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

// Package metrics exposes Prometheus collectors for the gateway's
// decision pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// decisionsTotal counts policy decisions by outcome.
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tenantgate",
		Name:      "decisions_total",
		Help:      "Authorization decisions by outcome.",
	}, []string{"outcome"})

	// requestsTotal counts gateway HTTP requests.
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tenantgate",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method and status code.",
	}, []string{"method", "status"})

	// requestDuration observes request latency.
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tenantgate",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	// tenantCacheTotal counts tenant cache lookups by result.
	tenantCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tenantgate",
		Name:      "tenant_cache_total",
		Help:      "Tenant directory cache lookups by result.",
	}, []string{"result"})

	// directoryFallbacksTotal counts identity resolutions that needed an
	// authoritative profile read.
	directoryFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tenantgate",
		Name:      "directory_fallbacks_total",
		Help:      "Identity resolutions that fell back to the profile directory.",
	})

	// orphanedCredentialsTotal counts valid credentials with no profile row.
	orphanedCredentialsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tenantgate",
		Name:      "orphaned_credentials_total",
		Help:      "Valid session credentials with no matching profile row.",
	})

	// auditQueueDepth gauges the async audit buffer.
	auditQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tenantgate",
		Name:      "audit_queue_depth",
		Help:      "Records waiting in the async audit write buffer.",
	})

	// auditDropsTotal counts audit records dropped on a full buffer.
	auditDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tenantgate",
		Name:      "audit_drops_total",
		Help:      "Audit records dropped because the write buffer was full.",
	})
)

// RecordDecision increments the decision counter for an outcome.
func RecordDecision(outcome string) {
	decisionsTotal.WithLabelValues(outcome).Inc()
}

// RecordRequest records one completed HTTP request.
func RecordRequest(method, status string, duration time.Duration) {
	requestsTotal.WithLabelValues(method, status).Inc()
	requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordTenantCache records a tenant cache hit or miss.
func RecordTenantCache(hit bool) {
	if hit {
		tenantCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	tenantCacheTotal.WithLabelValues("miss").Inc()
}

// RecordDirectoryFallback records an authoritative profile read.
func RecordDirectoryFallback() {
	directoryFallbacksTotal.Inc()
}

// RecordOrphanedCredential records a credential with no profile row.
func RecordOrphanedCredential() {
	orphanedCredentialsTotal.Inc()
}

// SetAuditQueueDepth updates the audit buffer gauge.
func SetAuditQueueDepth(n int) {
	auditQueueDepth.Set(float64(n))
}

// RecordAuditDrop records a dropped audit record.
func RecordAuditDrop() {
	auditDropsTotal.Inc()
}
