/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the
service, tracking governor admission behavior, upstream fetches, HTTP
requests, and stream subscriber activity.

# Features

- Governor metrics (admissions, rejections, queue depth, breaker state)
- Acquire wait and backoff histograms
- Upstream fetch metrics (latency, status)
- HTTP request metrics (latency, throughput)
- WebSocket stream metrics
- System metrics (uptime, configured sources)

# Usage

	// Create a metrics collector on its own registry
	registry := prometheus.NewRegistry()
	metrics := monitoring.New(registry)

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record custom metrics
	metrics.SetSourcesConfigured(4)
	metrics.RecordAdmission("coindesk")

	// Time fetches
	timer := monitoring.NewTimer(metrics, "coindesk")
	// ... perform fetch ...
	timer.Stop("200")

# Metrics Endpoint

Expose the registry via the standard Prometheus handler:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
*/
package monitoring
