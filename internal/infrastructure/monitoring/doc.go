/*
Package monitoring provides metrics collection for the sidecar.

# Overview

Metrics are Prometheus collectors registered on a private registry, so the
package can be instantiated more than once (tests do). They cover IPC request
throughput and latency, dropped input frames, gatekeeper verdicts and CSP
header rewrites.

# Usage

	metrics := monitoring.NewMetrics()

	timer := monitoring.NewTimer(metrics, "execute")
	// ... handle request ...
	timer.Stop("result")

A nil *Metrics is accepted everywhere and records nothing.

# Metrics Endpoint

When METRICS_ADDR is set the sidecar serves /metrics and /healthz through gin:

	srv := monitoring.NewServer(addr, metrics, healthFn, logger)
	srv.Start()
	defer srv.Shutdown(ctx)
*/
package monitoring
