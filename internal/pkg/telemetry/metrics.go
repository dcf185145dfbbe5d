package telemetry

// SLI metric names used for instrumentation.
const (
	// Latency
	MetricAPILatencyP50 = "api.latency.p50"
	MetricAPILatencyP95 = "api.latency.p95"
	MetricAPILatencyP99 = "api.latency.p99"

	// Throughput
	MetricRequestsPerSec = "api.requests_per_second"

	// Simulation progress
	MetricEventLoopLag  = "simulation.event_loop_lag_seconds"
	MetricDispatchDelay = "dispatch.decision_latency"

	// Availability
	MetricUptime = "service.uptime_percentage"

	// Business
	MetricResignations = "business.resignations_total"
	MetricPoolShare     = "business.pool_share_ratio"
)
