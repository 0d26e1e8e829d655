// Package metrics provides Prometheus instrumentation for gostream components.
//
// # Overview
//
// The metrics package provides instrumentation for:
//   - Stream operations (submissions, range items, errors, cancellations, latency)
//   - The run loop (tasks run, queued tasks, active pollers)
//   - Leaf endpoints (channel buffer usage, backpressure events, bytes written)
//   - Pacing gates (rate limit requests, allows, denies, wait times)
//   - Cron triggers (scheduled jobs, fires)
//
// # Quick Start
//
// Components take a metrics.Config; the zero value disables collection:
//
//	lp := loop.New(loop.Config{Name: "io", Metrics: metrics.DefaultConfig()})
//	w := stream.ObserveWriter(uart, "uart", metrics.DefaultConfig())
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	config := metrics.Config{
//		Enabled:  true,
//		Registry: registry,
//	}
//
// Components configured with the same registerer and namespace share one
// set of collectors, obtained with For.
//
// # Available Metrics
//
// ## Stream Metrics
//
//   - gostream_stream_operations_total
//   - gostream_stream_items_total
//   - gostream_stream_errors_total
//   - gostream_stream_cancellations_total
//   - gostream_stream_completion_duration_seconds
//
// ## Loop Metrics
//
//   - gostream_loop_tasks_total
//   - gostream_loop_pending_tasks
//   - gostream_loop_active_pollers
//
// ## Endpoint Metrics
//
//   - gostream_channel_buffer_size
//   - gostream_channel_buffer_usage
//   - gostream_backpressure_events_total
//   - gostream_writer_writes_total
//   - gostream_writer_bytes_written_total
//
// ## Rate Limiting Metrics
//
//   - gostream_ratelimit_requests_total
//   - gostream_ratelimit_allowed_total
//   - gostream_ratelimit_denied_total
//   - gostream_ratelimit_wait_duration_seconds
//
// ## Trigger Metrics
//
//   - gostream_trigger_jobs
//   - gostream_trigger_fires_total
//
// # Labels
//
//   - operation: "write", "write_range", "read", "read_range", "readwrite" or "readwrite_range"
//   - stream_name, loop_name, channel_name, writer_name, trigger_name: user-provided names
//   - limiter_type: "token_bucket" or "distributed"
//   - strategy: backpressure strategy ("block", "drop", "drop_oldest", "error")
package metrics
