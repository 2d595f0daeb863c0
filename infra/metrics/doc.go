// Package metrics implements the telemetry sinks registered with
// core/metrics: Prometheus gauges and counters, InfluxDB points and a
// rotating JSONL file.
package metrics
