// Package metrics defines the observability port for the simulator.
//
// A MetricsSink receives every telemetry snapshot. Sinks may additionally
// implement PhaseTransitionRecorder and SessionRecorder to receive charging
// lifecycle events; MultiSink and RecordSessionEvent route events only to
// the sinks that support them. Concrete sinks live in infra/metrics and are
// registered by type name through RegisterMetricsSink.
package metrics
