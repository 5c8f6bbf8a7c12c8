// Package telemetry wraps OpenTelemetry SDK setup for traces and
// metrics. When telemetry is disabled no exporters are created and the
// global providers remain noop, so instrumentation in the rest of the
// module costs nothing.
package telemetry
