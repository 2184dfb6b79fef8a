// Package instrumentation provides OpenTelemetry metrics and tracing for the
// integration OAuth engine.
//
// Instrumentation is optional: when disabled (or when no providers are
// supplied) no-op meter and tracer providers are used, so instrumented code
// paths carry zero overhead.
package instrumentation
