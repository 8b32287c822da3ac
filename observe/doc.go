// Package observe provides the telemetry collaborators used by the guard
// pipeline: an OpenTelemetry tracer and meter, request and error metrics,
// and a zap-backed structured logger.
//
// Every collaborator has a no-op form. Telemetry is best-effort; none of
// the implementations return errors to callers or affect request handling.
package observe
