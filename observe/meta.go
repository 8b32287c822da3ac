package observe

// EndpointMeta identifies a guarded endpoint for telemetry purposes.
type EndpointMeta struct {
	Method  string // HTTP method (required)
	Route   string // Route pattern, e.g. /users/{id} (required)
	Service string // Circuit breaker service name (optional)
	Version string // API version (optional)
}

// ID returns the endpoint identifier "METHOD route".
func (m EndpointMeta) ID() string {
	return m.Method + " " + m.Route
}

// SpanName returns the deterministic span name for this endpoint.
// It is the same as ID, following the HTTP server span convention.
func (m EndpointMeta) SpanName() string {
	return m.ID()
}

// ServiceName returns Service, or ID when no service is set.
func (m EndpointMeta) ServiceName() string {
	if m.Service != "" {
		return m.Service
	}
	return m.ID()
}
