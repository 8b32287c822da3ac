package observe

// Instrumentation bundles the collaborators handed to the guard pipeline.
// Nil fields are treated as no-ops by Normalize.
type Instrumentation struct {
	Tracer  Tracer
	Metrics Metrics
	Logger  Logger
}

// NewInstrumentation builds an Instrumentation from an Observer.
func NewInstrumentation(obs Observer) (*Instrumentation, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return &Instrumentation{
		Tracer:  NewTracer(obs.Tracer()),
		Metrics: metrics,
		Logger:  obs.Logger(),
	}, nil
}

// NoopInstrumentation returns an Instrumentation that records nothing.
func NoopInstrumentation() *Instrumentation {
	return &Instrumentation{
		Tracer:  NoopTracer(),
		Metrics: NoopMetrics(),
		Logger:  NoopLogger(),
	}
}

// Normalize returns a copy with nil collaborators replaced by no-ops.
func (i *Instrumentation) Normalize() *Instrumentation {
	out := NoopInstrumentation()
	if i == nil {
		return out
	}
	if i.Tracer != nil {
		out.Tracer = i.Tracer
	}
	if i.Metrics != nil {
		out.Metrics = i.Metrics
	}
	if i.Logger != nil {
		out.Logger = i.Logger
	}
	return out
}
