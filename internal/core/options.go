package core

import (
	"context"
	"time"

	"modelcore/internal/logging"
	"modelcore/internal/reasoner"
	"modelcore/internal/validation"
	"modelcore/pkg/domain"
)

// Logger is the leveled logger used by the registry.
type Logger = logging.Logger

// Clock supplies timestamps for change events and audit entries.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock. A nil ClockFunc returns the current UTC time.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f()
}

// MetricsRecorder observes registry operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// CacheObserver is told the number of live instances after every change.
type CacheObserver interface {
	CachedModels(n int)
}

// TraceSpan ends one traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around registry operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// AuditStatus is the outcome recorded in an audit entry.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry attributes one registry operation to an actor.
type AuditEntry struct {
	Operation string
	ModelID   domain.ModelID
	ActorID   string
	Status    AuditStatus
	Error     string
	ErrorType string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type options struct {
	logger    Logger
	clock     Clock
	metrics   MetricsRecorder
	cache     CacheObserver
	tracer    Tracer
	audit     AuditRecorder
	reasoners domain.ReasonerFactory
	validator domain.Validator
	idPrefix  string
}

func defaultOptions() options {
	return options{
		logger:    logging.Nop(),
		clock:     ClockFunc(nil),
		metrics:   noopMetricsRecorder{},
		tracer:    noopTracer{},
		audit:     noopAuditRecorder{},
		reasoners: reasoner.NewFactory(),
		validator: validation.NewValidator(nil),
		idPrefix:  DefaultIDPrefix,
	}
}

// Option configures a Registry.
type Option func(*options)

// WithLogger sets the registry logger.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink. A recorder that also
// implements CacheObserver receives the live instance count.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *options) {
		if recorder == nil {
			return
		}
		o.metrics = recorder
		if cache, ok := recorder.(CacheObserver); ok {
			o.cache = cache
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(o *options) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithReasonerFactory sets the reasoning engine.
func WithReasonerFactory(factory domain.ReasonerFactory) Option {
	return func(o *options) {
		if factory != nil {
			o.reasoners = factory
		}
	}
}

// WithValidator sets the validation engine.
func WithValidator(validator domain.Validator) Option {
	return func(o *options) {
		if validator != nil {
			o.validator = validator
		}
	}
}

// WithIDPrefix sets the prefix of generated model IDs.
func WithIDPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.idPrefix = prefix
		}
	}
}
