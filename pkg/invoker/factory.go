package invoker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/daimatz/invokergen/pkg/config"
	"github.com/daimatz/invokergen/pkg/logging"
	"github.com/daimatz/invokergen/pkg/metrics"
	"github.com/daimatz/invokergen/pkg/observability"
	"github.com/daimatz/invokergen/pkg/vm"
)

// Factory synthesizes invokers into one loading scope. It holds no cache:
// every Create generates, loads and constructs a new class.
type Factory struct {
	machine *vm.VM
	scope   *vm.Scope
	naming  NamingPolicy
	loader  *Loader
	sink    Sink
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Factory.
type Option func(*Factory)

// WithNaming sets the naming policy. The default is DefaultNaming.
func WithNaming(p NamingPolicy) Option {
	return func(f *Factory) { f.naming = p }
}

// WithLoader sets the loader. The default is DefaultLoader().
func WithLoader(l *Loader) Option {
	return func(f *Factory) { f.loader = l }
}

// WithSink enables the diagnostic sink.
func WithSink(s Sink) Option {
	return func(f *Factory) { f.sink = s }
}

// WithMetrics records creations in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Factory) { f.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// WithTracer sets the tracer of creation spans. The default is the global
// tracer of package observability, looked up on each Create.
func WithTracer(t trace.Tracer) Option {
	return func(f *Factory) { f.tracer = t }
}

// NewFactory returns a factory defining classes in scope and running them
// on machine.
func NewFactory(machine *vm.VM, scope *vm.Scope, opts ...Option) *Factory {
	f := &Factory{
		machine: machine,
		scope:   scope,
		naming:  DefaultNaming,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.loader == nil {
		f.loader = DefaultLoader()
	}
	if f.logger == nil {
		f.logger = logging.Op()
	}
	return f
}

// FactoryFromConfig builds a factory from the naming, loader and debug
// sections of cfg. opts are applied after them.
func FactoryFromConfig(cfg *config.Config, machine *vm.VM, scope *vm.Scope, opts ...Option) (*Factory, error) {
	naming, err := NamingByName(cfg.Naming)
	if err != nil {
		return nil, err
	}
	base := []Option{WithNaming(naming)}
	if len(cfg.Loader.Strategies) > 0 {
		strategies, err := StrategiesByName(cfg.Loader.Strategies)
		if err != nil {
			return nil, err
		}
		base = append(base, WithLoader(NewLoader(strategies...)))
	}
	if cfg.Debug.Location != "" {
		base = append(base, WithSink(DirSink{Dir: cfg.Debug.Location, Trace: cfg.Debug.Trace}))
	}
	return NewFactory(machine, scope, append(base, opts...)...), nil
}

// Naming returns the naming policy of f.
func (f *Factory) Naming() NamingPolicy { return f.naming }

// Scope returns the loading scope of f.
func (f *Factory) Scope() *vm.Scope { return f.scope }

// Create synthesizes, loads and constructs an invoker for d. Failures are
// returned as *CreateError wrapping the error of the failed stage.
func (f *Factory) Create(ctx context.Context, d Descriptor) (*MethodInvoker, error) {
	start := time.Now()
	target := d.String()
	tracer := f.tracer
	if tracer == nil {
		tracer = observability.Tracer()
	}

	attrs := []attribute.KeyValue{
		observability.AttrTarget.String(target),
		observability.AttrNaming.String(namingLabel(f.naming)),
	}
	if f.scope != nil {
		attrs = append(attrs, observability.AttrScope.String(f.scope.Name))
	}
	ctx, span := observability.StartSpanWith(ctx, tracer, "invoker.create", attrs...)
	defer span.End()

	name := ""
	fail := func(stage Stage, err error) (*MethodInvoker, error) {
		cerr := &CreateError{Stage: stage, Target: target, Name: name, Err: err}
		observability.SetSpanError(span, cerr)
		span.SetAttributes(observability.AttrStage.String(string(stage)))
		f.metrics.RecordFailure(string(stage), time.Since(start))
		f.logger.Debug("invoker creation failed", "target", target, "stage", stage, "error", err)
		return nil, cerr
	}

	if err := ctx.Err(); err != nil {
		return fail(StageValidate, err)
	}
	if err := d.Validate(); err != nil {
		return fail(StageValidate, err)
	}

	name = f.naming.NameFor(d)
	span.SetAttributes(observability.AttrClassName.String(name))

	var body *Body
	err := f.stage(ctx, tracer, StageEmit, func(context.Context) (err error) {
		body, err = Emit(d, name)
		return err
	})
	if err != nil {
		return fail(StageEmit, err)
	}

	var artifact *Artifact
	err = f.stage(ctx, tracer, StageAssemble, func(context.Context) (err error) {
		artifact, err = Assemble(name, body, d)
		return err
	})
	if err != nil {
		return fail(StageAssemble, err)
	}
	span.SetAttributes(observability.AttrBytes.Int(len(artifact.Bytes)))

	f.record(artifact)

	var ctor Constructor
	err = f.stage(ctx, tracer, StageLoad, func(ctx context.Context) (err error) {
		ctor, err = f.loader.Load(f.machine, f.scope, artifact)
		if s, _ := f.loader.Strategy(); s != nil {
			trace.SpanFromContext(ctx).SetAttributes(observability.AttrStrategy.String(s.Name()))
			f.metrics.SetLoaderStrategy(s.Name())
		}
		return err
	})
	if err != nil {
		return fail(StageLoad, err)
	}

	var inv *MethodInvoker
	err = f.stage(ctx, tracer, StageInstantiate, func(context.Context) error {
		obj, err := ctor()
		if err != nil {
			return err
		}
		inv, err = newMethodInvoker(f.machine, obj, name, d)
		return err
	})
	if err != nil {
		return fail(StageInstantiate, err)
	}

	observability.SetSpanOK(span)
	f.metrics.RecordCreated(namingLabel(f.naming), time.Since(start), len(artifact.Bytes))
	f.logger.Debug("invoker created", "target", target, "class", name, "bytes", len(artifact.Bytes))
	return inv, nil
}

// stage runs fn in a child span named after the stage.
func (f *Factory) stage(ctx context.Context, tracer trace.Tracer, stage Stage, fn func(context.Context) error) error {
	ctx, span := observability.StartSpanWith(ctx, tracer, "invoker."+string(stage),
		observability.AttrStage.String(string(stage)))
	defer span.End()
	if err := fn(ctx); err != nil {
		observability.SetSpanError(span, err)
		return err
	}
	observability.SetSpanOK(span)
	return nil
}

// record hands a to the sink. Failures are logged and counted only.
func (f *Factory) record(a *Artifact) {
	if f.sink == nil {
		return
	}
	if err := f.sink.Record(a); err != nil {
		f.metrics.RecordSinkFailure()
		f.logger.Warn("diagnostic sink failed", "class", a.Name, "error", err)
	}
}

// CreateFor resolves owner.name(params) in the factory's scope and creates
// an invoker for it. Resolution failures are reported at StageResolve.
func (f *Factory) CreateFor(ctx context.Context, owner, name string, params ...Type) (*MethodInvoker, error) {
	d, err := Resolve(f.scope, owner, name, params...)
	if err != nil {
		var target string
		var rerr *ResolutionError
		if errors.As(err, &rerr) {
			target = rerr.Owner + "." + rerr.Method + rerr.Params
		}
		f.metrics.RecordFailure(string(StageResolve), 0)
		return nil, &CreateError{Stage: StageResolve, Target: target, Err: err}
	}
	return f.Create(ctx, d)
}
