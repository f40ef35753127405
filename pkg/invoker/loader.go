package invoker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/daimatz/invokergen/pkg/classfile"
	"github.com/daimatz/invokergen/pkg/logging"
	"github.com/daimatz/invokergen/pkg/vm"
)

// errScopeUnavailable is wrapped by the LoadingError of a nil scope.
var errScopeUnavailable = errors.New("loading scope is unavailable; it may have been released")

// Strategy registers generated classes in a loading scope.
type Strategy interface {
	Name() string
	// Probe reports whether the strategy works in this process.
	Probe() error
	Define(scope *vm.Scope, a *Artifact) (*vm.Class, error)
}

// DirectStrategy registers the encoded bytes through the scope's
// DefineClass entry point.
type DirectStrategy struct{}

func (DirectStrategy) Name() string { return "direct" }

func (s DirectStrategy) Probe() error { return probeDefine(s) }

func (DirectStrategy) Define(scope *vm.Scope, a *Artifact) (*vm.Class, error) {
	return scope.DefineClass(a.InternalName(), a.Bytes)
}

// MemoryStrategy parses the class file itself and registers the parsed
// form with DefineParsed.
type MemoryStrategy struct{}

func (MemoryStrategy) Name() string { return "memory" }

func (s MemoryStrategy) Probe() error { return probeDefine(s) }

func (MemoryStrategy) Define(scope *vm.Scope, a *Artifact) (*vm.Class, error) {
	cf, err := classfile.ParseBytes(a.Bytes)
	if err != nil {
		return nil, err
	}
	name, err := cf.ClassName()
	if err != nil {
		return nil, err
	}
	if name != a.InternalName() {
		return nil, fmt.Errorf("class file declares %s, want %s", name, a.InternalName())
	}
	return scope.DefineParsed(cf)
}

// probeDefine defines an empty class through s into a throw-away scope.
func probeDefine(s Strategy) error {
	const probeName = "gojvm/invoker/Probe"
	data, err := classfile.NewClassBuilder(probeName, objectClass, classfile.AccPublic|classfile.AccSuper).Bytes()
	if err != nil {
		return err
	}
	scope := vm.NewScope("probe-"+s.Name(), nil, nil)
	defer scope.Close()
	c, err := s.Define(scope, &Artifact{Name: "gojvm.invoker.Probe", Bytes: data})
	if err != nil {
		return err
	}
	if c.Name != probeName || scope.FindLoadedClass(probeName) != c {
		return fmt.Errorf("probe class was not registered")
	}
	return nil
}

// DefaultStrategies returns the built-in strategies in probing order.
func DefaultStrategies() []Strategy {
	return []Strategy{DirectStrategy{}, MemoryStrategy{}}
}

// StrategiesByName maps names to built-in strategies, keeping their order.
func StrategiesByName(names []string) ([]Strategy, error) {
	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		switch name {
		case "direct":
			out = append(out, DirectStrategy{})
		case "memory":
			out = append(out, MemoryStrategy{})
		default:
			return nil, fmt.Errorf("unknown loading strategy %q", name)
		}
	}
	return out, nil
}

// Constructor allocates and constructs an instance of a loaded class.
type Constructor func() (*vm.JObject, error)

// Loader defines generated classes in a scope and returns their
// constructor. The strategy is chosen once, on first use, by probing the
// configured strategies in order; the choice never changes afterwards.
type Loader struct {
	strategies []Strategy

	once     sync.Once
	selected Strategy
	probeErr error
}

// NewLoader returns a loader trying strategies in order, or the default
// strategies when none are given.
func NewLoader(strategies ...Strategy) *Loader {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Loader{strategies: strategies}
}

var (
	defaultLoaderOnce sync.Once
	defaultLoader     *Loader
)

// DefaultLoader returns the process-wide loader with the default strategies.
func DefaultLoader() *Loader {
	defaultLoaderOnce.Do(func() { defaultLoader = NewLoader() })
	return defaultLoader
}

// Strategy returns the selected strategy, probing on first call. The error
// wraps ErrNoStrategy when no strategy works; it is permanent.
func (l *Loader) Strategy() (Strategy, error) {
	l.once.Do(l.probe)
	return l.selected, l.probeErr
}

func (l *Loader) probe() {
	logger := logging.Op()
	var errs []error
	for _, s := range l.strategies {
		err := s.Probe()
		if err == nil {
			l.selected = s
			logger.Info("loader strategy selected", "strategy", s.Name(), "rejected", len(errs))
			return
		}
		logger.Debug("loader strategy unavailable", "strategy", s.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	l.probeErr = fmt.Errorf("%w: %w", ErrNoStrategy, errors.Join(errs...))
	logger.Error("no loader strategy available", "error", l.probeErr)
}

// Load checks that the owner of a resolves in scope, defines a there, runs
// its static initialization and returns its constructor. Load fails with
// *LoadingError; the constructor fails with *InstantiationError.
func (l *Loader) Load(machine *vm.VM, scope *vm.Scope, a *Artifact) (Constructor, error) {
	if scope == nil {
		return nil, &LoadingError{Name: a.Name, Err: errScopeUnavailable}
	}
	if !scope.Alive() {
		return nil, &LoadingError{Name: a.Name, Err: fmt.Errorf("scope %q: %w", scope.Name, vm.ErrScopeClosed)}
	}
	if a.Owner != "" {
		if _, err := scope.LoadClass(a.Owner); err != nil {
			return nil, &LoadingError{Name: a.Name, Err: fmt.Errorf("owner %s is not visible from scope %q: %w", a.Owner, scope.Name, err)}
		}
	}
	s, err := l.Strategy()
	if err != nil {
		return nil, &LoadingError{Name: a.Name, Err: err}
	}

	c, err := s.Define(scope, a)
	if err != nil {
		return nil, &LoadingError{Name: a.Name, Strategy: s.Name(), Err: err}
	}
	if err := machine.Initialize(c); err != nil {
		return nil, &LoadingError{Name: a.Name, Strategy: s.Name(), Err: fmt.Errorf("static initialization: %w", err)}
	}

	return func() (*vm.JObject, error) {
		obj, err := machine.NewInstance(c)
		if err != nil {
			return nil, &InstantiationError{Name: a.Name, Err: err}
		}
		return obj, nil
	}, nil
}
