package vm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/daimatz/invokergen/pkg/classfile"
)

var (
	// ErrScopeClosed is returned when defining into a scope that was closed.
	ErrScopeClosed = errors.New("vm: scope closed")
	// ErrDuplicateClass is returned when a scope already holds a class of the same name.
	ErrDuplicateClass = errors.New("vm: duplicate class definition")
	// ErrClassNotFound is returned when no scope in the chain can supply a class.
	ErrClassNotFound = errors.New("vm: class not found")
	// ErrProhibitedName is returned when defining a class in a reserved package.
	ErrProhibitedName = errors.New("vm: prohibited package name")
)

// Scope is a class loading scope: a namespace of runtime classes with
// parent-first delegation. Classes defined in a scope are visible to
// classes of that scope and its children.
type Scope struct {
	Name   string
	parent *Scope
	source ClassLoader

	mu      sync.Mutex
	classes map[string]*Class
	closed  atomic.Bool
	sealed  bool
}

// NewScope creates a scope delegating to parent, or to the bootstrap scope
// when parent is nil. source, if non-nil, supplies class files on demand.
func NewScope(name string, parent *Scope, source ClassLoader) *Scope {
	if parent == nil {
		parent = Bootstrap()
	}
	return &Scope{
		Name:    name,
		parent:  parent,
		source:  source,
		classes: make(map[string]*Class),
	}
}

// Parent returns the delegation parent, nil for the bootstrap scope.
func (s *Scope) Parent() *Scope { return s.parent }

// Alive reports whether the scope still accepts definitions.
func (s *Scope) Alive() bool { return !s.closed.Load() }

// Close stops the scope from accepting new definitions. Classes already
// defined stay usable.
func (s *Scope) Close() { s.closed.Store(true) }

// LoadClass resolves a class by binary name: the parent chain first, then
// classes defined here, then the scope's class file source.
func (s *Scope) LoadClass(name string) (*Class, error) {
	if strings.HasPrefix(name, "[") {
		return nil, fmt.Errorf("load %s: array classes have no runtime class: %w", name, ErrClassNotFound)
	}
	if s.parent != nil {
		c, err := s.parent.LoadClass(name)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrClassNotFound) {
			return nil, err
		}
	}

	if c := s.FindLoadedClass(name); c != nil {
		return c, nil
	}
	if s.source == nil {
		return nil, fmt.Errorf("load %s: %w", name, ErrClassNotFound)
	}

	cf, err := s.source.LoadClass(name)
	if err != nil {
		return nil, err
	}
	c, err := s.define(cf, true)
	if errors.Is(err, ErrDuplicateClass) {
		// lost a concurrent load race
		if c := s.FindLoadedClass(name); c != nil {
			return c, nil
		}
	}
	return c, err
}

// FindLoadedClass returns the class of that name defined in this scope, or nil.
func (s *Scope) FindLoadedClass(name string) *Class {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classes[name]
}

// DefineClass parses, links and registers a class from its encoded bytes.
// The bytes must declare name.
func (s *Scope) DefineClass(name string, data []byte) (*Class, error) {
	if !s.Alive() {
		return nil, fmt.Errorf("define %s: %w", name, ErrScopeClosed)
	}
	cf, err := classfile.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("define %s: %w", name, err)
	}
	declared, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("define %s: %w", name, err)
	}
	if declared != name {
		return nil, fmt.Errorf("define %s: class file declares %s", name, declared)
	}
	return s.DefineParsed(cf)
}

// DefineParsed links and registers an already parsed class file.
func (s *Scope) DefineParsed(cf *classfile.ClassFile) (*Class, error) {
	return s.define(cf, false)
}

func (s *Scope) define(cf *classfile.ClassFile, fromSource bool) (*Class, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("define: %w", err)
	}
	if !fromSource && !s.Alive() {
		return nil, fmt.Errorf("define %s: %w", name, ErrScopeClosed)
	}
	if s.sealed {
		return nil, fmt.Errorf("define %s: bootstrap scope is sealed: %w", name, ErrProhibitedName)
	}
	if strings.HasPrefix(name, "java/") {
		return nil, fmt.Errorf("define %s: %w", name, ErrProhibitedName)
	}
	if s.FindLoadedClass(name) != nil {
		return nil, fmt.Errorf("define %s in scope %q: %w", name, s.Name, ErrDuplicateClass)
	}

	c, err := linkClass(s, cf)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !fromSource && s.closed.Load() {
		return nil, fmt.Errorf("define %s: %w", name, ErrScopeClosed)
	}
	if _, dup := s.classes[name]; dup {
		return nil, fmt.Errorf("define %s in scope %q: %w", name, s.Name, ErrDuplicateClass)
	}
	s.classes[name] = c
	return c, nil
}

// ClassNames returns the names of the classes defined in this scope, sorted.
func (s *Scope) ClassNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.classes))
	for name := range s.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
