package spec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/daimatz/invokergen/pkg/invoker"
	"github.com/daimatz/invokergen/pkg/vm"
)

// InvokerSpec describes one invoker to generate.
type InvokerSpec struct {
	// API version for future compatibility
	APIVersion string `yaml:"apiVersion,omitempty"`
	// Kind is always "Invoker"
	Kind string `yaml:"kind,omitempty"`

	Name string `yaml:"name,omitempty"` // label used in reports; defaults to owner.method

	// Target method
	Owner      string   `yaml:"owner"`                // e.g. com.example.Bean
	Method     string   `yaml:"method"`               // method name
	Params     []string `yaml:"params,omitempty"`     // parameter types in source spelling
	Descriptor string   `yaml:"descriptor,omitempty"` // JVM method descriptor, exclusive with params

	// Directory holding the owner's class files, relative to the spec file
	ClassPath string `yaml:"classpath,omitempty"`
}

// MultiSpec holds multiple invoker specs from a single file
type MultiSpec struct {
	Invokers []InvokerSpec
}

// ParseFile parses a YAML file containing one or more invoker specs
func ParseFile(path string) (*MultiSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return Parse(f, filepath.Dir(path))
}

// Parse parses YAML content containing one or more invoker specs. A
// document may also hold a list of specs under "invokers".
func Parse(r io.Reader, baseDir string) (*MultiSpec, error) {
	decoder := yaml.NewDecoder(r)
	var specs []InvokerSpec

	for {
		var doc struct {
			InvokerSpec `yaml:",inline"`
			Invokers    []InvokerSpec `yaml:"invokers,omitempty"`
		}
		err := decoder.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}

		for _, s := range append([]InvokerSpec{doc.InvokerSpec}, doc.Invokers...) {
			// Skip empty documents
			if s.Owner == "" && s.Method == "" {
				continue
			}
			if s.ClassPath != "" && !filepath.IsAbs(s.ClassPath) {
				s.ClassPath = filepath.Join(baseDir, s.ClassPath)
			}
			specs = append(specs, s)
		}
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("no valid invoker specs found")
	}

	return &MultiSpec{Invokers: specs}, nil
}

// Validate validates an invoker spec
func (s *InvokerSpec) Validate() error {
	if s.Kind != "" && s.Kind != "Invoker" {
		return fmt.Errorf("invalid kind: %s (want Invoker)", s.Kind)
	}
	if s.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if s.Method == "" {
		return fmt.Errorf("method is required")
	}
	if s.Descriptor != "" && len(s.Params) > 0 {
		return fmt.Errorf("%s: params and descriptor are exclusive", s.Label())
	}
	if _, err := s.ParamTypes(); err != nil {
		return fmt.Errorf("%s: %w", s.Label(), err)
	}
	return nil
}

// Label returns the name of the spec, or owner.method when unnamed.
func (s *InvokerSpec) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Owner + "." + s.Method
}

// ParamTypes parses the parameter types.
func (s *InvokerSpec) ParamTypes() ([]invoker.Type, error) {
	types := make([]invoker.Type, 0, len(s.Params))
	for i, p := range s.Params {
		t, err := invoker.ParseType(p)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		if t.IsVoid() {
			return nil, fmt.Errorf("param %d: void is not a parameter type", i)
		}
		types = append(types, t)
	}
	return types, nil
}

// Resolve looks the target method up in scope.
func (s *InvokerSpec) Resolve(scope *vm.Scope) (invoker.Descriptor, error) {
	if err := s.Validate(); err != nil {
		return invoker.Descriptor{}, err
	}
	if s.Descriptor != "" {
		return invoker.ResolveDescriptor(scope, s.Owner, s.Method, s.Descriptor)
	}
	params, err := s.ParamTypes()
	if err != nil {
		return invoker.Descriptor{}, err
	}
	return invoker.Resolve(scope, s.Owner, s.Method, params...)
}
