package spec

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/daimatz/invokergen/pkg/classfile"
	"github.com/daimatz/invokergen/pkg/invoker"
	"github.com/daimatz/invokergen/pkg/vm"
)

func TestParse(t *testing.T) {
	input := `
apiVersion: invokergen/v1
kind: Invoker
owner: com.example.Bean
method: test
params: [short]
classpath: classes
---
# empty document
---
invokers:
  - name: lookup
    owner: com.example.Bean
    method: id
    descriptor: "(J)J"
    classpath: /abs/classes
  - owner: com.example.Bean
    method: get
`
	ms, err := Parse(strings.NewReader(input), "/specs")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ms.Invokers) != 3 {
		t.Fatalf("got %d specs, want 3", len(ms.Invokers))
	}

	tests := []struct {
		label     string
		classpath string
	}{
		{"com.example.Bean.test", filepath.Join("/specs", "classes")},
		{"lookup", "/abs/classes"},
		{"com.example.Bean.get", ""},
	}
	for i, tt := range tests {
		s := ms.Invokers[i]
		if s.Label() != tt.label {
			t.Errorf("spec %d: label %s, want %s", i, s.Label(), tt.label)
		}
		if s.ClassPath != tt.classpath {
			t.Errorf("spec %d: classpath %s, want %s", i, s.ClassPath, tt.classpath)
		}
		if err := s.Validate(); err != nil {
			t.Errorf("spec %d: %v", i, err)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for name, input := range map[string]string{
		"empty":   "",
		"comment": "# nothing\n---\n",
		"syntax":  "owner: [\n",
	} {
		if _, err := Parse(strings.NewReader(input), "."); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invokers.yaml")
	if err := os.WriteFile(path, []byte("owner: a.B\nmethod: m\nclasspath: out\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ms, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if got := ms.Invokers[0].ClassPath; got != filepath.Join(dir, "out") {
		t.Errorf("classpath: got %s", got)
	}
	if _, err := ParseFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		spec InvokerSpec
	}{
		{"kind", InvokerSpec{Kind: "Function", Owner: "a.B", Method: "m"}},
		{"owner", InvokerSpec{Method: "m"}},
		{"method", InvokerSpec{Owner: "a.B"}},
		{"exclusive", InvokerSpec{Owner: "a.B", Method: "m", Params: []string{"int"}, Descriptor: "(I)V"}},
		{"bad type", InvokerSpec{Owner: "a.B", Method: "m", Params: []string{"in t"}}},
		{"void param", InvokerSpec{Owner: "a.B", Method: "m", Params: []string{"void"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.spec.Validate(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestResolve(t *testing.T) {
	scope := vm.NewScope(t.Name(), nil, nil)
	b := classfile.NewClassBuilder("com/example/Bean", "java/lang/Object", classfile.AccPublic|classfile.AccSuper)
	ret := &classfile.CodeAttribute{MaxStack: 0, MaxLocals: 1, Code: []byte{classfile.OpReturn}}
	b.Method(classfile.AccPublic|classfile.AccStatic, "test", "(S)V", ret)
	data, err := b.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := scope.DefineClass("com/example/Bean", data); err != nil {
		t.Fatal(err)
	}

	for _, s := range []InvokerSpec{
		{Owner: "com.example.Bean", Method: "test", Params: []string{"short"}},
		{Owner: "com.example.Bean", Method: "test", Descriptor: "(S)V"},
	} {
		d, err := s.Resolve(scope)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got, want := d.String(), "public static void com.example.Bean.test(short)"; got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	}

	missing := InvokerSpec{Owner: "com.example.Bean", Method: "test", Params: []string{"int"}}
	_, err = missing.Resolve(scope)
	var rerr *invoker.ResolutionError
	if !errors.As(err, &rerr) {
		t.Errorf("expected ResolutionError, got %v", err)
	}
}
