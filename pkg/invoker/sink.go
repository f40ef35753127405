package invoker

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/daimatz/invokergen/pkg/classfile"
)

// Sink records generated artifacts for diagnosis. Failures are reported
// to the caller of Record but never fail invoker creation.
type Sink interface {
	Record(a *Artifact) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(a *Artifact) error

func (f SinkFunc) Record(a *Artifact) error { return f(a) }

// DirSink writes each artifact to Dir, at the path given by its name with
// dots as separators: a.b.C$x becomes Dir/a/b/C$x.class. With Trace set, a
// disassembly is written beside it as C$x.asm.
type DirSink struct {
	Dir   string
	Trace bool
}

func (s DirSink) Record(a *Artifact) error {
	base := filepath.Join(s.Dir, filepath.FromSlash(a.InternalName()))
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	if err := os.WriteFile(base+".class", a.Bytes, 0o644); err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	if !s.Trace {
		return nil
	}

	trace, err := Trace(a)
	if err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	if err := os.WriteFile(base+".asm", trace, 0o644); err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	return nil
}

// Trace returns the disassembly of an artifact.
func Trace(a *Artifact) ([]byte, error) {
	cf, err := classfile.ParseBytes(a.Bytes)
	if err != nil {
		return nil, fmt.Errorf("trace %s: %w", a.Name, err)
	}
	var buf bytes.Buffer
	if err := classfile.Disassemble(&buf, cf); err != nil {
		return nil, fmt.Errorf("trace %s: %w", a.Name, err)
	}
	return buf.Bytes(), nil
}
