package invoker

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirSink(t *testing.T) {
	a := assemble(t, staticDesc("test", Void, Short), "com.example.Bean$test$short")
	tests := []struct {
		name  string
		trace bool
	}{
		{"class only", false},
		{"with trace", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := (DirSink{Dir: dir, Trace: tt.trace}).Record(a); err != nil {
				t.Fatalf("Record: %v", err)
			}
			base := filepath.Join(dir, "com", "example", "Bean$test$short")
			data, err := os.ReadFile(base + ".class")
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(data, a.Bytes) {
				t.Error("dumped bytes differ from the artifact")
			}
			trace, err := os.ReadFile(base + ".asm")
			if !tt.trace {
				if !os.IsNotExist(err) {
					t.Errorf("unexpected trace file: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(trace), "invokestatic") {
				t.Errorf("trace lacks the call:\n%s", trace)
			}
		})
	}
}

func TestDirSinkFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	a := assemble(t, staticDesc("count", Int), "com.example.Bean$count")
	if err := (DirSink{Dir: file}).Record(a); err == nil {
		t.Error("expected an error when the location is a file")
	}
}
