package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/daimatz/invokergen/pkg/classfile"
	"github.com/daimatz/invokergen/pkg/invoker"
)

const pubSuper = classfile.AccPublic | classfile.AccSuper

func code(maxStack, maxLocals uint16, a *classfile.Asm) *classfile.CodeAttribute {
	return &classfile.CodeAttribute{MaxStack: maxStack, MaxLocals: maxLocals, Code: a.Code}
}

// writeClass encodes b below dir at the path of its class name.
func writeClass(t *testing.T, dir string, b *classfile.ClassBuilder) string {
	t.Helper()
	cf, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	name, err := cf.ClassName()
	if err != nil {
		t.Fatal(err)
	}
	data, err := classfile.Write(cf)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, filepath.FromSlash(name)+".class")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeCalc writes
//
//	public class com.example.Calc {
//	    public Calc() {}
//	    public static int add(int a, int b) { return a + b; }
//	    public int get() { return 1; }
//	    public static String echo(String s) { return s; }
//	}
func writeCalc(t *testing.T, dir string) string {
	t.Helper()
	b := classfile.NewClassBuilder("com/example/Calc", "java/lang/Object", pubSuper)
	init := b.Pool.Methodref("java/lang/Object", "<init>", "()V")
	b.Method(classfile.AccPublic, "<init>", "()V", code(1, 1, (&classfile.Asm{}).
		Op(classfile.OpAload0).U16(classfile.OpInvokespecial, init).Op(classfile.OpReturn)))
	b.Method(classfile.AccPublic|classfile.AccStatic, "add", "(II)I", code(2, 2, (&classfile.Asm{}).
		Op(classfile.OpIload0, classfile.OpIload1, classfile.OpIadd, classfile.OpIreturn)))
	b.Method(classfile.AccPublic, "get", "()I", code(1, 1, (&classfile.Asm{}).
		Op(classfile.OpIconst1, classfile.OpIreturn)))
	b.Method(classfile.AccPublic|classfile.AccStatic, "echo", "(Ljava/lang/String;)Ljava/lang/String;", code(1, 1, (&classfile.Asm{}).
		Op(classfile.OpAload0, classfile.OpAreturn)))
	return writeClass(t, dir, b)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	b := classfile.NewClassBuilder("Hello", "java/lang/Object", pubSuper)
	field := b.Pool.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")
	println := b.Pool.Methodref("java/io/PrintStream", "println", "(I)V")
	b.Method(classfile.AccPublic|classfile.AccStatic, "main", "([Ljava/lang/String;)V", code(2, 1, (&classfile.Asm{}).
		U16(classfile.OpGetstatic, field).U8(classfile.OpBipush, 42).U16(classfile.OpInvokevirtual, println).
		Op(classfile.OpReturn)))
	path := writeClass(t, dir, b)

	out, err := execute(t, "run", path)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "42\n" {
		t.Errorf("output: got %q, want %q", out, "42\n")
	}
}

func TestCall(t *testing.T) {
	dir := t.TempDir()
	writeCalc(t, dir)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"static", []string{"com.example.Calc", "add", "-p", "int", "-p", "int", "2", "3"}, "5\n"},
		{"descriptor", []string{"com.example.Calc", "add", "--descriptor", "(II)I", "0x10", "1"}, "17\n"},
		{"instance", []string{"com.example.Calc", "get"}, "1\n"},
		{"string", []string{"com.example.Calc", "echo", "-p", "java.lang.String", "hi"}, "hi\n"},
		{"stable naming", []string{"--naming", "stable", "com.example.Calc", "get"}, "1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"call", "--classpath", dir}, tt.args...)...)
			if err != nil {
				t.Fatalf("call: %v", err)
			}
			if out != tt.want {
				t.Errorf("output: got %q, want %q", out, tt.want)
			}
		})
	}

	t.Run("repeat", func(t *testing.T) {
		out, err := execute(t, "call", "--classpath", dir, "-n", "10", "com.example.Calc", "add", "-p", "int", "-p", "int", "1", "1")
		if err != nil {
			t.Fatalf("call: %v", err)
		}
		if !strings.HasPrefix(out, "2\n10 calls via com.example.Calc$") {
			t.Errorf("output: %q", out)
		}
	})

	errs := [][]string{
		{"com.example.Calc", "add", "-p", "int", "-p", "int", "1"},
		{"com.example.Calc", "add", "-p", "int", "-p", "int", "1", "x"},
		{"com.example.Calc", "missing"},
		{"--naming", "random", "com.example.Calc", "get"},
		{"-n", "0", "com.example.Calc", "get"},
	}
	for _, args := range errs {
		if _, err := execute(t, append([]string{"call", "--classpath", dir}, args...)...); err == nil {
			t.Errorf("call %v: expected an error", args)
		}
	}
}

func TestGen(t *testing.T) {
	dir := t.TempDir()
	classes := filepath.Join(dir, "classes")
	writeCalc(t, classes)
	specFile := filepath.Join(dir, "invokers.yaml")
	content := `owner: com.example.Calc
method: add
params: [int, int]
classpath: classes
---
name: getter
owner: com.example.Calc
method: get
classpath: classes
`
	if err := os.WriteFile(specFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out")

	stdout, err := execute(t, "--naming", "stable", "gen", "-f", specFile, "-o", out)
	if err != nil {
		t.Fatalf("gen: %v\n%s", err, stdout)
	}
	for _, want := range []string{"com.example.Calc.add", "getter", "com.example.Calc$add$int$int", "com.example.Calc$get"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("report lacks %q:\n%s", want, stdout)
		}
	}
	for _, name := range []string{"Calc$add$int$int.class", "Calc$add$int$int.asm", "Calc$get.class"} {
		if _, err := os.Stat(filepath.Join(out, "com", "example", name)); err != nil {
			t.Error(err)
		}
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("owner: com.example.Calc\nmethod: missing\nclasspath: classes\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if stdout, err := execute(t, "gen", "-f", bad); err == nil {
		t.Errorf("expected a failure:\n%s", stdout)
	}

	for _, j := range []string{"0", "-1"} {
		if _, err := execute(t, "gen", "-f", specFile, "--concurrency="+j); err == nil || !strings.Contains(err.Error(), "--concurrency") {
			t.Errorf("--concurrency=%s: expected an error, got %v", j, err)
		}
	}
}

func TestDisasm(t *testing.T) {
	path := writeCalc(t, t.TempDir())
	out, err := execute(t, "disasm", path)
	if err != nil {
		t.Fatalf("disasm: %v", err)
	}
	for _, want := range []string{"class com/example/Calc", "iadd", "ireturn"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeCalc(t, dir)
	cfgFile := filepath.Join(dir, "invokergen.toml")
	content := "naming = \"stable\"\nclasspath = \"" + filepath.ToSlash(dir) + "\"\n"
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "--config", cfgFile, "call", "-n", "2", "com.example.Calc", "get")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "via com.example.Calc$get,") {
		t.Errorf("expected the stable name in %q", out)
	}
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		typ  invoker.Type
		in   string
		want interface{}
	}{
		{invoker.Boolean, "true", true},
		{invoker.Char, "x", uint16('x')},
		{invoker.Byte, "-8", int8(-8)},
		{invoker.Short, "300", int16(300)},
		{invoker.Int, "0x10", int32(16)},
		{invoker.Long, "1099511627776", int64(1 << 40)},
		{invoker.Float, "1.5", float32(1.5)},
		{invoker.Double, "2.25", 2.25},
		{invoker.String, "hello", "hello"},
		{invoker.Object, "any", "any"},
		{invoker.Reference("com/example/Bean"), "null", nil},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			got, err := parseArg(tt.typ, tt.in)
			if err != nil {
				t.Fatalf("parseArg: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}

	for _, bad := range []struct {
		typ invoker.Type
		in  string
	}{
		{invoker.Byte, "200"},
		{invoker.Char, "xy"},
		{invoker.Boolean, "maybe"},
		{invoker.Reference("com/example/Bean"), "bean"},
	} {
		if _, err := parseArg(bad.typ, bad.in); err == nil {
			t.Errorf("parseArg(%s, %q): expected an error", bad.typ, bad.in)
		}
	}
}
