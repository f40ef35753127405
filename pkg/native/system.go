package native

import (
	"fmt"
	"io"
	"sync"
)

// PrintStream represents a java.io.PrintStream.
type PrintStream struct {
	mu     sync.Mutex
	Writer io.Writer
}

// Println prints a value followed by a newline.
func (ps *PrintStream) Println(args ...interface{}) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if len(args) == 0 {
		fmt.Fprintln(ps.Writer)
		return
	}
	fmt.Fprintln(ps.Writer, args[0])
}

// Print prints a value without a newline.
func (ps *PrintStream) Print(arg interface{}) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	fmt.Fprint(ps.Writer, arg)
}
