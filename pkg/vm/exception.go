package vm

import (
	"errors"
	"fmt"
)

// Well-known exception classes raised by the VM itself.
const (
	ClassCastException             = "java/lang/ClassCastException"
	NullPointerException           = "java/lang/NullPointerException"
	ArithmeticException            = "java/lang/ArithmeticException"
	ArrayIndexOutOfBoundsException = "java/lang/ArrayIndexOutOfBoundsException"
	NegativeArraySizeException     = "java/lang/NegativeArraySizeException"
	ArrayStoreException            = "java/lang/ArrayStoreException"
)

// messageField is the field holding a Throwable's detail message.
const messageField = "detailMessage"

// JavaException represents a JVM exception being thrown.
type JavaException struct {
	Object *JObject
}

func (e *JavaException) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("JavaException: %s: %s", e.Object.ClassName(), msg)
	}
	return fmt.Sprintf("JavaException: %s", e.Object.ClassName())
}

// ClassName returns the class of the thrown object.
func (e *JavaException) ClassName() string {
	return e.Object.ClassName()
}

// Message returns the Throwable's detail message, "" if none.
func (e *JavaException) Message() string {
	if s, ok := e.Object.GetField(messageField).Ref.(string); ok {
		return s
	}
	return ""
}

// NewJavaException creates an exception of a bootstrap Throwable class.
func NewJavaException(className string) *JavaException {
	c, err := Bootstrap().LoadClass(className)
	if err != nil {
		// unknown names still produce a throwable that handlers can match by name
		c = &Class{Name: className, Super: mustBootstrap("java/lang/RuntimeException")}
	}
	return &JavaException{Object: NewObject(c)}
}

// newJavaExceptionf creates a bootstrap exception carrying a detail message.
func newJavaExceptionf(className, format string, args ...interface{}) *JavaException {
	e := NewJavaException(className)
	e.Object.SetField(messageField, RefValue(fmt.Sprintf(format, args...)))
	return e
}

// IsJavaException reports whether err carries a thrown exception of class
// className or one of its subclasses.
func IsJavaException(err error, className string) bool {
	var je *JavaException
	if !errors.As(err, &je) {
		return false
	}
	for c := je.Object.Class; c != nil; c = c.Super {
		if c.Name == className {
			return true
		}
	}
	return false
}

// IsClassCast reports whether err is a ClassCastException.
func IsClassCast(err error) bool {
	return IsJavaException(err, ClassCastException)
}

// IsNullPointer reports whether err is a NullPointerException.
func IsNullPointer(err error) bool {
	return IsJavaException(err, NullPointerException)
}
