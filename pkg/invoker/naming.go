package invoker

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NamingPolicy derives the binary name of the class generated for a
// descriptor. Names are dotted, e.g. "com.example.Bean$test$short".
type NamingPolicy interface {
	NameFor(d Descriptor) string
}

// StableNaming names a class after the owner, the method and one label per
// parameter. The same descriptor always gets the same name, so a second
// definition in the same scope collides.
type StableNaming struct{}

func (StableNaming) NameFor(d Descriptor) string {
	var sb strings.Builder
	sb.WriteString(ownerPrefix(d))
	sb.WriteByte('$')
	sb.WriteString(d.Name())
	for _, p := range d.params {
		sb.WriteByte('$')
		sb.WriteString(p.Label())
	}
	return sb.String()
}

func (StableNaming) String() string { return "stable" }

// UniqueNaming inserts a time-ordered UUIDv7 between the owner and the
// method name. Names never repeat within a process.
type UniqueNaming struct{}

func (UniqueNaming) NameFor(d Descriptor) string {
	id := uuid.Must(uuid.NewV7())
	return ownerPrefix(d) + "$" + hex.EncodeToString(id[:]) + "$" + d.Name()
}

func (UniqueNaming) String() string { return "unique" }

// DefaultNaming is used by factories configured without a policy.
var DefaultNaming NamingPolicy = UniqueNaming{}

// NamingByName maps a configuration value to a policy. The empty string
// selects DefaultNaming.
func NamingByName(name string) (NamingPolicy, error) {
	switch strings.ToLower(name) {
	case "":
		return DefaultNaming, nil
	case "unique":
		return UniqueNaming{}, nil
	case "stable":
		return StableNaming{}, nil
	}
	return nil, fmt.Errorf("unknown naming policy %q (want unique or stable)", name)
}

// ownerPrefix is the owner's binary name, with a leading '$' for owners
// in the reserved java package, where classes cannot be defined.
func ownerPrefix(d Descriptor) string {
	owner := d.Owner().ClassName()
	if strings.HasPrefix(owner, "java.") {
		return "$" + owner
	}
	return owner
}

// namingLabel is the metric label of a policy.
func namingLabel(p NamingPolicy) string {
	if s, ok := p.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", p)
}

// internalName converts a dotted binary name to its slash form.
func internalName(binaryName string) string {
	return strings.ReplaceAll(binaryName, ".", "/")
}
