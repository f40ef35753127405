package classfile

import (
	"fmt"
	"strings"
)

// ParseMethodDescriptor splits a method descriptor such as
// "(I[JLjava/lang/String;)V" into its parameter field descriptors and its
// return descriptor.
func ParseMethodDescriptor(descriptor string) ([]string, string, error) {
	if !strings.HasPrefix(descriptor, "(") {
		return nil, "", fmt.Errorf("invalid method descriptor: %s", descriptor)
	}
	end := strings.IndexByte(descriptor, ')')
	if end == -1 {
		return nil, "", fmt.Errorf("invalid method descriptor: %s", descriptor)
	}

	params := descriptor[1:end]
	var out []string
	for i := 0; i < len(params); {
		n, err := fieldDescriptorLen(params[i:])
		if err != nil {
			return nil, "", fmt.Errorf("%w in %s", err, descriptor)
		}
		out = append(out, params[i:i+n])
		i += n
	}

	ret := descriptor[end+1:]
	if ret != "V" {
		n, err := fieldDescriptorLen(ret)
		if err != nil || n != len(ret) {
			return nil, "", fmt.Errorf("invalid return type in %s", descriptor)
		}
	}
	return out, ret, nil
}

// fieldDescriptorLen returns the length of the field descriptor at the start of s.
func fieldDescriptorLen(s string) (int, error) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return 0, fmt.Errorf("truncated type descriptor")
	}
	switch s[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1, nil
	case 'L':
		semi := strings.IndexByte(s[i:], ';')
		if semi <= 1 {
			return 0, fmt.Errorf("unterminated class type descriptor")
		}
		return i + semi + 1, nil
	}
	return 0, fmt.Errorf("invalid type descriptor char '%c'", s[i])
}

// SlotSize returns the number of local variable / operand stack slots a value
// of the given field descriptor occupies: 2 for long and double, 0 for void.
func SlotSize(descriptor string) int {
	switch descriptor {
	case "J", "D":
		return 2
	case "V", "":
		return 0
	}
	return 1
}

// ArgSlots returns the total slot size of a method's parameters.
func ArgSlots(descriptor string) (int, error) {
	params, _, err := ParseMethodDescriptor(descriptor)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range params {
		n += SlotSize(p)
	}
	return n, nil
}
