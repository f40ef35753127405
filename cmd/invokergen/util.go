package main

import (
	"fmt"
	"strconv"
	"unicode/utf16"

	"github.com/daimatz/invokergen/pkg/invoker"
)

// parseArg converts a command line argument to a Go value boxing to t.
func parseArg(t invoker.Type, s string) (interface{}, error) {
	switch t.Kind() {
	case invoker.KindBoolean:
		return strconv.ParseBool(s)
	case invoker.KindChar:
		units := utf16.Encode([]rune(s))
		if len(units) != 1 {
			return nil, fmt.Errorf("char: %q is not a single UTF-16 unit", s)
		}
		return units[0], nil
	case invoker.KindByte:
		v, err := strconv.ParseInt(s, 0, 8)
		return int8(v), err
	case invoker.KindShort:
		v, err := strconv.ParseInt(s, 0, 16)
		return int16(v), err
	case invoker.KindInt:
		v, err := strconv.ParseInt(s, 0, 32)
		return int32(v), err
	case invoker.KindLong:
		return strconv.ParseInt(s, 0, 64)
	case invoker.KindFloat:
		v, err := strconv.ParseFloat(s, 32)
		return float32(v), err
	case invoker.KindDouble:
		return strconv.ParseFloat(s, 64)
	}
	if s == "null" {
		return nil, nil
	}
	if t == invoker.String || t.IsObject() {
		return s, nil
	}
	return nil, fmt.Errorf("cannot build a %s from the command line; pass null", t)
}
