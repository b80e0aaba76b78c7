package types

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	floatPattern = regexp.MustCompile(`^-?\d+\.\d*$`)
	intPattern   = regexp.MustCompile(`^-?\d+$`)
)

// Parse parses the textual form of a value, as it appears in a `const`
// instruction operand. A leading `|` or `:` begins a string literal (the
// prefix is stripped); `nil`, `true` and `false` parse as the matching
// constant; a token matching floatPattern parses as F64, intPattern as I64;
// anything else is reported as an unknown value.
func Parse(s string) (Value, error) {
	switch s {
	case "":
		return nil, fmt.Errorf("unknown value: empty string")
	case "nil":
		return Nil, nil
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	}

	switch s[0] {
	case '|', ':':
		return Str(s[1:]), nil
	}

	if floatPattern.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse float: %w", err)
		}
		return F64(f), nil
	}
	if intPattern.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse int: %w", err)
		}
		return I64(n), nil
	}
	return nil, fmt.Errorf("unknown value: %s", s)
}

// Display formats v the way Parse expects to read it back, for the subset of
// values that round-trip (I64, F64 without a trailing dot, Bool, Nil).
func Display(v Value) string { return v.String() }
