package registry

import "fmt"

// Comparison selects how Count compares an alarm priority with the requested one.
type Comparison uint8

// Supported comparisons.
const (
	Equal Comparison = iota
	NotEqual
	Greater
	GreaterOrEqual
	Less
	LessOrEqual
)

//nolint:gochecknoglobals // Lookup table.
var comparisonSymbols = [...]string{"==", "!=", ">", ">=", "<", "<="}

// String returns the operator symbol.
func (c Comparison) String() string {
	if int(c) >= len(comparisonSymbols) {
		return fmt.Sprintf("comparison(%d)", uint8(c))
	}

	return comparisonSymbols[c]
}

// holds reports whether "a <op> b" is true.
func (c Comparison) holds(a, b int) bool {
	switch c {
	case Equal:
		return a == b
	case NotEqual:
		return a != b
	case Greater:
		return a > b
	case GreaterOrEqual:
		return a >= b
	case Less:
		return a < b
	case LessOrEqual:
		return a <= b
	default:
		return false
	}
}
