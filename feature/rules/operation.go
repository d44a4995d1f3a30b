package rules

import (
	"fmt"
	"strings"
)

// Operation is the aggregation applied to a table's rows to build its TOTAL row.
type Operation int

const (
	// OpUnset means no operation has been configured or discovered.
	OpUnset Operation = iota
	OpSum
	OpAvg
	OpMin
	OpMax
)

// String returns the stored name of the operation.
func (o Operation) String() string {
	switch o {
	case OpUnset:
		return ""
	case OpSum:
		return "SUM"
	case OpAvg:
		return "AVG"
	case OpMin:
		return "MIN"
	case OpMax:
		return "MAX"
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// ParseOperation parses a stored operation name, case-insensitively.
func ParseOperation(s string) (Operation, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return OpUnset, true
	case "SUM":
		return OpSum, true
	case "AVG", "AVERAGE":
		return OpAvg, true
	case "MIN":
		return OpMin, true
	case "MAX":
		return OpMax, true
	}
	return OpUnset, false
}
