package expr

import "strings"

// Func is a built-in function of the formula language.
type Func int

const (
	FnBuy Func = iota
	FnSell
	FnVendor
	FnNet
	FnQty
	FnFallback
	FnFloor
	FnEV
)

var funcNames = map[string]Func{
	"BUY":      FnBuy,
	"SELL":     FnSell,
	"VENDOR":   FnVendor,
	"NET":      FnNet,
	"QTY":      FnQty,
	"FALLBACK": FnFallback,
	"FLOOR":    FnFloor,
	"EV":       FnEV,
}

func (f Func) String() string {
	for name, fn := range funcNames {
		if fn == f {
			return name
		}
	}
	return "?"
}

// arity returns the accepted argument count range; max < 0 means variadic.
func (f Func) arity() (min, max int) {
	switch f {
	case FnBuy, FnSell, FnVendor, FnFloor:
		return 1, 1
	case FnNet, FnEV:
		return 2, 2
	case FnQty:
		return 0, 0
	case FnFallback:
		return 1, -1
	}
	return 0, 0
}

// Var is a bound variable.
type Var int

const (
	VarID Var = iota
	VarQty
	VarTaxes
	VarCategory
	VarKey
	VarName
)

func lookupVar(name string) (Var, bool) {
	switch strings.ToLower(name) {
	case "id":
		return VarID, true
	case "averageamount", "qty":
		return VarQty, true
	case "taxes":
		return VarTaxes, true
	case "category":
		return VarCategory, true
	case "key":
		return VarKey, true
	case "name":
		return VarName, true
	}
	return 0, false
}

func (v Var) isString() bool {
	return v == VarCategory || v == VarKey || v == VarName
}

// Side selects one half of an EV pair.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

type node interface{ isNode() }

type numberLit struct{ value float64 }

type stringLit struct{ value string }

type varRef struct{ v Var }

type unary struct{ operand node }

type binary struct {
	op          byte
	left, right node
}

type call struct {
	fn   Func
	args []node
}

// evAccess is EV(key, taxes).buy or EV(key, taxes).sell.
type evAccess struct {
	key  node
	tax  node
	side Side
}

func (numberLit) isNode() {}
func (stringLit) isNode() {}
func (varRef) isNode()    {}
func (unary) isNode()     {}
func (binary) isNode()    {}
func (call) isNode()      {}
func (evAccess) isNode()  {}
