package expr

import (
	"fmt"
	"math"

	"overlay-engine/feature/pricing"
)

// Env supplies prices and expected values to a running formula.
type Env interface {
	// Buy returns the active tier's buy price of an item, 0 if unknown.
	Buy(id int64) float64
	// Sell returns the active tier's sell price of an item, 0 if unknown.
	Sell(id int64) float64
	// Vendor returns the vendor value of an item, 0 if unknown.
	Vendor(id int64) float64
	// EV returns the expected (buy, sell) value of the table with the given key.
	EV(key string, taxPercent float64) (buy, sell float64)
}

// Bindings are the row values visible to a formula.
type Bindings struct {
	ID       int64
	Qty      float64
	Taxes    float64
	Category string
	Key      string
	Name     string
}

// Eval runs the program. Division by zero yields 0.
func (p *Program) Eval(env Env, b Bindings) (float64, error) {
	v, err := eval(p.root, env, b)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, nil
	}
	return v, nil
}

func eval(n node, env Env, b Bindings) (float64, error) {
	switch v := n.(type) {
	case numberLit:
		return v.value, nil
	case varRef:
		switch v.v {
		case VarID:
			return float64(b.ID), nil
		case VarQty:
			return b.Qty, nil
		case VarTaxes:
			return b.Taxes, nil
		}
		return 0, fmt.Errorf("%w: string variable in numeric position", ErrSyntax)
	case unary:
		x, err := eval(v.operand, env, b)
		return -x, err
	case binary:
		l, err := eval(v.left, env, b)
		if err != nil {
			return 0, err
		}
		r, err := eval(v.right, env, b)
		if err != nil {
			return 0, err
		}
		switch v.op {
		case '+':
			return l + r, nil
		case '-':
			return l - r, nil
		case '*':
			return l * r, nil
		case '/':
			if r == 0 {
				return 0, nil
			}
			return l / r, nil
		}
		return 0, fmt.Errorf("%w: operator %q", ErrSyntax, v.op)
	case call:
		return evalCall(v, env, b)
	case evAccess:
		key, err := evalString(v.key, b)
		if err != nil {
			return 0, err
		}
		tax, err := eval(v.tax, env, b)
		if err != nil {
			return 0, err
		}
		buy, sell := env.EV(key, tax)
		if v.side == SideBuy {
			return buy, nil
		}
		return sell, nil
	case stringLit:
		return 0, fmt.Errorf("%w: string %q in numeric position", ErrSyntax, v.value)
	}
	return 0, fmt.Errorf("%w: unknown node %T", ErrSyntax, n)
}

func evalCall(c call, env Env, b Bindings) (float64, error) {
	args := make([]float64, len(c.args))
	for i, a := range c.args {
		x, err := eval(a, env, b)
		if err != nil {
			return 0, err
		}
		args[i] = x
	}

	switch c.fn {
	case FnBuy:
		return env.Buy(int64(args[0])), nil
	case FnSell:
		return env.Sell(int64(args[0])), nil
	case FnVendor:
		return env.Vendor(int64(args[0])), nil
	case FnNet:
		return pricing.Net(args[0], args[1]), nil
	case FnQty:
		return b.Qty, nil
	case FnFallback:
		for _, x := range args {
			if x != 0 {
				return x, nil
			}
		}
		return 0, nil
	case FnFloor:
		return math.Floor(args[0]), nil
	case FnEV:
		return 0, fmt.Errorf("%w: EV requires .buy or .sell", ErrSyntax)
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownFunction, int(c.fn))
}

func evalString(n node, b Bindings) (string, error) {
	switch v := n.(type) {
	case stringLit:
		return v.value, nil
	case varRef:
		switch v.v {
		case VarCategory:
			return b.Category, nil
		case VarKey:
			return b.Key, nil
		case VarName:
			return b.Name, nil
		}
	}
	return "", fmt.Errorf("%w: expected string operand", ErrSyntax)
}

// ReferencedIDs returns the literal item ids passed to BUY, SELL and VENDOR,
// so callers can warm price caches before evaluation.
func (p *Program) ReferencedIDs() []int64 {
	var ids []int64
	var walk func(node)
	walk = func(n node) {
		switch v := n.(type) {
		case unary:
			walk(v.operand)
		case binary:
			walk(v.left)
			walk(v.right)
		case call:
			if v.fn == FnBuy || v.fn == FnSell || v.fn == FnVendor {
				if lit, ok := v.args[0].(numberLit); ok && lit.value > 0 {
					ids = append(ids, int64(lit.value))
				}
			}
			for _, a := range v.args {
				walk(a)
			}
		case evAccess:
			walk(v.tax)
		}
	}
	walk(p.root)
	return ids
}
