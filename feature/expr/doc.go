// Package expr implements the small formula language used by calculation rules.
//
// Grammar: numeric and string literals, identifiers, binary + - * / with the usual
// precedence (all left-associative), parenthesized groups, calls NAME(args...) and
// one property form, EV(key, taxes).buy / EV(key, taxes).sell.
//
// Variables: Id, AverageAmount (alias QTY), taxes, and the string-only Category, Key
// and Name, which may only appear as the first argument of EV.
//
// Functions: BUY(id), SELL(id), VENDOR(id), NET(value, taxPercent), QTY(),
// FALLBACK(x1, ...), FLOOR(x), EV(key, taxPercent).
//
// Programs are parsed once by a lexer and a precedence-climbing parser into a tree
// that is walked at evaluation time. Division by zero evaluates to 0.
package expr
