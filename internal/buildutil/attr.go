// Package buildutil extracts typed arguments from buildtools call
// expressions.
//
// Extraction is strict: an argument of the wrong type is an error naming
// the function, the argument and the source line, so MODULE.bazel mistakes
// surface instead of silently reading as zero values.
package buildutil

import (
	"fmt"
	"strconv"

	"github.com/bazelbuild/buildtools/build"
)

// Call is a function or method call statement.
type Call struct {
	*build.CallExpr

	// Func is the called name: "bazel_dep" for bazel_dep(...), "download"
	// for go_sdk.download(...).
	Func string
	// Receiver is the identifier a method is called on, empty for plain
	// function calls.
	Receiver string
}

// AsCall recognizes f(...) and x.f(...) calls. Other expressions, including
// calls on computed receivers, are not calls for our purposes.
func AsCall(expr build.Expr) (Call, bool) {
	call, ok := expr.(*build.CallExpr)
	if !ok {
		return Call{}, false
	}
	switch fn := call.X.(type) {
	case *build.Ident:
		return Call{CallExpr: call, Func: fn.Name}, true
	case *build.DotExpr:
		recv, ok := fn.X.(*build.Ident)
		if !ok {
			return Call{}, false
		}
		return Call{CallExpr: call, Func: fn.Name, Receiver: recv.Name}, true
	}
	return Call{}, false
}

// Line returns the 1-based line the call starts on.
func (c Call) Line() int {
	start, _ := c.CallExpr.Span()
	return start.Line
}

func (c Call) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s(): %s", c.Line(), c.Func, fmt.Sprintf(format, args...))
}

// Kwarg returns the expression passed for the keyword argument name.
func (c Call) Kwarg(name string) (build.Expr, bool) {
	for _, arg := range c.List {
		assign, ok := arg.(*build.AssignExpr)
		if !ok {
			continue
		}
		if lhs, ok := assign.LHS.(*build.Ident); ok && lhs.Name == name {
			return assign.RHS, true
		}
	}
	return nil, false
}

// Kwargs returns the keyword arguments in source order.
func (c Call) Kwargs() []*build.AssignExpr {
	var out []*build.AssignExpr
	for _, arg := range c.List {
		if assign, ok := arg.(*build.AssignExpr); ok {
			out = append(out, assign)
		}
	}
	return out
}

// Positional returns the positional arguments in source order.
func (c Call) Positional() []build.Expr {
	var out []build.Expr
	for _, arg := range c.List {
		if _, ok := arg.(*build.AssignExpr); !ok {
			out = append(out, arg)
		}
	}
	return out
}

// String returns a string argument, taken from the keyword name or, when
// pos is non-negative and no keyword is given, from that positional slot.
// def is returned when the argument is absent.
func (c Call) String(name string, pos int, def string) (string, error) {
	expr, ok := c.arg(name, pos)
	if !ok {
		return def, nil
	}
	s, ok := expr.(*build.StringExpr)
	if !ok {
		return "", c.errorf("%s must be a string", name)
	}
	return s.Value, nil
}

// Int returns an integer keyword argument, or def when absent.
func (c Call) Int(name string, def int) (int, error) {
	expr, ok := c.Kwarg(name)
	if !ok {
		return def, nil
	}
	if n, ok := intValue(expr); ok {
		return n, nil
	}
	return 0, c.errorf("%s must be an int", name)
}

// Bool returns a boolean keyword argument, or false when absent.
func (c Call) Bool(name string) (bool, error) {
	expr, ok := c.Kwarg(name)
	if !ok {
		return false, nil
	}
	if id, ok := expr.(*build.Ident); ok {
		switch id.Name {
		case "True":
			return true, nil
		case "False":
			return false, nil
		}
	}
	return false, c.errorf("%s must be a bool", name)
}

// StringList returns a list-of-strings keyword argument, or nil when absent.
func (c Call) StringList(name string) ([]string, error) {
	expr, ok := c.Kwarg(name)
	if !ok {
		return nil, nil
	}
	list, ok := expr.(*build.ListExpr)
	if !ok {
		return nil, c.errorf("%s must be a list of strings", name)
	}
	out := make([]string, 0, len(list.List))
	for _, elem := range list.List {
		s, ok := elem.(*build.StringExpr)
		if !ok {
			return nil, c.errorf("%s must be a list of strings", name)
		}
		out = append(out, s.Value)
	}
	return out, nil
}

func (c Call) arg(name string, pos int) (build.Expr, bool) {
	if expr, ok := c.Kwarg(name); ok {
		return expr, true
	}
	if pos < 0 {
		return nil, false
	}
	positional := c.Positional()
	if pos < len(positional) {
		return positional[pos], true
	}
	return nil, false
}

func intValue(expr build.Expr) (int, bool) {
	switch e := expr.(type) {
	case *build.LiteralExpr:
		n, err := strconv.Atoi(e.Token)
		return n, err == nil
	case *build.UnaryExpr:
		if e.Op != "-" {
			return 0, false
		}
		n, ok := intValue(e.X)
		return -n, ok
	}
	return 0, false
}

// ExtractValue converts a literal expression to a Go value: strings, ints,
// booleans, None (nil), lists and string-keyed dicts. Anything else is
// returned as its formatted source text.
func ExtractValue(expr build.Expr) any {
	switch e := expr.(type) {
	case *build.StringExpr:
		return e.Value
	case *build.LiteralExpr, *build.UnaryExpr:
		if n, ok := intValue(e); ok {
			return n
		}
	case *build.Ident:
		switch e.Name {
		case "True":
			return true
		case "False":
			return false
		case "None":
			return nil
		}
	case *build.ListExpr:
		out := make([]any, 0, len(e.List))
		for _, item := range e.List {
			out = append(out, ExtractValue(item))
		}
		return out
	case *build.DictExpr:
		out := make(map[string]any, len(e.List))
		for _, kv := range e.List {
			if key, ok := kv.Key.(*build.StringExpr); ok {
				out[key.Value] = ExtractValue(kv.Value)
			}
		}
		return out
	}
	return build.FormatString(expr)
}
