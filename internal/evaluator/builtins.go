package evaluator

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/akasaka-miraina/lambdust-sub001/internal/reader"
	"github.com/akasaka-miraina/lambdust-sub001/internal/syntax"
	"github.com/akasaka-miraina/lambdust-sub001/internal/token"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// InstallBuiltins wires every host-implemented primitive procedure into
// ev's global frame: numeric tower operations, pair/list operations,
// equality predicates, strings, vectors, records, I/O, and the handful
// of procedures (error, apply, map, for-each, force) that need access to
// the evaluator itself rather than being pure functions of their
// arguments.
func InstallBuiltins(ev *Evaluator) {
	def := func(name string, fn func(args []value.Value) (value.Value, error)) {
		ev.Global.Define(ev.Intern(name), &Primitive{Name: name, Fn: fn})
	}

	installNumeric(def)
	installPairs(def)
	installPredicates(def)
	installStrings(def, ev)
	installVectors(def)
	installIO(def, ev)
	installControlPrimitives(def, ev)
}

func arityErr(name string, want string, got int) error {
	return fmt.Errorf("%s: expects %s, got %d arguments", name, want, got)
}

func installNumeric(def func(string, func([]value.Value) (value.Value, error))) {
	def("+", func(args []value.Value) (value.Value, error) {
		var acc value.Value = value.Fixnum(0)
		for _, a := range args {
			v, err := value.Add(acc, a)
			if err != nil {
				return nil, err
			}
			acc = v
		}
		return acc, nil
	})
	def("*", func(args []value.Value) (value.Value, error) {
		var acc value.Value = value.Fixnum(1)
		for _, a := range args {
			v, err := value.Mul(acc, a)
			if err != nil {
				return nil, err
			}
			acc = v
		}
		return acc, nil
	})
	def("-", func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return nil, arityErr("-", "at least 1", 0)
		}
		if len(args) == 1 {
			return value.Sub(value.Fixnum(0), args[0])
		}
		acc := args[0]
		for _, a := range args[1:] {
			v, err := value.Sub(acc, a)
			if err != nil {
				return nil, err
			}
			acc = v
		}
		return acc, nil
	})
	def("/", func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return nil, arityErr("/", "at least 1", 0)
		}
		if len(args) == 1 {
			return value.Div(value.Fixnum(1), args[0])
		}
		acc := args[0]
		for _, a := range args[1:] {
			v, err := value.Div(acc, a)
			if err != nil {
				return nil, err
			}
			acc = v
		}
		return acc, nil
	})
	chain := func(name string, ok func(c int) bool) func([]value.Value) (value.Value, error) {
		return func(args []value.Value) (value.Value, error) {
			for i := 0; i+1 < len(args); i++ {
				c, err := value.Compare(args[i], args[i+1])
				if err != nil {
					return nil, err
				}
				if !ok(c) {
					return value.False, nil
				}
			}
			return value.True, nil
		}
	}
	def("<", chain("<", func(c int) bool { return c < 0 }))
	def(">", chain(">", func(c int) bool { return c > 0 }))
	def("<=", chain("<=", func(c int) bool { return c <= 0 }))
	def(">=", chain(">=", func(c int) bool { return c >= 0 }))
	def("=", func(args []value.Value) (value.Value, error) {
		for i := 0; i+1 < len(args); i++ {
			eq, err := value.NumEqual(args[i], args[i+1])
			if err != nil {
				return nil, err
			}
			if !eq {
				return value.False, nil
			}
		}
		return value.True, nil
	})
	def("quotient", func(args []value.Value) (value.Value, error) {
		q, _, err := value.QuotientRemainder(args[0], args[1])
		return q, err
	})
	def("remainder", func(args []value.Value) (value.Value, error) {
		_, r, err := value.QuotientRemainder(args[0], args[1])
		return r, err
	})
	def("modulo", func(args []value.Value) (value.Value, error) { return value.Modulo(args[0], args[1]) })
	def("sqrt", func(args []value.Value) (value.Value, error) { return value.Sqrt(args[0]) })
	def("exact", func(args []value.Value) (value.Value, error) { return value.Exact(args[0]) })
	def("inexact", func(args []value.Value) (value.Value, error) { return value.Inexact(args[0]) })
	def("make-rectangular", func(args []value.Value) (value.Value, error) { return value.MakeRectangular(args[0], args[1]) })
	def("zero?", func(args []value.Value) (value.Value, error) {
		c, err := value.Compare(args[0], value.Fixnum(0))
		return value.Bool(err == nil && c == 0), nil
	})
	def("number?", func(args []value.Value) (value.Value, error) { return value.Bool(value.IsNumber(args[0])), nil })
	def("exact?", func(args []value.Value) (value.Value, error) { return value.Bool(value.IsExact(args[0])), nil })
	def("abs", func(args []value.Value) (value.Value, error) {
		c, err := value.Compare(args[0], value.Fixnum(0))
		if err != nil {
			return nil, err
		}
		if c >= 0 {
			return args[0], nil
		}
		return value.Sub(value.Fixnum(0), args[0])
	})
	def("min", func(args []value.Value) (value.Value, error) { return extremum(args, "min", -1) })
	def("max", func(args []value.Value) (value.Value, error) { return extremum(args, "max", 1) })
}

// extremum implements min/max: want is the sign of Compare(candidate,
// best) that should replace the running best (-1 picks the smallest,
// +1 the largest).
func extremum(args []value.Value, name string, want int) (value.Value, error) {
	if len(args) == 0 {
		return nil, arityErr(name, "at least 1", 0)
	}
	best := args[0]
	inexact := !value.IsExact(best)
	for _, a := range args[1:] {
		if !value.IsExact(a) {
			inexact = true
		}
		c, err := value.Compare(a, best)
		if err != nil {
			return nil, err
		}
		if c == want {
			best = a
		}
	}
	if inexact && value.IsExact(best) {
		return value.Inexact(best)
	}
	return best, nil
}

func installPairs(def func(string, func([]value.Value) (value.Value, error))) {
	def("cons", func(args []value.Value) (value.Value, error) { return value.Cons(args[0], args[1]), nil })
	def("car", func(args []value.Value) (value.Value, error) {
		p, ok := args[0].(*value.Pair)
		if !ok {
			return nil, fmt.Errorf("car: not a pair")
		}
		return p.Car, nil
	})
	def("cdr", func(args []value.Value) (value.Value, error) {
		p, ok := args[0].(*value.Pair)
		if !ok {
			return nil, fmt.Errorf("cdr: not a pair")
		}
		return p.Cdr, nil
	})
	def("set-car!", func(args []value.Value) (value.Value, error) {
		p, ok := args[0].(*value.Pair)
		if !ok {
			return nil, fmt.Errorf("set-car!: not a pair")
		}
		p.Car = args[1]
		return value.Unspecified, nil
	})
	def("set-cdr!", func(args []value.Value) (value.Value, error) {
		p, ok := args[0].(*value.Pair)
		if !ok {
			return nil, fmt.Errorf("set-cdr!: not a pair")
		}
		p.Cdr = args[1]
		return value.Unspecified, nil
	})
	def("list", func(args []value.Value) (value.Value, error) { return value.List(args...), nil })
	def("length", func(args []value.Value) (value.Value, error) {
		n := value.ListLength(args[0])
		if n < 0 {
			return nil, fmt.Errorf("length: not a proper list")
		}
		return value.Fixnum(n), nil
	})
	def("append", func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Nil, nil
		}
		var all []value.Value
		for _, a := range args[:len(args)-1] {
			s, err := value.ToSlice(a)
			if err != nil {
				return nil, err
			}
			all = append(all, s...)
		}
		result := args[len(args)-1]
		for i := len(all) - 1; i >= 0; i-- {
			result = value.Cons(all[i], result)
		}
		return result, nil
	})
	def("reverse", func(args []value.Value) (value.Value, error) {
		s, err := value.ToSlice(args[0])
		if err != nil {
			return nil, err
		}
		var result value.Value = value.Nil
		for _, v := range s {
			result = value.Cons(v, result)
		}
		return result, nil
	})
	def("memv", memberBy(value.Eqv))
	def("memq", memberBy(value.Eq))
	def("member", func(args []value.Value) (value.Value, error) { return memberBy(value.Equal)(args) })
	def("assv", assocBy(value.Eqv))
	def("assq", assocBy(value.Eq))
	def("assoc", assocBy(value.Equal))
}

// memberBy returns a `member`-family primitive parameterized over the
// comparison predicate (memq uses eq?, memv uses eqv?, member uses
// equal?).
func memberBy(same func(a, b value.Value) bool) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		cur := args[1]
		for {
			p, ok := cur.(*value.Pair)
			if !ok {
				return value.False, nil
			}
			if same(args[0], p.Car) {
				return p, nil
			}
			cur = p.Cdr
		}
	}
}

// assocBy returns an `assoc`-family primitive parameterized over the
// comparison predicate, searching an association list's entry keys
// (each entry's car).
func assocBy(same func(a, b value.Value) bool) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		cur := args[1]
		for {
			p, ok := cur.(*value.Pair)
			if !ok {
				return value.False, nil
			}
			entry, ok := p.Car.(*value.Pair)
			if ok && same(args[0], entry.Car) {
				return entry, nil
			}
			cur = p.Cdr
		}
	}
}

func installPredicates(def func(string, func([]value.Value) (value.Value, error))) {
	def("eq?", func(args []value.Value) (value.Value, error) { return value.Bool(value.Eq(args[0], args[1])), nil })
	def("eqv?", func(args []value.Value) (value.Value, error) { return value.Bool(value.Eqv(args[0], args[1])), nil })
	def("equal?", func(args []value.Value) (value.Value, error) { return value.Bool(value.Equal(args[0], args[1])), nil })
	def("not", func(args []value.Value) (value.Value, error) { return value.Bool(!value.Truthy(args[0])), nil })
	def("null?", func(args []value.Value) (value.Value, error) { return value.Bool(args[0].Tag() == value.TagNil), nil })
	def("pair?", func(args []value.Value) (value.Value, error) { _, ok := args[0].(*value.Pair); return value.Bool(ok), nil })
	def("list?", func(args []value.Value) (value.Value, error) { return value.Bool(value.IsList(args[0])), nil })
	def("symbol?", func(args []value.Value) (value.Value, error) { return value.Bool(args[0].Tag() == value.TagSymbol), nil })
	def("string?", func(args []value.Value) (value.Value, error) { return value.Bool(args[0].Tag() == value.TagString), nil })
	def("boolean?", func(args []value.Value) (value.Value, error) { return value.Bool(args[0].Tag() == value.TagBoolean), nil })
	def("procedure?", func(args []value.Value) (value.Value, error) {
		switch args[0].(type) {
		case *Closure, *CaseLambda, *Primitive, *value.Parameter:
			return value.True, nil
		default:
			_, ok := args[0].(value.ContinuationProc)
			return value.Bool(ok), nil
		}
	})
	def("vector?", func(args []value.Value) (value.Value, error) { return value.Bool(args[0].Tag() == value.TagVector), nil })
	def("char?", func(args []value.Value) (value.Value, error) { return value.Bool(args[0].Tag() == value.TagChar), nil })
	def("error-object?", func(args []value.Value) (value.Value, error) {
		_, ok := args[0].(*ErrorObject)
		return value.Bool(ok), nil
	})
	def("even?", func(args []value.Value) (value.Value, error) {
		_, r, err := value.QuotientRemainder(args[0], value.Fixnum(2))
		if err != nil {
			return nil, err
		}
		c, err := value.Compare(r, value.Fixnum(0))
		return value.Bool(err == nil && c == 0), nil
	})
	def("odd?", func(args []value.Value) (value.Value, error) {
		_, r, err := value.QuotientRemainder(args[0], value.Fixnum(2))
		if err != nil {
			return nil, err
		}
		c, err := value.Compare(r, value.Fixnum(0))
		return value.Bool(err == nil && c != 0), nil
	})
	def("positive?", func(args []value.Value) (value.Value, error) {
		c, err := value.Compare(args[0], value.Fixnum(0))
		return value.Bool(err == nil && c > 0), nil
	})
	def("negative?", func(args []value.Value) (value.Value, error) {
		c, err := value.Compare(args[0], value.Fixnum(0))
		return value.Bool(err == nil && c < 0), nil
	})
}

func installStrings(def func(string, func([]value.Value) (value.Value, error)), ev *Evaluator) {
	def("string-append", func(args []value.Value) (value.Value, error) {
		out := ""
		for _, a := range args {
			s, ok := a.(*value.String)
			if !ok {
				return nil, fmt.Errorf("string-append: not a string")
			}
			out += s.Go()
		}
		return value.NewString(out), nil
	})
	def("string-length", func(args []value.Value) (value.Value, error) {
		s, ok := args[0].(*value.String)
		if !ok {
			return nil, fmt.Errorf("string-length: not a string")
		}
		return value.Fixnum(len(s.Runes)), nil
	})
	def("string-ref", func(args []value.Value) (value.Value, error) {
		s, ok := args[0].(*value.String)
		if !ok {
			return nil, fmt.Errorf("string-ref: not a string")
		}
		i, ok := args[1].(value.Fixnum)
		if !ok || int(i) < 0 || int(i) >= len(s.Runes) {
			return nil, fmt.Errorf("string-ref: index out of range")
		}
		return value.Char(s.Runes[i]), nil
	})
	def("string->symbol", func(args []value.Value) (value.Value, error) {
		s, ok := args[0].(*value.String)
		if !ok {
			return nil, fmt.Errorf("string->symbol: not a string")
		}
		return value.NewSymbol(ev.Interner, s.Go()), nil
	})
	def("symbol->string", func(args []value.Value) (value.Value, error) {
		s, ok := args[0].(value.Symbol)
		if !ok {
			return nil, fmt.Errorf("symbol->string: not a symbol")
		}
		return value.NewString(s.Name()), nil
	})
	def("string->list", func(args []value.Value) (value.Value, error) {
		s, ok := args[0].(*value.String)
		if !ok {
			return nil, fmt.Errorf("string->list: not a string")
		}
		out := make([]value.Value, len(s.Runes))
		for i, r := range s.Runes {
			out[i] = value.Char(r)
		}
		return value.List(out...), nil
	})
	def("list->string", func(args []value.Value) (value.Value, error) {
		s, err := value.ToSlice(args[0])
		if err != nil {
			return nil, err
		}
		runes := make([]rune, len(s))
		for i, v := range s {
			c, ok := v.(value.Char)
			if !ok {
				return nil, fmt.Errorf("list->string: not a list of characters")
			}
			runes[i] = rune(c)
		}
		return &value.String{Runes: runes}, nil
	})
	def("string-copy", func(args []value.Value) (value.Value, error) {
		s, ok := args[0].(*value.String)
		if !ok {
			return nil, fmt.Errorf("string-copy: not a string")
		}
		start, end := 0, len(s.Runes)
		if len(args) > 1 {
			n, ok := args[1].(value.Fixnum)
			if !ok {
				return nil, fmt.Errorf("string-copy: start must be an exact integer")
			}
			start = int(n)
		}
		if len(args) > 2 {
			n, ok := args[2].(value.Fixnum)
			if !ok {
				return nil, fmt.Errorf("string-copy: end must be an exact integer")
			}
			end = int(n)
		}
		if start < 0 || end > len(s.Runes) || start > end {
			return nil, fmt.Errorf("string-copy: index out of range")
		}
		runes := make([]rune, end-start)
		copy(runes, s.Runes[start:end])
		return &value.String{Runes: runes}, nil
	})
}

func installVectors(def func(string, func([]value.Value) (value.Value, error))) {
	def("vector", func(args []value.Value) (value.Value, error) {
		elems := make([]value.Value, len(args))
		copy(elems, args)
		return value.NewVector(elems), nil
	})
	def("make-vector", func(args []value.Value) (value.Value, error) {
		n, ok := args[0].(value.Fixnum)
		if !ok {
			return nil, fmt.Errorf("make-vector: not a length")
		}
		fill := value.Value(value.Unspecified)
		if len(args) > 1 {
			fill = args[1]
		}
		elems := make([]value.Value, int(n))
		for i := range elems {
			elems[i] = fill
		}
		return value.NewVector(elems), nil
	})
	def("vector-length", func(args []value.Value) (value.Value, error) {
		v, ok := args[0].(*value.Vector)
		if !ok {
			return nil, fmt.Errorf("vector-length: not a vector")
		}
		return value.Fixnum(len(v.Elements)), nil
	})
	def("vector-ref", func(args []value.Value) (value.Value, error) {
		v, ok := args[0].(*value.Vector)
		if !ok {
			return nil, fmt.Errorf("vector-ref: not a vector")
		}
		i, ok := args[1].(value.Fixnum)
		if !ok || int(i) < 0 || int(i) >= len(v.Elements) {
			return nil, fmt.Errorf("vector-ref: index out of range")
		}
		return v.Elements[i], nil
	})
	def("vector-set!", func(args []value.Value) (value.Value, error) {
		v, ok := args[0].(*value.Vector)
		if !ok {
			return nil, fmt.Errorf("vector-set!: not a vector")
		}
		i, ok := args[1].(value.Fixnum)
		if !ok || int(i) < 0 || int(i) >= len(v.Elements) {
			return nil, fmt.Errorf("vector-set!: index out of range")
		}
		v.Elements[i] = args[2]
		return value.Unspecified, nil
	})
	def("vector->list", func(args []value.Value) (value.Value, error) {
		v, ok := args[0].(*value.Vector)
		if !ok {
			return nil, fmt.Errorf("vector->list: not a vector")
		}
		return value.List(v.Elements...), nil
	})
	def("list->vector", func(args []value.Value) (value.Value, error) {
		s, err := value.ToSlice(args[0])
		if err != nil {
			return nil, err
		}
		return value.NewVector(s), nil
	})
	def("vector-fill!", func(args []value.Value) (value.Value, error) {
		v, ok := args[0].(*value.Vector)
		if !ok {
			return nil, fmt.Errorf("vector-fill!: not a vector")
		}
		for i := range v.Elements {
			v.Elements[i] = args[1]
		}
		return value.Unspecified, nil
	})
	def("vector-copy", func(args []value.Value) (value.Value, error) {
		v, ok := args[0].(*value.Vector)
		if !ok {
			return nil, fmt.Errorf("vector-copy: not a vector")
		}
		start, end := 0, len(v.Elements)
		if len(args) > 1 {
			n, ok := args[1].(value.Fixnum)
			if !ok {
				return nil, fmt.Errorf("vector-copy: start must be an exact integer")
			}
			start = int(n)
		}
		if len(args) > 2 {
			n, ok := args[2].(value.Fixnum)
			if !ok {
				return nil, fmt.Errorf("vector-copy: end must be an exact integer")
			}
			end = int(n)
		}
		if start < 0 || end > len(v.Elements) || start > end {
			return nil, fmt.Errorf("vector-copy: index out of range")
		}
		elems := make([]value.Value, end-start)
		copy(elems, v.Elements[start:end])
		return value.NewVector(elems), nil
	})
}

// currentOutputPort, currentInputPort, and currentErrorPort are
// R7RS-standard parameter objects (spec §4.X's Parameter, not ordinary
// globals) so `parameterize` can rebind them for a dynamic extent —
// e.g. redirecting display's destination inside a (parameterize
// ((current-output-port p)) ...) block — exactly like every other
// Scheme parameter.
var (
	currentOutputPort, _ = value.NewParameter(value.NewTextualOutputPort("stdout", os.Stdout), nil)
	currentInputPort, _  = value.NewParameter(value.NewTextualInputPort("stdin", os.Stdin), nil)
	currentErrorPort, _  = value.NewParameter(value.NewTextualOutputPort("stderr", os.Stderr), nil)
)

func installIO(def func(string, func([]value.Value) (value.Value, error)), ev *Evaluator) {
	ev.Global.Define(ev.Intern("current-output-port"), currentOutputPort)
	ev.Global.Define(ev.Intern("current-input-port"), currentInputPort)
	ev.Global.Define(ev.Intern("current-error-port"), currentErrorPort)

	def("display", func(args []value.Value) (value.Value, error) {
		port := outputPort(args, 1, topPort(currentOutputPort))
		fmt.Fprint(port.Writer, args[0].Display())
		return value.Unspecified, nil
	})
	def("write", func(args []value.Value) (value.Value, error) {
		port := outputPort(args, 1, topPort(currentOutputPort))
		fmt.Fprint(port.Writer, args[0].Write())
		return value.Unspecified, nil
	})
	def("write-string", func(args []value.Value) (value.Value, error) {
		s, ok := args[0].(*value.String)
		if !ok {
			return nil, fmt.Errorf("write-string: not a string")
		}
		port := outputPort(args, 1, topPort(currentOutputPort))
		fmt.Fprint(port.Writer, s.Go())
		return value.Unspecified, nil
	})
	def("newline", func(args []value.Value) (value.Value, error) {
		port := outputPort(args, 0, topPort(currentOutputPort))
		fmt.Fprintln(port.Writer)
		return value.Unspecified, nil
	})
	def("open-output-string", func(args []value.Value) (value.Value, error) { return value.NewStringOutputPort(), nil })
	def("get-output-string", func(args []value.Value) (value.Value, error) {
		p, ok := args[0].(*value.StringOutputPort)
		if !ok {
			return nil, fmt.Errorf("get-output-string: not a string output port")
		}
		return value.NewString(p.String()), nil
	})

	def("read-line", func(args []value.Value) (value.Value, error) {
		port := inputPort(args, 0, topPort(currentInputPort))
		line, err := port.BufferedReader().ReadString('\n')
		if err != nil && line == "" {
			return value.EOFObject, nil
		}
		return value.NewString(strings.TrimSuffix(line, "\n")), nil
	})
	// read consumes the rest of the port's bytes and parses only the
	// first top-level datum; the minimal reader (§1.1) has no
	// incremental re-parse support, so a second read on the same port
	// after the first sees EOF rather than the datum that followed.
	// Fine for the common "read one datum from a freshly opened port"
	// pattern; a streaming reader is future work, not attempted here.
	def("read", func(args []value.Value) (value.Value, error) {
		port := inputPort(args, 0, topPort(currentInputPort))
		text, err := io.ReadAll(port.BufferedReader())
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(string(text)) == "" {
			return value.EOFObject, nil
		}
		program, err := reader.Read("<read>", string(text))
		if err != nil {
			return nil, err
		}
		if len(program.Forms) == 0 {
			return value.EOFObject, nil
		}
		return datumToValue(syntax.Wrap(program.Forms[0], syntax.ScopeSet{})), nil
	})
	def("close-port", func(args []value.Value) (value.Value, error) { return closePort(args) })
	def("close-input-port", func(args []value.Value) (value.Value, error) { return closePort(args) })
	def("close-output-port", func(args []value.Value) (value.Value, error) { return closePort(args) })
	def("call-with-port", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return nil, arityErr("call-with-port", "2", len(args))
		}
		result, err := ev.Apply(args[1], []value.Value{args[0]}, token.Span{})
		if _, cerr := closePort(args[:1]); cerr != nil && err == nil {
			return nil, cerr
		}
		return result, err
	})
}

func closePort(args []value.Value) (value.Value, error) {
	p, ok := args[0].(*value.Port)
	if !ok {
		return nil, fmt.Errorf("close-port: not a port")
	}
	p.Closed = true
	if c, ok := p.Writer.(io.Closer); ok {
		return value.Unspecified, c.Close()
	}
	if c, ok := p.Reader.(io.Closer); ok {
		return value.Unspecified, c.Close()
	}
	return value.Unspecified, nil
}

// topPort reads a Parameter's dynamically-current value as a Port,
// i.e. the port `parameterize` has currently bound current-output-port/
// current-input-port/current-error-port to.
func topPort(p *value.Parameter) *value.Port {
	return p.Stack[len(p.Stack)-1].(*value.Port)
}

func outputPort(args []value.Value, idx int, fallback *value.Port) *value.Port {
	if len(args) <= idx {
		return fallback
	}
	if p, ok := args[idx].(*value.Port); ok {
		return p
	}
	if sp, ok := args[idx].(*value.StringOutputPort); ok {
		return sp.Port
	}
	return fallback
}

func inputPort(args []value.Value, idx int, fallback *value.Port) *value.Port {
	if len(args) <= idx {
		return fallback
	}
	if p, ok := args[idx].(*value.Port); ok {
		return p
	}
	return fallback
}

func installControlPrimitives(def func(string, func([]value.Value) (value.Value, error)), ev *Evaluator) {
	def("apply", func(args []value.Value) (value.Value, error) {
		if len(args) < 2 {
			return nil, arityErr("apply", "at least 2", len(args))
		}
		last, err := value.ToSlice(args[len(args)-1])
		if err != nil {
			return nil, err
		}
		callArgs := append(append([]value.Value{}, args[1:len(args)-1]...), last...)
		return ev.Apply(args[0], callArgs, token.Span{})
	})
	def("map", func(args []value.Value) (value.Value, error) {
		proc := args[0]
		lists := make([][]value.Value, len(args)-1)
		n := -1
		for i, l := range args[1:] {
			s, err := value.ToSlice(l)
			if err != nil {
				return nil, err
			}
			lists[i] = s
			if n == -1 || len(s) < n {
				n = len(s)
			}
		}
		out := make([]value.Value, n)
		for i := 0; i < n; i++ {
			callArgs := make([]value.Value, len(lists))
			for j, l := range lists {
				callArgs[j] = l[i]
			}
			v, err := ev.Apply(proc, callArgs, token.Span{})
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return value.List(out...), nil
	})
	def("for-each", func(args []value.Value) (value.Value, error) {
		proc := args[0]
		lists := make([][]value.Value, len(args)-1)
		n := -1
		for i, l := range args[1:] {
			s, err := value.ToSlice(l)
			if err != nil {
				return nil, err
			}
			lists[i] = s
			if n == -1 || len(s) < n {
				n = len(s)
			}
		}
		for i := 0; i < n; i++ {
			callArgs := make([]value.Value, len(lists))
			for j, l := range lists {
				callArgs[j] = l[i]
			}
			if _, err := ev.Apply(proc, callArgs, token.Span{}); err != nil {
				return nil, err
			}
		}
		return value.Unspecified, nil
	})
	def("force", func(args []value.Value) (value.Value, error) {
		p, ok := args[0].(*value.Promise)
		if !ok {
			return args[0], nil
		}
		if !p.Forced {
			v, err := p.Thunk()
			if err != nil {
				return nil, err
			}
			p.Val, p.Forced, p.Thunk = v, true, nil
		}
		return p.Val, nil
	})
	def("make-parameter", func(args []value.Value) (value.Value, error) {
		var conv func(value.Value) (value.Value, error)
		if len(args) > 1 {
			converter := args[1]
			conv = func(v value.Value) (value.Value, error) { return ev.Apply(converter, []value.Value{v}, token.Span{}) }
		}
		return value.NewParameter(args[0], conv)
	})
	def("error", func(args []value.Value) (value.Value, error) {
		msg := ""
		if len(args) > 0 {
			if s, ok := args[0].(*value.String); ok {
				msg = s.Go()
			} else {
				msg = args[0].Display()
			}
		}
		obj := &ErrorObject{Message: msg, Irritants: append([]value.Value{}, args[1:]...)}
		return ev.raise(obj, false, token.Span{})
	})
	def("error-object-message", func(args []value.Value) (value.Value, error) {
		e, ok := args[0].(*ErrorObject)
		if !ok {
			return nil, fmt.Errorf("error-object-message: not an error object")
		}
		return value.NewString(e.Message), nil
	})
	def("error-object-irritants", func(args []value.Value) (value.Value, error) {
		e, ok := args[0].(*ErrorObject)
		if !ok {
			return nil, fmt.Errorf("error-object-irritants: not an error object")
		}
		return value.List(e.Irritants...), nil
	})
}

// ErrorObject is the condition raised by the `error` procedure (spec:
// "error-object?/error-object-message/error-object-irritants").
type ErrorObject struct {
	Message   string
	Irritants []value.Value
}

func (e *ErrorObject) Tag() value.Tag { return value.TagRecord }

func (e *ErrorObject) Write() string {
	s := fmt.Sprintf("#<error %q", e.Message)
	for _, irr := range e.Irritants {
		s += " " + irr.Write()
	}
	return s + ">"
}

func (e *ErrorObject) Display() string { return e.Write() }
