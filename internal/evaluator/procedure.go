package evaluator

import (
	"fmt"

	"github.com/akasaka-miraina/lambdust-sub001/internal/syntax"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// Closure is a user-defined procedure captured by lambda/named-lambda.
// Body is kept as []syntax.Datum (not []ast.Node) so that a closure
// created inside a macro expansion retains the hygiene scope sets
// stamped onto its body forms; re-deriving them from a bare ast.Node
// would silently lose hygiene across a second round of expansion.
type Closure struct {
	Name   string
	Params []string
	Rest   string
	Body   []syntax.Datum
	Env    *value.Frame
}

func (c *Closure) Tag() value.Tag { return value.TagProcedure }

func (c *Closure) Write() string {
	if c.Name != "" {
		return fmt.Sprintf("#<procedure %s>", c.Name)
	}
	return "#<procedure>"
}

func (c *Closure) Display() string     { return c.Write() }
func (c *Closure) ProcedureName() string { return c.Name }

// Arity reports the minimum and maximum argument count c accepts; max is
// -1 when c has a rest parameter.
func (c *Closure) Arity() (min, max int) {
	if c.Rest != "" {
		return len(c.Params), -1
	}
	return len(c.Params), len(c.Params)
}

// CaseLambda is a case-lambda procedure: a set of Closures dispatched by
// argument count (spec: "case-lambda: arity-dispatched procedure").
type CaseLambda struct {
	Name    string
	Clauses []*Closure
}

func (cl *CaseLambda) Tag() value.Tag { return value.TagProcedure }

func (cl *CaseLambda) Write() string {
	if cl.Name != "" {
		return fmt.Sprintf("#<procedure %s>", cl.Name)
	}
	return "#<procedure>"
}

func (cl *CaseLambda) Display() string     { return cl.Write() }
func (cl *CaseLambda) ProcedureName() string { return cl.Name }

// Select returns the first clause whose arity accepts argc arguments, or
// nil if none does.
func (cl *CaseLambda) Select(argc int) *Closure {
	for _, c := range cl.Clauses {
		min, max := c.Arity()
		if argc >= min && (max == -1 || argc <= max) {
			return c
		}
	}
	return nil
}

// Primitive is a host-implemented procedure wired directly to Go code
// (arithmetic, pairs, strings, I/O, ...); see builtins.go.
type Primitive struct {
	Name string
	Fn   func(args []value.Value) (value.Value, error)
}

func (p *Primitive) Tag() value.Tag        { return value.TagProcedure }
func (p *Primitive) Write() string         { return fmt.Sprintf("#<primitive %s>", p.Name) }
func (p *Primitive) Display() string       { return p.Write() }
func (p *Primitive) ProcedureName() string { return p.Name }
