package value

import "fmt"

// Pair is the mutable cons cell. set-car!/set-cdr! mutate Car/Cdr
// directly, matching the teacher's Object pair variant
// (internal/evaluator/object.go) rather than a persistent/immutable cell.
type Pair struct {
	Car Value
	Cdr Value
}

func Cons(car, cdr Value) *Pair { return &Pair{Car: car, Cdr: cdr} }

func (p *Pair) Tag() Tag { return TagPair }

func (p *Pair) Write() string   { return writePair(p, (Value).Write) }
func (p *Pair) Display() string { return writePair(p, (Value).Display) }

func writePair(p *Pair, render func(Value) string) string {
	s := "("
	var cur Value = p
	first := true
	seen := map[*Pair]bool{}
	for {
		cp, ok := cur.(*Pair)
		if !ok {
			break
		}
		if seen[cp] {
			s += " ..."
			return s + ")"
		}
		seen[cp] = true
		if !first {
			s += " "
		}
		first = false
		s += render(cp.Car)
		cur = cp.Cdr
	}
	if _, isNil := cur.(NilValue); !isNil {
		s += " . " + render(cur)
	}
	return s + ")"
}

// List builds a proper list from the given values.
func List(vs ...Value) Value {
	var result Value = Nil
	for i := len(vs) - 1; i >= 0; i-- {
		result = Cons(vs[i], result)
	}
	return result
}

// ToSlice collects a proper list into a Go slice. It returns an error if
// the list is improper (does not terminate in Nil).
func ToSlice(v Value) ([]Value, error) {
	var out []Value
	for {
		switch n := v.(type) {
		case NilValue:
			return out, nil
		case *Pair:
			out = append(out, n.Car)
			v = n.Cdr
		default:
			return nil, fmt.Errorf("improper list")
		}
	}
}

// ListLength returns the length of a proper list, or -1 if v is not a
// proper list (used by the evaluator to validate argument lists and by
// `length`).
func ListLength(v Value) int {
	n := 0
	for {
		switch t := v.(type) {
		case NilValue:
			return n
		case *Pair:
			n++
			v = t.Cdr
		default:
			return -1
		}
	}
}

// IsList reports whether v is a proper, finite list, using Floyd's
// tortoise-and-hare to terminate on circular lists (spec: equal?/list
// operations must terminate on cyclic data).
func IsList(v Value) bool {
	slow, fast := v, v
	for {
		fp, ok := fast.(*Pair)
		if !ok {
			_, isNil := fast.(NilValue)
			return isNil
		}
		fast = fp.Cdr
		fp2, ok := fast.(*Pair)
		if !ok {
			_, isNil := fast.(NilValue)
			return isNil
		}
		fast = fp2.Cdr
		sp := slow.(*Pair)
		slow = sp.Cdr
		if slow == fast {
			return false
		}
	}
}
