package types

import "fmt"

// pairSeen guards against infinite recursion unifying two recursive ADTs
// that reference each other, mirroring the teacher's typePair/visited
// tracking in internal/typesystem/unify.go.
type pairSeen struct {
	a, b string
}

// Unify computes the most general substitution making a and b equal,
// failing with an occurs-check error on infinite types. Dyn unifies with
// anything without constraining it further, implementing spec §4.T's
// gradual boundary between the dynamic and static levels.
func Unify(a, b Term) (Subst, error) {
	return unify(a, b, nil)
}

func unify(a, b Term, seen []pairSeen) (Subst, error) {
	if _, ok := a.(Dyn); ok {
		return Subst{}, nil
	}
	if _, ok := b.(Dyn); ok {
		return Subst{}, nil
	}
	if av, ok := a.(Var); ok {
		if bv, ok := b.(Var); ok && av.Name == bv.Name {
			return Subst{}, nil
		}
		return bind(av, b)
	}
	if bv, ok := b.(Var); ok {
		return bind(bv, a)
	}
	switch x := a.(type) {
	case Con:
		y, ok := b.(Con)
		if !ok || x.Name != y.Name || len(x.Args) != len(y.Args) {
			return nil, mismatch(a, b)
		}
		key := pairSeen{x.Name, y.Name}
		for _, p := range seen {
			if p == key {
				return Subst{}, nil
			}
		}
		seen = append(seen, key)
		return unifyList(x.Args, y.Args, seen)
	case Func:
		y, ok := b.(Func)
		if !ok || len(x.Params) != len(y.Params) {
			return nil, mismatch(a, b)
		}
		s, err := unifyList(x.Params, y.Params, seen)
		if err != nil {
			return nil, err
		}
		s2, err := unify(x.Result.Apply(s), y.Result.Apply(s), seen)
		if err != nil {
			return nil, err
		}
		return s.compose(s2), nil
	case Tuple:
		y, ok := b.(Tuple)
		if !ok || len(x.Elems) != len(y.Elems) {
			return nil, mismatch(a, b)
		}
		return unifyList(x.Elems, y.Elems, seen)
	case ADT:
		y, ok := b.(ADT)
		if !ok || x.TypeName != y.TypeName {
			return nil, mismatch(a, b)
		}
		return Subst{}, nil
	default:
		return nil, mismatch(a, b)
	}
}

func unifyList(as, bs []Term, seen []pairSeen) (Subst, error) {
	s := Subst{}
	for i := range as {
		s2, err := unify(as[i].Apply(s), bs[i].Apply(s), seen)
		if err != nil {
			return nil, err
		}
		s = s.compose(s2)
	}
	return s, nil
}

func bind(v Var, t Term) (Subst, error) {
	if tv, ok := t.(Var); ok && tv.Name == v.Name {
		return Subst{}, nil
	}
	if occurs(v.Name, t) {
		return nil, fmt.Errorf("occurs check failed: %s occurs in %s", v.Name, t.String())
	}
	return Subst{v.Name: t}, nil
}

// occurs reports whether name is free in t, preventing construction of
// an infinite type via e.g. unifying 'a with (List 'a).
func occurs(name string, t Term) bool {
	return t.FreeVars()[name]
}

func mismatch(a, b Term) error {
	return fmt.Errorf("type mismatch: %s is not %s", a.String(), b.String())
}
