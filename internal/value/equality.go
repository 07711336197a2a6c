package value

// Eq implements R7RS `eq?`: identity comparison for heap-allocated
// variants, value comparison for the inline scalars spec §4.V says are
// stored without heap allocation (Boolean, Char, Fixnum, Symbol, Nil,
// Unspecified, EOF).
func Eq(a, b Value) bool {
	switch x := a.(type) {
	case NilValue:
		_, ok := b.(NilValue)
		return ok
	case UnspecifiedValue:
		_, ok := b.(UnspecifiedValue)
		return ok
	case EOFValue:
		_, ok := b.(EOFValue)
		return ok
	case Boolean:
		y, ok := b.(Boolean)
		return ok && x == y
	case Char:
		y, ok := b.(Char)
		return ok && x == y
	case Fixnum:
		y, ok := b.(Fixnum)
		return ok && x == y
	case Symbol:
		y, ok := b.(Symbol)
		return ok && x.ID == y.ID
	default:
		// Every other variant is a pointer type (or ContinuationProc);
		// identityEqual compares the underlying pointers.
		return identityEqual(a, b)
	}
}

// identityEqual compares the dynamic pointer values of two heap-backed
// Values. Go interface equality already does this for comparable
// concrete types (all of our pointer-backed variants are), so a type
// switch confirming both sides share the same concrete pointer type is
// sufficient and avoids reflect.
func identityEqual(a, b Value) bool {
	switch x := a.(type) {
	case *Bignum:
		y, ok := b.(*Bignum)
		return ok && x == y
	case *Rational:
		y, ok := b.(*Rational)
		return ok && x == y
	case *String:
		y, ok := b.(*String)
		return ok && x == y
	case *Pair:
		y, ok := b.(*Pair)
		return ok && x == y
	case *Vector:
		y, ok := b.(*Vector)
		return ok && x == y
	case *Bytevector:
		y, ok := b.(*Bytevector)
		return ok && x == y
	case *Port:
		y, ok := b.(*Port)
		return ok && x == y
	case *Record:
		y, ok := b.(*Record)
		return ok && x == y
	case *RecordType:
		y, ok := b.(*RecordType)
		return ok && x == y
	case *Promise:
		y, ok := b.(*Promise)
		return ok && x == y
	case *HashTable:
		y, ok := b.(*HashTable)
		return ok && x == y
	case *ForeignRef:
		y, ok := b.(*ForeignRef)
		return ok && x == y
	case *Parameter:
		y, ok := b.(*Parameter)
		return ok && x == y
	case Real:
		y, ok := b.(Real)
		return ok && x == y
	case Complex:
		y, ok := b.(Complex)
		return ok && x == y
	default:
		if cp, ok := a.(ContinuationProc); ok {
			cq, ok2 := b.(ContinuationProc)
			return ok2 && cp == cq
		}
		return a == b
	}
}

// Eqv implements R7RS `eqv?`: like eq?, but additionally compares
// numbers of matching exactness by value, and Char by rune (already
// covered by Eq).
func Eqv(a, b Value) bool {
	if IsNumber(a) && IsNumber(b) {
		if IsExact(a) != IsExact(b) {
			return false
		}
		eq, err := NumEqual(a, b)
		return err == nil && eq
	}
	return Eq(a, b)
}

// Equal implements R7RS `equal?`: structural equality over pairs,
// strings, vectors, and bytevectors, with cycle detection so equal? on
// circular structures terminates (spec: "equal? termination on cyclic
// values").
func Equal(a, b Value) bool {
	return equalSeen(a, b, map[equalPair]bool{})
}

type equalPair struct{ a, b any }

func equalSeen(a, b Value, seen map[equalPair]bool) bool {
	switch x := a.(type) {
	case *Pair:
		y, ok := b.(*Pair)
		if !ok {
			return false
		}
		key := equalPair{a: x, b: y}
		if seen[key] {
			return true
		}
		seen[key] = true
		return equalSeen(x.Car, y.Car, seen) && equalSeen(x.Cdr, y.Cdr, seen)
	case *Vector:
		y, ok := b.(*Vector)
		if !ok || len(x.Elements) != len(y.Elements) {
			return false
		}
		key := equalPair{a: x, b: y}
		if seen[key] {
			return true
		}
		seen[key] = true
		for i := range x.Elements {
			if !equalSeen(x.Elements[i], y.Elements[i], seen) {
				return false
			}
		}
		return true
	case *Bytevector:
		y, ok := b.(*Bytevector)
		if !ok || len(x.Bytes) != len(y.Bytes) {
			return false
		}
		for i := range x.Bytes {
			if x.Bytes[i] != y.Bytes[i] {
				return false
			}
		}
		return true
	case *String:
		y, ok := b.(*String)
		if !ok || len(x.Runes) != len(y.Runes) {
			return false
		}
		for i := range x.Runes {
			if x.Runes[i] != y.Runes[i] {
				return false
			}
		}
		return true
	default:
		return Eqv(a, b)
	}
}
