// Numeric tower: Fixnum promotes to Bignum on overflow; exact integer
// division producing a non-integer promotes to Rational; mixing exact
// and inexact promotes to Real; Complex arises from make-rectangular or
// sqrt of a negative real (spec §4.V). Grounded on the teacher's
// Integer/Float/BigInt/Rational variants (internal/evaluator/object_primitives.go,
// object_advanced.go), generalized with overflow-checked promotion and a
// Complex variant the teacher's own numeric tower does not need.
package value

import (
	"fmt"
	"math"
	"math/big"
)

// Fixnum is an exact integer that fits in a machine word, stored without
// a *big.Int allocation. Every integer in the int64 range is a Fixnum;
// Config.SmallIntMin/SmallIntMax are not consulted.
type Fixnum int64

func (f Fixnum) Tag() Tag        { return TagFixnum }
func (f Fixnum) Write() string   { return fmt.Sprintf("%d", int64(f)) }
func (f Fixnum) Display() string { return f.Write() }

// Bignum is an exact integer outside the Fixnum range.
type Bignum struct{ V *big.Int }

func NewBignum(v *big.Int) Value {
	return normalizeInt(v)
}

func (b *Bignum) Tag() Tag        { return TagBignum }
func (b *Bignum) Write() string   { return b.V.String() }
func (b *Bignum) Display() string { return b.Write() }

// normalizeInt returns a Fixnum if v fits in an int64, else a *Bignum.
// Every integer-producing arithmetic operation in this file routes its
// result through normalizeInt so the tower never carries an
// avoidably-boxed big.Int.
func normalizeInt(v *big.Int) Value {
	if v.IsInt64() {
		return Fixnum(v.Int64())
	}
	return &Bignum{V: v}
}

// Rational is an exact non-integer ratio.
type Rational struct{ V *big.Rat }

func NewRational(r *big.Rat) Value {
	if r.IsInt() {
		return normalizeInt(new(big.Int).Set(r.Num()))
	}
	return &Rational{V: r}
}

func (r *Rational) Tag() Tag        { return TagRational }
func (r *Rational) Write() string   { return r.V.RatString() }
func (r *Rational) Display() string { return r.Write() }

// Real is an inexact (floating-point) number.
type Real float64

func (r Real) Tag() Tag { return TagReal }
func (r Real) Write() string {
	f := float64(r)
	switch {
	case math.IsInf(f, 1):
		return "+inf.0"
	case math.IsInf(f, -1):
		return "-inf.0"
	case math.IsNaN(f):
		return "+nan.0"
	}
	s := fmt.Sprintf("%g", f)
	// R7RS inexact numbers always display with a decimal point.
	hasDotOrExp := false
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'E' {
			hasDotOrExp = true
			break
		}
	}
	if !hasDotOrExp {
		s += "."
	}
	return s
}
func (r Real) Display() string { return r.Write() }

// Complex is an inexact complex number (spec: "arises from
// make-rectangular/sqrt of negative").
type Complex complex128

func (c Complex) Tag() Tag { return TagComplex }
func (c Complex) Write() string {
	re, im := real(complex128(c)), imag(complex128(c))
	if im >= 0 || math.IsNaN(im) {
		return fmt.Sprintf("%s+%si", formatFloat(re), formatFloat(im))
	}
	return fmt.Sprintf("%s%si", formatFloat(re), formatFloat(im))
}
func (c Complex) Display() string { return c.Write() }

func formatFloat(f float64) string {
	return Real(f).Write()
}

// IsNumber reports whether v is any variant of the numeric tower.
func IsNumber(v Value) bool {
	switch v.(type) {
	case Fixnum, *Bignum, *Rational, Real, Complex:
		return true
	default:
		return false
	}
}

// IsExact reports whether v is an exact number (Fixnum/Bignum/Rational).
func IsExact(v Value) bool {
	switch v.(type) {
	case Fixnum, *Bignum, *Rational:
		return true
	default:
		return false
	}
}

func toBig(v Value) (*big.Int, bool) {
	switch n := v.(type) {
	case Fixnum:
		return big.NewInt(int64(n)), true
	case *Bignum:
		return n.V, true
	default:
		return nil, false
	}
}

func toRat(v Value) (*big.Rat, bool) {
	switch n := v.(type) {
	case Fixnum:
		return new(big.Rat).SetInt64(int64(n)), true
	case *Bignum:
		return new(big.Rat).SetInt(n.V), true
	case *Rational:
		return n.V, true
	default:
		return nil, false
	}
}

func toFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Fixnum:
		return float64(n), true
	case *Bignum:
		f := new(big.Float).SetInt(n.V)
		r, _ := f.Float64()
		return r, true
	case *Rational:
		r, _ := n.V.Float64()
		return r, true
	case Real:
		return float64(n), true
	default:
		return 0, false
	}
}

// numKind ranks the tower for promotion: higher kind wins in mixed-mode
// arithmetic (spec §4.V promotion rules).
type numKind int

const (
	kindInt numKind = iota
	kindRational
	kindReal
	kindComplex
)

func kindOf(v Value) numKind {
	switch v.(type) {
	case Fixnum, *Bignum:
		return kindInt
	case *Rational:
		return kindRational
	case Real:
		return kindReal
	case Complex:
		return kindComplex
	default:
		return kindReal
	}
}

func maxKind(a, b numKind) numKind {
	if a > b {
		return a
	}
	return b
}

// Add, Sub, Mul implement the generic numeric tower operations, promoting
// operands to the lowest common representation before computing.
func Add(a, b Value) (Value, error) {
	return binOp(a, b, func(x, y *big.Int) Value { return normalizeInt(new(big.Int).Add(x, y)) },
		func(x, y *big.Rat) Value { return NewRational(new(big.Rat).Add(x, y)) },
		func(x, y float64) Value { return Real(x + y) },
		func(x, y complex128) Value { return Complex(x + y) })
}

func Sub(a, b Value) (Value, error) {
	return binOp(a, b, func(x, y *big.Int) Value { return normalizeInt(new(big.Int).Sub(x, y)) },
		func(x, y *big.Rat) Value { return NewRational(new(big.Rat).Sub(x, y)) },
		func(x, y float64) Value { return Real(x - y) },
		func(x, y complex128) Value { return Complex(x - y) })
}

func Mul(a, b Value) (Value, error) {
	return binOp(a, b, func(x, y *big.Int) Value { return normalizeInt(new(big.Int).Mul(x, y)) },
		func(x, y *big.Rat) Value { return NewRational(new(big.Rat).Mul(x, y)) },
		func(x, y float64) Value { return Real(x * y) },
		func(x, y complex128) Value { return Complex(x * y) })
}

// Div implements exact division that promotes Integer to Rational when
// the result is not an integer (spec §4.V), and propagates inexactness.
func Div(a, b Value) (Value, error) {
	if kindOf(a) != kindComplex && kindOf(b) != kindComplex {
		if isZero(b) && IsExact(b) {
			return nil, errDivisionByZero
		}
	}
	return binOp(a, b, func(x, y *big.Int) Value {
		return NewRational(new(big.Rat).SetFrac(x, y))
	},
		func(x, y *big.Rat) Value { return NewRational(new(big.Rat).Quo(x, y)) },
		func(x, y float64) Value { return Real(x / y) },
		func(x, y complex128) Value { return Complex(x / y) })
}

var errDivisionByZero = fmt.Errorf("division by zero")

// ErrDivisionByZero is the sentinel Div/Quotient/Remainder/Modulo return
// when dividing an exact number by exact zero.
func ErrDivisionByZero() error { return errDivisionByZero }

func isZero(v Value) bool {
	switch n := v.(type) {
	case Fixnum:
		return n == 0
	case *Bignum:
		return n.V.Sign() == 0
	case *Rational:
		return n.V.Sign() == 0
	case Real:
		return n == 0
	default:
		return false
	}
}

func binOp(a, b Value,
	intOp func(x, y *big.Int) Value,
	ratOp func(x, y *big.Rat) Value,
	floatOp func(x, y float64) Value,
	cplxOp func(x, y complex128) Value) (Value, error) {

	if !IsNumber(a) {
		return nil, fmt.Errorf("not a number: %s", a.Write())
	}
	if !IsNumber(b) {
		return nil, fmt.Errorf("not a number: %s", b.Write())
	}
	k := maxKind(kindOf(a), kindOf(b))
	switch k {
	case kindInt:
		x, _ := toBig(a)
		y, _ := toBig(b)
		return intOp(x, y), nil
	case kindRational:
		x, _ := toRat(a)
		y, _ := toRat(b)
		return ratOp(x, y), nil
	case kindReal:
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		return floatOp(x, y), nil
	default:
		x := toComplex(a)
		y := toComplex(b)
		return cplxOp(x, y), nil
	}
}

func toComplex(v Value) complex128 {
	if c, ok := v.(Complex); ok {
		return complex128(c)
	}
	f, _ := toFloat(v)
	return complex(f, 0)
}

// Compare returns -1, 0, 1 for a<b, a=b, a>b. Only defined for real
// (non-complex) numbers, as R7RS `<`/`>`/etc. require.
func Compare(a, b Value) (int, error) {
	if kindOf(a) == kindComplex || kindOf(b) == kindComplex {
		return 0, fmt.Errorf("complex numbers are not orderable")
	}
	k := maxKind(kindOf(a), kindOf(b))
	switch k {
	case kindInt:
		x, _ := toBig(a)
		y, _ := toBig(b)
		return x.Cmp(y), nil
	case kindRational:
		x, _ := toRat(a)
		y, _ := toRat(b)
		return x.Cmp(y), nil
	default:
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		default:
			return 0, nil
		}
	}
}

// NumEqual implements `=`, which compares across exactness (2 = 2.0).
func NumEqual(a, b Value) (bool, error) {
	if ca, ok := a.(Complex); ok {
		cb := toComplex(b)
		return complex128(ca) == cb, nil
	}
	if cb, ok := b.(Complex); ok {
		ca := toComplex(a)
		return ca == complex128(cb), nil
	}
	c, err := Compare(a, b)
	return c == 0, err
}

// Exact converts v to an exact representation (inexact->exact).
func Exact(v Value) (Value, error) {
	switch n := v.(type) {
	case Fixnum, *Bignum, *Rational:
		return v, nil
	case Real:
		f := float64(n)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, fmt.Errorf("cannot convert %v to exact", f)
		}
		r := new(big.Rat)
		r.SetFloat64(f)
		return NewRational(r), nil
	default:
		return nil, fmt.Errorf("not a real number: %s", v.Write())
	}
}

// Inexact converts v to an inexact representation (exact->inexact).
func Inexact(v Value) (Value, error) {
	switch v.(type) {
	case Real, Complex:
		return v, nil
	default:
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("not a real number: %s", v.Write())
		}
		return Real(f), nil
	}
}

// QuotientRemainder implements exact integer quotient and remainder
// (truncating division; flooring modulo is Modulo's job), promoting on
// overflow just like Add/Sub/Mul.
func QuotientRemainder(a, b Value) (quotient, remainder Value, err error) {
	x, ok1 := toBig(a)
	y, ok2 := toBig(b)
	if !ok1 || !ok2 {
		return nil, nil, fmt.Errorf("quotient/remainder require integers")
	}
	if y.Sign() == 0 {
		return nil, nil, errDivisionByZero
	}
	q, r := new(big.Int), new(big.Int)
	q.QuoRem(x, y, r)
	return normalizeInt(q), normalizeInt(r), nil
}

func Modulo(a, b Value) (Value, error) {
	x, ok1 := toBig(a)
	y, ok2 := toBig(b)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("modulo requires integers")
	}
	if y.Sign() == 0 {
		return nil, errDivisionByZero
	}
	m := new(big.Int).Mod(x, y)
	// big.Int.Mod is Euclidean (always >= 0); R7RS modulo takes the sign
	// of the divisor.
	if m.Sign() != 0 && y.Sign() < 0 {
		m.Add(m, y)
	}
	return normalizeInt(m), nil
}

// Sqrt implements R7RS sqrt, producing a Complex for a negative real
// argument (spec §4.V).
func Sqrt(a Value) (Value, error) {
	if kindOf(a) == kindComplex {
		c := complex128(a.(Complex))
		r := math.Sqrt(math.Hypot(real(c), imag(c)))
		theta := math.Atan2(imag(c), real(c)) / 2
		return Complex(complex(r*math.Cos(theta), r*math.Sin(theta))), nil
	}
	f, ok := toFloat(a)
	if !ok {
		return nil, fmt.Errorf("sqrt requires a number")
	}
	if f < 0 {
		return Complex(complex(0, math.Sqrt(-f))), nil
	}
	root := math.Sqrt(f)
	if IsExact(a) {
		// Return an exact result when the argument is a perfect square.
		if ir := math.Round(root); ir*ir == f {
			return normalizeInt(big.NewInt(int64(ir))), nil
		}
	}
	return Real(root), nil
}

// MakeRectangular builds a Complex from real and imaginary parts,
// returning re unchanged when the imaginary part is an exact zero
// (spec §4.V).
func MakeRectangular(re, im Value) (Value, error) {
	imf, ok := toFloat(im)
	if !ok {
		return nil, fmt.Errorf("make-rectangular requires real arguments")
	}
	ref, ok := toFloat(re)
	if !ok {
		return nil, fmt.Errorf("make-rectangular requires real arguments")
	}
	if imf == 0 && IsExact(im) {
		return re, nil
	}
	return Complex(complex(ref, imf)), nil
}
