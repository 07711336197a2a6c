package value_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// TestNumericTowerPromotion exercises promotion along spec §4.V's
// numeric tower: Fixnum addition, Bignum, and Rational plus Real giving
// Real. Complex is not covered here.
func TestNumericTowerPromotion(t *testing.T) {
	sum, err := value.Add(value.Fixnum(1), value.Fixnum(2))
	require.NoError(t, err)
	require.Equal(t, value.Fixnum(3), sum)

	big1 := &value.Bignum{V: new(big.Int).Lsh(big.NewInt(1), 100)}
	promoted, err := value.Add(big1, value.Fixnum(1))
	require.NoError(t, err)
	require.IsType(t, &value.Bignum{}, promoted)

	rat := &value.Rational{V: big.NewRat(1, 2)}
	withFloat, err := value.Add(rat, value.Real(0.5))
	require.NoError(t, err)
	require.Equal(t, value.Real(1.0), withFloat)
}

func TestDivisionByZero(t *testing.T) {
	_, err := value.Div(value.Fixnum(1), value.Fixnum(0))
	require.Error(t, err)
}

func TestExactInexactRoundTrip(t *testing.T) {
	inexact, err := value.Inexact(value.Fixnum(7))
	require.NoError(t, err)
	require.Equal(t, value.Real(7.0), inexact)

	exact, err := value.Exact(inexact)
	require.NoError(t, err)
	require.Equal(t, value.Fixnum(7), exact)
}
