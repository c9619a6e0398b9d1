package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRupees(t *testing.T) {
	assert.Equal(t, Paise(200050), Rupees(2000.50))
	assert.Equal(t, Paise(-150), Rupees(-1.50))
	assert.Equal(t, Paise(0), Rupees(0))
}

func TestPaiseString(t *testing.T) {
	assert.Equal(t, "100.00", Paise(10000).String())
	assert.Equal(t, "-5.07", Paise(-507).String())
	assert.Equal(t, "0.05", Paise(5).String())
}

func TestPaiseAbs(t *testing.T) {
	assert.Equal(t, Paise(100), Paise(-100).Abs())
	assert.Equal(t, Paise(100), Paise(100).Abs())
	assert.Equal(t, Paise(0), Paise(0).Abs())
}

func TestMulQty(t *testing.T) {
	assert.Equal(t, Paise(7500), Paise(150).MulQty(50))
	assert.Equal(t, Paise(-7500), Paise(150).MulQty(-50))
}

func TestProportionOf(t *testing.T) {
	// exact division
	assert.Equal(t, Paise(50), Paise(100).ProportionOf(1, 2))
	// rounds half away from zero: 5 * 1/2 = 2.5 -> 3
	assert.Equal(t, Paise(3), Paise(5).ProportionOf(1, 2))
	assert.Equal(t, Paise(-3), Paise(-5).ProportionOf(1, 2))
	// zero denominator is defined as zero rather than a panic
	assert.Equal(t, Paise(0), Paise(100).ProportionOf(1, 0))
}

func TestProportionOfVWAPRecompute(t *testing.T) {
	// two legs of a VWAP-style weighted average: (100*10 + 120*10) / 20 = 110
	existing := Paise(100).MulQty(10)
	added := Paise(120).MulQty(10)
	avg := (existing + added).ProportionOf(1, 20)
	assert.Equal(t, Paise(110), avg)
}
