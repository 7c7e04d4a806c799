package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- AmericanToDecimal Tests ---

func TestAmericanToDecimal(t *testing.T) {
	t.Run("positive odds", func(t *testing.T) {
		assert.InDelta(t, 2.50, AmericanToDecimal(150), 1e-9)
		assert.InDelta(t, 2.00, AmericanToDecimal(100), 1e-9)
	})

	t.Run("negative odds", func(t *testing.T) {
		assert.InDelta(t, 1.909090909, AmericanToDecimal(-110), 1e-6)
		assert.InDelta(t, 1.50, AmericanToDecimal(-200), 1e-9)
	})

	t.Run("zero is degenerate", func(t *testing.T) {
		assert.Equal(t, 1.0, AmericanToDecimal(0))
	})
}

// --- AmericanImplied Tests ---

func TestAmericanImplied(t *testing.T) {
	t.Run("minus 110 implies about 52.4 percent", func(t *testing.T) {
		assert.InDelta(t, 0.5238, AmericanImplied(-110), 1e-3)
	})

	t.Run("plus 150 implies 40 percent", func(t *testing.T) {
		assert.InDelta(t, 0.40, AmericanImplied(150), 1e-9)
	})

	t.Run("two sides of a fair market sum to one", func(t *testing.T) {
		sum := AmericanImplied(100) + AmericanImplied(-100)
		assert.InDelta(t, 1.0, sum, 1e-9)
	})
}
