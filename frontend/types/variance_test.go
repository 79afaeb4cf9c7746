package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVarianceFlipAndMeet(t *testing.T) {
	assert.Equal(t, Contravariant, Covariant.Flip())
	assert.Equal(t, Bivariant, Bivariant.Flip())
	assert.Equal(t, Invariant, Invariant.Flip())
	assert.Equal(t, Invariant, Covariant.Meet(Contravariant))
	assert.Equal(t, Covariant, Bivariant.Meet(Covariant))

	for _, v := range []Variance{Bivariant, Covariant, Contravariant, Invariant} {
		parsed, ok := ParseVariance(v.String())
		assert.True(t, ok)
		assert.Equal(t, v, parsed)
	}
	_, ok := ParseVariance("sideways")
	assert.False(t, ok)
}
