package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareTrials(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{1, 2, 3}
	c := []byte{1, 2, 4}

	rep := CompareTrials(a, b)
	assert.True(t, rep.Consistent)
	assert.Equal(t, 1, rep.DistinctValues)

	rep = CompareTrials(a, b, c)
	assert.False(t, rep.Consistent)
	assert.Equal(t, 2, rep.DistinctValues)

	assert.True(t, CompareTrials().Consistent)
}

func TestCompareStrings(t *testing.T) {
	rep := CompareStrings("h1", "h1", "h2")
	assert.False(t, rep.Consistent)
	assert.Equal(t, 2, rep.DistinctValues)
}

func TestInAllowlist(t *testing.T) {
	allow := []string{"aaa", "bbb"}
	assert.True(t, InAllowlist("aaa", allow))
	assert.False(t, InAllowlist("ccc", allow))
	assert.False(t, InAllowlist("aaa", nil))
}
