package catalog

import (
	"testing"

	"github.com/jonathan/otj-helper/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	specs := c.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "ST0763", specs[0].Code)
	assert.Equal(t, "ST0787", specs[1].Code)
	for _, s := range specs {
		assert.Nil(t, s.KSBs, "Specs should not carry KSB lists")
	}
}

func TestSpec_ST0787(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	spec, ok := c.Spec("ST0787")
	require.True(t, ok)
	require.Len(t, spec.KSBs, 22)

	counts := map[types.Category]int{}
	for _, k := range spec.KSBs {
		assert.Equal(t, "ST0787", k.Spec)
		assert.True(t, k.Category.Valid())
		counts[k.Category]++
	}
	assert.Equal(t, 5, counts[types.CategoryKnowledge])
	assert.Equal(t, 11, counts[types.CategorySkill])
	assert.Equal(t, 6, counts[types.CategoryBehaviour])

	// Codes are published without any standard-specific prefix.
	assert.Equal(t, "B1", spec.KSBs[0].Code)
}

func TestSpec_ST0763(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	spec, ok := c.Spec("ST0763")
	require.True(t, ok)
	assert.Len(t, spec.KSBs, 61)
	assert.Len(t, c.KSBs(), 83)
}

func TestSpec_Unknown(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	_, ok := c.Spec("ST9999")
	assert.False(t, ok)
	assert.False(t, c.Has("ST9999"))
	assert.True(t, c.Has("ST0787"))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not yaml", "specs: [unterminated"},
		{"schema violation", "specs:\n- code: nope\n  name: x\n  level: 3\n  available: true\n  ksbs: []\n"},
		{"duplicate ksb", `specs:
- code: ST0001
  name: Test
  level: 3
  available: true
  ksbs:
  - {code: K1, category: knowledge, title: One}
  - {code: K1, category: knowledge, title: Again}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
