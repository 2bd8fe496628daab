package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", HashString(""))
	assert.Equal(t, HashString("glucose"), HashString("glucose"))
	assert.NotEqual(t, HashString("glucose"), HashString("insulin"))
}

func TestHashPartsSeparatesBoundaries(t *testing.T) {
	assert.NotEqual(t, HashParts("a b", "c"), HashParts("a", "b c"))
	assert.Equal(t, HashParts("x", "y"), HashParts("x", "y"))
}

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		SHA256Hex(nil),
	)
}
