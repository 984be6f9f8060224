package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Fold("GRÖSSE"), Fold("Größe"))
	assert.Equal(t, "école überfilm", Fold("ÉCOLE Überfilm"))
	assert.Equal(t, "plain 100%", Fold("Plain 100%"))
}
