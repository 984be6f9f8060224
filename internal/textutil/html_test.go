package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	t.Parallel()

	got := StripHTML(`<p>Size: <b>4.2 GB</b></p>&nbsp;<br/>Tom &amp; Jerry &quot;Remastered&quot;`)
	assert.Equal(t, `Size: 4.2 GB Tom & Jerry "Remastered"`, got)

	assert.Equal(t, "", StripHTML("   "))
	assert.Equal(t, "plain text", StripHTML("plain   text"))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", Truncate("short", 300))

	long := strings.Repeat("é", 400)
	cut := Truncate(long, 300)
	assert.Equal(t, 300, utf8.RuneCountInString(cut))
	assert.True(t, strings.HasSuffix(cut, "..."))

	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "", Truncate("abc", 0))
}
