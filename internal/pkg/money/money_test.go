package money

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func digitsAndComma(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == ',' || r == '-' {
			return r
		}
		return -1
	}, s)
}

func TestFormat(t *testing.T) {
	got := Format(1200)
	assert.True(t, strings.HasSuffix(got, "€"), got)
	assert.Equal(t, "1200,00", digitsAndComma(got))

	assert.Equal(t, "1234567,89", digitsAndComma(Format(1234567.891)))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "5,5", digitsAndComma(Percent(5.5)))
}
