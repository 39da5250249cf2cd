package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestCheckerAllows(t *testing.T) {
	c := NewChecker([]string{" Kwork.ru ", ""}, zaptest.NewLogger(t))

	tests := []struct {
		from string
		want bool
	}{
		{"Kwork <news@kwork.ru>", true},
		{"news@KWORK.RU", true},
		{"robot@mail.kwork.ru", true},
		{"news@notkwork.ru", false},
		{"Promo <offers@example.com>", false},
		{"undisclosed-recipients", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Allows(tt.from))
		})
	}
}

func TestEmptyCheckerAllowsEverything(t *testing.T) {
	c := NewChecker(nil, zaptest.NewLogger(t))

	assert.True(t, c.Allows("anyone@example.com"))
	assert.True(t, c.Allows(""))
	assert.False(t, c.IsWhitelisted("anyone@example.com"))
}
