package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))

	assert.Equal(t, "короткий", tp.TruncateText("короткий", 10, "…"))
	assert.Equal(t, "прив…", tp.TruncateText("привет мир", 5, "…"))
	assert.Equal(t, "abc", tp.TruncateText("abc", 0, "…"))
	assert.Equal(t, "..", tp.TruncateText("abcdef", 2, "..."))

	long := strings.Repeat("ж", 5000)
	out := tp.TruncateText(long, 4096, "…")
	assert.Equal(t, 4096, utf8.RuneCountInString(out))
	assert.True(t, strings.HasSuffix(out, "…"))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))

	assert.Equal(t, "ok", tp.SanitizeUTF8("ok"))
	assert.Equal(t, "ab", tp.SanitizeUTF8("a\xffb"))
	assert.Equal(t, "�", tp.SanitizeUTF8("�"))
	assert.Equal(t, "ab", tp.ProcessText("a\xffbc", 2, ""))
}
