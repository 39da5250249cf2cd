package format

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/digest-relay/internal/core"
	"github.com/mikey/digest-relay/internal/utils"
)

func intPtr(n int) *int { return &n }

func newTestComposer(maxItems int) *Composer {
	logger := zap.NewNop()
	return NewComposer(Options{MaxItems: maxItems}, utils.NewTextProcessor(logger), logger)
}

func TestComposeFullDigest(t *testing.T) {
	c := newTestComposer(10)
	text := c.Compose(
		core.MessageParts{Subject: "Новые проекты на бирже Kwork"},
		core.ParseResult{
			Available: intPtr(108),
			Total:     intPtr(1886),
			Window:    "6 дней",
			Listings: []core.Listing{
				{
					Title:       "Бот <для> чата",
					Category:    "Разработка и IT > Скрипты, боты",
					Buyer:       "v_ritme",
					HiredNote:   "Нанято: 50%",
					Price:       "5 000 ₽",
					ResponseURL: "https://kwork.ru/new_offer?project=1&a=b",
				},
				{Title: "Логотип", Category: "Дизайн > Логотипы", Price: "3000 ₽"},
			},
		},
	)

	expected := strings.Join([]string{
		"📬 <b>Kwork: новые проекты</b>",
		"➕ <b>108</b> подходящих (из 1886 за 6 дней)",
		"🧾 <i>Новые проекты на бирже Kwork</i>",
		"",
		`• <a href="https://kwork.ru/new_offer?project=1&amp;a=b">Бот &lt;для&gt; чата</a> — <b>5 000 ₽</b> (👤 v_ritme)`,
		"  Разработка и IT &gt; Скрипты, боты",
		"  Нанято: 50%",
		"",
		"• Логотип — <b>3000 ₽</b>",
		"  Дизайн &gt; Логотипы",
	}, "\n")
	assert.Equal(t, expected, text)
}

func TestComposeAvailableOnly(t *testing.T) {
	c := newTestComposer(10)
	text := c.Compose(core.MessageParts{}, core.ParseResult{
		Available: intPtr(3),
		Listings:  []core.Listing{{Title: "x", Category: "a > b", Price: "1 ₽"}},
	})
	assert.True(t, strings.HasPrefix(text, "📬 <b>Kwork: новые проекты</b>\n➕ <b>3</b> подходящих\n\n"))
}

func TestComposeNoListings(t *testing.T) {
	c := newTestComposer(10)
	text := c.Compose(core.MessageParts{Subject: "s"}, core.ParseResult{})
	assert.Equal(t, "📬 <b>Kwork: новые проекты</b>\n🧾 <i>s</i>\n\n"+NoListingsNotice, text)
}

func TestComposeRespectsMaxItems(t *testing.T) {
	c := newTestComposer(2)
	var listings []core.Listing
	for i := 0; i < 5; i++ {
		listings = append(listings, core.Listing{Title: "t", Category: "a > b", Price: "1 ₽"})
	}
	text := c.Compose(core.MessageParts{}, core.ParseResult{Listings: listings})
	assert.Equal(t, 2, strings.Count(text, "• "))
}

func TestComposeFitsMessageLimit(t *testing.T) {
	c := newTestComposer(0)
	var listings []core.Listing
	for i := 0; i < 100; i++ {
		listings = append(listings, core.Listing{
			Title:    strings.Repeat("заголовок ", 10),
			Category: "Разработка и IT > Скрипты, боты",
			Price:    "5 000 ₽",
		})
	}

	text := c.Compose(core.MessageParts{}, core.ParseResult{Listings: listings})
	require.LessOrEqual(t, utf8.RuneCountInString(text), MaxMessageRunes)
	assert.Greater(t, strings.Count(text, "• "), 1)
	assert.Less(t, strings.Count(text, "• "), 100)
}

func TestComposeCutsSingleOversizedListing(t *testing.T) {
	c := newTestComposer(10)
	text := c.Compose(core.MessageParts{}, core.ParseResult{
		Listings: []core.Listing{{Title: strings.Repeat("я", 5000), Category: "a > b", Price: "1 ₽"}},
	})
	assert.Equal(t, MaxMessageRunes, utf8.RuneCountInString(text))
	assert.True(t, strings.HasSuffix(text, "…"))
}
