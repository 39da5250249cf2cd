package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/mikey/digest-relay/internal/core"
)

// lookahead is how many lines after a title are searched for its price.
const lookahead = 20

var (
	availableRe = regexp.MustCompile(`(?i)\+(\d+)\s+новых\s+подходящих\s+проект`)
	totalRe     = regexp.MustCompile(`(?is)За последние\s+([0-9]+\s+\S+)\s+на бирже.*?размещено\s+([\d\s]+)\s+новых\s+проект`)

	// The currency is written as the ruble sign or its letter abbreviation.
	priceRe = regexp.MustCompile(`(?i)^\d[\d\s]*\s*(Р|P|₽)$`)

	handleRe     = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,}$`)
	bareHandleRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]{2,}$`)

	headerLines = map[string]bool{
		"Название":   true,
		"Покупатель": true,
		"Цена":       true,
	}
	footerMarkers = []string{"перейти на", "ваши настройки", "отписаться", "новых подходящих"}

	wideSpaces = strings.NewReplacer("\u00a0", " ", "\u202f", " ", "\u2009", " ")
)

// ParseText recovers summary counters and listings from rendered text.
func ParseText(text string) core.ParseResult {
	text = wideSpaces.Replace(text)

	var result core.ParseResult

	if m := availableRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			result.Available = &n
		}
	}

	if m := totalRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(strings.Join(strings.Fields(m[2]), "")); err == nil {
			result.Total = &n
			result.Window = strings.TrimSpace(m[1])
		}
	}

	result.Listings = scanListings(splitLines(text))
	return result
}

// scanListings walks the lines once. Each non-boilerplate line is a title
// candidate; a record needs a category on the next line and a price within
// the lookahead window. When no record forms, the scan moves on by one line.
func scanListings(lines []string) []core.Listing {
	var listings []core.Listing

	i := 0
	for i < len(lines) {
		title := lines[i]
		if isBoilerplate(title) {
			i++
			continue
		}

		var rec core.Listing
		rec.Title = title
		if i+1 < len(lines) && strings.Contains(lines[i+1], ">") {
			rec.Category = lines[i+1]
		}

		j := i + 1
		limit := min(len(lines), i+lookahead)
		for ; j < limit; j++ {
			line := lines[j]
			lower := strings.ToLower(line)

			if rec.Buyer == "" {
				rec.Buyer = buyerHandle(line, lower)
			}

			if strings.Contains(line, "%") && strings.Contains(lower, "нанят") {
				rec.HiredNote = line
			}

			if m := priceRe.FindStringSubmatchIndex(line); m != nil {
				rec.Price = strings.TrimSpace(line[:m[2]] + "₽")
				break
			}
		}

		if rec.Category != "" && rec.Price != "" {
			listings = append(listings, rec)
			i = j + 1
			continue
		}
		i++
	}

	return listings
}

// buyerHandle recognises "v v_ritme 1" (single-letter avatar followed by the
// handle) and bare "codesDF" lines. Lines mentioning a project are not
// handles. Category lines made of Latin tokens can still match; that is a
// known limitation of the heuristic.
func buyerHandle(line, lower string) string {
	if mentionsProject(lower) {
		return ""
	}

	tokens := strings.Fields(line)
	if len(tokens) >= 2 && isSingleLetter(tokens[0]) {
		cand := tokens[1]
		if !isDigits(cand) && handleRe.MatchString(cand) {
			return cand
		}
	}

	if len(tokens) >= 1 && bareHandleRe.MatchString(tokens[0]) {
		return tokens[0]
	}

	return ""
}

func isBoilerplate(line string) bool {
	if headerLines[line] {
		return true
	}
	lower := strings.ToLower(line)
	for _, marker := range footerMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// mentionsProject reports whether a word starting with "проект" occurs.
func mentionsProject(lower string) bool {
	const word = "проект"
	offset := 0
	for {
		idx := strings.Index(lower[offset:], word)
		if idx < 0 {
			return false
		}
		pos := offset + idx
		if pos == 0 || !isWordRune(lastRune(lower[:pos])) {
			return true
		}
		offset = pos + len(word)
	}
}

func splitLines(text string) []string {
	raw := strings.FieldsFunc(text, isLineBreak)
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

func isSingleLetter(tok string) bool {
	r := []rune(tok)
	return len(r) == 1 && unicode.IsLetter(r[0])
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lastRune(s string) rune {
	r := []rune(s)
	if len(r) == 0 {
		return 0
	}
	return r[len(r)-1]
}
