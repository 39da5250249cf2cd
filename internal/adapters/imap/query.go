package imap

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/emersion/go-imap/v2"
)

// headerKeys maps search operators to the header they match
var headerKeys = map[string]string{
	"from":    "From",
	"to":      "To",
	"cc":      "Cc",
	"subject": "Subject",
}

// TranslateQuery turns a webmail-style query such as
//
//	from:news@kwork.ru subject:"Новые проекты на бирже Kwork"
//
// into IMAP SEARCH criteria. Known operators become HEADER criteria, other
// words become TEXT criteria. Unsupported operators are returned so the
// caller can report them.
func TranslateQuery(query string) (*imap.SearchCriteria, []string, error) {
	tokens, err := tokenize(query)
	if err != nil {
		return nil, nil, err
	}

	criteria := &imap.SearchCriteria{}
	var ignored []string

	for _, tok := range tokens {
		if tok.key == "" {
			criteria.Text = append(criteria.Text, tok.value)
			continue
		}

		header, ok := headerKeys[strings.ToLower(tok.key)]
		if !ok {
			ignored = append(ignored, tok.key+":"+tok.value)
			continue
		}
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
			Key:   header,
			Value: tok.value,
		})
	}

	return criteria, ignored, nil
}

type token struct {
	key   string
	value string
}

func tokenize(query string) ([]token, error) {
	var tokens []token
	runes := []rune(strings.TrimSpace(query))

	for i := 0; i < len(runes); {
		if unicode.IsSpace(runes[i]) {
			i++
			continue
		}

		var tok token

		// operator prefix
		start := i
		for i < len(runes) && !unicode.IsSpace(runes[i]) && runes[i] != ':' && runes[i] != '"' {
			i++
		}
		if i < len(runes) && runes[i] == ':' && i > start {
			tok.key = string(runes[start:i])
			i++
		} else {
			i = start
		}

		value, next, err := readValue(runes, i)
		if err != nil {
			return nil, err
		}
		i = next

		tok.value = value
		if tok.value == "" {
			if tok.key == "" {
				continue
			}
			return nil, fmt.Errorf("empty value for %q in query", tok.key)
		}
		tokens = append(tokens, tok)
	}

	return tokens, nil
}

func readValue(runes []rune, i int) (string, int, error) {
	if i < len(runes) && runes[i] == '"' {
		end := i + 1
		for end < len(runes) && runes[end] != '"' {
			end++
		}
		if end >= len(runes) {
			return "", 0, fmt.Errorf("unterminated quote in query")
		}
		return string(runes[i+1 : end]), end + 1, nil
	}

	start := i
	for i < len(runes) && !unicode.IsSpace(runes[i]) {
		i++
	}
	return string(runes[start:i]), i, nil
}
