package formula

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokName
	tokOp
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// operators, longest first so "**" wins over "*" and "//" over "/".
var operators = []string{
	"**", "//", "<=", ">=", "==", "!=",
	"+", "-", "*", "/", "%", "<", ">",
	"(", ")", ",", "?", ":",
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	for i < len(input) {
		c := rune(input[i])

		if unicode.IsSpace(c) {
			i++
			continue
		}

		if unicode.IsDigit(c) || (c == '.' && i+1 < len(input) && unicode.IsDigit(rune(input[i+1]))) {
			start := i
			seenDot := false
			for i < len(input) {
				ch := input[i]
				if ch >= '0' && ch <= '9' {
					i++
					continue
				}
				if ch == '.' && !seenDot {
					seenDot = true
					i++
					continue
				}
				break
			}
			tokens = append(tokens, token{kind: tokNumber, text: input[start:i], pos: start})
			continue
		}

		if unicode.IsLetter(c) || c == '_' {
			start := i
			for i < len(input) {
				ch := rune(input[i])
				if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
					i++
					continue
				}
				break
			}
			tokens = append(tokens, token{kind: tokName, text: input[start:i], pos: start})
			continue
		}

		matched := false
		for _, op := range operators {
			if strings.HasPrefix(input[i:], op) {
				tokens = append(tokens, token{kind: tokOp, text: op, pos: i})
				i += len(op)
				matched = true
				break
			}
		}
		if !matched {
			return nil, errorf("unexpected character %q at position %d", c, i)
		}
	}

	tokens = append(tokens, token{kind: tokEOF, pos: len(input)})
	return tokens, nil
}
