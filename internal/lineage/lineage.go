package lineage

import (
	"regexp"
	"strings"
)

// tableKeywordPattern finds FROM/JOIN/INTO and the whitespace after it.
var tableKeywordPattern = regexp.MustCompile(`(?i)\b(?:from|join|into)\s+`)

// tableTokenPattern captures the token following a table keyword: an optional
// ENT. prefix then a bracketed, double-quoted, backticked or bare identifier.
// Bare identifiers accept any Unicode letter or digit.
var tableTokenPattern = regexp.MustCompile(
	`^(?i:ent\.)?(?:\[[^\]]+\]|"[^"]+"|` + "`[^`]+`" + `|[\p{L}\p{N}_.\-]+)`,
)

// ExtractSQLReferences returns the ordered, deduplicated object references in sqlText.
// Duplicates are detected case-insensitively and the first spelling wins.
// Empty input yields an empty slice.
func ExtractSQLReferences(sqlText string) []string {
	refs := []string{}
	if strings.TrimSpace(sqlText) == "" {
		return refs
	}

	cleaned, masked := stripCommentsAndLiterals(sqlText)
	seen := make(map[string]struct{})

	// Keywords are searched in the masked text so that words inside delimited
	// identifiers ("[Join Date]") never count; tokens are read from the cleaned text.
	next := 0
	for _, loc := range tableKeywordPattern.FindAllStringIndex(masked, -1) {
		if loc[0] < next {
			// keyword inside a token already taken, e.g. "x-from"
			continue
		}
		raw := tableTokenPattern.FindString(cleaned[loc[1]:])
		next = loc[1] + len(raw)
		token := cleanToken(raw)
		if token == "" {
			continue
		}
		key := strings.ToLower(token)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		refs = append(refs, token)
	}

	return refs
}

// cleanToken removes the shared-object prefix and surrounding delimiters.
func cleanToken(raw string) string {
	token := strings.TrimSpace(raw)
	if len(token) > 4 && strings.EqualFold(token[:4], "ent.") {
		token = token[4:]
	}
	if len(token) >= 2 {
		first, last := token[0], token[len(token)-1]
		if (first == '[' && last == ']') || (first == '"' && last == '"') || (first == '`' && last == '`') {
			token = token[1 : len(token)-1]
		}
	}
	// Trailing dots come from "FROM x." typos and never name an object.
	return strings.TrimSpace(strings.TrimRight(token, "."))
}

// scanner walks SQL text byte by byte.
type scanner struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
}

func newScanner(input string) *scanner {
	s := &scanner{input: input}
	s.readChar()
	return s
}

// readChar advances to the next character.
func (s *scanner) readChar() {
	if s.readPos >= len(s.input) {
		s.ch = 0 // ASCII NUL = EOF
	} else {
		s.ch = s.input[s.readPos]
	}
	s.pos = s.readPos
	s.readPos++
}

// peekChar returns the next character without advancing.
func (s *scanner) peekChar() byte {
	if s.readPos >= len(s.input) {
		return 0
	}
	return s.input[s.readPos]
}

// stripCommentsAndLiterals replaces comments with a space and the contents of
// single-quoted literals with spaces. Bracket, double-quote and backtick
// identifiers are kept in cleaned. masked is the same text byte for byte except
// that identifier contents are blanked.
func stripCommentsAndLiterals(sqlText string) (cleaned, masked string) {
	var b, m strings.Builder
	b.Grow(len(sqlText))
	m.Grow(len(sqlText))
	// emit writes c to cleaned and mask to masked, keeping offsets aligned.
	emit := func(c, mask byte) {
		b.WriteByte(c)
		m.WriteByte(mask)
	}

	s := newScanner(sqlText)
	for s.pos < len(s.input) {
		switch {
		case s.ch == '-' && s.peekChar() == '-':
			for s.pos < len(s.input) && s.ch != '\n' {
				s.readChar()
			}
			emit(' ', ' ')
		case s.ch == '/' && s.peekChar() == '*':
			s.readChar()
			s.readChar()
			for s.pos < len(s.input) && !(s.ch == '*' && s.peekChar() == '/') {
				s.readChar()
			}
			// consume the closing "*/" when present
			s.readChar()
			s.readChar()
			emit(' ', ' ')
		case s.ch == '\'':
			emit('\'', '\'')
			s.readChar()
			for s.pos < len(s.input) {
				if s.ch == '\'' {
					if s.peekChar() == '\'' {
						// escaped quote inside the literal
						emit(' ', ' ')
						emit(' ', ' ')
						s.readChar()
						s.readChar()
						continue
					}
					break
				}
				emit(' ', ' ')
				s.readChar()
			}
			if s.pos < len(s.input) {
				emit('\'', '\'')
				s.readChar()
			}
		case s.ch == '[' || s.ch == '"' || s.ch == '`':
			closing := s.ch
			if closing == '[' {
				closing = ']'
			}
			emit(s.ch, s.ch)
			s.readChar()
			for s.pos < len(s.input) && s.ch != closing {
				emit(s.ch, ' ')
				s.readChar()
			}
			if s.pos < len(s.input) {
				emit(s.ch, s.ch)
				s.readChar()
			}
		default:
			emit(s.ch, s.ch)
			s.readChar()
		}
	}

	return b.String(), m.String()
}
