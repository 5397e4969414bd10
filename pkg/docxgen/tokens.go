package docxgen

import (
	"regexp"
	"strings"
)

// TokenType represents the type of a placeholder token
type TokenType int

const (
	// TokenText is {{name}}
	TokenText TokenType = iota
	// TokenUpper is {{^name}}, the value upper-cased
	TokenUpper
	// TokenImage is {{@name}}
	TokenImage
	// TokenLoopStart is {{#name}}
	TokenLoopStart
	// TokenLoopEnd is {{/name}}
	TokenLoopEnd
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "text"
	case TokenUpper:
		return "upper"
	case TokenImage:
		return "image"
	case TokenLoopStart:
		return "loop-start"
	case TokenLoopEnd:
		return "loop-end"
	default:
		return "unknown"
	}
}

// IndexName is bound to the 0-based record index inside a loop
const IndexName = "$index"

// Token is a placeholder found in a text stream. Start and End are byte
// offsets of the whole token, braces included.
type Token struct {
	Type  TokenType
	Name  string
	Raw   string
	Start int
	End   int
}

var (
	// Regular expression to match placeholder tokens
	tokenRegex = regexp.MustCompile(`\{\{([^{}]*)\}\}`)
)

// ScanTokens finds the placeholder tokens of text in order. Tokens without a
// name ("{{}}", "{{#}}") are not placeholders and are skipped.
func ScanTokens(text string) []Token {
	var tokens []Token
	for _, m := range tokenRegex.FindAllStringSubmatchIndex(text, -1) {
		content := strings.TrimSpace(text[m[2]:m[3]])
		if content == "" {
			continue
		}
		tok := Token{Type: TokenText, Raw: text[m[0]:m[1]], Start: m[0], End: m[1]}
		switch content[0] {
		case '^':
			tok.Type = TokenUpper
		case '@':
			tok.Type = TokenImage
		case '#':
			tok.Type = TokenLoopStart
		case '/':
			tok.Type = TokenLoopEnd
		}
		if tok.Type != TokenText {
			content = strings.TrimSpace(content[1:])
		}
		if content == "" {
			continue
		}
		tok.Name = content
		tokens = append(tokens, tok)
	}
	return tokens
}

// IsLoop reports whether the token delimits a loop
func (t Token) IsLoop() bool {
	return t.Type == TokenLoopStart || t.Type == TokenLoopEnd
}
