package penknife

// TokenKind distinguishes literal text from commands.
type TokenKind int

const (
	TextToken    TokenKind = iota // literal text
	CommandToken                  // command body without delimiters
)

// String returns a debug-friendly name of the kind.
func (k TokenKind) String() string {
	switch k {
	case TextToken:
		return "TEXT"
	case CommandToken:
		return "COMMAND"
	default:
		return "UNKNOWN"
	}
}

// Token is a segment of a template. Loop and conditional commands carry their
// branches in TruePart and FalsePart once parsed.
type Token struct {
	Kind      TokenKind
	Text      string
	Line      int // 1-based line the token starts on
	TruePart  []*Token
	FalsePart []*Token
}

// withText returns a token of the same kind and line carrying different text.
func (t *Token) withText(text string) *Token {
	return &Token{Kind: t.Kind, Text: text, Line: t.Line}
}
