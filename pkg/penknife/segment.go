package penknife

import (
	"strings"

	"github.com/lemonberrylabs/penknife/pkg/types"
)

// segment splits text into literal text and command tokens.
//
// Text before the first open marker is literal and may not contain a close
// marker. Every later chunk holds exactly one close marker, separating the
// command body from the text that follows it.
func (r *run) segment(text string) ([]*Token, error) {
	chunks := strings.Split(text, r.markers.Open)
	var tokens []*Token
	line := 1

	for i, chunk := range chunks {
		trailing := chunk
		textLine := line
		if i == 0 {
			if at := strings.Index(chunk, r.markers.Close); at >= 0 {
				return nil, unexpectedClose(line + strings.Count(chunk[:at], "\n"))
			}
		} else {
			parts := strings.Split(chunk, r.markers.Close)
			switch len(parts) {
			case 1:
				return nil, types.NewParseError(line, "Unterminated command on or after line %d", line)
			case 2:
				tokens = append(tokens, &Token{
					Kind: CommandToken,
					Text: strings.TrimSpace(parts[0]),
					Line: line,
				})
				trailing = parts[1]
				textLine = line + strings.Count(parts[0], "\n")
			default:
				return nil, unexpectedClose(line)
			}
		}

		if r.compress {
			trailing = strings.TrimSpace(trailing)
		}
		if trailing != "" {
			tokens = append(tokens, &Token{Kind: TextToken, Text: trailing, Line: textLine})
		}
		line += strings.Count(chunk, "\n")
	}
	return tokens, nil
}

func unexpectedClose(line int) *types.ParseError {
	return types.NewParseError(line, "Unexpected closing token on or after line %d", line)
}
