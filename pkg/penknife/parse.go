package penknife

import (
	"strings"

	"github.com/lemonberrylabs/penknife/pkg/types"
)

// parse turns a flat token list into a tree. For every loop or conditional it
// finds the matching end (and else, if any) and parses the branches between
// them. End tokens are dropped, including ones no opener claims.
func (r *run) parse(tokens []*Token) ([]*Token, error) {
	var parsed []*Token
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Kind == TextToken {
			parsed = append(parsed, tok)
			continue
		}
		if strings.HasPrefix(tok.Text, r.markers.End) {
			continue
		}

		var construct string
		var target *Token
		switch {
		case strings.HasPrefix(tok.Text, r.markers.Loop):
			construct = "loop"
			target = tok.withText(r.targetText(tok.Text))
		case strings.HasPrefix(tok.Text, r.markers.If):
			construct = "if"
			target = tok
		}

		if construct != "" {
			end, err := r.findEnd(tokens, target, i, construct)
			if err != nil {
				return nil, err
			}
			trueEnd := end
			elseAt := r.findElse(tokens[:end], target, i)
			if elseAt >= 0 {
				trueEnd = elseAt
			}
			if tok.TruePart, err = r.parse(tokens[i+1 : trueEnd]); err != nil {
				return nil, err
			}
			if elseAt >= 0 {
				if tok.FalsePart, err = r.parse(tokens[elseAt+1 : end]); err != nil {
					return nil, err
				}
			}
			i = end
		}
		parsed = append(parsed, tok)
	}
	return parsed, nil
}

// targetText is the text block markers are matched against: the list
// expression for a loop (its alias is ignored) and the whole text otherwise.
func (r *run) targetText(text string) string {
	if !strings.HasPrefix(text, r.markers.Loop) {
		return text
	}
	list, _, _ := strings.Cut(text[len(r.markers.Loop):], r.markers.Args)
	return r.markers.Loop + list
}

// findEnd locates the end marker closing target. Openers with the same target
// text between the two nest, so each claims its own end first.
func (r *run) findEnd(tokens []*Token, target *Token, from int, construct string) (int, error) {
	want := r.markers.End + target.Text
	nest := 0
	for j := from + 1; j < len(tokens); j++ {
		tok := tokens[j]
		if tok.Kind != CommandToken {
			continue
		}
		if tok.Text == want {
			if nest == 0 {
				return j, nil
			}
			nest--
		} else if r.targetText(tok.Text) == target.Text {
			nest++
		}
	}
	return -1, types.NewParseError(target.Line,
		"Unterminated %s: %s starting on or after line %d", construct, target.Text, target.Line)
}

// findElse locates the else marker of target within tokens, which must end
// at target's end marker. Else markers of nested same-target blocks are
// skipped. Returns -1 when there is none.
func (r *run) findElse(tokens []*Token, target *Token, from int) int {
	want := r.markers.Else + target.Text
	closer := r.markers.End + target.Text
	nest := 0
	for j := from + 1; j < len(tokens); j++ {
		tok := tokens[j]
		if tok.Kind != CommandToken {
			continue
		}
		switch {
		case tok.Text == want:
			if nest == 0 {
				return j
			}
		case tok.Text == closer:
			if nest > 0 {
				nest--
			}
		case r.targetText(tok.Text) == target.Text:
			nest++
		}
	}
	return -1
}
