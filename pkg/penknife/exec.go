package penknife

import (
	"strconv"
	"strings"

	"github.com/lemonberrylabs/penknife/pkg/types"
)

// loopFrame binds a loop name to the element being visited.
type loopFrame struct {
	name string
	list *types.OrderedMap
	key  string
	row  int
}

// execute renders a parsed tree into out.
func (r *run) execute(tree []*Token, out *strings.Builder) error {
	for _, tok := range tree {
		if tok.Kind == TextToken {
			out.WriteString(tok.Text)
			continue
		}
		switch {
		case strings.HasPrefix(tok.Text, r.markers.End):
			continue
		case strings.HasPrefix(tok.Text, r.markers.Loop):
			if err := r.executeLoop(tok, out); err != nil {
				return err
			}
		case strings.HasPrefix(tok.Text, r.markers.If):
			subject, err := r.lookup(tok.Text[len(r.markers.If):])
			if err != nil {
				return err
			}
			branch := tok.FalsePart
			if subject.Truthy() {
				branch = tok.TruePart
			}
			if err := r.execute(branch, out); err != nil {
				return err
			}
		default:
			v, err := r.lookup(tok.Text)
			if err != nil {
				return err
			}
			out.WriteString(v.String())
		}
	}
	return nil
}

// executeLoop runs the true branch once per element of the list, or the
// false branch when the list is empty or not a mapping.
func (r *run) executeLoop(tok *Token, out *strings.Builder) error {
	listExpr, alias, _ := strings.Cut(tok.Text[len(r.markers.Loop):], r.markers.Args)
	depth := len(r.loops) + 1
	name := strings.TrimSpace(alias)
	if name == "" {
		name = "loop" + strconv.Itoa(depth)
	}

	list, err := r.lookup(listExpr)
	if err != nil {
		return err
	}
	if list.Type() != types.TypeMapping || list.AsMapping().Len() == 0 {
		return r.execute(tok.FalsePart, out)
	}

	frame := &loopFrame{name: name, list: list.AsMapping()}
	r.loops = append(r.loops, frame)
	defer func() {
		r.loops = r.loops[:depth-1]
	}()

	for row, key := range frame.list.Keys() {
		frame.key = key
		frame.row = row
		if err := r.execute(tok.TruePart, out); err != nil {
			return err
		}
	}
	return nil
}
