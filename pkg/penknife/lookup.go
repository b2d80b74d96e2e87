package penknife

import (
	"strconv"
	"strings"

	"github.com/lemonberrylabs/penknife/pkg/types"
)

// lookup evaluates an expression of the form path[,default].
//
// A path whose first segment names an active loop is answered from that
// loop; "loop" alone means "loop1". The loop name may be followed by the
// index marker for the current key (and an integer bias, giving the row
// number plus the bias) or by member names. Anything else goes to the
// resolver with the expression text unchanged. Null results become the
// default, or "" when there is none.
func (r *run) lookup(expr string) (types.Value, error) {
	pathText, def, _ := strings.Cut(expr, r.markers.Args)
	def = strings.TrimSpace(def)
	parts := strings.Split(strings.TrimSpace(pathText), r.markers.Scope)
	if parts[0] == "loop" {
		parts[0] = "loop1"
	}

	for _, frame := range r.loops {
		if parts[0] != frame.name {
			continue
		}
		current, _ := frame.list.Get(frame.key)
		if len(parts) == 1 {
			return orDefault(current, def), nil
		}
		if parts[1] == r.markers.Index {
			if len(parts) > 2 {
				if bias, err := strconv.Atoi(parts[2]); err == nil {
					return types.NewScalar(strconv.Itoa(frame.row + bias)), nil
				}
			}
			return types.NewScalar(frame.key), nil
		}
		member, ok := current.Path(parts[1:]...)
		if !ok {
			return types.NewScalar(def), nil
		}
		return orDefault(member, def), nil
	}

	v, err := r.resolver.Resolve(expr, ExpressionLookup)
	if err != nil {
		return types.Null, err
	}
	return orDefault(v, def), nil
}

func orDefault(v types.Value, def string) types.Value {
	if v.IsNull() {
		return types.NewScalar(def)
	}
	return v
}
