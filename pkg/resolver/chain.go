package resolver

import (
	"html"

	"github.com/lemonberrylabs/penknife/pkg/penknife"
	"github.com/lemonberrylabs/penknife/pkg/types"
)

// Chain asks each resolver in turn and returns the first non-null answer.
// An error from any of them ends the search.
func Chain(rs ...penknife.Resolver) penknife.Resolver {
	return penknife.ResolverFunc(func(expr string, kind penknife.LookupKind) (types.Value, error) {
		for _, r := range rs {
			if r == nil {
				continue
			}
			v, err := r.Resolve(expr, kind)
			if err != nil {
				return types.Null, err
			}
			if !v.IsNull() {
				return v, nil
			}
		}
		return types.Null, nil
	})
}

// HTMLEscape wraps r so every scalar it returns is HTML-escaped. Mappings are
// escaped member by member, which covers values reached through loops.
func HTMLEscape(r penknife.Resolver) penknife.Resolver {
	return penknife.ResolverFunc(func(expr string, kind penknife.LookupKind) (types.Value, error) {
		v, err := r.Resolve(expr, kind)
		if err != nil {
			return types.Null, err
		}
		return escapeValue(v), nil
	})
}

func escapeValue(v types.Value) types.Value {
	switch v.Type() {
	case types.TypeScalar:
		return types.NewScalar(html.EscapeString(v.AsScalar()))
	case types.TypeMapping:
		src := v.AsMapping()
		out := types.NewOrderedMap()
		for _, k := range src.Keys() {
			member, _ := src.Get(k)
			out.Set(k, escapeValue(member))
		}
		return types.NewMapping(out)
	default:
		return v
	}
}
