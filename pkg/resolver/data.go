// Package resolver provides ready-made penknife.Resolver implementations.
package resolver

import (
	"fmt"
	"strings"

	"github.com/lemonberrylabs/penknife/pkg/penknife"
	"github.com/lemonberrylabs/penknife/pkg/types"
)

// MissingError is returned by a strict Data resolver for an expression that
// has no value and no default.
type MissingError struct {
	Expr string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("no value for %q", e.Expr)
}

// Data answers expressions by walking a value tree. The expression "user.name"
// is the member "name" of the member "user" of the root.
type Data struct {
	root   types.Value
	scope  string
	args   string
	strict bool
}

// DataOption configures a Data resolver.
type DataOption func(*Data)

// WithMarkers takes the scope and args separators from m. Use the same
// markers as the engine the resolver is handed to.
func WithMarkers(m penknife.Markers) DataOption {
	return func(d *Data) {
		d.scope = m.Scope
		d.args = m.Args
	}
}

// WithStrict makes missing values without a default an error.
func WithStrict(strict bool) DataOption {
	return func(d *Data) {
		d.strict = strict
	}
}

// New creates a resolver over root.
func New(root types.Value, opts ...DataOption) *Data {
	m := penknife.DefaultMarkers()
	d := &Data{root: root, scope: m.Scope, args: m.Args}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FromMap creates a resolver over a plain Go map.
func FromMap(vars map[string]interface{}, opts ...DataOption) *Data {
	return New(types.FromGo(vars), opts...)
}

// Resolve implements penknife.Resolver. Directives resolve to nothing.
func (d *Data) Resolve(expr string, kind penknife.LookupKind) (types.Value, error) {
	if kind != penknife.ExpressionLookup {
		return types.Null, nil
	}
	pathText, _, hasDefault := strings.Cut(expr, d.args)
	pathText = strings.TrimSpace(pathText)

	var v types.Value
	ok := false
	if pathText != "" {
		parts := strings.Split(pathText, d.scope)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		v, ok = d.root.Path(parts...)
	}
	if !ok || v.IsNull() {
		if d.strict && !hasDefault {
			return types.Null, &MissingError{Expr: pathText}
		}
		return types.Null, nil
	}
	return v, nil
}
